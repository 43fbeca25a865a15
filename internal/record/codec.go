package record

import (
	"errors"
	"math"

	"github.com/tuannm99/novaheap/internal/alias/bx"
)

var (
	ErrSchemaMismatch  = errors.New("record: schema/values mismatch")
	ErrBadBuffer       = errors.New("record: buffer underflow/overflow")
	ErrValueTooLong    = errors.New("record: string exceeds column size")
	ErrUnsupportedType = errors.New("record: unsupported type")
	ErrCorruptValue    = errors.New("record: corrupt encoded value")
)

// EncodeTuple writes values into dst, which must be exactly s.Width() bytes.
// Format, per column in order:
//
//	INT    : i32 (LE)
//	STRING : u32 length (LE) + Size bytes, zero padded
func EncodeTuple(s Schema, values []any, dst []byte) error {
	if len(dst) != s.Width() {
		return ErrBadBuffer
	}
	norm, err := normalize(s, values)
	if err != nil {
		return err
	}

	off := 0
	for i, col := range s.Cols {
		switch col.Type {
		case ColInt:
			bx.PutI32At(dst, off, norm[i].(int32))
		case ColFixedString:
			str := norm[i].(string)
			bx.PutU32At(dst, off, uint32(len(str)))
			body := dst[off+StrLenPrefixSize : off+col.Width()]
			n := copy(body, str)
			clear(body[n:])
		}
		off += col.Width()
	}
	return nil
}

// DecodeTuple is the inverse of EncodeTuple.
func DecodeTuple(s Schema, src []byte) ([]any, error) {
	if len(src) != s.Width() {
		return nil, ErrBadBuffer
	}

	out := make([]any, s.NumCols())
	off := 0
	for i, col := range s.Cols {
		switch col.Type {
		case ColInt:
			out[i] = bx.I32At(src, off)
		case ColFixedString:
			n := bx.U32At(src, off)
			if n > math.MaxInt32 || int(n) > col.strLen() {
				return nil, ErrCorruptValue
			}
			start := off + StrLenPrefixSize
			out[i] = string(src[start : start+int(n)])
		default:
			return nil, ErrUnsupportedType
		}
		off += col.Width()
	}
	return out, nil
}

func asInt32(v any) (int32, bool) {
	switch x := v.(type) {
	case int32:
		return x, true
	case int:
		if x < math.MinInt32 || x > math.MaxInt32 {
			return 0, false
		}
		return int32(x), true
	case int64:
		if x < math.MinInt32 || x > math.MaxInt32 {
			return 0, false
		}
		return int32(x), true
	case int16:
		return int32(x), true
	case int8:
		return int32(x), true
	default:
		return 0, false
	}
}
