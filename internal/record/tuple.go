package record

import (
	"fmt"
	"strings"
)

// Tuple is a row of typed values conforming to Schema.
// Int columns hold int32, FixedString columns hold string.
// RID is set once the tuple has been read from or placed into a page.
type Tuple struct {
	Schema Schema
	Values []any
	RID    *RecordID
}

// NewTuple validates values against s and normalizes integer kinds to int32.
func NewTuple(s Schema, values ...any) (*Tuple, error) {
	norm, err := normalize(s, values)
	if err != nil {
		return nil, err
	}
	return &Tuple{Schema: s, Values: norm}, nil
}

// MustTuple is NewTuple for literals known to be valid.
func MustTuple(s Schema, values ...any) *Tuple {
	t, err := NewTuple(s, values...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Tuple) Int(i int) int32 { return t.Values[i].(int32) }

func (t *Tuple) Str(i int) string { return t.Values[i].(string) }

func (t *Tuple) String() string {
	parts := make([]string, len(t.Values))
	for i, v := range t.Values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, "\t")
}

func normalize(s Schema, values []any) ([]any, error) {
	if len(values) != s.NumCols() {
		return nil, fmt.Errorf("%w: want %d values, got %d", ErrSchemaMismatch, s.NumCols(), len(values))
	}
	out := make([]any, len(values))
	for i, col := range s.Cols {
		switch col.Type {
		case ColInt:
			x, ok := asInt32(values[i])
			if !ok {
				return nil, fmt.Errorf("%w: column %d (%q) expects INT, got %T", ErrSchemaMismatch, i, col.Name, values[i])
			}
			out[i] = x
		case ColFixedString:
			str, ok := values[i].(string)
			if !ok {
				return nil, fmt.Errorf("%w: column %d (%q) expects STRING, got %T", ErrSchemaMismatch, i, col.Name, values[i])
			}
			if len(str) > col.strLen() {
				return nil, fmt.Errorf("%w: column %d (%q) len %d > %d", ErrValueTooLong, i, col.Name, len(str), col.strLen())
			}
			out[i] = str
		default:
			return nil, ErrUnsupportedType
		}
	}
	return out, nil
}
