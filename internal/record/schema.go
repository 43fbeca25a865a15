package record

import (
	"fmt"
	"strings"
)

type ColumnType uint8

const (
	ColInt         ColumnType = iota + 1 // 4-byte signed integer
	ColFixedString                       // u32 length + Size bytes, zero padded
)

const (
	IntSize          = 4
	StrLenPrefixSize = 4
	DefaultStringLen = 128
)

func (c ColumnType) String() string {
	switch c {
	case ColInt:
		return "INT"
	case ColFixedString:
		return "STRING"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(c))
	}
}

type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
	// Size is the byte capacity of a ColFixedString column; 0 means DefaultStringLen.
	Size int `json:"size,omitempty"`
}

func IntColumn(name string) Column { return Column{Name: name, Type: ColInt} }

func StringColumn(name string, size int) Column {
	return Column{Name: name, Type: ColFixedString, Size: size}
}

func (c Column) strLen() int {
	if c.Size <= 0 {
		return DefaultStringLen
	}
	return c.Size
}

// Width is the fixed on-page byte width of one value of this column.
func (c Column) Width() int {
	switch c.Type {
	case ColInt:
		return IntSize
	case ColFixedString:
		return StrLenPrefixSize + c.strLen()
	default:
		return 0
	}
}

// Schema is the ordered column list of a table. Names need not be unique.
type Schema struct {
	Cols []Column `json:"cols"`
}

func NewSchema(cols ...Column) Schema { return Schema{Cols: cols} }

func (s Schema) NumCols() int { return len(s.Cols) }

// Width is the fixed byte width of one encoded tuple.
func (s Schema) Width() int {
	w := 0
	for _, c := range s.Cols {
		w += c.Width()
	}
	return w
}

func (s Schema) Validate() error {
	if len(s.Cols) == 0 {
		return fmt.Errorf("%w: schema has no columns", ErrSchemaMismatch)
	}
	for i, c := range s.Cols {
		if c.Type != ColInt && c.Type != ColFixedString {
			return fmt.Errorf("%w: column %d (%q) has type %s", ErrUnsupportedType, i, c.Name, c.Type)
		}
	}
	return nil
}

// Equal reports whether two schemas share the same physical layout.
// Column names are ignored.
func (s Schema) Equal(o Schema) bool {
	if len(s.Cols) != len(o.Cols) {
		return false
	}
	for i := range s.Cols {
		if s.Cols[i].Type != o.Cols[i].Type || s.Cols[i].Width() != o.Cols[i].Width() {
			return false
		}
	}
	return true
}

func (s Schema) String() string {
	parts := make([]string, len(s.Cols))
	for i, c := range s.Cols {
		parts[i] = fmt.Sprintf("%s(%s)", c.Type, c.Name)
	}
	return strings.Join(parts, ", ")
}
