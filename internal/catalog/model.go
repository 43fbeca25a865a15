package catalog

import (
	"time"

	"github.com/tuannm99/novaheap/internal/record"
)

// TableMeta is the JSON sidecar stored next to each table's heap file.
type TableMeta struct {
	Name      string          `json:"name"`
	FileBase  string          `json:"file_base"`
	PageCount uint32          `json:"page_count"`
	Columns   []record.Column `json:"columns"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func NewTableMeta(name string, schema record.Schema) *TableMeta {
	now := time.Now()
	return &TableMeta{
		Name:      name,
		FileBase:  name,
		Columns:   schema.Cols,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (m *TableMeta) Schema() record.Schema { return record.NewSchema(m.Columns...) }
