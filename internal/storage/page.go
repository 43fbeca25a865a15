package storage

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/tuannm99/novaheap/internal/alias/bx"
	"github.com/tuannm99/novaheap/internal/record"
)

// +------------------+ 0
// | occupancy bitmap |  ceil(numSlots/8) bytes, bit i => slot i used
// +------------------+ headerSize
// | slot 0           |  schema.Width() bytes each
// | slot 1           |
// | ...              |
// | slot numSlots-1  |
// +------------------+
// | zero padding     |
// +------------------+ PageSize()
type HeapPage struct {
	id       record.PageID
	schema   record.Schema
	numSlots int
	header   []byte
	tuples   []*record.Tuple // nil == empty slot
}

// SlotsPerPage is the number of tuples of schema s that fit in one page:
// each tuple costs Width bytes plus one header bit.
func SlotsPerPage(s record.Schema) int {
	w := s.Width()
	if w == 0 {
		return 0
	}
	return (PageSize() * 8) / (w*8 + 1)
}

func HeaderSize(s record.Schema) int { return bx.BitmapLen(SlotsPerPage(s)) }

// NewEmptyPageData returns an all-zero page image (no occupied slots).
func NewEmptyPageData() []byte { return make([]byte, PageSize()) }

// NewHeapPage decodes a page image. data is not retained.
func NewHeapPage(pid record.PageID, schema record.Schema, data []byte) (*HeapPage, error) {
	if len(data) != PageSize() {
		return nil, ErrWrongSize
	}
	n := SlotsPerPage(schema)
	if n == 0 {
		return nil, fmt.Errorf("%w: schema width %d does not fit page size %d",
			ErrSchemaMismatch, schema.Width(), PageSize())
	}

	p := &HeapPage{
		id:       pid,
		schema:   schema,
		numSlots: n,
		header:   slices.Clone(data[:bx.BitmapLen(n)]),
		tuples:   make([]*record.Tuple, n),
	}

	// bits past numSlots in the last header byte are never meaningful
	for i := n; i < len(p.header)*8; i++ {
		bx.SetBit(p.header, i, false)
	}

	w := schema.Width()
	base := len(p.header)
	for i := 0; i < n; i++ {
		if !bx.Bit(p.header, i) {
			continue
		}
		off := base + i*w
		vals, err := record.DecodeTuple(schema, data[off:off+w])
		if err != nil {
			return nil, fmt.Errorf("%w: slot %d of page %s: %w", ErrCorruption, i, pid, err)
		}
		p.tuples[i] = &record.Tuple{
			Schema: schema,
			Values: vals,
			RID:    &record.RecordID{PageID: pid, Slot: uint16(i)},
		}
	}
	return p, nil
}

func (p *HeapPage) ID() record.PageID { return p.id }

func (p *HeapPage) Schema() record.Schema { return p.schema }

func (p *HeapPage) NumSlots() int { return p.numSlots }

func (p *HeapPage) NumEmptySlots() int {
	n := 0
	for i := 0; i < p.numSlots; i++ {
		if !bx.Bit(p.header, i) {
			n++
		}
	}
	return n
}

func (p *HeapPage) IsSlotUsed(i int) bool {
	if i < 0 || i >= p.numSlots {
		return false
	}
	return bx.Bit(p.header, i)
}

// InsertTuple places t into the first empty slot and sets t.RID.
func (p *HeapPage) InsertTuple(t *record.Tuple) error {
	if !t.Schema.Equal(p.schema) {
		return ErrSchemaMismatch
	}
	// validated once here so Bytes never has to fail on them
	norm, err := record.NewTuple(p.schema, t.Values...)
	if err != nil {
		return err
	}

	for i := 0; i < p.numSlots; i++ {
		if bx.Bit(p.header, i) {
			continue
		}
		rid := &record.RecordID{PageID: p.id, Slot: uint16(i)}
		bx.SetBit(p.header, i, true)
		p.tuples[i] = &record.Tuple{Schema: p.schema, Values: norm.Values, RID: rid}
		t.RID = &record.RecordID{PageID: p.id, Slot: uint16(i)}
		return nil
	}
	return ErrPageFull
}

// RestoreTuple puts t back into the empty slot it was deleted from and sets
// t.RID again. It undoes a DeleteTuple that could not be persisted.
func (p *HeapPage) RestoreTuple(t *record.Tuple, slot int) error {
	if slot < 0 || slot >= p.numSlots {
		return ErrBadSlot
	}
	if bx.Bit(p.header, slot) {
		return fmt.Errorf("%w: slot %d is in use", ErrBadSlot, slot)
	}
	if !t.Schema.Equal(p.schema) {
		return ErrSchemaMismatch
	}
	norm, err := record.NewTuple(p.schema, t.Values...)
	if err != nil {
		return err
	}

	bx.SetBit(p.header, slot, true)
	p.tuples[slot] = &record.Tuple{
		Schema: p.schema,
		Values: norm.Values,
		RID:    &record.RecordID{PageID: p.id, Slot: uint16(slot)},
	}
	t.RID = &record.RecordID{PageID: p.id, Slot: uint16(slot)}
	return nil
}

// DeleteTuple clears the slot named by t.RID. The slot must be used and hold
// the same values as t.
func (p *HeapPage) DeleteTuple(t *record.Tuple) error {
	if t.RID == nil || t.RID.PageID != p.id {
		return ErrTupleNotFound
	}
	slot := int(t.RID.Slot)
	if !p.IsSlotUsed(slot) {
		return ErrTupleNotFound
	}
	same, err := p.sameValues(p.tuples[slot], t)
	if err != nil {
		return err
	}
	if !same {
		return ErrTupleNotFound
	}

	bx.SetBit(p.header, slot, false)
	p.tuples[slot] = nil
	t.RID = nil
	return nil
}

func (p *HeapPage) sameValues(stored, t *record.Tuple) (bool, error) {
	if !t.Schema.Equal(p.schema) {
		return false, nil
	}
	w := p.schema.Width()
	a, b := make([]byte, w), make([]byte, w)
	if err := record.EncodeTuple(p.schema, stored.Values, a); err != nil {
		return false, err
	}
	if err := record.EncodeTuple(p.schema, t.Values, b); err != nil {
		return false, nil
	}
	return bytes.Equal(a, b), nil
}

// TupleAt returns a copy of the tuple in slot i, or nil if the slot is empty.
func (p *HeapPage) TupleAt(i int) (*record.Tuple, error) {
	if i < 0 || i >= p.numSlots {
		return nil, ErrBadSlot
	}
	if p.tuples[i] == nil {
		return nil, nil
	}
	return cloneTuple(p.tuples[i]), nil
}

// Tuples returns copies of the live tuples in ascending slot order.
func (p *HeapPage) Tuples() []*record.Tuple {
	out := make([]*record.Tuple, 0, p.numSlots)
	for _, t := range p.tuples {
		if t != nil {
			out = append(out, cloneTuple(t))
		}
	}
	return out
}

// Bytes encodes the page into a full PageSize() image.
func (p *HeapPage) Bytes() ([]byte, error) {
	buf := NewEmptyPageData()
	copy(buf, p.header)

	w := p.schema.Width()
	base := len(p.header)
	for i, t := range p.tuples {
		if t == nil {
			continue
		}
		off := base + i*w
		if err := record.EncodeTuple(p.schema, t.Values, buf[off:off+w]); err != nil {
			return nil, fmt.Errorf("encode slot %d: %w", i, err)
		}
	}
	return buf, nil
}

func cloneTuple(t *record.Tuple) *record.Tuple {
	c := &record.Tuple{Schema: t.Schema, Values: slices.Clone(t.Values)}
	if t.RID != nil {
		rid := *t.RID
		c.RID = &rid
	}
	return c
}
