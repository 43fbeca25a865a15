package catalog

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/tuannm99/novaheap/internal/bufferpool"
	"github.com/tuannm99/novaheap/internal/heap"
	"github.com/tuannm99/novaheap/internal/record"
)

var ErrTableNotFound = errors.New("catalog: table not found")

type entry struct {
	name string
	file *heap.File
}

// Catalog maps table names to ids and ids to heap files. It is also the
// buffer pool's FileResolver.
type Catalog struct {
	mu     sync.RWMutex
	byID   map[uint64]*entry
	byName map[string]uint64
}

var _ bufferpool.FileResolver = (*Catalog)(nil)

func New() *Catalog {
	return &Catalog{
		byID:   make(map[uint64]*entry),
		byName: make(map[string]uint64),
	}
}

// AddTable registers f under name. An existing table with the same name,
// or the same file id, is replaced; its file is returned so the caller can
// drop its cached pages and close it. replaced is nil when nothing was
// replaced or when f itself was already registered.
func (c *Catalog) AddTable(name string, f *heap.File) (replaced *heap.File) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if oldID, ok := c.byName[name]; ok {
		if old := c.byID[oldID]; old != nil && old.file != f {
			replaced = old.file
		}
		delete(c.byID, oldID)
	}
	if old, ok := c.byID[f.ID()]; ok {
		if old.file != f {
			replaced = old.file
		}
		delete(c.byName, old.name)
	}
	c.byID[f.ID()] = &entry{name: name, file: f}
	c.byName[name] = f.ID()
	return replaced
}

// RemoveTable unregisters name and returns its file, which the caller
// still owns.
func (c *Catalog) RemoveTable(name string) (*heap.File, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTableNotFound, name)
	}
	e := c.byID[id]
	delete(c.byName, name)
	delete(c.byID, id)
	return e.file, nil
}

func (c *Catalog) lookup(id uint64) (*entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %x", ErrTableNotFound, id)
	}
	return e, nil
}

func (c *Catalog) TableID(name string) (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	id, ok := c.byName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrTableNotFound, name)
	}
	return id, nil
}

func (c *Catalog) TableName(id uint64) (string, error) {
	e, err := c.lookup(id)
	if err != nil {
		return "", err
	}
	return e.name, nil
}

func (c *Catalog) Schema(id uint64) (record.Schema, error) {
	e, err := c.lookup(id)
	if err != nil {
		return record.Schema{}, err
	}
	return e.file.Schema(), nil
}

func (c *Catalog) HeapFile(id uint64) (*heap.File, error) {
	e, err := c.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.file, nil
}

func (c *Catalog) DatabaseFile(id uint64) (bufferpool.DBFile, error) {
	return c.HeapFile(id)
}

// TableIDs returns every registered id in ascending order.
func (c *Catalog) TableIDs() []uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]uint64, 0, len(c.byID))
	for id := range c.byID {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// TableNames returns every registered name in ascending order.
func (c *Catalog) TableNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.byName))
	for n := range c.byName {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Clear forgets every table without closing the files.
func (c *Catalog) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.byID = make(map[uint64]*entry)
	c.byName = make(map[string]uint64)
}
