package stats

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novaheap/internal/heap"
)

type fakeCatalog struct {
	names map[uint64]string
	files fileSet
	fail  uint64
}

func (c *fakeCatalog) TableIDs() []uint64 {
	ids := make([]uint64, 0, len(c.names))
	for id := range c.names {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (c *fakeCatalog) TableName(id uint64) (string, error) {
	if id == c.fail {
		return "", errors.New("catalog unavailable")
	}
	n, ok := c.names[id]
	if !ok {
		return "", fmt.Errorf("no table %x", id)
	}
	return n, nil
}

func (c *fakeCatalog) HeapFile(id uint64) (*heap.File, error) {
	f, ok := c.files[id]
	if !ok {
		return nil, fmt.Errorf("no table %x", id)
	}
	return f, nil
}

func TestRegistry_GetSetReplace(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("a")
	assert.False(t, ok)

	a, b := &TableStats{tableID: 1}, &TableStats{tableID: 2}
	r.Set("a", a)
	got, ok := r.Get("a")
	require.True(t, ok)
	assert.Same(t, a, got)

	in := map[string]*TableStats{"b": b}
	r.ReplaceAll(in)
	in["c"] = a // caller's map is not aliased
	assert.Equal(t, 1, r.Len())
	_, ok = r.Get("a")
	assert.False(t, ok)

	snap := r.Snapshot()
	delete(snap, "b")
	_, ok = r.Get("b")
	assert.True(t, ok)

	r.Delete("b")
	r.Delete("missing")
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_ComputeAll(t *testing.T) {
	db := newTestDB(t)
	cat := &fakeCatalog{names: map[uint64]string{}, files: db.files}

	for i, n := range []int{0, 5, 300} {
		name := fmt.Sprintf("t%d", i)
		hf := db.table(t, name, peopleSchema)
		insertPeople(t, hf, 0, n)
		cat.names[hf.ID()] = name
	}

	r := NewRegistry()
	r.Set("stale", &TableStats{})
	require.NoError(t, r.ComputeAll(context.Background(), cat, DefaultIOCostPerPage, 2, Options{}))

	assert.Equal(t, 3, r.Len())
	_, ok := r.Get("stale")
	assert.False(t, ok)

	for name, want := range map[string]int{"t0": 0, "t1": 5, "t2": 300} {
		ts, ok := r.Get(name)
		require.True(t, ok, name)
		assert.Equal(t, want, ts.TotalTuples(), name)
		assert.Equal(t, DefaultIOCostPerPage, ts.IOCostPerPage())
	}
}

func TestRegistry_ComputeAllFailureKeepsOldContent(t *testing.T) {
	db := newTestDB(t)
	hf := db.table(t, "only", peopleSchema)
	cat := &fakeCatalog{names: map[uint64]string{hf.ID(): "only"}, files: db.files, fail: hf.ID()}

	old := &TableStats{}
	r := NewRegistry()
	r.Set("only", old)

	require.Error(t, r.ComputeAll(context.Background(), cat, DefaultIOCostPerPage, 0, Options{}))
	got, ok := r.Get("only")
	require.True(t, ok)
	assert.Same(t, old, got)
}
