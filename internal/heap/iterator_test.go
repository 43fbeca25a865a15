package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novaheap/internal/bufferpool"
	"github.com/tuannm99/novaheap/internal/record"
	"github.com/tuannm99/novaheap/internal/storage"
)

func drain(t *testing.T, it *Iterator) []*record.Tuple {
	t.Helper()

	var out []*record.Tuple
	for {
		ok, err := it.HasNext()
		require.NoError(t, err)
		if !ok {
			return out
		}
		tup, err := it.Next()
		require.NoError(t, err)
		out = append(out, tup)
	}
}

func TestIterator_NotOpen(t *testing.T) {
	hf, _ := newTestFile(t, intSchema)
	it := hf.Iterator(bufferpool.NewTransactionID())

	_, err := it.HasNext()
	require.ErrorIs(t, err, ErrIteratorClosed)
	_, err = it.Next()
	require.ErrorIs(t, err, ErrIteratorClosed)

	require.NoError(t, it.Open())
	it.Close()
	_, err = it.Next()
	require.ErrorIs(t, err, ErrIteratorClosed)
}

func TestIterator_EmptyFile(t *testing.T) {
	hf, _ := newTestFile(t, intSchema)
	it := hf.Iterator(bufferpool.NewTransactionID())
	require.NoError(t, it.Open())
	defer it.Close()

	assert.Empty(t, drain(t, it))
	_, err := it.Next()
	require.ErrorIs(t, err, ErrNoSuchElement)
}

func TestIterator_OrderAndRewind(t *testing.T) {
	hf, _ := newTestFile(t, intSchema)
	tx := bufferpool.NewTransactionID()
	perPage := storage.SlotsPerPage(intSchema)
	insertInts(t, hf, tx, seq(0, perPage+5)...)

	it := hf.Iterator(tx)
	require.NoError(t, it.Open())
	defer it.Close()

	first := drain(t, it)
	require.Len(t, first, perPage+5)

	var prev *record.RecordID
	for _, tup := range first {
		require.NotNil(t, tup.RID)
		if prev != nil {
			before := prev.PageID.PageNo < tup.RID.PageID.PageNo ||
				(prev.PageID.PageNo == tup.RID.PageID.PageNo && prev.Slot < tup.RID.Slot)
			assert.True(t, before, "%s then %s", prev, tup.RID)
		}
		prev = tup.RID
	}

	_, err := it.Next()
	require.ErrorIs(t, err, ErrNoSuchElement)

	require.NoError(t, it.Rewind())
	second := drain(t, it)
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Values, second[i].Values)
		assert.Equal(t, *first[i].RID, *second[i].RID)
	}
}

func TestIterator_SkipsEmptyPages(t *testing.T) {
	hf, _ := newTestFile(t, intSchema)
	tx := bufferpool.NewTransactionID()
	perPage := storage.SlotsPerPage(intSchema)

	tuples := insertInts(t, hf, tx, seq(0, 2*perPage+1)...)
	// empty the middle page entirely
	for _, tup := range tuples[perPage : 2*perPage] {
		_, err := hf.DeleteTuple(tx, tup)
		require.NoError(t, err)
	}
	// and the first one too, except for slot 0
	for _, tup := range tuples[1:perPage] {
		_, err := hf.DeleteTuple(tx, tup)
		require.NoError(t, err)
	}

	n, err := hf.PageCount()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, []int32{0, int32(2 * perPage)}, scanInts(t, hf, tx))
}

func TestIterator_SeesPagesAppendedAfterOpen(t *testing.T) {
	hf, _ := newTestFile(t, intSchema)
	tx := bufferpool.NewTransactionID()

	it := hf.Iterator(tx)
	require.NoError(t, it.Open())
	defer it.Close()

	insertInts(t, hf, tx, 5)
	got := drain(t, it)
	require.Len(t, got, 1)
	assert.Equal(t, int32(5), got[0].Int(0))

	require.NoError(t, it.Rewind())
	insertInts(t, hf, tx, 6)
	got = drain(t, it)
	require.Len(t, got, 2)
}
