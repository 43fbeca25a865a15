package exec

import (
	"fmt"
	"log/slog"

	"github.com/tuannm99/novaheap/internal/bufferpool"
	"github.com/tuannm99/novaheap/internal/heap"
	"github.com/tuannm99/novaheap/internal/record"
	"github.com/tuannm99/novaheap/internal/storage"
)

// Tables resolves a table id to its heap file; *catalog.Catalog does.
type Tables interface {
	HeapFile(id uint64) (*heap.File, error)
}

// Insert copies every tuple produced by child into table tableID and
// returns how many were inserted. The child is drained before the first
// insert, so it may scan the target table itself. On error the count
// covers the tuples inserted so far.
func Insert(tx bufferpool.TransactionID, child TupleIterator, tables Tables, tableID uint64) (int, error) {
	hf, err := tables.HeapFile(tableID)
	if err != nil {
		return 0, err
	}
	tuples, err := drain(child)
	if err != nil {
		return 0, fmt.Errorf("insert: read child: %w", err)
	}

	n := 0
	for _, t := range tuples {
		if !t.Schema.Equal(hf.Schema()) {
			return n, fmt.Errorf("insert: %w: got %s, table has %s", storage.ErrSchemaMismatch, t.Schema, hf.Schema())
		}
		// fresh tuple: the child's record id points into its own table
		cp, err := record.NewTuple(hf.Schema(), t.Values...)
		if err != nil {
			return n, fmt.Errorf("insert: %w", err)
		}
		if _, err := hf.InsertTuple(tx, cp); err != nil {
			return n, fmt.Errorf("insert: %w", err)
		}
		n++
	}

	slog.Debug("insert done", "table", fmt.Sprintf("%x", tableID), "count", n)
	return n, nil
}

// Delete removes every tuple produced by child from the table its record
// id points at, and returns how many were deleted.
func Delete(tx bufferpool.TransactionID, child TupleIterator, tables Tables) (int, error) {
	tuples, err := drain(child)
	if err != nil {
		return 0, fmt.Errorf("delete: read child: %w", err)
	}

	n := 0
	for _, t := range tuples {
		if t.RID == nil {
			return n, fmt.Errorf("delete: %w: tuple has no record id", heap.ErrTupleNotFound)
		}
		hf, err := tables.HeapFile(t.RID.PageID.TableID)
		if err != nil {
			return n, fmt.Errorf("delete: %w", err)
		}
		if _, err := hf.DeleteTuple(tx, t); err != nil {
			return n, fmt.Errorf("delete: %w", err)
		}
		n++
	}

	slog.Debug("delete done", "count", n)
	return n, nil
}
