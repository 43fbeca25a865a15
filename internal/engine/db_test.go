package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novaheap/internal"
	"github.com/tuannm99/novaheap/internal/bufferpool"
	"github.com/tuannm99/novaheap/internal/catalog"
	"github.com/tuannm99/novaheap/internal/exec"
	"github.com/tuannm99/novaheap/internal/heap"
	"github.com/tuannm99/novaheap/internal/predicate"
	"github.com/tuannm99/novaheap/internal/record"
)

var usersSchema = record.NewSchema(
	record.IntColumn("id"),
	record.StringColumn("name", 16),
)

func newTestDatabase(t *testing.T, dir string) *Database {
	t.Helper()

	db, err := Open(dir, OptionsFromConfig(internal.DefaultConfig()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func fill(t *testing.T, hf *heap.File, n int) {
	t.Helper()

	tx := bufferpool.NewTransactionID()
	for i := 0; i < n; i++ {
		_, err := hf.InsertTuple(tx, record.MustTuple(hf.Schema(), i, "user"))
		require.NoError(t, err)
	}
}

func count(t *testing.T, hf *heap.File) int {
	t.Helper()

	n := 0
	require.NoError(t, hf.Scan(bufferpool.NewTransactionID(), func(*record.Tuple) error {
		n++
		return nil
	}))
	return n
}

func TestDatabase_CreateReopen(t *testing.T) {
	dir := t.TempDir()

	db, err := Open(dir, Options{})
	require.NoError(t, err)

	hf, err := db.CreateTable("users", usersSchema)
	require.NoError(t, err)
	fill(t, hf, 300)
	require.NoError(t, db.Close())
	require.NoError(t, db.Close(), "second close is a no-op")

	_, err = os.Stat(filepath.Join(dir, "tables", "users.dat"))
	require.NoError(t, err)

	db2 := newTestDatabase(t, dir)
	assert.Equal(t, []string{"users"}, db2.TableNames())

	hf2, err := db2.OpenTable("users")
	require.NoError(t, err)
	assert.Equal(t, hf.ID(), hf2.ID(), "id follows the file path")
	assert.True(t, hf2.Schema().Equal(usersSchema))
	assert.Equal(t, 300, count(t, hf2))

	meta, err := db2.readTableMeta("users")
	require.NoError(t, err)
	pages, err := hf2.PageCount()
	require.NoError(t, err)
	assert.Equal(t, uint32(pages), meta.PageCount)
	assert.Equal(t, "name", meta.Columns[1].Name)
}

func TestDatabase_CreateTableErrors(t *testing.T) {
	db := newTestDatabase(t, t.TempDir())

	_, err := db.CreateTable("users", usersSchema)
	require.NoError(t, err)
	_, err = db.CreateTable("users", usersSchema)
	require.ErrorIs(t, err, ErrTableExists)

	for _, bad := range []string{"", "a/b", "..", `x\y`} {
		_, err = db.CreateTable(bad, usersSchema)
		require.ErrorIs(t, err, ErrBadTableName, bad)
	}

	_, err = db.CreateTable("empty", record.NewSchema())
	require.ErrorIs(t, err, record.ErrSchemaMismatch)

	_, err = db.OpenTable("missing")
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestDatabase_OpenTableReturnsSameHandle(t *testing.T) {
	db := newTestDatabase(t, t.TempDir())

	hf, err := db.CreateTable("users", usersSchema)
	require.NoError(t, err)
	again, err := db.OpenTable("users")
	require.NoError(t, err)
	assert.Same(t, hf, again)

	id, err := db.Catalog().TableID("users")
	require.NoError(t, err)
	assert.Equal(t, hf.ID(), id)
}

func TestDatabase_ComputeStatistics(t *testing.T) {
	db := newTestDatabase(t, t.TempDir())

	users, err := db.CreateTable("users", usersSchema)
	require.NoError(t, err)
	fill(t, users, 250)
	_, err = db.CreateTable("empty", usersSchema)
	require.NoError(t, err)

	require.NoError(t, db.ComputeStatistics(context.Background()))
	assert.Equal(t, 2, db.Stats().Len())

	ts, ok := db.Stats().Get("users")
	require.True(t, ok)
	assert.Equal(t, 250, ts.TotalTuples())
	assert.Equal(t, 1000, ts.IOCostPerPage())

	n, err := db.Estimates().Cardinality("users", ts, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 125, n)

	sel, err := ts.EstimateSelectivity(0, predicate.LessThan, 125)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, sel, 0.02)

	empty, ok := db.Stats().Get("empty")
	require.True(t, ok)
	cost, err := db.Estimates().ScanCost("empty", empty)
	require.NoError(t, err)
	assert.Equal(t, 0.0, cost)
}

func TestDatabase_Closed(t *testing.T) {
	db, err := Open(t.TempDir(), Options{})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = db.CreateTable("users", usersSchema)
	require.ErrorIs(t, err, ErrDatabaseClosed)
	_, err = db.OpenTable("users")
	require.ErrorIs(t, err, ErrDatabaseClosed)
	require.ErrorIs(t, db.ComputeStatistics(context.Background()), ErrDatabaseClosed)
}

func TestDatabase_InsertRefreshesEstimates(t *testing.T) {
	db := newTestDatabase(t, t.TempDir())

	users, err := db.CreateTable("users", usersSchema)
	require.NoError(t, err)
	fill(t, users, 10)
	require.NoError(t, db.ComputeStatistics(context.Background()))

	ts, ok := db.Stats().Get("users")
	require.True(t, ok)
	n, err := db.Estimates().Cardinality("users", ts, 1)
	require.NoError(t, err)
	require.Equal(t, 10, n)

	rows := make([]*record.Tuple, 10)
	for i := range rows {
		rows[i] = record.MustTuple(usersSchema, 100+i, "new")
	}
	inserted, err := db.Insert(bufferpool.NewTransactionID(), "users", exec.NewSliceIterator(rows...))
	require.NoError(t, err)
	assert.Equal(t, 10, inserted)

	n, err = db.Estimates().Cardinality("users", ts, 1)
	require.NoError(t, err)
	assert.Equal(t, 20, n)

	_, err = db.Insert(bufferpool.NewTransactionID(), "missing", exec.NewSliceIterator())
	require.ErrorIs(t, err, catalog.ErrTableNotFound)
}

func TestDatabase_DeleteRefreshesEstimates(t *testing.T) {
	db := newTestDatabase(t, t.TempDir())

	users, err := db.CreateTable("users", usersSchema)
	require.NoError(t, err)
	fill(t, users, 10)
	require.NoError(t, db.ComputeStatistics(context.Background()))

	ts, ok := db.Stats().Get("users")
	require.True(t, ok)
	n, err := db.Estimates().Cardinality("users", ts, 1)
	require.NoError(t, err)
	require.Equal(t, 10, n)

	var victims []*record.Tuple
	require.NoError(t, users.Scan(bufferpool.NewTransactionID(), func(tup *record.Tuple) error {
		if len(victims) < 4 {
			victims = append(victims, tup)
		}
		return nil
	}))
	deleted, err := db.Delete(bufferpool.NewTransactionID(), exec.NewSliceIterator(victims...))
	require.NoError(t, err)
	assert.Equal(t, 4, deleted)

	n, err = db.Estimates().Cardinality("users", ts, 1)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
}

func TestDatabase_DropTable(t *testing.T) {
	dir := t.TempDir()
	db := newTestDatabase(t, dir)

	users, err := db.CreateTable("users", usersSchema)
	require.NoError(t, err)
	fill(t, users, 5)
	require.NoError(t, db.ComputeStatistics(context.Background()))
	dataPath := users.Path()
	pid := record.PageID{TableID: users.ID(), PageNo: 0}
	_, _, resident := db.Pool().Holder(pid)
	require.True(t, resident)

	require.NoError(t, db.DropTable("users"))

	assert.Empty(t, db.TableNames())
	_, ok := db.Stats().Get("users")
	assert.False(t, ok)
	_, _, resident = db.Pool().Holder(pid)
	assert.False(t, resident)
	assert.NoFileExists(t, dataPath)
	assert.NoFileExists(t, filepath.Join(dir, "tables", "users.meta.json"))

	require.ErrorIs(t, db.DropTable("users"), catalog.ErrTableNotFound)

	// the name is free again
	again, err := db.CreateTable("users", usersSchema)
	require.NoError(t, err)
	assert.Equal(t, 0, count(t, again))
}

func TestDatabase_CloseReleasesTables(t *testing.T) {
	db, err := Open(t.TempDir(), Options{})
	require.NoError(t, err)

	users, err := db.CreateTable("users", usersSchema)
	require.NoError(t, err)
	fill(t, users, 3)
	pid := record.PageID{TableID: users.ID(), PageNo: 0}
	_, _, resident := db.Pool().Holder(pid)
	require.True(t, resident)

	require.NoError(t, db.Close())
	assert.Empty(t, db.Catalog().TableIDs())
	_, _, resident = db.Pool().Holder(pid)
	assert.False(t, resident)
	_, err = users.PageCount()
	require.ErrorIs(t, err, heap.ErrIO)

	require.ErrorIs(t, db.DropTable("users"), ErrDatabaseClosed)
	_, err = db.Insert(bufferpool.NewTransactionID(), "users", exec.NewSliceIterator())
	require.ErrorIs(t, err, ErrDatabaseClosed)
}

func TestDatabase_ReplacedTableIsClosed(t *testing.T) {
	db := newTestDatabase(t, t.TempDir())

	first, err := db.CreateTable("users", usersSchema)
	require.NoError(t, err)
	fill(t, first, 3)
	pid := record.PageID{TableID: first.ID(), PageNo: 0}

	second, err := heap.Open(first.Path(), usersSchema, db.Pool())
	require.NoError(t, err)
	db.register("users", second)

	got, err := db.OpenTable("users")
	require.NoError(t, err)
	assert.Same(t, second, got)
	_, _, resident := db.Pool().Holder(pid)
	assert.False(t, resident, "pages of the replaced handle are dropped")
	_, err = first.PageCount()
	require.ErrorIs(t, err, heap.ErrIO)
	assert.Equal(t, 3, count(t, second))
}
