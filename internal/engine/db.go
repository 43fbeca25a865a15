package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tuannm99/novaheap/internal"
	"github.com/tuannm99/novaheap/internal/alias/util"
	"github.com/tuannm99/novaheap/internal/bufferpool"
	"github.com/tuannm99/novaheap/internal/catalog"
	"github.com/tuannm99/novaheap/internal/exec"
	"github.com/tuannm99/novaheap/internal/heap"
	"github.com/tuannm99/novaheap/internal/record"
	"github.com/tuannm99/novaheap/internal/stats"
	"github.com/tuannm99/novaheap/internal/storage"
)

var (
	ErrDatabaseClosed = errors.New("novaheap: database is closed")
	ErrTableExists    = errors.New("novaheap: table already exists")
	ErrBadTableName   = errors.New("novaheap: invalid table name")
)

const (
	metaSuffix = ".meta.json"
	dataSuffix = ".dat"
)

type DatabaseOperation interface {
	CreateTable(name string, schema record.Schema) (*heap.File, error)
	OpenTable(name string) (*heap.File, error)
	DropTable(name string) error
	Close() error
}

var _ DatabaseOperation = (*Database)(nil)

type Options struct {
	PageSize      int
	PoolCapacity  int
	IOCostPerPage int
	HistBins      int
	StatsWorkers  int
	CacheEntries  int64
}

func OptionsFromConfig(cfg *internal.NovaHeapConfig) Options {
	return Options{
		PageSize:      cfg.Storage.PageSize,
		PoolCapacity:  cfg.BufferPool.Capacity,
		IOCostPerPage: cfg.Stats.IOCostPerPage,
		HistBins:      cfg.Stats.HistBins,
		StatsWorkers:  cfg.Stats.Workers,
		CacheEntries:  cfg.Stats.CacheEntries,
	}
}

// Database owns the shared buffer pool, the catalog of open heap files and
// the planner statistics for one data directory.
type Database struct {
	DataDir string

	opts    Options
	pool    *bufferpool.Pool
	catalog *catalog.Catalog
	stats   *stats.Registry
	cache   *stats.EstimateCache

	mu     sync.Mutex
	closed bool
}

// Open prepares dataDir and reopens every table found under dataDir/tables.
func Open(dataDir string, opts Options) (*Database, error) {
	if opts.PageSize > 0 && opts.PageSize != storage.PageSize() {
		if err := storage.SetPageSize(opts.PageSize); err != nil {
			return nil, err
		}
	}
	if opts.IOCostPerPage <= 0 {
		opts.IOCostPerPage = stats.DefaultIOCostPerPage
	}

	cache, err := stats.NewEstimateCache(opts.CacheEntries)
	if err != nil {
		return nil, err
	}

	db := &Database{
		DataDir: dataDir,
		opts:    opts,
		pool:    bufferpool.NewPool(nil, opts.PoolCapacity),
		catalog: catalog.New(),
		stats:   stats.NewRegistry(),
		cache:   cache,
	}
	db.pool.SetResolver(db.catalog)

	if err := os.MkdirAll(db.tableDir(), storage.FileMode0755); err != nil {
		cache.Close()
		return nil, err
	}
	if err := db.loadTables(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (db *Database) tableDir() string {
	return filepath.Join(db.DataDir, "tables")
}

func (db *Database) tableMetaPath(name string) string {
	return filepath.Join(db.tableDir(), name+metaSuffix)
}

func (db *Database) tableDataPath(meta *catalog.TableMeta) string {
	return filepath.Join(db.tableDir(), meta.FileBase+dataSuffix)
}

func validName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrBadTableName, name)
	}
	return nil
}

// writeTableMeta overwrites the meta file for a given table.
func (db *Database) writeTableMeta(meta *catalog.TableMeta) error {
	meta.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(db.tableMetaPath(meta.Name), data, storage.FileMode0644)
}

// readTableMeta loads table metadata from JSON file.
func (db *Database) readTableMeta(name string) (*catalog.TableMeta, error) {
	data, err := os.ReadFile(db.tableMetaPath(name))
	if err != nil {
		return nil, err
	}

	var meta catalog.TableMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("table %q meta: %w", name, err)
	}
	return &meta, nil
}

func (db *Database) loadTables() error {
	entries, err := os.ReadDir(db.tableDir())
	if err != nil {
		return err
	}
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), metaSuffix)
		if !ok || e.IsDir() {
			continue
		}
		if _, err := db.openFromMeta(name); err != nil {
			return fmt.Errorf("load table %q: %w", name, err)
		}
	}
	slog.Info("database opened", "dir", db.DataDir, "tables", len(db.catalog.TableIDs()))
	return nil
}

func (db *Database) openFromMeta(name string) (*heap.File, error) {
	meta, err := db.readTableMeta(name)
	if err != nil {
		return nil, err
	}
	hf, err := heap.Open(db.tableDataPath(meta), meta.Schema(), db.pool)
	if err != nil {
		return nil, err
	}
	db.register(name, hf)
	return hf, nil
}

// register adds hf to the catalog. A file it displaces has its cached
// pages dropped and is closed.
func (db *Database) register(name string, hf *heap.File) {
	old := db.catalog.AddTable(name, hf)
	if old == nil {
		return
	}
	if err := db.pool.DiscardTable(old.ID()); err != nil {
		slog.Warn("discard replaced table pages", "table", name, "err", err)
	}
	util.CloseLogged(old, name)
}

func (db *Database) checkOpen() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrDatabaseClosed
	}
	return nil
}

func (db *Database) CreateTable(name string, schema record.Schema) (*heap.File, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	if err := validName(name); err != nil {
		return nil, err
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(db.tableMetaPath(name)); err == nil {
		return nil, fmt.Errorf("%w: %q", ErrTableExists, name)
	}

	meta := catalog.NewTableMeta(name, schema)
	hf, err := heap.Open(db.tableDataPath(meta), schema, db.pool)
	if err != nil {
		return nil, err
	}
	if err := db.writeTableMeta(meta); err != nil {
		util.CloseLogged(hf, name)
		return nil, err
	}

	db.register(name, hf)
	slog.Debug("table created", "table", name, "schema", schema.String())
	return hf, nil
}

// OpenTable returns the already open table, or opens it from its meta file.
func (db *Database) OpenTable(name string) (*heap.File, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	if id, err := db.catalog.TableID(name); err == nil {
		return db.catalog.HeapFile(id)
	}
	if err := validName(name); err != nil {
		return nil, err
	}
	return db.openFromMeta(name)
}

// DropTable closes the table, drops its pages from the pool and removes
// its data and meta files along with its statistics.
func (db *Database) DropTable(name string) error {
	if err := db.checkOpen(); err != nil {
		return err
	}
	id, err := db.catalog.TableID(name)
	if err != nil {
		return err
	}
	// pages are flushed while the catalog can still resolve the table
	if err := db.pool.DiscardTable(id); err != nil {
		return err
	}
	hf, err := db.catalog.RemoveTable(name)
	if err != nil {
		return err
	}
	if err := hf.Close(); err != nil {
		return err
	}

	if err := os.Remove(hf.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.Remove(db.tableMetaPath(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	db.stats.Delete(name)
	db.cache.Invalidate(name)
	slog.Debug("table dropped", "table", name)
	return nil
}

// Insert drains child into the named table and drops that table's cached
// estimates. On error the count covers the tuples inserted so far.
func (db *Database) Insert(tx bufferpool.TransactionID, table string, child exec.TupleIterator) (int, error) {
	if err := db.checkOpen(); err != nil {
		return 0, err
	}
	id, err := db.catalog.TableID(table)
	if err != nil {
		return 0, err
	}
	n, err := exec.Insert(tx, child, db.catalog, id)
	if n > 0 {
		db.cache.Invalidate(table)
	}
	return n, err
}

// Delete removes every tuple child produces from the table its record id
// names. Tuples may span tables, so all cached estimates are dropped.
func (db *Database) Delete(tx bufferpool.TransactionID, child exec.TupleIterator) (int, error) {
	if err := db.checkOpen(); err != nil {
		return 0, err
	}
	n, err := exec.Delete(tx, child, db.catalog)
	if n > 0 {
		db.cache.Clear()
	}
	return n, err
}

// SyncTableMeta refreshes the page count snapshot kept in the meta file.
func (db *Database) SyncTableMeta(name string) error {
	id, err := db.catalog.TableID(name)
	if err != nil {
		return err
	}
	hf, err := db.catalog.HeapFile(id)
	if err != nil {
		return err
	}
	n, err := hf.PageCount()
	if err != nil {
		return err
	}

	meta, err := db.readTableMeta(name)
	if err != nil {
		return err
	}
	meta.PageCount = uint32(n)
	return db.writeTableMeta(meta)
}

func (db *Database) TableNames() []string { return db.catalog.TableNames() }

func (db *Database) Catalog() *catalog.Catalog { return db.catalog }

func (db *Database) Pool() *bufferpool.Pool { return db.pool }

func (db *Database) Stats() *stats.Registry { return db.stats }

// Estimates returns the cache of scan cost and row count estimates.
// ComputeStatistics, Insert, Delete and DropTable keep it current; writes
// made straight on a *heap.File are not seen until the next
// ComputeStatistics.
func (db *Database) Estimates() *stats.EstimateCache { return db.cache }

// ComputeStatistics rebuilds statistics for every table and drops the
// cached estimates that were based on the old ones.
func (db *Database) ComputeStatistics(ctx context.Context) error {
	if err := db.checkOpen(); err != nil {
		return err
	}
	opts := stats.Options{NumHistBins: db.opts.HistBins}
	if err := db.stats.ComputeAll(ctx, db.catalog, db.opts.IOCostPerPage, db.opts.StatsWorkers, opts); err != nil {
		return err
	}
	db.cache.Clear()
	return nil
}

// Close flushes dirty pages, refreshes every meta file and closes the
// table files. It is safe to call twice.
func (db *Database) Close() error {
	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		return nil
	}
	db.closed = true
	db.mu.Unlock()

	var errs []error
	if err := db.pool.FlushAll(); err != nil {
		errs = append(errs, err)
	}

	for _, name := range db.catalog.TableNames() {
		if err := db.SyncTableMeta(name); err != nil {
			slog.Warn("close: sync table meta", "table", name, "err", err)
		}
		id, err := db.catalog.TableID(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		hf, err := db.catalog.HeapFile(id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := db.pool.DiscardTable(id); err != nil {
			errs = append(errs, err)
		}
		if err := hf.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	db.catalog.Clear()

	db.cache.Close()
	return errors.Join(errs...)
}
