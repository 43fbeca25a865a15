package stats

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tuannm99/novaheap/internal/heap"
)

const DefaultWorkers = 4

// Catalog is what ComputeAll needs to enumerate tables.
type Catalog interface {
	TableIDs() []uint64
	TableName(id uint64) (string, error)
	HeapFile(id uint64) (*heap.File, error)
}

// Registry maps table names to their statistics. The planner owns one and
// passes it around; it is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	stats map[string]*TableStats
}

func NewRegistry() *Registry {
	return &Registry{stats: make(map[string]*TableStats)}
}

func (r *Registry) Get(table string) (*TableStats, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ts, ok := r.stats[table]
	return ts, ok
}

func (r *Registry) Set(table string, ts *TableStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats[table] = ts
}

func (r *Registry) Delete(table string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.stats, table)
}

// ReplaceAll swaps in a copy of m as the whole registry content.
func (r *Registry) ReplaceAll(m map[string]*TableStats) {
	next := make(map[string]*TableStats, len(m))
	maps.Copy(next, m)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = next
}

// Snapshot returns a copy of the current mapping.
func (r *Registry) Snapshot() map[string]*TableStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.stats)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stats)
}

// ComputeAll builds statistics for every catalog table, up to workers at a
// time, and replaces the registry content with the result. On error the
// registry is left untouched.
func (r *Registry) ComputeAll(ctx context.Context, cat Catalog, ioCostPerPage, workers int, opts Options) error {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	ids := cat.TableIDs()
	start := time.Now()
	slog.Info("computing table stats", "tables", len(ids), "workers", workers)

	var (
		mu    sync.Mutex
		fresh = make(map[string]*TableStats, len(ids))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			name, err := cat.TableName(id)
			if err != nil {
				return err
			}
			hf, err := cat.HeapFile(id)
			if err != nil {
				return err
			}
			ts, err := Build(gctx, hf, ioCostPerPage, opts)
			if err != nil {
				return fmt.Errorf("table %q: %w", name, err)
			}

			mu.Lock()
			fresh[name] = ts
			mu.Unlock()
			slog.Debug("table stats built", "table", name, "tuples", ts.TotalTuples())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		slog.Warn("computing table stats failed", "err", err)
		return err
	}

	r.ReplaceAll(fresh)
	slog.Info("done computing table stats", "tables", len(fresh), "elapsed", time.Since(start))
	return nil
}
