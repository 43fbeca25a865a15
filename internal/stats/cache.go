package stats

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
)

const DefaultCacheEntries = 1024

// EstimateCache memoizes the scan-based estimates (row count and scan cost)
// per table name. Entries live until Invalidate or Clear, or until the cache
// evicts them; a miss simply rescans.
type EstimateCache struct {
	c *ristretto.Cache[string, float64]
}

func NewEstimateCache(entries int64) (*EstimateCache, error) {
	if entries <= 0 {
		entries = DefaultCacheEntries
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, float64]{
		NumCounters: entries * 10,
		MaxCost:     entries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("stats: estimate cache: %w", err)
	}
	return &EstimateCache{c: c}, nil
}

func costKey(table string) string { return "cost/" + table }

func rowsKey(table string) string { return "rows/" + table }

func (ec *EstimateCache) put(key string, v float64) {
	ec.c.Set(key, v, 1)
	ec.c.Wait()
}

// ScanCost returns ts.EstimateScanCost, cached under the table name.
func (ec *EstimateCache) ScanCost(table string, ts *TableStats) (float64, error) {
	if v, ok := ec.c.Get(costKey(table)); ok {
		return v, nil
	}
	cost, err := ts.EstimateScanCost()
	if err != nil {
		return 0, err
	}
	ec.put(costKey(table), cost)
	return cost, nil
}

// Cardinality is ts.EstimateTableCardinality with the row count cached.
func (ec *EstimateCache) Cardinality(table string, ts *TableStats, selectivity float64) (int, error) {
	if v, ok := ec.c.Get(rowsKey(table)); ok {
		return cardinality(int(v), selectivity), nil
	}
	n, err := ts.CountTuples()
	if err != nil {
		return 0, err
	}
	ec.put(rowsKey(table), float64(n))
	return cardinality(n, selectivity), nil
}

// Invalidate drops the cached estimates of one table, e.g. after writes.
func (ec *EstimateCache) Invalidate(table string) {
	ec.c.Del(costKey(table))
	ec.c.Del(rowsKey(table))
}

func (ec *EstimateCache) Clear() { ec.c.Clear() }

func (ec *EstimateCache) Close() { ec.c.Close() }
