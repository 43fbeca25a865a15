package stats

import (
	"context"
	"errors"
	"fmt"
	"math"

	roaring "github.com/RoaringBitmap/roaring/v2"

	"github.com/tuannm99/novaheap/internal/bufferpool"
	"github.com/tuannm99/novaheap/internal/predicate"
	"github.com/tuannm99/novaheap/internal/record"
)

const (
	DefaultIOCostPerPage = 1000
	// histograms never get fewer buckets than this
	MinHistBins = 100
)

var (
	ErrBadColumn   = errors.New("stats: column index out of range")
	ErrBadConstant = errors.New("stats: constant does not match column type")
)

// Source is a scannable table, usually a *heap.File.
type Source interface {
	ID() uint64
	Schema() record.Schema
	Scan(tx bufferpool.TransactionID, fn func(t *record.Tuple) error) error
}

type Options struct {
	NumHistBins int
	// NewStringStats builds the estimator for string columns.
	// Defaults to a StringHistogram.
	NewStringStats func(bins int) (StringStats, error)
}

func (o Options) withDefaults() Options {
	if o.NumHistBins < MinHistBins {
		o.NumHistBins = MinHistBins
	}
	if o.NewStringStats == nil {
		o.NewStringStats = func(bins int) (StringStats, error) { return NewStringHistogram(bins) }
	}
	return o
}

// TableStats is the planner's view of one table: a histogram per int
// column, a string estimator per string column and the I/O cost per page.
// It is immutable once built.
type TableStats struct {
	tableID       uint64
	src           Source
	schema        record.Schema
	ioCostPerPage int

	ints        []*IntHistogram // nil for string columns
	strs        []StringStats   // nil for int columns
	totalTuples int
}

// Build scans src twice: once for per-column bounds, once to fill the
// histograms. Any scan error aborts the build.
func Build(ctx context.Context, src Source, ioCostPerPage int, opts Options) (*TableStats, error) {
	opts = opts.withDefaults()
	schema := src.Schema()
	n := schema.NumCols()

	ts := &TableStats{
		tableID:       src.ID(),
		src:           src,
		schema:        schema,
		ioCostPerPage: ioCostPerPage,
		ints:          make([]*IntHistogram, n),
		strs:          make([]StringStats, n),
	}

	// pass 1: bounds
	mins := make([]int64, n)
	maxs := make([]int64, n)
	seen := false
	err := scanCtx(ctx, src, func(t *record.Tuple) error {
		for i, c := range schema.Cols {
			if c.Type != record.ColInt {
				continue
			}
			v := int64(t.Int(i))
			if !seen || v < mins[i] {
				mins[i] = v
			}
			if !seen || v > maxs[i] {
				maxs[i] = v
			}
		}
		seen = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("stats: bounds scan of table %x: %w", ts.tableID, err)
	}

	// an empty table gets degenerate [0, 0] histograms
	for i, c := range schema.Cols {
		switch c.Type {
		case record.ColInt:
			ts.ints[i], err = NewIntHistogram(opts.NumHistBins, mins[i], maxs[i])
		default:
			ts.strs[i], err = opts.NewStringStats(opts.NumHistBins)
		}
		if err != nil {
			return nil, fmt.Errorf("stats: column %d: %w", i, err)
		}
	}

	// pass 2: values
	err = scanCtx(ctx, src, func(t *record.Tuple) error {
		for i := range schema.Cols {
			var err error
			if h := ts.ints[i]; h != nil {
				err = h.AddValue(int64(t.Int(i)))
			} else {
				err = ts.strs[i].AddValue(t.Str(i))
			}
			if err != nil {
				return fmt.Errorf("column %d: %w", i, err)
			}
		}
		ts.totalTuples++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("stats: histogram scan of table %x: %w", ts.tableID, err)
	}
	return ts, nil
}

func scanCtx(ctx context.Context, src Source, fn func(t *record.Tuple) error) error {
	tx := bufferpool.NewTransactionID()
	return src.Scan(tx, func(t *record.Tuple) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(t)
	})
}

func (ts *TableStats) TableID() uint64 { return ts.tableID }

func (ts *TableStats) IOCostPerPage() int { return ts.ioCostPerPage }

// EstimateScanCost charges ioCostPerPage for every page that holds at least
// one live tuple. It rescans the table.
func (ts *TableStats) EstimateScanCost() (float64, error) {
	pages := roaring.New()
	err := ts.src.Scan(bufferpool.NewTransactionID(), func(t *record.Tuple) error {
		if t.RID != nil {
			pages.Add(t.RID.PageID.PageNo)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("stats: scan cost: %w", err)
	}
	return float64(pages.GetCardinality()) * float64(ts.ioCostPerPage), nil
}

// CountTuples counts live tuples with a fresh scan.
func (ts *TableStats) CountTuples() (int, error) {
	n := 0
	err := ts.src.Scan(bufferpool.NewTransactionID(), func(*record.Tuple) error {
		n++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("stats: count tuples: %w", err)
	}
	return n, nil
}

// EstimateTableCardinality is floor(current row count * selectivity).
func (ts *TableStats) EstimateTableCardinality(selectivity float64) (int, error) {
	n, err := ts.CountTuples()
	if err != nil {
		return 0, err
	}
	return cardinality(n, selectivity), nil
}

func cardinality(rows int, selectivity float64) int {
	return int(math.Floor(float64(rows) * selectivity))
}

// EstimateSelectivity estimates "column op constant". Int columns take an
// int, int32 or int64 constant; string columns take a string.
func (ts *TableStats) EstimateSelectivity(col int, op predicate.Op, constant any) (float64, error) {
	if col < 0 || col >= ts.schema.NumCols() {
		return 0, fmt.Errorf("%w: %d", ErrBadColumn, col)
	}

	if h := ts.ints[col]; h != nil {
		v, ok := asInt64(constant)
		if !ok {
			return 0, fmt.Errorf("%w: column %d is INT, got %T", ErrBadConstant, col, constant)
		}
		return h.EstimateSelectivity(op, v), nil
	}

	s, ok := constant.(string)
	if !ok {
		return 0, fmt.Errorf("%w: column %d is STRING, got %T", ErrBadConstant, col, constant)
	}
	return ts.strs[col].EstimateSelectivity(op, s), nil
}

// AvgSelectivity is the expected selectivity of "column op ?" when the
// constant is unknown.
func (ts *TableStats) AvgSelectivity(col int, op predicate.Op) float64 {
	if col < 0 || col >= ts.schema.NumCols() {
		return 1.0
	}
	if h := ts.ints[col]; h != nil {
		return h.AvgSelectivity()
	}
	return ts.strs[col].AvgSelectivity()
}

// TotalTuples is the row count seen while building.
func (ts *TableStats) TotalTuples() int { return ts.totalTuples }

// Histogram returns the histogram of an int column.
func (ts *TableStats) Histogram(col int) (*IntHistogram, bool) {
	if col < 0 || col >= len(ts.ints) || ts.ints[col] == nil {
		return nil, false
	}
	return ts.ints[col], true
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	}
	return 0, false
}
