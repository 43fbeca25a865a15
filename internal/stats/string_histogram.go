package stats

import "github.com/tuannm99/novaheap/internal/predicate"

// StringStats estimates selectivity for fixed-length string columns.
type StringStats interface {
	AddValue(s string) error
	EstimateSelectivity(op predicate.Op, s string) float64
	AvgSelectivity() float64
}

// StringHistogram maps each string to an int from its first four bytes and
// keeps an IntHistogram over the range ["", "zzzz"].
type StringHistogram struct {
	hist *IntHistogram
}

var _ StringStats = (*StringHistogram)(nil)

var (
	minStringKey = stringKey("")
	maxStringKey = stringKey("zzzz")
)

func NewStringHistogram(buckets int) (*StringHistogram, error) {
	h, err := NewIntHistogram(buckets, minStringKey, maxStringKey)
	if err != nil {
		return nil, err
	}
	return &StringHistogram{hist: h}, nil
}

// stringKey packs up to the first four bytes big-end first, so the ordering
// of keys follows the byte ordering of prefixes.
func stringKey(s string) int64 {
	var v int64
	for i := 3; i >= 0; i-- {
		if len(s) > 3-i {
			v += int64(s[3-i]) << (uint(i) * 8)
		}
	}
	return v
}

func clampKey(s string) int64 {
	k := stringKey(s)
	if k < minStringKey {
		return minStringKey
	}
	if k > maxStringKey {
		return maxStringKey
	}
	return k
}

func (h *StringHistogram) AddValue(s string) error {
	return h.hist.AddValue(clampKey(s))
}

// EstimateSelectivity estimates on the packed prefix. LIKE has no
// prefix-based estimate and returns AvgSelectivity.
func (h *StringHistogram) EstimateSelectivity(op predicate.Op, s string) float64 {
	if op == predicate.Like {
		return h.AvgSelectivity()
	}
	return h.hist.EstimateSelectivity(op, clampKey(s))
}

func (h *StringHistogram) AvgSelectivity() float64 { return h.hist.AvgSelectivity() }

func (h *StringHistogram) Total() int64 { return h.hist.Total() }
