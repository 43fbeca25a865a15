package stats

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tuannm99/novaheap/internal/predicate"
)

var (
	ErrBadHistogram    = errors.New("stats: invalid histogram bounds")
	ErrValueOutOfRange = errors.New("stats: value outside histogram domain")
)

// IntHistogram is an equi-width histogram over [min, max]. It keeps one
// counter per bucket and never retains the values themselves.
type IntHistogram struct {
	buckets int
	min     int64
	max     int64 // exclusive
	width   int64
	counts  []int64
	total   int64
}

// NewIntHistogram builds an empty histogram for values in [min, max].
// The last bucket may cover fewer values than the others.
func NewIntHistogram(buckets int, min, max int64) (*IntHistogram, error) {
	if buckets <= 0 || max < min {
		return nil, fmt.Errorf("%w: buckets=%d min=%d max=%d", ErrBadHistogram, buckets, min, max)
	}
	max++
	b := int64(buckets)
	return &IntHistogram{
		buckets: buckets,
		min:     min,
		max:     max,
		width:   (max - min + b - 1) / b,
		counts:  make([]int64, buckets),
	}, nil
}

func (h *IntHistogram) bucket(v int64) int { return int((v - h.min) / h.width) }

func (h *IntHistogram) AddValue(v int64) error {
	if v < h.min || v >= h.max {
		return fmt.Errorf("%w: %d not in [%d, %d)", ErrValueOutOfRange, v, h.min, h.max)
	}
	h.counts[h.bucket(v)]++
	h.total++
	return nil
}

// EstimateSelectivity estimates the fraction of added values x for which
// "x op v" holds, assuming values are uniform inside each bucket.
func (h *IntHistogram) EstimateSelectivity(op predicate.Op, v int64) float64 {
	switch op {
	case predicate.Equals, predicate.Like:
		return h.equals(v)
	case predicate.NotEquals:
		return 1 - h.equals(v)
	case predicate.GreaterThan:
		return h.greater(v, false)
	case predicate.GreaterThanOrEq:
		return h.greater(v, true)
	case predicate.LessThan:
		return h.less(v, false)
	case predicate.LessThanOrEq:
		return h.less(v, true)
	}
	return h.AvgSelectivity()
}

func (h *IntHistogram) equals(v int64) float64 {
	if v < h.min || v >= h.max || h.total == 0 {
		return 0
	}
	return float64(h.counts[h.bucket(v)]) / float64(h.width) / float64(h.total)
}

func (h *IntHistogram) greater(v int64, orEq bool) float64 {
	if v >= h.max {
		return 0
	}
	if v < h.min {
		return 1
	}
	inc := int64(0)
	if orEq {
		inc = 1
	}
	if h.total == 0 {
		// nothing observed: uniform over the domain
		return float64(h.max-v-1+inc) / float64(h.max-h.min)
	}

	b := h.bucket(v)
	right := int64(b+1)*h.width + h.min
	sel := float64(h.counts[b]) / float64(h.total) * (float64(right-v-1+inc) / float64(h.width))
	for i := b + 1; i < h.buckets; i++ {
		sel += float64(h.counts[i]) / float64(h.total)
	}
	return sel
}

func (h *IntHistogram) less(v int64, orEq bool) float64 {
	if v < h.min {
		return 0
	}
	if v >= h.max {
		return 1
	}
	inc := int64(0)
	if orEq {
		inc = 1
	}
	if h.total == 0 {
		return float64(v-h.min+inc) / float64(h.max-h.min)
	}

	b := h.bucket(v)
	left := int64(b)*h.width + h.min
	sel := float64(h.counts[b]) / float64(h.total) * (float64(v-left+inc) / float64(h.width))
	for i := 0; i < b; i++ {
		sel += float64(h.counts[i]) / float64(h.total)
	}
	return sel
}

// AvgSelectivity is the fallback when no value-specific estimate applies.
func (h *IntHistogram) AvgSelectivity() float64 { return 1.0 }

func (h *IntHistogram) Buckets() int { return h.buckets }

func (h *IntHistogram) Width() int64 { return h.width }

// Min and Max report the inclusive domain.
func (h *IntHistogram) Min() int64 { return h.min }

func (h *IntHistogram) Max() int64 { return h.max - 1 }

func (h *IntHistogram) Total() int64 { return h.total }

func (h *IntHistogram) Counts() []int64 {
	out := make([]int64, len(h.counts))
	copy(out, h.counts)
	return out
}

func (h *IntHistogram) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "hist[min=%d max=%d width=%d total=%d]", h.min, h.max-1, h.width, h.total)
	for _, c := range h.counts {
		sb.WriteByte('\t')
		sb.WriteString(strconv.FormatInt(c, 10))
	}
	return sb.String()
}
