package exec

import (
	"errors"

	"github.com/tuannm99/novaheap/internal/heap"
	"github.com/tuannm99/novaheap/internal/record"
)

var (
	ErrNotOpen        = errors.New("exec: iterator not open")
	ErrNoMoreElements = errors.New("exec: no more tuples")
)

// TupleIterator is the child contract of every operator. *heap.Iterator
// satisfies it.
type TupleIterator interface {
	Open() error
	HasNext() (bool, error)
	Next() (*record.Tuple, error)
	Close()
}

var (
	_ TupleIterator = (*heap.Iterator)(nil)
	_ TupleIterator = (*SliceIterator)(nil)
)

// SliceIterator replays a fixed list of tuples.
type SliceIterator struct {
	tuples []*record.Tuple
	pos    int
	isOpen bool
}

func NewSliceIterator(tuples ...*record.Tuple) *SliceIterator {
	return &SliceIterator{tuples: tuples}
}

func (it *SliceIterator) Open() error {
	it.isOpen = true
	it.pos = 0
	return nil
}

func (it *SliceIterator) HasNext() (bool, error) {
	if !it.isOpen {
		return false, ErrNotOpen
	}
	return it.pos < len(it.tuples), nil
}

func (it *SliceIterator) Next() (*record.Tuple, error) {
	ok, err := it.HasNext()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoMoreElements
	}
	t := it.tuples[it.pos]
	it.pos++
	return t, nil
}

func (it *SliceIterator) Close() { it.isOpen = false }

// drain opens child, collects every tuple and closes it again.
func drain(child TupleIterator) ([]*record.Tuple, error) {
	if err := child.Open(); err != nil {
		return nil, err
	}
	defer child.Close()

	var out []*record.Tuple
	for {
		ok, err := child.HasNext()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		t, err := child.Next()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
}
