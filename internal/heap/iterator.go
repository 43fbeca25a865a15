package heap

import (
	"github.com/tuannm99/novaheap/internal/bufferpool"
	"github.com/tuannm99/novaheap/internal/record"
)

// Iterator walks a heap file in (page asc, slot asc) order through the page
// cache. Rewind is Close followed by Open; no position survives Close.
type Iterator struct {
	file *File
	tx   bufferpool.TransactionID

	isOpen  bool
	next    int             // next page to load
	pending []*record.Tuple // rest of the current page
}

func (hf *File) Iterator(tx bufferpool.TransactionID) *Iterator {
	return &Iterator{file: hf, tx: tx}
}

// Open positions the cursor before page 0.
func (it *Iterator) Open() error {
	if _, err := it.file.PageCount(); err != nil {
		return err
	}
	it.isOpen = true
	it.next = 0
	it.pending = nil
	return nil
}

func (it *Iterator) loadPage(n int) error {
	p, err := it.file.cache.GetPage(it.tx, it.file.pageID(n), bufferpool.ReadOnly)
	if err != nil {
		return err
	}
	it.pending = p.Tuples()
	_ = it.file.cache.Unpin(p, false)
	it.next = n + 1
	return nil
}

// HasNext advances across empty pages until a tuple is found or the file
// is exhausted.
func (it *Iterator) HasNext() (bool, error) {
	if !it.isOpen {
		return false, ErrIteratorClosed
	}
	for len(it.pending) == 0 {
		n, err := it.file.PageCount()
		if err != nil {
			return false, err
		}
		if it.next >= n {
			return false, nil
		}
		if err := it.loadPage(it.next); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (it *Iterator) Next() (*record.Tuple, error) {
	ok, err := it.HasNext()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoSuchElement
	}
	t := it.pending[0]
	it.pending = it.pending[1:]
	return t, nil
}

func (it *Iterator) Rewind() error {
	it.Close()
	return it.Open()
}

func (it *Iterator) Close() {
	it.isOpen = false
	it.next = 0
	it.pending = nil
}
