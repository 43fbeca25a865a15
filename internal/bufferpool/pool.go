package bufferpool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tuannm99/novaheap/internal/record"
	"github.com/tuannm99/novaheap/internal/storage"
)

var (
	DefaultCapacity = 128

	ErrNoFreeFrame = errors.New("bufferpool: no free frame available (all pinned)")
	ErrPagePinned  = errors.New("bufferpool: page is pinned")
	ErrNoResolver  = errors.New("bufferpool: no file resolver")
)

type Frame struct {
	PageID record.PageID
	Page   *storage.HeapPage
	Dirty  bool
	Pin    int32

	// last accessor, kept for the lock manager that sits above the pool
	LastTx TransactionID
	Perm   Permission
}

var _ Manager = (*Pool)(nil)

// Pool is the shared page cache for every table file. Callers that get the
// same PageID while it is resident receive the same *storage.HeapPage, so
// in-place mutations are visible to all of them.
type Pool struct {
	files FileResolver

	mu        sync.Mutex
	frames    []*Frame              // len == capacity, nil == free slot
	pageTable map[record.PageID]int // PageID -> frame index

	replacementPolicy Replacer
}

func NewPool(files FileResolver, capacity int) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Pool{
		files:             files,
		frames:            make([]*Frame, capacity),
		pageTable:         make(map[record.PageID]int),
		replacementPolicy: newClockReplacer(capacity),
	}
}

// SetResolver wires the file resolver after construction; the catalog and
// the pool usually refer to each other.
func (p *Pool) SetResolver(files FileResolver) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.files = files
}

func (p *Pool) Capacity() int { return len(p.frames) }

func (p *Pool) fileFor(tableID uint64) (DBFile, error) {
	if p.files == nil {
		return nil, ErrNoResolver
	}
	return p.files.DatabaseFile(tableID)
}

func (p *Pool) load(pid record.PageID) (*storage.HeapPage, error) {
	f, err := p.fileFor(pid.TableID)
	if err != nil {
		return nil, err
	}
	return f.ReadPage(pid)
}

func (p *Pool) save(fr *Frame) error {
	f, err := p.fileFor(fr.PageID.TableID)
	if err != nil {
		return err
	}
	if err := f.WritePage(fr.Page); err != nil {
		return fmt.Errorf("flush page %s: %w", fr.PageID, err)
	}
	fr.Dirty = false
	return nil
}

// GetPage pins and returns the page. tx and perm are recorded, not enforced.
func (p *Pool) GetPage(tx TransactionID, pid record.PageID, perm Permission) (*storage.HeapPage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// 1) HIT
	if idx, ok := p.pageTable[pid]; ok {
		f := p.frames[idx]
		if f == nil {
			// Inconsistent: mapping exists but frame is nil -> cleanup
			delete(p.pageTable, pid)
		} else {
			wasZero := f.Pin == 0
			f.Pin++
			f.LastTx, f.Perm = tx, perm

			p.replacementPolicy.RecordAccess(idx)
			if wasZero {
				p.replacementPolicy.SetEvictable(idx, false)
			}
			return f.Page, nil
		}
	}

	// 2) Find free slot
	freeIdx := -1
	for i, f := range p.frames {
		if f == nil {
			freeIdx = i
			break
		}
	}
	if freeIdx != -1 {
		page, err := p.load(pid)
		if err != nil {
			return nil, err
		}
		p.install(freeIdx, &Frame{PageID: pid, Page: page, Pin: 1, LastTx: tx, Perm: perm})
		return page, nil
	}

	// 3) Evict
	victimIdx, ok := p.replacementPolicy.Evict()
	if !ok {
		return nil, ErrNoFreeFrame
	}

	victim := p.frames[victimIdx]
	if victim == nil || victim.Pin != 0 {
		return nil, ErrNoFreeFrame
	}

	if victim.Dirty {
		if err := p.save(victim); err != nil {
			// Put victim back as evictable
			p.replacementPolicy.RecordAccess(victimIdx)
			p.replacementPolicy.SetEvictable(victimIdx, true)
			return nil, err
		}
	}

	page, err := p.load(pid)
	if err != nil {
		p.replacementPolicy.RecordAccess(victimIdx)
		p.replacementPolicy.SetEvictable(victimIdx, true)
		return nil, err
	}

	delete(p.pageTable, victim.PageID)
	p.install(victimIdx, &Frame{PageID: pid, Page: page, Pin: 1, LastTx: tx, Perm: perm})
	return page, nil
}

func (p *Pool) install(idx int, f *Frame) {
	p.frames[idx] = f
	p.pageTable[f.PageID] = idx
	p.replacementPolicy.RecordAccess(idx)
	p.replacementPolicy.SetEvictable(idx, false)
}

func (p *Pool) Unpin(page *storage.HeapPage, dirty bool) error {
	if page == nil {
		return nil
	}
	pid := page.ID()

	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.pageTable[pid]
	if !ok {
		return nil
	}
	f := p.frames[idx]
	if f == nil {
		return nil
	}

	if dirty {
		f.Dirty = true
	}
	if f.Pin > 0 {
		f.Pin--
		if f.Pin == 0 {
			p.replacementPolicy.SetEvictable(idx, true)
		}
	}
	return nil
}

// FlushPage writes one resident dirty page back to its file.
func (p *Pool) FlushPage(pid record.PageID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.pageTable[pid]
	if !ok {
		return nil
	}
	f := p.frames[idx]
	if f == nil || !f.Dirty {
		return nil
	}
	return p.save(f)
}

func (p *Pool) FlushAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, f := range p.frames {
		if f == nil || !f.Dirty {
			continue
		}
		if err := p.save(f); err != nil {
			return err
		}
	}
	return nil
}

// DiscardPage flushes the page if dirty and drops it from the pool, so the
// next GetPage reads it from disk again.
func (p *Pool) DiscardPage(pid record.PageID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.pageTable[pid]
	if !ok {
		return nil
	}

	f := p.frames[idx]
	if f == nil {
		delete(p.pageTable, pid)
		p.replacementPolicy.Remove(idx)
		return nil
	}
	if f.Pin != 0 {
		return ErrPagePinned
	}
	if f.Dirty {
		if err := p.save(f); err != nil {
			return err
		}
	}

	p.frames[idx] = nil
	delete(p.pageTable, pid)
	p.replacementPolicy.Remove(idx)
	return nil
}

// DiscardTable drops every unpinned page of one table.
func (p *Pool) DiscardTable(tableID uint64) error {
	p.mu.Lock()
	var pids []record.PageID
	for pid := range p.pageTable {
		if pid.TableID == tableID {
			pids = append(pids, pid)
		}
	}
	p.mu.Unlock()

	for _, pid := range pids {
		if err := p.DiscardPage(pid); err != nil {
			return err
		}
	}
	return nil
}

// Holder reports the last transaction and permission that fetched pid.
func (p *Pool) Holder(pid record.PageID) (TransactionID, Permission, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.pageTable[pid]
	if !ok || p.frames[idx] == nil {
		return 0, ReadOnly, false
	}
	f := p.frames[idx]
	return f.LastTx, f.Perm, true
}
