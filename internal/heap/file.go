package heap

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/tuannm99/novaheap/internal/bufferpool"
	"github.com/tuannm99/novaheap/internal/record"
	"github.com/tuannm99/novaheap/internal/storage"
)

// PageCache is the page-level cache every insert, delete and scan goes
// through, so all callers share one coherent page object per PageID.
type PageCache interface {
	GetPage(tx bufferpool.TransactionID, pid record.PageID, perm bufferpool.Permission) (*storage.HeapPage, error)
	Unpin(page *storage.HeapPage, dirty bool) error
}

// File is a heap file: one OS file holding a flat sequence of fixed-size
// pages for one table. Page n lives at byte offset n * storage.PageSize().
type File struct {
	path   string
	id     uint64
	schema record.Schema
	cache  PageCache

	f *os.File
	// serializes appends so each extension adds exactly one page
	extendMu sync.Mutex
}

var _ bufferpool.DBFile = (*File)(nil)

// Open opens or creates the heap file at path.
func Open(path string, schema record.Schema, cache PageCache) (*File, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if storage.SlotsPerPage(schema) == 0 {
		return nil, fmt.Errorf("%w: tuple width %d does not fit page size %d",
			storage.ErrSchemaMismatch, schema.Width(), storage.PageSize())
	}

	if err := os.MkdirAll(filepath.Dir(path), storage.FileMode0755); err != nil {
		return nil, ioErr("create dir", err)
	}
	// RDWR | CREATE (no truncate)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, storage.FileMode0644)
	if err != nil {
		return nil, ioErr("open", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, ioErr("stat", err)
	}
	if info.Size()%int64(storage.PageSize()) != 0 {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s has %d bytes", ErrBadFileLength, path, info.Size())
	}

	id, err := TableIDForPath(path)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	return &File{path: path, id: id, schema: schema, cache: cache, f: f}, nil
}

// TableIDForPath derives a stable table id from the canonical path of an
// existing file.
func TableIDForPath(path string) (uint64, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, ioErr("abs path", err)
	}
	canon, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return 0, ioErr("canonical path", err)
	}
	return xxhash.Sum64String(canon), nil
}

func (hf *File) ID() uint64 { return hf.id }

func (hf *File) Path() string { return hf.path }

func (hf *File) Schema() record.Schema { return hf.schema }

func (hf *File) Close() error {
	if err := hf.f.Close(); err != nil {
		return ioErr("close", err)
	}
	return nil
}

func (hf *File) pageID(n int) record.PageID {
	return record.PageID{TableID: hf.id, PageNo: uint32(n)}
}

// PageCount is file length / page size.
func (hf *File) PageCount() (int, error) {
	info, err := hf.f.Stat()
	if err != nil {
		return 0, ioErr("stat", err)
	}
	return int(info.Size() / int64(storage.PageSize())), nil
}

// ReadPage reads and decodes one page straight from disk. It is the
// pool's loader; everything else should go through the page cache.
func (hf *File) ReadPage(pid record.PageID) (*storage.HeapPage, error) {
	if pid.TableID != hf.id {
		return nil, fmt.Errorf("%w: %s", ErrWrongTable, pid)
	}
	n, err := hf.PageCount()
	if err != nil {
		return nil, err
	}
	if int64(pid.PageNo) >= int64(n) {
		return nil, fmt.Errorf("%w: page %d of %d", ErrPageOutOfRange, pid.PageNo, n)
	}

	ps := storage.PageSize()
	buf := make([]byte, ps)
	if _, err := hf.f.ReadAt(buf, int64(pid.PageNo)*int64(ps)); err != nil {
		return nil, ioErr(fmt.Sprintf("read page %d", pid.PageNo), err)
	}
	return storage.NewHeapPage(pid, hf.schema, buf)
}

// WritePage writes the full encoded page at its offset.
func (hf *File) WritePage(p *storage.HeapPage) error {
	pid := p.ID()
	if pid.TableID != hf.id {
		return fmt.Errorf("%w: %s", ErrWrongTable, pid)
	}
	data, err := p.Bytes()
	if err != nil {
		return err
	}

	n, err := hf.f.WriteAt(data, int64(pid.PageNo)*int64(storage.PageSize()))
	if err != nil {
		return ioErr(fmt.Sprintf("write page %d", pid.PageNo), err)
	}
	if n != len(data) {
		return ioErr(fmt.Sprintf("write page %d", pid.PageNo), io.ErrShortWrite)
	}
	return nil
}

// appendEmptyPage grows the file by one all-zero page and returns its number.
func (hf *File) appendEmptyPage() (int, error) {
	hf.extendMu.Lock()
	defer hf.extendMu.Unlock()

	n, err := hf.PageCount()
	if err != nil {
		return 0, err
	}
	ps := storage.PageSize()
	if _, err := hf.f.WriteAt(storage.NewEmptyPageData(), int64(n)*int64(ps)); err != nil {
		return 0, ioErr(fmt.Sprintf("extend to page %d", n), err)
	}
	slog.Debug("heap: extended file", "path", hf.path, "page", n)
	return n, nil
}

// InsertTuple places t in the first page with a free slot, appending a new
// page when every page is full, and writes the dirtied page back. If the
// write fails the slot is released again and t.RID is cleared.
func (hf *File) InsertTuple(tx bufferpool.TransactionID, t *record.Tuple) ([]*storage.HeapPage, error) {
	p, err := hf.insertInPlace(tx, t)
	if err != nil {
		return nil, err
	}
	if werr := hf.WritePage(p); werr != nil {
		// undo the slot so the cached page matches disk again
		if err := p.DeleteTuple(t); err != nil {
			slog.Error("heap: rollback of failed insert", "page", p.ID().String(), "err", err)
		}
		_ = hf.cache.Unpin(p, false)
		return nil, werr
	}
	_ = hf.cache.Unpin(p, false)
	return []*storage.HeapPage{p}, nil
}

// insertInPlace mutates the cached page only. The returned page is pinned.
func (hf *File) insertInPlace(tx bufferpool.TransactionID, t *record.Tuple) (*storage.HeapPage, error) {
	if !t.Schema.Equal(hf.schema) {
		return nil, storage.ErrSchemaMismatch
	}

	n, err := hf.PageCount()
	if err != nil {
		return nil, err
	}

	// first fit, ascending page number
	for i := 0; i < n; i++ {
		p, err := hf.cache.GetPage(tx, hf.pageID(i), bufferpool.ReadWrite)
		if err != nil {
			return nil, err
		}
		if p.NumEmptySlots() > 0 {
			err := p.InsertTuple(t)
			if err == nil {
				return p, nil
			}
			if !errors.Is(err, storage.ErrPageFull) {
				_ = hf.cache.Unpin(p, false)
				return nil, err
			}
		}
		_ = hf.cache.Unpin(p, false)
	}

	newNo, err := hf.appendEmptyPage()
	if err != nil {
		return nil, err
	}
	p, err := hf.cache.GetPage(tx, hf.pageID(newNo), bufferpool.ReadWrite)
	if err != nil {
		return nil, err
	}
	if err := p.InsertTuple(t); err != nil {
		_ = hf.cache.Unpin(p, false)
		if errors.Is(err, storage.ErrPageFull) {
			return nil, fmt.Errorf("%w: page %d", ErrNoRoom, newNo)
		}
		return nil, err
	}
	return p, nil
}

// DeleteTuple clears the slot named by t.RID and writes the page back. If
// the write fails the tuple is put back and t.RID restored.
func (hf *File) DeleteTuple(tx bufferpool.TransactionID, t *record.Tuple) ([]*storage.HeapPage, error) {
	if t.RID == nil {
		return nil, fmt.Errorf("%w: tuple has no record id", ErrTupleNotFound)
	}
	rid := *t.RID
	if rid.PageID.TableID != hf.id {
		return nil, fmt.Errorf("%w: %s is not in table %x", ErrTupleNotFound, rid, hf.id)
	}

	p, err := hf.cache.GetPage(tx, rid.PageID, bufferpool.ReadWrite)
	if err != nil {
		return nil, err
	}
	if err := p.DeleteTuple(t); err != nil {
		_ = hf.cache.Unpin(p, false)
		if errors.Is(err, storage.ErrTupleNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTupleNotFound, rid)
		}
		return nil, err
	}

	if werr := hf.WritePage(p); werr != nil {
		if err := p.RestoreTuple(t, int(rid.Slot)); err != nil {
			slog.Error("heap: rollback of failed delete", "rid", rid.String(), "err", err)
		}
		_ = hf.cache.Unpin(p, false)
		return nil, werr
	}
	_ = hf.cache.Unpin(p, false)
	return []*storage.HeapPage{p}, nil
}

// Scan iterates every live tuple in (page, slot) order.
func (hf *File) Scan(tx bufferpool.TransactionID, fn func(t *record.Tuple) error) error {
	it := hf.Iterator(tx)
	if err := it.Open(); err != nil {
		return err
	}
	defer it.Close()

	for {
		ok, err := it.HasNext()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		t, err := it.Next()
		if err != nil {
			return err
		}
		if err := fn(t); err != nil {
			return err
		}
	}
}
