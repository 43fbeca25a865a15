package bufferpool

import (
	"sync/atomic"

	"github.com/tuannm99/novaheap/internal/record"
	"github.com/tuannm99/novaheap/internal/storage"
)

// TransactionID is opaque to the pool; it is recorded per frame and never
// interpreted.
type TransactionID uint64

var lastTxID atomic.Uint64

func NewTransactionID() TransactionID { return TransactionID(lastTxID.Add(1)) }

type Permission uint8

const (
	ReadOnly Permission = iota
	ReadWrite
)

func (p Permission) String() string {
	if p == ReadWrite {
		return "READ_WRITE"
	}
	return "READ_ONLY"
}

// DBFile is the page-level view of a table file that the pool loads from
// and flushes to.
type DBFile interface {
	ID() uint64
	ReadPage(pid record.PageID) (*storage.HeapPage, error)
	WritePage(p *storage.HeapPage) error
}

// FileResolver maps a table id to its file (usually the catalog).
type FileResolver interface {
	DatabaseFile(tableID uint64) (DBFile, error)
}

type Replacer interface {
	RecordAccess(frameID int)
	SetEvictable(frameID int, evictable bool)
	Evict() (frameID int, ok bool)
	Remove(frameID int)
	Size() int
}

type Manager interface {
	GetPage(tx TransactionID, pid record.PageID, perm Permission) (*storage.HeapPage, error)
	Unpin(page *storage.HeapPage, dirty bool) error
	FlushAll() error
}
