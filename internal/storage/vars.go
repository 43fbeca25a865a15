package storage

import (
	"errors"
	"fmt"
	"sync/atomic"
)

const (
	OneKB = 1 << 10 // 1,024

	DefaultPageSize = 4 * OneKB // 4,096
	MaxPageSize     = 64 * OneKB
)

const (
	FileMode0644 = 0o644
	FileMode0755 = 0o755
)

var (
	ErrWrongSize      = errors.New("page: buffer size != PageSize")
	ErrPageFull       = errors.New("page: no empty slot")
	ErrSchemaMismatch = errors.New("page: tuple schema does not match page schema")
	ErrTupleNotFound  = errors.New("page: tuple not on this page")
	ErrBadSlot        = errors.New("page: invalid slot")
	ErrCorruption     = errors.New("page: corrupt slot data")
	ErrBadPageSize    = errors.New("page: invalid page size")
)

// pageSize is shared by every table file in the process.
var pageSize atomic.Int64

func init() {
	pageSize.Store(DefaultPageSize)
}

func PageSize() int { return int(pageSize.Load()) }

// SetPageSize changes the process-wide page size. Existing files written
// with a different size become unreadable, so call it before opening tables.
func SetPageSize(n int) error {
	if n <= 0 || n > MaxPageSize {
		return fmt.Errorf("%w: %d", ErrBadPageSize, n)
	}
	pageSize.Store(int64(n))
	return nil
}

func ResetPageSize() { pageSize.Store(DefaultPageSize) }
