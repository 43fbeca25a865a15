package heap

import (
	"errors"
	"fmt"
)

var (
	ErrPageOutOfRange = errors.New("heap: page number out of range")
	ErrNoRoom         = errors.New("heap: fresh page cannot hold tuple")
	ErrTupleNotFound  = errors.New("heap: tuple not found")
	ErrIO             = errors.New("heap: I/O failure")
	ErrWrongTable     = errors.New("heap: page belongs to another table")
	ErrBadFileLength  = errors.New("heap: file length is not a multiple of page size")

	ErrIteratorClosed = errors.New("heap: iterator not open")
	ErrNoSuchElement  = errors.New("heap: no more tuples")
)

func ioErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrIO, op, err)
}
