package record

import "fmt"

// PageID identifies one page of one table file.
type PageID struct {
	TableID uint64
	PageNo  uint32
}

func (p PageID) String() string {
	return fmt.Sprintf("%x:%d", p.TableID, p.PageNo)
}

// RecordID (record locator) pins a tuple to its on-disk position:
// PageID: page of the heap file
// Slot  : slot index inside that page
type RecordID struct {
	PageID PageID
	Slot   uint16
}

func (r RecordID) String() string {
	return fmt.Sprintf("%s.%d", r.PageID, r.Slot)
}
