// Package rid defines the record identifier shared by the page codec, the
// record-based file manager, and the relation manager.
package rid

import "fmt"

// RID addresses a record by the page it lives on and its slot within that
// page's slot directory. A RID is stable for the lifetime of the record it
// names: updates that relocate the payload rewrite the slot at this RID into
// a tombstone rather than changing the RID itself.
type RID struct {
	PageNum uint32
	SlotNum uint16
}

func (r RID) String() string {
	return fmt.Sprintf("%d.%d", r.PageNum, r.SlotNum)
}
