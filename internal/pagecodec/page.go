// Package pagecodec implements the slotted-page layout (SPL): pure,
// in-memory functions over a fixed-size page buffer. It never touches a
// file; the paged file manager (internal/pfm) supplies and persists the
// buffers this package interprets.
//
// Layout of a page (PageSize bytes):
//
//	[ r0 | r1 | ... | r(k-1) | free space | slot(k-1) | ... | slot0 | numSlots | freeSpaceOffset ]
//	byte 0                                                                          byte PageSize-1
//
// Records grow forward from byte 0; the slot directory grows backward from
// the trailer. The trailer is the last 4 bytes of the page: numSlots
// (uint16) followed by freeSpaceOffset (uint16), both little-endian. Slot s
// occupies 4 bytes at PageSize-4-(s+1)*4: offset (uint16) then length
// (uint16). An empty slot is (0,0). A tombstone slot has length 0xFFFF and
// its offset points at a 6-byte forwarding RID stored in this same page's
// record region.
package pagecodec

import (
	"encoding/binary"
	"fmt"

	"github.com/pagedb/rbfm/internal/rid"
)

const (
	// PageSize is the fixed size of every page in bytes.
	PageSize = 4096

	trailerSize = 4 // numSlots (2) + freeSpaceOffset (2)
	slotSize    = 4 // offset (2) + length (2)

	// TombstoneLength is the sentinel slot length marking a forwarding
	// pointer rather than a live record.
	TombstoneLength = 0xFFFF

	// TombstonePayloadSize is the size in bytes of the forwarding RID
	// stored at a tombstone's offset.
	TombstonePayloadSize = 6
)

// Slot is a 4-byte directory entry: where a record starts and how long it
// is, or the tombstone sentinel length with an offset into this page's
// forwarding-RID payload.
type Slot struct {
	Offset uint16
	Length uint16
}

// Empty reports whether this is an unused slot, i.e. never allocated or
// freed by delete.
func (s Slot) Empty() bool { return s.Offset == 0 && s.Length == 0 }

// Tombstone reports whether this slot forwards to another location.
func (s Slot) Tombstone() bool { return s.Length == TombstoneLength }

// Page wraps a PageSize-byte buffer with checked accessors for the slotted
// layout. It does not own the buffer's lifetime; callers obtain buf from
// pfm.FileHandle.ReadPage / before pfm.FileHandle.WritePage.
type Page struct {
	buf []byte
}

// Wrap interprets an existing PageSize-byte buffer as a slotted page.
func Wrap(buf []byte) *Page {
	if len(buf) != PageSize {
		panic(fmt.Sprintf("pagecodec: page buffer must be %d bytes, got %d", PageSize, len(buf)))
	}
	return &Page{buf: buf}
}

// New allocates a zeroed, initialized page.
func New() *Page {
	p := &Page{buf: make([]byte, PageSize)}
	p.Init()
	return p
}

// Init zeroes the page and resets it to zero slots and a free-space offset
// of 0, leaving the whole record region free.
func (p *Page) Init() {
	for i := range p.buf {
		p.buf[i] = 0
	}
	p.setNumSlots(0)
	p.setFreeSpaceOffset(0)
}

// Bytes returns the underlying buffer.
func (p *Page) Bytes() []byte { return p.buf }

func (p *Page) numSlotsOff() int      { return PageSize - trailerSize }
func (p *Page) freeSpaceOffOff() int  { return PageSize - 2 }

// NumSlots returns the number of slot-directory entries, including
// tombstones and deleted (empty) slots.
func (p *Page) NumSlots() int {
	return int(binary.LittleEndian.Uint16(p.buf[p.numSlotsOff():]))
}

func (p *Page) setNumSlots(n int) {
	binary.LittleEndian.PutUint16(p.buf[p.numSlotsOff():], uint16(n))
}

// FreeSpaceOffset is the byte offset where the next record will be written.
func (p *Page) FreeSpaceOffset() int {
	return int(binary.LittleEndian.Uint16(p.buf[p.freeSpaceOffOff():]))
}

func (p *Page) setFreeSpaceOffset(off int) {
	binary.LittleEndian.PutUint16(p.buf[p.freeSpaceOffOff():], uint16(off))
}

func (p *Page) slotAddr(s int) int {
	return PageSize - trailerSize - (s+1)*slotSize
}

// Slot returns the directory entry at index s.
func (p *Page) Slot(s int) Slot {
	a := p.slotAddr(s)
	return Slot{
		Offset: binary.LittleEndian.Uint16(p.buf[a:]),
		Length: binary.LittleEndian.Uint16(p.buf[a+2:]),
	}
}

// SetSlot overwrites the directory entry at index s.
func (p *Page) SetSlot(s int, sl Slot) {
	a := p.slotAddr(s)
	binary.LittleEndian.PutUint16(p.buf[a:], sl.Offset)
	binary.LittleEndian.PutUint16(p.buf[a+2:], sl.Length)
}

func (p *Page) slotDirSize() int { return p.NumSlots() * slotSize }

// CanHold reports whether a record of recordSize bytes fits in the page's
// current free region. It conservatively assumes a new slot entry must be
// added; the test still holds when the caller ends up reusing a deleted
// slot instead.
func (p *Page) CanHold(recordSize int) bool {
	return p.FreeSpaceOffset()+recordSize+slotSize <= PageSize-trailerSize-p.slotDirSize()
}

// CanHoldReusingSlot reports whether recordSize bytes fit in the page's free
// region without adding a new slot entry, i.e. the slot directory does not
// grow. Used by update's in-page relocation path, which always reuses the
// record's existing (already-counted) slot.
func (p *Page) CanHoldReusingSlot(recordSize int) bool {
	return p.FreeSpaceOffset()+recordSize <= PageSize-trailerSize-p.slotDirSize()
}

// CanHoldTombstone reports whether a 6-byte forwarding RID fits in the
// page's free region without adding a new slot entry.
func (p *Page) CanHoldTombstone() bool {
	return p.CanHoldReusingSlot(TombstonePayloadSize)
}

// FirstFreeSlot returns the lowest-indexed empty (deleted or never-used
// within an already-allocated range) slot, or -1 if every slot in
// [0, NumSlots) is occupied.
func (p *Page) FirstFreeSlot() int {
	n := p.NumSlots()
	for s := 0; s < n; s++ {
		if p.Slot(s).Empty() {
			return s
		}
	}
	return -1
}

// AppendSlot grows the slot directory by one entry and returns its index.
// The caller is responsible for immediately setting the new slot's value.
func (p *Page) AppendSlot() int {
	n := p.NumSlots()
	p.setNumSlots(n + 1)
	return n
}

// WriteRecord copies data into the page starting at offset.
func (p *Page) WriteRecord(offset int, data []byte) {
	copy(p.buf[offset:offset+len(data)], data)
}

// ReadRecord copies length bytes starting at offset into a fresh slice.
func (p *Page) ReadRecord(offset, length int) []byte {
	out := make([]byte, length)
	copy(out, p.buf[offset:offset+length])
	return out
}

// GrowFreeSpace advances FreeSpaceOffset by n bytes and returns the offset
// at which the caller should write (the value FreeSpaceOffset held before
// the advance).
func (p *Page) GrowFreeSpace(n int) int {
	off := p.FreeSpaceOffset()
	p.setFreeSpaceOffset(off + n)
	return off
}

// MarkDeleted resets slot s to the empty sentinel (0,0).
func (p *Page) MarkDeleted(s int) {
	p.SetSlot(s, Slot{})
}

// CompactAfterRemoval closes a hole of amount bytes opened at start: bytes
// in [start+amount, FreeSpaceOffset) slide down to [start, FreeSpaceOffset-amount),
// FreeSpaceOffset shrinks by amount, and every slot (including tombstones)
// whose offset was greater than start is decremented by amount. Slots equal
// to the empty sentinel (0,0) are left untouched.
func (p *Page) CompactAfterRemoval(start, amount int) {
	if amount <= 0 {
		return
	}
	f := p.FreeSpaceOffset()
	copy(p.buf[start:f-amount], p.buf[start+amount:f])
	p.setFreeSpaceOffset(f - amount)

	n := p.NumSlots()
	for s := 0; s < n; s++ {
		sl := p.Slot(s)
		if sl.Empty() {
			continue
		}
		if int(sl.Offset) > start {
			sl.Offset -= uint16(amount)
			p.SetSlot(s, sl)
		}
	}
}

// WriteTombstone stores a 6-byte forwarding RID at offset.
func (p *Page) WriteTombstone(offset int, fwd rid.RID) {
	binary.LittleEndian.PutUint32(p.buf[offset:], fwd.PageNum)
	binary.LittleEndian.PutUint16(p.buf[offset+4:], fwd.SlotNum)
}

// ReadTombstone reads the 6-byte forwarding RID at offset.
func (p *Page) ReadTombstone(offset int) rid.RID {
	return rid.RID{
		PageNum: binary.LittleEndian.Uint32(p.buf[offset:]),
		SlotNum: binary.LittleEndian.Uint16(p.buf[offset+4:]),
	}
}
