// Package rbfm implements the Record-Based File Manager: insert, read,
// update, delete, readAttribute, and a filtered/projected scan over tuples
// stored in slotted pages (internal/pagecodec) materialized through a
// paged file (internal/pfm). Every exported function takes an explicit
// *pfm.FileHandle and tuple.Descriptor; there is no global state, so a
// process may hold many files open at once, each manipulated independently.
package rbfm

import (
	"errors"
	"fmt"
	"io"

	"github.com/pagedb/rbfm/internal/pagecodec"
	"github.com/pagedb/rbfm/internal/pfm"
	"github.com/pagedb/rbfm/internal/rid"
	"github.com/pagedb/rbfm/internal/tuple"
)

// RID is the externally visible, stable record identifier.
type RID = rid.RID

var (
	// ErrRecordTooLarge is returned when a tuple cannot fit on a single page
	// even on an empty page.
	ErrRecordTooLarge = errors.New("rbfm: record too large for a page")
	// ErrRecordDeleted is returned by Read/Update/ReadAttribute when a slot's
	// live length is 0. Delete treats such a slot as a no-op instead.
	ErrRecordDeleted = errors.New("rbfm: record deleted")
	// ErrOutOfRange is returned for a RID whose page or slot number is
	// outside the file's current bounds.
	ErrOutOfRange = errors.New("rbfm: RID out of range")
	// ErrNoSpaceForTombstone is returned when update grows a record and
	// neither the original nor the new-location placement can hold the
	// 6-byte forwarding pointer.
	ErrNoSpaceForTombstone = errors.New("rbfm: no space for tombstone")
)

func readPage(fh *pfm.FileHandle, p uint32) (*pagecodec.Page, error) {
	buf := make([]byte, pfm.PageSize)
	if err := fh.ReadPage(p, buf); err != nil {
		return nil, err
	}
	return pagecodec.Wrap(buf), nil
}

func writePage(fh *pfm.FileHandle, p uint32, pg *pagecodec.Page) error {
	return fh.WritePage(p, pg.Bytes())
}

// Insert places data (already encoded per d's wire format) on the last page
// if it fits there, else the first earlier page that fits, else a freshly
// appended page, and returns the record's new, stable RID.
func Insert(fh *pfm.FileHandle, d tuple.Descriptor, data []byte) (RID, error) {
	size, err := tuple.EncodedSize(d, data)
	if err != nil {
		return RID{}, err
	}
	// A brand new slot plus this record must fit on an otherwise-empty page.
	if size+4 > pagecodec.PageSize-4-2 {
		return RID{}, fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, size)
	}

	target, pg, err := selectInsertTarget(fh, size)
	if err != nil {
		return RID{}, err
	}

	s := pg.FirstFreeSlot()
	if s < 0 {
		s = pg.AppendSlot()
	}
	off := pg.GrowFreeSpace(size)
	pg.WriteRecord(off, data)
	pg.SetSlot(s, pagecodec.Slot{Offset: uint16(off), Length: uint16(size)})

	if err := writePage(fh, target, pg); err != nil {
		return RID{}, err
	}
	return RID{PageNum: target, SlotNum: uint16(s)}, nil
}

// selectInsertTarget implements the tie-break rule: try the last page
// first, then scan earlier pages from 0, else append a fresh page.
func selectInsertTarget(fh *pfm.FileHandle, size int) (uint32, *pagecodec.Page, error) {
	count := fh.PageCount()
	if count == 0 {
		pg := pagecodec.New()
		if err := fh.AppendPage(pg.Bytes()); err != nil {
			return 0, nil, err
		}
		count = 1
	}

	last := count - 1
	lastPage, err := readPage(fh, last)
	if err != nil {
		return 0, nil, err
	}
	if lastPage.CanHold(size) {
		return last, lastPage, nil
	}

	for p := uint32(0); p < last; p++ {
		pg, err := readPage(fh, p)
		if err != nil {
			return 0, nil, err
		}
		if pg.CanHold(size) {
			return p, pg, nil
		}
	}

	pg := pagecodec.New()
	if err := fh.AppendPage(pg.Bytes()); err != nil {
		return 0, nil, err
	}
	return fh.PageCount() - 1, pg, nil
}

func validateRID(fh *pfm.FileHandle, r RID) error {
	if r.PageNum >= fh.PageCount() {
		return fmt.Errorf("%w: page %d", ErrOutOfRange, r.PageNum)
	}
	return nil
}

// resolve follows tombstones starting from rid until it finds a page/slot
// whose slot is not a tombstone (either empty/deleted or a live record).
// It returns the authoritative page, slot index, and that page's number.
func resolve(fh *pfm.FileHandle, r RID) (*pagecodec.Page, int, uint32, error) {
	for {
		if err := validateRID(fh, r); err != nil {
			return nil, 0, 0, err
		}
		pg, err := readPage(fh, r.PageNum)
		if err != nil {
			return nil, 0, 0, err
		}
		if int(r.SlotNum) >= pg.NumSlots() {
			return nil, 0, 0, fmt.Errorf("%w: slot %d", ErrOutOfRange, r.SlotNum)
		}
		sl := pg.Slot(int(r.SlotNum))
		if !sl.Tombstone() {
			return pg, int(r.SlotNum), r.PageNum, nil
		}
		r = pg.ReadTombstone(int(sl.Offset))
	}
}

// Read follows any tombstone chain starting at rid and copies the
// authoritative record's bytes into out.
func Read(fh *pfm.FileHandle, rid RID, out *[]byte) error {
	pg, s, _, err := resolve(fh, rid)
	if err != nil {
		return err
	}
	sl := pg.Slot(s)
	if sl.Empty() {
		return ErrRecordDeleted
	}
	*out = pg.ReadRecord(int(sl.Offset), int(sl.Length))
	return nil
}

// ReadAttribute follows tombstones as Read does, then extracts a single
// named attribute, writing [1-byte null indicator][field bytes] to out.
func ReadAttribute(fh *pfm.FileHandle, d tuple.Descriptor, rid RID, attrName string, out *[]byte) error {
	pg, s, _, err := resolve(fh, rid)
	if err != nil {
		return err
	}
	sl := pg.Slot(s)
	if sl.Empty() {
		return ErrRecordDeleted
	}
	idx := d.IndexOf(attrName)
	if idx < 0 {
		return fmt.Errorf("rbfm: unknown attribute %q", attrName)
	}
	raw := pg.ReadRecord(int(sl.Offset), int(sl.Length))
	scratch, err := tuple.ExtractOne(d, raw, len(raw), idx, nil)
	if err != nil {
		return err
	}
	*out = scratch
	return nil
}

// Delete removes the record named by rid. If rid's slot is a tombstone, the
// forwarded record is deleted first and then the tombstone's own 6-byte
// payload is compacted out of the original page. Deleting an
// already-deleted RID is a no-op returning nil.
func Delete(fh *pfm.FileHandle, rid RID) error {
	if err := validateRID(fh, rid); err != nil {
		return err
	}
	pg, err := readPage(fh, rid.PageNum)
	if err != nil {
		return err
	}
	if int(rid.SlotNum) >= pg.NumSlots() {
		return fmt.Errorf("%w: slot %d", ErrOutOfRange, rid.SlotNum)
	}
	s := int(rid.SlotNum)
	sl := pg.Slot(s)

	if sl.Empty() {
		return nil
	}
	if sl.Tombstone() {
		fwd := pg.ReadTombstone(int(sl.Offset))
		if err := Delete(fh, fwd); err != nil {
			return err
		}
		pg.CompactAfterRemoval(int(sl.Offset), pagecodec.TombstonePayloadSize)
		pg.MarkDeleted(s)
		return writePage(fh, rid.PageNum, pg)
	}

	pg.CompactAfterRemoval(int(sl.Offset), int(sl.Length))
	pg.MarkDeleted(s)
	return writePage(fh, rid.PageNum, pg)
}

// Update rewrites the record named by rid with newData, which must already
// be encoded per d's wire format. rid continues to read newData afterwards
// regardless of whether the new payload fit in place, fit after compacting
// the same page, or had to relocate to another page behind a tombstone.
func Update(fh *pfm.FileHandle, d tuple.Descriptor, rid RID, newData []byte) error {
	if err := validateRID(fh, rid); err != nil {
		return err
	}
	pg, err := readPage(fh, rid.PageNum)
	if err != nil {
		return err
	}
	if int(rid.SlotNum) >= pg.NumSlots() {
		return fmt.Errorf("%w: slot %d", ErrOutOfRange, rid.SlotNum)
	}
	s := int(rid.SlotNum)
	sl := pg.Slot(s)

	if sl.Empty() {
		return ErrRecordDeleted
	}
	if sl.Tombstone() {
		fwd := pg.ReadTombstone(int(sl.Offset))
		return Update(fh, d, fwd, newData)
	}

	newSize, err := tuple.EncodedSize(d, newData)
	if err != nil {
		return err
	}

	if newSize <= int(sl.Length) {
		return updateShrinkOrEqual(fh, rid.PageNum, pg, s, sl, newData, newSize)
	}
	return updateGrow(fh, d, rid.PageNum, pg, s, sl, newData, newSize)
}

func updateShrinkOrEqual(fh *pfm.FileHandle, pageNum uint32, pg *pagecodec.Page, s int, sl pagecodec.Slot, newData []byte, newSize int) error {
	pg.WriteRecord(int(sl.Offset), newData)
	if diff := int(sl.Length) - newSize; diff > 0 {
		pg.CompactAfterRemoval(int(sl.Offset)+newSize, diff)
	}
	pg.SetSlot(s, pagecodec.Slot{Offset: sl.Offset, Length: uint16(newSize)})
	return writePage(fh, pageNum, pg)
}

// updateGrow implements the §4.6 Case B algorithm: eagerly compact out the
// old payload, then try to reuse the same slot in the freed space on this
// page; only if that fails does it call Insert (which cannot claim slot s,
// since slot s still holds its stale non-empty entry) and tombstone this
// slot to the result.
func updateGrow(fh *pfm.FileHandle, d tuple.Descriptor, pageNum uint32, pg *pagecodec.Page, s int, sl pagecodec.Slot, newData []byte, newSize int) error {
	pg.CompactAfterRemoval(int(sl.Offset), int(sl.Length))
	// Slot s is deliberately left holding its stale (now-invalid) offset and
	// length rather than the empty sentinel: the inner Insert call below
	// must never be able to claim slot s as a reusable hole, or the
	// tombstone written at the end of this function would forward to
	// itself. Both branches below overwrite slot s with real content before
	// returning, so the stale value is never observed by a reader.

	if pg.CanHoldReusingSlot(newSize) {
		off := pg.GrowFreeSpace(newSize)
		pg.WriteRecord(off, newData)
		pg.SetSlot(s, pagecodec.Slot{Offset: uint16(off), Length: uint16(newSize)})
		return writePage(fh, pageNum, pg)
	}

	// The tombstone must fit on this page; check before anything is written
	// so a failure leaves the page on disk untouched.
	if !pg.CanHoldTombstone() {
		return ErrNoSpaceForTombstone
	}
	if err := writePage(fh, pageNum, pg); err != nil {
		return err
	}

	newRID, err := Insert(fh, d, newData)
	if err != nil {
		return err
	}

	pg, err = readPage(fh, pageNum)
	if err != nil {
		return err
	}
	if !pg.CanHoldTombstone() {
		return ErrNoSpaceForTombstone
	}
	off := pg.GrowFreeSpace(pagecodec.TombstonePayloadSize)
	pg.WriteTombstone(off, newRID)
	pg.SetSlot(s, pagecodec.Slot{Offset: uint16(off), Length: pagecodec.TombstoneLength})
	return writePage(fh, pageNum, pg)
}

// Scanner walks every live record in a file in (page, slot) order, applying
// an optional single-attribute predicate and projection to each. It takes a
// snapshot of the file's page count at construction time: pages appended by
// inserts that happen during the scan are not visited, matching the
// "stable as of Open" semantics a single-mutator engine can offer cheaply.
type Scanner struct {
	fh        *pfm.FileHandle
	d         tuple.Descriptor
	condAttr  string
	op        tuple.CompOp
	value     tuple.Value
	proj      []string
	pageCount uint32
	page      uint32
	slot      int
	cur       *pagecodec.Page
}

// OpenScan constructs a Scanner over fh. condAttr == "" or op == tuple.NoOp
// means "no predicate, every live record matches". proj == nil means
// "return the full tuple, unprojected".
func OpenScan(fh *pfm.FileHandle, d tuple.Descriptor, condAttr string, op tuple.CompOp, value tuple.Value, proj []string) *Scanner {
	return &Scanner{
		fh:        fh,
		d:         d,
		condAttr:  condAttr,
		op:        op,
		value:     value,
		proj:      proj,
		pageCount: fh.PageCount(),
		page:      0,
		slot:      0,
	}
}

// Next advances to the next matching live record, writes its RID to *outRID
// and its (possibly projected) bytes to *outData, and returns nil. It
// returns io.EOF once every page in the scan's snapshot has been visited.
// Tombstone slots are skipped in place: Scan never chases a forwarding
// pointer, since the forwarded record is itself visited directly when its
// own page comes up.
func (sc *Scanner) Next(outRID *RID, outData *[]byte) error {
	for {
		if sc.cur == nil {
			if sc.page >= sc.pageCount {
				return io.EOF
			}
			pg, err := readPage(sc.fh, sc.page)
			if err != nil {
				return err
			}
			sc.cur = pg
			sc.slot = 0
		}

		if sc.slot >= sc.cur.NumSlots() {
			sc.cur = nil
			sc.page++
			continue
		}

		s := sc.slot
		sc.slot++
		sl := sc.cur.Slot(s)
		if sl.Empty() || sl.Tombstone() {
			continue
		}

		raw := sc.cur.ReadRecord(int(sl.Offset), int(sl.Length))
		size, err := tuple.EncodedSize(sc.d, raw)
		if err != nil {
			return err
		}
		ok, err := tuple.Matches(sc.d, raw, size, sc.condAttr, sc.op, sc.value)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		if sc.proj == nil {
			*outData = raw
		} else {
			out, err := tuple.Project(sc.d, raw, size, sc.proj)
			if err != nil {
				return err
			}
			*outData = out
		}
		*outRID = RID{PageNum: sc.page, SlotNum: uint16(s)}
		return nil
	}
}

// Close releases the scanner's cached page. Scan holds no file handles or
// OS resources of its own, so Close never fails.
func (sc *Scanner) Close() error {
	sc.cur = nil
	return nil
}
