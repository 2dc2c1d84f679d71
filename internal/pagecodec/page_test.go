package pagecodec

import (
	"testing"

	"github.com/pagedb/rbfm/internal/rid"
)

func TestInitIsEmpty(t *testing.T) {
	p := New()
	if n := p.NumSlots(); n != 0 {
		t.Fatalf("NumSlots() = %d, want 0", n)
	}
	if f := p.FreeSpaceOffset(); f != 0 {
		t.Fatalf("FreeSpaceOffset() = %d, want 0", f)
	}
}

func TestInsertAndReadRecord(t *testing.T) {
	p := New()
	data := []byte("hello, record")

	s := p.AppendSlot()
	off := p.GrowFreeSpace(len(data))
	p.WriteRecord(off, data)
	p.SetSlot(s, Slot{Offset: uint16(off), Length: uint16(len(data))})

	got := p.ReadRecord(int(p.Slot(s).Offset), int(p.Slot(s).Length))
	if string(got) != string(data) {
		t.Fatalf("ReadRecord = %q, want %q", got, data)
	}
}

func TestCanHoldAccountsForSlotDirAndTrailer(t *testing.T) {
	p := New()
	// Free space for records is PageSize - trailer(4) - slotDir(0) - newSlot(4).
	max := PageSize - trailerSize - slotSize
	if !p.CanHold(max) {
		t.Fatalf("expected CanHold(%d) to be true", max)
	}
	if p.CanHold(max + 1) {
		t.Fatalf("expected CanHold(%d) to be false", max+1)
	}
}

func TestFirstFreeSlotReusesDeletedSlot(t *testing.T) {
	p := New()
	s0 := p.AppendSlot()
	p.SetSlot(s0, Slot{Offset: 10, Length: 5})
	s1 := p.AppendSlot()
	p.SetSlot(s1, Slot{Offset: 20, Length: 5})

	p.MarkDeleted(s0)

	if got := p.FirstFreeSlot(); got != s0 {
		t.Fatalf("FirstFreeSlot() = %d, want %d", got, s0)
	}
}

func TestCompactAfterRemovalShiftsLiveAndTombstoneSlots(t *testing.T) {
	p := New()

	// Two records back to back, "AAAA" "BBB", followed by a tombstone payload.
	recA := []byte("AAAA")
	recB := []byte("BBB")

	sA := p.AppendSlot()
	offA := p.GrowFreeSpace(len(recA))
	p.WriteRecord(offA, recA)
	p.SetSlot(sA, Slot{Offset: uint16(offA), Length: uint16(len(recA))})

	sB := p.AppendSlot()
	offB := p.GrowFreeSpace(len(recB))
	p.WriteRecord(offB, recB)
	p.SetSlot(sB, Slot{Offset: uint16(offB), Length: uint16(len(recB))})

	// sC is a tombstone pointing elsewhere; its offset still lives in this page.
	sC := p.AppendSlot()
	offC := p.GrowFreeSpace(TombstonePayloadSize)
	p.WriteTombstone(offC, rid.RID{PageNum: 7, SlotNum: 2})
	p.SetSlot(sC, Slot{Offset: uint16(offC), Length: TombstoneLength})

	// Delete B (the middle record) and compact its hole away.
	delOff := int(p.Slot(sB).Offset)
	delLen := int(p.Slot(sB).Length)
	p.CompactAfterRemoval(delOff, delLen)
	p.MarkDeleted(sB)

	wantFree := offC + TombstonePayloadSize - len(recB)
	if got := p.FreeSpaceOffset(); got != wantFree {
		t.Fatalf("FreeSpaceOffset() = %d, want %d", got, wantFree)
	}

	// A did not move (it was before the hole).
	if off := p.Slot(sA).Offset; int(off) != offA {
		t.Fatalf("record A offset = %d, want unchanged %d", off, offA)
	}

	// The tombstone's offset must have shifted down by len(recB), and its
	// payload must still decode to the original forwarding RID.
	newTombOff := int(p.Slot(sC).Offset)
	if newTombOff != offC-len(recB) {
		t.Fatalf("tombstone offset = %d, want %d", newTombOff, offC-len(recB))
	}
	fwd := p.ReadTombstone(newTombOff)
	if fwd != (rid.RID{PageNum: 7, SlotNum: 2}) {
		t.Fatalf("tombstone payload = %+v, want {7 2}", fwd)
	}
}
