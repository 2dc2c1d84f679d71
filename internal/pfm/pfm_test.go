package pfm

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCreateOpenCloseRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t1.db")
	if err := Create(path); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := Create(path); err == nil {
		t.Fatal("expected second Create to fail")
	}

	fh, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if fh.PageCount() != 0 {
		t.Fatalf("PageCount() = %d, want 0", fh.PageCount())
	}
	if err := fh.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := fh.Close(); err != ErrClosed {
		t.Fatalf("second Close() = %v, want ErrClosed", err)
	}
}

func TestAppendReadWritePage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t2.db")
	if err := Create(path); err != nil {
		t.Fatalf("Create: %v", err)
	}
	fh, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer fh.Close()

	buf := make([]byte, PageSize)
	buf[0] = 0xAB
	if err := fh.AppendPage(buf); err != nil {
		t.Fatalf("AppendPage: %v", err)
	}
	if fh.PageCount() != 1 {
		t.Fatalf("PageCount() = %d, want 1", fh.PageCount())
	}

	read := make([]byte, PageSize)
	if err := fh.ReadPage(0, read); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if read[0] != 0xAB {
		t.Fatalf("ReadPage()[0] = %x, want 0xAB", read[0])
	}

	read[0] = 0xCD
	if err := fh.WritePage(0, read); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	if err := fh.ReadPage(1, read); err == nil {
		t.Fatal("expected ReadPage(1) out of range")
	}

	rc, wc, ac := fh.CollectCounters()
	// The out-of-range ReadPage(1) fails before counting, so only the one
	// successful ReadPage(0) is counted.
	if rc != 1 || wc != 1 || ac != 1 {
		t.Fatalf("counters = (%d,%d,%d), want (1,1,1)", rc, wc, ac)
	}
}

func TestCountersPersistOnlyAtClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t3.db")
	if err := Create(path); err != nil {
		t.Fatalf("Create: %v", err)
	}
	fh, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := fh.AppendPage(make([]byte, PageSize)); err != nil {
		t.Fatalf("AppendPage: %v", err)
	}
	if err := fh.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	fh2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer fh2.Close()
	if fh2.PageCount() != 1 {
		t.Fatalf("PageCount() after reopen = %d, want 1", fh2.PageCount())
	}
}

func TestDestroy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t4.db")
	if err := Create(path); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := Destroy(path); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected %s to be gone", path)
	}
	if err := Destroy(path); err == nil {
		t.Fatal("expected second Destroy to fail")
	}
}
