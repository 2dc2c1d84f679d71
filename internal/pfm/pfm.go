// Package pfm implements the Paged File Manager: a file is an array of
// fixed-size pages preceded by a 16-byte header of four little-endian
// uint32 counters (readPageCount, writePageCount, appendPageCount,
// pageCount). The header occupies a full page-sized region; only its first
// 16 bytes are meaningful, reserving the rest for forward compatibility.
// Logical page p lives at file offset (1+p)*PageSize.
//
// A FileHandle mirrors the counters in memory and only persists them to
// disk on Close, matching the "no background threads, single mutator"
// concurrency model: nothing else may hold this file open at the same time.
package pfm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/pagedb/rbfm/internal/pagecodec"
)

// PageSize is the fixed page size, shared with the slotted-page layout.
const PageSize = pagecodec.PageSize

const headerSize = 16 // 4 little-endian uint32 counters

var (
	// ErrAlreadyExists is returned by Create when the target path exists.
	ErrAlreadyExists = errors.New("pfm: file already exists")
	// ErrNotExist is returned by Open/Destroy when the target path is missing.
	ErrNotExist = errors.New("pfm: file does not exist")
	// ErrClosed is returned by Close, ReadPage, WritePage and AppendPage on
	// a closed FileHandle. PageCount, CollectCounters and Path do not check.
	ErrClosed = errors.New("pfm: file handle is closed")
	// ErrOutOfRange is returned when a page number is not less than pageCount.
	ErrOutOfRange = errors.New("pfm: page number out of range")
	// ErrBadPageSize is returned when a buffer is not exactly PageSize bytes.
	ErrBadPageSize = errors.New("pfm: buffer must be PageSize bytes")
)

// FileHandle is the single logical handle to an open paged file.
type FileHandle struct {
	file   *os.File
	path   string
	closed bool

	readPageCount   uint32
	writePageCount  uint32
	appendPageCount uint32
	pageCount       uint32
}

// Create creates a new paged file at path holding a single zeroed header
// page. It stages the write under a uuid-suffixed temporary name in the
// same directory and renames it into place, so a process killed mid-create
// never leaves a half-written file at path.
func Create(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, path)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("pfm: stat %s: %w", path, err)
	}

	tmp := path + "." + uuid.NewString() + ".tmp"
	f, err := os.OpenFile(tmp, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("pfm: create %s: %w", path, err)
	}
	if _, err := f.Write(make([]byte, PageSize)); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("pfm: write header of %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("pfm: sync %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("pfm: close %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("pfm: rename %s into place: %w", path, err)
	}
	return nil
}

// Destroy unlinks a paged file.
func Destroy(path string) error {
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotExist, path)
		}
		return fmt.Errorf("pfm: destroy %s: %w", path, err)
	}
	return nil
}

// Open opens an existing paged file and loads its header counters.
func Open(path string) (*FileHandle, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotExist, path)
		}
		return nil, fmt.Errorf("pfm: open %s: %w", path, err)
	}

	var header [headerSize]byte
	if _, err := f.ReadAt(header[:], 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("pfm: read header of %s: %w", path, err)
	}

	return &FileHandle{
		file:            f,
		path:            path,
		readPageCount:   binary.LittleEndian.Uint32(header[0:4]),
		writePageCount:  binary.LittleEndian.Uint32(header[4:8]),
		appendPageCount: binary.LittleEndian.Uint32(header[8:12]),
		pageCount:       binary.LittleEndian.Uint32(header[12:16]),
	}, nil
}

// Close flushes the in-memory counters to the header region and closes the
// underlying descriptor. Every successful Open must be paired with Close or
// counter progress since the last Close is lost (record contents are not:
// every successful WritePage/AppendPage is already durable).
func (fh *FileHandle) Close() error {
	if fh.closed {
		return ErrClosed
	}
	var header [headerSize]byte
	binary.LittleEndian.PutUint32(header[0:4], fh.readPageCount)
	binary.LittleEndian.PutUint32(header[4:8], fh.writePageCount)
	binary.LittleEndian.PutUint32(header[8:12], fh.appendPageCount)
	binary.LittleEndian.PutUint32(header[12:16], fh.pageCount)

	if _, err := fh.file.WriteAt(header[:], 0); err != nil {
		return fmt.Errorf("pfm: write header of %s: %w", fh.path, err)
	}
	if err := fh.file.Sync(); err != nil {
		return fmt.Errorf("pfm: sync %s: %w", fh.path, err)
	}
	if err := fh.file.Close(); err != nil {
		return fmt.Errorf("pfm: close %s: %w", fh.path, err)
	}
	fh.closed = true
	return nil
}

func pageOffset(p uint32) int64 {
	return int64(1+p) * int64(PageSize)
}

// ReadPage copies logical page p into buf, which must be exactly PageSize
// bytes, and increments the read counter.
func (fh *FileHandle) ReadPage(p uint32, buf []byte) error {
	if fh.closed {
		return ErrClosed
	}
	if p >= fh.pageCount {
		return fmt.Errorf("%w: page %d >= pageCount %d", ErrOutOfRange, p, fh.pageCount)
	}
	if len(buf) != PageSize {
		return ErrBadPageSize
	}
	if _, err := fh.file.ReadAt(buf, pageOffset(p)); err != nil {
		return fmt.Errorf("pfm: read page %d: %w", p, err)
	}
	fh.readPageCount++
	return nil
}

// WritePage overwrites logical page p with buf, flushes, and increments the
// write counter.
func (fh *FileHandle) WritePage(p uint32, buf []byte) error {
	if fh.closed {
		return ErrClosed
	}
	if p >= fh.pageCount {
		return fmt.Errorf("%w: page %d >= pageCount %d", ErrOutOfRange, p, fh.pageCount)
	}
	if len(buf) != PageSize {
		return ErrBadPageSize
	}
	if _, err := fh.file.WriteAt(buf, pageOffset(p)); err != nil {
		return fmt.Errorf("pfm: write page %d: %w", p, err)
	}
	if err := fh.file.Sync(); err != nil {
		return fmt.Errorf("pfm: sync page %d: %w", p, err)
	}
	fh.writePageCount++
	return nil
}

// AppendPage appends buf as a new logical page at index pageCount and
// increments the append and page counters.
func (fh *FileHandle) AppendPage(buf []byte) error {
	if fh.closed {
		return ErrClosed
	}
	if len(buf) != PageSize {
		return ErrBadPageSize
	}
	off := pageOffset(fh.pageCount)
	if _, err := fh.file.WriteAt(buf, off); err != nil {
		return fmt.Errorf("pfm: append page %d: %w", fh.pageCount, err)
	}
	if err := fh.file.Sync(); err != nil {
		return fmt.Errorf("pfm: sync appended page %d: %w", fh.pageCount, err)
	}
	fh.appendPageCount++
	fh.pageCount++
	return nil
}

// PageCount returns the in-memory page count.
func (fh *FileHandle) PageCount() uint32 { return fh.pageCount }

// CollectCounters returns the current in-memory read/write/append counts.
// It does not fail on a closed handle; it returns the last counts held.
func (fh *FileHandle) CollectCounters() (readCount, writeCount, appendCount uint32) {
	return fh.readPageCount, fh.writePageCount, fh.appendPageCount
}

// Path returns the file path this handle was opened with.
func (fh *FileHandle) Path() string { return fh.path }
