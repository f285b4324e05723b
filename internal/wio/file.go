// Package wio is the file I/O driver: positioned reads and writes against
// a whisper file, an optional memory-mapped read path for large scans, a
// scoped advisory lock (shared for readers, exclusive for writers), and
// the fsync policy that durable operations opt into.
//
// A File is not safe for concurrent use by multiple goroutines without
// external synchronization beyond what Lock provides — Lock coordinates
// across processes, not within one.
package wio

import (
	"io"
	"os"

	"github.com/xtxerr/whisper/internal/werrors"
)

// File wraps an open whisper file with positioned I/O, an optional
// read-only mmap view, and an advisory lock.
type File struct {
	f    *os.File
	path string

	locked   bool
	exclusive bool // true if the held lock is exclusive

	mapped []byte // non-nil once EnableMmap has succeeded
}

// Open opens an existing file for read-write positioned I/O.
func Open(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, werrors.IO("open", err)
	}
	return &File{f: f, path: path}, nil
}

// OpenReadOnly opens an existing file for read-only positioned I/O.
func OpenReadOnly(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0644)
	if err != nil {
		return nil, werrors.IO("open", err)
	}
	return &File{f: f, path: path}, nil
}

// Create creates a new file exclusively (fails if it already exists),
// per FileExists semantics for whisper's create operation.
func Create(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, werrors.Wrapf(werrors.ErrFileExists, "%s", path)
		}
		return nil, werrors.IO("create", err)
	}
	return &File{f: f, path: path}, nil
}

// Path returns the underlying filesystem path.
func (fl *File) Path() string { return fl.path }

// Fd exposes the raw file descriptor for platform-specific lock/mmap code.
func (fl *File) Fd() uintptr { return fl.f.Fd() }

// Size returns the current file size in bytes.
func (fl *File) Size() (int64, error) {
	fi, err := fl.f.Stat()
	if err != nil {
		return 0, werrors.IO("stat", err)
	}
	return fi.Size(), nil
}

// Truncate sets the file to exactly size bytes, used by Create to lay out
// a sparse region.
func (fl *File) Truncate(size int64) error {
	if err := fl.f.Truncate(size); err != nil {
		return werrors.IO("truncate", err)
	}
	return nil
}

// WriteAt performs a positioned write of the whole buffer.
func (fl *File) WriteAt(buf []byte, off int64) error {
	if _, err := fl.f.WriteAt(buf, off); err != nil {
		return werrors.IO("write", err)
	}
	return nil
}

// ReadAt performs a positioned read filling the whole buffer. If an mmap
// view is active and covers the requested range, it is copied out of the
// mapping instead of issuing a syscall.
func (fl *File) ReadAt(buf []byte, off int64) error {
	if fl.mapped != nil && off >= 0 && off+int64(len(buf)) <= int64(len(fl.mapped)) {
		copy(buf, fl.mapped[off:off+int64(len(buf))])
		return nil
	}
	if _, err := io.ReadFull(io.NewSectionReader(fl.f, off, int64(len(buf))), buf); err != nil {
		return werrors.IO("read", err)
	}
	return nil
}

// WriteZeroes writes n zero bytes starting at off, used for dense
// pre-allocation of a freshly created file. It chunks the write instead
// of allocating one huge buffer.
func (fl *File) WriteZeroes(off int64, n int64) error {
	const chunkSize = 16384
	zeros := make([]byte, chunkSize)
	for n > 0 {
		w := n
		if w > chunkSize {
			w = chunkSize
		}
		if err := fl.WriteAt(zeros[:w], off); err != nil {
			return err
		}
		off += w
		n -= w
	}
	return nil
}

// Flush issues an OS-level flush (fsync). Durable operations (update,
// update_many, and the writing half of bulk ops) call this once at the
// end of the operation rather than after every point.
func (fl *File) Flush() error {
	if err := fl.f.Sync(); err != nil {
		return werrors.IO("fsync", err)
	}
	return nil
}

// Close releases the mmap (if any), the lock (if held), and the
// descriptor. Safe to call on every exit path, including after error.
func (fl *File) Close() error {
	fl.disableMmap()
	if fl.locked {
		_ = fl.Unlock()
	}
	if err := fl.f.Close(); err != nil {
		return werrors.IO("close", err)
	}
	return nil
}

// LockMode selects the advisory lock strength for an operation.
type LockMode int

const (
	// LockNone performs no locking; the caller accepts last-writer-wins
	// semantics against concurrent processes.
	LockNone LockMode = iota
	// LockShared is appropriate for read-only operations run concurrently
	// with other readers.
	LockShared
	// LockExclusive is appropriate for any operation that mutates the file.
	LockExclusive
)

// Lock acquires the requested advisory lock for the lifetime of the
// operation. It blocks until the lock is available. LockNone is a no-op.
func (fl *File) Lock(mode LockMode) error {
	switch mode {
	case LockNone:
		return nil
	case LockShared:
		if err := lockShared(fl.f); err != nil {
			return werrors.IO("flock shared", err)
		}
	case LockExclusive:
		if err := lockExclusive(fl.f); err != nil {
			return werrors.IO("flock exclusive", err)
		}
	}
	fl.locked = true
	fl.exclusive = mode == LockExclusive
	return nil
}

// Unlock releases a held lock. Safe to call even if no lock is held.
func (fl *File) Unlock() error {
	if !fl.locked {
		return nil
	}
	fl.locked = false
	if err := unlockFile(fl.f); err != nil {
		return werrors.IO("funlock", err)
	}
	return nil
}

// EnableMmap maps the file read-only into memory for large scans (fetch,
// dump, diff). Mapping failures are non-fatal: ReadAt transparently falls
// back to positioned reads.
func (fl *File) EnableMmap() {
	size, err := fl.Size()
	if err != nil || size == 0 {
		return
	}
	fl.mapped = mmapReadOnly(fl.f, size)
}

// disableMmap releases any active mapping.
func (fl *File) disableMmap() {
	if fl.mapped != nil {
		munmap(fl.mapped)
		fl.mapped = nil
	}
}
