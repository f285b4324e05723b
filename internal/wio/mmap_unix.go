//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly || solaris || aix

package wio

import (
	"os"

	"golang.org/x/sys/unix"
)

// mmapReadOnly maps size bytes of f into memory read-only. Returns nil if
// mapping fails or size is not representable; callers must fall back to
// positioned reads in that case.
func mmapReadOnly(f *os.File, size int64) []byte {
	if size <= 0 || int64(int(size)) != size {
		return nil
	}
	b, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil
	}
	return b
}

// munmap releases a mapping previously returned by mmapReadOnly.
func munmap(b []byte) {
	if b == nil {
		return
	}
	_ = unix.Munmap(b)
}
