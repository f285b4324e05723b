//go:build windows

package wio

import (
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

// mmapReadOnly maps size bytes of f into memory read-only via
// CreateFileMapping/MapViewOfFile. Returns nil if mapping fails; callers
// fall back to positioned reads in that case.
func mmapReadOnly(f *os.File, size int64) []byte {
	if size <= 0 {
		return nil
	}
	h, err := windows.CreateFileMapping(windows.Handle(f.Fd()), nil, windows.PAGE_READONLY, uint32(size>>32), uint32(size&0xffffffff), nil)
	if err != nil {
		return nil
	}
	defer windows.CloseHandle(h)

	addr, err := windows.MapViewOfFile(h, windows.FILE_MAP_READ, 0, 0, uintptr(size))
	if err != nil {
		return nil
	}

	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
}

// munmap releases a mapping previously returned by mmapReadOnly.
func munmap(b []byte) {
	if b == nil {
		return
	}
	_ = windows.UnmapViewOfFile(uintptr(unsafe.Pointer(&b[0])))
}
