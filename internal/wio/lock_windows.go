//go:build windows

package wio

import (
	"os"

	"golang.org/x/sys/windows"
)

const lockRegionBytes = ^uint32(0) // lock the whole file

func lockShared(f *os.File) error {
	ol := new(windows.Overlapped)
	return windows.LockFileEx(windows.Handle(f.Fd()), 0, 0, lockRegionBytes, lockRegionBytes, ol)
}

func lockExclusive(f *os.File) error {
	ol := new(windows.Overlapped)
	return windows.LockFileEx(windows.Handle(f.Fd()), windows.LOCKFILE_EXCLUSIVE_LOCK, 0, lockRegionBytes, lockRegionBytes, ol)
}

func unlockFile(f *os.File) error {
	ol := new(windows.Overlapped)
	return windows.UnlockFileEx(windows.Handle(f.Fd()), 0, lockRegionBytes, lockRegionBytes, ol)
}
