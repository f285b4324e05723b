package wio

import (
	"path/filepath"
	"testing"
)

func TestCreateRejectsExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "m.wsp")

	f, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.Close()

	if _, err := Create(path); err == nil {
		t.Fatal("expected error creating an already-existing file")
	}
}

func TestWriteAtReadAtRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "m.wsp")

	f, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer f.Close()

	if err := f.Truncate(64); err != nil {
		t.Fatalf("Truncate: %v", err)
	}

	want := []byte("hello whisper")
	if err := f.WriteAt(want, 8); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}

	got := make([]byte, len(want))
	if err := f.ReadAt(got, 8); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestReadAtThroughMmap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "m.wsp")

	f, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer f.Close()

	if err := f.Truncate(32); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	want := []byte("mapped-region")
	if err := f.WriteAt(want, 0); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if err := f.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	f.EnableMmap()

	got := make([]byte, len(want))
	if err := f.ReadAt(got, 0); err != nil {
		t.Fatalf("ReadAt via mmap: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestLockUnlockRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "m.wsp")

	f, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer f.Close()

	if err := f.Lock(LockExclusive); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if err := f.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}

	// LockNone must be a no-op that never errors.
	if err := f.Lock(LockNone); err != nil {
		t.Fatalf("Lock(LockNone): %v", err)
	}
}

func TestWriteZeroesFillsRegion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "m.wsp")

	f, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer f.Close()

	if err := f.Truncate(100000); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	if err := f.WriteZeroes(0, 100000); err != nil {
		t.Fatalf("WriteZeroes: %v", err)
	}

	buf := make([]byte, 100000)
	if err := f.ReadAt(buf, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d is %d, want 0", i, b)
		}
	}
}
