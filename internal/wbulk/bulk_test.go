package wbulk

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/xtxerr/whisper/internal/wformat"
	"github.com/xtxerr/whisper/internal/wio"
	"github.com/xtxerr/whisper/internal/wprop"
)

func newPair(t *testing.T, archives []wformat.ArchiveInfo) (a, b *wio.File) {
	t.Helper()
	dir := t.TempDir()
	size := int64(0)
	for _, ar := range archives {
		size = int64(ar.Offset + ar.Size())
	}
	a, err := wio.Create(filepath.Join(dir, "a.wsp"))
	if err != nil {
		t.Fatalf("Create a: %v", err)
	}
	if err := a.Truncate(size); err != nil {
		t.Fatalf("Truncate a: %v", err)
	}
	b, err = wio.Create(filepath.Join(dir, "b.wsp"))
	if err != nil {
		t.Fatalf("Create b: %v", err)
	}
	if err := b.Truncate(size); err != nil {
		t.Fatalf("Truncate b: %v", err)
	}
	t.Cleanup(func() { a.Close(); b.Close() })
	return a, b
}

func testArchives() []wformat.ArchiveInfo {
	finest := wformat.ArchiveInfo{Offset: 0, SecondsPerPoint: 60, Points: 20}
	coarse := wformat.ArchiveInfo{Offset: finest.Size(), SecondsPerPoint: 300, Points: 10}
	return []wformat.ArchiveInfo{finest, coarse}
}

func TestSameArchives(t *testing.T) {
	archives := testArchives()
	if !SameArchives(archives, archives) {
		t.Fatal("identical slices should compare equal")
	}
	other := []wformat.ArchiveInfo{archives[0]}
	if SameArchives(archives, other) {
		t.Fatal("different lengths should not compare equal")
	}
}

func TestMergeCopiesKnownPointsIntoDestination(t *testing.T) {
	archives := testArchives()
	src, dst := newPair(t, archives)

	base := uint32(6000)
	for i := uint32(0); i < 5; i++ {
		if err := wprop.WritePoint(src, archives[0], base, base+i*60, float64(i+1)); err != nil {
			t.Fatalf("WritePoint: %v", err)
		}
	}
	now := base + 3600
	if err := Merge(context.Background(), src, dst, archives, base, base+300, now); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	dstAnchor, err := wprop.ReadAnchor(dst, archives[0])
	if err != nil {
		t.Fatalf("ReadAnchor: %v", err)
	}
	_, _, _, values, known, err := wprop.FetchInterval(dst, archives[0], dstAnchor, base, base+300)
	if err != nil {
		t.Fatalf("FetchInterval: %v", err)
	}
	for i, k := range known {
		if !k {
			t.Fatalf("slot %d not known after merge", i)
		}
		if values[i] != float64(i+1) {
			t.Fatalf("slot %d = %v, want %v", i, values[i], i+1)
		}
	}
}

func TestMergeOverwritesExistingDestinationValues(t *testing.T) {
	archives := testArchives()
	src, dst := newPair(t, archives)

	base := uint32(6000)
	if err := wprop.WritePoint(dst, archives[0], base, base, 999); err != nil {
		t.Fatalf("seed dst: %v", err)
	}
	if err := wprop.WritePoint(src, archives[0], base, base, 111); err != nil {
		t.Fatalf("seed src: %v", err)
	}

	now := base + 3600
	if err := Merge(context.Background(), src, dst, archives, base, base+60, now); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	anchor, err := wprop.ReadAnchor(dst, archives[0])
	if err != nil {
		t.Fatalf("ReadAnchor: %v", err)
	}
	_, _, _, values, known, err := wprop.FetchInterval(dst, archives[0], anchor, base, base+60)
	if err != nil {
		t.Fatalf("FetchInterval: %v", err)
	}
	if !known[0] || values[0] != 111 {
		t.Fatalf("dst slot = (%v, known=%v), want (111, true)", values[0], known[0])
	}
}

func TestFillNeverOverwritesExistingDestinationValues(t *testing.T) {
	archives := testArchives()
	src, dst := newPair(t, archives)

	base := uint32(6000)
	if err := wprop.WritePoint(dst, archives[0], base, base, 999); err != nil {
		t.Fatalf("seed dst: %v", err)
	}
	if err := wprop.WritePoint(src, archives[0], base, base, 111); err != nil {
		t.Fatalf("seed src: %v", err)
	}
	if err := wprop.WritePoint(src, archives[0], base, base+60, 222); err != nil {
		t.Fatalf("seed src second point: %v", err)
	}

	now := base + 120
	if err := Fill(context.Background(), src, dst, archives, archives, now); err != nil {
		t.Fatalf("Fill: %v", err)
	}

	anchor, err := wprop.ReadAnchor(dst, archives[0])
	if err != nil {
		t.Fatalf("ReadAnchor: %v", err)
	}
	_, _, _, values, known, err := wprop.FetchInterval(dst, archives[0], anchor, base, base+120)
	if err != nil {
		t.Fatalf("FetchInterval: %v", err)
	}
	if !known[0] || values[0] != 999 {
		t.Fatalf("existing dst slot 0 = (%v, known=%v), want (999, true) untouched", values[0], known[0])
	}
	if !known[1] || values[1] != 222 {
		t.Fatalf("filled dst slot 1 = (%v, known=%v), want (222, true)", values[1], known[1])
	}
}

func TestFillPrefersFinestSourceArchiveCoveringAGap(t *testing.T) {
	// src carries both a fine and a coarse archive; dst only has the
	// coarse resolution and a hole at the same instant both src archives
	// cover, but with disagreeing values. Fill must take the finer
	// archive's value, not the coarser one's.
	srcArchives := testArchives()
	dstArchives := []wformat.ArchiveInfo{{Offset: 0, SecondsPerPoint: 300, Points: 10}}
	dir := t.TempDir()
	src, err := wio.Create(filepath.Join(dir, "src.wsp"))
	if err != nil {
		t.Fatalf("Create src: %v", err)
	}
	if err := src.Truncate(int64(srcArchives[1].Offset + srcArchives[1].Size())); err != nil {
		t.Fatalf("Truncate src: %v", err)
	}
	dst, err := wio.Create(filepath.Join(dir, "dst.wsp"))
	if err != nil {
		t.Fatalf("Create dst: %v", err)
	}
	if err := dst.Truncate(int64(dstArchives[0].Offset + dstArchives[0].Size())); err != nil {
		t.Fatalf("Truncate dst: %v", err)
	}
	t.Cleanup(func() { src.Close(); dst.Close() })

	base := uint32(6000) // multiple of both 60 and 300
	if err := wprop.WritePoint(src, srcArchives[0], base, base, 111); err != nil {
		t.Fatalf("seed src fine: %v", err)
	}
	if err := wprop.WritePoint(src, srcArchives[1], base, base, 999); err != nil {
		t.Fatalf("seed src coarse: %v", err)
	}

	now := base + 300
	if err := Fill(context.Background(), src, dst, srcArchives, dstArchives, now); err != nil {
		t.Fatalf("Fill: %v", err)
	}

	anchor, err := wprop.ReadAnchor(dst, dstArchives[0])
	if err != nil {
		t.Fatalf("ReadAnchor: %v", err)
	}
	_, _, _, values, known, err := wprop.FetchInterval(dst, dstArchives[0], anchor, base, base+300)
	if err != nil {
		t.Fatalf("FetchInterval: %v", err)
	}
	if !known[0] || values[0] != 111 {
		t.Fatalf("dst slot = (%v, known=%v), want (111, true) from the finer src archive", values[0], known[0])
	}
}

func TestDiffReportsDisagreements(t *testing.T) {
	archives := testArchives()
	a, b := newPair(t, archives)

	base := uint32(6000)
	if err := wprop.WritePoint(a, archives[0], base, base, 10); err != nil {
		t.Fatalf("seed a: %v", err)
	}
	if err := wprop.WritePoint(b, archives[0], base, base, 20); err != nil {
		t.Fatalf("seed b: %v", err)
	}
	if err := wprop.WritePoint(a, archives[0], base, base+60, 30); err != nil {
		t.Fatalf("seed a second: %v", err)
	}
	if err := wprop.WritePoint(b, archives[0], base, base+60, 30); err != nil {
		t.Fatalf("seed b second: %v", err)
	}

	now := base + 3600
	diffs, err := Diff(context.Background(), a, b, archives, false, base+120, now)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(diffs) != len(archives) {
		t.Fatalf("got %d archive diffs, want %d", len(diffs), len(archives))
	}
	finestDiff := diffs[0]
	if len(finestDiff.Points) != 1 {
		t.Fatalf("got %d differing points, want 1: %+v", len(finestDiff.Points), finestDiff.Points)
	}
	if finestDiff.Points[0].Timestamp != base {
		t.Fatalf("differing timestamp = %d, want %d", finestDiff.Points[0].Timestamp, base)
	}
}

func TestDiffIgnoreEmptyExcludesUnknownSlots(t *testing.T) {
	archives := testArchives()
	a, b := newPair(t, archives)

	base := uint32(6000)
	if err := wprop.WritePoint(a, archives[0], base, base, 10); err != nil {
		t.Fatalf("seed a: %v", err)
	}
	// b has nothing written at all: every slot is unknown on b's side.

	now := base + 3600
	diffs, err := Diff(context.Background(), a, b, archives, true, base+60, now)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(diffs[0].Points) != 0 {
		t.Fatalf("ignoreEmpty should exclude slots missing on one side, got %+v", diffs[0].Points)
	}
}
