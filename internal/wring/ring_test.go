package wring

import (
	"testing"

	"github.com/xtxerr/whisper/internal/wformat"
)

func TestAlign(t *testing.T) {
	cases := []struct{ ts, step, want uint32 }{
		{1000, 60, 960},
		{960, 60, 960},
		{59, 60, 0},
	}
	for _, c := range cases {
		if got := Align(c.ts, c.step); got != c.want {
			t.Errorf("Align(%d,%d) = %d, want %d", c.ts, c.step, got, c.want)
		}
	}
}

func TestSlotOffsetEmptyArchiveAnchorsAtZero(t *testing.T) {
	archive := wformat.ArchiveInfo{Offset: 100, SecondsPerPoint: 60, Points: 10}
	if got := SlotOffset(archive, 0, 1200); got != archive.Offset {
		t.Errorf("got %d, want %d", got, archive.Offset)
	}
}

func TestSlotOffsetWrapsAroundRing(t *testing.T) {
	archive := wformat.ArchiveInfo{Offset: 100, SecondsPerPoint: 60, Points: 10}
	anchor := uint32(600) // slot 0

	// exactly one full lap forward should land back on slot 0
	got := SlotOffset(archive, anchor, anchor+60*10)
	if got != archive.Offset {
		t.Errorf("got %d, want %d (wrap to slot 0)", got, archive.Offset)
	}

	// half a lap forward should land on slot 5
	got = SlotOffset(archive, anchor, anchor+60*5)
	want := archive.Offset + 5*wformat.PointSize
	if got != want {
		t.Errorf("got %d, want %d", got, want)
	}
}

func TestSlotOffsetBeforeAnchor(t *testing.T) {
	archive := wformat.ArchiveInfo{Offset: 100, SecondsPerPoint: 60, Points: 10}
	anchor := uint32(1200)

	// one step before the anchor should land on the last slot (index 9)
	got := SlotOffset(archive, anchor, anchor-60)
	want := archive.Offset + 9*wformat.PointSize
	if got != want {
		t.Errorf("got %d, want %d", got, want)
	}
}

func TestSpanNoWrap(t *testing.T) {
	archive := wformat.ArchiveInfo{Offset: 100, SecondsPerPoint: 60, Points: 10}
	anchor := uint32(600)

	first, last, wraps := Span(archive, anchor, 600, 3)
	if wraps {
		t.Error("expected no wrap")
	}
	if first != archive.Offset {
		t.Errorf("first = %d, want %d", first, archive.Offset)
	}
	if last != archive.Offset+3*wformat.PointSize {
		t.Errorf("last = %d, want %d", last, archive.Offset+3*wformat.PointSize)
	}
}

func TestSpanWraps(t *testing.T) {
	archive := wformat.ArchiveInfo{Offset: 100, SecondsPerPoint: 60, Points: 10}
	anchor := uint32(600)

	// starting at slot 8, reading 4 points wraps past slot 9 back to slot 1
	first, last, wraps := Span(archive, anchor, anchor+60*8, 4)
	if !wraps {
		t.Error("expected wrap")
	}
	wantFirst := archive.Offset + 8*wformat.PointSize
	if first != wantFirst {
		t.Errorf("first = %d, want %d", first, wantFirst)
	}
	wantLast := archive.Offset + 2*wformat.PointSize
	if last != wantLast {
		t.Errorf("last = %d, want %d", last, wantLast)
	}
}

func TestPointDistanceSign(t *testing.T) {
	if d := PointDistance(600, 660, 60); d != 1 {
		t.Errorf("got %d, want 1", d)
	}
	if d := PointDistance(600, 540, 60); d != -1 {
		t.Errorf("got %d, want -1", d)
	}
}
