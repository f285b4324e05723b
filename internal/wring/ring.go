// Package wring implements the archive ring: the pure arithmetic that
// maps a timestamp to a byte offset within one archive's circular data
// region. An archive has no separate head pointer — the timestamp stored
// at its first slot (the "anchor") is the anchor, and every other slot's
// position is derived from its distance to that anchor modulo the
// archive's byte size. Empty archives (anchor slot empty, timestamp 0)
// anchor their first write at slot 0.
package wring

import "github.com/xtxerr/whisper/internal/wformat"

// Align snaps t down to the nearest lower multiple of step.
func Align(t uint32, step uint32) uint32 {
	return t - (t % step)
}

// mod64 is Euclidean modulo: always returns a value in [0, m).
func mod64(a, m int64) int64 {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}

// SlotOffset returns the absolute byte offset of the slot for timestamp t
// (which must already be aligned to the archive's step) within archive,
// given the timestamp currently stored at the archive's anchor slot.
//
// If anchorTs is 0 the archive is empty and the anchor has not been
// established yet; the first write always lands at the archive's own
// offset (slot 0), which becomes the new anchor.
func SlotOffset(archive wformat.ArchiveInfo, anchorTs uint32, t uint32) uint32 {
	if anchorTs == 0 {
		return archive.Offset
	}
	timeDistance := int64(t) - int64(anchorTs)
	pointDistance := timeDistance / int64(archive.SecondsPerPoint)
	// timeDistance may not divide evenly when t precedes anchorTs by a
	// fractional number of steps only in pathological callers; both t and
	// anchorTs are always step-aligned by construction, so integer
	// division here is exact.
	byteDistance := pointDistance * int64(wformat.PointSize)
	return archive.Offset + uint32(mod64(byteDistance, int64(archive.Size())))
}

// Span computes, for a contiguous run of n points starting at the slot for
// fromTs, the [firstOffset, lastOffset) byte range within the archive and
// whether that range wraps around the end of the archive's data region
// back to its start. lastOffset is exclusive and, like firstOffset, is
// relative to the whole file (i.e. includes archive.Offset).
//
// A zero-length request (n == 0) returns firstOffset == lastOffset.
func Span(archive wformat.ArchiveInfo, anchorTs uint32, fromTs uint32, n uint32) (firstOffset, lastOffset uint32, wraps bool) {
	firstOffset = SlotOffset(archive, anchorTs, fromTs)
	size := archive.Size()
	byteLen := n * wformat.PointSize
	relFirst := firstOffset - archive.Offset
	relLast := (relFirst + byteLen) % size
	lastOffset = archive.Offset + relLast
	wraps = firstOffset+byteLen > archive.Offset+size
	if byteLen == 0 {
		wraps = false
	}
	return firstOffset, lastOffset, wraps
}

// PointDistance returns how many step-sized slots separate t from
// anchorTs (t and anchorTs must both be step-aligned). The result may be
// negative if t precedes anchorTs.
func PointDistance(anchorTs, t uint32, step uint32) int64 {
	return (int64(t) - int64(anchorTs)) / int64(step)
}
