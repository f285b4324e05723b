// Package wbulk implements the multi-archive coordination behind merge,
// fill, and diff: fetching a window from one file and writing or comparing
// it against another, one archive at a time, fanned out across goroutines
// bounded by an errgroup.
package wbulk

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/xtxerr/whisper/internal/werrors"
	"github.com/xtxerr/whisper/internal/wformat"
	"github.com/xtxerr/whisper/internal/wio"
	"github.com/xtxerr/whisper/internal/wprop"
	"github.com/xtxerr/whisper/internal/wring"
)

// SameArchives reports whether a and b describe identical archive layouts,
// the precondition merge, fill and diff all share.
func SameArchives(a, b []wformat.ArchiveInfo) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Merge copies every known point in [fromTime, untilTime) of src into the
// matching archive of dst, overwriting whatever dst already holds there. It
// does not cascade the write into dst's coarser archives — each archive is
// populated directly from its src counterpart, matching how the source
// project's merge behaves.
func Merge(ctx context.Context, src, dst *wio.File, archives []wformat.ArchiveInfo, fromTime, untilTime, now uint32) error {
	g, _ := errgroup.WithContext(ctx)
	for _, archive := range archives {
		archive := archive
		g.Go(func() error {
			return mergeArchive(src, dst, archive, fromTime, untilTime, now)
		})
	}
	return g.Wait()
}

func mergeArchive(src, dst *wio.File, archive wformat.ArchiveInfo, fromTime, untilTime, now uint32) error {
	retention := archive.Retention()
	oldest := now - retention
	if oldest > now { // retention exceeds now (unsigned wrap guard)
		oldest = 0
	}
	archiveFrom := fromTime
	if archiveFrom < oldest {
		archiveFrom = oldest
	}
	archiveTo := untilTime
	if archiveTo < oldest {
		return nil // this archive holds nothing in range
	}

	anchor, err := wprop.ReadAnchor(src, archive)
	if err != nil {
		return err
	}
	from, _, step, values, known, err := wprop.FetchInterval(src, archive, anchor, archiveFrom, archiveTo)
	if err != nil {
		return err
	}

	points := make([]wformat.Point, 0, len(values))
	for i, v := range values {
		if !known[i] {
			continue
		}
		points = append(points, wformat.Point{Timestamp: from + uint32(i)*step, Value: v})
	}
	if len(points) == 0 {
		return nil
	}
	return wprop.WriteRun(dst, archive, points)
}

// Fill copies points from src into dst only where dst's slot is currently
// empty, so no existing dst value is ever lost. src and dst need not share
// an archive configuration: for every empty dst slot, fillArchive walks
// srcArchives finest to coarsest (the order BuildLayout always produces)
// and takes the first one whose own data covers that instant, giving the
// finest available source data priority regardless of which dst archive
// the gap lives in.
func Fill(ctx context.Context, src, dst *wio.File, srcArchives, dstArchives []wformat.ArchiveInfo, now uint32) error {
	g, _ := errgroup.WithContext(ctx)
	for _, dstArchive := range dstArchives {
		dstArchive := dstArchive
		g.Go(func() error {
			return fillArchive(src, dst, srcArchives, dstArchive, now)
		})
	}
	return g.Wait()
}

// oldestFor returns the earliest timestamp still within an archive of the
// given retention, as of now.
func oldestFor(now, retention uint32) uint32 {
	if now > retention {
		return now - retention
	}
	return 0
}

// srcCoverage is one source archive's fetched window, cached once per
// fillArchive call and then consulted per destination gap.
type srcCoverage struct {
	from, step uint32
	values     []float64
	known      []bool
}

// coveredValue reports the value srcArchive holds for absolute instant ts,
// if any.
func (c srcCoverage) coveredValue(ts uint32) (float64, bool) {
	if len(c.values) == 0 || ts < c.from {
		return 0, false
	}
	idx := (wring.Align(ts, c.step) - c.from) / c.step
	if idx >= uint32(len(c.values)) || !c.known[idx] {
		return 0, false
	}
	return c.values[idx], true
}

func fillArchive(src, dst *wio.File, srcArchives []wformat.ArchiveInfo, dstArchive wformat.ArchiveInfo, now uint32) error {
	oldest := oldestFor(now, dstArchive.Retention())

	dstAnchor, err := wprop.ReadAnchor(dst, dstArchive)
	if err != nil {
		return err
	}
	dstFrom, _, dstStep, dstValues, dstKnown, err := wprop.FetchInterval(dst, dstArchive, dstAnchor, oldest, now)
	if err != nil {
		return err
	}
	if len(dstValues) == 0 {
		return nil
	}

	gaps := false
	for _, known := range dstKnown {
		if !known {
			gaps = true
			break
		}
	}
	if !gaps {
		return nil
	}

	coverages := make([]srcCoverage, len(srcArchives))
	for i, sa := range srcArchives {
		srcOldest := oldest
		if bound := oldestFor(now, sa.Retention()); bound > srcOldest {
			srcOldest = bound
		}
		if srcOldest >= now {
			continue
		}
		anchor, err := wprop.ReadAnchor(src, sa)
		if err != nil {
			return err
		}
		from, _, step, values, known, err := wprop.FetchInterval(src, sa, anchor, srcOldest, now)
		if err != nil {
			return err
		}
		coverages[i] = srcCoverage{from: from, step: step, values: values, known: known}
	}

	points := make([]wformat.Point, 0)
	for i, known := range dstKnown {
		if known {
			continue
		}
		ts := dstFrom + uint32(i)*dstStep
		for _, c := range coverages {
			if v, ok := c.coveredValue(ts); ok {
				points = append(points, wformat.Point{Timestamp: ts, Value: v})
				break
			}
		}
	}
	if len(points) == 0 {
		return nil
	}
	return wprop.WriteRun(dst, dstArchive, points)
}

// DiffPoint is one timestamp at which a and b disagree (or one side lacks a
// value and ignoreEmpty was not requested).
type DiffPoint struct {
	Timestamp uint32
	ValueA    float64
	KnownA    bool
	ValueB    float64
	KnownB    bool
}

// ArchiveDiff is the diff result for a single archive.
type ArchiveDiff struct {
	ArchiveIndex int
	Points       []DiffPoint
	Total        int
}

// Diff compares a and b archive-by-archive over each archive's own
// retention window (clipped to untilTime), reporting timestamps whose
// values differ. When ignoreEmpty is true, a timestamp missing on either
// side is excluded entirely rather than reported as a difference.
func Diff(ctx context.Context, a, b *wio.File, archives []wformat.ArchiveInfo, ignoreEmpty bool, untilTime, now uint32) ([]ArchiveDiff, error) {
	results := make([]ArchiveDiff, len(archives))
	g, _ := errgroup.WithContext(ctx)
	for i, archive := range archives {
		i, archive := i, archive
		g.Go(func() error {
			d, err := diffArchive(a, b, archive, ignoreEmpty, untilTime, now)
			if err != nil {
				return err
			}
			d.ArchiveIndex = i
			results[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func diffArchive(a, b *wio.File, archive wformat.ArchiveInfo, ignoreEmpty bool, untilTime, now uint32) (ArchiveDiff, error) {
	startTime := uint32(0)
	if now > archive.Retention() {
		startTime = now - archive.Retention()
	}

	anchorA, err := wprop.ReadAnchor(a, archive)
	if err != nil {
		return ArchiveDiff{}, err
	}
	anchorB, err := wprop.ReadAnchor(b, archive)
	if err != nil {
		return ArchiveDiff{}, err
	}

	from, until, step, valuesA, knownA, err := wprop.FetchInterval(a, archive, anchorA, startTime, untilTime)
	if err != nil {
		return ArchiveDiff{}, err
	}
	_, _, _, valuesB, knownB, err := wprop.FetchInterval(b, archive, anchorB, startTime, untilTime)
	if err != nil {
		return ArchiveDiff{}, err
	}
	if len(valuesA) != len(valuesB) {
		return ArchiveDiff{}, werrors.Wrap(werrors.ErrArchivesUnalike, "fetched ranges disagree in length")
	}

	var diffs []DiffPoint
	total := 0
	for i := range valuesA {
		if ignoreEmpty && (!knownA[i] || !knownB[i]) {
			continue
		}
		if !ignoreEmpty && !knownA[i] && !knownB[i] {
			continue
		}
		total++
		if knownA[i] != knownB[i] || valuesA[i] != valuesB[i] {
			diffs = append(diffs, DiffPoint{
				Timestamp: from + uint32(i)*step,
				ValueA:    valuesA[i], KnownA: knownA[i],
				ValueB: valuesB[i], KnownB: knownB[i],
			})
		}
	}
	_ = until
	return ArchiveDiff{Points: diffs, Total: total}, nil
}
