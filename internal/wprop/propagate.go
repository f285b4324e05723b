// Package wprop implements single-point writes to an archive's ring and the
// cascade that propagates a finer archive's newly-written window into the
// next coarser archive, one archive pair at a time.
package wprop

import (
	"log/slog"
	"math"

	"github.com/xtxerr/whisper/internal/wagg"
	"github.com/xtxerr/whisper/internal/werrors"
	"github.com/xtxerr/whisper/internal/wformat"
	"github.com/xtxerr/whisper/internal/wio"
	"github.com/xtxerr/whisper/internal/wlog"
	"github.com/xtxerr/whisper/internal/wring"
)

// Option configures optional behavior for Propagate and PropagateChain.
// Callers that pass none get a logger that discards every record, so the
// cascade stays silent unless the caller opts in.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger routes a Propagate/PropagateChain call's diagnostic output
// (coverage aborts, points written) to l instead of discarding it.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func resolveOptions(opts []Option) options {
	o := options{logger: wlog.Discard()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ReadAnchor returns the timestamp stored at archive's first slot, which is
// 0 for an archive that has never been written to.
func ReadAnchor(f *wio.File, archive wformat.ArchiveInfo) (uint32, error) {
	buf := make([]byte, wformat.PointSize)
	if err := f.ReadAt(buf, int64(archive.Offset)); err != nil {
		return 0, err
	}
	return wformat.UnpackPoint(buf).Timestamp, nil
}

// WritePoint writes a single (ts, value) point into archive at the slot
// determined by anchorTs. ts must already be aligned to archive's step.
func WritePoint(f *wio.File, archive wformat.ArchiveInfo, anchorTs uint32, ts uint32, value float64) error {
	off := wring.SlotOffset(archive, anchorTs, ts)
	buf := make([]byte, wformat.PointSize)
	wformat.PackPoint(buf, ts, value)
	return f.WriteAt(buf, int64(off))
}

// ReadWindow reads the n contiguous points starting at fromTs (step-aligned
// to archive) from archive's ring, following the wrap if the window crosses
// the end of the archive's data region.
func ReadWindow(f *wio.File, archive wformat.ArchiveInfo, anchorTs uint32, fromTs uint32, n uint32) ([]wformat.Point, error) {
	if n == 0 {
		return nil, nil
	}
	first, last, wraps := wring.Span(archive, anchorTs, fromTs, n)
	buf := make([]byte, n*wformat.PointSize)
	if !wraps {
		if err := f.ReadAt(buf, int64(first)); err != nil {
			return nil, err
		}
		return wformat.UnpackPoints(buf), nil
	}
	archiveEnd := archive.Offset + archive.Size()
	head := archiveEnd - first
	if err := f.ReadAt(buf[:head], int64(first)); err != nil {
		return nil, err
	}
	if err := f.ReadAt(buf[head:], int64(archive.Offset)); err != nil {
		return nil, err
	}
	_ = last
	return wformat.UnpackPoints(buf), nil
}

// Propagate consolidates the window of higher-resolution points covering
// timestamp into a single point in lower, using method and xFilesFactor to
// decide whether enough data is known. It reports whether a value was
// written; the caller stops cascading to coarser archives once Propagate
// returns false.
func Propagate(f *wio.File, method wformat.Aggregation, xFilesFactor float32, timestamp uint32, higher, lower wformat.ArchiveInfo, opts ...Option) (bool, error) {
	o := resolveOptions(opts)
	lowerIntervalStart := wring.Align(timestamp, lower.SecondsPerPoint)

	higherAnchor, err := ReadAnchor(f, higher)
	if err != nil {
		return false, err
	}

	higherPoints := lower.SecondsPerPoint / higher.SecondsPerPoint
	window, err := ReadWindow(f, higher, higherAnchor, lowerIntervalStart, higherPoints)
	if err != nil {
		return false, err
	}

	neighborValues := make([]float64, higherPoints)
	knownValues := make([]float64, 0, higherPoints)
	currentInterval := lowerIntervalStart
	for i, p := range window {
		neighborValues[i] = math.NaN()
		if p.Timestamp == currentInterval {
			neighborValues[i] = p.Value
			knownValues = append(knownValues, p.Value)
		}
		currentInterval += higher.SecondsPerPoint
	}

	if len(knownValues) == 0 {
		o.logger.Debug("propagation stopped: no known points in window",
			"interval", lowerIntervalStart, "higher_step", higher.SecondsPerPoint, "lower_step", lower.SecondsPerPoint)
		return false, nil
	}
	if !wagg.Coverage(len(knownValues), len(neighborValues), xFilesFactor) {
		o.logger.Debug("propagation stopped: coverage below x_files_factor",
			"interval", lowerIntervalStart, "known", len(knownValues), "window", len(neighborValues), "x_files_factor", xFilesFactor)
		return false, nil
	}

	aggregateValue := wagg.Aggregate(method, knownValues, neighborValues)

	lowerAnchor, err := ReadAnchor(f, lower)
	if err != nil {
		return false, err
	}
	if err := WritePoint(f, lower, lowerAnchor, lowerIntervalStart, aggregateValue); err != nil {
		return false, err
	}
	o.logger.Debug("propagated point", "interval", lowerIntervalStart, "value", aggregateValue, "lower_step", lower.SecondsPerPoint)
	return true, nil
}

// PropagateChain writes value at timestamp into the finest archive
// (archives[0]) and cascades the update through progressively coarser
// archives, stopping as soon as an archive's propagation window lacks
// enough data. archives must be in ascending-step order.
func PropagateChain(f *wio.File, method wformat.Aggregation, xFilesFactor float32, timestamp uint32, archives []wformat.ArchiveInfo, value float64, opts ...Option) error {
	if len(archives) == 0 {
		return werrors.Wrap(werrors.ErrCorruptFile, "no archives")
	}
	finest := archives[0]
	myInterval := wring.Align(timestamp, finest.SecondsPerPoint)

	anchor, err := ReadAnchor(f, finest)
	if err != nil {
		return err
	}
	if err := WritePoint(f, finest, anchor, myInterval, value); err != nil {
		return err
	}
	if anchor == 0 {
		anchor = myInterval
	}

	higher := finest
	for _, lower := range archives[1:] {
		ok, err := Propagate(f, method, xFilesFactor, myInterval, higher, lower, opts...)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		higher = lower
	}
	return nil
}

// WriteRun writes points (which must already be sorted ascending by
// timestamp) into archive as a single batch, establishing the archive's
// anchor from the earliest point if the archive has never been written to.
// Unlike PropagateChain, WriteRun never cascades into coarser archives —
// callers that need propagation call Propagate for each written point
// afterwards.
func WriteRun(f *wio.File, archive wformat.ArchiveInfo, points []wformat.Point) error {
	if len(points) == 0 {
		return nil
	}
	anchor, err := ReadAnchor(f, archive)
	if err != nil {
		return err
	}
	if anchor == 0 {
		anchor = points[0].Timestamp
	}
	for _, p := range points {
		if err := WritePoint(f, archive, anchor, p.Timestamp, p.Value); err != nil {
			return err
		}
	}
	return nil
}
