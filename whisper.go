// Package whisper implements a fixed-size, file-backed, round-robin
// time-series database: a single file holds one metric as a sequence of
// progressively coarser archives, with high-resolution points
// automatically downsampled into coarser archives as they age.
//
// Every operation is a plain function taking a file path, mirroring the
// storage engine's original module-level API rather than an object handle:
// callers that want to batch several operations against one open file can
// still do so through internal/wio, but the public surface here optimizes
// for the common case of one-shot reads and writes.
package whisper

import (
	"time"

	"github.com/xtxerr/whisper/internal/werrors"
	"github.com/xtxerr/whisper/internal/wformat"
	"github.com/xtxerr/whisper/internal/wio"
	"github.com/xtxerr/whisper/internal/wlog"
	"github.com/xtxerr/whisper/internal/wprop"
)

// Aggregation identifies the reduction applied when propagating a fine
// archive's points into a coarser one.
type Aggregation = wformat.Aggregation

// The eight supported aggregation methods.
const (
	Average = wformat.Average
	Sum     = wformat.Sum
	Last    = wformat.Last
	Max     = wformat.Max
	Min     = wformat.Min
	AvgZero = wformat.AvgZero
	AbsMax  = wformat.AbsMax
	AbsMin  = wformat.AbsMin
)

// ParseAggregation maps a literal token ("average", "sum", ...) to its
// Aggregation code.
func ParseAggregation(s string) (Aggregation, error) { return wformat.ParseAggregation(s) }

// Archive describes one archive's resolution and capacity: it stores
// SecondsPerPoint*Points worth of retention at SecondsPerPoint resolution.
type Archive struct {
	SecondsPerPoint uint32
	Points          uint32
}

func (a Archive) Retention() uint32 { return a.SecondsPerPoint * a.Points }

func toArchiveInfos(archives []Archive) []wformat.ArchiveInfo {
	out := make([]wformat.ArchiveInfo, len(archives))
	for i, a := range archives {
		out[i] = wformat.ArchiveInfo{SecondsPerPoint: a.SecondsPerPoint, Points: a.Points}
	}
	return out
}

func fromArchiveInfos(archives []wformat.ArchiveInfo) []Archive {
	out := make([]Archive, len(archives))
	for i, a := range archives {
		out[i] = Archive{SecondsPerPoint: a.SecondsPerPoint, Points: a.Points}
	}
	return out
}

// Point is a single (timestamp, value) sample. A zero Timestamp is never a
// meaningful sample — it denotes an empty ring slot on disk.
type Point = wformat.Point

// FileInfo is a file's header plus its archive list, as returned by Info and
// embedded in Dump.
type FileInfo struct {
	Aggregation  Aggregation
	MaxRetention uint32
	XFilesFactor float32
	Archives     []Archive
}

// FetchResult is one archive's worth of consolidated samples: Values[i]
// covers the interval [From+i*Step, From+(i+1)*Step); Known[i] is false
// where the archive had no data for that slot.
type FetchResult struct {
	From, Until, Step uint32
	Values            []float64
	Known             []bool
}

// CreateOptions configures Create. XFilesFactor defaults to 0.5 and
// Aggregation defaults to Average when left at their zero values.
type CreateOptions struct {
	XFilesFactor float32
	Aggregation  Aggregation
	Sparse       bool
	Lock         bool
}

func now32(configured uint32) uint32 {
	if configured != 0 {
		return configured
	}
	return uint32(time.Now().Unix())
}

// Create lays out a new whisper file at path with the given archive list.
// It fails with FileExists if path already exists, and InvalidConfiguration
// if the archive list violates the data-model invariants.
func Create(path string, archives []Archive, opts CreateOptions) error {
	xff := opts.XFilesFactor
	if xff == 0 {
		xff = 0.5
	}
	agg := opts.Aggregation
	if agg == 0 {
		agg = Average
	}

	layout, err := wformat.BuildLayout(toArchiveInfos(archives), xff, agg)
	if err != nil {
		return err
	}

	f, err := wio.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if opts.Lock {
		if err := f.Lock(wio.LockExclusive); err != nil {
			return err
		}
	}

	if err := writeLayout(f, layout, opts.Sparse); err != nil {
		return err
	}
	return f.Flush()
}

// writeLayout writes the header and archive-info table of a freshly
// created file, then either zero-fills the archive data regions or, when
// sparse, truncates the file to its full size.
func writeLayout(f *wio.File, layout wformat.Layout, sparse bool) error {
	headerTable := make([]byte, layout.HeaderTableSize())
	layout.Header.Encode(headerTable[:wformat.HeaderSize])
	off := wformat.HeaderSize
	for _, a := range layout.Archives {
		a.Encode(headerTable[off : off+wformat.ArchiveInfoSize])
		off += wformat.ArchiveInfoSize
	}
	if err := f.WriteAt(headerTable, 0); err != nil {
		return err
	}

	fileSize := layout.FileSize()
	if sparse {
		if err := f.Truncate(fileSize); err != nil {
			return err
		}
		return nil
	}

	remaining := fileSize - layout.HeaderTableSize()
	return f.WriteZeroes(layout.HeaderTableSize(), remaining)
}

// readLayout reads and validates the header and archive-info table of an
// already-open file against its actual on-disk size.
func readLayout(f *wio.File) (wformat.Layout, error) {
	headerBuf := make([]byte, wformat.HeaderSize)
	if err := f.ReadAt(headerBuf, 0); err != nil {
		return wformat.Layout{}, err
	}
	header, err := wformat.DecodeHeader(headerBuf)
	if err != nil {
		return wformat.Layout{}, err
	}

	archives := make([]wformat.ArchiveInfo, header.ArchiveCount)
	tableBuf := make([]byte, int(header.ArchiveCount)*wformat.ArchiveInfoSize)
	if err := f.ReadAt(tableBuf, int64(wformat.HeaderSize)); err != nil {
		return wformat.Layout{}, err
	}
	for i := range archives {
		a, err := wformat.DecodeArchiveInfo(tableBuf[i*wformat.ArchiveInfoSize : (i+1)*wformat.ArchiveInfoSize])
		if err != nil {
			return wformat.Layout{}, err
		}
		archives[i] = a
	}

	layout := wformat.Layout{Header: header, Archives: archives}
	size, err := f.Size()
	if err != nil {
		return wformat.Layout{}, err
	}
	if err := wformat.ValidateLayout(layout, size); err != nil {
		return wformat.Layout{}, err
	}
	return layout, nil
}

func lockMode(write, lock bool) wio.LockMode {
	if !lock {
		return wio.LockNone
	}
	if write {
		return wio.LockExclusive
	}
	return wio.LockShared
}

// Info reads a file's header and archive list without touching any data.
func Info(path string) (FileInfo, error) {
	f, err := wio.OpenReadOnly(path)
	if err != nil {
		return FileInfo{}, err
	}
	defer f.Close()

	layout, err := readLayout(f)
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{
		Aggregation:  layout.Header.Aggregation,
		MaxRetention: layout.Header.MaxRetention,
		XFilesFactor: layout.Header.XFilesFactor,
		Archives:     fromArchiveInfos(layout.Archives),
	}, nil
}

// UpdateOptions configures Update and UpdateMany.
type UpdateOptions struct {
	// Now overrides the wall-clock time used to validate retention
	// coverage; zero means time.Now().
	Now  uint32
	Lock bool
}

// Update writes value at timestamp into path's finest archive and cascades
// the write into progressively coarser archives per the file's
// aggregation method and x_files_factor. It rejects timestamps outside
// every archive's retention with TimestampNotCovered.
func Update(path string, value float64, timestamp uint32, opts UpdateOptions) error {
	f, err := wio.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Lock(lockMode(true, opts.Lock)); err != nil {
		return err
	}

	layout, err := readLayout(f)
	if err != nil {
		return err
	}

	now := now32(opts.Now)
	if timestamp == 0 {
		timestamp = now
	}
	if err := checkCoverage(layout.Header.MaxRetention, now, timestamp); err != nil {
		return err
	}

	if err := wprop.PropagateChain(f, layout.Header.Aggregation, layout.Header.XFilesFactor, timestamp, layout.Archives, value, wprop.WithLogger(wlog.Component("wprop"))); err != nil {
		return err
	}
	return f.Flush()
}

func checkCoverage(maxRetention, now, timestamp uint32) error {
	if timestamp > now {
		return werrors.Wrap(werrors.ErrTimestampNotCovered, "timestamp is in the future")
	}
	if now-timestamp >= maxRetention {
		return werrors.Wrap(werrors.ErrTimestampNotCovered, "timestamp is older than max_retention")
	}
	return nil
}

// UpdateMany writes a batch of points, grouping them by the finest archive
// that still covers each point's age and writing each archive's share as
// one contiguous run. Propagation into coarser archives still runs once per
// point rather than once per affected coarse slot; see DESIGN.md for why
// this is an accepted deviation rather than a bug.
func UpdateMany(path string, points []Point, opts UpdateOptions) error {
	if len(points) == 0 {
		return nil
	}
	f, err := wio.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Lock(lockMode(true, opts.Lock)); err != nil {
		return err
	}

	layout, err := readLayout(f)
	if err != nil {
		return err
	}
	now := now32(opts.Now)

	sorted := make([]Point, len(points))
	copy(sorted, points)
	sortPointsDescending(sorted)

	archives := layout.Archives
	archiveIdx := 0
	var run []Point

	flush := func() error {
		if len(run) == 0 {
			return nil
		}
		reversePoints(run)
		if err := wprop.WriteRun(f, archives[archiveIdx], run); err != nil {
			return err
		}
		for _, p := range run {
			higher := archives[archiveIdx]
			for _, lower := range archives[archiveIdx+1:] {
				ok, err := wprop.Propagate(f, layout.Header.Aggregation, layout.Header.XFilesFactor, p.Timestamp, higher, lower, wprop.WithLogger(wlog.Component("wprop")))
				if err != nil {
					return err
				}
				if !ok {
					break
				}
				higher = lower
			}
		}
		run = nil
		return nil
	}

	for _, p := range sorted {
		age := int64(now) - int64(p.Timestamp)
		for archiveIdx < len(archives) && age > int64(archives[archiveIdx].Retention()) {
			if err := flush(); err != nil {
				return err
			}
			archiveIdx++
		}
		if archiveIdx >= len(archives) {
			break // point too old for every archive; drop it
		}
		run = append(run, Point{Timestamp: alignTo(p.Timestamp, archives[archiveIdx].SecondsPerPoint), Value: p.Value})
	}
	if archiveIdx < len(archives) {
		if err := flush(); err != nil {
			return err
		}
	}
	return f.Flush()
}

func alignTo(t, step uint32) uint32 { return t - (t % step) }

func sortPointsDescending(points []Point) {
	for i := 1; i < len(points); i++ {
		for j := i; j > 0 && points[j].Timestamp > points[j-1].Timestamp; j-- {
			points[j], points[j-1] = points[j-1], points[j]
		}
	}
}

func reversePoints(points []Point) {
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
}

// FetchOptions configures Fetch.
type FetchOptions struct {
	// Now overrides the wall-clock time used to clamp the requested
	// range; zero means time.Now().
	Now uint32
	// Granularity, if non-zero, requires the archive whose step equals
	// this many seconds rather than letting Fetch pick the finest
	// archive that covers the range.
	Granularity uint32
	Lock        bool
}

// Fetch reads [from, until) from the archive that best covers the range
// (or the archive matching opts.Granularity), clamping the range to
// [now-maxRetention, now] and aligning both bounds to the chosen archive's
// step.
func Fetch(path string, from, until uint32, opts FetchOptions) (FetchResult, error) {
	f, err := wio.OpenReadOnly(path)
	if err != nil {
		return FetchResult{}, err
	}
	defer f.Close()

	if err := f.Lock(lockMode(false, opts.Lock)); err != nil {
		return FetchResult{}, err
	}
	f.EnableMmap()

	layout, err := readLayout(f)
	if err != nil {
		return FetchResult{}, err
	}

	now := now32(opts.Now)
	if until == 0 {
		until = now
	}
	if from > until {
		return FetchResult{}, werrors.Wrap(werrors.ErrFromAfterUntil, "from is after until")
	}
	if from > now {
		return FetchResult{}, werrors.Wrap(werrors.ErrRangeFullyFuture, "requested range lies entirely in the future")
	}
	oldest := uint32(0)
	if now > layout.Header.MaxRetention {
		oldest = now - layout.Header.MaxRetention
	}
	if until < oldest {
		return FetchResult{}, werrors.Wrap(werrors.ErrTimestampNotCovered, "requested range lies entirely before max_retention")
	}
	if from < oldest {
		from = oldest
	}
	if until > now {
		until = now
	}

	archive, err := selectArchive(layout.Archives, now, from, opts.Granularity)
	if err != nil {
		return FetchResult{}, err
	}

	anchor, err := wprop.ReadAnchor(f, archive)
	if err != nil {
		return FetchResult{}, err
	}
	fromAligned, untilAligned, step, values, known, err := wprop.FetchInterval(f, archive, anchor, from, until)
	if err != nil {
		return FetchResult{}, err
	}
	return FetchResult{From: fromAligned, Until: untilAligned, Step: step, Values: values, Known: known}, nil
}

// selectArchive picks the requested archive by exact step (when
// granularity is non-zero) or the finest archive whose retention covers
// now-from.
func selectArchive(archives []wformat.ArchiveInfo, now, from, granularity uint32) (wformat.ArchiveInfo, error) {
	if granularity != 0 {
		for _, a := range archives {
			if a.SecondsPerPoint == granularity {
				return a, nil
			}
		}
		return wformat.ArchiveInfo{}, werrors.Wrapf(werrors.ErrUnknownGranularity, "%ds", granularity)
	}
	span := now - from
	for _, a := range archives {
		if a.Retention() >= span {
			return a, nil
		}
	}
	return archives[len(archives)-1], nil
}
