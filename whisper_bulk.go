package whisper

import (
	"context"
	"os"

	"github.com/xtxerr/whisper/internal/wbulk"
	"github.com/xtxerr/whisper/internal/werrors"
	"github.com/xtxerr/whisper/internal/wformat"
	"github.com/xtxerr/whisper/internal/wio"
	"github.com/xtxerr/whisper/internal/wlog"
	"github.com/xtxerr/whisper/internal/wprop"
)

func openPair(srcPath, dstPath string, lock, requireSameArchives bool) (src, dst *wio.File, srcLayout, dstLayout wformat.Layout, err error) {
	src, err = wio.OpenReadOnly(srcPath)
	if err != nil {
		return nil, nil, wformat.Layout{}, wformat.Layout{}, err
	}
	dst, err = wio.Open(dstPath)
	if err != nil {
		src.Close()
		return nil, nil, wformat.Layout{}, wformat.Layout{}, err
	}
	if lock {
		if err = src.Lock(wio.LockShared); err != nil {
			src.Close()
			dst.Close()
			return nil, nil, wformat.Layout{}, wformat.Layout{}, err
		}
		if err = dst.Lock(wio.LockExclusive); err != nil {
			src.Close()
			dst.Close()
			return nil, nil, wformat.Layout{}, wformat.Layout{}, err
		}
	}

	srcLayout, err = readLayout(src)
	if err != nil {
		src.Close()
		dst.Close()
		return nil, nil, wformat.Layout{}, wformat.Layout{}, err
	}
	dstLayout, err = readLayout(dst)
	if err != nil {
		src.Close()
		dst.Close()
		return nil, nil, wformat.Layout{}, wformat.Layout{}, err
	}
	if requireSameArchives && !wbulk.SameArchives(srcLayout.Archives, dstLayout.Archives) {
		src.Close()
		dst.Close()
		return nil, nil, wformat.Layout{}, wformat.Layout{}, werrors.Wrapf(werrors.ErrArchivesUnalike, "%s vs %s", srcPath, dstPath)
	}
	return src, dst, srcLayout, dstLayout, nil
}

// MergeOptions configures Merge and Fill.
type MergeOptions struct {
	Now  uint32
	Lock bool
}

// Merge copies every known point in [from, until) from src into dst,
// archive by archive, overwriting whatever dst already holds in that
// range. src and dst must have identical archive configurations.
func Merge(srcPath, dstPath string, from, until uint32, opts MergeOptions) error {
	src, dst, srcLayout, _, err := openPair(srcPath, dstPath, opts.Lock, true)
	if err != nil {
		return err
	}
	defer src.Close()
	defer dst.Close()

	now := now32(opts.Now)
	if until == 0 {
		until = now
	}
	if until < from {
		return werrors.Wrap(werrors.ErrFromAfterUntil, "until must be >= from")
	}

	if err := wbulk.Merge(context.Background(), src, dst, srcLayout.Archives, from, until, now); err != nil {
		return err
	}
	return dst.Flush()
}

// Fill copies points from src into dst wherever dst's slot is empty. src
// and dst may have entirely different archive configurations: for each
// empty dst slot, the finest archive of src that has data covering that
// instant wins, falling back to a coarser src archive only where no finer
// one covers the gap. It never overwrites a value already present in dst.
func Fill(srcPath, dstPath string, opts MergeOptions) error {
	src, dst, srcLayout, dstLayout, err := openPair(srcPath, dstPath, opts.Lock, false)
	if err != nil {
		return err
	}
	defer src.Close()
	defer dst.Close()

	now := now32(opts.Now)
	if err := wbulk.Fill(context.Background(), src, dst, srcLayout.Archives, dstLayout.Archives, now); err != nil {
		return err
	}
	return dst.Flush()
}

// DiffOptions configures Diff.
type DiffOptions struct {
	IgnoreEmpty bool
	UntilTime   uint32
	Now         uint32
	Lock        bool
}

// Diff compares a and b archive-by-archive, reporting timestamps whose
// values differ. a and b must have identical archive configurations.
func Diff(aPath, bPath string, opts DiffOptions) ([]wbulk.ArchiveDiff, error) {
	a, b, aLayout, _, err := openPair(aPath, bPath, opts.Lock, true)
	if err != nil {
		return nil, err
	}
	defer a.Close()
	defer b.Close()

	now := now32(opts.Now)
	until := opts.UntilTime
	if until == 0 {
		until = now
	}
	return wbulk.Diff(context.Background(), a, b, aLayout.Archives, opts.IgnoreEmpty, until, now)
}

// SetAggregationMethod rewrites only the aggregation-method (and,
// optionally, x_files_factor) header field, leaving all data untouched.
// It returns the method that was previously in effect.
func SetAggregationMethod(path string, method Aggregation, xff *float32) (Aggregation, error) {
	f, err := wio.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	if err := f.Lock(wio.LockExclusive); err != nil {
		return 0, err
	}

	layout, err := readLayout(f)
	if err != nil {
		return 0, err
	}
	old := layout.Header.Aggregation

	newHeader := layout.Header
	newHeader.Aggregation = method
	if xff != nil {
		newHeader.XFilesFactor = *xff
	}
	buf := make([]byte, wformat.HeaderSize)
	newHeader.Encode(buf)
	if err := f.WriteAt(buf, 0); err != nil {
		return 0, err
	}
	return old, f.Flush()
}

// SetXFilesFactor rewrites only the x_files_factor header field, returning
// the value that was previously in effect.
func SetXFilesFactor(path string, xff float32) (float32, error) {
	if xff < 0 || xff > 1 {
		return 0, werrors.Wrapf(werrors.ErrInvalidXFilesFactor, "%v", xff)
	}
	f, err := wio.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	if err := f.Lock(wio.LockExclusive); err != nil {
		return 0, err
	}

	layout, err := readLayout(f)
	if err != nil {
		return 0, err
	}
	old := layout.Header.XFilesFactor

	newHeader := layout.Header
	newHeader.XFilesFactor = xff
	buf := make([]byte, wformat.HeaderSize)
	newHeader.Encode(buf)
	if err := f.WriteAt(buf, 0); err != nil {
		return 0, err
	}
	return old, f.Flush()
}

// ResizeOptions configures Resize.
type ResizeOptions struct {
	XFilesFactor *float32
	Aggregation  *Aggregation
	Force        bool
	Aggregate    bool
	NewFile      string
	NoBackup     bool
	Now          uint32
}

// Resize rebuilds path with a new archive list, replaying existing data
// either through cross-archive propagation (Aggregate) or a best-effort
// direct copy per source archive. The new file is built at a temporary
// path and fsynced before the original is replaced, so a failure partway
// through leaves the original untouched; unless NewFile is set, the
// original is kept as path+".bak" afterward (deleted immediately if
// NoBackup is set). Any retention shrink relative to the current file
// requires Force.
func Resize(path string, archives []Archive, opts ResizeOptions) error {
	oldInfo, err := Info(path)
	if err != nil {
		return err
	}

	xff := oldInfo.XFilesFactor
	if opts.XFilesFactor != nil {
		xff = *opts.XFilesFactor
	}
	agg := oldInfo.Aggregation
	if opts.Aggregation != nil {
		agg = *opts.Aggregation
	}

	if !opts.Force {
		if shrinks(oldInfo.Archives, archives) {
			return werrors.Wrap(werrors.ErrDestructiveResize, "retention would shrink")
		}
	}

	now := now32(opts.Now)

	newPath := opts.NewFile
	if newPath == "" {
		newPath = path + ".tmp"
		_ = os.Remove(newPath)
	}

	if err := Create(newPath, archives, CreateOptions{XFilesFactor: xff, Aggregation: agg}); err != nil {
		return err
	}

	if err := migrateData(path, newPath, agg, xff, opts.Aggregate, now); err != nil {
		os.Remove(newPath)
		return err
	}

	if opts.NewFile != "" {
		return nil
	}

	log := wlog.Component("resize")
	backup := path + ".bak"
	if err := os.Rename(path, backup); err != nil {
		os.Remove(newPath)
		log.Error("rename original to backup failed", "path", path, "backup", backup, "error", err)
		return werrors.IO("rename original to backup", err)
	}
	log.Debug("renamed original to backup", "path", path, "backup", backup)
	if err := os.Rename(newPath, path); err != nil {
		_ = os.Rename(backup, path) // best-effort restore
		log.Error("rename new file into place failed, restored backup", "path", path, "error", err)
		return werrors.IO("rename new file into place", err)
	}
	log.Info("resized", "path", path, "backup", backup, "no_backup", opts.NoBackup)
	if opts.NoBackup {
		if err := os.Remove(backup); err != nil {
			log.Warn("failed to remove backup", "backup", backup, "error", err)
		}
	}
	return nil
}

// shrinks reports whether newArchives retains less than oldArchives for
// any resolution present in both, or drops a resolution entirely.
func shrinks(oldArchives, newArchives []Archive) bool {
	for _, o := range oldArchives {
		kept := false
		for _, n := range newArchives {
			if n.SecondsPerPoint == o.SecondsPerPoint {
				kept = n.Retention() >= o.Retention()
			}
		}
		if !kept {
			return true
		}
	}
	if len(newArchives) < len(oldArchives) {
		return true
	}
	oldMax, newMax := uint32(0), uint32(0)
	for _, a := range oldArchives {
		if r := a.Retention(); r > oldMax {
			oldMax = r
		}
	}
	for _, a := range newArchives {
		if r := a.Retention(); r > newMax {
			newMax = r
		}
	}
	return newMax < oldMax
}

// migrateData replays oldPath's data into newPath. With aggregate=true,
// every known point from every old archive is replayed through
// wprop.PropagateChain so
// it recomputes each new archive's propagation from scratch; otherwise
// each old archive is fetched in full and copied directly into whichever
// new archive is closest in seconds_per_point.
func migrateData(oldPath, newPath string, agg Aggregation, xff float32, aggregate bool, now uint32) error {
	oldF, err := wio.OpenReadOnly(oldPath)
	if err != nil {
		return err
	}
	defer oldF.Close()

	newF, err := wio.Open(newPath)
	if err != nil {
		return err
	}
	defer newF.Close()

	newLayout, err := readLayout(newF)
	if err != nil {
		return err
	}

	if aggregate {
		points, err := allKnownPoints(oldF, now)
		if err != nil {
			return err
		}
		log := wlog.Component("resize")
		for _, p := range points {
			if err := wprop.PropagateChain(newF, agg, xff, p.Timestamp, newLayout.Archives, p.Value, wprop.WithLogger(log)); err != nil {
				return err
			}
		}
		return newF.Flush()
	}

	oldLayout, err := readLayout(oldF)
	if err != nil {
		return err
	}

	for _, oldArchive := range oldLayout.Archives {
		target := nearestArchive(newLayout.Archives, oldArchive.SecondsPerPoint)
		oldFrom := uint32(0)
		if now > oldArchive.Retention() {
			oldFrom = now - oldArchive.Retention()
		}
		anchor, err := wprop.ReadAnchor(oldF, oldArchive)
		if err != nil {
			return err
		}
		from, _, step, values, known, err := wprop.FetchInterval(oldF, oldArchive, anchor, oldFrom, now)
		if err != nil {
			return err
		}
		points := make([]wformat.Point, 0, len(values))
		for i, v := range values {
			if known[i] {
				points = append(points, wformat.Point{Timestamp: from + uint32(i)*step, Value: v})
			}
		}
		if len(points) == 0 {
			continue
		}
		if err := wprop.WriteRun(newF, target, points); err != nil {
			return err
		}
	}
	return newF.Flush()
}

// nearestArchive returns the new-layout archive whose step is closest to
// step, preferring the finer of two equidistant candidates.
func nearestArchive(archives []wformat.ArchiveInfo, step uint32) wformat.ArchiveInfo {
	best := archives[0]
	bestDist := absDelta(best.SecondsPerPoint, step)
	for _, a := range archives[1:] {
		d := absDelta(a.SecondsPerPoint, step)
		if d < bestDist {
			best, bestDist = a, d
		}
	}
	return best
}

func absDelta(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}

// allKnownPoints reads every known point across every archive of a file,
// sorted ascending so PropagateChain replays them in an order that keeps
// each coarser archive computed from already-propagated data.
func allKnownPoints(f *wio.File, now uint32) ([]wformat.Point, error) {
	layout, err := readLayout(f)
	if err != nil {
		return nil, err
	}
	var all []wformat.Point
	for _, archive := range layout.Archives {
		from := uint32(0)
		if now > archive.Retention() {
			from = now - archive.Retention()
		}
		anchor, err := wprop.ReadAnchor(f, archive)
		if err != nil {
			return nil, err
		}
		fromAligned, _, step, values, known, err := wprop.FetchInterval(f, archive, anchor, from, now)
		if err != nil {
			return nil, err
		}
		for i, v := range values {
			if known[i] {
				all = append(all, wformat.Point{Timestamp: fromAligned + uint32(i)*step, Value: v})
			}
		}
	}
	sortPointsAscending(all)
	return all, nil
}

func sortPointsAscending(points []wformat.Point) {
	for i := 1; i < len(points); i++ {
		for j := i; j > 0 && points[j].Timestamp < points[j-1].Timestamp; j-- {
			points[j], points[j-1] = points[j-1], points[j]
		}
	}
}
