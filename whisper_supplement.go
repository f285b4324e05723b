package whisper

import (
	"time"

	"github.com/xtxerr/whisper/internal/wformat"
	"github.com/xtxerr/whisper/internal/wio"
)

// EstimateSize computes the byte size a file created with archives would
// occupy on disk, without creating or touching any file.
func EstimateSize(archives []Archive) (int64, error) {
	layout, err := wformat.BuildLayout(toArchiveInfos(archives), 0.5, Average)
	if err != nil {
		return 0, err
	}
	return layout.FileSize(), nil
}

// ArchiveDump is every point (including empty slots) of one archive, in
// on-disk order starting from the archive's own offset — not reordered by
// timestamp, so an empty archive dumps as all-zero points.
type ArchiveDump struct {
	Archive Archive
	Points  []Point
}

// DumpResult is the raw contents of a whisper file: its header info plus every
// slot of every archive, unfiltered by known/unknown status. Rendering it
// for a human is left to callers (the CLI formats it as a table).
type DumpResult struct {
	Info     FileInfo
	Archives []ArchiveDump
}

// Dump reads every point of every archive in path, including never-written
// slots (Timestamp == 0).
func Dump(path string) (DumpResult, error) {
	f, err := wio.OpenReadOnly(path)
	if err != nil {
		return DumpResult{}, err
	}
	defer f.Close()
	f.EnableMmap()

	layout, err := readLayout(f)
	if err != nil {
		return DumpResult{}, err
	}

	dump := DumpResult{
		Info: FileInfo{
			Aggregation:  layout.Header.Aggregation,
			MaxRetention: layout.Header.MaxRetention,
			XFilesFactor: layout.Header.XFilesFactor,
			Archives:     fromArchiveInfos(layout.Archives),
		},
		Archives: make([]ArchiveDump, len(layout.Archives)),
	}
	for i, a := range layout.Archives {
		buf := make([]byte, a.Size())
		if err := f.ReadAt(buf, int64(a.Offset)); err != nil {
			return DumpResult{}, err
		}
		dump.Archives[i] = ArchiveDump{
			Archive: Archive{SecondsPerPoint: a.SecondsPerPoint, Points: a.Points},
			Points:  wformat.UnpackPoints(buf),
		}
	}
	return dump, nil
}

// CorruptReport is one file's outcome from FindCorrupt.
type CorruptReport struct {
	Path  string
	Err   error
	Valid bool
}

// FindCorrupt validates the header and archive table of every path,
// continuing past failures instead of stopping at the first one, so a
// batch scan reports every corrupt file rather than just the first.
func FindCorrupt(paths []string) []CorruptReport {
	reports := make([]CorruptReport, len(paths))
	for i, path := range paths {
		reports[i] = CorruptReport{Path: path}
		f, err := wio.OpenReadOnly(path)
		if err != nil {
			reports[i].Err = err
			continue
		}
		_, err = readLayout(f)
		f.Close()
		if err != nil {
			reports[i].Err = err
			continue
		}
		reports[i].Valid = true
	}
	return reports
}

// LastUpdate returns the most recent timestamp stored in any archive of
// path, or the zero time if the file has never been written to.
func LastUpdate(path string) (time.Time, error) {
	f, err := wio.OpenReadOnly(path)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	layout, err := readLayout(f)
	if err != nil {
		return time.Time{}, err
	}

	var newest uint32
	for _, a := range layout.Archives {
		buf := make([]byte, a.Size())
		if err := f.ReadAt(buf, int64(a.Offset)); err != nil {
			return time.Time{}, err
		}
		for _, p := range wformat.UnpackPoints(buf) {
			if p.Timestamp > newest {
				newest = p.Timestamp
			}
		}
	}
	if newest == 0 {
		return time.Time{}, nil
	}
	return time.Unix(int64(newest), 0).UTC(), nil
}
