package wprop

import (
	"github.com/xtxerr/whisper/internal/wformat"
	"github.com/xtxerr/whisper/internal/wio"
	"github.com/xtxerr/whisper/internal/wring"
)

// FetchInterval reads the step-aligned interval [fromTime, untilTime) from
// archive, honoring wrap-around. It returns the aligned bounds, the
// archive's step, and one value/known pair per expected slot; a slot is
// known only if its stored timestamp matches the timestamp that slot is
// expected to hold.
func FetchInterval(f *wio.File, archive wformat.ArchiveInfo, anchorTs uint32, fromTime, untilTime uint32) (fromAligned, untilAligned, step uint32, values []float64, known []bool, err error) {
	step = archive.SecondsPerPoint
	fromAligned = wring.Align(fromTime, step)
	untilAligned = wring.Align(untilTime, step)

	if untilAligned <= fromAligned {
		return fromAligned, untilAligned, step, nil, nil, nil
	}
	n := (untilAligned - fromAligned) / step

	values = make([]float64, n)
	known = make([]bool, n)

	if anchorTs == 0 {
		return fromAligned, untilAligned, step, values, known, nil
	}

	points, err := ReadWindow(f, archive, anchorTs, fromAligned, n)
	if err != nil {
		return 0, 0, 0, nil, nil, err
	}

	expected := fromAligned
	for i, p := range points {
		if p.Timestamp == expected {
			values[i] = p.Value
			known[i] = true
		}
		expected += step
	}
	return fromAligned, untilAligned, step, values, known, nil
}
