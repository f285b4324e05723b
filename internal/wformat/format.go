// Package wformat packs and parses the fixed-width, big-endian structures
// that make up a whisper file: the 16-byte header, the 12-byte
// archive-info table entries, and the 12-byte point records.
//
// File layout:
//
//	Header ‖ ArchiveInfo[0..n) ‖ ArchiveData[0] ‖ ... ‖ ArchiveData[n-1]
//
// All integers are big-endian, matching the original whisper wire format
// so files remain byte-for-byte compatible with external tooling that
// reads or writes them.
package wformat

import (
	"encoding/binary"
	"math"

	"github.com/xtxerr/whisper/internal/werrors"
)

// Aggregation identifies the reduction applied during cross-archive
// propagation. The numeric values are the on-disk codes, 1..8.
type Aggregation uint32

const (
	Average Aggregation = iota + 1
	Sum
	Last
	Max
	Min
	AvgZero
	AbsMax
	AbsMin
)

// String returns the canonical token for the aggregation method.
func (a Aggregation) String() string {
	switch a {
	case Average:
		return "average"
	case Sum:
		return "sum"
	case Last:
		return "last"
	case Max:
		return "max"
	case Min:
		return "min"
	case AvgZero:
		return "avg_zero"
	case AbsMax:
		return "absmax"
	case AbsMin:
		return "absmin"
	default:
		return "unknown"
	}
}

// ParseAggregation maps a literal token to its Aggregation code.
func ParseAggregation(s string) (Aggregation, error) {
	switch s {
	case "average":
		return Average, nil
	case "sum":
		return Sum, nil
	case "last":
		return Last, nil
	case "max":
		return Max, nil
	case "min":
		return Min, nil
	case "avg_zero":
		return AvgZero, nil
	case "absmax":
		return AbsMax, nil
	case "absmin":
		return AbsMin, nil
	default:
		return 0, werrors.Wrapf(werrors.ErrUnknownAggregation, "%q", s)
	}
}

// Valid reports whether a is one of the eight known codes.
func (a Aggregation) Valid() bool {
	return a >= Average && a <= AbsMin
}

const (
	// HeaderSize is the byte size of the fixed Header region.
	HeaderSize = 4 + 4 + 4 + 4 // aggregation(4) + maxRetention(4) + xff(4) + archiveCount(4)

	// ArchiveInfoSize is the byte size of one ArchiveInfo entry.
	ArchiveInfoSize = 4 + 4 + 4 // offset(4) + secondsPerPoint(4) + points(4)

	// PointSize is the byte size of one Point record.
	PointSize = 4 + 8 // timestamp(4) + value(8)
)

// Header is the 16-byte file metadata block.
type Header struct {
	Aggregation   Aggregation
	MaxRetention  uint32
	XFilesFactor  float32
	ArchiveCount  uint32
}

// Encode writes the header into the first HeaderSize bytes of dst.
func (h Header) Encode(dst []byte) {
	_ = dst[:HeaderSize]
	binary.BigEndian.PutUint32(dst[0:4], uint32(h.Aggregation))
	binary.BigEndian.PutUint32(dst[4:8], h.MaxRetention)
	binary.BigEndian.PutUint32(dst[8:12], math.Float32bits(h.XFilesFactor))
	binary.BigEndian.PutUint32(dst[12:16], h.ArchiveCount)
}

// DecodeHeader parses a Header from the first HeaderSize bytes of src.
// It validates the aggregation code and the xFilesFactor range, but not
// archive count against file size (the caller does that once offsets are
// known, since it requires the full archive-info table).
func DecodeHeader(src []byte) (Header, error) {
	if len(src) < HeaderSize {
		return Header{}, werrors.Wrap(werrors.ErrCorruptFile, "truncated header")
	}
	agg := Aggregation(binary.BigEndian.Uint32(src[0:4]))
	if !agg.Valid() {
		return Header{}, werrors.Wrapf(werrors.ErrCorruptFile, "unknown aggregation code %d", agg)
	}
	maxRetention := binary.BigEndian.Uint32(src[4:8])
	xff := math.Float32frombits(binary.BigEndian.Uint32(src[8:12]))
	if xff < 0 || xff > 1 {
		return Header{}, werrors.Wrapf(werrors.ErrCorruptFile, "x_files_factor %v out of [0,1]", xff)
	}
	count := binary.BigEndian.Uint32(src[12:16])
	if count == 0 {
		return Header{}, werrors.Wrap(werrors.ErrCorruptFile, "archive_count is zero")
	}
	return Header{
		Aggregation:  agg,
		MaxRetention: maxRetention,
		XFilesFactor: xff,
		ArchiveCount: count,
	}, nil
}

// ArchiveInfo is one 12-byte entry of the archive-info table.
type ArchiveInfo struct {
	Offset          uint32
	SecondsPerPoint uint32
	Points          uint32
}

// Retention returns the archive's retention span in seconds.
func (a ArchiveInfo) Retention() uint32 { return a.SecondsPerPoint * a.Points }

// Size returns the byte size of the archive's data region.
func (a ArchiveInfo) Size() uint32 { return a.Points * PointSize }

// Encode writes the archive-info entry into the first ArchiveInfoSize
// bytes of dst.
func (a ArchiveInfo) Encode(dst []byte) {
	_ = dst[:ArchiveInfoSize]
	binary.BigEndian.PutUint32(dst[0:4], a.Offset)
	binary.BigEndian.PutUint32(dst[4:8], a.SecondsPerPoint)
	binary.BigEndian.PutUint32(dst[8:12], a.Points)
}

// DecodeArchiveInfo parses an ArchiveInfo from the first ArchiveInfoSize
// bytes of src.
func DecodeArchiveInfo(src []byte) (ArchiveInfo, error) {
	if len(src) < ArchiveInfoSize {
		return ArchiveInfo{}, werrors.Wrap(werrors.ErrCorruptFile, "truncated archive info")
	}
	return ArchiveInfo{
		Offset:          binary.BigEndian.Uint32(src[0:4]),
		SecondsPerPoint: binary.BigEndian.Uint32(src[4:8]),
		Points:          binary.BigEndian.Uint32(src[8:12]),
	}, nil
}

// Point is a single (timestamp, value) slot. A zero Timestamp denotes an
// empty slot.
type Point struct {
	Timestamp uint32
	Value     float64
}

// Empty reports whether the point's slot has never been written.
func (p Point) Empty() bool { return p.Timestamp == 0 }

// PackPoint writes ts/value into the first PointSize bytes of dst.
func PackPoint(dst []byte, ts uint32, value float64) {
	_ = dst[:PointSize]
	binary.BigEndian.PutUint32(dst[0:4], ts)
	binary.BigEndian.PutUint64(dst[4:12], math.Float64bits(value))
}

// UnpackPoint parses a single point from the first PointSize bytes of src.
func UnpackPoint(src []byte) Point {
	_ = src[:PointSize]
	return Point{
		Timestamp: binary.BigEndian.Uint32(src[0:4]),
		Value:     math.Float64frombits(binary.BigEndian.Uint64(src[4:12])),
	}
}

// UnpackPoints decodes buf (a whole number of PointSize-byte records) into
// a sequence of Points, in on-disk order.
func UnpackPoints(buf []byte) []Point {
	n := len(buf) / PointSize
	out := make([]Point, n)
	for i := 0; i < n; i++ {
		out[i] = UnpackPoint(buf[i*PointSize : (i+1)*PointSize])
	}
	return out
}

// PackPoints encodes points into a contiguous byte buffer.
func PackPoints(points []Point) []byte {
	buf := make([]byte, len(points)*PointSize)
	for i, p := range points {
		PackPoint(buf[i*PointSize:(i+1)*PointSize], p.Timestamp, p.Value)
	}
	return buf
}

// Layout is the fully-resolved, validated shape of a whisper file:
// header plus archive table, with derived offsets and total file size.
type Layout struct {
	Header   Header
	Archives []ArchiveInfo
}

// HeaderTableSize returns the byte size of Header + the archive-info table.
func (l Layout) HeaderTableSize() int64 {
	return int64(HeaderSize) + int64(len(l.Archives))*int64(ArchiveInfoSize)
}

// FileSize returns the total byte size the layout implies on disk.
func (l Layout) FileSize() int64 {
	size := l.HeaderTableSize()
	for _, a := range l.Archives {
		size += int64(a.Size())
	}
	return size
}

// ValidateArchives checks a proposed (or loaded) archive list and
// xFilesFactor: at least one archive, strictly ascending steps, exact step
// divisibility, strictly increasing retention, and sufficient points to
// consolidate into the next archive. It does not check file size or
// offsets on disk — that is CorruptFile territory and requires the actual
// file (see ValidateLayout).
func ValidateArchives(archives []ArchiveInfo, xff float32) error {
	if len(archives) == 0 {
		return werrors.Wrap(werrors.ErrInvalidConfiguration, "at least one archive is required")
	}
	if xff < 0 || xff > 1 {
		return werrors.Wrapf(werrors.ErrInvalidXFilesFactor, "%v", xff)
	}
	for i := 0; i < len(archives)-1; i++ {
		fine, coarse := archives[i], archives[i+1]
		if !(fine.SecondsPerPoint < coarse.SecondsPerPoint) {
			return werrors.Wrapf(werrors.ErrNonMonotoneArchives,
				"archive %d (step=%d) must be finer than archive %d (step=%d)",
				i, fine.SecondsPerPoint, i+1, coarse.SecondsPerPoint)
		}
		if coarse.SecondsPerPoint%fine.SecondsPerPoint != 0 {
			return werrors.Wrapf(werrors.ErrIndivisibleStep,
				"archive %d step %d does not evenly divide archive %d step %d",
				i, fine.SecondsPerPoint, i+1, coarse.SecondsPerPoint)
		}
		if !(fine.Retention() < coarse.Retention()) {
			return werrors.Wrapf(werrors.ErrRetentionTooShort,
				"archive %d retention %ds must be less than archive %d retention %ds",
				i, fine.Retention(), i+1, coarse.Retention())
		}
		pointsPerConsolidation := coarse.SecondsPerPoint / fine.SecondsPerPoint
		if fine.Points < pointsPerConsolidation {
			return werrors.Wrapf(werrors.ErrInsufficientPoints,
				"archive %d has only %d points but needs %d to consolidate into archive %d",
				i, fine.Points, pointsPerConsolidation, i+1)
		}
	}
	return nil
}

// BuildLayout validates archives and assigns contiguous, non-overlapping
// offsets immediately following the header-table region, computing
// MaxRetention from the coarsest archive.
func BuildLayout(archives []ArchiveInfo, xff float32, agg Aggregation) (Layout, error) {
	if err := ValidateArchives(archives, xff); err != nil {
		return Layout{}, err
	}
	if !agg.Valid() {
		return Layout{}, werrors.Wrapf(werrors.ErrUnknownAggregation, "code %d", agg)
	}

	laidOut := make([]ArchiveInfo, len(archives))
	copy(laidOut, archives)

	offset := uint32(HeaderSize + len(laidOut)*ArchiveInfoSize)
	var maxRetention uint32
	for i := range laidOut {
		laidOut[i].Offset = offset
		offset += laidOut[i].Size()
		if r := laidOut[i].Retention(); r > maxRetention {
			maxRetention = r
		}
	}

	return Layout{
		Header: Header{
			Aggregation:  agg,
			MaxRetention: maxRetention,
			XFilesFactor: xff,
			ArchiveCount: uint32(len(laidOut)),
		},
		Archives: laidOut,
	}, nil
}

// ValidateLayout checks that a layout decoded from an on-disk file is
// internally consistent: offsets lie within the file, are contiguous and
// non-overlapping, and the declared size matches actualSize.
func ValidateLayout(l Layout, actualSize int64) error {
	expectedOffset := uint32(l.HeaderTableSize())
	for i, a := range l.Archives {
		if a.Offset != expectedOffset {
			return werrors.Wrapf(werrors.ErrCorruptFile,
				"archive %d offset %d is not contiguous (expected %d)", i, a.Offset, expectedOffset)
		}
		if int64(a.Offset)+int64(a.Size()) > actualSize {
			return werrors.Wrapf(werrors.ErrOffsetOutOfFile,
				"archive %d data region [%d,%d) escapes file of size %d",
				i, a.Offset, int64(a.Offset)+int64(a.Size()), actualSize)
		}
		expectedOffset += a.Size()
	}
	if l.FileSize() != actualSize {
		return werrors.Wrapf(werrors.ErrSizeMismatch,
			"layout implies %d bytes, file is %d bytes", l.FileSize(), actualSize)
	}
	return nil
}
