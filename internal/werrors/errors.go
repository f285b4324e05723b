// Package werrors defines the error taxonomy shared by every whisper
// component: sentinel errors, a classification into the six error kinds
// engines expose to callers, and small wrapping helpers used instead of
// ad hoc fmt.Errorf throughout the codebase.
package werrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the categories a caller can act on.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidConfiguration
	KindCorruptFile
	KindTimestampNotCovered
	KindArchiveBoundary
	KindIOFailure
	KindFileExists
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindInvalidConfiguration:
		return "InvalidConfiguration"
	case KindCorruptFile:
		return "CorruptFile"
	case KindTimestampNotCovered:
		return "TimestampNotCovered"
	case KindArchiveBoundary:
		return "ArchiveBoundary"
	case KindIOFailure:
		return "IOFailure"
	case KindFileExists:
		return "FileExists"
	default:
		return "Unknown"
	}
}

// Sentinel errors. Every error surfaced by the whisper package wraps one
// of these so callers can use errors.Is regardless of the added context.
var (
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrUnknownAggregation   = errors.New("unknown aggregation method")
	ErrInvalidXFilesFactor  = errors.New("x_files_factor out of range [0,1]")
	ErrNonMonotoneArchives  = errors.New("archive steps are not strictly ascending")
	ErrRetentionTooShort    = errors.New("coarser archive does not retain longer than its finer neighbor")
	ErrIndivisibleStep      = errors.New("coarser archive step is not a multiple of its finer neighbor")
	ErrInsufficientPoints   = errors.New("archive lacks enough points to consolidate into its neighbor")

	ErrCorruptFile     = errors.New("corrupt whisper file")
	ErrSizeMismatch    = errors.New("declared file size does not match actual size")
	ErrOffsetOutOfFile = errors.New("archive offset escapes the file")

	ErrTimestampNotCovered = errors.New("timestamp not covered by any archive")

	ErrArchiveBoundary    = errors.New("invalid time interval")
	ErrFromAfterUntil     = errors.New("from time is after until time")
	ErrRangeFullyFuture   = errors.New("requested range lies entirely in the future")
	ErrUnknownGranularity = errors.New("no archive matches the requested granularity")

	ErrIOFailure = errors.New("i/o failure")

	ErrFileExists       = errors.New("file already exists")
	ErrArchivesUnalike  = errors.New("archive configurations are not identical")
	ErrDestructiveResize = errors.New("resize would shrink retention; pass Force to allow it")
)

// classification groups sentinels under their Kind for Classify.
var classification = map[error]Kind{
	ErrInvalidConfiguration: KindInvalidConfiguration,
	ErrUnknownAggregation:   KindInvalidConfiguration,
	ErrInvalidXFilesFactor:  KindInvalidConfiguration,
	ErrNonMonotoneArchives:  KindInvalidConfiguration,
	ErrRetentionTooShort:    KindInvalidConfiguration,
	ErrIndivisibleStep:      KindInvalidConfiguration,
	ErrInsufficientPoints:   KindInvalidConfiguration,

	ErrCorruptFile:     KindCorruptFile,
	ErrSizeMismatch:    KindCorruptFile,
	ErrOffsetOutOfFile: KindCorruptFile,

	ErrTimestampNotCovered: KindTimestampNotCovered,

	ErrArchiveBoundary:    KindArchiveBoundary,
	ErrFromAfterUntil:     KindArchiveBoundary,
	ErrRangeFullyFuture:   KindArchiveBoundary,
	ErrUnknownGranularity: KindArchiveBoundary,

	ErrIOFailure: KindIOFailure,

	ErrFileExists:        KindFileExists,
	ErrArchivesUnalike:   KindInvalidConfiguration,
	ErrDestructiveResize: KindInvalidConfiguration,
}

// Classify returns the Kind of err, walking the error chain with errors.Is.
// Returns KindUnknown if err does not wrap any known sentinel.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for sentinel, kind := range classification {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindUnknown
}

// Is is a convenience wrapper for errors.Is.
var Is = errors.Is

// As is a convenience wrapper for errors.As.
var As = errors.As

// Wrap wraps err with a message, preserving the chain for errors.Is/As.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps err with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// IO wraps an underlying I/O error (open/read/write/lock/rename) with
// ErrIOFailure so callers can classify it uniformly regardless of cause.
func IO(op string, cause error) error {
	if cause == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, cause, ErrIOFailure)
}
