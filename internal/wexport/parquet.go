// Package wexport writes a fetched range of points out to Parquet for
// downstream analytics tooling, an export path outside the storage
// engine's own binary format.
package wexport

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
)

// Compression identifies a Parquet compression codec.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionSnappy
	CompressionZstd
	CompressionGzip
)

// ParseCompression parses a compression codec name, defaulting to Zstd
// for anything unrecognized.
func ParseCompression(s string) Compression {
	switch s {
	case "none", "":
		return CompressionNone
	case "snappy":
		return CompressionSnappy
	case "gzip":
		return CompressionGzip
	default:
		return CompressionZstd
	}
}

func codec(c Compression) compress.Codec {
	switch c {
	case CompressionSnappy:
		return &parquet.Snappy
	case CompressionGzip:
		return &parquet.Gzip
	case CompressionZstd:
		return &parquet.Zstd
	default:
		return &parquet.Uncompressed
	}
}

// PointRow is one consolidated sample in Parquet form.
type PointRow struct {
	Metric      string  `parquet:"metric,zstd"`
	TimestampMs int64   `parquet:"timestamp_ms"`
	Value       float64 `parquet:"value"`
	Known       bool    `parquet:"known"`
}

// WriteFetch writes one row per slot of a fetch result to a Parquet file
// at path, tagging every row with metric so multiple metrics can later be
// concatenated into a single dataset.
func WriteFetch(path string, metric string, from, step uint32, values []float64, known []bool, compression Compression) (rowCount int64, err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}

	writer := parquet.NewGenericWriter[PointRow](f, parquet.Compression(codec(compression)))

	rows := make([]PointRow, len(values))
	for i, v := range values {
		rows[i] = PointRow{
			Metric:      metric,
			TimestampMs: (int64(from) + int64(i)*int64(step)) * 1000,
			Value:       v,
			Known:       i < len(known) && known[i],
		}
	}

	n, writeErr := writer.Write(rows)
	closeErr := writer.Close()
	if writeErr == nil {
		writeErr = closeErr
	}
	if fileCloseErr := f.Close(); writeErr == nil {
		writeErr = fileCloseErr
	}
	if writeErr != nil {
		return int64(n), fmt.Errorf("write rows: %w", writeErr)
	}
	return int64(n), nil
}
