package whisper

import "github.com/xtxerr/whisper/internal/wexport"

// ExportCompression identifies a Parquet compression codec for ExportParquet.
type ExportCompression = wexport.Compression

// The supported ExportParquet compression codecs.
const (
	ExportNone   = wexport.CompressionNone
	ExportSnappy = wexport.CompressionSnappy
	ExportZstd   = wexport.CompressionZstd
	ExportGzip   = wexport.CompressionGzip
)

// ExportParquet writes result to a Parquet file at path, one row per slot,
// tagged with metric. It returns the number of rows written.
func ExportParquet(path, metric string, result FetchResult, compression ExportCompression) (int64, error) {
	return wexport.WriteFetch(path, metric, result.From, result.Step, result.Values, result.Known, compression)
}
