package wexport

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFetchWritesExpectedRowCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.parquet")
	values := []float64{1, 2, 3, 4}
	known := []bool{true, false, true, true}

	n, err := WriteFetch(path, "cpu.load", 1_700_000_000, 60, values, known, CompressionSnappy)
	if err != nil {
		t.Fatalf("WriteFetch: %v", err)
	}
	if n != int64(len(values)) {
		t.Fatalf("row count = %d, want %d", n, len(values))
	}

	fi, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if fi.Size() == 0 {
		t.Fatal("expected a non-empty parquet file")
	}
}

func TestParseCompressionDefaultsToZstd(t *testing.T) {
	if ParseCompression("bogus") != CompressionZstd {
		t.Fatal("unrecognized compression name should default to zstd")
	}
	if ParseCompression("none") != CompressionNone {
		t.Fatal("\"none\" should map to CompressionNone")
	}
}
