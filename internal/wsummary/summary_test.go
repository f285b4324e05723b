package wsummary

import (
	"math"
	"testing"
)

func TestSummarizeIgnoresUnknownSlots(t *testing.T) {
	values := []float64{10, 999, 20, 30, 999, 40, 50}
	known := []bool{true, false, true, true, false, true, true}

	p, err := Summarize(values, known)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if p.Count != 5 {
		t.Fatalf("count = %d, want 5", p.Count)
	}
	// with 1% relative accuracy the median of {10,20,30,40,50} should land
	// close to 30.
	if math.Abs(p.P50-30) > 1 {
		t.Fatalf("p50 = %v, want ~30", p.P50)
	}
	if p.P99 < 40 || p.P99 > 51 {
		t.Fatalf("p99 = %v, want close to the max (50)", p.P99)
	}
}

func TestSummarizeWithNoKnownValuesReturnsZeroCount(t *testing.T) {
	values := []float64{1, 2, 3}
	known := []bool{false, false, false}

	p, err := Summarize(values, known)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if p.Count != 0 {
		t.Fatalf("count = %d, want 0", p.Count)
	}
}

func TestSummarizeTreatsNilKnownAsAllKnown(t *testing.T) {
	values := []float64{5, 15, 25}
	p, err := Summarize(values, nil)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if p.Count != 3 {
		t.Fatalf("count = %d, want 3", p.Count)
	}
}
