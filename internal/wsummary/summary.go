// Package wsummary computes percentile summaries over a fetched range of
// known values using a DDSketch, a relative-error sketch well suited to
// one-shot percentile queries over an already-materialized value slice.
package wsummary

import "github.com/DataDog/sketches-go/ddsketch"

// DefaultRelativeAccuracy is the sketch's guaranteed relative error at any
// quantile.
const DefaultRelativeAccuracy = 0.01

// Percentiles holds the p50/p90/p95/p99 of a value distribution.
type Percentiles struct {
	Count int
	P50   float64
	P90   float64
	P95   float64
	P99   float64
}

// Summarize builds a Percentiles from values, ignoring positions where
// known is false. It returns a zero-Count Percentiles if no value is
// known — callers should check Count before trusting the quantiles.
func Summarize(values []float64, known []bool) (Percentiles, error) {
	return SummarizeWithAccuracy(values, known, DefaultRelativeAccuracy)
}

// SummarizeWithAccuracy is Summarize with an explicit relative accuracy
// for the underlying sketch.
func SummarizeWithAccuracy(values []float64, known []bool, relativeAccuracy float64) (Percentiles, error) {
	sketch, err := ddsketch.NewDefaultDDSketch(relativeAccuracy)
	if err != nil {
		return Percentiles{}, err
	}

	count := 0
	for i, v := range values {
		if i < len(known) && !known[i] {
			continue
		}
		sketch.Add(v)
		count++
	}
	if count == 0 {
		return Percentiles{}, nil
	}

	p50, _ := sketch.GetValueAtQuantile(0.50)
	p90, _ := sketch.GetValueAtQuantile(0.90)
	p95, _ := sketch.GetValueAtQuantile(0.95)
	p99, _ := sketch.GetValueAtQuantile(0.99)
	return Percentiles{Count: count, P50: p50, P90: p90, P95: p95, P99: p99}, nil
}
