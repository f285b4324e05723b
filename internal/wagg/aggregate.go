// Package wagg implements the aggregation functions used to consolidate a
// window of fine-grained archive points into a single coarser point during
// propagation.
package wagg

import "github.com/xtxerr/whisper/internal/wformat"

// Coverage reports whether knownCount out of expectedCount slots in a
// propagation window is enough to satisfy xFilesFactor.
func Coverage(knownCount, expectedCount int, xFilesFactor float32) bool {
	if expectedCount == 0 {
		return false
	}
	knownPercent := float32(knownCount) / float32(expectedCount)
	return knownPercent >= xFilesFactor
}

// Aggregate consolidates knownValues (the non-empty values found in a
// propagation window) into a single value using method. neighborValues is
// the full window including empty slots as NaN placeholders; it is only
// consulted by AvgZero, which treats every unseen slot as 0 rather than
// excluding it from the average.
//
// knownValues must be non-empty; callers check Coverage first.
func Aggregate(method wformat.Aggregation, knownValues []float64, neighborValues []float64) float64 {
	switch method {
	case wformat.Average:
		return sum(knownValues) / float64(len(knownValues))
	case wformat.Sum:
		return sum(knownValues)
	case wformat.Last:
		return knownValues[len(knownValues)-1]
	case wformat.Max:
		return max(knownValues)
	case wformat.Min:
		return min(knownValues)
	case wformat.AvgZero:
		total := 0.0
		for _, v := range neighborValues {
			if !isNaN(v) {
				total += v
			}
		}
		return total / float64(len(neighborValues))
	case wformat.AbsMax:
		return absExtreme(knownValues, true)
	case wformat.AbsMin:
		return absExtreme(knownValues, false)
	default:
		return knownValues[len(knownValues)-1]
	}
}

func isNaN(v float64) bool {
	return v != v
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

func max(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func min(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// absExtreme mirrors Python's max(values, key=abs) / min(values, key=abs):
// the first value seen wins ties in magnitude, and the sign of the winning
// value (not its magnitude) is returned.
func absExtreme(values []float64, wantMax bool) float64 {
	best := values[0]
	bestAbs := absf(best)
	for _, v := range values[1:] {
		a := absf(v)
		if wantMax && a > bestAbs {
			best, bestAbs = v, a
		} else if !wantMax && a < bestAbs {
			best, bestAbs = v, a
		}
	}
	return best
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
