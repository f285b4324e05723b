package whisper

import "github.com/xtxerr/whisper/internal/wsummary"

// Percentiles is a p50/p90/p95/p99 summary of a fetch result's known values.
type Percentiles = wsummary.Percentiles

// Summarize computes Percentiles over a FetchResult's known values.
func Summarize(result FetchResult) (Percentiles, error) {
	return wsummary.Summarize(result.Values, result.Known)
}
