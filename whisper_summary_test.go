package whisper

import "testing"

func TestSummarizeOverFetchResult(t *testing.T) {
	result := FetchResult{
		From: 0, Until: 300, Step: 60,
		Values: []float64{10, 20, 30, 40, 50},
		Known:  []bool{true, true, true, true, true},
	}
	p, err := Summarize(result)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if p.Count != 5 {
		t.Fatalf("count = %d, want 5", p.Count)
	}
}
