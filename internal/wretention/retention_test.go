package wretention

import "testing"

func TestParseBareIntegers(t *testing.T) {
	d, err := Parse("60:1440")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.SecondsPerPoint != 60 || d.Points != 1440 {
		t.Fatalf("got %+v", d)
	}
}

func TestParseUnitPrecisionAndDurationPoints(t *testing.T) {
	d, err := Parse("1m:30d")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.SecondsPerPoint != 60 {
		t.Fatalf("precision = %d, want 60", d.SecondsPerPoint)
	}
	wantPoints := uint32(30*86400) / 60
	if d.Points != wantPoints {
		t.Fatalf("points = %d, want %d", d.Points, wantPoints)
	}
}

func TestParseAbbreviatedUnits(t *testing.T) {
	d, err := Parse("1h:7d")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.SecondsPerPoint != 3600 {
		t.Fatalf("precision = %d, want 3600", d.SecondsPerPoint)
	}
	wantPoints := uint32(7*86400) / 3600
	if d.Points != wantPoints {
		t.Fatalf("points = %d, want %d", d.Points, wantPoints)
	}
}

func TestParseRejectsMissingColon(t *testing.T) {
	if _, err := Parse("60"); err == nil {
		t.Fatal("expected error for missing colon")
	}
}

func TestParseRejectsBadUnit(t *testing.T) {
	if _, err := Parse("1q:1d"); err == nil {
		t.Fatal("expected error for unknown unit")
	}
}

func TestParseAllSplitsOnComma(t *testing.T) {
	defs, err := ParseAll("60s:1d,1h:30d,1d:5y")
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	if len(defs) != 3 {
		t.Fatalf("got %d defs, want 3", len(defs))
	}
	if defs[0].SecondsPerPoint != 60 {
		t.Fatalf("defs[0].SecondsPerPoint = %d, want 60", defs[0].SecondsPerPoint)
	}
}

func TestParseAllRejectsEmpty(t *testing.T) {
	if _, err := ParseAll(""); err == nil {
		t.Fatal("expected error for empty spec")
	}
}
