package wformat

import "testing"

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		Aggregation:  AvgZero,
		MaxRetention: 604800,
		XFilesFactor: 0.5,
		ArchiveCount: 3,
	}
	buf := make([]byte, HeaderSize)
	h.Encode(buf)

	got, err := DecodeHeader(buf)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestDecodeHeaderRejectsUnknownAggregation(t *testing.T) {
	h := Header{Aggregation: Aggregation(99), MaxRetention: 1, XFilesFactor: 0.5, ArchiveCount: 1}
	buf := make([]byte, HeaderSize)
	h.Encode(buf)
	if _, err := DecodeHeader(buf); err == nil {
		t.Fatal("expected error for unknown aggregation code")
	}
}

func TestDecodeHeaderRejectsBadXFF(t *testing.T) {
	h := Header{Aggregation: Average, MaxRetention: 1, XFilesFactor: 1.5, ArchiveCount: 1}
	buf := make([]byte, HeaderSize)
	h.Encode(buf)
	if _, err := DecodeHeader(buf); err == nil {
		t.Fatal("expected error for xff outside [0,1]")
	}
}

func TestDecodeHeaderRejectsZeroArchiveCount(t *testing.T) {
	h := Header{Aggregation: Average, MaxRetention: 1, XFilesFactor: 0.5, ArchiveCount: 0}
	buf := make([]byte, HeaderSize)
	h.Encode(buf)
	if _, err := DecodeHeader(buf); err == nil {
		t.Fatal("expected error for archive_count 0")
	}
}

func TestArchiveInfoRoundTrip(t *testing.T) {
	a := ArchiveInfo{Offset: 16, SecondsPerPoint: 60, Points: 1440}
	buf := make([]byte, ArchiveInfoSize)
	a.Encode(buf)

	got, err := DecodeArchiveInfo(buf)
	if err != nil {
		t.Fatalf("DecodeArchiveInfo: %v", err)
	}
	if got != a {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, a)
	}
	if a.Retention() != 60*1440 {
		t.Errorf("Retention() = %d, want %d", a.Retention(), 60*1440)
	}
	if a.Size() != 1440*PointSize {
		t.Errorf("Size() = %d, want %d", a.Size(), 1440*PointSize)
	}
}

func TestPointRoundTrip(t *testing.T) {
	buf := make([]byte, PointSize)
	PackPoint(buf, 1000, 42.5)
	p := UnpackPoint(buf)
	if p.Timestamp != 1000 || p.Value != 42.5 {
		t.Fatalf("got %+v", p)
	}
	if p.Empty() {
		t.Fatal("point with nonzero timestamp should not be empty")
	}

	var zero Point
	if !zero.Empty() {
		t.Fatal("zero-value point should be empty")
	}
}

func TestUnpackPackPointsRoundTrip(t *testing.T) {
	points := []Point{
		{Timestamp: 60, Value: 1},
		{Timestamp: 120, Value: 2},
		{Timestamp: 0, Value: 0},
	}
	buf := PackPoints(points)
	got := UnpackPoints(buf)
	if len(got) != len(points) {
		t.Fatalf("got %d points, want %d", len(got), len(points))
	}
	for i := range points {
		if got[i] != points[i] {
			t.Errorf("point %d: got %+v, want %+v", i, got[i], points[i])
		}
	}
}

func TestValidateArchivesRejectsEmpty(t *testing.T) {
	if err := ValidateArchives(nil, 0.5); err == nil {
		t.Fatal("expected error for empty archive list")
	}
}

func TestValidateArchivesRejectsDuplicateStep(t *testing.T) {
	archives := []ArchiveInfo{
		{SecondsPerPoint: 60, Points: 1440},
		{SecondsPerPoint: 60, Points: 2880},
	}
	if err := ValidateArchives(archives, 0.5); err == nil {
		t.Fatal("expected error for non-ascending steps")
	}
}

func TestValidateArchivesRejectsIndivisibleStep(t *testing.T) {
	archives := []ArchiveInfo{
		{SecondsPerPoint: 60, Points: 1440},
		{SecondsPerPoint: 90, Points: 2000},
	}
	if err := ValidateArchives(archives, 0.5); err == nil {
		t.Fatal("expected error for step that doesn't divide evenly")
	}
}

func TestValidateArchivesRejectsShrinkingRetention(t *testing.T) {
	archives := []ArchiveInfo{
		{SecondsPerPoint: 60, Points: 1440},  // 86400s retention
		{SecondsPerPoint: 300, Points: 100},  // 30000s retention, less than fine
	}
	if err := ValidateArchives(archives, 0.5); err == nil {
		t.Fatal("expected error for coarse archive with shorter retention")
	}
}

func TestValidateArchivesRejectsInsufficientPoints(t *testing.T) {
	archives := []ArchiveInfo{
		{SecondsPerPoint: 60, Points: 2}, // needs 5 points to consolidate into 300s
		{SecondsPerPoint: 300, Points: 1000},
	}
	if err := ValidateArchives(archives, 0.5); err == nil {
		t.Fatal("expected error for insufficient points to consolidate")
	}
}

func TestValidateArchivesRejectsBadXFF(t *testing.T) {
	archives := []ArchiveInfo{{SecondsPerPoint: 60, Points: 1440}}
	if err := ValidateArchives(archives, 1.1); err == nil {
		t.Fatal("expected error for xff > 1")
	}
	if err := ValidateArchives(archives, -0.1); err == nil {
		t.Fatal("expected error for xff < 0")
	}
}

func TestBuildLayoutComputesOffsetsAndRetention(t *testing.T) {
	l, err := BuildLayout([]ArchiveInfo{
		{SecondsPerPoint: 60, Points: 1440},
		{SecondsPerPoint: 300, Points: 288},
		{SecondsPerPoint: 3600, Points: 168},
	}, 0.5, Average)
	if err != nil {
		t.Fatalf("BuildLayout: %v", err)
	}

	headerTable := int64(HeaderSize + 3*ArchiveInfoSize)
	if l.Archives[0].Offset != uint32(headerTable) {
		t.Errorf("archive 0 offset = %d, want %d", l.Archives[0].Offset, headerTable)
	}
	wantSize := headerTable + (1440+288+168)*int64(PointSize)
	if l.FileSize() != wantSize {
		t.Errorf("FileSize() = %d, want %d", l.FileSize(), wantSize)
	}
	if l.FileSize() != 22804 {
		t.Errorf("FileSize() = %d, want 22804 per the end-to-end scenario", l.FileSize())
	}
	if l.Header.MaxRetention != 3600*168 {
		t.Errorf("MaxRetention = %d, want %d", l.Header.MaxRetention, 3600*168)
	}
}

func TestValidateLayoutDetectsSizeMismatch(t *testing.T) {
	l, err := BuildLayout([]ArchiveInfo{{SecondsPerPoint: 60, Points: 10}}, 0.5, Average)
	if err != nil {
		t.Fatalf("BuildLayout: %v", err)
	}
	if err := ValidateLayout(l, l.FileSize()); err != nil {
		t.Fatalf("ValidateLayout on correct size: %v", err)
	}
	if err := ValidateLayout(l, l.FileSize()-1); err == nil {
		t.Fatal("expected error for mismatched size")
	}
}
