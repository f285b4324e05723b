package werrors

import (
	"fmt"
	"testing"
)

func TestClassifyMatchesSentinel(t *testing.T) {
	if k := Classify(ErrCorruptFile); k != KindCorruptFile {
		t.Fatalf("Classify(ErrCorruptFile) = %v, want KindCorruptFile", k)
	}
	if k := Classify(ErrInvalidXFilesFactor); k != KindInvalidConfiguration {
		t.Fatalf("Classify(ErrInvalidXFilesFactor) = %v, want KindInvalidConfiguration", k)
	}
	if k := Classify(ErrTimestampNotCovered); k != KindTimestampNotCovered {
		t.Fatalf("Classify(ErrTimestampNotCovered) = %v, want KindTimestampNotCovered", k)
	}
}

func TestClassifyWalksWrappedChain(t *testing.T) {
	wrapped := Wrapf(ErrArchivesUnalike, "a.wsp vs %s", "b.wsp")
	if k := Classify(wrapped); k != KindInvalidConfiguration {
		t.Fatalf("Classify(wrapped) = %v, want KindInvalidConfiguration", k)
	}

	ioErr := IO("rename", fmt.Errorf("permission denied"))
	if k := Classify(ioErr); k != KindIOFailure {
		t.Fatalf("Classify(ioErr) = %v, want KindIOFailure", k)
	}
}

func TestClassifyUnknownForUnrelatedError(t *testing.T) {
	if k := Classify(fmt.Errorf("something else")); k != KindUnknown {
		t.Fatalf("Classify(unrelated) = %v, want KindUnknown", k)
	}
	if k := Classify(nil); k != KindUnknown {
		t.Fatalf("Classify(nil) = %v, want KindUnknown", k)
	}
}

func TestKindStringNames(t *testing.T) {
	cases := map[Kind]string{
		KindInvalidConfiguration: "InvalidConfiguration",
		KindCorruptFile:          "CorruptFile",
		KindTimestampNotCovered:  "TimestampNotCovered",
		KindArchiveBoundary:      "ArchiveBoundary",
		KindIOFailure:            "IOFailure",
		KindFileExists:           "FileExists",
		KindUnknown:              "Unknown",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Fatalf("Kind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}
