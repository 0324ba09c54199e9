package bug

import (
	"errors"
	"testing"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		code int64
		want Criticality
	}{
		{0, CriticalityLow},
		{1, CriticalityMedium},
		{2, CriticalityHigh},
		{3, CriticalityUnknown},
		{-1, CriticalityUnknown},
		{255, CriticalityUnknown},
		{1 << 40, CriticalityUnknown},
	}

	for _, tt := range tests {
		if got := Decode(tt.code); got != tt.want {
			t.Errorf("Decode(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	for _, c := range Selectable {
		code := Encode(c.String())
		if code == InvalidCode {
			t.Fatalf("Encode(%q) returned the invalid sentinel", c)
		}
		if got := Decode(int64(code)); got != c {
			t.Errorf("Decode(Encode(%q)) = %q", c, got)
		}
	}
}

func TestEncode_InvalidLabels(t *testing.T) {
	for _, label := range []string{"", "low", "LOW", "Unknown", "Critical", " High"} {
		if got := Encode(label); got != InvalidCode {
			t.Errorf("Encode(%q) = %d, want %d", label, got, InvalidCode)
		}
	}
}

func TestParseCriticality(t *testing.T) {
	c, err := ParseCriticality("Medium")
	if err != nil {
		t.Fatalf("ParseCriticality() error = %v", err)
	}
	if c != CriticalityMedium {
		t.Errorf("ParseCriticality() = %v, want Medium", c)
	}

	_, err = ParseCriticality("Unknown")
	if !errors.Is(err, ErrInvalidCriticality) {
		t.Errorf("ParseCriticality(Unknown) error = %v, want ErrInvalidCriticality", err)
	}
}

func TestCriticality_Code(t *testing.T) {
	if _, ok := CriticalityUnknown.Code(); ok {
		t.Error("CriticalityUnknown should not have a code")
	}
	if code, ok := CriticalityHigh.Code(); !ok || code != 2 {
		t.Errorf("CriticalityHigh.Code() = %d, %v", code, ok)
	}
}

func TestDraft_Reset(t *testing.T) {
	d := &Draft{ID: "BUG-1", Description: "x", Criticality: "High"}
	d.Reset()

	if *d != *NewDraft() {
		t.Errorf("Reset() left %+v", *d)
	}
}

func TestProjection_At(t *testing.T) {
	p := Projection{Bugs: []Bug{{ID: "a", Index: 0}, {ID: "b", Index: 1}}}

	if b, ok := p.At(1); !ok || b.ID != "b" {
		t.Errorf("At(1) = %+v, %v", b, ok)
	}
	if _, ok := p.At(2); ok {
		t.Error("At(2) should be out of range")
	}
	if _, ok := p.At(-1); ok {
		t.Error("At(-1) should be out of range")
	}
}
