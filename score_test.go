package astroburst

import "testing"

func TestScoreFromWire(t *testing.T) {
	tests := []struct {
		name     string
		wire     float32
		wantKind ScoreKind
	}{
		{"perfect correlation", 1.0, ScoreValid},
		{"anticorrelation", -1.0, ScoreValid},
		{"zero", 0, ScoreValid},
		{"sentinel", -2.0, ScoreNoData},
		{"below sentinel", -3.0, ScoreNoData},
		{"threshold boundary", -1.5, ScoreNoData},
		{"just above threshold", -1.49, ScoreValid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := scoreFromWire(tt.wire)
			if s.Kind != tt.wantKind {
				t.Errorf("scoreFromWire(%v).Kind = %v, want %v", tt.wire, s.Kind, tt.wantKind)
			}
			if s.Valid() != (tt.wantKind == ScoreValid) {
				t.Errorf("Valid() inconsistent with kind for %v", tt.wire)
			}
			if s.Valid() && s.Value != tt.wire {
				t.Errorf("valid score lost its value: %v != %v", s.Value, tt.wire)
			}
		})
	}
}

func TestScoreKindString(t *testing.T) {
	if got := ScoreValid.String(); got != "valid" {
		t.Errorf("ScoreValid.String() = %q", got)
	}
	if got := ScoreNoData.String(); got != "no-data" {
		t.Errorf("ScoreNoData.String() = %q", got)
	}
	if got := ScoreKind(42).String(); got != "Unknown(42)" {
		t.Errorf("unknown kind String() = %q", got)
	}
}
