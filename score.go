package astroburst

import "fmt"

// scoreSentinel marks a candidate shift with no usable correlation inside
// the kernels' score grid. It is strictly below the ZNCC range [-1, 1], so
// any real score wins the arg-max against it, and ties between sentinels
// resolve to the first-scanned candidate.
const scoreSentinel float32 = -2.0

// ScoreKind classifies a correlation score.
type ScoreKind int

const (
	// ScoreValid is a real ZNCC coefficient in [-1, 1], computed from at
	// least 10 valid pixel pairs with non-degenerate variance.
	ScoreValid ScoreKind = iota

	// ScoreNoData marks a candidate with no usable correlation: fewer than
	// 10 valid pixel pairs under the shift, or zero variance in either
	// sample (a constant region). The two causes share one wire encoding,
	// so they are not distinguished here.
	ScoreNoData
)

// String returns the human-readable name of the score kind.
func (k ScoreKind) String() string {
	switch k {
	case ScoreValid:
		return "valid"
	case ScoreNoData:
		return "no-data"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// Score is a tagged correlation score. The kernels encode "no usable data"
// as an out-of-range sentinel value on the wire; hosts decode it into an
// explicit kind so callers never have to compare against magic floats.
type Score struct {
	Kind  ScoreKind
	Value float32 // ZNCC coefficient; meaningful only when Kind == ScoreValid
}

// Valid reports whether the score is a real ZNCC coefficient.
func (s Score) Valid() bool { return s.Kind == ScoreValid }

// scoreFromWire decodes a kernel score-grid value. Anything at or below the
// sentinel threshold is no-data; a real ZNCC value is bounded in [-1, 1] by
// Cauchy-Schwarz, so -1.5 separates the two cleanly even after float rounding.
func scoreFromWire(v float32) Score {
	if v <= -1.5 {
		return Score{Kind: ScoreNoData}
	}
	return Score{Kind: ScoreValid, Value: v}
}
