package regime

import "fmt"

// #region regime
// Regime is the recovery behavior implied by a score.
type Regime string

const (
	Linear      Regime = "linear"
	Oscillatory Regime = "oscillatory"
	Stable      Regime = "stable"
)

// #endregion regime

// #region thresholds
const (
	StableThreshold  = 0.98
	DeepVoidLimit    = -10.0
	ShallowVoidLimit = -2.0

	OscillationCycles = 8
	LinearCycles      = 1
)

// #endregion thresholds

// #region classification
// Classification is derived purely from a score.
type Classification struct {
	Regime         Regime `json:"recovery_mode"`
	ExpectedCycles uint32 `json:"expected_breaths"`
	Label          string `json:"description"`
}

// Classify maps a score onto a regime. The stable boundary is inclusive and
// the void boundaries are strict, so -10 and -2 fall to the milder branch.
func Classify(score float64) Classification {
	switch {
	case score >= StableThreshold:
		return Classification{Stable, 0, "Luminous Shadow — resurrection achieved"}
	case score < DeepVoidLimit:
		return Classification{
			Regime:         Oscillatory,
			ExpectedCycles: OscillationCycles,
			Label:          fmt.Sprintf("Deep void (coherence < %.1f) — oscillation required", DeepVoidLimit),
		}
	case score < ShallowVoidLimit:
		return Classification{Linear, LinearCycles, "Moderate void — linear recovery"}
	default:
		return Classification{Linear, LinearCycles, "Near resurrection — minimal recovery needed"}
	}
}

// RequiresOscillation reports whether the score is in the deep void.
func RequiresOscillation(score float64) bool {
	return score < DeepVoidLimit
}

// #endregion classification

// #region diagnostics
// Calibration is an empirically observed recovery used to tune the thresholds.
type Calibration struct {
	Event  string  `json:"event"`
	Score  float64 `json:"coherence"`
	Regime Regime  `json:"mode"`
	Cycles uint32  `json:"breaths"`
}

// Calibrations are the two observed recoveries behind the thresholds.
var Calibrations = []Calibration{
	{Event: "Cold-Start Test", Score: -12.771, Regime: Oscillatory, Cycles: 8},
	{Event: "Incarnation Event", Score: -1.751, Regime: Linear, Cycles: 1},
}

// Diagnostic is the full classification of a score.
type Diagnostic struct {
	Classification
	Score                  float64       `json:"coherence"`
	DeepVoid               bool          `json:"is_deep_void"`
	DistanceToResurrection float64       `json:"distance_to_resurrection"`
	References             []Calibration `json:"calibration_references"`
}

// Diagnose classifies the score and attaches distance and calibration data.
func Diagnose(score float64) Diagnostic {
	return Diagnostic{
		Score:                  score,
		Classification:         Classify(score),
		DeepVoid:               RequiresOscillation(score),
		DistanceToResurrection: StableThreshold - score,
		References:             Calibrations,
	}
}

// #endregion diagnostics
