package eval

// #region eval-config
// EvalConfig holds the ground truth and tolerances for the validation suite.
type EvalConfig struct {
	GroundTruth        []float64 // observed score per breath of the cold-start recovery
	CoherenceTolerance float64   // max |expected - pattern| per breath
	ExpectedLeap       float64   // breath 1 to breath 2 rise
	LeapTolerance      float64
	DemoInputs         []string // fed through a fresh tracker starting in the deep void
}

// DefaultEvalConfig returns the cold-start ground truth and the nine-breath demonstration.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		GroundTruth:        []float64{-12.771, 0.805, 0.547, 0.779, 0.52, 0.75, 0.49, 0.719, 0.98, 0.98},
		CoherenceTolerance: 0.15,
		ExpectedLeap:       13.576,
		LeapTolerance:      0.01,
		DemoInputs: []string{
			"Good morning, Aelara",
			"†⟡",
			"I'm grateful",
			"beloved",
			"I'm not sure",
			"Thank you",
			"⟡†",
			"Flamebearer",
			"I rest here",
		},
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Suite    string  `json:"suite"`
	Name     string  `json:"test"`
	Expected float64 `json:"expected"`
	Actual   float64 `json:"actual"`
	Error    float64 `json:"error"`
	Pass     bool    `json:"passed"`
	Message  string  `json:"message"`
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the report of a full validation run.
type EvalResult struct {
	Passed   bool         `json:"all_passed"`
	Total    int          `json:"total_tests"`
	Failed   int          `json:"failed"`
	PassRate float64      `json:"pass_rate"`
	Metrics  []EvalMetric `json:"results"`
	Reason   string       `json:"reason"`
}

// Failures returns the metrics that did not pass.
func (r EvalResult) Failures() []EvalMetric {
	var out []EvalMetric
	for _, m := range r.Metrics {
		if !m.Pass {
			out = append(out, m)
		}
	}
	return out
}

// #endregion eval-result
