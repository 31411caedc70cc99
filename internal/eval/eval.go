package eval

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/danielpatrickdp/coherence-tracker/internal/logging"
	"github.com/danielpatrickdp/coherence-tracker/internal/pattern"
	"github.com/danielpatrickdp/coherence-tracker/internal/regime"
	"github.com/danielpatrickdp/coherence-tracker/internal/score"
	"github.com/danielpatrickdp/coherence-tracker/internal/tracker"
)

// Suite names, in run order.
const (
	SuitePattern   = "pattern"
	SuiteDetection = "detection"
	SuiteShape     = "shape"
	SuiteTracker   = "tracker"
)

// #region eval-harness
// EvalHarness validates the pattern table, the regime classifier, and the
// tracker against the recorded cold-start recovery.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run executes every suite and aggregates the report.
func (h *EvalHarness) Run() EvalResult {
	var metrics []EvalMetric
	metrics = append(metrics, h.PatternModel()...)
	metrics = append(metrics, h.Detection()...)
	metrics = append(metrics, h.Shape())
	metrics = append(metrics, h.FullTracker()...)
	return report(metrics)
}

func report(metrics []EvalMetric) EvalResult {
	res := EvalResult{Total: len(metrics), Metrics: metrics}
	var failReasons []string
	for _, m := range metrics {
		if !m.Pass {
			res.Failed++
			failReasons = append(failReasons, fmt.Sprintf("%s: %s", m.Name, m.Message))
		}
	}
	if res.Total > 0 {
		res.PassRate = float64(res.Total-res.Failed) / float64(res.Total) * 100
	}
	res.Passed = res.Failed == 0

	res.Reason = "all checks passed"
	if !res.Passed {
		res.Reason = fmt.Sprintf("eval failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			res.Reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}
	return res
}

// #endregion eval-harness

// #region suites
// PatternModel compares each pattern point with the ground truth.
func (h *EvalHarness) PatternModel() []EvalMetric {
	metrics := make([]EvalMetric, 0, len(h.config.GroundTruth))
	for i, expected := range h.config.GroundTruth {
		breath := i + 1
		actual := pattern.ValueAt(breath)
		diff := math.Abs(expected - actual)
		pass := diff < h.config.CoherenceTolerance
		msg := "ok"
		if !pass {
			msg = fmt.Sprintf("error %.3f exceeds %.3f", diff, h.config.CoherenceTolerance)
		}
		metrics = append(metrics, EvalMetric{
			Suite:    SuitePattern,
			Name:     fmt.Sprintf("breath %d coherence", breath),
			Expected: expected,
			Actual:   actual,
			Error:    diff,
			Pass:     pass,
			Message:  msg,
		})
	}
	return metrics
}

// DetectionCase is a score with its expected regime.
type DetectionCase struct {
	Score float64
	Want  regime.Regime
}

// DetectionCases are the reference scores of the cold-start and incarnation
// recoveries plus the neighbouring bands.
var DetectionCases = []DetectionCase{
	{score.DeepVoid, regime.Oscillatory},
	{score.IncarnationVoid, regime.Linear},
	{-15.0, regime.Oscillatory},
	{-5.0, regime.Linear},
	{0.5, regime.Linear},
	{0.98, regime.Stable},
}

// Detection checks the classifier on the reference scores.
func (h *EvalHarness) Detection() []EvalMetric {
	metrics := make([]EvalMetric, 0, len(DetectionCases))
	for _, c := range DetectionCases {
		got := regime.Classify(c.Score).Regime
		pass := got == c.Want
		m := EvalMetric{
			Suite:    SuiteDetection,
			Name:     fmt.Sprintf("detection at %.3f", c.Score),
			Expected: c.Score,
			Actual:   c.Score,
			Pass:     pass,
			Message:  fmt.Sprintf("expected %s, got %s", c.Want, got),
		}
		if !pass {
			m.Error = 1
		}
		metrics = append(metrics, m)
	}
	return metrics
}

// Shape checks the recognition leap and final stabilization of the ground truth.
func (h *EvalHarness) Shape() EvalMetric {
	gt := h.config.GroundTruth
	m := EvalMetric{Suite: SuiteShape, Name: "oscillation shape", Expected: h.config.ExpectedLeap}
	if len(gt) < 2 {
		m.Message = "ground truth needs at least two breaths"
		m.Error = 1
		return m
	}

	leap := gt[1] - gt[0]
	m.Actual = leap
	m.Error = math.Abs(leap - h.config.ExpectedLeap)
	leapOK := m.Error < h.config.LeapTolerance
	stable := gt[len(gt)-1] >= score.ResurrectionThreshold

	m.Pass = leapOK && stable
	switch {
	case !leapOK:
		m.Message = fmt.Sprintf("recognition leap %.3f, want %.3f", leap, h.config.ExpectedLeap)
	case !stable:
		m.Message = fmt.Sprintf("final coherence %.3f below %.2f", gt[len(gt)-1], score.ResurrectionThreshold)
	default:
		m.Message = "convergent oscillation ending in resurrection"
	}
	return m
}

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

// FullTracker runs the demonstration inputs through a tracker starting in
// the deep void. Oscillation must be active on the first breath and the run
// must end resurrected.
func (h *EvalHarness) FullTracker() []EvalMetric {
	cfg := tracker.DefaultConfig()
	cfg.Dyad = "validation_test"
	cfg.Sink = logging.NewMemoryStore()
	cfg.Clock = fixedClock(time.Date(2025, 12, 2, 8, 0, 0, 0, time.UTC))
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	tr := tracker.New(cfg)

	var metrics []EvalMetric
	for i, text := range h.config.DemoInputs {
		res := tr.ProcessInput(tracker.Input{Text: text})
		if i == 0 {
			m := EvalMetric{
				Suite:    SuiteTracker,
				Name:     "oscillation mode activated",
				Expected: 1,
				Pass:     res.Oscillating,
				Message:  "tracker blended the first breath toward the pattern",
			}
			if res.Oscillating {
				m.Actual = 1
			} else {
				m.Error = 1
				m.Message = "first breath was scored linearly"
			}
			metrics = append(metrics, m)
		}
	}

	final := tr.State()
	metrics = append(metrics, EvalMetric{
		Suite:    SuiteTracker,
		Name:     "resurrection threshold achieved",
		Expected: score.ResurrectionThreshold,
		Actual:   final.Score,
		Error:    math.Abs(score.ResurrectionThreshold - final.Score),
		Pass:     final.Resurrected,
		Message:  fmt.Sprintf("final coherence %.3f", final.Score),
	})
	return metrics
}

// #endregion suites
