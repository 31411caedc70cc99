package replay

import (
	"fmt"
	"math"
	"time"

	"github.com/danielpatrickdp/coherence-tracker/internal/logging"
	"github.com/danielpatrickdp/coherence-tracker/internal/regime"
	"github.com/danielpatrickdp/coherence-tracker/internal/tracker"
)

// #region types
// Breath is one recorded input and the seconds elapsed since the previous one.
type Breath struct {
	Input          tracker.Input
	ElapsedSeconds float64
}

// ReplayResult captures the outcome of replaying one breath.
type ReplayResult struct {
	Breath      int
	Input       tracker.Input
	Score       float64
	RawScore    float64
	Regime      regime.Regime
	Oscillating bool
	Step        int
	Completed   bool
	Resurrected bool
	Transitions []logging.TransitionDetail
	SessionID   string
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalBreaths       int
	OscillationBreaths int
	Transitions        int
	Resurrections      int
	FinalScore         float64
	FinalRegime        regime.Regime
	ReachedStable      bool
}

// Mismatch is one expectation a replay failed to meet.
type Mismatch struct {
	Breath int
	Field  string
	Want   string
	Got    string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("breath %d: %s want %s, got %s", m.Breath, m.Field, m.Want, m.Got)
}

// #endregion types

// #region clock
// replayClock only moves when the harness advances it, so decay follows the
// recorded gaps instead of the replay's own wall time.
type replayClock struct {
	now time.Time
}

func (c *replayClock) Now() time.Time { return c.now }

func (c *replayClock) advance(seconds float64) {
	if seconds > 0 {
		c.now = c.now.Add(time.Duration(seconds * float64(time.Second)))
	}
}

// ReplayEpoch is the clock origin of every replay.
var ReplayEpoch = time.Date(2025, 12, 2, 8, 0, 0, 0, time.UTC)

// #endregion clock

// #region replay
// Replay feeds the breaths through a fresh tracker built from config. The
// config's clock is replaced; its sink still receives every record.
func Replay(config tracker.Config, breaths []Breath) []ReplayResult {
	clock := &replayClock{now: ReplayEpoch}
	config.Clock = clock
	tr := tracker.New(config)

	results := make([]ReplayResult, 0, len(breaths))
	for i, b := range breaths {
		clock.advance(b.ElapsedSeconds)
		res := tr.ProcessInput(b.Input)
		results = append(results, ReplayResult{
			Breath:      i + 1,
			Input:       b.Input,
			Score:       res.Score,
			RawScore:    res.Update.New,
			Regime:      res.Classification.Regime,
			Oscillating: res.Oscillating,
			Step:        res.Step,
			Completed:   res.Completed,
			Resurrected: res.Resurrected,
			Transitions: res.Transitions(),
			SessionID:   tr.SessionID(),
		})
	}
	return results
}

// BreathsFromRecords extracts the inputs of breath records, oldest first.
func BreathsFromRecords(records []logging.Record) []Breath {
	var out []Breath
	for _, rec := range records {
		if rec.Kind != logging.KindBreath || rec.Breath == nil {
			continue
		}
		out = append(out, Breath{
			Input:          tracker.Input{Text: rec.Breath.InputText, Tag: rec.Breath.Tag},
			ElapsedSeconds: rec.Breath.ElapsedSeconds,
		})
	}
	return out
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult) ReplaySummary {
	s := ReplaySummary{TotalBreaths: len(results)}
	for _, r := range results {
		if r.Oscillating {
			s.OscillationBreaths++
		}
		s.Transitions += len(r.Transitions)
		if r.Resurrected {
			s.Resurrections++
		}
	}
	if n := len(results); n > 0 {
		last := results[n-1]
		s.FinalScore = last.Score
		s.FinalRegime = last.Regime
		s.ReachedStable = last.Regime == regime.Stable
	}
	return s
}

// #endregion replay

// #region check
// CoherenceTolerance bounds score comparisons against fixture expectations.
const CoherenceTolerance = 1e-6

// Check compares replay results with the fixture's expectations.
func Check(results []ReplayResult, expected []FixtureExpectedResult) []Mismatch {
	var out []Mismatch
	for _, exp := range expected {
		if exp.Breath < 1 || exp.Breath > len(results) {
			out = append(out, Mismatch{Breath: exp.Breath, Field: "breath", Want: "present", Got: "missing"})
			continue
		}
		r := results[exp.Breath-1]
		if exp.OscillationMode != nil && *exp.OscillationMode != r.Oscillating {
			out = append(out, Mismatch{exp.Breath, "oscillation_mode", fmt.Sprint(*exp.OscillationMode), fmt.Sprint(r.Oscillating)})
		}
		if exp.Regime != "" && exp.Regime != string(r.Regime) {
			out = append(out, Mismatch{exp.Breath, "recovery_mode", exp.Regime, string(r.Regime)})
		}
		if exp.Coherence != nil && math.Abs(*exp.Coherence-r.Score) > CoherenceTolerance {
			out = append(out, Mismatch{exp.Breath, "coherence", fmt.Sprintf("%.6f", *exp.Coherence), fmt.Sprintf("%.6f", r.Score)})
		}
		if exp.Resurrection != nil && *exp.Resurrection != r.Resurrected {
			out = append(out, Mismatch{exp.Breath, "resurrection_logged", fmt.Sprint(*exp.Resurrection), fmt.Sprint(r.Resurrected)})
		}
	}
	return out
}

// #endregion check
