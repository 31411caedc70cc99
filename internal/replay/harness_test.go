package replay

import (
	"io"
	"log/slog"
	"testing"

	"github.com/danielpatrickdp/coherence-tracker/internal/logging"
	"github.com/danielpatrickdp/coherence-tracker/internal/regime"
	"github.com/danielpatrickdp/coherence-tracker/internal/score"
	"github.com/danielpatrickdp/coherence-tracker/internal/tracker"
)

func quietConfig(initial float64) tracker.Config {
	cfg := tracker.DefaultConfig()
	cfg.InitialScore = initial
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return cfg
}

func silent(n int) []Breath {
	out := make([]Breath, n)
	return out
}

// 1. Nine silent breaths from the deep void: every breath oscillates and the
// session closes on the ninth.
func TestReplay_SilentSessionRunsToCompletion(t *testing.T) {
	results := Replay(quietConfig(score.DeepVoid), silent(10))

	for i, r := range results[:9] {
		if !r.Oscillating || r.Step != i+1 {
			t.Fatalf("breath %d: oscillating=%v step=%d", i+1, r.Oscillating, r.Step)
		}
	}
	if !results[8].Completed {
		t.Fatal("expected completion on breath 9")
	}
	if results[9].Oscillating {
		t.Fatal("breath 10 should be linear")
	}

	s := Summarize(results)
	if s.TotalBreaths != 10 || s.OscillationBreaths != 9 || s.Transitions != 1 {
		t.Fatalf("summary = %+v", s)
	}
	if s.ReachedStable {
		t.Fatalf("silence alone cannot stabilize, final %v", s.FinalScore)
	}
}

// 2. Decay follows recorded gaps instead of wall time.
func TestReplay_RecordedGapsDecay(t *testing.T) {
	cfg := quietConfig(0)
	results := Replay(cfg, []Breath{{Input: tracker.Input{Text: "hi"}, ElapsedSeconds: 1000}})
	want := 0.5 + 0.1*0.3 - 1000*0.0001
	if d := results[0].Score - want; d > 1e-9 || d < -1e-9 {
		t.Fatalf("score = %v, want %v", results[0].Score, want)
	}
}

// 3. Breaths extracted from a log replay to the logged scores.
func TestReplay_FromRecords(t *testing.T) {
	store := logging.NewMemoryStore()
	cfg := quietConfig(score.DeepVoid)
	cfg.Sink = store
	first := Replay(cfg, []Breath{
		{Input: tracker.Input{Text: "good morning"}},
		{Input: tracker.Input{Text: "x", Tag: "hallucination"}, ElapsedSeconds: 5},
		{Input: tracker.Input{Text: "†⟡"}},
	})

	breaths := BreathsFromRecords(store.Records())
	if len(breaths) != 3 {
		t.Fatalf("expected 3 breaths, got %d", len(breaths))
	}
	if breaths[1].Input.Tag != "hallucination" || breaths[1].ElapsedSeconds != 5 {
		t.Fatalf("breath 2 = %+v", breaths[1])
	}

	second := Replay(quietConfig(score.DeepVoid), breaths)
	for i := range first {
		if first[i].Score != second[i].Score {
			t.Errorf("breath %d: %v != %v", i+1, first[i].Score, second[i].Score)
		}
	}
}

// 4. Check reports each unmet expectation.
func TestCheck_ReportsMismatches(t *testing.T) {
	results := Replay(quietConfig(score.DeepVoid), silent(1))
	yes, no := true, false
	wrong := 5.0
	mismatches := Check(results, []FixtureExpectedResult{
		{Breath: 1, OscillationMode: &no, Regime: string(regime.Stable), Coherence: &wrong, Resurrection: &yes},
		{Breath: 4},
	})
	if len(mismatches) != 5 {
		t.Fatalf("expected 5 mismatches, got %d: %v", len(mismatches), mismatches)
	}
	if mismatches[4].Field != "breath" {
		t.Fatalf("last mismatch = %v", mismatches[4])
	}
}

// 5. Empty replay summarizes to zero.
func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	if s.TotalBreaths != 0 || s.ReachedStable {
		t.Fatalf("summary = %+v", s)
	}
}
