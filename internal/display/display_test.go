package display

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"github.com/danielpatrickdp/coherence-tracker/internal/eval"
	"github.com/danielpatrickdp/coherence-tracker/internal/logging"
	"github.com/danielpatrickdp/coherence-tracker/internal/replay"
	"github.com/danielpatrickdp/coherence-tracker/internal/score"
	"github.com/danielpatrickdp/coherence-tracker/internal/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBand(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{-12.771, DeepVoidLabel},
		{-10, VoidLabel},
		{-1.751, VoidLabel},
		{-1, EmergingLabel},
		{-0.01, EmergingLabel},
		{0, RisingLabel},
		{0.979, RisingLabel},
		{0.98, LuminousShadowLabel},
	}
	for _, tt := range tests {
		got, _ := Band(tt.score)
		assert.Equal(t, tt.want, got, "score %v", tt.score)
	}
}

func newTracker(sink logging.Sink) *tracker.Tracker {
	cfg := tracker.DefaultConfig()
	cfg.Sink = sink
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return tracker.New(cfg)
}

func TestStateAndBreathResult(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)
	tr := newTracker(nil)

	p.State(tr.State())
	assert.Contains(t, buf.String(), "Coherence: -12.771 (DEEP VOID)")
	assert.Contains(t, buf.String(), "Oscillation: breath 0 of 9")

	buf.Reset()
	tr.ProcessInput(tracker.Input{Text: "good morning"})
	res := tr.ProcessInput(tracker.Input{Text: "†⟡"})
	p.BreathResult(res)
	out := buf.String()
	assert.Contains(t, out, "Mode transition: oscillatory → stable")
	assert.Contains(t, out, "Input scored: +1.50")
	assert.Contains(t, out, "Reason: glyph_recognized")
	assert.Contains(t, out, "Oscillation breath 2")

	buf.Reset()
	p.State(tr.State())
	assert.Contains(t, buf.String(), "LUMINOUS SHADOW")
	assert.Contains(t, buf.String(), "RESURRECTION ACHIEVED")
	assert.NotContains(t, buf.String(), "\x1b[", "colors disabled")
}

func TestHistoryTable(t *testing.T) {
	store := logging.NewMemoryStore()
	tr := newTracker(store)
	tr.ProcessInput(tracker.Input{Text: "I'm not sure"})
	tr.ProcessInput(tracker.Input{Text: ""})

	var buf bytes.Buffer
	require.NoError(t, NewPrinter(&buf, false).History(store.Records()))
	out := buf.String()
	assert.Contains(t, out, "uncertainty_honesty")
	assert.Contains(t, out, "volitional_silence")
	assert.Contains(t, out, "I'm not sure")
}

func TestPatternTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewPrinter(&buf, false).Pattern())
	out := buf.String()
	assert.Contains(t, out, "-12.771")
	assert.Contains(t, out, "luminous shadow")
	assert.Contains(t, out, "Recognition leap: 13.576")
}

func TestEvalReport(t *testing.T) {
	var buf bytes.Buffer
	res := eval.NewEvalHarness(eval.DefaultEvalConfig()).Run()
	require.NoError(t, NewPrinter(&buf, false).EvalReport(res))
	assert.Contains(t, buf.String(), "Pass rate: 100.0%")
	assert.Contains(t, buf.String(), "ALL TESTS PASSED")
}

func TestReplayTable(t *testing.T) {
	cfg := tracker.DefaultConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	results := replay.Replay(cfg, []replay.Breath{
		{Input: tracker.Input{Text: "good morning"}},
		{Input: tracker.Input{Text: "†⟡"}},
	})

	var buf bytes.Buffer
	require.NoError(t, NewPrinter(&buf, false).Replay(results, []replay.Mismatch{{Breath: 1, Field: "coherence", Want: "0", Got: "1"}}))
	out := buf.String()
	assert.Contains(t, out, "oscillatory→stable")
	assert.Contains(t, out, "resurrection")
	assert.Contains(t, out, "Oscillation breaths: 2")
	assert.Contains(t, out, "breath 1: coherence want 0, got 1")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, score.DefaultLexicon().Glyphs[0], truncate("†⟡", 5))
}
