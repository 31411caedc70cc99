package replay

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danielpatrickdp/coherence-tracker/internal/logging"
	"github.com/danielpatrickdp/coherence-tracker/internal/score"
	"github.com/danielpatrickdp/coherence-tracker/internal/tracker"
)

// #region fixture-tests

func runFixture(t *testing.T, name string) []Mismatch {
	t.Helper()
	f, err := LoadFixture(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	cfg := f.ToReplayConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	results := Replay(cfg, f.ToInputs())
	if len(results) != len(f.Breaths) {
		t.Fatalf("expected %d results, got %d", len(f.Breaths), len(results))
	}
	return Check(results, f.ExpectedResults)
}

// TestFixture_ColdStart replays the nine demonstration breaths from the deep
// void. This is the primary regression test for blending and exit.
func TestFixture_ColdStart(t *testing.T) {
	for _, m := range runFixture(t, "cold_start.json") {
		t.Error(m)
	}
}

// TestFixture_Incarnation covers linear recovery with recorded gaps, so decay
// follows elapsed_seconds.
func TestFixture_Incarnation(t *testing.T) {
	for _, m := range runFixture(t, "incarnation.json") {
		t.Error(m)
	}
}

// TestLoadFixture_NotFound verifies error on missing file.
func TestLoadFixture_NotFound(t *testing.T) {
	_, err := LoadFixture("testdata/nonexistent.json")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

// TestLoadFixture_Malformed verifies error on invalid JSON.
func TestLoadFixture_Malformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("{not valid json}"), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	_, err := LoadFixture(path)
	if err == nil {
		t.Fatal("expected error for malformed JSON, got nil")
	}
}

// TestFixtureFromRecords exports a recorded session and replays it back to
// the same outcome.
func TestFixtureFromRecords(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "incarnation.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	store := logging.NewMemoryStore()
	cfg := f.ToReplayConfig()
	cfg.Sink = store
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	results := Replay(cfg, f.ToInputs())

	exported, err := FixtureFromRecords(store.Records(), results[0].SessionID)
	if err != nil {
		t.Fatalf("FixtureFromRecords: %v", err)
	}
	if exported.StartScore != -1.751 || exported.Config.Dyad != "incarnation" {
		t.Fatalf("exported header = %v %q", exported.StartScore, exported.Config.Dyad)
	}
	if len(exported.Breaths) != 2 || exported.Breaths[1].ElapsedSeconds != 3 {
		t.Fatalf("exported breaths = %+v", exported.Breaths)
	}

	path := filepath.Join(t.TempDir(), "exported.json")
	if err := WriteFixture(path, exported); err != nil {
		t.Fatalf("WriteFixture: %v", err)
	}
	back, err := LoadFixture(path)
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	rcfg := back.ToReplayConfig()
	rcfg.Logger = cfg.Logger
	for _, m := range Check(Replay(rcfg, back.ToInputs()), back.ExpectedResults) {
		t.Error(m)
	}
}

// liveTracker records into a memory store on a clock the test drives.
func liveTracker(initial float64) (*tracker.Tracker, *logging.MemoryStore, *replayClock) {
	store := logging.NewMemoryStore()
	clock := &replayClock{now: ReplayEpoch}
	cfg := quietConfig(initial)
	cfg.Dyad = "live"
	cfg.Clock = clock
	cfg.Sink = store
	return tracker.New(cfg), store, clock
}

// replayExport exports one session and replays it against its own expectations.
func replayExport(t *testing.T, records []logging.Record, session string) *Fixture {
	t.Helper()
	f, err := FixtureFromRecords(records, session)
	if err != nil {
		t.Fatalf("FixtureFromRecords: %v", err)
	}
	cfg := f.ToReplayConfig()
	cfg.Logger = quietConfig(0).Logger
	for _, m := range Check(Replay(cfg, f.ToInputs()), f.ExpectedResults) {
		t.Error(m)
	}
	return f
}

// A recognition word past the first hundred runes still classifies the same
// way on replay.
func TestFixtureFromRecords_LongInput(t *testing.T) {
	tr, store, clock := liveTracker(0)
	text := strings.Repeat("a", 110) + " beloved"
	clock.advance(1)
	live := tr.ProcessInput(tracker.Input{Text: text})

	f := replayExport(t, store.Records(), tr.SessionID())
	if f.Breaths[0].Text != text {
		t.Fatalf("exported text has %d runes", len([]rune(f.Breaths[0].Text)))
	}
	if !live.Resurrected {
		t.Fatalf("live score %v should resurrect", live.Score)
	}
}

// A reset opens a new session whose export starts from the reset score.
func TestFixtureFromRecords_AfterReset(t *testing.T) {
	tr, store, clock := liveTracker(score.IncarnationVoid)
	first := tr.SessionID()
	clock.advance(5)
	tr.ProcessInput(tracker.Input{Text: "good morning"})
	clock.advance(3)
	tr.ProcessInput(tracker.Input{Text: "unsure"})

	tr.Reset(-5)
	clock.advance(2)
	tr.ProcessInput(tracker.Input{Text: "beloved"})

	after := replayExport(t, store.Records(), tr.SessionID())
	if after.StartScore != -5 || len(after.Breaths) != 1 {
		t.Fatalf("after reset: start %v, %d breaths", after.StartScore, len(after.Breaths))
	}
	before := replayExport(t, store.Records(), first)
	if before.StartScore != score.IncarnationVoid || len(before.Breaths) != 2 {
		t.Fatalf("before reset: start %v, %d breaths", before.StartScore, len(before.Breaths))
	}
}

// Logs written before resets opened a new session keep post-reset breaths
// under the same ID; the export stops at the reset.
func TestFixtureFromRecords_ResetInsideSession(t *testing.T) {
	tr, store, clock := liveTracker(score.IncarnationVoid)
	session := tr.SessionID()
	clock.advance(5)
	tr.ProcessInput(tracker.Input{Text: "good morning"})
	tr.Reset(-5)
	clock.advance(2)
	tr.ProcessInput(tracker.Input{Text: "beloved"})

	var merged []logging.Record
	for _, rec := range store.Records() {
		if rec.Kind == logging.KindInitialization && rec.SessionID != session {
			continue
		}
		rec.SessionID = session
		merged = append(merged, rec)
	}

	f := replayExport(t, merged, session)
	if len(f.Breaths) != 1 || f.Breaths[0].Text != "good morning" {
		t.Fatalf("breaths = %+v", f.Breaths)
	}
}

func TestFixtureFromRecords_NoBreaths(t *testing.T) {
	if _, err := FixtureFromRecords(nil, ""); err == nil {
		t.Fatal("expected error for empty log")
	}
}

// #endregion fixture-tests
