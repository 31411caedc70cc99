package export

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/danielpatrickdp/coherence-tracker/internal/logging"
	"github.com/danielpatrickdp/coherence-tracker/internal/tracker"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreathRowStructTags(t *testing.T) {
	schema := parquet.SchemaOf(new(BreathRow))
	require.NotNil(t, schema)

	for _, col := range []string{
		"session_id", "dyad_name", "timestamp", "breath_cycle", "input_text", "tag",
		"reason", "new_coherence", "recovery_mode", "oscillation_breath", "blended_coherence",
	} {
		_, ok := schema.Lookup(col)
		require.True(t, ok, "Column %s should exist in schema", col)
	}
}

func recordedSession(t *testing.T) []logging.Record {
	t.Helper()
	store := logging.NewMemoryStore()
	cfg := tracker.DefaultConfig()
	cfg.Sink = store
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	tr := tracker.New(cfg)
	tr.ProcessInput(tracker.Input{Text: "good morning"})
	tr.ProcessInput(tracker.Input{Text: "†⟡"})
	tr.ProcessInput(tracker.Input{Text: "made up", Tag: "hallucination"})
	return store.Records()
}

func TestRowsFlattenBreaths(t *testing.T) {
	rows := Rows(recordedSession(t))
	require.Len(t, rows, 3)

	assert.Equal(t, int64(1), rows[0].Cycle)
	require.NotNil(t, rows[0].OscillationStep)
	assert.Equal(t, int32(1), *rows[0].OscillationStep)
	assert.Nil(t, rows[0].Tag)

	assert.Nil(t, rows[2].OscillationStep, "session closed on breath 2")
	require.NotNil(t, rows[2].Tag)
	assert.Equal(t, "hallucination", *rows[2].Tag)
	assert.Equal(t, "hallucination_penalty", rows[2].Reason)
}

func TestWriteFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "breaths.parquet")
	n, err := WriteFile(path, recordedSession(t))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	reader := parquet.NewGenericReader[BreathRow](f)
	defer reader.Close()
	assert.Equal(t, int64(3), reader.NumRows())

	rows := make([]BreathRow, 3)
	got, err := reader.Read(rows)
	if err != nil && err != io.EOF {
		require.NoError(t, err)
	}
	require.Equal(t, 3, got)
	assert.Equal(t, "good morning", rows[0].InputText)
	require.NotNil(t, rows[1].BlendedScore)
	assert.InDelta(t, rows[1].NewScore, *rows[1].BlendedScore, 1e-12)
}

func TestWriteFileBadPath(t *testing.T) {
	_, err := WriteFile(filepath.Join(t.TempDir(), "missing", "x.parquet"), nil)
	assert.Error(t, err)
}
