package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danielpatrickdp/coherence-tracker/internal/config"
	"github.com/danielpatrickdp/coherence-tracker/internal/replay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes one command line in dir and returns stdout.
func run(t *testing.T, dir, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Chdir(dir)
	t.Setenv("HOME", dir)

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--color", "no", "--dyad", "Test_Dyad"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestBreatheSessionThenInspect(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "log.jsonl")

	out, err := run(t, dir, "Good morning, Aelara\n†⟡\nstate\nhistory\nexit\n",
		"breathe", "--sink-path", logPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Dyad Name: Test_Dyad")
	assert.Contains(t, out, "Reason: relational_recognition")
	assert.Contains(t, out, "linear → oscillatory")
	assert.Contains(t, out, "oscillatory → stable")
	assert.Contains(t, out, "RESURRECTION ACHIEVED")
	assert.Contains(t, out, "Recent breaths:")
	assert.Contains(t, out, "Total breaths: 2")
	assert.Contains(t, out, "Log saved to: "+logPath)

	out, err = run(t, dir, "", "history", "--sink-path", logPath, "-l", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "glyph_recognized")
	assert.NotContains(t, out, "relational_recognition")

	out, err = run(t, dir, "", "state", "--sink-path", logPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Breath Cycle: 2")
	assert.Contains(t, out, "LUMINOUS SHADOW")

	fixture := filepath.Join(dir, "session.json")
	out, err = run(t, dir, "", "replay", "--sink-path", logPath, "--export", fixture)
	require.NoError(t, err, out)
	f, err := replay.LoadFixture(fixture)
	require.NoError(t, err)
	assert.Len(t, f.Breaths, 2)
	assert.Equal(t, "Test_Dyad", f.Config.Dyad)

	parquetPath := filepath.Join(dir, "breaths.parquet")
	out, err = run(t, dir, "", "export", parquetPath, "--sink-path", logPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 2 breaths")
	_, err = os.Stat(parquetPath)
	assert.NoError(t, err)
}

func TestHistoryLimitIgnoresOtherDyads(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "log.jsonl")

	_, err := run(t, dir, "Good morning, Aelara\n†⟡\nexit\n", "breathe", "--sink-path", logPath)
	require.NoError(t, err)
	_, err = run(t, dir, "hello\nhello\nhello\nexit\n", "breathe", "--sink-path", logPath, "--dyad", "Other_Dyad")
	require.NoError(t, err)

	out, err := run(t, dir, "", "history", "--sink-path", logPath, "-l", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "glyph_recognized")
	assert.NotContains(t, out, "neutral_response")
	assert.NotContains(t, out, "relational_recognition")
}

func TestSQLiteSinkUsesItsOwnDefaultPath(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, dir, "hello\nexit\n", "breathe", "--sink", "sqlite")
	require.NoError(t, err)
	assert.Contains(t, out, "Log saved to: coherence.db")

	_, err = os.Stat(filepath.Join(dir, "coherence.db"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "coherence_log.jsonl"))
	assert.True(t, os.IsNotExist(err))

	out, err = run(t, dir, "", "history", "--sink", "sqlite")
	require.NoError(t, err)
	assert.Contains(t, out, "neutral_response")
}

func TestBreatheTaggedInputAndEOF(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, dir, "\n!hallucination the moon is cheese\n", "breathe", "--sink", "memory")
	require.NoError(t, err)
	assert.Contains(t, out, "Reason: volitional_silence")
	assert.Contains(t, out, "Reason: hallucination_penalty")
	assert.Contains(t, out, "Input stream ended")
	assert.NotContains(t, out, "Log saved to")
}

func TestStateWithoutBreaths(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, dir, "", "state", "--sink-path", filepath.Join(dir, "empty.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, out, "No breaths recorded for Test_Dyad")
}

func TestValidatePasses(t *testing.T) {
	out, err := run(t, t.TempDir(), "", "validate", "--sink", "memory")
	require.NoError(t, err)
	assert.Contains(t, out, "ALL TESTS PASSED")
}

func TestReplayFixture(t *testing.T) {
	fixture, err := filepath.Abs(filepath.Join("..", "replay", "testdata", "cold_start.json"))
	require.NoError(t, err)

	out, err := run(t, t.TempDir(), "", "replay", fixture, "--sink", "memory")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Resurrections: 1")
}

func TestReplayMismatchFails(t *testing.T) {
	dir := t.TempDir()
	coherence := 42.0
	f := &replay.Fixture{
		StartScore:      0.5,
		Breaths:         []replay.FixtureBreath{{Text: "hello"}},
		ExpectedResults: []replay.FixtureExpectedResult{{Breath: 1, Coherence: &coherence}},
	}
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, replay.WriteFixture(path, f))

	_, err := run(t, dir, "", "replay", path, "--sink", "memory")
	assert.ErrorIs(t, err, ErrCheckFailed)
}

func TestPattern(t *testing.T) {
	out, err := run(t, t.TempDir(), "", "pattern", "--sink", "memory")
	require.NoError(t, err)
	assert.Contains(t, out, "-12.771")
	assert.Contains(t, out, "Recognition leap")
}

func TestInvalidFlagsRejected(t *testing.T) {
	_, err := run(t, t.TempDir(), "", "pattern", "--blend-ratio", "2")
	assert.ErrorIs(t, err, config.ErrInvalid)

	_, err = run(t, t.TempDir(), "", "pattern", "--sink", "postgres")
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestParseInput(t *testing.T) {
	in := parseInput("!hallucination made up")
	assert.Equal(t, "hallucination", in.Tag)
	assert.Equal(t, "made up", in.Text)

	in = parseInput("plain words")
	assert.Empty(t, in.Tag)
	assert.Equal(t, "plain words", in.Text)
}
