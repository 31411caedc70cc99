package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/coherence-tracker/internal/logging"
	"github.com/danielpatrickdp/coherence-tracker/internal/score"
	"github.com/danielpatrickdp/coherence-tracker/internal/tracker"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string                  `json:"description"`
	StartScore      float64                 `json:"start_score"`
	Config          FixtureConfig           `json:"config"`
	Breaths         []FixtureBreath         `json:"breaths"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureConfig mirrors the tunable parts of tracker.Config with JSON tags.
type FixtureConfig struct {
	Dyad               string         `json:"dyad"`
	OscillationEnabled *bool          `json:"oscillation_enabled,omitempty"`
	BlendRatio         *float64       `json:"blend_ratio,omitempty"`
	Lexicon            *score.Lexicon `json:"lexicon,omitempty"`
}

// FixtureBreath is one recorded input with the wall-clock gap before it.
type FixtureBreath struct {
	Text           string  `json:"text"`
	Tag            string  `json:"tag,omitempty"`
	ElapsedSeconds float64 `json:"elapsed_seconds,omitempty"`
}

// FixtureExpectedResult captures the expected outcome per breath. Nil fields
// are not checked.
type FixtureExpectedResult struct {
	Breath          int      `json:"breath"`
	OscillationMode *bool    `json:"oscillation_mode,omitempty"`
	Regime          string   `json:"recovery_mode,omitempty"`
	Coherence       *float64 `json:"coherence,omitempty"`
	Resurrection    *bool    `json:"resurrection_logged,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// WriteFixture writes the fixture as indented JSON.
func WriteFixture(path string, f *Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// ToInputs converts the fixture breaths to replay inputs.
func (f *Fixture) ToInputs() []Breath {
	out := make([]Breath, len(f.Breaths))
	for i, b := range f.Breaths {
		out[i] = Breath{
			Input:          tracker.Input{Text: b.Text, Tag: b.Tag},
			ElapsedSeconds: b.ElapsedSeconds,
		}
	}
	return out
}

// ToReplayConfig overlays the fixture's settings on the tracker defaults.
func (f *Fixture) ToReplayConfig() tracker.Config {
	cfg := tracker.DefaultConfig()
	cfg.InitialScore = f.StartScore
	if f.Config.Dyad != "" {
		cfg.Dyad = f.Config.Dyad
	}
	if f.Config.OscillationEnabled != nil {
		cfg.OscillationEnabled = *f.Config.OscillationEnabled
	}
	if f.Config.BlendRatio != nil {
		cfg.BlendRatio = tracker.Ratio(*f.Config.BlendRatio)
	}
	if f.Config.Lexicon != nil {
		cfg.Lexicon = *f.Config.Lexicon
	}
	return cfg
}

// #endregion fixture-loader

// #region fixture-export

// FixtureFromRecords builds a fixture from one session of an event log: the
// start score comes from the last initialization or reset before the first
// breath, and every breath becomes an input with its observed outcome. A reset
// after the first breath ends the fixture, since the breaths that follow it
// start from a state the fixture cannot express.
func FixtureFromRecords(records []logging.Record, session string) (*Fixture, error) {
	f := &Fixture{}
	var init *logging.InitDetail
	var started bool

scan:
	for _, rec := range records {
		if session != "" && rec.SessionID != session {
			continue
		}
		switch rec.Kind {
		case logging.KindInitialization:
			if started || rec.Init == nil {
				continue
			}
			init = rec.Init
			f.StartScore = rec.Init.InitialScore
			f.Config.Dyad = rec.Dyad
		case logging.KindReset:
			if started {
				break scan
			}
			if rec.Reset != nil {
				f.StartScore = rec.Reset.InitialScore
			}
		case logging.KindBreath:
			b := rec.Breath
			if b == nil {
				continue
			}
			started = true
			f.Breaths = append(f.Breaths, FixtureBreath{
				Text:           b.InputText,
				Tag:            b.Tag,
				ElapsedSeconds: b.ElapsedSeconds,
			})
			osc := b.Oscillation != nil
			got := b.NewScore
			f.ExpectedResults = append(f.ExpectedResults, FixtureExpectedResult{
				Breath:          len(f.Breaths),
				OscillationMode: &osc,
				Regime:          b.Regime,
				Coherence:       &got,
			})
		}
	}

	if !started {
		return nil, fmt.Errorf("no breath records for session %q", session)
	}
	if init != nil {
		enabled, ratio := init.OscillationEnabled, init.BlendRatio
		f.Config.OscillationEnabled = &enabled
		f.Config.BlendRatio = &ratio
	}
	f.Description = fmt.Sprintf("exported from %d breaths of dyad %s", len(f.Breaths), f.Config.Dyad)
	return f, nil
}

// #endregion fixture-export
