package tracker

import (
	"log/slog"

	"github.com/danielpatrickdp/coherence-tracker/internal/logging"
	"github.com/danielpatrickdp/coherence-tracker/internal/regime"
	"github.com/danielpatrickdp/coherence-tracker/internal/score"
)

// #region constants
const (
	// DefaultBlendRatio is the weight of the recovery pattern in a blended score.
	DefaultBlendRatio = 0.7
	// MaxOscillationSteps ends a session one step short of the table length,
	// since the table's last point repeats the stable value.
	MaxOscillationSteps = 9
)

// #endregion constants

// #region config
// Config is everything a Tracker needs at construction.
type Config struct {
	Dyad               string
	InitialScore       float64
	OscillationEnabled bool
	BlendRatio         *float64 // nil uses DefaultBlendRatio; Ratio(0) disables blending
	Lexicon            score.Lexicon
	Clock              score.Clock
	Sink               logging.Sink
	Logger             *slog.Logger
}

// DefaultConfig starts in the deep void with oscillation enabled and no sink.
func DefaultConfig() Config {
	return Config{
		Dyad:               "default",
		InitialScore:       score.DeepVoid,
		OscillationEnabled: true,
		Lexicon:            score.DefaultLexicon(),
	}
}

// Ratio returns a pointer to v for Config.BlendRatio.
func Ratio(v float64) *float64 { return &v }

// #endregion config

// #region mode
// Phase is the tracker's recovery state.
type Phase string

const (
	PhaseLinear      Phase = "linear"
	PhaseOscillating Phase = "oscillatory"
	PhaseStable      Phase = "stable"
)

// Oscillation is the live session while the tracker blends toward the pattern.
type Oscillation struct {
	Step       int
	EntryScore float64
}

// Mode is the tracker's state. Session is set only when Phase is oscillatory.
type Mode struct {
	Phase   Phase
	Session *Oscillation
}

// #endregion mode

// #region input-result
// Input is one breath: free text plus an optional external tag.
type Input struct {
	Text string `json:"text"`
	Tag  string `json:"tag,omitempty"`
}

// Result is what one call produced: the breath outcome and every record emitted.
type Result struct {
	Update         score.Update          `json:"-"`
	Score          float64               `json:"coherence"`
	Classification regime.Classification `json:"classification"`
	Oscillating    bool                  `json:"oscillation_mode"`
	Step           int                   `json:"oscillation_breath,omitempty"`
	Completed      bool                  `json:"oscillation_complete,omitempty"`
	Resurrected    bool                  `json:"resurrection_logged,omitempty"`
	Records        []logging.Record      `json:"records"`
}

// Breath returns the breath_cycle record of the result, if any.
func (r Result) Breath() *logging.BreathDetail {
	for _, rec := range r.Records {
		if rec.Kind == logging.KindBreath {
			return rec.Breath
		}
	}
	return nil
}

// Transitions returns the mode transitions emitted by the call.
func (r Result) Transitions() []logging.TransitionDetail {
	var out []logging.TransitionDetail
	for _, rec := range r.Records {
		if rec.Kind == logging.KindTransition && rec.Transition != nil {
			out = append(out, *rec.Transition)
		}
	}
	return out
}

// #endregion input-result

// #region snapshot
// Snapshot is the tracker state for display and export.
type Snapshot struct {
	score.Snapshot
	Dyad               string  `json:"dyad_name"`
	SessionID          string  `json:"session_id"`
	RecoveryMode       Phase   `json:"recovery_mode"`
	InOscillation      bool    `json:"in_oscillation"`
	OscillationStep    int     `json:"oscillation_breath,omitempty"`
	EntryScore         float64 `json:"entry_coherence,omitempty"`
	BreathsRemaining   int     `json:"expected_breaths_remaining,omitempty"`
	OscillationEnabled bool    `json:"oscillation_enabled"`
}

// SessionSummary aggregates a session's history.
type SessionSummary struct {
	Dyad                string           `json:"dyad_name"`
	Current             Snapshot         `json:"current_state"`
	TotalBreaths        int              `json:"total_breaths"`
	OscillationBreaths  int              `json:"oscillation_breaths"`
	Transitions         int              `json:"transitions"`
	Resurrections       int              `json:"resurrections"`
	ResurrectionReached bool             `json:"resurrection_achieved"`
	RecoveryModeUsed    Phase            `json:"recovery_mode_used"`
	History             []logging.Record `json:"breath_history,omitempty"`
}

// #endregion snapshot
