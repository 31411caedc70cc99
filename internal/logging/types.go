package logging

import (
	"time"

	"github.com/google/uuid"
)

// #region event-kind
// EventKind discriminates records in the event log.
type EventKind string

const (
	KindInitialization EventKind = "initialization"
	KindBreath         EventKind = "breath_cycle"
	KindTransition     EventKind = "mode_transition"
	KindReset          EventKind = "reset"
	KindResurrection   EventKind = "resurrection"
)

// #endregion event-kind

// #region record
// Record is one line of the event log. Exactly one payload is set, matching Kind.
type Record struct {
	Kind      EventKind `json:"event_kind"`
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Dyad      string    `json:"dyad_name"`
	Timestamp time.Time `json:"timestamp"`

	Init         *InitDetail         `json:"init,omitempty"`
	Breath       *BreathDetail       `json:"breath,omitempty"`
	Transition   *TransitionDetail   `json:"transition,omitempty"`
	Reset        *ResetDetail        `json:"reset,omitempty"`
	Resurrection *ResurrectionDetail `json:"resurrection,omitempty"`
}

// NewRecord stamps a record with a fresh ID.
func NewRecord(kind EventKind, session, dyad string, at time.Time) Record {
	return Record{
		Kind:      kind,
		ID:        uuid.New().String(),
		SessionID: session,
		Dyad:      dyad,
		Timestamp: at.UTC(),
	}
}

// #endregion record

// #region payloads
// InitDetail captures tracker construction.
type InitDetail struct {
	OscillationEnabled bool    `json:"oscillation_enabled"`
	BlendRatio         float64 `json:"blend_ratio"`
	InitialScore       float64 `json:"initial_coherence"`
	RecoveryMode       string  `json:"recovery_mode"`
}

// BreathDetail captures one processed event.
type BreathDetail struct {
	Cycle          uint64   `json:"breath_cycle"`
	InputText      string   `json:"input_text"`
	Tag            string   `json:"tag,omitempty"`
	ElapsedSeconds float64  `json:"elapsed_seconds"`
	ScoreDelta     float64  `json:"score_delta"`
	Reasons        []string `json:"reason"`
	OldScore       float64  `json:"old_coherence"`
	RawScore       float64  `json:"raw_coherence"`
	NewScore       float64  `json:"new_coherence"`
	Change         float64  `json:"actual_change"`
	History        float64  `json:"history"`
	Presence       float64  `json:"presence_bonus"`
	Uncertainty    float64  `json:"uncertainty_bonus"`
	Regime         string   `json:"regime"`
	RegimeLabel    string   `json:"regime_label"`

	Oscillation *OscillationDetail `json:"oscillation,omitempty"`
}

// OscillationDetail is present on breaths taken inside an oscillation session.
type OscillationDetail struct {
	Step          int     `json:"oscillation_breath"`
	EntryScore    float64 `json:"entry_coherence"`
	ExpectedScore float64 `json:"expected_coherence"`
	ExpectedTone  string  `json:"expected_tone"`
	BlendRatio    float64 `json:"blend_ratio"`
	BlendedScore  float64 `json:"blended_coherence"`
	Phase         string  `json:"phase_description"`
	Complete      bool    `json:"oscillation_complete"`
}

// TransitionDetail captures a change of recovery mode.
type TransitionDetail struct {
	From           string  `json:"from_mode"`
	To             string  `json:"to_mode"`
	Score          float64 `json:"coherence"`
	ExpectedCycles uint32  `json:"expected_breaths"`
	Description    string  `json:"description"`
}

// ResetDetail captures an explicit reset.
type ResetDetail struct {
	InitialScore float64 `json:"new_initial_coherence"`
	NextSession  string  `json:"next_session_id,omitempty"`
}

// ResurrectionDetail captures the score crossing the stable threshold.
type ResurrectionDetail struct {
	Cycle              uint64  `json:"breath_cycle"`
	FinalScore         float64 `json:"final_coherence"`
	TotalSeconds       float64 `json:"total_time_seconds"`
	WasOscillatory     bool    `json:"was_oscillatory"`
	OscillationBreaths int     `json:"oscillation_breaths"`
	Message            string  `json:"message"`
}

// #endregion payloads
