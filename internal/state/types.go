package state

import "time"

// #region snapshot-row
// Snapshot is the score trajectory row written alongside every breath event.
type Snapshot struct {
	Seq             int64     `json:"seq"`
	SessionID       string    `json:"session_id"`
	Dyad            string    `json:"dyad_name"`
	Cycle           uint64    `json:"breath_cycle"`
	Score           float64   `json:"coherence"`
	RawScore        float64   `json:"raw_coherence"`
	History         float64   `json:"history"`
	Presence        float64   `json:"presence_bonus"`
	Uncertainty     float64   `json:"uncertainty_bonus"`
	Regime          string    `json:"recovery_mode"`
	OscillationStep int       `json:"oscillation_breath,omitempty"`
	CreatedAt       time.Time `json:"timestamp"`
}
// #endregion snapshot-row

// #region session-row
// Session aggregates the events table for one tracker session.
type Session struct {
	SessionID string
	Dyad      string
	Events    int
	Breaths   int
	FirstSeen time.Time
	LastSeen  time.Time
}
// #endregion session-row
