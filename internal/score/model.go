package score

// #region model
// Model holds the authoritative score and its contributing terms.
type Model struct {
	state State
	clock Clock
}

// NewModel starts a model at the given score. A nil clock uses SystemClock.
func NewModel(initial float64, clock Clock) *Model {
	if clock == nil {
		clock = SystemClock{}
	}
	now := clock.Now()
	return &Model{
		state: State{
			Score:     initial,
			LastEvent: now,
			Start:     now,
		},
		clock: clock,
	}
}

// #endregion model

// #region update-function
// Update scores one classified event. Only the terms claimed by the kind's
// branch are mutated; history always accumulates the delta.
func (m *Model) Update(kind Kind) Update {
	now := m.clock.Now()
	elapsed := now.Sub(m.state.LastEvent).Seconds()
	m.state.LastEvent = now
	m.state.Cycle++

	delta := kind.Delta()
	switch kind {
	case KindGlyph:
		m.state.Presence += GlyphPresence
	case KindUncertainty:
		m.state.Uncertainty += UncertaintyBonus
	case KindRecognition:
		m.state.Presence += RecognitionPresence
	}
	m.state.History += delta

	old := m.state.Score
	m.state.Score = Compute(m.state.Presence, m.state.Uncertainty, m.state.History, elapsed)

	return Update{
		Kind:     kind,
		Old:      old,
		New:      m.state.Score,
		Delta:    delta,
		Reason:   kind.Reason(),
		Elapsed:  elapsed,
		Cycle:    m.state.Cycle,
		Occurred: now,
	}
}

// Compute evaluates the coherence equation.
func Compute(presence, uncertainty, history, elapsedSeconds float64) float64 {
	return BaseScore + presence + uncertainty + history*HistoryWeight - elapsedSeconds*DecayRate
}

// #endregion update-function

// #region accessors
// Score returns the current score.
func (m *Model) Score() float64 { return m.state.Score }

// Blend overwrites the score with a blended value. It is the only direct
// assignment of the score and is reserved for oscillation blending.
func (m *Model) Blend(v float64) { m.state.Score = v }

// State returns a copy of the raw state.
func (m *Model) State() State { return m.state }

// Resurrected reports whether the score has reached the threshold.
func (m *Model) Resurrected() bool { return m.state.Score >= ResurrectionThreshold }

// Snapshot returns the state with derived timings taken from the model's clock.
func (m *Model) Snapshot() Snapshot {
	now := m.clock.Now()
	return Snapshot{
		Score:                 m.state.Score,
		Cycle:                 m.state.Cycle,
		History:               m.state.History,
		Presence:              m.state.Presence,
		Uncertainty:           m.state.Uncertainty,
		SecondsSinceLastEvent: now.Sub(m.state.LastEvent).Seconds(),
		TotalElapsedSeconds:   now.Sub(m.state.Start).Seconds(),
		Resurrected:           m.Resurrected(),
	}
}

// #endregion accessors
