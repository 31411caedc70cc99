package tracker

import (
	"fmt"
	"log/slog"
	"reflect"

	"github.com/danielpatrickdp/coherence-tracker/internal/logging"
	"github.com/danielpatrickdp/coherence-tracker/internal/pattern"
	"github.com/danielpatrickdp/coherence-tracker/internal/regime"
	"github.com/danielpatrickdp/coherence-tracker/internal/score"
	"github.com/google/uuid"
)

// #region tracker
// Tracker runs the coherence state machine for one dyad. It performs no
// internal synchronization; callers sharing a Tracker must serialize calls.
type Tracker struct {
	cfg     Config
	session string
	model   *score.Model
	osc     *Oscillation
	alpha   float64
	armed   bool // resurrection guard, disarmed while the score stays stable
	log     *slog.Logger
}

// New builds a tracker, records its initialization, and enters an
// oscillation session immediately if the initial score is in the deep void.
func New(cfg Config) *Tracker {
	if cfg.Dyad == "" {
		cfg.Dyad = "default"
	}
	if reflect.DeepEqual(cfg.Lexicon, score.Lexicon{}) {
		cfg.Lexicon = score.DefaultLexicon()
	}
	if cfg.Clock == nil {
		cfg.Clock = score.SystemClock{}
	}
	if cfg.Sink == nil {
		cfg.Sink = logging.Discard{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	alpha := DefaultBlendRatio
	if cfg.BlendRatio != nil {
		alpha = *cfg.BlendRatio
	}

	t := &Tracker{
		cfg:     cfg,
		session: uuid.New().String(),
		model:   score.NewModel(cfg.InitialScore, cfg.Clock),
		alpha:   alpha,
		armed:   true,
		log:     cfg.Logger.With(slog.String("dyad", cfg.Dyad)),
	}

	var res Result
	t.initialize(&res, cfg.InitialScore)
	t.checkOscillation(&res)
	return t
}

func (t *Tracker) initialize(res *Result, initial float64) {
	rec := t.record(logging.KindInitialization)
	rec.Init = &logging.InitDetail{
		OscillationEnabled: t.cfg.OscillationEnabled,
		BlendRatio:         t.alpha,
		InitialScore:       initial,
		RecoveryMode:       string(regime.Classify(initial).Regime),
	}
	t.emit(res, rec)
}

// BlendRatio returns the resolved pattern weight used while oscillating.
func (t *Tracker) BlendRatio() float64 { return t.alpha }

// #endregion tracker

// #region process-input
// ProcessInput scores one breath. While an oscillation session is active the
// raw score is replaced by its blend with the recovery pattern.
func (t *Tracker) ProcessInput(in Input) Result {
	kind := t.cfg.Lexicon.Classify(in.Text, in.Tag)
	upd := t.model.Update(kind)
	res := Result{Update: upd}

	var osc *logging.OscillationDetail
	if t.osc != nil {
		t.osc.Step++
		step := t.osc.Step
		expected := pattern.ValueAt(step)
		alpha := t.alpha
		blended := upd.New*(1-alpha) + expected*alpha
		t.model.Blend(blended)

		osc = &logging.OscillationDetail{
			Step:          step,
			EntryScore:    t.osc.EntryScore,
			ExpectedScore: expected,
			ExpectedTone:  string(pattern.ToneAt(step)),
			BlendRatio:    alpha,
			BlendedScore:  blended,
			Phase:         pattern.Phase(step),
		}
		res.Oscillating = true
		res.Step = step

		if step >= MaxOscillationSteps || blended >= score.ResurrectionThreshold {
			osc.Complete = true
			res.Completed = true
			t.osc = nil
			t.transition(&res, PhaseOscillating, PhaseStable)
		}
	}

	current := t.model.Score()
	class := regime.Classify(current)
	st := t.model.State()

	rec := t.record(logging.KindBreath)
	rec.Breath = &logging.BreathDetail{
		Cycle:          upd.Cycle,
		InputText:      in.Text,
		Tag:            in.Tag,
		ElapsedSeconds: upd.Elapsed,
		ScoreDelta:     upd.Delta,
		Reasons:        []string{upd.Reason},
		OldScore:       upd.Old,
		RawScore:       upd.New,
		NewScore:       current,
		Change:         current - upd.Old,
		History:        st.History,
		Presence:       st.Presence,
		Uncertainty:    st.Uncertainty,
		Regime:         string(class.Regime),
		RegimeLabel:    class.Label,
		Oscillation:    osc,
	}
	t.emit(&res, rec)

	if t.model.Resurrected() {
		if t.armed {
			t.armed = false
			res.Resurrected = true
			t.resurrection(&res, osc)
		}
	} else {
		t.armed = true
	}

	t.checkOscillation(&res)

	res.Score = t.model.Score()
	res.Classification = regime.Classify(res.Score)
	return res
}

// #endregion process-input

// #region reset
// Reset reinitializes the score model at initial, clears any oscillation
// session, and re-arms the resurrection record. The reset record closes the
// current session; everything after it, starting with a fresh
// initialization record, belongs to a new session ID.
func (t *Tracker) Reset(initial float64) Result {
	next := uuid.New().String()

	var res Result
	rec := t.record(logging.KindReset)
	rec.Reset = &logging.ResetDetail{InitialScore: initial, NextSession: next}
	t.emit(&res, rec)

	t.session = next
	t.model = score.NewModel(initial, t.cfg.Clock)
	t.osc = nil
	t.armed = true
	t.initialize(&res, initial)
	t.checkOscillation(&res)

	res.Score = t.model.Score()
	res.Classification = regime.Classify(res.Score)
	res.Oscillating = t.osc != nil
	return res
}

// #endregion reset

// #region transitions
// checkOscillation enters a session when the current score is oscillatory
// and no session is active.
func (t *Tracker) checkOscillation(res *Result) {
	if !t.cfg.OscillationEnabled || t.osc != nil {
		return
	}
	if regime.Classify(t.model.Score()).Regime != regime.Oscillatory {
		return
	}
	t.osc = &Oscillation{Step: 0, EntryScore: t.model.Score()}
	t.transition(res, PhaseLinear, PhaseOscillating)
}

func (t *Tracker) transition(res *Result, from, to Phase) {
	class := regime.Classify(t.model.Score())
	rec := t.record(logging.KindTransition)
	rec.Transition = &logging.TransitionDetail{
		From:           string(from),
		To:             string(to),
		Score:          t.model.Score(),
		ExpectedCycles: class.ExpectedCycles,
		Description:    class.Label,
	}
	t.log.Info("recovery mode transition",
		slog.String("from", string(from)),
		slog.String("to", string(to)),
		slog.Float64("coherence", t.model.Score()))
	t.emit(res, rec)
}

func (t *Tracker) resurrection(res *Result, osc *logging.OscillationDetail) {
	snap := t.model.Snapshot()
	rec := t.record(logging.KindResurrection)
	detail := &logging.ResurrectionDetail{
		Cycle:        snap.Cycle,
		FinalScore:   snap.Score,
		TotalSeconds: snap.TotalElapsedSeconds,
		Message:      fmt.Sprintf("🜂 Resurrection achieved at breath cycle %d 🜂", snap.Cycle),
	}
	if osc != nil {
		detail.WasOscillatory = true
		detail.OscillationBreaths = osc.Step
	}
	rec.Resurrection = detail
	t.log.Info("resurrection", slog.Uint64("breath_cycle", snap.Cycle), slog.Float64("coherence", snap.Score))
	t.emit(res, rec)
}

// #endregion transitions

// #region emit
func (t *Tracker) record(kind logging.EventKind) logging.Record {
	return logging.NewRecord(kind, t.session, t.cfg.Dyad, t.cfg.Clock.Now())
}

// emit hands the record to the sink. Sink failures are logged and never
// fail the state machine.
func (t *Tracker) emit(res *Result, rec logging.Record) {
	res.Records = append(res.Records, rec)
	if err := t.cfg.Sink.Append(rec); err != nil {
		t.log.Warn("event sink append failed",
			slog.String("event_kind", string(rec.Kind)),
			slog.Any("error", err))
	}
}

// #endregion emit

// #region accessors
// Mode derives the phase from the session and the score.
func (t *Tracker) Mode() Mode {
	if t.osc != nil {
		s := *t.osc
		return Mode{Phase: PhaseOscillating, Session: &s}
	}
	if t.model.Resurrected() {
		return Mode{Phase: PhaseStable}
	}
	return Mode{Phase: PhaseLinear}
}

// Score returns the authoritative score.
func (t *Tracker) Score() float64 { return t.model.Score() }

// ScoreState returns a copy of the raw score state.
func (t *Tracker) ScoreState() score.State { return t.model.State() }

// SessionID identifies this tracker instance in the event log.
func (t *Tracker) SessionID() string { return t.session }

// Dyad returns the dyad name.
func (t *Tracker) Dyad() string { return t.cfg.Dyad }

// State returns a snapshot of the tracker.
func (t *Tracker) State() Snapshot {
	mode := t.Mode()
	snap := Snapshot{
		Snapshot:           t.model.Snapshot(),
		Dyad:               t.cfg.Dyad,
		SessionID:          t.session,
		RecoveryMode:       mode.Phase,
		InOscillation:      mode.Session != nil,
		OscillationEnabled: t.cfg.OscillationEnabled,
	}
	if mode.Session != nil {
		snap.OscillationStep = mode.Session.Step
		snap.EntryScore = mode.Session.EntryScore
		snap.BreathsRemaining = max(0, MaxOscillationSteps-mode.Session.Step)
	}
	return snap
}

// #endregion accessors

// #region summary
// Summary aggregates this session's records from the reader.
func (t *Tracker) Summary(r logging.Reader) (SessionSummary, error) {
	recs, err := r.ReadAll()
	if err != nil {
		return SessionSummary{}, fmt.Errorf("read history: %w", err)
	}

	sum := SessionSummary{
		Dyad:             t.cfg.Dyad,
		Current:          t.State(),
		RecoveryModeUsed: PhaseLinear,
	}
	for _, rec := range recs {
		if rec.SessionID != t.session {
			continue
		}
		switch rec.Kind {
		case logging.KindBreath:
			sum.TotalBreaths++
			sum.History = append(sum.History, rec)
			if rec.Breath != nil && rec.Breath.Oscillation != nil {
				sum.OscillationBreaths++
			}
		case logging.KindTransition:
			sum.Transitions++
		case logging.KindResurrection:
			sum.Resurrections++
		}
	}
	if sum.OscillationBreaths > 0 {
		sum.RecoveryModeUsed = PhaseOscillating
	}
	sum.ResurrectionReached = sum.Current.Resurrected
	return sum, nil
}

// #endregion summary
