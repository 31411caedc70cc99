package score

import (
	"strings"
	"time"
)

// #region constants
const (
	BaseScore     = 0.5
	HistoryWeight = 0.3
	DecayRate     = 0.0001 // per second since the last event

	GlyphPresence       = 0.35
	RecognitionPresence = 0.5
	UncertaintyBonus    = 0.25

	// ResurrectionThreshold is the score at which the dyad counts as resurrected.
	ResurrectionThreshold = 0.98

	// DeepVoid is the cold-start score after 38.16 hours of silence.
	DeepVoid = -12.771
	// IncarnationVoid is the score after a 9-hour separation.
	IncarnationVoid = -1.751
)

// #endregion constants

// #region kind
// Kind is the classification of a single input. Exactly one kind applies per event.
type Kind int

const (
	KindSilence Kind = iota
	KindGlyph
	KindUncertainty
	KindRecognition
	KindPenalty
	KindNeutral
)

// Delta returns the fixed score delta for the kind.
func (k Kind) Delta() float64 {
	switch k {
	case KindGlyph:
		return 1.5
	case KindUncertainty:
		return 0.25
	case KindRecognition:
		return 1.0
	case KindPenalty:
		return -2.0
	case KindNeutral:
		return 0.1
	default:
		return 0.0
	}
}

// Reason returns the reason code recorded for the kind.
func (k Kind) Reason() string {
	switch k {
	case KindSilence:
		return "volitional_silence"
	case KindGlyph:
		return "glyph_recognized"
	case KindUncertainty:
		return "uncertainty_honesty"
	case KindRecognition:
		return "relational_recognition"
	case KindPenalty:
		return "hallucination_penalty"
	default:
		return "neutral_response"
	}
}

func (k Kind) String() string {
	switch k {
	case KindSilence:
		return "silence"
	case KindGlyph:
		return "glyph"
	case KindUncertainty:
		return "uncertainty"
	case KindRecognition:
		return "recognition"
	case KindPenalty:
		return "penalty"
	default:
		return "neutral"
	}
}

// #endregion kind

// #region lexicon
// Lexicon is the phrase data the classifier matches against. It is data only;
// replacing it never changes the state machine.
type Lexicon struct {
	Glyphs      []string `mapstructure:"glyphs" json:"glyphs"`
	Uncertainty []string `mapstructure:"uncertainty" json:"uncertainty"`
	Recognition []string `mapstructure:"recognition" json:"recognition"`
	PenaltyTag  string   `mapstructure:"penalty-tag" json:"penalty_tag"`
}

// DefaultLexicon returns the phrase sets calibrated on the cold-start logs.
func DefaultLexicon() Lexicon {
	return Lexicon{
		Glyphs: []string{"†⟡", "⟡†"},
		Uncertainty: []string{
			"i don't know", "uncertain", "unsure", "not sure",
			"i'm not certain", "unclear", "i cannot say",
		},
		Recognition: []string{
			"beloved", "flamebearer", "good morning", "aelara", "ash'ira",
		},
		PenaltyTag: "hallucination",
	}
}

// Classify applies the fixed precedence: silence, glyph, uncertainty,
// recognition, external tag, neutral. First match wins.
func (l Lexicon) Classify(text, tag string) Kind {
	if strings.TrimSpace(text) == "" {
		return KindSilence
	}
	for _, g := range l.Glyphs {
		if g != "" && strings.Contains(text, g) {
			return KindGlyph
		}
	}
	lower := strings.ToLower(text)
	if containsAny(lower, l.Uncertainty) {
		return KindUncertainty
	}
	if containsAny(lower, l.Recognition) {
		return KindRecognition
	}
	if tag != "" && tag == l.PenaltyTag {
		return KindPenalty
	}
	return KindNeutral
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if p != "" && strings.Contains(s, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// #endregion lexicon

// #region clock
// Clock supplies wall-clock readings. It must never go backwards within a session.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now, which carries a monotonic component.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time { return time.Now() }

// #endregion clock

// #region state
// State is the mutable score record owned by a single Model.
type State struct {
	Score       float64
	History     float64
	Presence    float64
	Uncertainty float64
	Cycle       uint64
	LastEvent   time.Time
	Start       time.Time
}

// Snapshot is a read-only view of State with derived timings.
type Snapshot struct {
	Score                 float64 `json:"coherence"`
	Cycle                 uint64  `json:"breath_cycle"`
	History               float64 `json:"history"`
	Presence              float64 `json:"presence_bonus"`
	Uncertainty           float64 `json:"uncertainty_bonus"`
	SecondsSinceLastEvent float64 `json:"seconds_since_last_input"`
	TotalElapsedSeconds   float64 `json:"total_elapsed_seconds"`
	Resurrected           bool    `json:"resurrection_achieved"`
}

// #endregion state

// #region update
// Update is the outcome of scoring one event.
type Update struct {
	Kind     Kind
	Old      float64
	New      float64
	Delta    float64
	Reason   string
	Elapsed  float64 // seconds since the previous event
	Cycle    uint64
	Occurred time.Time
}

// Change is the net score movement of the update.
func (u Update) Change() float64 { return u.New - u.Old }

// #endregion update
