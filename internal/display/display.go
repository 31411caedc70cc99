// Package display renders tracker state, history, and reports for terminals.
package display

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/danielpatrickdp/coherence-tracker/internal/eval"
	"github.com/danielpatrickdp/coherence-tracker/internal/logging"
	"github.com/danielpatrickdp/coherence-tracker/internal/pattern"
	"github.com/danielpatrickdp/coherence-tracker/internal/replay"
	"github.com/danielpatrickdp/coherence-tracker/internal/score"
	"github.com/danielpatrickdp/coherence-tracker/internal/tracker"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// #region bands
// Band labels, deepest first.
const (
	DeepVoidLabel       = "DEEP VOID"
	VoidLabel           = "VOID"
	EmergingLabel       = "EMERGING"
	RisingLabel         = "RISING"
	LuminousShadowLabel = "LUMINOUS SHADOW"
)

// Band names the display band of a score and its symbol.
func Band(coherence float64) (label, symbol string) {
	switch {
	case coherence < -10:
		return DeepVoidLabel, "◯"
	case coherence < -1:
		return VoidLabel, "◐"
	case coherence < 0:
		return EmergingLabel, "◑"
	case coherence < score.ResurrectionThreshold:
		return RisingLabel, "◕"
	default:
		return LuminousShadowLabel, "●"
	}
}

// #endregion bands

// #region printer
// Printer writes human-readable output. Colors apply only to labels.
type Printer struct {
	w      io.Writer
	colors bool

	deep     *color.Color
	void     *color.Color
	emerging *color.Color
	rising   *color.Color
	luminous *color.Color
	pass     *color.Color
	fail     *color.Color
}

// NewPrinter returns a printer writing to w.
func NewPrinter(w io.Writer, colors bool) *Printer {
	p := &Printer{
		w:        w,
		colors:   colors,
		deep:     color.New(color.FgRed, color.Bold),
		void:     color.New(color.FgMagenta),
		emerging: color.New(color.FgYellow),
		rising:   color.New(color.FgCyan),
		luminous: color.New(color.FgHiWhite, color.Bold),
		pass:     color.New(color.FgGreen),
		fail:     color.New(color.FgRed, color.Bold),
	}
	for _, c := range []*color.Color{p.deep, p.void, p.emerging, p.rising, p.luminous, p.pass, p.fail} {
		if colors {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p *Printer) bandLabel(coherence float64) string {
	label, _ := Band(coherence)
	switch label {
	case DeepVoidLabel:
		return p.deep.Sprint(label)
	case VoidLabel:
		return p.void.Sprint(label)
	case EmergingLabel:
		return p.emerging.Sprint(label)
	case RisingLabel:
		return p.rising.Sprint(label)
	default:
		return p.luminous.Sprint(label)
	}
}

func (p *Printer) status(ok bool) string {
	if ok {
		return p.pass.Sprint("✓")
	}
	return p.fail.Sprint("✗")
}

// #endregion printer

// #region state
// Header prints the scoring rules.
func (p *Printer) Header() {
	rule := strings.Repeat("=", 60)
	fmt.Fprintln(p.w, rule)
	fmt.Fprintln(p.w, "†⟡ COHERENCE TRACKER ⟡†")
	fmt.Fprintln(p.w, rule)
	fmt.Fprintln(p.w, "coherence = 0.5 + presence + uncertainty + (history × 0.3) - (t × 0.0001)")
	fmt.Fprintln(p.w, "  silence 0 | uncertainty +0.25 | recognition +1.0 | glyph +1.5 | penalty -2.0")
	fmt.Fprintln(p.w, rule)
}

// State prints the tracker snapshot.
func (p *Printer) State(s tracker.Snapshot) {
	_, symbol := Band(s.Score)
	fmt.Fprintf(p.w, "\n%s Breath Cycle: %d\n", symbol, s.Cycle)
	fmt.Fprintf(p.w, "   Coherence: %.3f (%s)\n", s.Score, p.bandLabel(s.Score))
	fmt.Fprintf(p.w, "   History: %.3f\n", s.History)
	fmt.Fprintf(p.w, "   Presence Bonus: %.3f\n", s.Presence)
	fmt.Fprintf(p.w, "   Uncertainty Bonus: %.3f\n", s.Uncertainty)
	fmt.Fprintf(p.w, "   Time Since Input: %.1fs\n", s.SecondsSinceLastEvent)
	fmt.Fprintf(p.w, "   Recovery Mode: %s\n", s.RecoveryMode)
	if s.InOscillation {
		fmt.Fprintf(p.w, "   Oscillation: breath %d of %d (entered at %.3f)\n",
			s.OscillationStep, tracker.MaxOscillationSteps, s.EntryScore)
	}
	if s.Resurrected {
		fmt.Fprintln(p.w, "\n   🜂 RESURRECTION ACHIEVED 🜂")
	}
}

// BreathResult prints the outcome of one ProcessInput call.
func (p *Printer) BreathResult(res tracker.Result) {
	for _, tr := range res.Transitions() {
		fmt.Fprintf(p.w, "\n⇄ Mode transition: %s → %s (%s)\n", tr.From, tr.To, tr.Description)
	}
	b := res.Breath()
	if b == nil {
		return
	}
	fmt.Fprintf(p.w, "\n→ Input scored: %+.2f\n", b.ScoreDelta)
	fmt.Fprintf(p.w, "  Reason: %s\n", strings.Join(b.Reasons, ", "))
	if o := b.Oscillation; o != nil {
		fmt.Fprintf(p.w, "  Oscillation breath %d: raw %.3f blended toward %.3f (%s)\n",
			o.Step, b.RawScore, o.ExpectedScore, o.ExpectedTone)
	}
	fmt.Fprintf(p.w, "  Coherence change: %.3f → %.3f (%+.3f)\n", b.OldScore, b.NewScore, b.Change)
}

// Summary prints the end-of-session totals.
func (p *Printer) Summary(sum tracker.SessionSummary, logPath string) {
	fmt.Fprintf(p.w, "Total breaths: %d\n", sum.TotalBreaths)
	fmt.Fprintf(p.w, "Oscillation breaths: %d\n", sum.OscillationBreaths)
	fmt.Fprintf(p.w, "Recovery mode used: %s\n", sum.RecoveryModeUsed)
	fmt.Fprintf(p.w, "Final coherence: %.3f (%s)\n", sum.Current.Score, p.bandLabel(sum.Current.Score))
	if logPath != "" {
		fmt.Fprintf(p.w, "Log saved to: %s\n", logPath)
	}
}

// #endregion state

// #region tables
// History renders breath records as a table.
func (p *Printer) History(records []logging.Record) error {
	table := tablewriter.NewWriter(p.w)
	table.Header([]string{"Cycle", "Time", "Input", "Reason", "Coherence", "Band", "Osc"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, rec := range records {
		b := rec.Breath
		if rec.Kind != logging.KindBreath || b == nil {
			continue
		}
		osc := ""
		if b.Oscillation != nil {
			osc = strconv.Itoa(b.Oscillation.Step)
		}
		data = append(data, []string{
			strconv.FormatUint(b.Cycle, 10),
			rec.Timestamp.Local().Format("15:04:05"),
			truncate(b.InputText, 28),
			strings.Join(b.Reasons, ", "),
			fmt.Sprintf("%.3f", b.NewScore),
			p.bandLabel(b.NewScore),
			osc,
		})
	}
	if err := table.Bulk(data); err != nil {
		return fmt.Errorf("history table: %w", err)
	}
	return table.Render()
}

// Pattern renders the recovery pattern table.
func (p *Printer) Pattern() error {
	table := tablewriter.NewWriter(p.w)
	table.Header([]string{"Breath", "Target", "Tone", "Phase"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, pt := range pattern.Points() {
		step := int(pt.Index)
		data = append(data, []string{
			strconv.Itoa(step),
			fmt.Sprintf("%.3f", pt.Target),
			string(pt.Tone),
			pattern.Phase(step),
		})
	}
	if err := table.Bulk(data); err != nil {
		return fmt.Errorf("pattern table: %w", err)
	}
	if err := table.Render(); err != nil {
		return err
	}

	s := pattern.Summarize()
	fmt.Fprintf(p.w, "Recognition leap: %.3f | Total climb: %.3f | Oscillation range: %.3f–%.3f\n",
		s.RecognitionLeap, s.TotalClimb, s.OscillationLow, s.OscillationHigh)
	return nil
}

// EvalReport renders a validation report.
func (p *Printer) EvalReport(res eval.EvalResult) error {
	table := tablewriter.NewWriter(p.w)
	table.Header([]string{"Suite", "Test", "Expected", "Actual", "Error", "Status"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, m := range res.Metrics {
		data = append(data, []string{
			m.Suite,
			m.Name,
			fmt.Sprintf("%.3f", m.Expected),
			fmt.Sprintf("%.3f", m.Actual),
			fmt.Sprintf("%.3f", m.Error),
			p.status(m.Pass),
		})
	}
	if err := table.Bulk(data); err != nil {
		return fmt.Errorf("eval table: %w", err)
	}
	if err := table.Render(); err != nil {
		return err
	}

	fmt.Fprintf(p.w, "\nTotal tests: %d\nPassed: %d\nFailed: %d\nPass rate: %.1f%%\n",
		res.Total, res.Total-res.Failed, res.Failed, res.PassRate)
	for _, m := range res.Failures() {
		fmt.Fprintf(p.w, "  - %s: %s\n", m.Name, m.Message)
	}
	if res.Passed {
		fmt.Fprintln(p.w, p.pass.Sprint("✓ ALL TESTS PASSED"))
	}
	return nil
}

// Replay renders per-breath replay results and their summary.
func (p *Printer) Replay(results []replay.ReplayResult, mismatches []replay.Mismatch) error {
	table := tablewriter.NewWriter(p.w)
	table.Header([]string{"Breath", "Input", "Raw", "Coherence", "Regime", "Osc", "Event"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, r := range results {
		osc := ""
		if r.Oscillating {
			osc = strconv.Itoa(r.Step)
		}
		var events []string
		for _, tr := range r.Transitions {
			events = append(events, tr.From+"→"+tr.To)
		}
		if r.Resurrected {
			events = append(events, "resurrection")
		}
		data = append(data, []string{
			strconv.Itoa(r.Breath),
			truncate(r.Input.Text, 24),
			fmt.Sprintf("%.3f", r.RawScore),
			fmt.Sprintf("%.3f", r.Score),
			string(r.Regime),
			osc,
			strings.Join(events, ", "),
		})
	}
	if err := table.Bulk(data); err != nil {
		return fmt.Errorf("replay table: %w", err)
	}
	if err := table.Render(); err != nil {
		return err
	}

	s := replay.Summarize(results)
	fmt.Fprintf(p.w, "Breaths: %d | Oscillation breaths: %d | Transitions: %d | Resurrections: %d | Final: %.3f (%s)\n",
		s.TotalBreaths, s.OscillationBreaths, s.Transitions, s.Resurrections, s.FinalScore, p.bandLabel(s.FinalScore))
	for _, m := range mismatches {
		fmt.Fprintf(p.w, "%s %s\n", p.status(false), m)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// #endregion tables
