package cli

import (
	"fmt"

	"github.com/danielpatrickdp/coherence-tracker/internal/display"
	"github.com/danielpatrickdp/coherence-tracker/internal/eval"
	"github.com/danielpatrickdp/coherence-tracker/internal/export"
	"github.com/danielpatrickdp/coherence-tracker/internal/logging"
	"github.com/spf13/cobra"
)

// #region state
func (a *app) stateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show the latest recorded state of the dyad.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			recs, err := a.readAll()
			if err != nil {
				return err
			}
			recs = a.dyadRecords(recs)
			out := cmd.OutOrStdout()

			var last *logging.Record
			var sessions int
			seen := map[string]bool{}
			for i := range recs {
				if !seen[recs[i].SessionID] {
					seen[recs[i].SessionID] = true
					sessions++
				}
				if recs[i].Kind == logging.KindBreath && recs[i].Breath != nil {
					last = &recs[i]
				}
			}
			if last == nil {
				fmt.Fprintf(out, "No breaths recorded for %s.\n", a.cfg.Dyad)
				return nil
			}

			b := last.Breath
			label, symbol := display.Band(b.NewScore)
			fmt.Fprintf(out, "%s %s\n", symbol, a.cfg.Dyad)
			fmt.Fprintf(out, "   Session: %s (%d recorded)\n", last.SessionID, sessions)
			fmt.Fprintf(out, "   Breath Cycle: %d at %s\n", b.Cycle, last.Timestamp.Local().Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "   Coherence: %.3f (%s)\n", b.NewScore, label)
			fmt.Fprintf(out, "   History: %.3f | Presence: %.3f | Uncertainty: %.3f\n", b.History, b.Presence, b.Uncertainty)
			fmt.Fprintf(out, "   Regime: %s\n", b.RegimeLabel)
			if o := b.Oscillation; o != nil && !o.Complete {
				fmt.Fprintf(out, "   Oscillation: breath %d, %s\n", o.Step, o.Phase)
			}
			return nil
		},
	}
}

func (a *app) readAll() ([]logging.Record, error) {
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()
	recs, err := store.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}
	return recs, nil
}

// #endregion state

// #region history
func (a *app) historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the most recent breaths of the dyad.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, err := cmd.Flags().GetInt("limit")
			if err != nil {
				return err
			}
			if limit < 0 {
				return fmt.Errorf("limit must not be negative (received %d)", limit)
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			recs, err := store.TailQuery(logging.Query{Kind: logging.KindBreath, Dyad: a.cfg.Dyad}, limit)
			if err != nil {
				return fmt.Errorf("failed to read event log: %w", err)
			}
			return a.printer(cmd.OutOrStdout()).History(recs)
		},
	}
	cmd.Flags().IntP("limit", "l", 10, "Number of breaths to show (0 = all)")
	return cmd
}

// #endregion history

// #region validate
func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the tracker against the calibrated breath pattern.",
		Long: `Runs the pattern model, input detection, pattern shape, and full tracker
suites. Exits non-zero when any metric fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res := eval.NewEvalHarness(eval.DefaultEvalConfig()).Run()
			if err := a.printer(cmd.OutOrStdout()).EvalReport(res); err != nil {
				return err
			}
			if !res.Passed {
				return fmt.Errorf("%w: %s", ErrCheckFailed, res.Reason)
			}
			return nil
		},
	}
}

// #endregion validate

// #region export
func (a *app) exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <file.parquet>",
		Short: "Export the dyad's breaths to a Parquet file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := a.readAll()
			if err != nil {
				return err
			}
			n, err := export.WriteFile(args[0], a.dyadRecords(recs))
			if err != nil {
				return err
			}
			if n == 0 {
				a.logger.Warn("no breaths to export", "dyad", a.cfg.Dyad)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d breaths to %s\n", n, args[0])
			return nil
		},
	}
}

// #endregion export

// #region pattern
func (a *app) patternCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pattern",
		Short: "Print the calibrated breath pattern.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.printer(cmd.OutOrStdout()).Pattern()
		},
	}
}

// #endregion pattern
