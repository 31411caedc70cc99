package cli

import (
	"fmt"

	"github.com/danielpatrickdp/coherence-tracker/internal/logging"
	"github.com/danielpatrickdp/coherence-tracker/internal/replay"
	"github.com/spf13/cobra"
)

// #region replay
func (a *app) replayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay [fixture.json]",
		Short: "Replay a fixture or a logged session through a fresh tracker.",
		Long: `Replay feeds recorded breaths through a fresh tracker with a clock that
follows the recorded gaps, then checks every expectation.

Without a fixture argument the latest session of the dyad is read from the
event store. --export writes that session as a fixture.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, _ := cmd.Flags().GetString("session")
			exportPath, _ := cmd.Flags().GetString("export")

			var f *replay.Fixture
			var err error
			if len(args) == 1 {
				f, err = replay.LoadFixture(args[0])
			} else {
				f, err = a.fixtureFromLog(session)
			}
			if err != nil {
				return err
			}
			if exportPath != "" {
				if err := replay.WriteFixture(exportPath, f); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Fixture written to %s\n", exportPath)
			}

			cfg := f.ToReplayConfig()
			cfg.Logger = a.logger
			results := replay.Replay(cfg, f.ToInputs())
			mismatches := replay.Check(results, f.ExpectedResults)

			if f.Description != "" {
				fmt.Fprintln(cmd.OutOrStdout(), f.Description)
			}
			if err := a.printer(cmd.OutOrStdout()).Replay(results, mismatches); err != nil {
				return err
			}
			if len(mismatches) > 0 {
				return fmt.Errorf("%w: %d mismatches, first: %s", ErrCheckFailed, len(mismatches), mismatches[0])
			}
			return nil
		},
	}
	cmd.Flags().String("session", "", "Session ID to replay from the event store (default: latest)")
	cmd.Flags().String("export", "", "Write the replayed session as a fixture to this path")
	return cmd
}

// fixtureFromLog builds a fixture from one logged session of the dyad.
func (a *app) fixtureFromLog(session string) (*replay.Fixture, error) {
	recs, err := a.readAll()
	if err != nil {
		return nil, err
	}
	recs = a.dyadRecords(recs)
	if session == "" {
		for _, rec := range recs {
			if rec.Kind == logging.KindBreath {
				session = rec.SessionID
			}
		}
		if session == "" {
			return nil, fmt.Errorf("no breaths recorded for %s", a.cfg.Dyad)
		}
	}
	f, err := replay.FixtureFromRecords(recs, session)
	if err != nil {
		return nil, err
	}
	if f.Config.Lexicon == nil {
		lex := a.cfg.Lexicon
		f.Config.Lexicon = &lex
	}
	return f, nil
}

// #endregion replay
