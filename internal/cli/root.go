// Package cli defines the command-line interface for the coherence tracker.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"

	"github.com/danielpatrickdp/coherence-tracker/internal/config"
	"github.com/danielpatrickdp/coherence-tracker/internal/display"
	"github.com/danielpatrickdp/coherence-tracker/internal/logging"
	"github.com/danielpatrickdp/coherence-tracker/internal/score"
	"github.com/danielpatrickdp/coherence-tracker/internal/storage"
	"github.com/danielpatrickdp/coherence-tracker/internal/tracker"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// All linker flags are set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ErrCheckFailed is returned when validate or replay finds a deviation.
var ErrCheckFailed = errors.New("check failed")

// #region app
// app carries the state shared by every subcommand of one root.
type app struct {
	v      *viper.Viper
	cfg    config.Config
	logger *slog.Logger
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	file, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	raw, err := config.Load(a.v, file)
	if err != nil {
		return err
	}
	cfg, err := config.Process(raw)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = config.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	return nil
}

func (a *app) openStore() (logging.Store, error) {
	store, err := storage.Open(a.cfg.Backend, a.cfg.SinkPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s event store: %w", a.cfg.Backend, err)
	}
	return store, nil
}

func (a *app) printer(w io.Writer) *display.Printer {
	return display.NewPrinter(w, a.cfg.UseColors)
}

func (a *app) trackerConfig(sink logging.Sink) tracker.Config {
	return a.cfg.Tracker(sink, nil, a.logger)
}

// dyadRecords keeps the records of the configured dyad.
func (a *app) dyadRecords(recs []logging.Record) []logging.Record {
	var out []logging.Record
	for _, rec := range recs {
		if rec.Dyad == a.cfg.Dyad {
			out = append(out, rec)
		}
	}
	return out
}

// #endregion app

// #region root
// NewRootCmd builds the command tree with its own viper instance.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:               "coherence",
		Short:             "Track dyad coherence breath by breath.",
		Long:              `Coherence scores each input of a dyad session, blends deep-void recovery toward the calibrated breath pattern, and logs every event.`,
		Version:           version,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "Path to config file")
	flags.String("dyad", config.DefaultDyad, "Dyad name recorded on every event")
	flags.Float64("initial-score", score.DeepVoid, "Coherence at session start")
	flags.Bool("oscillation", true, "Blend deep-void recovery toward the breath pattern")
	flags.Float64("blend-ratio", tracker.DefaultBlendRatio, "Weight of the pattern in a blended score (0-1)")
	flags.String("sink", string(storage.JSONL), "Event store: jsonl or sqlite or badger or memory")
	flags.String("sink-path", "", "Path of the event store (default coherence_log.jsonl, coherence.db or coherence_badger by sink)")
	flags.String("log-level", "info", "Log level: debug or info or warn or error")
	flags.String("color", "yes", "Enable colored output (yes/no/true/false/1/0)")
	flags.String("listen", config.DefaultListen, "gRPC listen address for serve")
	flags.String("metrics-listen", config.DefaultMetrics, "HTTP listen address for /metrics and /api")
	for _, name := range []string{"dyad", "initial-score", "oscillation", "blend-ratio", "sink", "sink-path", "log-level", "color", "listen", "metrics-listen"} {
		if err := a.v.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}

	root.AddCommand(
		a.breatheCmd(),
		a.stateCmd(),
		a.historyCmd(),
		a.validateCmd(),
		a.replayCmd(),
		a.exportCmd(),
		a.serveCmd(),
		a.patternCmd(),
		versionCmd(),
	)
	return root
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// versionCmd shows the verbose version for diagnostic purposes.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of coherence.",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("coherence CLI\n")
			cmd.Printf("  Version: %s\n", version)
			cmd.Printf("  Commit:  %s\n", commit)
			cmd.Printf("  Built:   %s\n", date)
			cmd.Printf("  Runtime: %s\n", runtime.Version())
		},
	}
}

// #endregion root
