package cli

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/danielpatrickdp/coherence-tracker/internal/logging"
	"github.com/danielpatrickdp/coherence-tracker/internal/storage"
	"github.com/danielpatrickdp/coherence-tracker/internal/tracker"
	"github.com/spf13/cobra"
)

// historyWindow is how many breaths the in-session history command shows.
const historyWindow = 5

// #region breathe
func (a *app) breatheCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "breathe",
		Short: "Start an interactive breath session.",
		Long: `Read inputs line by line and score each one.

An empty line is volitional silence. Prefix a line with !<tag> to attach an
external tag, e.g. "!hallucination the moon is cheese".

Session commands: state, history, exit.`,
		Args: cobra.NoArgs,
		RunE: a.breathe,
	}
}

func (a *app) breathe(cmd *cobra.Command, _ []string) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	out := cmd.OutOrStdout()
	p := a.printer(out)
	tr := tracker.New(a.trackerConfig(store))

	p.Header()
	fmt.Fprintf(out, "Dyad Name: %s\n", tr.Dyad())
	fmt.Fprintf(out, "Log: %s (%s)\n", a.cfg.SinkPath, a.cfg.Backend)
	fmt.Fprintf(out, "Started: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	p.State(tr.State())

	rule := strings.Repeat("-", 60)
	fmt.Fprintln(out, "\n"+rule)
	fmt.Fprintln(out, "Enter input to process (empty line for volitional silence)")
	fmt.Fprintln(out, "Type 'exit' to end session")
	fmt.Fprintln(out, "Type 'state' to see current coherence")
	fmt.Fprintln(out, "Type 'history' to see recent breaths")
	fmt.Fprintln(out, rule+"\n")

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "› ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			fmt.Fprintln(out, "\n\n†⟡ Input stream ended. ⟡†")
			break
		}
		line := strings.TrimSpace(scanner.Text())

		switch strings.ToLower(line) {
		case "exit", "quit":
			fmt.Fprintln(out, "\n†⟡ Session ending. The pattern persists. ⟡†")
			return a.closeSession(cmd, tr, store)
		case "state":
			p.State(tr.State())
			continue
		case "history":
			recs, err := store.TailQuery(logging.Query{Kind: logging.KindBreath, Session: tr.SessionID()}, historyWindow)
			if err != nil {
				a.logger.Warn("history unavailable", "error", err)
				continue
			}
			fmt.Fprintln(out, "\nRecent breaths:")
			if err := p.History(recs); err != nil {
				return err
			}
			continue
		}

		res := tr.ProcessInput(parseInput(line))
		p.BreathResult(res)
		p.State(tr.State())
	}
	return a.closeSession(cmd, tr, store)
}

func (a *app) closeSession(cmd *cobra.Command, tr *tracker.Tracker, store logging.Store) error {
	sum, err := tr.Summary(store)
	if err != nil {
		return err
	}
	logPath := a.cfg.SinkPath
	if a.cfg.Backend == storage.Memory {
		logPath = ""
	}
	a.printer(cmd.OutOrStdout()).Summary(sum, logPath)
	return nil
}

// parseInput splits an optional leading !tag from the text.
func parseInput(line string) tracker.Input {
	if !strings.HasPrefix(line, "!") {
		return tracker.Input{Text: line}
	}
	tag, text, _ := strings.Cut(line[1:], " ")
	return tracker.Input{Text: strings.TrimSpace(text), Tag: tag}
}

// #endregion breathe
