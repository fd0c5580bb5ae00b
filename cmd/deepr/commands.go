package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/deepr/internal/config"
	"github.com/kalambet/deepr/internal/gemini"
	"github.com/kalambet/deepr/internal/research"
)

// newAgent loads configuration and builds the remote research client.
// Overridable in tests.
var newAgent = func() (research.Agent, config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, config.Config{}, err
	}
	return gemini.New(cfg.Gemini.APIKey, cfg.Gemini.BaseURL, cfg.Gemini.Agent), cfg, nil
}

// pollInterval resolves the delay between status checks from config,
// overridden by the command flag when set.
func pollInterval(cmd *cobra.Command, cfg config.Config) time.Duration {
	seconds := cfg.Research.PollInterval
	if cmd.Flags().Changed("poll-interval") {
		seconds, _ = cmd.Flags().GetInt("poll-interval")
	}
	if seconds <= 0 {
		seconds = int(research.DefaultPollInterval / time.Second)
	}
	return time.Duration(seconds) * time.Second
}

// softTimeout resolves the local polling budget from config, overridden
// by the command flag when set.
func softTimeout(cmd *cobra.Command, cfg config.Config) time.Duration {
	if cmd.Flags().Changed("timeout") {
		d, _ := cmd.Flags().GetDuration("timeout")
		if d > 0 {
			return d
		}
	}
	d, err := time.ParseDuration(cfg.Research.SoftTimeout)
	if err != nil || d <= 0 {
		if cfg.Research.SoftTimeout != "" {
			slog.Warn("invalid soft timeout, using default", "value", cfg.Research.SoftTimeout, "default", research.DefaultSoftTimeout)
		}
		return research.DefaultSoftTimeout
	}
	return d
}

// outputDir resolves where reports are written.
func outputDir(cmd *cobra.Command, cfg config.Config) string {
	if cmd.Flags().Changed("output-dir") {
		dir, _ := cmd.Flags().GetString("output-dir")
		return dir
	}
	return cfg.Output.Dir
}

// --- research ---

var researchCmd = &cobra.Command{
	Use:   "research <query>",
	Short: "Run deep research on a topic and save the report",
	Long: `Run deep research on a topic and save the report.

Submits the query to the remote research agent, prints the interaction
ID, and polls until the report is ready or the local time budget runs
out. Stopping the command (Ctrl+C or timeout) never cancels the remote
research; the printed ID stays valid for 'deepr status' and
'deepr fetch-results'.

Examples:
  deepr research "What changed in quantum error correction in 2025?"
  deepr research --poll-interval 30 "Compare distributed tracing approaches"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")

		agent, cfg, err := newAgent()
		if err != nil {
			return err
		}
		setupLogging(cfg.Log.Level)

		interval := pollInterval(cmd, cfg)
		timeout := softTimeout(cmd, cfg)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		printStep("Starting research: %s", query)
		id, err := agent.Submit(ctx, query)
		if err != nil {
			return fmt.Errorf("starting research: %w", err)
		}

		// Print the ID before polling so it survives an interrupt.
		printStatus("Interaction ID", "%s", id)
		printStep("Check progress anytime with: deepr status %s", id)

		poller := research.NewPoller(agent,
			research.WithInterval(interval),
			research.WithSoftTimeout(timeout),
			research.WithOnPoll(func(st research.Status, elapsed time.Duration) {
				if !st.State.Terminal() {
					printStep("Status: %s (elapsed %s, next check in %s)",
						st.State, elapsed.Round(time.Second), interval)
				}
			}),
		)

		outcome, err := poller.Run(ctx, id)
		if err != nil {
			// An interrupt can land while a status request is in
			// flight; treat it like one during sleep.
			if errors.Is(err, context.Canceled) {
				printWarning("Stopped waiting after %s; the research continues remotely.", outcome.Elapsed.Round(time.Second))
				printResumption(id)
				return nil
			}
			return fmt.Errorf("polling research: %w", err)
		}

		switch outcome.Phase {
		case research.PhaseCompleted:
			writer := research.NewWriter(outputDir(cmd, cfg))
			path, err := writer.Write(outcome.Status)
			if err != nil {
				return fmt.Errorf("saving report: %w", err)
			}
			printSuccess("Research completed in %.1f minutes", outcome.Elapsed.Minutes())
			if outcome.Status.Statistics != nil {
				displayStatistics(*outcome.Status.Statistics)
			}
			printStatus("Report", "%s", path)
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil

		case research.PhaseFailed:
			return remoteFailure(outcome.Status)

		case research.PhaseCancelled:
			return fmt.Errorf("research %s was cancelled remotely", id)

		default: // SUSPENDED
			printWarning("Stopped waiting after %s; the research continues remotely.", outcome.Elapsed.Round(time.Second))
			printResumption(id)
			return nil
		}
	},
}

func init() {
	researchCmd.Flags().IntP("poll-interval", "i", 10, "seconds between status checks")
	researchCmd.Flags().Duration("timeout", research.DefaultSoftTimeout, "how long to wait before suspending locally")
	researchCmd.Flags().String("output-dir", "", "directory for research reports")
}

func printResumption(id string) {
	printStep("Check status: deepr status %s", id)
	printStep("Fetch results when done: deepr fetch-results %s", id)
}

func remoteFailure(st research.Status) error {
	if st.ErrorCode != "" || st.ErrorMessage != "" {
		return fmt.Errorf("research failed: %s: %s", st.ErrorCode, st.ErrorMessage)
	}
	return fmt.Errorf("research failed")
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status <id>",
	Short: "Check the state of a research interaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, cfg, err := newAgent()
		if err != nil {
			return err
		}
		setupLogging(cfg.Log.Level)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := research.StatusOf(ctx, agent, args[0])
		if err != nil {
			return fmt.Errorf("checking status: %w", err)
		}

		displayStatus(st)
		switch st.State {
		case research.StateFailed:
			return fmt.Errorf("research %s failed", st.InteractionID)
		case research.StateCancelled:
			return fmt.Errorf("research %s was cancelled remotely", st.InteractionID)
		}
		return nil
	},
}

// --- fetch-results ---

var fetchResultsCmd = &cobra.Command{
	Use:   "fetch-results <id>",
	Short: "Fetch a completed research report and save it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]

		agent, cfg, err := newAgent()
		if err != nil {
			return err
		}
		setupLogging(cfg.Log.Level)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		writer := research.NewWriter(outputDir(cmd, cfg))
		res, err := research.Fetch(ctx, agent, writer, id)

		var nce *research.NotCompletedError
		if errors.As(err, &nce) {
			switch nce.Status.State {
			case research.StateFailed:
				return remoteFailure(nce.Status)
			case research.StateCancelled:
				return fmt.Errorf("research %s was cancelled remotely", id)
			default:
				printWarning("%v", err)
				printStep("Check again later with: deepr status %s", id)
				return nil
			}
		}
		if err != nil {
			return fmt.Errorf("fetching results: %w", err)
		}

		printSuccess("Research results retrieved")
		if res.Statistics != nil {
			displayStatistics(*res.Statistics)
		}
		printStatus("Report", "%s", res.Path)
		fmt.Fprintln(cmd.OutOrStdout(), res.Path)
		return nil
	},
}

func init() {
	fetchResultsCmd.Flags().String("output-dir", "", "directory for research reports")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: fmt.Sprintf(`Set a configuration value in the platform config store.

Valid keys: %s`, strings.Join(config.ValidKeys(), ", ")),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

// --- display helpers ---

func displayStatistics(stats research.Statistics) {
	printStatus("Agent", "%s", stats.Agent)
	printStatus("Report size", "%d words, %d characters, %d lines",
		stats.WordCount, stats.CharCount, stats.LineCount)
}

func displayStatus(st research.Status) {
	printStatus("Interaction ID", "%s", st.InteractionID)
	printStatus("State", "%s", st.State)

	switch st.State {
	case research.StateCompleted:
		if st.Statistics != nil {
			displayStatistics(*st.Statistics)
		}
		printSuccess("Research is complete")
		printStep("Fetch results: deepr fetch-results %s", st.InteractionID)
	case research.StateFailed:
		printError("Error %s: %s", st.ErrorCode, st.ErrorMessage)
	case research.StateCancelled:
		printWarning("Research was cancelled")
	default:
		printStep("Research is still in progress...")
	}
}
