package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	verbose     bool
	noColorFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "deepr",
	Short: "Deep research from the command line",
	Long: `deepr submits research queries to the Gemini Deep Research agent,
polls until the report is ready, and saves it as a markdown file.

Research runs take minutes. If you stop waiting, the interaction keeps
running remotely; resume with 'deepr status <id>' and
'deepr fetch-results <id>'.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColorFlag {
			noColor = true
		}
	},
}

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", false, "disable colored output")

	rootCmd.AddCommand(researchCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(fetchResultsCmd)
	rootCmd.AddCommand(configCmd)
}

// setupLogging initializes structured logging. The --verbose flag wins
// over the configured level.
func setupLogging(cfgLevel string) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	} else {
		switch strings.ToLower(cfgLevel) {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "error":
			level = slog.LevelError
		}
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func main() {
	// Merge a local .env into the process environment before any
	// command reads configuration. A missing file is not an error.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
