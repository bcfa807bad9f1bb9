// Package cli defines the Cobra command tree for the dejavu CLI.
package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// version, commit, date are set via -ldflags at build time.
	version = "dev"
	commit  = "unknown"
	date    = "unknown"

	verbose bool
	logger  = zerolog.Nop()
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "dejavu",
	Short: "Adaptive response cache that stops broken-record answers",
	Long: `dejavu groups related exchanges into compressed units and notices when a
new message covers ground already discussed. Instead of a fresh full answer it
returns a pointer to the earlier material, or a short recap when the match is
partial.

Run 'dejavu chat' to try it interactively, or 'dejavu replay <file>' to feed
a transcript through the engine.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute(v, c, d string) {
	version, commit, date = v, c, d
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(
		newChatCmd(),
		newReplayCmd(),
		newWatchCmd(),
		newHistoryCmd(),
		newSavingsCmd(),
		newExportCmd(),
		newPruneCmd(),
		newConfigCmd(),
		newMCPCmd(),
		newVersionCmd(),
	)
}

// setupLogger configures the package logger. Debug wins over level.
func setupLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if verbose {
		lvl = zerolog.DebugLevel
	}
	output := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	logger = zerolog.New(output).Level(lvl).With().Timestamp().Logger()
	return logger
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dejavu %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
