// Package main provides the mkg CLI entry point.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/matsen/metakg/internal/config"
	"github.com/matsen/metakg/internal/ctxlog"
)

// Version is set at build time via ldflags
var Version = "dev"

// humanOutput controls whether to use human-readable output
var humanOutput bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		// SilenceErrors hides cobra's own errors (unknown flags, bad args).
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mkg",
	Short: "Metabolic pathway knowledge graph and simulator",
	Long: `mkg builds a metabolic knowledge graph (compounds, reactions, enzymes,
pathways) into a local SQLite store, answers graph queries over it, and runs
flux balance, kinetic ODE and what-if simulations.

All commands output JSON by default; pass --human for readable output.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.Version = Version
}

// setup loads .env, then installs a stderr logger at the configured level
// into the command context.
func setup(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: ctxlog.ParseLevel(config.GetLogLevel()),
	}))
	slog.SetDefault(logger)
	cmd.SetContext(ctxlog.WithLogger(cmd.Context(), logger))
	return nil
}
