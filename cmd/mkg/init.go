package main

import (
	"github.com/spf13/cobra"

	"github.com/matsen/metakg/internal/config"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new metakg repository",
	Long: `Initialize a new metakg repository in the current directory.

Creates:
  .metakg/
  ├── config.json     # Default config (db_path, data_dirs, max_hops)
  └── cache/          # Database directory (gitignored)

Running init again keeps an existing config.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	root := getStartingDirectory()

	existed := config.IsRepository(root)
	cfg, err := config.Init(root)
	if err != nil {
		exitWithError(ExitError, "initializing repository: %v", err)
	}

	status := "initialized"
	if existed {
		status = "exists"
	}
	if humanOutput {
		outputHuman("Repository %s in %s\n", status, root)
		outputHuman("  database:  %s\n", cfg.ResolveDBPath(root))
		outputHuman("  data dirs: %v\n", cfg.ResolveDataDirs(root))
		return nil
	}
	return outputJSON(StatusResponse{Status: status, Path: root})
}
