package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/matsen/metakg/internal/config"
	"github.com/matsen/metakg/internal/metakg"
)

// getStartingDirectory returns METAKG_ROOT if set, else the working directory.
func getStartingDirectory() string {
	if root := os.Getenv(config.EnvRoot); root != "" {
		return config.ExpandPath(root)
	}
	cwd, err := os.Getwd()
	if err != nil {
		exitWithError(ExitError, "getting current directory: %v", err)
	}
	return cwd
}

// mustFindRepository finds the repository and loads its config, exits on error.
func mustFindRepository() (string, *config.Config) {
	root, err := config.FindRepository(getStartingDirectory())
	if err != nil {
		exitWithError(ExitConfigError, "%v (run 'mkg init' first)", err)
	}
	cfg, err := config.Load(root)
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	return root, cfg
}

// mustOpenKG opens the repository's database, exits on error.
// The caller must Close the returned handle.
func mustOpenKG(cmd *cobra.Command) (*metakg.MetaKG, *config.Config, string) {
	root, cfg := mustFindRepository()
	kg, err := metakg.Open(cmd.Context(), metakg.Options{DBPath: cfg.ResolveDBPath(root)})
	if err != nil {
		exitWithError(ExitError, "opening database: %v", err)
	}
	return kg, cfg, root
}
