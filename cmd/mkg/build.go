package main

import (
	"github.com/spf13/cobra"
)

var buildWipe bool

func init() {
	buildCmd.Flags().BoolVar(&buildWipe, "wipe", false, "Clear the database before writing")
	rootCmd.AddCommand(buildCmd)
}

var buildCmd = &cobra.Command{
	Use:   "build [path...]",
	Short: "Build the graph from source files",
	Long: `Parse every supported file under the given paths (or the configured
data_dirs when none are given) and write the merged graph to the database.

Files that fail to parse are reported and skipped; the build goes on.

Examples:
  mkg build
  mkg build data/kegg --wipe`,
	RunE: runBuild,
}

func runBuild(cmd *cobra.Command, args []string) error {
	kg, cfg, root := mustOpenKG(cmd)
	defer kg.Close()

	paths := args
	if len(paths) == 0 {
		paths = cfg.ResolveDataDirs(root)
	}
	if len(paths) == 0 {
		exitWithError(ExitConfigError, "no input paths given and no data_dirs configured")
	}

	res, err := kg.Build(cmd.Context(), paths, buildWipe)
	if err != nil {
		exitWithErr(err, "building graph")
	}

	if humanOutput {
		outputHuman("Built %s\n", kg.Path())
		outputHuman("  files:     %d\n", res.Files)
		outputHuman("  nodes:     %d\n", res.Nodes)
		outputHuman("  edges:     %d\n", res.Edges)
		outputHuman("  xref rows: %d\n", res.XrefRows)
		for _, pe := range res.ParseErrors {
			outputHuman("  skipped %s: %s\n", pe.File, pe.Err)
		}
		return nil
	}
	return outputJSON(res)
}
