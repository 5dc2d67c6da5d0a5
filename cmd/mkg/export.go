package main

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export <file.jsonl>",
	Short: "Write the whole graph as canonical JSONL",
	Long: `Write every node and edge to a canonical JSONL file that 'mkg build'
reads back.

Example:
  mkg export snapshot.jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

// ExportResponse is the response for export.
type ExportResponse struct {
	Status string `json:"status"`
	Path   string `json:"path"`
	Nodes  int    `json:"nodes"`
	Edges  int    `json:"edges"`
}

func runExport(cmd *cobra.Command, args []string) error {
	kg, _, _ := mustOpenKG(cmd)
	defer kg.Close()

	nodes, edges, err := kg.Export(cmd.Context(), args[0])
	if err != nil {
		exitWithErr(err, "exporting graph")
	}
	if humanOutput {
		outputHuman("Exported %d nodes and %d edges to %s\n", nodes, edges, args[0])
		return nil
	}
	return outputJSON(ExportResponse{Status: "exported", Path: args[0], Nodes: nodes, Edges: edges})
}
