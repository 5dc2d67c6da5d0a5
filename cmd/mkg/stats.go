package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/matsen/metakg/internal/analyze"
	"github.com/matsen/metakg/internal/model"
)

var analyzeTopN int

func init() {
	analyzeCmd.Flags().IntVar(&analyzeTopN, "top", analyze.DefaultTopN, "Rows per ranked list")
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(analyzeCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show node and edge counts",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Report hub metabolites, dead ends, top enzymes and pathway profiles",
	Long: `Analyse the topology of the stored graph.

The report ranks hub metabolites (compounds in the most reactions), complex
reactions (most participants), compounds shared between pathways and the
enzymes catalysing the most reactions, and lists dead-end metabolites and
isolated nodes. --human prints Markdown.`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

func runStats(cmd *cobra.Command, args []string) error {
	kg, _, _ := mustOpenKG(cmd)
	defer kg.Close()

	s, err := kg.Stats(cmd.Context())
	if err != nil {
		exitWithErr(err, "reading stats")
	}
	if !humanOutput {
		return outputJSON(s)
	}

	fmt.Printf("Database: %s\n\n", kg.Path())
	fmt.Printf("Nodes: %d\n", s.TotalNodes)
	for _, k := range model.Kinds {
		fmt.Printf("  %-10s %d\n", k, s.NodeCounts[string(k)])
	}
	fmt.Printf("Edges: %d\n", s.TotalEdges)
	rels := make([]string, 0, len(s.EdgeCounts))
	for rel := range s.EdgeCounts {
		rels = append(rels, rel)
	}
	sort.Strings(rels)
	for _, rel := range rels {
		fmt.Printf("  %-14s %d\n", rel, s.EdgeCounts[rel])
	}
	fmt.Printf("Xref rows:               %d\n", s.XrefRows)
	fmt.Printf("Kinetic parameters:      %d\n", s.KineticParams)
	fmt.Printf("Regulatory interactions: %d\n", s.RegulatoryInteractions)
	return nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	kg, _, _ := mustOpenKG(cmd)
	defer kg.Close()

	r, err := kg.Analyze(cmd.Context(), analyzeTopN)
	if err != nil {
		exitWithErr(err, "analyzing graph")
	}
	if humanOutput {
		fmt.Print(analyze.Render(r))
		return nil
	}
	return outputJSON(r)
}
