package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pathMaxHops int

func init() {
	pathCmd.Flags().IntVar(&pathMaxHops, "max-hops", 0, "Maximum number of edges (default: config max_hops)")
	rootCmd.AddCommand(pathCmd)
}

var pathCmd = &cobra.Command{
	Use:   "path <from> <to>",
	Short: "Find the shortest metabolic path between two nodes",
	Long: `Find a minimum-hop path between two nodes following SUBSTRATE_OF and
PRODUCT_OF edges in either direction. Both ends are resolved like 'mkg get'.

Example:
  mkg path D-Glucose kegg:C00022 --max-hops 12`,
	Args: cobra.ExactArgs(2),
	RunE: runPath,
}

func runPath(cmd *cobra.Command, args []string) error {
	kg, cfg, _ := mustOpenKG(cmd)
	defer kg.Close()

	hops := pathMaxHops
	if hops <= 0 {
		hops = cfg.Hops()
	}
	p, err := kg.FindPath(cmd.Context(), args[0], args[1], hops)
	if err != nil {
		exitWithErr(err, "finding path")
	}
	if p == nil {
		exitWithError(ExitNotFound, "no path between %s and %s within %d hops", args[0], args[1], hops)
	}

	if !humanOutput {
		return outputJSON(p)
	}
	fmt.Printf("%d hops\n", p.Hops)
	for i, n := range p.Nodes {
		fmt.Printf("  %-10s %-24s %s\n", n.Kind, n.ID, truncateString(n.Name, DetailNameMaxLen))
		if i < len(p.Edges) {
			e := p.Edges[i]
			fmt.Printf("      %s\n", e.Rel)
		}
	}
	return nil
}
