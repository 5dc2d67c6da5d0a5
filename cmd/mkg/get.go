package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matsen/metakg/internal/model"
	"github.com/matsen/metakg/internal/storage"
)

func init() {
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(compoundCmd)
	rootCmd.AddCommand(reactionCmd)
	rootCmd.AddCommand(resolveCmd)
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Get a single node by id, xref or name",
	Long: `Get a single node. The identifier may be a node id (cpd:kegg:C00031),
an xref shorthand (kegg:C00031) or an exact name (case-insensitive).

Example:
  mkg get kegg:C00031`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

var compoundCmd = &cobra.Command{
	Use:   "compound <id>",
	Short: "Show a compound and the reactions it takes part in",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompound,
}

var reactionCmd = &cobra.Command{
	Use:   "reaction <id>",
	Short: "Show a reaction with its substrates, products and enzymes",
	Args:  cobra.ExactArgs(1),
	RunE:  runReaction,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <query>",
	Short: "Resolve an identifier to a node id",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolve,
}

func runGet(cmd *cobra.Command, args []string) error {
	kg, _, _ := mustOpenKG(cmd)
	defer kg.Close()

	n, err := kg.Node(cmd.Context(), args[0])
	if err != nil {
		exitWithErr(err, "getting node")
	}
	if humanOutput {
		printNodeDetail(*n)
		return nil
	}
	return outputJSON(n)
}

func runCompound(cmd *cobra.Command, args []string) error {
	kg, _, _ := mustOpenKG(cmd)
	defer kg.Close()

	d, err := kg.GetCompound(cmd.Context(), args[0])
	if err != nil {
		exitWithErr(err, "getting compound")
	}
	if !humanOutput {
		return outputJSON(d)
	}
	printNodeDetail(d.Node)
	fmt.Printf("\nReactions (%d):\n", len(d.Reactions))
	for _, r := range d.Reactions {
		fmt.Printf("  %-14s %-24s %s\n", r.Role, r.ID, truncateString(r.Name, DetailNameMaxLen))
	}
	return nil
}

func runReaction(cmd *cobra.Command, args []string) error {
	kg, _, _ := mustOpenKG(cmd)
	defer kg.Close()

	d, err := kg.GetReaction(cmd.Context(), args[0])
	if err != nil {
		exitWithErr(err, "getting reaction")
	}
	if !humanOutput {
		return outputJSON(d)
	}
	printNodeDetail(d.Node)
	fmt.Printf("\nEquation: %s %s %s\n", side(d.Substrates), arrow(d.Node), side(d.Products))
	if len(d.Enzymes) > 0 {
		fmt.Printf("\nEnzymes (%d):\n", len(d.Enzymes))
		for _, e := range d.Enzymes {
			fmt.Printf("  %-10s %-24s %s\n", e.Role, e.ID, truncateString(e.Name, DetailNameMaxLen))
		}
	}
	return nil
}

func runResolve(cmd *cobra.Command, args []string) error {
	kg, _, _ := mustOpenKG(cmd)
	defer kg.Close()

	id, err := kg.Resolve(cmd.Context(), args[0])
	if err != nil {
		exitWithErr(err, "resolving")
	}
	if humanOutput {
		fmt.Println(id)
		return nil
	}
	return outputJSON(map[string]string{"query": args[0], "id": id})
}

func printNodeDetail(n model.Node) {
	fmt.Println(n.ID)
	fmt.Println(strings.Repeat("═", 70))
	fmt.Printf("Kind:     %s\n", n.Kind)
	fmt.Printf("Name:     %s\n", n.Name)
	if n.Formula != "" {
		fmt.Printf("Formula:  %s\n", n.Formula)
	}
	if n.Charge != nil {
		fmt.Printf("Charge:   %d\n", *n.Charge)
	}
	if n.ECNumber != "" {
		fmt.Printf("EC:       %s\n", n.ECNumber)
	}
	if n.Description != "" {
		fmt.Printf("About:    %s\n", n.Description)
	}
	if len(n.Xrefs) > 0 {
		dbs := make([]string, 0, len(n.Xrefs))
		for db := range n.Xrefs {
			dbs = append(dbs, db)
		}
		sort.Strings(dbs)
		refs := make([]string, len(dbs))
		for i, db := range dbs {
			refs[i] = db + ":" + n.Xrefs[db]
		}
		fmt.Printf("Xrefs:    %s\n", strings.Join(refs, ", "))
	}
	if n.SourceFile != "" {
		fmt.Printf("Source:   %s (%s)\n", n.SourceFile, orDash(n.SourceFormat))
	}
}

func side(ps []storage.Participant) string {
	if len(ps) == 0 {
		return "∅"
	}
	terms := make([]string, len(ps))
	for i, p := range ps {
		name := p.Name
		if name == "" {
			name = p.ID
		}
		if p.Stoich != 1 {
			name = fmt.Sprintf("%g %s", p.Stoich, name)
		}
		terms[i] = name
	}
	return strings.Join(terms, " + ")
}

func arrow(n model.Node) string {
	if n.Reversible() {
		return "<=>"
	}
	return "=>"
}
