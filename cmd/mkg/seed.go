package main

import (
	"github.com/spf13/cobra"
)

var seedForce bool

func init() {
	seedCmd.Flags().BoolVar(&seedForce, "force", false, "Overwrite existing rows")
	rootCmd.AddCommand(seedCmd)
}

var seedCmd = &cobra.Command{
	Use:   "seed-kinetics",
	Short: "Load curated kinetic parameters for reactions in the graph",
	Long: `Write literature Km, Vmax, kcat and equilibrium constants for the
curated KEGG reactions present in the graph (glycolysis, TCA cycle, pentose
phosphate, oxidative phosphorylation, fatty acid degradation, glutathione and
purine metabolism), plus allosteric rules for PFK, PK, HK, CS, IDH and G6PD.

Existing rows are kept unless --force is given.`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	kg, _, _ := mustOpenKG(cmd)
	defer kg.Close()

	res, err := kg.SeedKinetics(cmd.Context(), seedForce)
	if err != nil {
		exitWithErr(err, "seeding kinetics")
	}
	if humanOutput {
		outputHuman("Seeded %d kinetic parameters and %d regulatory interactions\n",
			res.KineticParams, res.RegulatoryInteractions)
		return nil
	}
	return outputJSON(res)
}
