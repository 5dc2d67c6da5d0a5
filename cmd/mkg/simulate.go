package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/matsen/metakg/internal/config"
	"github.com/matsen/metakg/internal/metakg"
	"github.com/matsen/metakg/internal/scenario"
	"github.com/matsen/metakg/internal/simulate"
)

// simFlags holds the flags shared by fba, ode and whatif.
type simFlags struct {
	pathway     string
	reactions   []string
	top         int
	objective   string
	minimize    bool
	bounds      []string
	closed      bool
	tEnd        float64
	points      int
	method      string
	rtol        float64
	atol        float64
	maxStep     float64
	defaultConc float64
	conc        []string
	vmax        []string
	regulation  bool

	// whatif only
	scenarioFile string
	scenarioName string
	mode         string
	knockouts    []string
	factors      []string
	setConc      []string
}

var sim simFlags

func init() {
	for _, c := range []*cobra.Command{fbaCmd, odeCmd, whatifCmd} {
		f := c.Flags()
		f.StringVar(&sim.pathway, "pathway", "", "Pathway whose reactions are simulated (id, xref or name)")
		f.StringSliceVar(&sim.reactions, "reaction", nil, "Explicit reaction ids (overrides --pathway)")
		f.IntVar(&sim.top, "top", simulate.DefaultTopN, "Rows per table in --human output")
	}
	for _, c := range []*cobra.Command{fbaCmd, whatifCmd} {
		f := c.Flags()
		f.StringVar(&sim.objective, "objective", "", "Reaction to optimise (default: mean forward flux)")
		f.BoolVar(&sim.minimize, "minimize", false, "Minimise instead of maximise")
		f.StringSliceVar(&sim.bounds, "bound", nil, "Flux bounds as rxn=lo:hi")
		f.BoolVar(&sim.closed, "closed", false, "Balance every compound, including boundary species")
	}
	for _, c := range []*cobra.Command{odeCmd, whatifCmd} {
		f := c.Flags()
		f.Float64Var(&sim.tEnd, "t-end", 0, "End time (default 100)")
		f.IntVar(&sim.points, "points", 0, "Number of output time points (default 500)")
		f.StringVar(&sim.method, "method", "", "Integrator: bdf (stiff, default) or rk45")
		f.Float64Var(&sim.rtol, "rtol", 0, "Relative tolerance")
		f.Float64Var(&sim.atol, "atol", 0, "Absolute tolerance")
		f.Float64Var(&sim.maxStep, "max-step", 0, "Largest integrator step (default t-end/50)")
		f.Float64Var(&sim.defaultConc, "default-conc", 0, "Initial concentration of unlisted compounds (mM)")
		f.StringSliceVar(&sim.conc, "conc", nil, "Initial concentrations as cpd=value")
		f.StringSliceVar(&sim.vmax, "vmax", nil, "Vmax overrides as rxn=value")
		f.BoolVar(&sim.regulation, "regulation", false, "Apply allosteric regulation")
	}

	f := whatifCmd.Flags()
	f.StringVar(&sim.scenarioFile, "scenario", "", "Scenario file (.json, .yaml, .yml or .hcl)")
	f.StringVar(&sim.scenarioName, "name", "", "Scenario to run from the file")
	f.StringVar(&sim.mode, "mode", simulate.ModeFBA, "Simulation mode: fba or ode")
	f.StringSliceVar(&sim.knockouts, "knockout", nil, "Enzymes to knock out")
	f.StringSliceVar(&sim.factors, "factor", nil, "Enzyme activity factors as enz=value")
	f.StringSliceVar(&sim.setConc, "set-conc", nil, "Initial concentration overrides as cpd=value")

	rootCmd.AddCommand(fbaCmd)
	rootCmd.AddCommand(odeCmd)
	rootCmd.AddCommand(whatifCmd)
}

var fbaCmd = &cobra.Command{
	Use:   "fba",
	Short: "Run flux balance analysis",
	Long: `Solve for steady-state fluxes (S·v = 0) that optimise an objective
within each reaction's bounds, and report the shadow price of every balanced
compound.

Examples:
  mkg fba --pathway "Glycolysis / Gluconeogenesis" --human
  mkg fba --pathway pwy:kegg:hsa00010 --objective rxn:kegg:R00200 --bound rxn:kegg:R00299=0:10`,
	Args: cobra.NoArgs,
	RunE: runFBA,
}

var odeCmd = &cobra.Command{
	Use:   "ode",
	Short: "Integrate Michaelis-Menten kinetics over time",
	Long: `Integrate d[C]/dt = S·v(C) with stored (or default) kinetic parameters.
The default integrator is implicit and handles stiff systems.

Example:
  mkg ode --pathway pwy:kegg:hsa00010 --t-end 50 --conc cpd:kegg:C00031=5 --human`,
	Args: cobra.NoArgs,
	RunE: runODE,
}

var whatifCmd = &cobra.Command{
	Use:   "whatif",
	Short: "Compare a baseline simulation with a perturbed one",
	Long: `Run the baseline and a perturbation scenario (enzyme knockouts, activity
factors, initial concentration overrides) and report the differences.

The scenario comes from --scenario (JSON, YAML or HCL) or from inline flags.

Examples:
  mkg whatif --pathway pwy:kegg:hsa00010 --knockout enz:kegg:hsa:5211
  mkg whatif --pathway pwy:kegg:hsa00010 --scenario scenarios.hcl --name pfk_down --mode ode`,
	Args: cobra.NoArgs,
	RunE: runWhatIf,
}

func runFBA(cmd *cobra.Command, args []string) error {
	kg, _, _ := mustOpenKG(cmd)
	defer kg.Close()
	ctx := cmd.Context()

	cfg, err := buildSimConfig(ctx, kg, cmd.Flags())
	if err != nil {
		exitWithErr(err, "configuring simulation")
	}
	res, err := kg.Simulator().RunFBA(ctx, cfg)
	if err != nil {
		exitWithErr(err, "running fba")
	}

	if humanOutput {
		fmt.Print(simulate.RenderFBA(res, kg.Names(ctx), sim.top))
	} else {
		outputJSON(res)
	}
	exitUnless(res.Optimal())
	return nil
}

func runODE(cmd *cobra.Command, args []string) error {
	kg, _, _ := mustOpenKG(cmd)
	defer kg.Close()
	ctx := cmd.Context()

	cfg, err := buildSimConfig(ctx, kg, cmd.Flags())
	if err != nil {
		exitWithErr(err, "configuring simulation")
	}
	res, err := kg.Simulator().RunODE(ctx, cfg)
	if err != nil {
		exitWithErr(err, "running ode")
	}

	if humanOutput {
		fmt.Print(simulate.RenderODE(res, kg.Names(ctx), sim.top))
	} else {
		outputJSON(res)
	}
	exitUnless(res.OK())
	return nil
}

func runWhatIf(cmd *cobra.Command, args []string) error {
	kg, _, _ := mustOpenKG(cmd)
	defer kg.Close()
	ctx := cmd.Context()

	cfg, err := buildSimConfig(ctx, kg, cmd.Flags())
	if err != nil {
		exitWithErr(err, "configuring simulation")
	}
	sc, err := loadScenario()
	if err != nil {
		exitWithErr(err, "loading scenario")
	}
	res, err := kg.Simulator().RunWhatIf(ctx, cfg, sc, strings.ToLower(sim.mode))
	if err != nil {
		exitWithErr(err, "running what-if")
	}

	if humanOutput {
		fmt.Print(simulate.RenderWhatIf(res, kg.Names(ctx), sim.top))
	} else {
		outputJSON(res)
	}
	exitUnless(res.OK())
	return nil
}

// exitUnless exits with ExitSimFailed when a simulation did not succeed.
// The result has already been printed.
func exitUnless(ok bool) {
	if !ok {
		os.Exit(ExitSimFailed)
	}
}

// buildSimConfig layers the global simulation defaults, then explicit flags,
// over simulate.DefaultConfig. The pathway is resolved like any identifier.
func buildSimConfig(ctx context.Context, kg *metakg.MetaKG, flags *pflag.FlagSet) (simulate.Config, error) {
	cfg := simulate.DefaultConfig()
	applySimulationDefaults(&cfg, config.GetSimulationDefaults())

	if sim.pathway != "" {
		id, err := kg.Resolve(ctx, sim.pathway)
		if err != nil {
			return cfg, err
		}
		cfg.PathwayID = id
	}
	cfg.ReactionIDs = sim.reactions

	if err := applySimFlags(&cfg, flags); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applySimulationDefaults copies the nonzero global settings into cfg.
func applySimulationDefaults(cfg *simulate.Config, d config.SimulationDefaults) {
	if d.TEnd > 0 {
		cfg.TEnd = d.TEnd
	}
	if d.TPoints > 0 {
		cfg.TPoints = d.TPoints
	}
	if d.DefaultConcentration > 0 {
		cfg.DefaultConcentration = d.DefaultConcentration
	}
	if d.Method != "" {
		cfg.Method = d.Method
	}
	if d.RTol > 0 {
		cfg.RTol = d.RTol
	}
	if d.ATol > 0 {
		cfg.ATol = d.ATol
	}
	if d.MaxStep > 0 {
		cfg.MaxStep = d.MaxStep
	}
}

// applySimFlags applies only the flags the user set.
func applySimFlags(cfg *simulate.Config, flags *pflag.FlagSet) error {
	changed := func(name string) bool {
		f := flags.Lookup(name)
		return f != nil && f.Changed
	}

	if changed("objective") {
		cfg.ObjectiveReaction = sim.objective
	}
	if changed("minimize") {
		cfg.Maximize = !sim.minimize
	}
	if changed("closed") {
		cfg.ClosedSystem = sim.closed
	}
	if changed("bound") {
		bounds, err := parseBounds(sim.bounds)
		if err != nil {
			return err
		}
		cfg.FluxBounds = bounds
	}
	if changed("t-end") {
		cfg.TEnd = sim.tEnd
	}
	if changed("points") {
		cfg.TPoints = sim.points
	}
	if changed("method") {
		cfg.Method = strings.ToLower(sim.method)
	}
	if changed("rtol") {
		cfg.RTol = sim.rtol
	}
	if changed("atol") {
		cfg.ATol = sim.atol
	}
	if changed("max-step") {
		cfg.MaxStep = sim.maxStep
	}
	if changed("default-conc") {
		cfg.DefaultConcentration = sim.defaultConc
	}
	if changed("regulation") {
		cfg.Regulation = sim.regulation
	}
	if changed("conc") {
		m, err := parseAssignments("conc", sim.conc)
		if err != nil {
			return err
		}
		cfg.InitialConcentrations = m
	}
	if changed("vmax") {
		m, err := parseAssignments("vmax", sim.vmax)
		if err != nil {
			return err
		}
		cfg.VmaxOverrides = m
	}
	return nil
}

// loadScenario reads --scenario, or assembles one from the inline flags.
func loadScenario() (simulate.Scenario, error) {
	if sim.scenarioFile != "" {
		scenarios, err := scenario.Load(config.ExpandPath(sim.scenarioFile))
		if err != nil {
			return simulate.Scenario{}, err
		}
		return scenario.Select(scenarios, sim.scenarioName)
	}

	sc := simulate.Scenario{Name: sim.scenarioName, EnzymeKnockouts: sim.knockouts}
	if sc.Name == "" {
		sc.Name = "cli"
	}
	var err error
	if sc.EnzymeFactors, err = parseAssignments("factor", sim.factors); err != nil {
		return sc, err
	}
	if sc.InitialConcOverrides, err = parseAssignments("set-conc", sim.setConc); err != nil {
		return sc, err
	}
	if len(sc.EnzymeKnockouts) == 0 && len(sc.EnzymeFactors) == 0 && len(sc.InitialConcOverrides) == 0 {
		return sc, fmt.Errorf("%w: give --scenario or at least one of --knockout, --factor, --set-conc", simulate.ErrInvalidConfig)
	}
	return sc, nil
}

// parseAssignments parses id=value pairs. Returns nil for no pairs.
func parseAssignments(flag string, pairs []string) (map[string]float64, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]float64, len(pairs))
	for _, p := range pairs {
		id, val, ok := strings.Cut(p, "=")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return nil, fmt.Errorf("%w: --%s expects id=value, got %q", simulate.ErrInvalidConfig, flag, p)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: --%s %s: %v", simulate.ErrInvalidConfig, flag, id, err)
		}
		out[id] = v
	}
	return out, nil
}

// parseBounds parses rxn=lo:hi pairs; an empty side is unbounded.
func parseBounds(pairs []string) (map[string][2]float64, error) {
	out := make(map[string][2]float64, len(pairs))
	for _, p := range pairs {
		id, rng, ok := strings.Cut(p, "=")
		lo, hi, ok2 := strings.Cut(rng, ":")
		id = strings.TrimSpace(id)
		if !ok || !ok2 || id == "" {
			return nil, fmt.Errorf("%w: --bound expects rxn=lo:hi, got %q", simulate.ErrInvalidConfig, p)
		}
		l, err := parseBound(lo, math.Inf(-1))
		if err != nil {
			return nil, fmt.Errorf("%w: --bound %s: %v", simulate.ErrInvalidConfig, id, err)
		}
		h, err := parseBound(hi, math.Inf(1))
		if err != nil {
			return nil, fmt.Errorf("%w: --bound %s: %v", simulate.ErrInvalidConfig, id, err)
		}
		out[id] = [2]float64{l, h}
	}
	return out, nil
}

func parseBound(s string, empty float64) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return empty, nil
	}
	return strconv.ParseFloat(s, 64)
}
