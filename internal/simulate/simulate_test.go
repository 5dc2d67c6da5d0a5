package simulate

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matsen/metakg/internal/model"
	"github.com/matsen/metakg/internal/ode"
	"github.com/matsen/metakg/internal/storage"
)

var irreversible = &model.Stoichiometry{Direction: model.DirectionIrreversible}

// linearStore holds A -R1-> B -R2-> C with enzyme E catalysing R1, both
// reactions irreversible and grouped in pathway P.
func linearStore(t *testing.T) *storage.DB {
	t.Helper()
	nodes := []model.Node{
		{ID: "cpd:a", Kind: model.KindCompound, Name: "A"},
		{ID: "cpd:b", Kind: model.KindCompound, Name: "B"},
		{ID: "cpd:c", Kind: model.KindCompound, Name: "C"},
		{ID: "rxn:r1", Kind: model.KindReaction, Name: "A to B", Stoichiometry: irreversible},
		{ID: "rxn:r2", Kind: model.KindReaction, Name: "B to C", Stoichiometry: irreversible},
		{ID: "enz:e", Kind: model.KindEnzyme, Name: "E"},
		{ID: "pwy:p", Kind: model.KindPathway, Name: "P"},
	}
	edges := []model.Edge{
		{Src: "cpd:a", Rel: model.RelSubstrateOf, Dst: "rxn:r1"},
		{Src: "rxn:r1", Rel: model.RelProductOf, Dst: "cpd:b"},
		{Src: "cpd:b", Rel: model.RelSubstrateOf, Dst: "rxn:r2"},
		{Src: "rxn:r2", Rel: model.RelProductOf, Dst: "cpd:c"},
		{Src: "enz:e", Rel: model.RelCatalyzes, Dst: "rxn:r1"},
		{Src: "pwy:p", Rel: model.RelContains, Dst: "rxn:r1"},
		{Src: "pwy:p", Rel: model.RelContains, Dst: "rxn:r2"},
	}
	db, err := storage.OpenDB(filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.Write(context.Background(), nodes, edges, true)
	require.NoError(t, err)
	return db
}

func pathwayConfig() Config {
	cfg := DefaultConfig()
	cfg.PathwayID = "pwy:p"
	cfg.TPoints = 51
	return cfg
}

func TestRunFBA_SingleReactionHitsCapacity(t *testing.T) {
	sim := NewSimulator(linearStore(t))
	cfg := DefaultConfig()
	cfg.ReactionIDs = []string{"rxn:r1"}

	res, err := sim.RunFBA(context.Background(), cfg)
	require.NoError(t, err)
	require.Equal(t, StatusOptimal, res.Status, res.Message)
	assert.InDelta(t, 1000, res.Fluxes["rxn:r1"], 1e-6)
	require.NotNil(t, res.Objective)
	assert.InDelta(t, 1000, *res.Objective, 1e-6)
	assert.NotEmpty(t, res.RunID)
	assert.Empty(t, res.ShadowPrices, "both compounds are exchange species")
}

func TestRunFBA_MassBalance(t *testing.T) {
	sim := NewSimulator(linearStore(t))

	res, err := sim.RunFBA(context.Background(), pathwayConfig())
	require.NoError(t, err)
	require.True(t, res.Optimal(), res.Message)
	assert.InDelta(t, res.Fluxes["rxn:r1"], res.Fluxes["rxn:r2"], 1e-6)
	assert.InDelta(t, 1000, res.Fluxes["rxn:r2"], 1e-6)
	assert.InDelta(t, 1000, *res.Objective, 1e-6)
	assert.Contains(t, res.ShadowPrices, "cpd:b")
	assert.NotContains(t, res.ShadowPrices, "cpd:a")
}

func TestRunFBA_NamedObjectiveMinimized(t *testing.T) {
	sim := NewSimulator(linearStore(t))
	cfg := pathwayConfig()
	cfg.ObjectiveReaction = "rxn:r2"
	cfg.Maximize = false

	res, err := sim.RunFBA(context.Background(), cfg)
	require.NoError(t, err)
	require.True(t, res.Optimal())
	assert.InDelta(t, 0, *res.Objective, 1e-9)
}

func TestRunFBA_ClosedSystem(t *testing.T) {
	sim := NewSimulator(linearStore(t))
	cfg := DefaultConfig()
	cfg.ReactionIDs = []string{"rxn:r1"}
	cfg.ClosedSystem = true

	res, err := sim.RunFBA(context.Background(), cfg)
	require.NoError(t, err)
	require.True(t, res.Optimal())
	assert.Equal(t, 0.0, res.Fluxes["rxn:r1"])
	assert.Len(t, res.ShadowPrices, 2)
}

func TestRunFBA_InfeasibleIsAResult(t *testing.T) {
	sim := NewSimulator(linearStore(t))
	cfg := pathwayConfig()
	cfg.FluxBounds = map[string][2]float64{
		"rxn:r1": {5, 5},
		"rxn:r2": {0, 1},
	}

	res, err := sim.RunFBA(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, StatusInfeasible, res.Status)
	assert.Nil(t, res.Objective)
	assert.Empty(t, res.Fluxes)
}

func TestRunFBA_EmptyScope(t *testing.T) {
	sim := NewSimulator(linearStore(t))
	ctx := context.Background()

	cfg := DefaultConfig()
	cfg.ReactionIDs = []string{"rxn:missing"}
	res, err := sim.RunFBA(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Message, "no reactions")

	cfg = DefaultConfig()
	cfg.PathwayID = "pwy:missing"
	res, err = sim.RunFBA(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, StatusError, res.Status)

	ores, err := sim.RunODE(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, StatusError, ores.Status)
}

func TestInvalidConfig(t *testing.T) {
	sim := NewSimulator(linearStore(t))
	ctx := context.Background()

	cfg := pathwayConfig()
	cfg.TPoints = 1
	_, err := sim.RunODE(ctx, cfg)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	cfg = pathwayConfig()
	cfg.FluxBounds = map[string][2]float64{"rxn:r1": {2, 1}}
	_, err = sim.RunFBA(ctx, cfg)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	cfg = pathwayConfig()
	cfg.Method = "euler"
	_, err = sim.RunODE(ctx, cfg)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	_, err = sim.RunWhatIf(ctx, pathwayConfig(), Scenario{Name: "x"}, "steady")
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	_, err = sim.RunWhatIf(ctx, pathwayConfig(), Scenario{}, ModeFBA)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	_, err = sim.RunWhatIf(ctx, pathwayConfig(), Scenario{Name: "x", EnzymeFactors: map[string]float64{"enz:e": -1}}, ModeFBA)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestRunWhatIf_KnockoutCollapsesFlux(t *testing.T) {
	sim := NewSimulator(linearStore(t))

	res, err := sim.RunWhatIf(context.Background(), pathwayConfig(), Scenario{
		Name:            "E knockout",
		EnzymeKnockouts: []string{"enz:e"},
	}, ModeFBA)
	require.NoError(t, err)
	require.True(t, res.OK())
	assert.InDelta(t, 1000, *res.BaselineFBA.Objective, 1e-6)
	assert.InDelta(t, 0, *res.PerturbedFBA.Objective, 1e-9)

	require.Len(t, res.DeltaFluxes, 2)
	assert.Equal(t, "rxn:r1", res.DeltaFluxes[0].ID)
	assert.Equal(t, "rxn:r2", res.DeltaFluxes[1].ID)
	for _, d := range res.DeltaFluxes {
		assert.InDelta(t, -1000, d.Delta, 1e-6, d.ID)
	}
	assert.Empty(t, res.Warnings)
}

func TestRunWhatIf_FactorScalesCapacity(t *testing.T) {
	sim := NewSimulator(linearStore(t))

	res, err := sim.RunWhatIf(context.Background(), pathwayConfig(), Scenario{
		Name:          "half E",
		EnzymeFactors: map[string]float64{"enz:e": 0.5},
	}, ModeFBA)
	require.NoError(t, err)
	assert.InDelta(t, 500, res.PerturbedFBA.Fluxes["rxn:r2"], 1e-6)
}

func TestRunWhatIf_ResolvesScenarioNames(t *testing.T) {
	sim := NewSimulator(linearStore(t))
	cfg := pathwayConfig()
	cfg.PathwayID = "P"

	res, err := sim.RunWhatIf(context.Background(), cfg, Scenario{
		Name:            "knockout by name",
		EnzymeKnockouts: []string{"E"},
	}, ModeFBA)
	require.NoError(t, err)
	require.True(t, res.OK())
	assert.Empty(t, res.Warnings)
	assert.InDelta(t, 1000, *res.BaselineFBA.Objective, 1e-6)
	assert.InDelta(t, 0, *res.PerturbedFBA.Objective, 1e-9)

	res, err = sim.RunWhatIf(context.Background(), cfg, Scenario{
		Name:          "factor by name",
		EnzymeFactors: map[string]float64{"e": 0.25},
	}, ModeFBA)
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	assert.InDelta(t, 250, res.PerturbedFBA.Fluxes["rxn:r2"], 1e-6)
}

func TestRunFBA_ResolvesPathwayName(t *testing.T) {
	sim := NewSimulator(linearStore(t))
	cfg := DefaultConfig()
	cfg.PathwayID = "p"
	cfg.ObjectiveReaction = "B to C"

	res, err := sim.RunFBA(context.Background(), cfg)
	require.NoError(t, err)
	require.True(t, res.Optimal(), res.Message)
	assert.InDelta(t, 1000, *res.Objective, 1e-6)
	assert.Len(t, res.Fluxes, 2)
}

func TestRunWhatIf_ZeroFactorOverUnboundedCapacity(t *testing.T) {
	sim := NewSimulator(linearStore(t))
	cfg := pathwayConfig()
	cfg.FluxBounds = map[string][2]float64{"rxn:r1": {0, math.Inf(1)}}

	res, err := sim.RunWhatIf(context.Background(), cfg, Scenario{
		Name:          "E off",
		EnzymeFactors: map[string]float64{"enz:e": 0},
	}, ModeFBA)
	require.NoError(t, err)
	require.True(t, res.OK(), res.PerturbedFBA.Message)
	require.NotNil(t, res.PerturbedFBA.Objective)
	assert.InDelta(t, 0, *res.PerturbedFBA.Objective, 1e-9)
	for id, v := range res.PerturbedFBA.Fluxes {
		assert.False(t, math.IsNaN(v), id)
		assert.InDelta(t, 0, v, 1e-9, id)
	}
}

func TestRunWhatIf_NoOpScenario(t *testing.T) {
	sim := NewSimulator(linearStore(t))

	res, err := sim.RunWhatIf(context.Background(), pathwayConfig(), Scenario{
		Name:            "ghost",
		EnzymeKnockouts: []string{"enz:ghost"},
	}, ModeFBA)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "enz:ghost")
	for _, d := range res.DeltaFluxes {
		assert.Zero(t, d.Delta)
	}
}

func TestRunODE_DefaultKinetics(t *testing.T) {
	sim := NewSimulator(linearStore(t))
	cfg := pathwayConfig()

	res, err := sim.RunODE(context.Background(), cfg)
	require.NoError(t, err)
	require.True(t, res.OK(), res.Message)
	require.Len(t, res.T, cfg.TPoints)
	assert.Equal(t, 0.0, res.T[0])
	assert.Equal(t, cfg.TEnd, res.T[len(res.T)-1])

	for id, traj := range res.Concentrations {
		require.Len(t, traj, cfg.TPoints, id)
		for _, v := range traj {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), id)
			assert.GreaterOrEqual(t, v, 0.0, id)
		}
	}
	require.NotNil(t, res.MinRawConcentration)
	assert.GreaterOrEqual(t, *res.MinRawConcentration, -cfg.ATol, "integrated states stay non-negative within tolerance")
	a := res.Concentrations["cpd:a"]
	assert.Equal(t, 1.0, a[0])
	assert.Less(t, a[len(a)-1], 0.01)

	total := 0.0
	for _, id := range []string{"cpd:a", "cpd:b", "cpd:c"} {
		v, ok := res.Final(id)
		require.True(t, ok)
		total += v
	}
	assert.InDelta(t, 3, total, 1e-2)
}

func TestRunODE_ExplicitMethod(t *testing.T) {
	sim := NewSimulator(linearStore(t))
	cfg := pathwayConfig()
	cfg.Method = ode.MethodRK45

	res, err := sim.RunODE(context.Background(), cfg)
	require.NoError(t, err)
	require.True(t, res.OK(), res.Message)
	assert.Contains(t, res.Message, ode.MethodRK45)
}

func TestRunODE_VmaxOverrideZeroIsHonoured(t *testing.T) {
	db := linearStore(t)
	ctx := context.Background()
	_, err := db.UpsertKineticParams(ctx, []model.KineticParam{
		{EnzymeID: "enz:e", ReactionID: "rxn:r1", Vmax: model.Float(5), Km: model.Float(0.1)},
	}, false)
	require.NoError(t, err)

	cfg := pathwayConfig()
	cfg.VmaxOverrides = map[string]float64{"rxn:r1": 0}
	res, err := NewSimulator(db).RunODE(ctx, cfg)
	require.NoError(t, err)
	require.True(t, res.OK())
	a, _ := res.Final("cpd:a")
	assert.InDelta(t, 1, a, 1e-9)
}

func TestRunODE_RegulationSlowsInhibitedStep(t *testing.T) {
	db := linearStore(t)
	ctx := context.Background()
	_, err := db.UpsertRegulatoryInteractions(ctx, []model.RegulatoryInteraction{
		{EnzymeID: "enz:e", CompoundID: "cpd:c", InteractionType: model.FeedbackInhibitor, KiAllosteric: model.Float(0.1)},
	}, false)
	require.NoError(t, err)
	sim := NewSimulator(db)

	cfg := pathwayConfig()
	cfg.TEnd = 5
	plain, err := sim.RunODE(ctx, cfg)
	require.NoError(t, err)
	cfg.Regulation = true
	regulated, err := sim.RunODE(ctx, cfg)
	require.NoError(t, err)

	a0, _ := plain.Final("cpd:a")
	a1, _ := regulated.Final("cpd:a")
	assert.Greater(t, a1, a0)
}

func TestRunWhatIf_ODEKnockout(t *testing.T) {
	sim := NewSimulator(linearStore(t))
	cfg := pathwayConfig()
	cfg.TEnd = 10

	res, err := sim.RunWhatIf(context.Background(), cfg, Scenario{
		Name:                 "E knockout",
		EnzymeKnockouts:      []string{"enz:e"},
		InitialConcOverrides: map[string]float64{"cpd:b": 2},
	}, ModeODE)
	require.NoError(t, err)
	require.True(t, res.OK())
	require.Len(t, res.DeltaFinalConc, 3)

	deltas := map[string]Delta{}
	for _, d := range res.DeltaFinalConc {
		deltas[d.ID] = d
	}
	assert.InDelta(t, 1, deltas["cpd:a"].Perturbed, 1e-9)
	assert.Greater(t, deltas["cpd:a"].Delta, 0.0)
	for i := 1; i < len(res.DeltaFinalConc); i++ {
		assert.GreaterOrEqual(t, math.Abs(res.DeltaFinalConc[i-1].Delta), math.Abs(res.DeltaFinalConc[i].Delta))
	}
}

func TestRender(t *testing.T) {
	sim := NewSimulator(linearStore(t))
	ctx := context.Background()
	names := NameFunc(func(id string) string {
		return strings.ToUpper(strings.TrimPrefix(id, "rxn:"))
	})

	fba, err := sim.RunFBA(ctx, pathwayConfig())
	require.NoError(t, err)
	out := RenderFBA(fba, names, 5)
	assert.Contains(t, out, "## FBA Result")
	assert.Contains(t, out, "| R1 | `rxn:r1` | 1000.0000 |")
	assert.Contains(t, out, "### Top Shadow Prices")

	odeRes, err := sim.RunODE(ctx, pathwayConfig())
	require.NoError(t, err)
	out = RenderODE(odeRes, nil, 0)
	assert.Contains(t, out, "### Final Concentrations (t = 100)")
	assert.Contains(t, out, "`cpd:c`")

	wi, err := sim.RunWhatIf(ctx, pathwayConfig(), Scenario{Name: "ko", EnzymeKnockouts: []string{"enz:e"}}, ModeFBA)
	require.NoError(t, err)
	out = RenderWhatIf(wi, names, 0)
	assert.Contains(t, out, "## What-If: ko")
	assert.Contains(t, out, "**Perturbed objective:** 0")
	assert.Contains(t, out, "▼ -1000.0000")

	wi, err = sim.RunWhatIf(ctx, pathwayConfig(), Scenario{Name: "nothing"}, ModeFBA)
	require.NoError(t, err)
	assert.Contains(t, RenderWhatIf(wi, nil, 0), "No changes.")
}
