// Package simulate runs flux balance analysis, kinetic ODE simulations and
// what-if perturbation studies over scopes of the metabolic graph.
package simulate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/matsen/metakg/internal/model"
	"github.com/matsen/metakg/internal/stoich"
)

// FBA statuses.
const (
	StatusOptimal    = "optimal"
	StatusInfeasible = "infeasible"
	StatusUnbounded  = "unbounded"
	StatusError      = "error"
)

// ODE statuses; StatusError is shared.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Store is the read access the simulator needs.
type Store interface {
	stoich.Store
	ResolveID(ctx context.Context, userID string) (string, bool, error)
	KineticParamsFor(ctx context.Context, reactionID string) ([]model.KineticParam, error)
	RegulatoryFor(ctx context.Context, enzymeIDs []string) ([]model.RegulatoryInteraction, error)
}

// Simulator runs simulations against a store. It never writes to the store.
type Simulator struct {
	store Store
}

// NewSimulator returns a simulator reading from store.
func NewSimulator(store Store) *Simulator {
	return &Simulator{store: store}
}

// FBAResult is the outcome of a flux balance analysis.
type FBAResult struct {
	RunID     string   `json:"run_id"`
	Status    string   `json:"status"`
	Objective *float64 `json:"objective_value"`
	// Fluxes and ShadowPrices are empty unless Status is optimal.
	Fluxes       map[string]float64 `json:"fluxes"`
	ShadowPrices map[string]float64 `json:"shadow_prices"`
	Message      string             `json:"message"`
	Skipped      []string           `json:"skipped,omitempty"`
}

// Optimal reports whether the solve reached an optimum.
func (r *FBAResult) Optimal() bool { return r.Status == StatusOptimal }

// ODEResult is the outcome of a kinetic simulation.
type ODEResult struct {
	RunID  string    `json:"run_id"`
	Status string    `json:"status"`
	T      []float64 `json:"t"`
	// Concentrations maps a compound id to its trajectory over T.
	Concentrations map[string][]float64 `json:"concentrations"`
	Message        string               `json:"message"`
	Steps          int                  `json:"steps,omitempty"`
	Skipped        []string             `json:"skipped,omitempty"`

	// MinRawConcentration is the smallest integrated value before clamping
	// at zero; Clamped counts the samples that were negative.
	MinRawConcentration *float64 `json:"min_raw_concentration,omitempty"`
	Clamped             int      `json:"clamped_samples,omitempty"`
}

// OK reports whether the integration completed.
func (r *ODEResult) OK() bool { return r.Status == StatusOK }

// Final returns the last sampled concentration of a compound.
func (r *ODEResult) Final(compoundID string) (float64, bool) {
	traj := r.Concentrations[compoundID]
	if len(traj) == 0 {
		return 0, false
	}
	return traj[len(traj)-1], true
}

// Delta is the change of one flux or final concentration.
type Delta struct {
	ID        string  `json:"id"`
	Baseline  float64 `json:"baseline"`
	Perturbed float64 `json:"perturbed"`
	Delta     float64 `json:"delta"`
}

// WhatIfResult compares a baseline run with a perturbed one.
type WhatIfResult struct {
	RunID    string `json:"run_id"`
	Scenario string `json:"scenario"`
	Mode     string `json:"mode"`

	BaselineFBA  *FBAResult `json:"baseline_fba,omitempty"`
	PerturbedFBA *FBAResult `json:"perturbed_fba,omitempty"`
	BaselineODE  *ODEResult `json:"baseline_ode,omitempty"`
	PerturbedODE *ODEResult `json:"perturbed_ode,omitempty"`

	// Deltas are sorted by decreasing magnitude, ties by id.
	DeltaFluxes    []Delta `json:"delta_fluxes,omitempty"`
	DeltaFinalConc []Delta `json:"delta_final_conc,omitempty"`

	// Warnings lists perturbations that matched nothing in scope.
	Warnings []string `json:"warnings,omitempty"`
}

// OK reports whether both runs succeeded.
func (r *WhatIfResult) OK() bool {
	if r.Mode == ModeFBA {
		return r.BaselineFBA.Optimal() && r.PerturbedFBA.Optimal()
	}
	return r.BaselineODE.OK() && r.PerturbedODE.OK()
}

// buildModel assembles the stoichiometric model of cfg's scope. A missing
// pathway comes back as a message rather than an error.
func (s *Simulator) buildModel(ctx context.Context, cfg Config) (*stoich.Model, string, error) {
	m, err := stoich.Build(ctx, s.store, stoich.Scope{PathwayID: cfg.PathwayID, ReactionIDs: cfg.ReactionIDs})
	if errors.Is(err, stoich.ErrPathwayNotFound) {
		return nil, err.Error(), nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("building stoichiometric model: %w", err)
	}
	if m.Empty() {
		return nil, "no reactions found for the given configuration", nil
	}
	return m, "", nil
}

// RunFBA solves the flux balance problem of cfg. Node references in cfg may
// be ids, "<db>:<ext>" shorthands or names. Infeasible, unbounded and
// failed solves are reported in the result; the error is non-nil only for an
// invalid config or a store failure.
func (s *Simulator) RunFBA(ctx context.Context, cfg Config) (*FBAResult, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg, err := s.resolveConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	m, msg, err := s.buildModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return &FBAResult{RunID: uuid.NewString(), Status: StatusError, Message: msg,
			Fluxes: map[string]float64{}, ShadowPrices: map[string]float64{}}, nil
	}
	return s.fba(ctx, m, cfg), nil
}

// RunODE integrates the kinetic model of cfg. Integrator failures are
// reported in the result; the error is non-nil only for an invalid config or
// a store failure.
func (s *Simulator) RunODE(ctx context.Context, cfg Config) (*ODEResult, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg, err := s.resolveConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	m, msg, err := s.buildModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return &ODEResult{RunID: uuid.NewString(), Status: StatusError, Message: msg,
			Concentrations: map[string][]float64{}}, nil
	}
	return s.ode(ctx, m, cfg)
}

// sortDeltas orders by decreasing magnitude, ties by id.
func sortDeltas(ds []Delta) {
	sort.Slice(ds, func(i, j int) bool {
		ai, aj := math.Abs(ds[i].Delta), math.Abs(ds[j].Delta)
		if ai != aj {
			return ai > aj
		}
		return ds[i].ID < ds[j].ID
	})
}
