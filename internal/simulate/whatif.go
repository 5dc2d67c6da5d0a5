package simulate

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/matsen/metakg/internal/ctxlog"
	"github.com/matsen/metakg/internal/stoich"
)

// RunWhatIf runs cfg once as the baseline and once with the scenario
// applied, in "fba" or "ode" mode, and reports per-reaction flux deltas or
// per-compound final concentration deltas. Scenario enzymes are resolved like
// any identifier; those that resolve to nothing or catalyse nothing in scope
// are skipped with a warning.
func (s *Simulator) RunWhatIf(ctx context.Context, cfg Config, sc Scenario, mode string) (*WhatIfResult, error) {
	if mode != ModeFBA && mode != ModeODE {
		return nil, fmt.Errorf("%w: mode must be %q or %q, got %q", ErrInvalidConfig, ModeFBA, ModeODE, mode)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg, err := s.resolveConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if sc, err = s.resolveScenario(ctx, sc); err != nil {
		return nil, err
	}

	res := &WhatIfResult{RunID: uuid.NewString(), Scenario: sc.Name, Mode: mode}
	m, msg, err := s.buildModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if m == nil {
		if mode == ModeFBA {
			empty := &FBAResult{RunID: uuid.NewString(), Status: StatusError, Message: msg,
				Fluxes: map[string]float64{}, ShadowPrices: map[string]float64{}}
			res.BaselineFBA, res.PerturbedFBA = empty, empty
		} else {
			empty := &ODEResult{RunID: uuid.NewString(), Status: StatusError, Message: msg,
				Concentrations: map[string][]float64{}}
			res.BaselineODE, res.PerturbedODE = empty, empty
		}
		return res, nil
	}

	perturbed, warnings := applyScenario(ctx, m, cfg, sc, mode)
	res.Warnings = warnings

	if mode == ModeFBA {
		res.BaselineFBA = s.fba(ctx, m, cfg)
		res.PerturbedFBA = s.fba(ctx, m, perturbed)
		res.DeltaFluxes = fluxDeltas(m, res.BaselineFBA, res.PerturbedFBA)
		return res, nil
	}

	if res.BaselineODE, err = s.ode(ctx, m, cfg); err != nil {
		return nil, err
	}
	if res.PerturbedODE, err = s.ode(ctx, m, perturbed); err != nil {
		return nil, err
	}
	res.DeltaFinalConc = concDeltas(m, res.BaselineODE, res.PerturbedODE)
	return res, nil
}

// applyScenario returns a copy of cfg with the scenario's perturbations.
// In FBA mode a knockout pins the bounds of every catalysed reaction to
// zero and a factor scales the upper bound; in ODE mode a knockout sets
// Vmax to zero and a factor scales it. Concentration overrides only affect
// ODE runs.
func applyScenario(ctx context.Context, m *stoich.Model, cfg Config, sc Scenario, mode string) (Config, []string) {
	log := ctxlog.FromContext(ctx)
	out := cfg.clone()
	var warnings []string

	noop := func(kind, enzyme string) {
		w := fmt.Sprintf("%s of %s has no effect: it catalyses no reaction in scope", kind, enzyme)
		warnings = append(warnings, w)
		log.Warn("what-if perturbation matched nothing", "kind", kind, "enzyme", enzyme)
	}

	for _, enz := range sc.EnzymeKnockouts {
		rxns := m.ReactionsByEnzyme(enz)
		if len(rxns) == 0 {
			noop("knockout", enz)
			continue
		}
		for _, rxn := range rxns {
			if mode == ModeFBA {
				out.FluxBounds[rxn] = [2]float64{0, 0}
			} else {
				out.VmaxOverrides[rxn] = 0
			}
		}
	}

	for _, enz := range sortedKeys(sc.EnzymeFactors) {
		factor := sc.EnzymeFactors[enz]
		rxns := m.ReactionsByEnzyme(enz)
		if len(rxns) == 0 {
			noop("factor", enz)
			continue
		}
		for _, rxn := range rxns {
			if mode == ModeFBA {
				b, ok := out.FluxBounds[rxn]
				if !ok {
					j, _ := m.ReactionIndex(rxn)
					b = [2]float64{m.Lower[j], m.Upper[j]}
				}
				hi := b[1] * factor
				if factor == 0 {
					hi = 0
				}
				out.FluxBounds[rxn] = [2]float64{b[0], hi}
			} else {
				f, ok := out.VmaxFactors[rxn]
				if !ok {
					f = 1
				}
				out.VmaxFactors[rxn] = f * factor
			}
		}
	}

	for id, v := range sc.InitialConcOverrides {
		out.InitialConcentrations[id] = v
	}
	return out, warnings
}

// fluxDeltas compares every reaction of m. A run without an optimum
// contributes zero fluxes.
func fluxDeltas(m *stoich.Model, base, pert *FBAResult) []Delta {
	out := make([]Delta, 0, len(m.Reactions))
	for _, id := range m.Reactions {
		b, p := base.Fluxes[id], pert.Fluxes[id]
		out = append(out, Delta{ID: id, Baseline: b, Perturbed: p, Delta: clean(p - b)})
	}
	sortDeltas(out)
	return out
}

// concDeltas compares the final concentration of every compound of m. A
// failed run contributes zeros.
func concDeltas(m *stoich.Model, base, pert *ODEResult) []Delta {
	out := make([]Delta, 0, len(m.Compounds))
	for _, id := range m.Compounds {
		b, _ := base.Final(id)
		p, _ := pert.Final(id)
		out = append(out, Delta{ID: id, Baseline: b, Perturbed: p, Delta: p - b})
	}
	sortDeltas(out)
	return out
}
