package simulate

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/matsen/metakg/internal/ctxlog"
	"github.com/matsen/metakg/internal/kinetics"
	"github.com/matsen/metakg/internal/model"
	"github.com/matsen/metakg/internal/ode"
	"github.com/matsen/metakg/internal/stoich"
)

// laws assigns a rate law to every reaction of m from stored parameters,
// then applies the Vmax overrides and factors of cfg, and, when enabled,
// the regulatory interactions of the catalysing enzymes.
func (s *Simulator) laws(ctx context.Context, m *stoich.Model, cfg Config) ([]kinetics.Law, error) {
	var regs []model.RegulatoryInteraction
	if cfg.Regulation {
		var enzymes []string
		seen := map[string]bool{}
		for _, rxn := range m.Reactions {
			for _, e := range m.Enzymes[rxn] {
				if !seen[e] {
					seen[e] = true
					enzymes = append(enzymes, e)
				}
			}
		}
		var err error
		if regs, err = s.store.RegulatoryFor(ctx, enzymes); err != nil {
			return nil, fmt.Errorf("loading regulatory interactions: %w", err)
		}
	}

	laws := make([]kinetics.Law, len(m.Reactions))
	for j, id := range m.Reactions {
		rows, err := s.store.KineticParamsFor(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading kinetic parameters of %s: %w", id, err)
		}
		p := kinetics.Resolve(rows)
		if v, ok := cfg.VmaxOverrides[id]; ok {
			p.Vmax = v
		}
		if f, ok := cfg.VmaxFactors[id]; ok {
			p.Vmax *= f
		}
		laws[j] = kinetics.NewLaw(m, j, p)
		if cfg.Regulation {
			laws[j].Modifiers = kinetics.Modifiers(m, j, regs)
		}
	}
	return laws, nil
}

// ode integrates d[C]/dt = S v(C) over [0, TEnd] on TPoints evenly spaced
// samples. Reported concentrations are clamped at zero; the raw minimum and
// the number of clamped samples are kept in the result.
func (s *Simulator) ode(ctx context.Context, m *stoich.Model, cfg Config) (res *ODEResult, err error) {
	log := ctxlog.FromContext(ctx)
	res = &ODEResult{
		RunID:          uuid.NewString(),
		Concentrations: map[string][]float64{},
		Skipped:        m.Skipped,
	}

	laws, err := s.laws(ctx, m, cfg)
	if err != nil {
		return nil, err
	}

	y0 := make([]float64, len(m.Compounds))
	for i, id := range m.Compounds {
		y0[i] = cfg.DefaultConcentration
		if v, ok := cfg.InitialConcentrations[id]; ok {
			y0[i] = v
		}
	}
	times := make([]float64, cfg.TPoints)
	for k := range times {
		times[k] = cfg.TEnd * float64(k) / float64(cfg.TPoints-1)
	}
	maxStep := cfg.MaxStep
	if maxStep == 0 {
		maxStep = cfg.TEnd / 50
	}

	defer func() {
		if r := recover(); r != nil {
			res = &ODEResult{
				RunID:          res.RunID,
				Status:         StatusError,
				Concentrations: map[string][]float64{},
				Message:        fmt.Sprintf("integrator panic: %v", r),
			}
			err = nil
			log.Warn("ode integrator panic", "error", r)
		}
	}()

	sol, serr := ode.Solve(ctx, kinetics.System(laws), y0, times, ode.Options{
		Method:  cfg.Method,
		RTol:    cfg.RTol,
		ATol:    cfg.ATol,
		MaxStep: maxStep,
	})
	if serr != nil {
		res.Status = StatusFailed
		if errors.Is(serr, ode.ErrUnknownMethod) || errors.Is(serr, ode.ErrInvalidInput) {
			res.Status = StatusError
		}
		res.Message = fmt.Sprintf("integration did not converge: %v", serr)
		log.Warn("ode integration failed", "error", serr)
		return res, nil
	}

	res.Status = StatusOK
	res.T = sol.T
	res.Steps = sol.Steps
	minRaw := math.Inf(1)
	for i, id := range m.Compounds {
		traj := sol.Column(i)
		for k, v := range traj {
			minRaw = math.Min(minRaw, v)
			if v < 0 {
				res.Clamped++
				traj[k] = 0
			}
		}
		res.Concentrations[id] = traj
	}
	if len(m.Compounds) > 0 {
		res.MinRawConcentration = &minRaw
	}
	if res.Clamped > 0 {
		log.Info("clamped negative concentrations", "samples", res.Clamped, "min", minRaw)
	}
	res.Message = fmt.Sprintf("Integration OK. t=[0, %g], %d time points, %d compounds, %d reactions, %d steps (%s).",
		cfg.TEnd, len(sol.T), len(m.Compounds), len(m.Reactions), sol.Steps, sol.Method)
	return res, nil
}
