package simulate

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/matsen/metakg/internal/ctxlog"
	"github.com/matsen/metakg/internal/lp"
	"github.com/matsen/metakg/internal/stoich"
)

// fluxEpsilon is the magnitude below which reported fluxes are zero.
const fluxEpsilon = 1e-9

// fba builds and solves
//
//	optimize c.v  subject to  S_b v = 0,  lb <= v <= ub
//
// where S_b holds the balanced rows of S: every compound under
// ClosedSystem, otherwise only compounds both consumed and produced in
// scope. Solver failures and panics become StatusError.
func (s *Simulator) fba(ctx context.Context, m *stoich.Model, cfg Config) (res *FBAResult) {
	log := ctxlog.FromContext(ctx)
	res = &FBAResult{
		RunID:        uuid.NewString(),
		Fluxes:       map[string]float64{},
		ShadowPrices: map[string]float64{},
		Skipped:      m.Skipped,
	}
	defer func() {
		if r := recover(); r != nil {
			res.Status = StatusError
			res.Message = fmt.Sprintf("solver panic: %v", r)
			res.Objective = nil
			res.Fluxes = map[string]float64{}
			res.ShadowPrices = map[string]float64{}
			log.Warn("fba solver panic", "error", r)
		}
	}()

	n := len(m.Reactions)
	lower := append([]float64(nil), m.Lower...)
	upper := append([]float64(nil), m.Upper...)
	for j, id := range m.Reactions {
		if b, ok := cfg.FluxBounds[id]; ok {
			lower[j], upper[j] = b[0], b[1]
		}
	}

	c := make([]float64, n)
	if j, ok := m.ReactionIndex(cfg.ObjectiveReaction); ok && cfg.ObjectiveReaction != "" {
		c[j] = 1
	} else {
		if cfg.ObjectiveReaction != "" {
			log.Warn("objective reaction not in scope, using total irreversible flux", "reaction", cfg.ObjectiveReaction)
		}
		for j := range c {
			if lower[j] >= 0 {
				c[j] = 1 / float64(n)
			}
		}
	}

	var rows []int
	for i := range m.Compounds {
		if cfg.ClosedSystem || !m.Boundary[i] {
			rows = append(rows, i)
		}
	}
	p := lp.Problem{C: c, Lower: lower, Upper: upper, Maximize: cfg.Maximize}
	if len(rows) > 0 {
		p.Aeq = mat.NewDense(len(rows), n, nil)
		p.Beq = make([]float64, len(rows))
		for r, i := range rows {
			for j := 0; j < n; j++ {
				p.Aeq.Set(r, j, m.Coefficient(i, j))
			}
		}
	}

	sol, err := lp.Solve(ctx, p, lp.Settings{})
	if err != nil {
		res.Status = StatusError
		res.Message = fmt.Sprintf("solver failed: %v", err)
		log.Warn("fba solve failed", "error", err)
		return res
	}
	res.Status = string(sol.Status)
	if sol.Status != lp.StatusOptimal {
		res.Message = sol.Message
		log.Warn("fba did not reach optimum", "status", sol.Status, "message", sol.Message)
		return res
	}

	for j, id := range m.Reactions {
		res.Fluxes[id] = clean(sol.X[j])
	}
	for r, i := range rows {
		res.ShadowPrices[m.Compounds[i]] = clean(sol.Dual[r])
	}
	obj := clean(sol.Objective)
	res.Objective = &obj
	res.Message = fmt.Sprintf("Optimal. Objective = %.6g (%d reactions, %d balanced compounds)", obj, n, len(rows))
	return res
}

func clean(v float64) float64 {
	if math.Abs(v) < fluxEpsilon {
		return 0
	}
	return v
}
