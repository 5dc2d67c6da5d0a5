// Package lp solves bounded linear programs with equality constraints using a
// dense two-phase simplex method, reporting dual values for the equalities.
package lp

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Status is the outcome of a solve.
type Status string

const (
	StatusOptimal    Status = "optimal"
	StatusInfeasible Status = "infeasible"
	StatusUnbounded  Status = "unbounded"
	StatusError      Status = "error"
)

// ErrShape is returned when the dimensions of a problem disagree.
var ErrShape = errors.New("lp: dimension mismatch")

// Problem is
//
//	optimize  c·x
//	subject to Aeq·x = beq, lower <= x <= upper
//
// Bounds may be infinite. A nil Aeq means there are no equality rows.
type Problem struct {
	C        []float64
	Aeq      *mat.Dense
	Beq      []float64
	Lower    []float64
	Upper    []float64
	Maximize bool
}

// Settings tune the solver. Zero values select defaults.
type Settings struct {
	Tolerance     float64
	MaxIterations int
}

const (
	defaultTolerance = 1e-9
	defaultMaxIter   = 50000
)

// Solution is the result of a solve. X, Objective and Dual are only
// meaningful when Status is StatusOptimal.
type Solution struct {
	Status    Status
	X         []float64
	Objective float64

	// Dual[i] is the rate of change of Objective with respect to Beq[i].
	Dual []float64

	Iterations int
	Message    string
}

// column records how an original variable maps onto nonnegative tableau columns.
type column struct {
	kind   int // 0: x = lo + z, 1: x = hi - z, 2: x = z+ - z-
	first  int
	second int
	offset float64
}

// Solve runs phase one to find a feasible basis and phase two to optimize.
// Infeasible and unbounded problems are reported through Status; an error is
// returned only for malformed input or a cancelled context.
func Solve(ctx context.Context, p Problem, s Settings) (*Solution, error) {
	n := len(p.C)
	if len(p.Lower) != n || len(p.Upper) != n {
		return nil, fmt.Errorf("%w: %d costs, %d lower, %d upper", ErrShape, n, len(p.Lower), len(p.Upper))
	}
	meq := 0
	if p.Aeq != nil {
		r, c := p.Aeq.Dims()
		if c != n || r != len(p.Beq) {
			return nil, fmt.Errorf("%w: Aeq is %dx%d, want %dx%d", ErrShape, r, c, len(p.Beq), n)
		}
		meq = r
	} else if len(p.Beq) != 0 {
		return nil, fmt.Errorf("%w: beq without Aeq", ErrShape)
	}
	if msg := badValue(p); msg != "" {
		return &Solution{Status: StatusError, Message: msg}, nil
	}
	if s.Tolerance <= 0 {
		s.Tolerance = defaultTolerance
	}
	if s.MaxIterations <= 0 {
		s.MaxIterations = defaultMaxIter
	}

	cost := make([]float64, n)
	for j, c := range p.C {
		if p.Maximize {
			c = -c
		}
		cost[j] = c
	}

	// Map each variable to nonnegative columns and collect finite upper rows.
	cols := make([]column, n)
	nz := 0
	var boxed []int
	for j := 0; j < n; j++ {
		lo, hi := p.Lower[j], p.Upper[j]
		if lo > hi {
			return &Solution{Status: StatusInfeasible, Message: fmt.Sprintf("variable %d has lower bound above upper bound", j)}, nil
		}
		switch {
		case !math.IsInf(lo, -1):
			cols[j] = column{kind: 0, first: nz, offset: lo}
			nz++
			if !math.IsInf(hi, 1) {
				boxed = append(boxed, j)
			}
		case !math.IsInf(hi, 1):
			cols[j] = column{kind: 1, first: nz, offset: hi}
			nz++
		default:
			cols[j] = column{kind: 2, first: nz, second: nz + 1}
			nz += 2
		}
	}

	m := meq + len(boxed)
	nslack := len(boxed)
	t := newTableau(m, nz+nslack, s.Tolerance)

	rhs := make([]float64, m)
	zcost := make([]float64, nz+nslack)
	for j, col := range cols {
		switch col.kind {
		case 0:
			zcost[col.first] = cost[j]
		case 1:
			zcost[col.first] = -cost[j]
		case 2:
			zcost[col.first] = cost[j]
			zcost[col.second] = -cost[j]
		}
	}

	for i := 0; i < meq; i++ {
		rhs[i] = p.Beq[i]
		for j, col := range cols {
			a := p.Aeq.At(i, j)
			if a == 0 {
				continue
			}
			switch col.kind {
			case 0:
				t.set(i, col.first, a)
				rhs[i] -= a * col.offset
			case 1:
				t.set(i, col.first, -a)
				rhs[i] -= a * col.offset
			case 2:
				t.set(i, col.first, a)
				t.set(i, col.second, -a)
			}
		}
	}
	for k, j := range boxed {
		i := meq + k
		t.set(i, cols[j].first, 1)
		t.set(i, nz+k, 1)
		rhs[i] = p.Upper[j] - p.Lower[j]
	}

	for i := range rhs {
		t.setRHS(i, rhs[i])
	}
	t.addArtificials()

	sol := &Solution{}
	status, err := t.phaseOne(ctx, s.MaxIterations)
	sol.Iterations = t.iterations
	if err != nil {
		return nil, err
	}
	if status != StatusOptimal {
		sol.Status = status
		sol.Message = "phase one: " + t.message
		return sol, nil
	}
	if t.phaseOneObjective() > s.Tolerance*math.Max(1, maxAbs(rhs)) {
		sol.Status = StatusInfeasible
		sol.Message = "constraints cannot be satisfied within bounds"
		return sol, nil
	}

	status, err = t.phaseTwo(ctx, zcost, s.MaxIterations)
	sol.Iterations = t.iterations
	if err != nil {
		return nil, err
	}
	if status != StatusOptimal {
		sol.Status = status
		sol.Message = t.message
		return sol, nil
	}

	z := t.solution()
	sol.X = make([]float64, n)
	for j, col := range cols {
		switch col.kind {
		case 0:
			sol.X[j] = col.offset + z[col.first]
		case 1:
			sol.X[j] = col.offset - z[col.first]
		case 2:
			sol.X[j] = z[col.first] - z[col.second]
		}
	}

	obj := 0.0
	for j, c := range p.C {
		obj += c * sol.X[j]
	}
	sol.Objective = obj

	// Duals of the minimisation; flip for maximisation so Dual is always
	// d(Objective)/d(beq).
	y := t.duals()
	sol.Dual = make([]float64, meq)
	for i := 0; i < meq; i++ {
		if p.Maximize {
			sol.Dual[i] = -y[i]
		} else {
			sol.Dual[i] = y[i]
		}
	}
	sol.Status = StatusOptimal
	return sol, nil
}

// badValue describes the first NaN or misplaced infinity in p, or returns "".
// Bounds may be infinite only on their open side.
func badValue(p Problem) string {
	for j, c := range p.C {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Sprintf("cost %d is %g", j, c)
		}
	}
	for j := range p.Lower {
		lo, hi := p.Lower[j], p.Upper[j]
		if math.IsNaN(lo) || math.IsNaN(hi) || math.IsInf(lo, 1) || math.IsInf(hi, -1) {
			return fmt.Sprintf("variable %d has bounds [%g, %g]", j, lo, hi)
		}
	}
	for i, b := range p.Beq {
		if math.IsNaN(b) || math.IsInf(b, 0) {
			return fmt.Sprintf("right-hand side %d is %g", i, b)
		}
	}
	if p.Aeq != nil {
		r, c := p.Aeq.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				if v := p.Aeq.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
					return fmt.Sprintf("constraint coefficient (%d, %d) is %g", i, j, v)
				}
			}
		}
	}
	return ""
}

func maxAbs(v []float64) float64 {
	out := 0.0
	for _, x := range v {
		out = math.Max(out, math.Abs(x))
	}
	return out
}
