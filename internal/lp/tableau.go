package lp

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// tableau is a dense simplex tableau. Rows 0..m-1 hold the constraints with
// the right-hand side in the last column; row m holds the reduced costs and
// the negated objective value.
type tableau struct {
	m, n    int // constraint rows, structural columns
	width   int // n + m artificial columns
	t       *mat.Dense
	basis   []int
	flipped []bool
	tol     float64

	iterations int
	message    string
}

func newTableau(m, n int, tol float64) *tableau {
	width := n + m
	return &tableau{
		m:       m,
		n:       n,
		width:   width,
		t:       mat.NewDense(m+1, width+1, nil),
		basis:   make([]int, m),
		flipped: make([]bool, m),
		tol:     tol,
	}
}

func (t *tableau) set(i, j int, v float64) { t.t.Set(i, j, v) }

func (t *tableau) setRHS(i int, v float64) { t.t.Set(i, t.width, v) }

func (t *tableau) rhs(i int) float64 { return t.t.At(i, t.width) }

// addArtificials makes every right-hand side nonnegative and installs an
// identity block of artificial columns as the starting basis.
func (t *tableau) addArtificials() {
	for i := 0; i < t.m; i++ {
		row := t.t.RawRowView(i)
		if row[t.width] < 0 {
			for j := range row {
				row[j] = -row[j]
			}
			t.flipped[i] = true
		}
		row[t.n+i] = 1
		t.basis[i] = t.n + i
	}
}

func (t *tableau) phaseOne(ctx context.Context, maxIter int) (Status, error) {
	obj := t.t.RawRowView(t.m)
	for j := range obj {
		obj[j] = 0
	}
	for i := 0; i < t.m; i++ {
		row := t.t.RawRowView(i)
		for j := 0; j < t.n; j++ {
			obj[j] -= row[j]
		}
		obj[t.width] -= row[t.width]
	}
	status, err := t.run(ctx, maxIter)
	if err != nil || status != StatusOptimal {
		return status, err
	}

	// Pivot zero-level artificials out of the basis where a structural
	// column allows it; rows where none does are redundant.
	for i := 0; i < t.m; i++ {
		if t.basis[i] < t.n {
			continue
		}
		row := t.t.RawRowView(i)
		for j := 0; j < t.n; j++ {
			if abs(row[j]) > t.tol {
				t.pivot(i, j)
				break
			}
		}
	}
	return StatusOptimal, nil
}

func (t *tableau) phaseOneObjective() float64 {
	return -t.t.At(t.m, t.width)
}

func (t *tableau) phaseTwo(ctx context.Context, cost []float64, maxIter int) (Status, error) {
	obj := t.t.RawRowView(t.m)
	for j := range obj {
		obj[j] = 0
	}
	copy(obj, cost)
	for i := 0; i < t.m; i++ {
		b := t.basis[i]
		if b >= t.n {
			continue
		}
		cb := cost[b]
		if cb == 0 {
			continue
		}
		row := t.t.RawRowView(i)
		for j := range obj {
			obj[j] -= cb * row[j]
		}
	}
	return t.run(ctx, maxIter)
}

// run pivots with Bland's rule until no structural column has a negative
// reduced cost.
func (t *tableau) run(ctx context.Context, maxIter int) (Status, error) {
	obj := t.t.RawRowView(t.m)
	for {
		if t.iterations%64 == 0 {
			if err := ctx.Err(); err != nil {
				return StatusError, err
			}
		}

		enter := -1
		for j := 0; j < t.n; j++ {
			if obj[j] < -t.tol {
				enter = j
				break
			}
		}
		if enter < 0 {
			return StatusOptimal, nil
		}

		leave := -1
		best := 0.0
		for i := 0; i < t.m; i++ {
			a := t.t.At(i, enter)
			if a <= t.tol {
				continue
			}
			ratio := t.rhs(i) / a
			if leave < 0 || ratio < best-t.tol || (ratio <= best+t.tol && t.basis[i] < t.basis[leave]) {
				leave, best = i, ratio
			}
		}
		if leave < 0 {
			t.message = fmt.Sprintf("column %d can increase without bound", enter)
			return StatusUnbounded, nil
		}

		t.pivot(leave, enter)
		t.iterations++
		if t.iterations >= maxIter {
			t.message = fmt.Sprintf("iteration limit %d reached", maxIter)
			return StatusError, nil
		}
	}
}

func (t *tableau) pivot(r, c int) {
	prow := t.t.RawRowView(r)
	inv := 1 / prow[c]
	for j := range prow {
		prow[j] *= inv
	}
	prow[c] = 1
	for i := 0; i <= t.m; i++ {
		if i == r {
			continue
		}
		row := t.t.RawRowView(i)
		f := row[c]
		if f == 0 {
			continue
		}
		for j := range row {
			row[j] -= f * prow[j]
		}
		row[c] = 0
	}
	t.basis[r] = c
}

// solution returns the values of the structural columns.
func (t *tableau) solution() []float64 {
	z := make([]float64, t.n)
	for i, b := range t.basis {
		if b < t.n {
			z[b] = t.rhs(i)
		}
	}
	return z
}

// duals reads the simplex multipliers of the original rows from the reduced
// costs of the artificial columns.
func (t *tableau) duals() []float64 {
	obj := t.t.RawRowView(t.m)
	y := make([]float64, t.m)
	for i := 0; i < t.m; i++ {
		y[i] = -obj[t.n+i]
		if t.flipped[i] {
			y[i] = -y[i]
		}
	}
	return y
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
