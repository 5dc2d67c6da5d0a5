package ode

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	trGamma = 2 - math.Sqrt2
	trD     = trGamma / 2
	// Local truncation error constant of the composite step.
	trErrC = (-3*trGamma*trGamma + 4*trGamma - 2) / (12 * (2 - trGamma))
	// BDF2 stage weights on the trapezoid result and the step start.
	trW1 = 1 / (trGamma * (2 - trGamma))
	trW0 = (1 - trGamma) * (1 - trGamma) / (trGamma * (2 - trGamma))
)

const maxNewtonIter = 5

// trbdf2 takes a trapezoidal stage to t+gamma*h followed by a BDF2 stage to
// t+h. Both stages share the iteration matrix I - d*h*J, factored once per
// step size. J is a forward-difference Jacobian evaluated at the step start.
type trbdf2 struct {
	f    *counter
	n    int
	rtol float64
	atol float64
	tol  float64

	jac    *mat.Dense
	jacT   float64
	jevals int

	lu    mat.LU
	luH   float64
	luJac int

	tmp []float64
}

func newTRBDF2(f *counter, n int, opts Options) *trbdf2 {
	eps := math.Nextafter(1, 2) - 1
	return &trbdf2{
		f:     f,
		n:     n,
		rtol:  opts.RTol,
		atol:  opts.ATol,
		tol:   math.Max(10*eps/opts.RTol, math.Min(0.03, math.Sqrt(opts.RTol))),
		jac:   mat.NewDense(n, n, nil),
		jacT:  math.NaN(),
		luH:   math.NaN(),
		luJac: -1,
		tmp:   make([]float64, n),
	}
}

func (s *trbdf2) order() int { return 2 }

func (s *trbdf2) jacobianEvals() int { return s.jevals }

func (s *trbdf2) attempt(t, h float64, y, f0 []float64) ([]float64, []float64, float64, error) {
	if t != s.jacT {
		s.jacobian(t, y, f0)
	}
	if h != s.luH || s.luJac != s.jevals {
		if !s.factor(h) {
			return nil, nil, 0, errRetry
		}
	}
	dh := trD * h

	// Trapezoidal stage.
	rhs := make([]float64, s.n)
	floats.AddScaledTo(rhs, y, dh, f0)
	zg := make([]float64, s.n)
	floats.AddScaledTo(zg, y, trGamma*h, f0)
	if err := s.newton(t+trGamma*h, dh, zg, rhs); err != nil {
		return nil, nil, 0, err
	}
	fg := make([]float64, s.n)
	s.f.eval(t+trGamma*h, zg, fg)

	// BDF2 stage.
	for i := range rhs {
		rhs[i] = trW1*zg[i] - trW0*y[i]
	}
	y1 := make([]float64, s.n)
	floats.AddScaledTo(y1, zg, (1-trGamma)*h, fg)
	if err := s.newton(t+h, dh, y1, rhs); err != nil {
		return nil, nil, 0, err
	}
	f1 := make([]float64, s.n)
	s.f.eval(t+h, y1, f1)

	// Error estimate from the divided differences of the three slopes,
	// filtered through the iteration matrix.
	raw := make([]float64, s.n)
	for i := range raw {
		raw[i] = 2 * trErrC * h * ((f1[i]-fg[i])/(1-trGamma) - (fg[i]-f0[i])/trGamma)
	}
	est := mat.NewVecDense(s.n, nil)
	if err := s.lu.SolveVecTo(est, false, mat.NewVecDense(s.n, raw)); err != nil && singular(err) {
		return nil, nil, 0, errRetry
	}
	return y1, f1, errNorm(est.RawVector().Data, y, y1, s.rtol, s.atol), nil
}

// newton solves z - dh*f(t, z) = rhs in place by simplified Newton iteration.
func (s *trbdf2) newton(t, dh float64, z, rhs []float64) error {
	fz := make([]float64, s.n)
	g := mat.NewVecDense(s.n, nil)
	dz := mat.NewVecDense(s.n, nil)
	prev := 0.0
	for iter := 0; iter < maxNewtonIter; iter++ {
		s.f.eval(t, z, fz)
		for i := range z {
			g.SetVec(i, rhs[i]+dh*fz[i]-z[i])
		}
		if err := s.lu.SolveVecTo(dz, false, g); err != nil && singular(err) {
			return errRetry
		}
		step := dz.RawVector().Data
		floats.Add(z, step)

		var sum float64
		for i := range z {
			r := step[i] / (s.atol + s.rtol*math.Abs(z[i]))
			sum += r * r
		}
		norm := math.Sqrt(sum / float64(s.n))
		if math.IsNaN(norm) {
			return errRetry
		}
		if norm < 1e-3*s.tol {
			return nil
		}
		if iter > 0 {
			rate := norm / prev
			if rate >= 1 {
				return errRetry
			}
			if rate/(1-rate)*norm < s.tol {
				return nil
			}
		}
		prev = norm
	}
	return errRetry
}

func (s *trbdf2) jacobian(t float64, y, f0 []float64) {
	sqrtEps := math.Sqrt(math.Nextafter(1, 2) - 1)
	yp := append([]float64(nil), y...)
	for j := 0; j < s.n; j++ {
		delta := sqrtEps * math.Max(math.Abs(y[j]), 1)
		yp[j] = y[j] + delta
		s.f.eval(t, yp, s.tmp)
		for i := 0; i < s.n; i++ {
			s.jac.Set(i, j, (s.tmp[i]-f0[i])/delta)
		}
		yp[j] = y[j]
	}
	s.jacT = t
	s.jevals++
}

// factor builds and factorizes I - d*h*J, reporting false when singular.
func (s *trbdf2) factor(h float64) bool {
	m := mat.NewDense(s.n, s.n, nil)
	m.Scale(-trD*h, s.jac)
	for i := 0; i < s.n; i++ {
		m.Set(i, i, m.At(i, i)+1)
	}
	s.lu.Factorize(m)
	s.luH = h
	s.luJac = s.jevals
	return !math.IsInf(s.lu.Cond(), 1)
}

func singular(err error) bool {
	c, ok := err.(mat.Condition)
	return !ok || math.IsInf(float64(c), 1)
}
