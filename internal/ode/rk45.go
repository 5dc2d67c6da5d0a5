package ode

// Dormand-Prince 5(4) coefficients.
var (
	dpC = [7]float64{0, 1.0 / 5, 3.0 / 10, 4.0 / 5, 8.0 / 9, 1, 1}
	dpA = [7][6]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{44.0 / 45, -56.0 / 15, 32.0 / 9},
		{19372.0 / 6561, -25360.0 / 2187, 64448.0 / 6561, -212.0 / 729},
		{9017.0 / 3168, -355.0 / 33, 46732.0 / 5247, 49.0 / 176, -5103.0 / 18656},
		{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84},
	}
	// Difference between the fifth and fourth order weights.
	dpE = [7]float64{71.0 / 57600, 0, -71.0 / 16695, 71.0 / 1920, -17253.0 / 339200, 22.0 / 525, -1.0 / 40}
)

// rk45 is the explicit Dormand-Prince pair with local extrapolation. The
// last stage is the slope at the new point.
type rk45 struct {
	f    *counter
	n    int
	rtol float64
	atol float64
	k    [7][]float64
}

func newRK45(f *counter, n int, opts Options) *rk45 {
	s := &rk45{f: f, n: n, rtol: opts.RTol, atol: opts.ATol}
	for i := range s.k {
		s.k[i] = make([]float64, n)
	}
	return s
}

func (s *rk45) order() int { return 4 }

func (s *rk45) attempt(t, h float64, y, f0 []float64) ([]float64, []float64, float64, error) {
	copy(s.k[0], f0)
	stage := make([]float64, s.n)
	for i := 1; i < 7; i++ {
		for m := range stage {
			acc := y[m]
			for j := 0; j < i; j++ {
				acc += h * dpA[i][j] * s.k[j][m]
			}
			stage[m] = acc
		}
		s.f.eval(t+dpC[i]*h, stage, s.k[i])
	}
	// Stage 6 was evaluated at the fifth order solution.
	yNew := append([]float64(nil), stage...)
	fNew := append([]float64(nil), s.k[6]...)

	e := make([]float64, s.n)
	for m := range e {
		var acc float64
		for i := range dpE {
			acc += dpE[i] * s.k[i][m]
		}
		e[m] = h * acc
	}
	return yNew, fNew, errNorm(e, y, yNew, s.rtol, s.atol), nil
}
