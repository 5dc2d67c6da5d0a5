// Package ode integrates initial value problems with adaptive step size
// control. The default method is TR-BDF2, an L-stable implicit scheme suited
// to stiff systems; an explicit Dormand-Prince pair is available on request.
package ode

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Func evaluates dy/dt at (t, y) into dy.
type Func func(t float64, y, dy []float64)

// Method names.
const (
	MethodBDF    = "bdf"
	MethodTRBDF2 = "trbdf2"
	MethodRK45   = "rk45"
)

// Default tolerances.
const (
	DefaultRTol     = 1e-4
	DefaultATol     = 1e-6
	DefaultMaxSteps = 100000
)

var (
	ErrInvalidInput     = errors.New("ode: invalid input")
	ErrUnknownMethod    = errors.New("ode: unknown method")
	ErrStepSizeTooSmall = errors.New("ode: step size too small")
	ErrMaxSteps         = errors.New("ode: maximum number of steps exceeded")
	ErrNewtonFailed     = errors.New("ode: newton iteration failed to converge")
)

// Options control the integrator. Zero values select defaults; MaxStep <= 0
// means unbounded.
type Options struct {
	Method      string
	RTol        float64
	ATol        float64
	MaxStep     float64
	InitialStep float64
	MaxSteps    int
}

func (o Options) withDefaults() Options {
	if o.Method == "" {
		o.Method = MethodBDF
	}
	o.Method = strings.ToLower(o.Method)
	if o.RTol <= 0 {
		o.RTol = DefaultRTol
	}
	if o.ATol <= 0 {
		o.ATol = DefaultATol
	}
	if o.MaxStep <= 0 {
		o.MaxStep = math.Inf(1)
	}
	if o.MaxSteps <= 0 {
		o.MaxSteps = DefaultMaxSteps
	}
	return o
}

// Solution holds the state sampled at the requested times.
type Solution struct {
	Method string
	T      []float64
	// Y[k] is the state at T[k].
	Y [][]float64

	Steps         int
	RejectedSteps int
	FuncEvals     int
	JacobianEvals int
}

// Column returns the trajectory of component i.
func (s *Solution) Column(i int) []float64 {
	out := make([]float64, len(s.Y))
	for k, y := range s.Y {
		out[k] = y[i]
	}
	return out
}

// stepper advances one trial step from (t, y) with slope f0. It returns the
// new state, its slope and the weighted error norm, or errRetry when the
// step must be retried with a smaller h.
type stepper interface {
	order() int
	attempt(t, h float64, y, f0 []float64) (yNew, fNew []float64, errNorm float64, err error)
}

var errRetry = errors.New("retry with smaller step")

// counter wraps f to count evaluations.
type counter struct {
	f     Func
	evals int
}

func (c *counter) eval(t float64, y, dy []float64) {
	c.evals++
	c.f(t, y, dy)
}

// Solve integrates f from times[0] to the last entry of times, which must be
// nondecreasing, and samples the solution at every entry.
func Solve(ctx context.Context, f Func, y0 []float64, times []float64, opts Options) (*Solution, error) {
	if len(y0) == 0 {
		return nil, fmt.Errorf("%w: empty initial state", ErrInvalidInput)
	}
	if len(times) == 0 {
		return nil, fmt.Errorf("%w: no output times", ErrInvalidInput)
	}
	for k := 1; k < len(times); k++ {
		if times[k] < times[k-1] {
			return nil, fmt.Errorf("%w: output times must be nondecreasing", ErrInvalidInput)
		}
	}
	opts = opts.withDefaults()

	fn := &counter{f: f}
	var st stepper
	switch opts.Method {
	case MethodBDF, MethodTRBDF2:
		st = newTRBDF2(fn, len(y0), opts)
	case MethodRK45:
		st = newRK45(fn, len(y0), opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, opts.Method)
	}

	sol := &Solution{
		Method: opts.Method,
		T:      append([]float64(nil), times...),
		Y:      make([][]float64, len(times)),
	}
	y := append([]float64(nil), y0...)
	sol.Y[0] = append([]float64(nil), y...)

	t, tEnd := times[0], times[len(times)-1]
	f0 := make([]float64, len(y))
	fn.eval(t, y, f0)

	h := opts.InitialStep
	if h <= 0 {
		h = initialStep(y, f0, tEnd-t, opts)
	}
	next := 1
	for next < len(times) && times[next] <= t {
		sol.Y[next] = append([]float64(nil), y...)
		next++
	}

	exponent := -1 / float64(st.order()+1)
	retried := false
	for t < tEnd {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if sol.Steps >= opts.MaxSteps {
			return nil, fmt.Errorf("%w: %d steps at t=%g", ErrMaxSteps, sol.Steps, t)
		}

		h = math.Min(h, opts.MaxStep)
		last := false
		if t+h >= tEnd || tEnd-(t+h) < minStep(t) {
			h = tEnd - t
			last = true
		}
		if h < minStep(t) {
			if retried {
				return nil, fmt.Errorf("%w: at t=%g", ErrNewtonFailed, t)
			}
			return nil, fmt.Errorf("%w: h=%g at t=%g", ErrStepSizeTooSmall, h, t)
		}

		yNew, fNew, errNorm, err := st.attempt(t, h, y, f0)
		if errors.Is(err, errRetry) {
			sol.RejectedSteps++
			retried = true
			h *= 0.5
			continue
		}
		if err != nil {
			return nil, err
		}
		retried = false

		if math.IsNaN(errNorm) || math.IsInf(errNorm, 0) {
			sol.RejectedSteps++
			h *= 0.2
			continue
		}
		if errNorm > 1 {
			sol.RejectedSteps++
			h *= math.Max(0.2, 0.9*math.Pow(errNorm, exponent))
			continue
		}

		tNew := t + h
		if last {
			tNew = tEnd
		}
		for next < len(times) && times[next] <= tNew {
			if times[next] >= tNew {
				sol.Y[next] = append([]float64(nil), yNew...)
			} else {
				sol.Y[next] = hermite(t, h, y, f0, yNew, fNew, times[next])
			}
			next++
		}
		sol.Steps++
		t, y, f0 = tNew, yNew, fNew

		factor := 5.0
		if errNorm > 0 {
			factor = math.Min(5, math.Max(0.2, 0.9*math.Pow(errNorm, exponent)))
		}
		h *= factor
	}
	for ; next < len(times); next++ {
		sol.Y[next] = append([]float64(nil), y...)
	}

	sol.FuncEvals = fn.evals
	if j, ok := st.(interface{ jacobianEvals() int }); ok {
		sol.JacobianEvals = j.jacobianEvals()
	}
	return sol, nil
}

// minStep is the smallest step distinguishable from rounding at t.
func minStep(t float64) float64 {
	a := math.Abs(t)
	return math.Max(1e-14, 16*(math.Nextafter(a, math.Inf(1))-a))
}

// initialStep picks a first step from the scale of the state and its slope.
func initialStep(y, f0 []float64, span float64, opts Options) float64 {
	var d0, d1 float64
	for i := range y {
		sc := opts.ATol + opts.RTol*math.Abs(y[i])
		d0 += (y[i] / sc) * (y[i] / sc)
		d1 += (f0[i] / sc) * (f0[i] / sc)
	}
	d0 = math.Sqrt(d0 / float64(len(y)))
	d1 = math.Sqrt(d1 / float64(len(y)))
	h := 1e-6
	if d0 > 1e-5 && d1 > 1e-5 {
		h = 0.01 * d0 / d1
	}
	return math.Min(math.Min(h, span), opts.MaxStep)
}

// errNorm is the RMS of e scaled by atol + rtol*max(|y|, |yNew|).
func errNorm(e, y, yNew []float64, rtol, atol float64) float64 {
	var sum float64
	for i := range e {
		sc := atol + rtol*math.Max(math.Abs(y[i]), math.Abs(yNew[i]))
		r := e[i] / sc
		sum += r * r
	}
	return math.Sqrt(sum / float64(len(e)))
}

// hermite evaluates the cubic Hermite interpolant of a step at time at.
func hermite(t, h float64, y0, f0, y1, f1 []float64, at float64) []float64 {
	th := (at - t) / h
	th2, th3 := th*th, th*th*th
	h00 := 2*th3 - 3*th2 + 1
	h10 := th3 - 2*th2 + th
	h01 := -2*th3 + 3*th2
	h11 := th3 - th2
	out := make([]float64, len(y0))
	for i := range out {
		out[i] = h00*y0[i] + h10*h*f0[i] + h01*y1[i] + h11*h*f1[i]
	}
	return out
}
