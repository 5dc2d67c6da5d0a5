package simulate

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/matsen/metakg/internal/ode"
)

// ErrInvalidConfig is returned for malformed configurations, scenarios or modes.
var ErrInvalidConfig = errors.New("invalid simulation config")

// Modes accepted by RunWhatIf.
const (
	ModeFBA = "fba"
	ModeODE = "ode"
)

// Config selects the reactions of a simulation and its parameters. Start
// from DefaultConfig; the zero value minimizes.
type Config struct {
	PathwayID   string   `json:"pathway_id,omitempty" yaml:"pathway_id,omitempty"`
	ReactionIDs []string `json:"reaction_ids,omitempty" yaml:"reaction_ids,omitempty"`

	// ODE time grid and state.
	TEnd                  float64            `json:"t_end" yaml:"t_end"`
	TPoints               int                `json:"t_points" yaml:"t_points"`
	InitialConcentrations map[string]float64 `json:"initial_concentrations,omitempty" yaml:"initial_concentrations,omitempty"`
	DefaultConcentration  float64            `json:"default_concentration" yaml:"default_concentration"`

	// FBA objective and capacities.
	ObjectiveReaction string                `json:"objective_reaction,omitempty" yaml:"objective_reaction,omitempty"`
	Maximize          bool                  `json:"maximize" yaml:"maximize"`
	FluxBounds        map[string][2]float64 `json:"flux_bounds,omitempty" yaml:"flux_bounds,omitempty"`
	ClosedSystem      bool                  `json:"closed_system,omitempty" yaml:"closed_system,omitempty"`

	// Kinetic perturbations.
	VmaxOverrides map[string]float64 `json:"vmax_overrides,omitempty" yaml:"vmax_overrides,omitempty"`
	VmaxFactors   map[string]float64 `json:"vmax_factors,omitempty" yaml:"vmax_factors,omitempty"`
	Regulation    bool               `json:"regulation,omitempty" yaml:"regulation,omitempty"`

	// Integrator.
	Method  string  `json:"method,omitempty" yaml:"method,omitempty"`
	RTol    float64 `json:"rtol,omitempty" yaml:"rtol,omitempty"`
	ATol    float64 `json:"atol,omitempty" yaml:"atol,omitempty"`
	MaxStep float64 `json:"max_step,omitempty" yaml:"max_step,omitempty"`
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() Config {
	return Config{
		TEnd:                 100,
		TPoints:              500,
		DefaultConcentration: 1.0,
		Maximize:             true,
		Method:               ode.MethodBDF,
		RTol:                 ode.DefaultRTol,
		ATol:                 ode.DefaultATol,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TEnd == 0 {
		c.TEnd = d.TEnd
	}
	if c.TPoints == 0 {
		c.TPoints = d.TPoints
	}
	if c.Method == "" {
		c.Method = d.Method
	}
	if c.RTol == 0 {
		c.RTol = d.RTol
	}
	if c.ATol == 0 {
		c.ATol = d.ATol
	}
	return c
}

// Validate reports malformed values as ErrInvalidConfig.
func (c Config) Validate() error {
	switch {
	case !finite(c.TEnd) || c.TEnd <= 0:
		return fmt.Errorf("%w: t_end must be positive, got %g", ErrInvalidConfig, c.TEnd)
	case c.TPoints < 2:
		return fmt.Errorf("%w: t_points must be at least 2, got %d", ErrInvalidConfig, c.TPoints)
	case !finite(c.DefaultConcentration) || c.DefaultConcentration < 0:
		return fmt.Errorf("%w: default_concentration must be nonnegative", ErrInvalidConfig)
	case c.RTol < 0 || c.ATol < 0 || c.MaxStep < 0:
		return fmt.Errorf("%w: tolerances and max_step must be nonnegative", ErrInvalidConfig)
	}
	switch c.Method {
	case "", ode.MethodBDF, ode.MethodTRBDF2, ode.MethodRK45:
	default:
		return fmt.Errorf("%w: unknown method %q", ErrInvalidConfig, c.Method)
	}
	for _, id := range sortedKeys(c.InitialConcentrations) {
		if v := c.InitialConcentrations[id]; !finite(v) || v < 0 {
			return fmt.Errorf("%w: initial concentration of %s must be nonnegative", ErrInvalidConfig, id)
		}
	}
	for _, id := range sortedKeys(c.FluxBounds) {
		b := c.FluxBounds[id]
		if math.IsNaN(b[0]) || math.IsNaN(b[1]) || b[0] > b[1] {
			return fmt.Errorf("%w: flux bounds of %s are [%g, %g]", ErrInvalidConfig, id, b[0], b[1])
		}
	}
	for _, id := range sortedKeys(c.VmaxOverrides) {
		if v := c.VmaxOverrides[id]; !finite(v) || v < 0 {
			return fmt.Errorf("%w: vmax override of %s must be nonnegative", ErrInvalidConfig, id)
		}
	}
	for _, id := range sortedKeys(c.VmaxFactors) {
		if v := c.VmaxFactors[id]; !finite(v) || v < 0 {
			return fmt.Errorf("%w: vmax factor of %s must be nonnegative", ErrInvalidConfig, id)
		}
	}
	return nil
}

// clone copies c deeply enough for a scenario to modify its maps.
func (c Config) clone() Config {
	out := c
	out.ReactionIDs = append([]string(nil), c.ReactionIDs...)
	out.InitialConcentrations = copyMap(c.InitialConcentrations)
	out.FluxBounds = copyMap(c.FluxBounds)
	out.VmaxOverrides = copyMap(c.VmaxOverrides)
	out.VmaxFactors = copyMap(c.VmaxFactors)
	return out
}

// Scenario is a perturbation applied on top of a baseline Config.
type Scenario struct {
	Name                 string             `json:"name" yaml:"name"`
	EnzymeKnockouts      []string           `json:"enzyme_knockouts,omitempty" yaml:"enzyme_knockouts,omitempty"`
	EnzymeFactors        map[string]float64 `json:"enzyme_factors,omitempty" yaml:"enzyme_factors,omitempty"`
	InitialConcOverrides map[string]float64 `json:"initial_conc_overrides,omitempty" yaml:"initial_conc_overrides,omitempty"`
}

// Validate reports malformed scenarios as ErrInvalidConfig.
func (s Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: scenario name is required", ErrInvalidConfig)
	}
	for _, id := range s.EnzymeKnockouts {
		if id == "" {
			return fmt.Errorf("%w: empty enzyme id in knockouts", ErrInvalidConfig)
		}
	}
	for _, id := range sortedKeys(s.EnzymeFactors) {
		if v := s.EnzymeFactors[id]; id == "" || !finite(v) || v < 0 {
			return fmt.Errorf("%w: enzyme factor of %q must be nonnegative", ErrInvalidConfig, id)
		}
	}
	for _, id := range sortedKeys(s.InitialConcOverrides) {
		if v := s.InitialConcOverrides[id]; id == "" || !finite(v) || v < 0 {
			return fmt.Errorf("%w: concentration override of %q must be nonnegative", ErrInvalidConfig, id)
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func copyMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
