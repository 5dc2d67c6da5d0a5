// Package kinetics assigns Michaelis-Menten rate laws to the reactions of a
// stoichiometric model and seeds curated kinetic constants into the store.
package kinetics

import (
	"github.com/matsen/metakg/internal/model"
)

// Defaults used when a reaction has no stored parameters.
const (
	DefaultVmax = 1.0 // mM/s
	DefaultKm   = 0.5 // mM
	DefaultKeq  = 1.0
)

// minKeq keeps the Haldane reverse term finite.
const minKeq = 1e-12

// Params are the constants of one reaction's rate law.
type Params struct {
	Vmax float64
	Km   float64
	Keq  float64

	// KmBySubstrate holds compound-specific Km values; Km applies otherwise.
	KmBySubstrate map[string]float64
}

// Defaults returns the parameters used for reactions without stored rows.
func Defaults() Params {
	return Params{Vmax: DefaultVmax, Km: DefaultKm, Keq: DefaultKeq, KmBySubstrate: map[string]float64{}}
}

// KmFor returns the Km of a compound.
func (p Params) KmFor(compoundID string) float64 {
	if km, ok := p.KmBySubstrate[compoundID]; ok {
		return km
	}
	return p.Km
}

// Resolve collapses the stored rows of a reaction into one parameter set.
// Vmax, Km and Keq are averaged over the rows that carry them; rows with a
// substrate id also contribute a compound-specific Km. Missing or
// nonpositive values fall back to the defaults.
func Resolve(rows []model.KineticParam) Params {
	p := Defaults()
	var vmax, km, keq []float64
	for _, r := range rows {
		if r.Vmax != nil {
			vmax = append(vmax, *r.Vmax)
		}
		if r.Km != nil {
			km = append(km, *r.Km)
			if r.SubstrateID != "" {
				p.KmBySubstrate[r.SubstrateID] = *r.Km
			}
		}
		if r.EquilibriumConstant != nil {
			keq = append(keq, *r.EquilibriumConstant)
		}
	}
	if v := mean(vmax); v > 0 {
		p.Vmax = v
	}
	if v := mean(km); v > 0 {
		p.Km = v
	}
	if v := mean(keq); v > 0 {
		p.Keq = v
	}
	return p
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
