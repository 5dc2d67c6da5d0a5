package kinetics

import (
	"math"
	"sort"

	"github.com/matsen/metakg/internal/model"
	"github.com/matsen/metakg/internal/ode"
	"github.com/matsen/metakg/internal/stoich"
)

// Term is one participant of a rate law.
type Term struct {
	Index  int // row in the stoichiometric model
	Stoich float64
	Km     float64
}

// Modifier scales a rate by the concentration of an effector.
type Modifier struct {
	Index     int
	K         float64
	Activator bool
}

// Law is a saturating rate law. Irreversible reactions follow
// Vmax * prod [S]/(Km_S + [S]); reversible ones subtract the Haldane reverse
// term (Vmax/Keq) * prod [P]/(Km_P*Keq + [P]).
type Law struct {
	ReactionID string
	Substrates []Term
	Products   []Term
	Vmax       float64
	Keq        float64
	Reversible bool
	Modifiers  []Modifier
}

// NewLaw builds the rate law of column j of m.
func NewLaw(m *stoich.Model, j int, p Params) Law {
	l := Law{
		ReactionID: m.Reactions[j],
		Vmax:       p.Vmax,
		Keq:        p.Keq,
		Reversible: m.Reversible[j],
	}
	for _, i := range sortedRows(m.Substrates(j)) {
		l.Substrates = append(l.Substrates, Term{Index: i, Stoich: -m.Coefficient(i, j), Km: p.KmFor(m.Compounds[i])})
	}
	for _, i := range sortedRows(m.Products(j)) {
		l.Products = append(l.Products, Term{Index: i, Stoich: m.Coefficient(i, j), Km: p.KmFor(m.Compounds[i])})
	}
	return l
}

// Rate evaluates the law at conc. Negative concentrations count as zero.
func (l *Law) Rate(conc []float64) float64 {
	if len(l.Substrates) == 0 {
		return 0
	}
	fwd := l.Vmax
	for _, s := range l.Substrates {
		fwd *= saturation(conc[s.Index], s.Km)
	}

	var v float64
	switch {
	case !l.Reversible:
		v = math.Max(0, fwd)
	case len(l.Products) == 0:
		v = fwd
	default:
		keq := math.Max(l.Keq, minKeq)
		rev := l.Vmax / keq
		for _, p := range l.Products {
			rev *= saturation(conc[p.Index], p.Km*keq)
		}
		v = fwd - rev
	}

	for _, m := range l.Modifiers {
		c := math.Max(conc[m.Index], 0)
		if m.Activator {
			v *= saturation(c, m.K)
		} else if m.K+c > 0 {
			v *= m.K / (m.K + c)
		}
	}
	return v
}

func saturation(conc, km float64) float64 {
	c := math.Max(conc, 0)
	if km+c <= 0 {
		return 0
	}
	return c / (km + c)
}

// Modifiers returns the effectors acting on the enzymes of column j whose
// compounds are part of m. Duplicate compound and type pairs from several
// enzymes count once. A missing constant defaults to DefaultKm.
func Modifiers(m *stoich.Model, j int, regs []model.RegulatoryInteraction) []Modifier {
	enzymes := map[string]bool{}
	for _, e := range m.Enzymes[m.Reactions[j]] {
		enzymes[e] = true
	}
	seen := map[string]bool{}
	var out []Modifier
	for _, r := range regs {
		if !enzymes[r.EnzymeID] {
			continue
		}
		i, ok := m.CompoundIndex(r.CompoundID)
		if !ok {
			continue
		}
		key := r.CompoundID + "|" + r.InteractionType
		if seen[key] {
			continue
		}
		seen[key] = true
		k := DefaultKm
		if r.KiAllosteric != nil && *r.KiAllosteric > 0 {
			k = *r.KiAllosteric
		}
		out = append(out, Modifier{Index: i, K: k, Activator: r.Activates()})
	}
	return out
}

// System returns the mass-balance right-hand side
// d[C_i]/dt = sum_j S_ij * v_j for a set of laws.
func System(laws []Law) ode.Func {
	return func(_ float64, y, dy []float64) {
		for i := range dy {
			dy[i] = 0
		}
		for k := range laws {
			l := &laws[k]
			v := l.Rate(y)
			if v == 0 {
				continue
			}
			for _, s := range l.Substrates {
				dy[s.Index] -= s.Stoich * v
			}
			for _, p := range l.Products {
				dy[p.Index] += p.Stoich * v
			}
		}
	}
}

// Rates evaluates every law at conc.
func Rates(laws []Law, conc []float64) []float64 {
	out := make([]float64, len(laws))
	for k := range laws {
		out[k] = laws[k].Rate(conc)
	}
	return out
}

func sortedRows(rows map[int]float64) []int {
	out := make([]int, 0, len(rows))
	for i := range rows {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}
