// Package stoich assembles stoichiometric models from slices of the metabolic graph.
package stoich

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/matsen/metakg/internal/ctxlog"
	"github.com/matsen/metakg/internal/model"
)

// DefaultFluxBound is the magnitude of the default flux capacity.
const DefaultFluxBound = 1000.0

// ErrPathwayNotFound is returned when a scope names a pathway the store lacks.
var ErrPathwayNotFound = errors.New("pathway not found")

// Store is the read access the builder needs.
type Store interface {
	Node(ctx context.Context, id string) (*model.Node, error)
	EdgesOf(ctx context.Context, id string, rels ...model.Relation) ([]model.Edge, error)
	AllNodes(ctx context.Context, kind model.Kind) ([]model.Node, error)
}

// Scope selects the reactions of a model. Explicit ReactionIDs take precedence
// over PathwayID; an empty scope selects every reaction in the store.
type Scope struct {
	PathwayID   string
	ReactionIDs []string
}

// Model is a stoichiometric model with deterministic row and column order.
type Model struct {
	// Reactions and Compounds are sorted by id; they index the columns and rows of S.
	Reactions []string
	Compounds []string

	// S[i][j] is the net coefficient of compound i in reaction j:
	// negative when consumed, positive when produced. Nil when the model is empty.
	S *mat.Dense

	Lower      []float64
	Upper      []float64
	Reversible []bool

	// Enzymes maps a reaction id to its catalysing enzyme ids, sorted.
	Enzymes map[string][]string

	// Boundary marks compounds that are only consumed or only produced within scope.
	Boundary []bool

	// Skipped lists requested ids that are not stored reactions.
	Skipped []string

	reactionIndex map[string]int
	compoundIndex map[string]int
}

// Empty reports whether the model has no reactions.
func (m *Model) Empty() bool {
	return len(m.Reactions) == 0
}

// ReactionIndex returns the column of a reaction.
func (m *Model) ReactionIndex(id string) (int, bool) {
	i, ok := m.reactionIndex[id]
	return i, ok
}

// CompoundIndex returns the row of a compound.
func (m *Model) CompoundIndex(id string) (int, bool) {
	i, ok := m.compoundIndex[id]
	return i, ok
}

// Coefficient returns S[i][j], zero for an empty model.
func (m *Model) Coefficient(i, j int) float64 {
	if m.S == nil {
		return 0
	}
	return m.S.At(i, j)
}

// Substrates returns the rows consumed by reaction j with their positive coefficients.
func (m *Model) Substrates(j int) map[int]float64 {
	out := map[int]float64{}
	for i := range m.Compounds {
		if c := m.Coefficient(i, j); c < 0 {
			out[i] = -c
		}
	}
	return out
}

// Products returns the rows produced by reaction j with their coefficients.
func (m *Model) Products(j int) map[int]float64 {
	out := map[int]float64{}
	for i := range m.Compounds {
		if c := m.Coefficient(i, j); c > 0 {
			out[i] = c
		}
	}
	return out
}

// ReactionsByEnzyme returns the reactions catalysed by an enzyme, sorted.
func (m *Model) ReactionsByEnzyme(enzymeID string) []string {
	var out []string
	for _, rxn := range m.Reactions {
		for _, e := range m.Enzymes[rxn] {
			if e == enzymeID {
				out = append(out, rxn)
				break
			}
		}
	}
	return out
}

// Build collects the reactions of scope with their compounds, coefficients,
// reversibility and enzymes, and assembles S with default flux bounds.
func Build(ctx context.Context, store Store, scope Scope) (*Model, error) {
	rxnIDs, err := scopeReactions(ctx, store, scope)
	if err != nil {
		return nil, err
	}

	m := &Model{Enzymes: map[string][]string{}}
	coeffs := map[string]map[string]float64{} // reaction -> compound -> net coefficient
	compounds := map[string]bool{}
	reversible := map[string]bool{}

	for _, id := range rxnIDs {
		rxn, err := store.Node(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("getting reaction %s: %w", id, err)
		}
		if rxn == nil || !rxn.IsReaction() {
			ctxlog.FromContext(ctx).Warn("skipping unknown reaction", "id", id)
			m.Skipped = append(m.Skipped, id)
			continue
		}

		edges, err := store.EdgesOf(ctx, id, model.RelSubstrateOf, model.RelProductOf, model.RelCatalyzes)
		if err != nil {
			return nil, fmt.Errorf("getting edges of %s: %w", id, err)
		}

		net := map[string]float64{}
		participants := false
		for _, e := range edges {
			switch {
			case e.Rel == model.RelSubstrateOf && e.Dst == id:
				net[e.Src] -= e.Coefficient()
				participants = true
			case e.Rel == model.RelProductOf && e.Src == id:
				net[e.Dst] += e.Coefficient()
				participants = true
			case e.Rel == model.RelCatalyzes && e.Dst == id:
				m.Enzymes[id] = append(m.Enzymes[id], e.Src)
			}
		}
		if !participants && rxn.Stoichiometry != nil {
			for _, t := range rxn.Stoichiometry.Substrates {
				net[t.ID] -= termCoefficient(t)
			}
			for _, t := range rxn.Stoichiometry.Products {
				net[t.ID] += termCoefficient(t)
			}
		}

		for cpd := range net {
			compounds[cpd] = true
		}
		coeffs[id] = net
		reversible[id] = rxn.Reversible()
		sort.Strings(m.Enzymes[id])
	}

	m.Reactions = sortedKeys(coeffs)
	m.Compounds = sortedKeys(compounds)
	m.reactionIndex = indexOf(m.Reactions)
	m.compoundIndex = indexOf(m.Compounds)

	nr, nc := len(m.Reactions), len(m.Compounds)
	m.Lower = make([]float64, nr)
	m.Upper = make([]float64, nr)
	m.Reversible = make([]bool, nr)
	for j, id := range m.Reactions {
		m.Reversible[j] = reversible[id]
		m.Upper[j] = DefaultFluxBound
		if reversible[id] {
			m.Lower[j] = -DefaultFluxBound
		}
	}

	m.Boundary = make([]bool, nc)
	if nr > 0 && nc > 0 {
		m.S = mat.NewDense(nc, nr, nil)
		for j, rxn := range m.Reactions {
			for cpd, c := range coeffs[rxn] {
				m.S.Set(m.compoundIndex[cpd], j, c)
			}
		}
		for i := range m.Compounds {
			var consumed, produced bool
			for j := 0; j < nr; j++ {
				c := m.S.At(i, j)
				consumed = consumed || c < 0
				produced = produced || c > 0
			}
			m.Boundary[i] = !(consumed && produced)
		}
	}
	return m, nil
}

func scopeReactions(ctx context.Context, store Store, scope Scope) ([]string, error) {
	if len(scope.ReactionIDs) > 0 {
		return scope.ReactionIDs, nil
	}
	if scope.PathwayID != "" {
		pwy, err := store.Node(ctx, scope.PathwayID)
		if err != nil {
			return nil, fmt.Errorf("getting pathway %s: %w", scope.PathwayID, err)
		}
		if pwy == nil {
			return nil, fmt.Errorf("%w: %s", ErrPathwayNotFound, scope.PathwayID)
		}
		edges, err := store.EdgesOf(ctx, scope.PathwayID, model.RelContains)
		if err != nil {
			return nil, fmt.Errorf("getting pathway members: %w", err)
		}
		var ids []string
		for _, e := range edges {
			if e.Src != scope.PathwayID {
				continue
			}
			member, err := store.Node(ctx, e.Dst)
			if err != nil {
				return nil, fmt.Errorf("getting pathway member %s: %w", e.Dst, err)
			}
			if member != nil && member.IsReaction() {
				ids = append(ids, e.Dst)
			}
		}
		return ids, nil
	}
	all, err := store.AllNodes(ctx, model.KindReaction)
	if err != nil {
		return nil, fmt.Errorf("listing reactions: %w", err)
	}
	ids := make([]string, len(all))
	for i, n := range all {
		ids[i] = n.ID
	}
	return ids, nil
}

func termCoefficient(t model.StoichTerm) float64 {
	if t.Stoich == 0 {
		return 1.0
	}
	return t.Stoich
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func indexOf(ids []string) map[string]int {
	idx := make(map[string]int, len(ids))
	for i, id := range ids {
		idx[id] = i
	}
	return idx
}
