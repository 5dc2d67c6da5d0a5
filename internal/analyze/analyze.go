// Package analyze computes topology summaries over the stored metabolic graph.
package analyze

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/matsen/metakg/internal/model"
	"github.com/matsen/metakg/internal/storage"
)

// DefaultTopN is the length of each ranked list.
const DefaultTopN = 20

// Store is the read surface the analysis needs.
type Store interface {
	Stats(ctx context.Context) (*storage.Stats, error)
	AllNodes(ctx context.Context, kind model.Kind) ([]model.Node, error)
	AllEdges(ctx context.Context) ([]model.Edge, error)
}

// Dead-end roles.
const (
	RoleSubstrateOnly = "substrate-only"
	RoleProductOnly   = "product-only"
)

// HubMetabolite is a compound taking part in many reactions.
type HubMetabolite struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Formula       string `json:"formula,omitempty"`
	ReactionCount int    `json:"reaction_count"`
	AsSubstrate   int    `json:"as_substrate"`
	AsProduct     int    `json:"as_product"`
	PathwayCount  int    `json:"pathway_count"`
}

// ComplexReaction is a reaction with many participants.
type ComplexReaction struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	SubstrateCount int    `json:"substrate_count"`
	ProductCount   int    `json:"product_count"`
	EnzymeCount    int    `json:"enzyme_count"`
	PathwayCount   int    `json:"pathway_count"`
}

// Complexity is the number of substrates plus products.
func (r ComplexReaction) Complexity() int { return r.SubstrateCount + r.ProductCount }

// CrossPathwayHub is a compound shared by two or more pathways.
type CrossPathwayHub struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Formula       string   `json:"formula,omitempty"`
	Pathways      []string `json:"pathways"`
	ReactionCount int      `json:"reaction_count"`
}

// PathwayCoupling is a pair of pathways sharing compounds.
type PathwayCoupling struct {
	PathwayA    string   `json:"pathway_a"`
	NameA       string   `json:"name_a"`
	PathwayB    string   `json:"pathway_b"`
	NameB       string   `json:"name_b"`
	SharedCount int      `json:"shared_count"`
	SharedNames []string `json:"shared_names"`
}

// DeadEnd is a compound that is only consumed or only produced.
type DeadEnd struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Formula       string `json:"formula,omitempty"`
	ReactionCount int    `json:"reaction_count"`
	Role          string `json:"role"`
}

// IsolatedNode is a node with no edges.
type IsolatedNode struct {
	ID   string     `json:"id"`
	Name string     `json:"name"`
	Kind model.Kind `json:"kind"`
}

// EnzymeRank is an enzyme with the number of reactions it catalyses.
type EnzymeRank struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ECNumber      string `json:"ec_number,omitempty"`
	ReactionCount int    `json:"reaction_count"`
}

// PathwayProfile counts the members of one pathway.
type PathwayProfile struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ReactionCount int    `json:"reaction_count"`
	CompoundCount int    `json:"compound_count"`
	EnzymeCount   int    `json:"enzyme_count"`
}

// Report is the output of Run.
type Report struct {
	GeneratedAt      time.Time         `json:"generated_at"`
	Stats            *storage.Stats    `json:"stats"`
	HubMetabolites   []HubMetabolite   `json:"hub_metabolites"`
	ComplexReactions []ComplexReaction `json:"complex_reactions"`
	CrossPathwayHubs []CrossPathwayHub `json:"cross_pathway_hubs"`
	Couplings        []PathwayCoupling `json:"pathway_couplings"`
	DeadEnds         []DeadEnd         `json:"dead_ends"`
	Isolated         []IsolatedNode    `json:"isolated_nodes"`
	TopEnzymes       []EnzymeRank      `json:"top_enzymes"`
	PathwayProfiles  []PathwayProfile  `json:"pathway_profiles"`
}

// index holds the adjacency counts every phase draws on.
type index struct {
	nodes      map[string]model.Node
	asSub      map[string]int
	asProd     map[string]int
	substrates map[string]int // reaction -> SUBSTRATE_OF count
	products   map[string]int // reaction -> PRODUCT_OF count
	catalysts  map[string]map[string]bool
	catalysed  map[string]int // enzyme -> CATALYZES count
	contains   map[string][]string
	pathwaysOf map[string]int // reaction -> containing pathways
	touched    map[string]bool
	members    map[string]map[string]bool // pathway -> compounds
	reactants  map[string][]string        // reaction -> substrates and products
}

func newIndex(nodes []model.Node, edges []model.Edge) *index {
	ix := &index{
		nodes:      make(map[string]model.Node, len(nodes)),
		asSub:      map[string]int{},
		asProd:     map[string]int{},
		substrates: map[string]int{},
		products:   map[string]int{},
		catalysts:  map[string]map[string]bool{},
		catalysed:  map[string]int{},
		contains:   map[string][]string{},
		pathwaysOf: map[string]int{},
		touched:    map[string]bool{},
		members:    map[string]map[string]bool{},
		reactants:  map[string][]string{},
	}
	for _, n := range nodes {
		ix.nodes[n.ID] = n
	}
	for _, e := range edges {
		ix.touched[e.Src] = true
		ix.touched[e.Dst] = true
		switch e.Rel {
		case model.RelSubstrateOf:
			ix.asSub[e.Src]++
			ix.substrates[e.Dst]++
			ix.reactants[e.Dst] = append(ix.reactants[e.Dst], e.Src)
		case model.RelProductOf:
			ix.asProd[e.Dst]++
			ix.products[e.Src]++
			ix.reactants[e.Src] = append(ix.reactants[e.Src], e.Dst)
		case model.RelCatalyzes:
			ix.catalysed[e.Src]++
			if ix.catalysts[e.Dst] == nil {
				ix.catalysts[e.Dst] = map[string]bool{}
			}
			ix.catalysts[e.Dst][e.Src] = true
		case model.RelContains:
			ix.contains[e.Src] = append(ix.contains[e.Src], e.Dst)
			ix.pathwaysOf[e.Dst]++
		}
	}

	// A compound belongs to a pathway when the pathway contains it directly
	// or contains a reaction it takes part in.
	for pwy, ids := range ix.contains {
		set := map[string]bool{}
		for _, id := range ids {
			n, ok := ix.nodes[id]
			if !ok {
				continue
			}
			switch n.Kind {
			case model.KindCompound:
				set[id] = true
			case model.KindReaction:
				for _, c := range ix.reactants[id] {
					set[c] = true
				}
			}
		}
		ix.members[pwy] = set
	}
	return ix
}

func (ix *index) compoundPathways() map[string][]string {
	out := map[string][]string{}
	for pwy, set := range ix.members {
		for c := range set {
			out[c] = append(out[c], pwy)
		}
	}
	for _, p := range out {
		sort.Strings(p)
	}
	return out
}

// Run analyses the whole store. topN <= 0 selects DefaultTopN.
func Run(ctx context.Context, store Store, topN int) (*Report, error) {
	if topN <= 0 {
		topN = DefaultTopN
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading stats: %w", err)
	}
	nodes, err := store.AllNodes(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}
	edges, err := store.AllEdges(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing edges: %w", err)
	}

	ix := newIndex(nodes, edges)
	byCompound := ix.compoundPathways()

	r := &Report{GeneratedAt: time.Now().UTC(), Stats: stats}
	r.HubMetabolites = truncate(ix.hubs(nodes, byCompound), topN)
	r.ComplexReactions = truncate(ix.complexReactions(nodes), topN)
	r.CrossPathwayHubs = truncate(ix.crossPathwayHubs(nodes, byCompound), topN)
	r.Couplings = truncate(ix.couplings(), topN)
	r.DeadEnds = ix.deadEnds(nodes)
	r.Isolated = ix.isolated(nodes)
	r.TopEnzymes = truncate(ix.enzymes(nodes), topN)
	r.PathwayProfiles = ix.profiles(nodes)
	return r, nil
}

func truncate[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func (ix *index) hubs(nodes []model.Node, byCompound map[string][]string) []HubMetabolite {
	out := []HubMetabolite{}
	for _, n := range nodes {
		sub, prod := ix.asSub[n.ID], ix.asProd[n.ID]
		if !n.IsCompound() || sub+prod == 0 {
			continue
		}
		out = append(out, HubMetabolite{
			ID:            n.ID,
			Name:          n.Name,
			Formula:       n.Formula,
			ReactionCount: sub + prod,
			AsSubstrate:   sub,
			AsProduct:     prod,
			PathwayCount:  len(byCompound[n.ID]),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ReactionCount > out[j].ReactionCount })
	return out
}

func (ix *index) complexReactions(nodes []model.Node) []ComplexReaction {
	out := []ComplexReaction{}
	for _, n := range nodes {
		if !n.IsReaction() {
			continue
		}
		out = append(out, ComplexReaction{
			ID:             n.ID,
			Name:           n.Name,
			SubstrateCount: ix.substrates[n.ID],
			ProductCount:   ix.products[n.ID],
			EnzymeCount:    len(ix.catalysts[n.ID]),
			PathwayCount:   ix.pathwaysOf[n.ID],
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Complexity() > out[j].Complexity() })
	return out
}

func (ix *index) crossPathwayHubs(nodes []model.Node, byCompound map[string][]string) []CrossPathwayHub {
	out := []CrossPathwayHub{}
	for _, n := range nodes {
		pwys := byCompound[n.ID]
		if !n.IsCompound() || len(pwys) < 2 {
			continue
		}
		names := make([]string, len(pwys))
		for i, p := range pwys {
			names[i] = ix.name(p)
		}
		sort.Strings(names)
		out = append(out, CrossPathwayHub{
			ID:            n.ID,
			Name:          n.Name,
			Formula:       n.Formula,
			Pathways:      names,
			ReactionCount: ix.asSub[n.ID] + ix.asProd[n.ID],
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i].Pathways) > len(out[j].Pathways) })
	return out
}

// maxSharedNames caps the example compounds listed per coupling.
const maxSharedNames = 5

func (ix *index) couplings() []PathwayCoupling {
	pwys := make([]string, 0, len(ix.members))
	for p := range ix.members {
		pwys = append(pwys, p)
	}
	sort.Strings(pwys)

	out := []PathwayCoupling{}
	for i := 0; i < len(pwys); i++ {
		for j := i + 1; j < len(pwys); j++ {
			a, b := ix.members[pwys[i]], ix.members[pwys[j]]
			var shared []string
			for c := range a {
				if b[c] {
					shared = append(shared, c)
				}
			}
			if len(shared) == 0 {
				continue
			}
			sort.Strings(shared)
			names := make([]string, 0, maxSharedNames)
			for _, c := range truncate(shared, maxSharedNames) {
				names = append(names, ix.name(c))
			}
			out = append(out, PathwayCoupling{
				PathwayA:    pwys[i],
				NameA:       ix.name(pwys[i]),
				PathwayB:    pwys[j],
				NameB:       ix.name(pwys[j]),
				SharedCount: len(shared),
				SharedNames: names,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SharedCount > out[j].SharedCount })
	return out
}

func (ix *index) deadEnds(nodes []model.Node) []DeadEnd {
	out := []DeadEnd{}
	for _, n := range nodes {
		if !n.IsCompound() {
			continue
		}
		sub, prod := ix.asSub[n.ID], ix.asProd[n.ID]
		var role string
		switch {
		case sub > 0 && prod == 0:
			role = RoleSubstrateOnly
		case prod > 0 && sub == 0:
			role = RoleProductOnly
		default:
			continue
		}
		out = append(out, DeadEnd{ID: n.ID, Name: n.Name, Formula: n.Formula, ReactionCount: sub + prod, Role: role})
	}
	return out
}

func (ix *index) isolated(nodes []model.Node) []IsolatedNode {
	out := []IsolatedNode{}
	for _, n := range nodes {
		if !ix.touched[n.ID] {
			out = append(out, IsolatedNode{ID: n.ID, Name: n.Name, Kind: n.Kind})
		}
	}
	return out
}

func (ix *index) enzymes(nodes []model.Node) []EnzymeRank {
	out := []EnzymeRank{}
	for _, n := range nodes {
		if !n.IsEnzyme() || ix.catalysed[n.ID] == 0 {
			continue
		}
		out = append(out, EnzymeRank{ID: n.ID, Name: n.Name, ECNumber: n.ECNumber, ReactionCount: ix.catalysed[n.ID]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ReactionCount > out[j].ReactionCount })
	return out
}

func (ix *index) profiles(nodes []model.Node) []PathwayProfile {
	out := []PathwayProfile{}
	for _, n := range nodes {
		if !n.IsPathway() {
			continue
		}
		p := PathwayProfile{ID: n.ID, Name: n.Name, CompoundCount: len(ix.members[n.ID])}
		enzymes := map[string]bool{}
		for _, id := range ix.contains[n.ID] {
			if m, ok := ix.nodes[id]; ok && m.IsReaction() {
				p.ReactionCount++
				for e := range ix.catalysts[id] {
					enzymes[e] = true
				}
			}
		}
		p.EnzymeCount = len(enzymes)
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ReactionCount > out[j].ReactionCount })
	return out
}

func (ix *index) name(id string) string {
	if n, ok := ix.nodes[id]; ok && n.Name != "" {
		return n.Name
	}
	return id
}
