package model

import "fmt"

// Relation is the type of a directed edge.
type Relation string

const (
	RelSubstrateOf Relation = "SUBSTRATE_OF" // compound -> reaction
	RelProductOf   Relation = "PRODUCT_OF"   // reaction -> compound
	RelCatalyzes   Relation = "CATALYZES"    // enzyme -> reaction
	RelInhibits    Relation = "INHIBITS"     // compound -> reaction
	RelActivates   Relation = "ACTIVATES"    // compound -> reaction
	RelContains    Relation = "CONTAINS"     // pathway -> member
	RelXref        Relation = "XREF"         // identity cross-link
)

// Relations lists every relation in a stable order.
var Relations = []Relation{
	RelSubstrateOf, RelProductOf, RelCatalyzes,
	RelInhibits, RelActivates, RelContains, RelXref,
}

// MetabolicRelations are the relations traversed by default when searching for paths.
var MetabolicRelations = []Relation{RelSubstrateOf, RelProductOf}

// Valid reports whether r is a known relation.
func (r Relation) Valid() bool {
	for _, known := range Relations {
		if r == known {
			return true
		}
	}
	return false
}

// Evidence is optional supporting data attached to an edge.
type Evidence struct {
	Stoich      *float64 `json:"stoich,omitempty"`
	Compartment string   `json:"compartment,omitempty"`
	Reference   string   `json:"reference,omitempty"`
	Note        string   `json:"note,omitempty"`
}

// Edge is a directed, typed relation between two nodes.
type Edge struct {
	// Identity: (Src, Rel, Dst) tuple
	Src string   `json:"src"`
	Rel Relation `json:"rel"`
	Dst string   `json:"dst"`

	Evidence *Evidence `json:"evidence,omitempty"`
}

// Coefficient returns the stoichiometric coefficient carried by the edge, 1 if absent.
func (e *Edge) Coefficient() float64 {
	if e.Evidence == nil || e.Evidence.Stoich == nil {
		return 1.0
	}
	return *e.Evidence.Stoich
}

// Other returns the endpoint of e that is not id.
func (e *Edge) Other(id string) string {
	if e.Src == id {
		return e.Dst
	}
	return e.Src
}

// Validate checks that the edge can be persisted.
func (e *Edge) Validate() error {
	if e.Src == "" || e.Dst == "" {
		return fmt.Errorf("edge %s-%s->%s: %w", e.Src, e.Rel, e.Dst, ErrEmptyEndpoint)
	}
	if e.Rel == "" {
		return fmt.Errorf("edge %s->%s: %w", e.Src, e.Dst, ErrEmptyRelation)
	}
	if !e.Rel.Valid() {
		return fmt.Errorf("edge %s->%s: %w: %q", e.Src, e.Dst, ErrUnknownRelation, e.Rel)
	}
	return nil
}

// Key returns the unique identity tuple for this edge.
func (e *Edge) Key() EdgeKey {
	return EdgeKey{Src: e.Src, Rel: e.Rel, Dst: e.Dst}
}

// EdgeKey represents the unique identity of an edge.
type EdgeKey struct {
	Src string
	Rel Relation
	Dst string
}

// DanglingEdge describes an edge whose endpoints are not known nodes.
type DanglingEdge struct {
	Src    string   `json:"src"`
	Rel    Relation `json:"rel"`
	Dst    string   `json:"dst"`
	Reason string   `json:"reason"` // "missing_src", "missing_dst", or "missing_both"
}

// DetectDanglingEdges finds edges that reference nodes not accepted by known.
// Returns dangling edges with their reasons and the list of valid edges.
func DetectDanglingEdges(edges []Edge, known func(id string) bool) (dangling []DanglingEdge, valid []Edge) {
	for _, e := range edges {
		srcOK := known(e.Src)
		dstOK := known(e.Dst)

		if srcOK && dstOK {
			valid = append(valid, e)
			continue
		}
		info := DanglingEdge{Src: e.Src, Rel: e.Rel, Dst: e.Dst}
		switch {
		case !srcOK && !dstOK:
			info.Reason = "missing_both"
		case !srcOK:
			info.Reason = "missing_src"
		default:
			info.Reason = "missing_dst"
		}
		dangling = append(dangling, info)
	}
	return dangling, valid
}

// DedupeEdges keeps the last occurrence of each edge key, preserving first-seen order.
func DedupeEdges(edges []Edge) []Edge {
	index := make(map[EdgeKey]int, len(edges))
	out := make([]Edge, 0, len(edges))
	for _, e := range edges {
		if i, ok := index[e.Key()]; ok {
			out[i] = e
			continue
		}
		index[e.Key()] = len(out)
		out = append(out, e)
	}
	return out
}

// MergeNodes keeps the last record for each id, preserving first-seen order.
func MergeNodes(nodes []Node) []Node {
	index := make(map[string]int, len(nodes))
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if i, ok := index[n.ID]; ok {
			out[i] = n
			continue
		}
		index[n.ID] = len(out)
		out = append(out, n)
	}
	return out
}
