package storage

import (
	"context"
	"fmt"
	"sort"

	"github.com/matsen/metakg/internal/model"
)

// DefaultMaxHops bounds path searches when the caller does not choose a limit.
const DefaultMaxHops = 6

// Path is a shortest route between two nodes.
type Path struct {
	NodeIDs []string     `json:"node_ids"`
	Nodes   []model.Node `json:"nodes"`
	// Edges[i] connects NodeIDs[i] and NodeIDs[i+1], in either direction.
	Edges []model.Edge `json:"edges"`
	Hops  int          `json:"hops"`
}

// step records how a node was reached during search.
type step struct {
	prev string
	edge model.Edge
}

// frontier is one side of the bidirectional search.
type frontier struct {
	dist   map[string]int
	parent map[string]step
	level  []string
	depth  int
}

func newFrontier(start string) *frontier {
	return &frontier{
		dist:   map[string]int{start: 0},
		parent: map[string]step{},
		level:  []string{start},
	}
}

// FindShortestPath finds a minimum-hop path between a and b, treating edges as
// undirected and following only rels (SUBSTRATE_OF and PRODUCT_OF by default).
// Hops count edges. Returns nil, nil when no path of at most maxHops exists.
//
// The search is a bidirectional breadth-first search that expands one full
// level at a time, alternating between the two ends. Ties between equally short
// paths are broken by the smallest meeting node id.
func (d *DB) FindShortestPath(ctx context.Context, a, b string, maxHops int, rels ...model.Relation) (*Path, error) {
	if len(rels) == 0 {
		rels = model.MetabolicRelations
	}

	for _, id := range []string{a, b} {
		n, err := d.Node(ctx, id)
		if err != nil {
			return nil, err
		}
		if n == nil {
			return nil, nil
		}
	}

	if a == b {
		return d.buildPath(ctx, []string{a}, nil)
	}

	fwd, bwd := newFrontier(a), newFrontier(b)
	expandFwd := true
	for fwd.depth+bwd.depth < maxHops {
		if len(fwd.level) == 0 || len(bwd.level) == 0 {
			return nil, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		side, other := fwd, bwd
		if !expandFwd {
			side, other = bwd, fwd
		}
		expandFwd = !expandFwd

		next, err := d.expand(ctx, side, rels)
		if err != nil {
			return nil, err
		}

		var meets []string
		for _, id := range next {
			if _, ok := other.dist[id]; ok {
				meets = append(meets, id)
			}
		}
		if len(meets) > 0 {
			sort.Strings(meets)
			ids, edges := joinPaths(fwd, bwd, meets[0])
			return d.buildPath(ctx, ids, edges)
		}
	}
	return nil, nil
}

// expand visits every neighbour of the current level and advances the frontier.
func (d *DB) expand(ctx context.Context, f *frontier, rels []model.Relation) ([]string, error) {
	var next []string
	for _, id := range f.level {
		edges, err := d.EdgesOf(ctx, id, rels...)
		if err != nil {
			return nil, fmt.Errorf("expanding %s: %w", id, err)
		}
		for _, e := range edges {
			nb := e.Other(id)
			if nb == id {
				continue
			}
			if _, seen := f.dist[nb]; seen {
				continue
			}
			f.dist[nb] = f.depth + 1
			f.parent[nb] = step{prev: id, edge: e}
			next = append(next, nb)
		}
	}
	sort.Strings(next)
	f.level = next
	f.depth++
	return next, nil
}

// joinPaths stitches the forward chain a..meet and the backward chain meet..b.
func joinPaths(fwd, bwd *frontier, meet string) ([]string, []model.Edge) {
	var ids []string
	var edges []model.Edge
	for cur := meet; ; {
		ids = append(ids, cur)
		s, ok := fwd.parent[cur]
		if !ok {
			break
		}
		edges = append(edges, s.edge)
		cur = s.prev
	}
	reverseStrings(ids)
	reverseEdges(edges)

	for cur := meet; ; {
		s, ok := bwd.parent[cur]
		if !ok {
			break
		}
		edges = append(edges, s.edge)
		cur = s.prev
		ids = append(ids, cur)
	}
	return ids, edges
}

func (d *DB) buildPath(ctx context.Context, ids []string, edges []model.Edge) (*Path, error) {
	nodes := make([]model.Node, 0, len(ids))
	for _, id := range ids {
		n, err := d.Node(ctx, id)
		if err != nil {
			return nil, err
		}
		if n != nil {
			nodes = append(nodes, *n)
		}
	}
	if edges == nil {
		edges = []model.Edge{}
	}
	return &Path{NodeIDs: ids, Nodes: nodes, Edges: edges, Hops: len(edges)}, nil
}

func reverseStrings(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func reverseEdges(s []model.Edge) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
