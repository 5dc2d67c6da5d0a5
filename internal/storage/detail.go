package storage

import (
	"context"
	"fmt"

	"github.com/matsen/metakg/internal/model"
)

// Participant is a compound taking part in a reaction.
type Participant struct {
	model.Node
	Stoich float64 `json:"stoich"`
}

// RoleNode is a node linked to another with a given relation.
type RoleNode struct {
	model.Node
	Role model.Relation `json:"role"`
}

// ReactionDetail is a reaction together with its participants and modifiers.
type ReactionDetail struct {
	model.Node
	Substrates []Participant `json:"substrates"`
	Products   []Participant `json:"products"`
	Enzymes    []RoleNode    `json:"enzymes"`
}

// CompoundDetail is a compound together with the reactions it takes part in.
type CompoundDetail struct {
	model.Node
	Reactions []RoleNode `json:"reactions"`
}

// ReactionDetail returns the reaction with its substrates, products and
// modifiers (CATALYZES, INHIBITS, ACTIVATES). Returns nil, nil if id is not a
// stored reaction.
func (d *DB) ReactionDetail(ctx context.Context, id string) (*ReactionDetail, error) {
	rxn, err := d.Node(ctx, id)
	if err != nil || rxn == nil || !rxn.IsReaction() {
		return nil, err
	}

	edges, err := d.EdgesOf(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &ReactionDetail{
		Node:       *rxn,
		Substrates: []Participant{},
		Products:   []Participant{},
		Enzymes:    []RoleNode{},
	}
	for _, e := range edges {
		switch {
		case e.Rel == model.RelSubstrateOf && e.Dst == id:
			n, err := d.Node(ctx, e.Src)
			if err != nil {
				return nil, err
			}
			if n != nil {
				detail.Substrates = append(detail.Substrates, Participant{Node: *n, Stoich: e.Coefficient()})
			}
		case e.Rel == model.RelProductOf && e.Src == id:
			n, err := d.Node(ctx, e.Dst)
			if err != nil {
				return nil, err
			}
			if n != nil {
				detail.Products = append(detail.Products, Participant{Node: *n, Stoich: e.Coefficient()})
			}
		case isModifier(e.Rel) && e.Dst == id:
			n, err := d.Node(ctx, e.Src)
			if err != nil {
				return nil, err
			}
			if n != nil {
				detail.Enzymes = append(detail.Enzymes, RoleNode{Node: *n, Role: e.Rel})
			}
		}
	}
	return detail, nil
}

// CompoundDetail returns the node with every reaction it is a substrate or
// product of. Returns nil, nil if id is not stored.
func (d *DB) CompoundDetail(ctx context.Context, id string) (*CompoundDetail, error) {
	n, err := d.Node(ctx, id)
	if err != nil || n == nil {
		return nil, err
	}

	edges, err := d.EdgesOf(ctx, id, model.RelSubstrateOf, model.RelProductOf)
	if err != nil {
		return nil, err
	}

	detail := &CompoundDetail{Node: *n, Reactions: []RoleNode{}}
	for _, e := range edges {
		rxn, err := d.Node(ctx, e.Other(id))
		if err != nil {
			return nil, err
		}
		if rxn != nil {
			detail.Reactions = append(detail.Reactions, RoleNode{Node: *rxn, Role: e.Rel})
		}
	}
	return detail, nil
}

func isModifier(rel model.Relation) bool {
	return rel == model.RelCatalyzes || rel == model.RelInhibits || rel == model.RelActivates
}

// Stats summarises the contents of the store.
type Stats struct {
	TotalNodes             int            `json:"total_nodes"`
	TotalEdges             int            `json:"total_edges"`
	NodeCounts             map[string]int `json:"node_counts"`
	EdgeCounts             map[string]int `json:"edge_counts"`
	XrefRows               int            `json:"xref_rows"`
	KineticParams          int            `json:"kinetic_params"`
	RegulatoryInteractions int            `json:"regulatory_interactions"`
}

// Stats returns node and edge counts broken down by kind and relation.
func (d *DB) Stats(ctx context.Context) (*Stats, error) {
	s := &Stats{NodeCounts: map[string]int{}, EdgeCounts: map[string]int{}}

	if err := d.groupCount(ctx, `SELECT kind, COUNT(*) FROM nodes GROUP BY kind`, s.NodeCounts); err != nil {
		return nil, fmt.Errorf("counting nodes: %w", err)
	}
	if err := d.groupCount(ctx, `SELECT rel, COUNT(*) FROM edges GROUP BY rel`, s.EdgeCounts); err != nil {
		return nil, fmt.Errorf("counting edges: %w", err)
	}
	for _, c := range s.NodeCounts {
		s.TotalNodes += c
	}
	for _, c := range s.EdgeCounts {
		s.TotalEdges += c
	}

	counts := []struct {
		table string
		dest  *int
	}{
		{"xref_index", &s.XrefRows},
		{"kinetic_parameters", &s.KineticParams},
		{"regulatory_interactions", &s.RegulatoryInteractions},
	}
	for _, c := range counts {
		if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("counting %s: %w", c.table, err)
		}
	}
	return s, nil
}

func (d *DB) groupCount(ctx context.Context, query string, into map[string]int) error {
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		into[key] = n
	}
	return rows.Err()
}
