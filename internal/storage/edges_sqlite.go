package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/matsen/metakg/internal/model"
)

const selectEdgeFields = `src, rel, dst, evidence`

// EdgesOf returns every edge incident to id regardless of direction, optionally
// restricted to the given relations. Edges are ordered by (src, rel, dst).
func (d *DB) EdgesOf(ctx context.Context, id string, rels ...model.Relation) ([]model.Edge, error) {
	query := `SELECT ` + selectEdgeFields + ` FROM edges WHERE (src = ? OR dst = ?)`
	args := []interface{}{id, id}
	if len(rels) > 0 {
		query += ` AND rel IN (` + placeholders(len(rels)) + `)`
		for _, r := range rels {
			args = append(args, string(r))
		}
	}
	query += ` ORDER BY src, rel, dst`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying edges of %s: %w", id, err)
	}
	defer rows.Close()

	return scanEdges(rows)
}

// Neighbours returns the distinct ids adjacent to id along the given relations
// (all relations when none are given), in either direction, sorted.
func (d *DB) Neighbours(ctx context.Context, id string, rels ...model.Relation) ([]string, error) {
	edges, err := d.EdgesOf(ctx, id, rels...)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, e := range edges {
		other := e.Other(id)
		if other == id || seen[other] {
			continue
		}
		seen[other] = true
		out = append(out, other)
	}
	sort.Strings(out)
	return out, nil
}

// EdgesWithin returns all edges whose endpoints are both in ids.
func (d *DB) EdgesWithin(ctx context.Context, ids []string) ([]model.Edge, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]interface{}, 0, 2*len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, args...)

	rows, err := d.db.QueryContext(ctx, `
		SELECT `+selectEdgeFields+` FROM edges
		WHERE src IN (`+placeholders(len(ids))+`) AND dst IN (`+placeholders(len(ids))+`)
		ORDER BY src, rel, dst
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying edges within set: %w", err)
	}
	defer rows.Close()

	return scanEdges(rows)
}

// EdgesByRelation returns all edges with the given relation.
func (d *DB) EdgesByRelation(ctx context.Context, rel model.Relation) ([]model.Edge, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+selectEdgeFields+` FROM edges WHERE rel = ? ORDER BY src, dst
	`, string(rel))
	if err != nil {
		return nil, fmt.Errorf("querying edges by relation: %w", err)
	}
	defer rows.Close()

	return scanEdges(rows)
}

// AllEdges returns all edges in the database.
func (d *DB) AllEdges(ctx context.Context) ([]model.Edge, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT `+selectEdgeFields+` FROM edges ORDER BY src, rel, dst`)
	if err != nil {
		return nil, fmt.Errorf("querying all edges: %w", err)
	}
	defer rows.Close()

	return scanEdges(rows)
}

// CountEdges returns the total number of edges.
func (d *DB) CountEdges(ctx context.Context) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM edges").Scan(&count)
	return count, err
}

// scanEdges scans rows into a slice of edges.
func scanEdges(rows *sql.Rows) ([]model.Edge, error) {
	var edges []model.Edge
	for rows.Next() {
		var e model.Edge
		var rel string
		var evidence sql.NullString
		if err := rows.Scan(&e.Src, &rel, &e.Dst, &evidence); err != nil {
			return nil, err
		}
		e.Rel = model.Relation(rel)
		if evidence.Valid {
			var ev model.Evidence
			if err := json.Unmarshal([]byte(evidence.String), &ev); err != nil {
				return nil, fmt.Errorf("parsing evidence for %s->%s: %w", e.Src, e.Dst, err)
			}
			e.Evidence = &ev
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
