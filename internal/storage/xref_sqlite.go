package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/matsen/metakg/internal/ctxlog"
	"github.com/matsen/metakg/internal/model"
)

// BuildXrefIndex rebuilds the flat (db_name, ext_id) -> node_id index from every
// node's xrefs. Nodes are visited in id order and the first claim on a pair is
// kept, so a shared external id resolves to the lexicographically smallest node id.
// Returns the number of index rows.
func (d *DB) BuildXrefIndex(ctx context.Context) (int, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning xref rebuild: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM xref_index"); err != nil {
		return 0, fmt.Errorf("clearing xref_index table: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `SELECT `+selectNodeFields+` FROM nodes WHERE xrefs IS NOT NULL ORDER BY id`)
	if err != nil {
		return 0, fmt.Errorf("querying nodes with xrefs: %w", err)
	}
	type xrefRow struct{ nodeID, db, ext string }
	var pending []xrefRow
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			rows.Close()
			return 0, err
		}
		dbs := make([]string, 0, len(n.Xrefs))
		for db := range n.Xrefs {
			dbs = append(dbs, db)
		}
		sort.Strings(dbs)
		for _, db := range dbs {
			ext := n.Xrefs[db]
			if db == "" || ext == "" {
				continue
			}
			pending = append(pending, xrefRow{n.ID, strings.ToLower(db), ext})
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO xref_index (node_id, db_name, ext_id) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing xref insert: %w", err)
	}
	defer stmt.Close()

	count := 0
	for _, r := range pending {
		res, err := stmt.ExecContext(ctx, r.nodeID, r.db, r.ext)
		if err != nil {
			return 0, fmt.Errorf("inserting xref %s:%s: %w", r.db, r.ext, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			count += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing xref rebuild: %w", err)
	}
	ctxlog.FromContext(ctx).Info("built xref index", "rows", count)
	return count, nil
}

// NodeIDByXref returns the node id registered for (db, ext), or "" if none.
func (d *DB) NodeIDByXref(ctx context.Context, db, ext string) (string, error) {
	var id string
	err := d.db.QueryRowContext(ctx,
		`SELECT node_id FROM xref_index WHERE db_name = ? AND ext_id = ?`,
		strings.ToLower(db), ext,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying xref index: %w", err)
	}
	return id, nil
}

// ResolveID resolves a user-supplied identifier to a node id.
//
// Tiers, first match wins: exact primary key, "<db>:<ext>" shorthand through
// the xref index, then case-insensitive exact name with the lexicographically
// smallest id. Returns ok=false when nothing matches.
func (d *DB) ResolveID(ctx context.Context, userID string) (string, bool, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", false, nil
	}

	var id string
	err := d.db.QueryRowContext(ctx, `SELECT id FROM nodes WHERE id = ?`, userID).Scan(&id)
	switch {
	case err == nil:
		return id, true, nil
	case !errors.Is(err, sql.ErrNoRows):
		return "", false, fmt.Errorf("resolving by id: %w", err)
	}

	if db, ext, ok := model.SplitShorthand(userID); ok {
		id, err := d.NodeIDByXref(ctx, db, ext)
		if err != nil {
			return "", false, err
		}
		if id != "" {
			return id, true, nil
		}
	}

	err = d.db.QueryRowContext(ctx,
		`SELECT id FROM nodes WHERE name_key = ? ORDER BY id LIMIT 1`, nameKey(userID),
	).Scan(&id)
	switch {
	case err == nil:
		return id, true, nil
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	default:
		return "", false, fmt.Errorf("resolving by name: %w", err)
	}
}
