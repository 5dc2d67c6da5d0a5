// Package storage persists the metabolic graph in SQLite and answers queries over it.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/matsen/metakg/internal/ctxlog"
	"github.com/matsen/metakg/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrValidation marks a malformed node or edge that aborts a write.
var ErrValidation = errors.New("validation error")

// DB wraps a SQLite database connection.
type DB struct {
	db *sql.DB
}

// selectNodeFields contains the standard field list for node SELECT queries.
const selectNodeFields = `id, kind, name, description, formula, charge, ec_number,
	stoichiometry, xrefs, source_format, source_file`

// dsn enables write-ahead logging with relaxed durability and foreign keys.
func dsn(path string) string {
	return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
}

// OpenDB opens or creates a SQLite database at the given path and applies migrations.
func OpenDB(path string) (*DB, error) {
	return OpenDBContext(context.Background(), path)
}

// OpenDBContext is OpenDB with a context for the migration step.
func OpenDBContext(ctx context.Context, path string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func migrate(ctx context.Context, db *sql.DB) error {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, sub)
	if err != nil {
		return fmt.Errorf("creating migration provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return err
	}
	for _, r := range results {
		ctxlog.FromContext(ctx).Debug("applied migration", "version", r.Source.Version, "path", r.Source.Path)
	}
	return nil
}

// WriteResult reports how many records a write persisted.
type WriteResult struct {
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}

// Write persists nodes and edges in one transaction.
//
// With wipe set, every table is cleared first. Otherwise an existing node with
// the same id is replaced as a whole record and an existing edge with the same
// (src, rel, dst) gets the new evidence. Any malformed record or edge endpoint
// unknown to both the batch and the store aborts the write with ErrValidation
// and leaves the store unchanged.
func (d *DB) Write(ctx context.Context, nodes []model.Node, edges []model.Edge, wipe bool) (WriteResult, error) {
	nodes = model.MergeNodes(nodes)
	edges = model.DedupeEdges(edges)

	batch := make(map[string]bool, len(nodes))
	for i := range nodes {
		if err := nodes[i].Validate(); err != nil {
			return WriteResult{}, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		batch[nodes[i].ID] = true
	}
	for i := range edges {
		if err := edges[i].Validate(); err != nil {
			return WriteResult{}, fmt.Errorf("%w: %w", ErrValidation, err)
		}
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return WriteResult{}, fmt.Errorf("beginning write: %w", err)
	}
	defer tx.Rollback()

	if wipe {
		if err := wipeTables(ctx, tx); err != nil {
			return WriteResult{}, err
		}
	}

	// Endpoints outside the batch must already be stored.
	var lookupErr error
	known := func(id string) bool {
		if batch[id] {
			return true
		}
		if wipe || lookupErr != nil {
			return false
		}
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM nodes WHERE id = ?`, id).Scan(&one)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			lookupErr = err
		}
		return err == nil
	}
	dangling, _ := model.DetectDanglingEdges(edges, known)
	if lookupErr != nil {
		return WriteResult{}, fmt.Errorf("checking edge endpoints: %w", lookupErr)
	}
	if len(dangling) > 0 {
		first := dangling[0]
		return WriteResult{}, fmt.Errorf("%w: edge %s-%s->%s: %s (%d dangling edges)",
			ErrValidation, first.Src, first.Rel, first.Dst, first.Reason, len(dangling))
	}

	nodeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO nodes (`+selectNodeFields+`, name_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			name = excluded.name,
			name_key = excluded.name_key,
			description = excluded.description,
			formula = excluded.formula,
			charge = excluded.charge,
			ec_number = excluded.ec_number,
			stoichiometry = excluded.stoichiometry,
			xrefs = excluded.xrefs,
			source_format = excluded.source_format,
			source_file = excluded.source_file
	`)
	if err != nil {
		return WriteResult{}, fmt.Errorf("preparing node upsert: %w", err)
	}
	defer nodeStmt.Close()

	for _, n := range nodes {
		stoichJSON, err := marshalNullable(n.Stoichiometry, n.Stoichiometry == nil)
		if err != nil {
			return WriteResult{}, fmt.Errorf("marshaling stoichiometry for %s: %w", n.ID, err)
		}
		xrefsJSON, err := marshalNullable(n.Xrefs, n.Xrefs == nil)
		if err != nil {
			return WriteResult{}, fmt.Errorf("marshaling xrefs for %s: %w", n.ID, err)
		}
		var charge sql.NullInt64
		if n.Charge != nil {
			charge = sql.NullInt64{Int64: int64(*n.Charge), Valid: true}
		}
		_, err = nodeStmt.ExecContext(ctx,
			n.ID, string(n.Kind), n.Name, nullableStringValue(n.Description),
			nullableStringValue(n.Formula), charge, nullableStringValue(n.ECNumber),
			stoichJSON, xrefsJSON,
			nullableStringValue(n.SourceFormat), nullableStringValue(n.SourceFile),
			nameKey(n.Name),
		)
		if err != nil {
			return WriteResult{}, fmt.Errorf("inserting node %s: %w", n.ID, err)
		}
	}

	edgeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO edges (src, rel, dst, evidence) VALUES (?, ?, ?, ?)
		ON CONFLICT(src, rel, dst) DO UPDATE SET evidence = excluded.evidence
	`)
	if err != nil {
		return WriteResult{}, fmt.Errorf("preparing edge upsert: %w", err)
	}
	defer edgeStmt.Close()

	for _, e := range edges {
		evidenceJSON, err := marshalNullable(e.Evidence, e.Evidence == nil)
		if err != nil {
			return WriteResult{}, fmt.Errorf("marshaling evidence for %s->%s: %w", e.Src, e.Dst, err)
		}
		if _, err := edgeStmt.ExecContext(ctx, e.Src, string(e.Rel), e.Dst, evidenceJSON); err != nil {
			return WriteResult{}, fmt.Errorf("inserting edge %s-%s->%s: %w", e.Src, e.Rel, e.Dst, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return WriteResult{}, fmt.Errorf("committing write: %w", err)
	}

	ctxlog.FromContext(ctx).Info("wrote graph", "nodes", len(nodes), "edges", len(edges), "wipe", wipe)
	return WriteResult{Nodes: len(nodes), Edges: len(edges)}, nil
}

// Wipe clears every table.
func (d *DB) Wipe(ctx context.Context) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning wipe: %w", err)
	}
	defer tx.Rollback()

	if err := wipeTables(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

// wipeTables deletes dependent rows before the nodes they reference.
func wipeTables(ctx context.Context, tx *sql.Tx) error {
	for _, table := range []string{"regulatory_interactions", "kinetic_parameters", "xref_index", "edges", "nodes"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s table: %w", table, err)
		}
	}
	return nil
}

// Node retrieves a node by id. Returns nil, nil if not found.
func (d *DB) Node(ctx context.Context, id string) (*model.Node, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+selectNodeFields+` FROM nodes WHERE id = ?`, id)
	return scanNode(row)
}

// NodesByID retrieves the nodes with the given ids, keyed by id. Missing ids are absent.
func (d *DB) NodesByID(ctx context.Context, ids []string) (map[string]model.Node, error) {
	out := make(map[string]model.Node, len(ids))
	for _, id := range ids {
		if _, ok := out[id]; ok {
			continue
		}
		n, err := d.Node(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("getting node %s: %w", id, err)
		}
		if n != nil {
			out[id] = *n
		}
	}
	return out, nil
}

// AllNodes returns every node of the given kind (all kinds when kind is empty), ordered by id.
func (d *DB) AllNodes(ctx context.Context, kind model.Kind) ([]model.Node, error) {
	query := `SELECT ` + selectNodeFields + ` FROM nodes`
	var args []interface{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY id`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}
	defer rows.Close()

	var nodes []model.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, *n)
	}
	return nodes, rows.Err()
}

// CountNodes returns the total number of nodes.
func (d *DB) CountNodes(ctx context.Context) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM nodes").Scan(&count)
	return count, err
}

// scanner interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanNode(s scanner) (*model.Node, error) {
	var n model.Node
	var kind string
	var description, formula, ecNumber, stoichJSON, xrefsJSON, sourceFormat, sourceFile sql.NullString
	var charge sql.NullInt64

	err := s.Scan(
		&n.ID, &kind, &n.Name, &description, &formula, &charge, &ecNumber,
		&stoichJSON, &xrefsJSON, &sourceFormat, &sourceFile,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	n.Kind = model.Kind(kind)
	n.Description = description.String
	n.Formula = formula.String
	n.ECNumber = ecNumber.String
	n.SourceFormat = sourceFormat.String
	n.SourceFile = sourceFile.String
	if charge.Valid {
		c := int(charge.Int64)
		n.Charge = &c
	}
	if stoichJSON.Valid {
		var st model.Stoichiometry
		if err := json.Unmarshal([]byte(stoichJSON.String), &st); err != nil {
			return nil, fmt.Errorf("parsing stoichiometry for %s: %w", n.ID, err)
		}
		n.Stoichiometry = &st
	}
	if xrefsJSON.Valid {
		if err := json.Unmarshal([]byte(xrefsJSON.String), &n.Xrefs); err != nil {
			return nil, fmt.Errorf("parsing xrefs for %s: %w", n.ID, err)
		}
	}
	return &n, nil
}

// marshalNullable encodes v as JSON, or returns nil for a NULL column.
func marshalNullable(v interface{}, isNil bool) (interface{}, error) {
	if isNil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// nullableStringValue returns nil for empty strings, otherwise the string.
func nullableStringValue(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// nullableFloat returns nil for a nil pointer, otherwise the value.
func nullableFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

// floatPtr converts a nullable column into a pointer.
func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

// nameKey is the case-folded form names are matched on. SQLite's LOWER only
// folds ASCII, so folding happens here.
func nameKey(name string) string {
	return strings.ToLower(name)
}
