package graph

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matsen/metakg/internal/model"
	"github.com/matsen/metakg/internal/storage"
)

func openStore(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.OpenDB(filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const fileA = `{"type":"node","node":{"id":"cpd:kegg:C00031","kind":"compound","name":"Glucose","xrefs":{"kegg":"C00031"}}}
{"type":"node","node":{"id":"rxn:kegg:R00299","kind":"reaction","name":"HK"}}
{"type":"edge","edge":{"src":"cpd:kegg:C00031","rel":"SUBSTRATE_OF","dst":"rxn:kegg:R00299"}}
`

const fileB = `{"type":"node","node":{"id":"cpd:kegg:C00031","kind":"compound","name":"D-Glucose","xrefs":{"kegg":"C00031"}}}
{"type":"node","node":{"id":"cpd:kegg:C00092","kind":"compound","name":"G6P"}}
{"type":"edge","edge":{"src":"rxn:kegg:R00299","rel":"PRODUCT_OF","dst":"cpd:kegg:C00092"}}
{"type":"edge","edge":{"src":"cpd:kegg:C00031","rel":"SUBSTRATE_OF","dst":"rxn:kegg:R00299"}}
`

func TestBuilder_Build(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.jsonl", fileA)
	writeFile(t, dir, "sub/b.jsonl", fileB)
	writeFile(t, dir, "notes.txt", "ignored")
	writeFile(t, dir, "broken.jsonl", "{not json\n")

	db := openStore(t)
	ctx := context.Background()
	res, err := NewBuilder(db).Build(ctx, []string{dir}, true)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Files)
	assert.Equal(t, 3, res.Nodes)
	assert.Equal(t, 2, res.Edges)
	assert.Equal(t, 1, res.XrefRows)
	require.Len(t, res.ParseErrors, 1)
	assert.Contains(t, res.ParseErrors[0].File, "broken.jsonl")

	// b.jsonl sorts after a.jsonl, so its glucose record wins.
	glucose, err := db.Node(ctx, "cpd:kegg:C00031")
	require.NoError(t, err)
	assert.Equal(t, "D-Glucose", glucose.Name)

	id, ok, err := db.ResolveID(ctx, "kegg:C00031")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "cpd:kegg:C00031", id)
}

func TestBuilder_Build_Idempotent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.jsonl", fileA)

	db := openStore(t)
	b := NewBuilder(db)
	first, err := b.Build(context.Background(), []string{dir}, true)
	require.NoError(t, err)
	second, err := b.Build(context.Background(), []string{dir}, true)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBuilder_Build_ValidationIsFatal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.jsonl", `{"type":"edge","edge":{"src":"cpd:x","rel":"SUBSTRATE_OF","dst":"rxn:y"}}`+"\n")

	_, err := NewBuilder(openStore(t)).Build(context.Background(), []string{dir}, true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, storage.ErrValidation))
}

func TestBuilder_Build_CustomParser(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "pathway.tsv", "ignored by the fake parser")

	db := openStore(t)
	b := NewBuilder(db)
	b.Registry.Register("TSV", ParserFunc(func(p string) ([]model.Node, []model.Edge, error) {
		return []model.Node{{ID: model.SyntheticID(model.KindCompound, "water"), Kind: model.KindCompound, Name: "water", SourceFile: p}}, nil, nil
	}))

	res, err := b.Build(context.Background(), []string{path}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Nodes)
	assert.Equal(t, []string{".jsonl", ".tsv"}, b.Registry.Extensions())
}

func TestBuilder_Build_MissingInput(t *testing.T) {
	_, err := NewBuilder(openStore(t)).Build(context.Background(), []string{"/nonexistent/dir"}, true)
	assert.Error(t, err)
}

func TestParseError(t *testing.T) {
	pe := ParseError{File: "x.xml", Err: "bad"}
	assert.Equal(t, "parsing x.xml: bad", pe.Error())
}
