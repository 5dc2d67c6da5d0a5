package stoich

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matsen/metakg/internal/model"
	"github.com/matsen/metakg/internal/storage"
)

// linearPathway writes A -R1-> B -R2-> C with enzyme E catalysing R1 and
// R2 reversible with a 2:1 coefficient on C.
func linearPathway(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.OpenDB(filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	irreversible := &model.Stoichiometry{Direction: model.DirectionIrreversible}
	nodes := []model.Node{
		{ID: "cpd:a", Kind: model.KindCompound, Name: "A"},
		{ID: "cpd:b", Kind: model.KindCompound, Name: "B"},
		{ID: "cpd:c", Kind: model.KindCompound, Name: "C"},
		{ID: "rxn:r1", Kind: model.KindReaction, Name: "R1", Stoichiometry: irreversible},
		{ID: "rxn:r2", Kind: model.KindReaction, Name: "R2", Stoichiometry: &model.Stoichiometry{Direction: model.DirectionReversible}},
		{ID: "enz:e", Kind: model.KindEnzyme, Name: "E"},
		{ID: "pwy:p", Kind: model.KindPathway, Name: "P"},
	}
	edges := []model.Edge{
		{Src: "cpd:a", Rel: model.RelSubstrateOf, Dst: "rxn:r1"},
		{Src: "rxn:r1", Rel: model.RelProductOf, Dst: "cpd:b"},
		{Src: "cpd:b", Rel: model.RelSubstrateOf, Dst: "rxn:r2"},
		{Src: "rxn:r2", Rel: model.RelProductOf, Dst: "cpd:c", Evidence: &model.Evidence{Stoich: model.Float(2)}},
		{Src: "enz:e", Rel: model.RelCatalyzes, Dst: "rxn:r1"},
		{Src: "pwy:p", Rel: model.RelContains, Dst: "rxn:r2"},
		{Src: "pwy:p", Rel: model.RelContains, Dst: "rxn:r1"},
		{Src: "pwy:p", Rel: model.RelContains, Dst: "cpd:a"},
	}
	_, err = db.Write(context.Background(), nodes, edges, true)
	require.NoError(t, err)
	return db
}

func TestBuild_Pathway(t *testing.T) {
	db := linearPathway(t)

	m, err := Build(context.Background(), db, Scope{PathwayID: "pwy:p"})
	require.NoError(t, err)

	assert.Equal(t, []string{"rxn:r1", "rxn:r2"}, m.Reactions)
	assert.Equal(t, []string{"cpd:a", "cpd:b", "cpd:c"}, m.Compounds)

	r, c := m.S.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 2, c)
	want := [][]float64{
		{-1, 0},
		{1, -1},
		{0, 2},
	}
	for i := range want {
		for j := range want[i] {
			assert.Equal(t, want[i][j], m.Coefficient(i, j), "S[%d][%d]", i, j)
		}
	}

	assert.Equal(t, []float64{0, -1000}, m.Lower)
	assert.Equal(t, []float64{1000, 1000}, m.Upper)
	assert.Equal(t, []bool{false, true}, m.Reversible)
	assert.Equal(t, []string{"enz:e"}, m.Enzymes["rxn:r1"])
	assert.Equal(t, []string{"rxn:r1"}, m.ReactionsByEnzyme("enz:e"))
	assert.Empty(t, m.ReactionsByEnzyme("enz:missing"))
	assert.Equal(t, []bool{true, false, true}, m.Boundary)

	assert.Equal(t, map[int]float64{1: 1}, m.Substrates(1))
	assert.Equal(t, map[int]float64{2: 2}, m.Products(1))
}

func TestBuild_Deterministic(t *testing.T) {
	db := linearPathway(t)
	ctx := context.Background()

	a, err := Build(ctx, db, Scope{ReactionIDs: []string{"rxn:r2", "rxn:r1"}})
	require.NoError(t, err)
	b, err := Build(ctx, db, Scope{ReactionIDs: []string{"rxn:r1", "rxn:r2"}})
	require.NoError(t, err)

	assert.Equal(t, a.Reactions, b.Reactions)
	assert.Equal(t, a.Compounds, b.Compounds)
	assert.Equal(t, a.S.RawMatrix().Data, b.S.RawMatrix().Data)
}

func TestBuild_ExplicitReactionsWinOverPathway(t *testing.T) {
	db := linearPathway(t)

	m, err := Build(context.Background(), db, Scope{PathwayID: "pwy:p", ReactionIDs: []string{"rxn:r1"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"rxn:r1"}, m.Reactions)
	assert.Equal(t, []string{"cpd:a", "cpd:b"}, m.Compounds)
}

func TestBuild_EmptyScopeUsesAllReactions(t *testing.T) {
	db := linearPathway(t)

	m, err := Build(context.Background(), db, Scope{})
	require.NoError(t, err)
	assert.Equal(t, []string{"rxn:r1", "rxn:r2"}, m.Reactions)
}

func TestBuild_SkipsUnknownReactions(t *testing.T) {
	db := linearPathway(t)

	m, err := Build(context.Background(), db, Scope{ReactionIDs: []string{"rxn:r1", "rxn:nope", "cpd:a"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"rxn:r1"}, m.Reactions)
	assert.Equal(t, []string{"rxn:nope", "cpd:a"}, m.Skipped)
}

func TestBuild_EmptyModel(t *testing.T) {
	db := linearPathway(t)

	m, err := Build(context.Background(), db, Scope{ReactionIDs: []string{"rxn:nope"}})
	require.NoError(t, err)
	assert.True(t, m.Empty())
	assert.Nil(t, m.S)
	assert.Equal(t, 0.0, m.Coefficient(0, 0))
}

func TestBuild_UnknownPathway(t *testing.T) {
	db := linearPathway(t)

	_, err := Build(context.Background(), db, Scope{PathwayID: "pwy:nope"})
	assert.True(t, errors.Is(err, ErrPathwayNotFound))
}

func TestBuild_FallsBackToStoichiometrySummary(t *testing.T) {
	db, err := storage.OpenDB(filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	defer db.Close()

	nodes := []model.Node{{
		ID: "rxn:summary", Kind: model.KindReaction, Name: "summary only",
		Stoichiometry: &model.Stoichiometry{
			Substrates: []model.StoichTerm{{ID: "cpd:x", Stoich: 2}},
			Products:   []model.StoichTerm{{ID: "cpd:y"}},
			Direction:  model.DirectionIrreversible,
		},
	}}
	_, err = db.Write(context.Background(), nodes, nil, true)
	require.NoError(t, err)

	m, err := Build(context.Background(), db, Scope{ReactionIDs: []string{"rxn:summary"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"cpd:x", "cpd:y"}, m.Compounds)
	assert.Equal(t, -2.0, m.Coefficient(0, 0))
	assert.Equal(t, 1.0, m.Coefficient(1, 0))
	assert.Equal(t, 0.0, m.Lower[0])
}
