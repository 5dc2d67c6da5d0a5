package storage

import (
	"context"
	"testing"

	"github.com/matsen/metakg/internal/model"
)

func TestDB_ReactionDetail(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	detail, err := db.ReactionDetail(ctx, "rxn:kegg:R00299")
	if err != nil {
		t.Fatalf("ReactionDetail failed: %v", err)
	}
	if detail == nil {
		t.Fatal("expected detail, got nil")
	}
	if len(detail.Substrates) != 1 || detail.Substrates[0].ID != "cpd:kegg:C00031" || detail.Substrates[0].Stoich != 1 {
		t.Errorf("unexpected substrates: %+v", detail.Substrates)
	}
	if len(detail.Products) != 1 || detail.Products[0].ID != "cpd:kegg:C00092" {
		t.Errorf("unexpected products: %+v", detail.Products)
	}
	if len(detail.Enzymes) != 1 || detail.Enzymes[0].Role != model.RelCatalyzes {
		t.Errorf("unexpected enzymes: %+v", detail.Enzymes)
	}

	notReaction, err := db.ReactionDetail(ctx, "cpd:kegg:C00031")
	if err != nil || notReaction != nil {
		t.Errorf("ReactionDetail(compound) = %v, %v; want nil, nil", notReaction, err)
	}
}

func TestDB_CompoundDetail(t *testing.T) {
	db := setupTestDB(t)

	detail, err := db.CompoundDetail(context.Background(), "cpd:kegg:C00092")
	if err != nil {
		t.Fatal(err)
	}
	if detail == nil || len(detail.Reactions) != 2 {
		t.Fatalf("expected G6P in 2 reactions, got %+v", detail)
	}
	roles := map[model.Relation]bool{}
	for _, r := range detail.Reactions {
		roles[r.Role] = true
	}
	if !roles[model.RelSubstrateOf] || !roles[model.RelProductOf] {
		t.Errorf("expected both roles, got %v", roles)
	}
}

func TestDB_Stats(t *testing.T) {
	db := setupTestDB(t)

	stats, err := db.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalNodes != 7 || stats.TotalEdges != 7 {
		t.Errorf("totals = %d nodes, %d edges", stats.TotalNodes, stats.TotalEdges)
	}
	if stats.NodeCounts["compound"] != 3 || stats.NodeCounts["reaction"] != 2 {
		t.Errorf("unexpected node counts: %v", stats.NodeCounts)
	}
	if stats.EdgeCounts["CONTAINS"] != 2 {
		t.Errorf("unexpected edge counts: %v", stats.EdgeCounts)
	}
	if stats.XrefRows != 5 {
		t.Errorf("xref rows = %d, want 5", stats.XrefRows)
	}
}
