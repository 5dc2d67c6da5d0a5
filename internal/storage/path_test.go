package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/matsen/metakg/internal/model"
)

func TestDB_FindShortestPath(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		from, to string
		maxHops  int
		wantIDs  []string
		wantNone bool
	}{
		{
			name: "substrate to product through one reaction",
			from: "cpd:kegg:C00031", to: "cpd:kegg:C00092", maxHops: 2,
			wantIDs: []string{"cpd:kegg:C00031", "rxn:kegg:R00299", "cpd:kegg:C00092"},
		},
		{
			name: "two reactions",
			from: "cpd:kegg:C00031", to: "cpd:kegg:C00085", maxHops: 6,
			wantIDs: []string{"cpd:kegg:C00031", "rxn:kegg:R00299", "cpd:kegg:C00092", "rxn:kegg:R02740", "cpd:kegg:C00085"},
		},
		{
			name: "traversal ignores edge direction",
			from: "cpd:kegg:C00085", to: "cpd:kegg:C00031", maxHops: 4,
			wantIDs: []string{"cpd:kegg:C00085", "rxn:kegg:R02740", "cpd:kegg:C00092", "rxn:kegg:R00299", "cpd:kegg:C00031"},
		},
		{
			name: "hop budget too small",
			from: "cpd:kegg:C00031", to: "cpd:kegg:C00085", maxHops: 3,
			wantNone: true,
		},
		{
			name: "zero hops",
			from: "cpd:kegg:C00031", to: "cpd:kegg:C00092", maxHops: 0,
			wantNone: true,
		},
		{
			name: "same node",
			from: "cpd:kegg:C00031", to: "cpd:kegg:C00031", maxHops: 0,
			wantIDs: []string{"cpd:kegg:C00031"},
		},
		{
			name: "enzyme not reachable through metabolic relations",
			from: "cpd:kegg:C00031", to: "enz:kegg:hsa:3098", maxHops: 6,
			wantNone: true,
		},
		{
			name: "unknown endpoint",
			from: "cpd:kegg:C00031", to: "cpd:kegg:C99999", maxHops: 6,
			wantNone: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := db.FindShortestPath(ctx, tt.from, tt.to, tt.maxHops)
			if err != nil {
				t.Fatalf("FindShortestPath failed: %v", err)
			}
			if tt.wantNone {
				if path != nil {
					t.Errorf("expected no path, got %v", path.NodeIDs)
				}
				return
			}
			if path == nil {
				t.Fatal("expected a path, got none")
			}
			if diff := cmp.Diff(tt.wantIDs, path.NodeIDs); diff != "" {
				t.Errorf("path mismatch (-want +got):\n%s", diff)
			}
			if path.Hops != len(tt.wantIDs)-1 || len(path.Edges) != path.Hops {
				t.Errorf("hops = %d with %d edges, want %d", path.Hops, len(path.Edges), len(tt.wantIDs)-1)
			}
			for i, e := range path.Edges {
				a, b := path.NodeIDs[i], path.NodeIDs[i+1]
				if !(e.Src == a && e.Dst == b) && !(e.Src == b && e.Dst == a) {
					t.Errorf("edge %d (%s->%s) does not join %s and %s", i, e.Src, e.Dst, a, b)
				}
			}
		})
	}
}

func TestDB_FindShortestPath_CustomRelations(t *testing.T) {
	db := setupTestDB(t)

	path, err := db.FindShortestPath(context.Background(), "cpd:kegg:C00031", "enz:kegg:hsa:3098", 4,
		model.RelSubstrateOf, model.RelCatalyzes)
	if err != nil {
		t.Fatal(err)
	}
	if path == nil || path.Hops != 2 {
		t.Fatalf("expected 2-hop path via catalysis, got %+v", path)
	}
	if path.Edges[1].Rel != model.RelCatalyzes {
		t.Errorf("expected second edge to be CATALYZES, got %s", path.Edges[1].Rel)
	}
}

func TestDB_FindShortestPath_PrefersShorterBranch(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()

	// A -> r1 -> B -> r2 -> C and a shortcut A -> r3 -> C
	cpd := func(id string) model.Node { return model.Node{ID: id, Kind: model.KindCompound, Name: id} }
	rxn := func(id string) model.Node { return model.Node{ID: id, Kind: model.KindReaction, Name: id} }
	nodes := []model.Node{cpd("cpd:a"), cpd("cpd:b"), cpd("cpd:c"), rxn("rxn:1"), rxn("rxn:2"), rxn("rxn:3")}
	edges := []model.Edge{
		{Src: "cpd:a", Rel: model.RelSubstrateOf, Dst: "rxn:1"},
		{Src: "rxn:1", Rel: model.RelProductOf, Dst: "cpd:b"},
		{Src: "cpd:b", Rel: model.RelSubstrateOf, Dst: "rxn:2"},
		{Src: "rxn:2", Rel: model.RelProductOf, Dst: "cpd:c"},
		{Src: "cpd:a", Rel: model.RelSubstrateOf, Dst: "rxn:3"},
		{Src: "rxn:3", Rel: model.RelProductOf, Dst: "cpd:c"},
	}
	if _, err := db.Write(ctx, nodes, edges, true); err != nil {
		t.Fatal(err)
	}

	path, err := db.FindShortestPath(ctx, "cpd:a", "cpd:c", 6)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"cpd:a", "rxn:3", "cpd:c"}, path.NodeIDs); diff != "" {
		t.Errorf("expected shortcut (-want +got):\n%s", diff)
	}
}
