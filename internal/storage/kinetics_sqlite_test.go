package storage

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/matsen/metakg/internal/model"
)

func TestDB_UpsertKineticParams(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	kp := model.KineticParam{
		EnzymeID:       "enz:kegg:hsa:3098",
		ReactionID:     "rxn:kegg:R00299",
		Km:             model.Float(0.1),
		Vmax:           model.Float(2.8),
		Kcat:           model.Float(100),
		SourceDatabase: "literature",
		Organism:       "Homo sapiens",
	}

	n, err := db.UpsertKineticParams(ctx, []model.KineticParam{kp}, false)
	if err != nil {
		t.Fatalf("UpsertKineticParams failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 row written, got %d", n)
	}

	got, err := db.KineticParamsFor(ctx, "rxn:kegg:R00299")
	if err != nil {
		t.Fatal(err)
	}
	want := kp
	want.AssignID()
	if diff := cmp.Diff([]model.KineticParam{want}, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	// Without force the existing row is kept.
	changed := kp
	changed.Vmax = model.Float(9)
	n, err = db.UpsertKineticParams(ctx, []model.KineticParam{changed}, false)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("expected existing row to be skipped, wrote %d", n)
	}

	// With force it is overwritten.
	n, err = db.UpsertKineticParams(ctx, []model.KineticParam{changed}, true)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected forced overwrite, wrote %d", n)
	}
	all, err := db.AllKineticParams(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || *all[0].Vmax != 9 {
		t.Errorf("unexpected rows after force: %+v", all)
	}
}

func TestDB_UpsertKineticParams_UnknownNode(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.UpsertKineticParams(context.Background(), []model.KineticParam{
		{ReactionID: "rxn:kegg:R99999", Vmax: model.Float(1)},
	}, false)
	if err == nil {
		t.Error("expected foreign key failure for unknown reaction")
	}
}

func TestDB_UpsertRegulatoryInteractions(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	ri := model.RegulatoryInteraction{
		EnzymeID:        "enz:kegg:hsa:3098",
		CompoundID:      "cpd:kegg:C00092",
		InteractionType: model.FeedbackInhibitor,
		KiAllosteric:    model.Float(0.3),
		Site:            "active",
	}
	n, err := db.UpsertRegulatoryInteractions(ctx, []model.RegulatoryInteraction{ri, ri}, false)
	if err != nil {
		t.Fatalf("UpsertRegulatoryInteractions failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected duplicate to be skipped, wrote %d", n)
	}

	got, err := db.RegulatoryFor(ctx, []string{"enz:kegg:hsa:3098"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != model.RegulatoryID(ri.EnzymeID, ri.CompoundID, ri.InteractionType) {
		t.Errorf("unexpected regulatory rows: %+v", got)
	}

	stats, err := db.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.RegulatoryInteractions != 1 {
		t.Errorf("stats.RegulatoryInteractions = %d", stats.RegulatoryInteractions)
	}
}

func TestDB_WipeClearsKinetics(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.UpsertKineticParams(ctx, []model.KineticParam{{ReactionID: "rxn:kegg:R00299", Vmax: model.Float(1)}}, false); err != nil {
		t.Fatal(err)
	}
	nodes, edges := testGraph()
	if _, err := db.Write(ctx, nodes, edges, true); err != nil {
		t.Fatalf("wipe write with kinetics present failed: %v", err)
	}
	all, err := db.AllKineticParams(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Errorf("expected kinetics cleared by wipe, got %d rows", len(all))
	}
}
