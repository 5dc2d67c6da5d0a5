package kinetics

import (
	"context"
	"fmt"

	"github.com/matsen/metakg/internal/ctxlog"
	"github.com/matsen/metakg/internal/model"
)

// curated is one literature row keyed by KEGG reaction id. Km and Ki are in
// mM, Vmax in mM/s, kcat in 1/s and dG'0 in kJ/mol at pH 7.0 and 37 C.
type curated struct {
	reaction string
	vmax     float64
	km       float64
	kcat     float64
	keq      float64
	dg       float64
	source   string
	ref      string
}

var curatedKinetics = []curated{
	// Glycolysis
	{"R00299", 2.8, 0.10, 100, 1e4, -16.7, "literature", "PMID:10336622"}, // hexokinase
	{"R02740", 400, 0.11, 850, 0.3, 1.7, "brenda", "PMID:4950730"},        // glucose-6-phosphate isomerase
	{"R00756", 7.1, 0.09, 120, 1000, -14.2, "literature", "PMID:6296077"}, // phosphofructokinase
	{"R01068", 5.0, 0.003, 8.5, 1e-4, 23.8, "brenda", ""},                 // aldolase
	{"R01015", 420, 2.5, 4300, 0.045, 7.5, "brenda", ""},                  // triose-phosphate isomerase
	{"R01061", 80, 0.05, 100, 0.066, 6.3, "literature", ""},               // GAPDH
	{"R01512", 700, 0.04, 420, 3200, -18.8, "brenda", ""},                 // phosphoglycerate kinase
	{"R01518", 150, 0.16, 700, 0.17, 4.4, "brenda", ""},                   // phosphoglycerate mutase
	{"R00430", 35, 0.11, 350, 6.7, -3.2, "brenda", ""},                    // enolase
	{"R00196", 150, 0.05, 350, 1e5, -31.4, "literature", "PMID:4946357"},  // pyruvate kinase
	{"R00703", 200, 0.16, 250, 27400, -25.1, "brenda", ""},                // lactate dehydrogenase

	// Pyruvate oxidation and TCA cycle
	{"R00351", 1.0, 0.04, 25, 1e8, -33.4, "literature", ""}, // pyruvate dehydrogenase
	{"R00352", 0.5, 0.015, 30, 1e5, -31.4, "brenda", ""},    // citrate synthase
	{"R01324", 0.36, 0.5, 22, 0.066, 6.3, "brenda", ""},     // aconitase
	{"R00709", 0.5, 0.013, 40, 1e8, -20.9, "brenda", ""},    // isocitrate dehydrogenase
	{"R00621", 0.2, 0.07, 10, 1e8, -33.4, "brenda", ""},     // 2-oxoglutarate dehydrogenase
	{"R00432", 0.3, 0.25, 60, 3.8, -2.9, "brenda", ""},      // succinyl-CoA synthetase
	{"R02164", 0.15, 0.5, 17, 1.0, 0.0, "brenda", ""},       // succinate dehydrogenase
	{"R01082", 0.85, 0.09, 800, 4.4, -3.8, "brenda", ""},    // fumarase
	{"R00342", 0.8, 0.25, 200, 2.86e-5, 29.7, "brenda", ""}, // malate dehydrogenase

	// Pentose phosphate pathway
	{"R00835", 1.8, 0.067, 50, 1000, -17.6, "brenda", ""}, // G6P dehydrogenase
	{"R01641", 5.0, 0.8, 20, 1.0, 0.0, "brenda", ""},      // transketolase

	// Oxidative phosphorylation
	{"R02163", 0.5, 0.01, 200, 1e6, -69.3, "literature", ""}, // complex I
	{"R00081", 0.3, 0.002, 300, 1e15, -122.0, "brenda", ""},  // cytochrome c oxidase
	{"R00086", 2.0, 0.5, 100, 1e-4, 36.0, "literature", ""},  // ATP synthase

	// Fatty acid degradation
	{"R01278", 0.6, 0.02, 15, 10, -5.7, "brenda", ""},      // acyl-CoA dehydrogenase
	{"R01279", 1.0, 0.1, 600, 3.8, -3.4, "brenda", ""},     // enoyl-CoA hydratase
	{"R01280", 0.8, 0.05, 120, 0.0087, 27.8, "brenda", ""}, // hydroxyacyl-CoA dehydrogenase
	{"R00238", 0.5, 0.04, 35, 4e4, -27.6, "brenda", ""},    // acetyl-CoA acetyltransferase

	// Glutathione metabolism
	{"R00115", 0.12, 0.065, 60, 1e5, -28.5, "brenda", ""},  // glutathione reductase
	{"R00116", 0.5, 0.001, 500, 1e8, -134.0, "brenda", ""}, // glutathione peroxidase

	// Purine metabolism
	{"R00127", 800, 0.9, 3500, 0.44, 2.0, "brenda", ""}, // adenylate kinase
}

type curatedRule struct {
	reaction string
	compound string // KEGG compound id
	kind     string
	ki       float64
	site     string
}

var curatedRegulation = []curatedRule{
	{"R00756", "C00002", model.AllostericInhibitor, 1.0, "regulatory"},  // PFK: ATP
	{"R00756", "C00158", model.AllostericInhibitor, 0.8, "regulatory"},  // PFK: citrate
	{"R00756", "C00020", model.AllostericActivator, 0.05, "regulatory"}, // PFK: AMP
	{"R00756", "C00008", model.AllostericActivator, 0.1, "regulatory"},  // PFK: ADP
	{"R00196", "C00354", model.AllostericActivator, 0.03, "regulatory"}, // PK: F1,6BP
	{"R00196", "C00002", model.AllostericInhibitor, 10.0, "regulatory"}, // PK: ATP
	{"R00299", "C00668", model.FeedbackInhibitor, 0.3, "active"},        // HK: G6P
	{"R00352", "C00004", model.AllostericInhibitor, 0.05, "regulatory"}, // CS: NADH
	{"R00352", "C00002", model.AllostericInhibitor, 0.9, "regulatory"},  // CS: ATP
	{"R00709", "C00008", model.AllostericActivator, 0.1, "regulatory"},  // IDH: ADP
	{"R00709", "C00004", model.AllostericInhibitor, 0.02, "regulatory"}, // IDH: NADH
	{"R00709", "C00002", model.AllostericInhibitor, 0.5, "regulatory"},  // IDH: ATP
	{"R00835", "C00005", model.FeedbackInhibitor, 0.15, "active"},       // G6PD: NADPH
}

const (
	seedOrganism   = "Homo sapiens"
	seedConfidence = 0.8
)

// SeedStore is the store access Seed needs.
type SeedStore interface {
	Node(ctx context.Context, id string) (*model.Node, error)
	EdgesOf(ctx context.Context, id string, rels ...model.Relation) ([]model.Edge, error)
	UpsertKineticParams(ctx context.Context, params []model.KineticParam, force bool) (int, error)
	UpsertRegulatoryInteractions(ctx context.Context, ris []model.RegulatoryInteraction, force bool) (int, error)
}

// Seed writes the curated constants for every KEGG reaction present in the
// store, one row per catalysing enzyme or a single enzyme-less row when no
// enzyme is linked. Regulatory rules need both an enzyme and the effector
// compound. Existing rows are kept unless force is set. It returns the
// number of parameter and regulatory rows written.
func Seed(ctx context.Context, store SeedStore, force bool) (int, int, error) {
	var params []model.KineticParam
	for _, c := range curatedKinetics {
		rxnID := model.NodeID(model.KindReaction, "kegg", c.reaction)
		rxn, err := store.Node(ctx, rxnID)
		if err != nil {
			return 0, 0, fmt.Errorf("getting reaction %s: %w", rxnID, err)
		}
		if rxn == nil {
			continue
		}
		enzymes, err := catalysts(ctx, store, rxnID)
		if err != nil {
			return 0, 0, err
		}
		if len(enzymes) == 0 {
			enzymes = []string{""}
		}
		for _, enz := range enzymes {
			p := model.KineticParam{
				EnzymeID:            enz,
				ReactionID:          rxnID,
				Vmax:                model.Float(c.vmax),
				Km:                  model.Float(c.km),
				Kcat:                model.Float(c.kcat),
				EquilibriumConstant: model.Float(c.keq),
				DeltaGPrime:         model.Float(c.dg),
				PH:                  model.Float(7.0),
				TemperatureCelsius:  model.Float(37.0),
				SourceDatabase:      c.source,
				LiteratureReference: c.ref,
				Organism:            seedOrganism,
				ConfidenceScore:     model.Float(seedConfidence),
			}
			p.AssignID()
			params = append(params, p)
		}
	}

	var rules []model.RegulatoryInteraction
	for _, r := range curatedRegulation {
		rxnID := model.NodeID(model.KindReaction, "kegg", r.reaction)
		rxn, err := store.Node(ctx, rxnID)
		if err != nil {
			return 0, 0, fmt.Errorf("getting reaction %s: %w", rxnID, err)
		}
		if rxn == nil {
			continue
		}
		enzymes, err := catalysts(ctx, store, rxnID)
		if err != nil {
			return 0, 0, err
		}
		if len(enzymes) == 0 {
			continue
		}
		cpdID := model.NodeID(model.KindCompound, "kegg", r.compound)
		cpd, err := store.Node(ctx, cpdID)
		if err != nil {
			return 0, 0, fmt.Errorf("getting compound %s: %w", cpdID, err)
		}
		if cpd == nil {
			continue
		}
		for _, enz := range enzymes {
			ri := model.RegulatoryInteraction{
				EnzymeID:        enz,
				CompoundID:      cpdID,
				InteractionType: r.kind,
				KiAllosteric:    model.Float(r.ki),
				Site:            r.site,
				SourceDatabase:  "literature",
			}
			ri.AssignID()
			rules = append(rules, ri)
		}
	}

	var nParams, nRules int
	var err error
	if len(params) > 0 {
		if nParams, err = store.UpsertKineticParams(ctx, params, force); err != nil {
			return 0, 0, fmt.Errorf("seeding kinetic parameters: %w", err)
		}
	}
	if len(rules) > 0 {
		if nRules, err = store.UpsertRegulatoryInteractions(ctx, rules, force); err != nil {
			return nParams, 0, fmt.Errorf("seeding regulatory interactions: %w", err)
		}
	}
	ctxlog.FromContext(ctx).Info("seeded kinetics", "params", nParams, "regulatory", nRules)
	return nParams, nRules, nil
}

func catalysts(ctx context.Context, store SeedStore, rxnID string) ([]string, error) {
	edges, err := store.EdgesOf(ctx, rxnID, model.RelCatalyzes)
	if err != nil {
		return nil, fmt.Errorf("getting enzymes of %s: %w", rxnID, err)
	}
	var out []string
	for _, e := range edges {
		if e.Dst == rxnID {
			out = append(out, e.Src)
		}
	}
	return out, nil
}
