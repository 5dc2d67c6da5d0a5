package scenario

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	"github.com/matsen/metakg/internal/model"
	"github.com/matsen/metakg/internal/simulate"
)

// hclFile is the top level of an HCL scenario file:
//
//	scenario "pfk_knockout" {
//	  enzyme_knockouts = [node_id("enzyme", "kegg", "hsa:5213")]
//	  enzyme_factors   = { "enz:kegg:hsa:3098" = 0.5 }
//	}
type hclFile struct {
	Scenarios []*hclScenario `hcl:"scenario,block"`
}

type hclScenario struct {
	Name                 string             `hcl:"name,label"`
	EnzymeKnockouts      []string           `hcl:"enzyme_knockouts,optional"`
	EnzymeFactors        map[string]float64 `hcl:"enzyme_factors,optional"`
	InitialConcOverrides map[string]float64 `hcl:"initial_conc_overrides,optional"`
}

// nodeIDFunc exposes model.NodeID to scenario files.
var nodeIDFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "kind", Type: cty.String},
		{Name: "db", Type: cty.String},
		{Name: "ext", Type: cty.String},
	},
	Type: function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		kind, err := model.ParseKind(args[0].AsString())
		if err != nil {
			return cty.NilVal, function.NewArgError(0, err)
		}
		return cty.StringVal(model.NodeID(kind, args[1].AsString(), args[2].AsString())), nil
	},
})

func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Functions: map[string]function.Function{
			"node_id": nodeIDFunc,
			"format":  stdlib.FormatFunc,
			"lower":   stdlib.LowerFunc,
		},
	}
}

func decodeHCL(data []byte, filename string) ([]simulate.Scenario, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL: %w", diags)
	}

	var parsed hclFile
	if diags := gohcl.DecodeBody(file.Body, evalContext(), &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %w", diags)
	}

	out := make([]simulate.Scenario, 0, len(parsed.Scenarios))
	for _, s := range parsed.Scenarios {
		out = append(out, simulate.Scenario{
			Name:                 s.Name,
			EnzymeKnockouts:      s.EnzymeKnockouts,
			EnzymeFactors:        s.EnzymeFactors,
			InitialConcOverrides: s.InitialConcOverrides,
		})
	}
	return out, nil
}
