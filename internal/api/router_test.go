package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matsen/metakg/internal/metakg"
	"github.com/matsen/metakg/internal/model"
	"github.com/matsen/metakg/internal/simulate"
)

var irreversible = &model.Stoichiometry{Direction: model.DirectionIrreversible}

// newServer serves A -R1-> B -R2-> C with enzyme E on R1, all in pathway P.
func newServer(t *testing.T, opts ...Option) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	kg, err := metakg.Open(ctx, metakg.Options{DBPath: filepath.Join(t.TempDir(), "meta.db")})
	require.NoError(t, err)
	t.Cleanup(func() { kg.Close() })

	nodes := []model.Node{
		{ID: "cpd:kegg:C00001", Kind: model.KindCompound, Name: "A", Xrefs: map[string]string{"kegg": "C00001"}},
		{ID: "cpd:kegg:C00002", Kind: model.KindCompound, Name: "B"},
		{ID: "cpd:kegg:C00003", Kind: model.KindCompound, Name: "C"},
		{ID: "rxn:r1", Kind: model.KindReaction, Name: "A to B", Stoichiometry: irreversible},
		{ID: "rxn:r2", Kind: model.KindReaction, Name: "B to C", Stoichiometry: irreversible},
		{ID: "enz:e", Kind: model.KindEnzyme, Name: "E"},
		{ID: "pwy:p", Kind: model.KindPathway, Name: "P"},
	}
	edges := []model.Edge{
		{Src: "cpd:kegg:C00001", Rel: model.RelSubstrateOf, Dst: "rxn:r1"},
		{Src: "rxn:r1", Rel: model.RelProductOf, Dst: "cpd:kegg:C00002"},
		{Src: "cpd:kegg:C00002", Rel: model.RelSubstrateOf, Dst: "rxn:r2"},
		{Src: "rxn:r2", Rel: model.RelProductOf, Dst: "cpd:kegg:C00003"},
		{Src: "enz:e", Rel: model.RelCatalyzes, Dst: "rxn:r1"},
		{Src: "pwy:p", Rel: model.RelContains, Dst: "rxn:r1"},
		{Src: "pwy:p", Rel: model.RelContains, Dst: "rxn:r2"},
	}
	_, err = kg.Store().Write(ctx, nodes, edges, true)
	require.NoError(t, err)
	_, err = kg.Store().BuildXrefIndex(ctx)
	require.NoError(t, err)

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(NewRouter(kg, append([]Option{WithLogger(quiet)}, opts...)...))
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, srv *httptest.Server, path string, into any) int {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	if into != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
	}
	return resp.StatusCode
}

func post(t *testing.T, srv *httptest.Server, path, body string, into any) int {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	if into != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
	}
	return resp.StatusCode
}

func TestHealthAndStats(t *testing.T) {
	srv := newServer(t)

	var health map[string]string
	assert.Equal(t, http.StatusOK, get(t, srv, "/api/health", &health))
	assert.Equal(t, "ok", health["status"])

	var stats struct {
		TotalNodes int            `json:"total_nodes"`
		NodeCounts map[string]int `json:"node_counts"`
	}
	assert.Equal(t, http.StatusOK, get(t, srv, "/api/stats", &stats))
	assert.Equal(t, 7, stats.TotalNodes)
	assert.Equal(t, 3, stats.NodeCounts["compound"])
}

func TestResolveAndNodes(t *testing.T) {
	srv := newServer(t)

	var resolved map[string]string
	assert.Equal(t, http.StatusOK, get(t, srv, "/api/resolve?q=kegg:C00001", &resolved))
	assert.Equal(t, "cpd:kegg:C00001", resolved["id"])

	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/api/resolve", nil))

	var errBody map[string]string
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/api/resolve?q=nothing", &errBody))
	assert.Contains(t, errBody["error"], "not found")

	var node model.Node
	assert.Equal(t, http.StatusOK, get(t, srv, "/api/nodes/enz:e", &node))
	assert.Equal(t, "E", node.Name)
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/api/nodes/enz:missing", nil))
}

func TestCompoundAndReaction(t *testing.T) {
	srv := newServer(t)

	var cpd struct {
		ID        string `json:"id"`
		Reactions []struct {
			ID   string `json:"id"`
			Role string `json:"role"`
		} `json:"reactions"`
	}
	assert.Equal(t, http.StatusOK, get(t, srv, "/api/compounds/B", &cpd))
	assert.Equal(t, "cpd:kegg:C00002", cpd.ID)
	assert.Len(t, cpd.Reactions, 2)

	var rxn struct {
		ID         string `json:"id"`
		Substrates []struct {
			ID     string  `json:"id"`
			Stoich float64 `json:"stoich"`
		} `json:"substrates"`
		Enzymes []struct {
			ID string `json:"id"`
		} `json:"enzymes"`
	}
	assert.Equal(t, http.StatusOK, get(t, srv, "/api/reactions/rxn:r1", &rxn))
	require.Len(t, rxn.Substrates, 1)
	assert.Equal(t, "cpd:kegg:C00001", rxn.Substrates[0].ID)
	assert.Equal(t, 1.0, rxn.Substrates[0].Stoich)
	require.Len(t, rxn.Enzymes, 1)

	assert.Equal(t, http.StatusNotFound, get(t, srv, "/api/reactions/A", nil))
}

func TestPath(t *testing.T) {
	srv := newServer(t)

	var p struct {
		NodeIDs []string `json:"node_ids"`
		Hops    int      `json:"hops"`
	}
	assert.Equal(t, http.StatusOK, get(t, srv, "/api/path?from=A&to=C", &p))
	assert.Equal(t, 4, p.Hops)
	assert.Equal(t, "cpd:kegg:C00001", p.NodeIDs[0])

	assert.Equal(t, http.StatusNotFound, get(t, srv, "/api/path?from=A&to=C&max_hops=2", nil))
	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/api/path?from=A&to=C&max_hops=zero", nil))
	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/api/path?from=A", nil))
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/api/path?from=A&to=nowhere", nil))
}

func TestSimulateFBA(t *testing.T) {
	srv := newServer(t)

	var res simulate.FBAResult
	status := post(t, srv, "/api/simulate/fba", `{"pathway_id": "pwy:p"}`, &res)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, simulate.StatusOptimal, res.Status, res.Message)
	assert.InDelta(t, 1000, res.Fluxes["rxn:r2"], 1e-6)
	assert.NotEmpty(t, res.RunID)

	var errBody map[string]string
	status = post(t, srv, "/api/simulate/fba", `{"pathway_id": "pwy:p", "flux_bounds": {"rxn:r1": [5, 1]}}`, &errBody)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, errBody["error"], "invalid simulation config")

	assert.Equal(t, http.StatusBadRequest, post(t, srv, "/api/simulate/fba", `{"bogus": 1}`, nil))
	assert.Equal(t, http.StatusBadRequest, post(t, srv, "/api/simulate/fba", `not json`, nil))
}

func TestSimulateODE(t *testing.T) {
	srv := newServer(t)

	var res simulate.ODEResult
	status := post(t, srv, "/api/simulate/ode", `{"pathway_id": "pwy:p", "t_end": 5, "t_points": 11}`, &res)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, simulate.StatusOK, res.Status, res.Message)
	assert.Len(t, res.T, 11)
	assert.Len(t, res.Concentrations["cpd:kegg:C00003"], 11)
}

func TestSimulateWhatIf(t *testing.T) {
	srv := newServer(t)

	body := `{
		"config": {"pathway_id": "pwy:p", "maximize": true},
		"scenario": {"name": "knockout", "enzyme_knockouts": ["enz:e"]},
		"mode": "fba"
	}`
	var res simulate.WhatIfResult
	require.Equal(t, http.StatusOK, post(t, srv, "/api/simulate/whatif", body, &res))
	assert.Equal(t, "knockout", res.Scenario)
	require.NotNil(t, res.PerturbedFBA)
	require.NotNil(t, res.PerturbedFBA.Objective)
	assert.InDelta(t, 0, *res.PerturbedFBA.Objective, 1e-6)

	bad := strings.Replace(body, `"fba"`, `"pde"`, 1)
	assert.Equal(t, http.StatusBadRequest, post(t, srv, "/api/simulate/whatif", bad, nil))
}

func TestSimulateWhatIf_PartialConfigKeepsDefaults(t *testing.T) {
	srv := newServer(t)

	body := `{
		"config": {"pathway_id": "P"},
		"scenario": {"name": "ko", "enzyme_knockouts": ["E"]}
	}`
	var res simulate.WhatIfResult
	require.Equal(t, http.StatusOK, post(t, srv, "/api/simulate/whatif", body, &res))
	assert.Equal(t, simulate.ModeFBA, res.Mode)
	assert.Empty(t, res.Warnings)
	require.NotNil(t, res.BaselineFBA.Objective)
	assert.InDelta(t, 1000, *res.BaselineFBA.Objective, 1e-6)
	require.Len(t, res.DeltaFluxes, 2)
	for _, d := range res.DeltaFluxes {
		assert.InDelta(t, -1000, d.Delta, 1e-6, d.ID)
	}

	// A null config falls back to the defaults too.
	body = `{"config": null, "scenario": {"name": "ko", "enzyme_knockouts": ["enz:e"]}}`
	res = simulate.WhatIfResult{}
	require.Equal(t, http.StatusOK, post(t, srv, "/api/simulate/whatif", body, &res))
	require.NotNil(t, res.BaselineFBA.Objective)
	assert.InDelta(t, 1000, *res.BaselineFBA.Objective, 1e-6)
	require.NotNil(t, res.PerturbedFBA.Objective)
	assert.InDelta(t, 0, *res.PerturbedFBA.Objective, 1e-9)
}

func TestSimulateFBA_PathwayByName(t *testing.T) {
	srv := newServer(t)

	var res simulate.FBAResult
	require.Equal(t, http.StatusOK, post(t, srv, "/api/simulate/fba", `{"pathway_id": "P"}`, &res))
	require.Equal(t, simulate.StatusOptimal, res.Status, res.Message)
	assert.InDelta(t, 1000, res.Fluxes["rxn:r2"], 1e-6)
}

func TestSimulateRateLimit(t *testing.T) {
	srv := newServer(t, WithSimulateRate(0.001, 1))

	body := `{"pathway_id": "pwy:p"}`
	assert.Equal(t, http.StatusOK, post(t, srv, "/api/simulate/fba", body, nil))

	var errBody map[string]string
	assert.Equal(t, http.StatusTooManyRequests, post(t, srv, "/api/simulate/fba", body, &errBody))
	assert.Contains(t, errBody["error"], "rate limit")

	// Graph queries are not limited.
	assert.Equal(t, http.StatusOK, get(t, srv, "/api/stats", nil))
}
