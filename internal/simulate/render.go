package simulate

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// DefaultTopN is the number of rows rendered per table.
const DefaultTopN = 20

// NameFunc maps a node id to a display name. A nil NameFunc shows ids.
type NameFunc func(id string) string

func (f NameFunc) name(id string) string {
	if f == nil {
		return id
	}
	if n := f(id); n != "" {
		return n
	}
	return id
}

type entry struct {
	id string
	v  float64
}

func byMagnitude(m map[string]float64) []entry {
	out := make([]entry, 0, len(m))
	for id, v := range m {
		out = append(out, entry{id, v})
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := math.Abs(out[i].v), math.Abs(out[j].v)
		if ai != aj {
			return ai > aj
		}
		return out[i].id < out[j].id
	})
	return out
}

func limit(n, topN int) int {
	if topN <= 0 {
		topN = DefaultTopN
	}
	if n < topN {
		return n
	}
	return topN
}

// RenderFBA formats an FBA result as Markdown with the largest fluxes and
// shadow prices.
func RenderFBA(r *FBAResult, names NameFunc, topN int) string {
	var b strings.Builder
	b.WriteString("## FBA Result\n")
	fmt.Fprintf(&b, "**Status:** %s\n", r.Status)
	if r.Objective != nil {
		fmt.Fprintf(&b, "**Objective value:** %.6g\n", *r.Objective)
	}
	fmt.Fprintf(&b, "**Message:** %s\n", r.Message)

	if len(r.Fluxes) > 0 {
		fluxes := byMagnitude(r.Fluxes)
		n := limit(len(fluxes), topN)
		fmt.Fprintf(&b, "\n### Top %d Fluxes (by magnitude)\n", n)
		b.WriteString("| Reaction | ID | Flux |\n|---|---|---:|\n")
		for _, e := range fluxes[:n] {
			fmt.Fprintf(&b, "| %s | `%s` | %.4f |\n", names.name(e.id), e.id, e.v)
		}
	}
	if len(r.ShadowPrices) > 0 {
		prices := byMagnitude(r.ShadowPrices)
		n := limit(len(prices), topN)
		b.WriteString("\n### Top Shadow Prices\n")
		b.WriteString("| Compound | ID | Shadow Price |\n|---|---|---:|\n")
		for _, e := range prices[:n] {
			fmt.Fprintf(&b, "| %s | `%s` | %.4g |\n", names.name(e.id), e.id, e.v)
		}
	}
	return b.String()
}

// RenderODE formats an ODE result as Markdown with final concentrations,
// highest first.
func RenderODE(r *ODEResult, names NameFunc, topN int) string {
	var b strings.Builder
	b.WriteString("## ODE Result\n")
	fmt.Fprintf(&b, "**Status:** %s\n", r.Status)
	fmt.Fprintf(&b, "**Message:** %s\n", r.Message)

	if len(r.Concentrations) > 0 && len(r.T) > 0 {
		finals := make([]entry, 0, len(r.Concentrations))
		for id := range r.Concentrations {
			v, _ := r.Final(id)
			finals = append(finals, entry{id, v})
		}
		sort.Slice(finals, func(i, j int) bool {
			if finals[i].v != finals[j].v {
				return finals[i].v > finals[j].v
			}
			return finals[i].id < finals[j].id
		})
		n := limit(len(finals), topN)
		fmt.Fprintf(&b, "\n### Final Concentrations (t = %g)\n", r.T[len(r.T)-1])
		b.WriteString("| Compound | ID | Final [mM] |\n|---|---|---:|\n")
		for _, e := range finals[:n] {
			fmt.Fprintf(&b, "| %s | `%s` | %.4f |\n", names.name(e.id), e.id, e.v)
		}
	}
	return b.String()
}

// RenderWhatIf formats a what-if comparison as Markdown, omitting
// unchanged rows.
func RenderWhatIf(r *WhatIfResult, names NameFunc, topN int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## What-If: %s\n", r.Scenario)
	fmt.Fprintf(&b, "**Mode:** %s\n", strings.ToUpper(r.Mode))
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "**Warning:** %s\n", w)
	}

	deltas := r.DeltaFinalConc
	header := "\n### Final Concentration Changes (Δ[C] at t_end)\n| Compound | ID | Baseline [mM] | Perturbed [mM] | Δ [mM] |\n|---|---|---:|---:|---:|\n"
	if r.Mode == ModeFBA {
		fmt.Fprintf(&b, "**Baseline objective:** %s\n", objective(r.BaselineFBA))
		fmt.Fprintf(&b, "**Perturbed objective:** %s\n", objective(r.PerturbedFBA))
		deltas = r.DeltaFluxes
		header = "\n### Flux Changes (Δ = perturbed − baseline)\n| Reaction | ID | Baseline | Perturbed | Δ Flux |\n|---|---|---:|---:|---:|\n"
	} else {
		fmt.Fprintf(&b, "**Baseline status:** %s\n", r.BaselineODE.Status)
		fmt.Fprintf(&b, "**Perturbed status:** %s\n", r.PerturbedODE.Status)
	}

	var changed []Delta
	for _, d := range deltas {
		if math.Abs(d.Delta) >= 1e-8 {
			changed = append(changed, d)
		}
	}
	if len(changed) == 0 {
		b.WriteString("\nNo changes.\n")
		return b.String()
	}
	b.WriteString(header)
	for _, d := range changed[:limit(len(changed), topN)] {
		tag := "▼"
		if d.Delta > 0 {
			tag = "▲"
		}
		fmt.Fprintf(&b, "| %s | `%s` | %.4f | %.4f | %s %.4f |\n", names.name(d.ID), d.ID, d.Baseline, d.Perturbed, tag, d.Delta)
	}
	return b.String()
}

func objective(r *FBAResult) string {
	if r == nil || r.Objective == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.6g", *r.Objective)
}
