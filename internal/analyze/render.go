package analyze

import (
	"fmt"
	"sort"
	"strings"

	"github.com/matsen/metakg/internal/model"
)

// load buckets a connection count into a coarse label.
func load(n int) string {
	switch {
	case n < 3:
		return "low"
	case n < 10:
		return "med"
	default:
		return "high"
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

type table struct {
	b *strings.Builder
}

func (t table) header(cols ...string) {
	t.row(toAny(cols)...)
	seps := make([]any, len(cols))
	for i := range seps {
		seps[i] = "---"
	}
	t.row(seps...)
}

func (t table) row(cols ...any) {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprint(c)
	}
	fmt.Fprintf(t.b, "| %s |\n", strings.Join(parts, " | "))
}

func toAny(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

// Render formats a report as Markdown.
func Render(r *Report) string {
	var b strings.Builder
	t := table{&b}

	b.WriteString("# Pathway Analysis Report\n\n")
	fmt.Fprintf(&b, "**Generated:** %s\n", r.GeneratedAt.Format("2006-01-02 15:04 UTC"))

	b.WriteString("\n## Graph Statistics\n\n")
	if s := r.Stats; s != nil {
		fmt.Fprintf(&b, "- **Total nodes:** %d\n", s.TotalNodes)
		for _, k := range []model.Kind{model.KindPathway, model.KindReaction, model.KindCompound, model.KindEnzyme} {
			fmt.Fprintf(&b, "  - %s: %d\n", k, s.NodeCounts[string(k)])
		}
		fmt.Fprintf(&b, "- **Total edges:** %d\n", s.TotalEdges)
		rels := make([]string, 0, len(s.EdgeCounts))
		for rel := range s.EdgeCounts {
			rels = append(rels, rel)
		}
		sort.Slice(rels, func(i, j int) bool {
			if s.EdgeCounts[rels[i]] != s.EdgeCounts[rels[j]] {
				return s.EdgeCounts[rels[i]] > s.EdgeCounts[rels[j]]
			}
			return rels[i] < rels[j]
		})
		for _, rel := range rels {
			fmt.Fprintf(&b, "  - %s: %d\n", rel, s.EdgeCounts[rel])
		}
	}

	if len(r.PathwayProfiles) > 0 {
		b.WriteString("\n### Pathway Profiles\n\n")
		t.header("Pathway", "Reactions", "Compounds", "Enzymes")
		for _, p := range r.PathwayProfiles {
			t.row(p.Name, p.ReactionCount, p.CompoundCount, p.EnzymeCount)
		}
	}

	b.WriteString("\n## Hub Metabolites\n\n")
	if len(r.HubMetabolites) == 0 {
		b.WriteString("_No compound-reaction edges found._\n")
	} else {
		t.header("Rank", "Compound", "Formula", "Reactions", "Substrate", "Product", "Pathways", "Load")
		for i, h := range r.HubMetabolites {
			t.row(i+1, h.Name, orDash(h.Formula), h.ReactionCount, h.AsSubstrate, h.AsProduct, h.PathwayCount, load(h.ReactionCount))
		}
	}

	b.WriteString("\n## Complex Reactions\n\n")
	if len(r.ComplexReactions) == 0 {
		b.WriteString("_No reactions found._\n")
	} else {
		t.header("Rank", "Reaction", "Substrates", "Products", "Enzymes", "Pathways", "Complexity")
		for i, x := range r.ComplexReactions {
			t.row(i+1, x.Name, x.SubstrateCount, x.ProductCount, x.EnzymeCount, x.PathwayCount, load(x.Complexity()))
		}
	}

	b.WriteString("\n## Cross-Pathway Hubs\n\n")
	if len(r.CrossPathwayHubs) == 0 {
		b.WriteString("_No compound appears in more than one pathway._\n")
	} else {
		t.header("Rank", "Compound", "Formula", "Pathways", "Reactions", "Examples")
		for i, h := range r.CrossPathwayHubs {
			examples := strings.Join(truncate(h.Pathways, 3), "; ")
			if extra := len(h.Pathways) - 3; extra > 0 {
				examples += fmt.Sprintf(" (+%d more)", extra)
			}
			t.row(i+1, h.Name, orDash(h.Formula), len(h.Pathways), h.ReactionCount, examples)
		}
	}

	if len(r.Couplings) > 0 {
		b.WriteString("\n## Pathway Coupling\n\n")
		t.header("Pathway A", "Pathway B", "Shared", "Examples")
		for _, c := range r.Couplings {
			t.row(c.NameA, c.NameB, c.SharedCount, strings.Join(c.SharedNames, ", "))
		}
	}

	b.WriteString("\n## Dead-End Metabolites\n\n")
	if len(r.DeadEnds) == 0 {
		b.WriteString("_None._\n")
	} else {
		t.header("Compound", "Formula", "Reactions", "Role")
		for _, d := range r.DeadEnds {
			t.row(d.Name, orDash(d.Formula), d.ReactionCount, d.Role)
		}
	}

	if len(r.Isolated) > 0 {
		fmt.Fprintf(&b, "\n### Isolated Nodes (%d)\n\n", len(r.Isolated))
		for _, n := range r.Isolated {
			fmt.Fprintf(&b, "- `%s` %s (%s)\n", n.ID, n.Name, n.Kind)
		}
	}

	b.WriteString("\n## Top Enzymes\n\n")
	if len(r.TopEnzymes) == 0 {
		b.WriteString("_No CATALYZES edges found._\n")
	} else {
		t.header("Rank", "Enzyme", "EC", "Reactions")
		for i, e := range r.TopEnzymes {
			t.row(i+1, e.Name, orDash(e.ECNumber), e.ReactionCount)
		}
	}
	return b.String()
}
