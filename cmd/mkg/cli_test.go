package main

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/spf13/pflag"

	"github.com/matsen/metakg/internal/config"
	"github.com/matsen/metakg/internal/metakg"
	"github.com/matsen/metakg/internal/scenario"
	"github.com/matsen/metakg/internal/simulate"
	"github.com/matsen/metakg/internal/storage"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"not a repository", config.ErrNotRepository, ExitConfigError},
		{"invalid config", fmt.Errorf("bad bounds: %w", simulate.ErrInvalidConfig), ExitConfigError},
		{"unsupported scenario", fmt.Errorf("x.toml: %w", scenario.ErrUnsupportedFormat), ExitConfigError},
		{"validation", fmt.Errorf("edge: %w", storage.ErrValidation), ExitDataError},
		{"not found", fmt.Errorf("%w: %q", metakg.ErrNotFound, "x"), ExitNotFound},
		{"other", errors.New("disk full"), ExitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestNormalizeKey(t *testing.T) {
	for in, want := range map[string]string{
		"db-path":   "db-path",
		"db_path":   "db-path",
		"dbPath":    "db-path",
		"DATA_DIRS": "data-dirs",
		"maxHops":   "max-hops",
		"unknown":   "unknown",
	} {
		if got := normalizeKey(in); got != want {
			t.Errorf("normalizeKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" kegg , ,sbml,")
	if len(got) != 2 || got[0] != "kegg" || got[1] != "sbml" {
		t.Errorf("splitList = %q, want [kegg sbml]", got)
	}
	if got := splitList(""); got != nil {
		t.Errorf("splitList(\"\") = %q, want nil", got)
	}
}

func TestParseBounds(t *testing.T) {
	got, err := parseBounds([]string{"rxn:a=0:10", "rxn:b=:5", "rxn:c=-2:"})
	if err != nil {
		t.Fatalf("parseBounds: %v", err)
	}
	if got["rxn:a"] != [2]float64{0, 10} {
		t.Errorf("rxn:a = %v", got["rxn:a"])
	}
	if b := got["rxn:b"]; !math.IsInf(b[0], -1) || b[1] != 5 {
		t.Errorf("rxn:b = %v, want [-Inf 5]", b)
	}
	if c := got["rxn:c"]; c[0] != -2 || !math.IsInf(c[1], 1) {
		t.Errorf("rxn:c = %v, want [-2 +Inf]", c)
	}

	for _, bad := range []string{"rxn:a", "rxn:a=5", "=0:1", "rxn:a=x:1", "rxn:a=0:y"} {
		if _, err := parseBounds([]string{bad}); !errors.Is(err, simulate.ErrInvalidConfig) {
			t.Errorf("parseBounds(%q) error = %v, want ErrInvalidConfig", bad, err)
		}
	}
}

func TestParseAssignments(t *testing.T) {
	got, err := parseAssignments("conc", []string{"cpd:a=1.5", " cpd:b = 0 "})
	if err != nil {
		t.Fatalf("parseAssignments: %v", err)
	}
	if got["cpd:a"] != 1.5 || got["cpd:b"] != 0 || len(got) != 2 {
		t.Errorf("parseAssignments = %v", got)
	}

	if got, err := parseAssignments("conc", nil); got != nil || err != nil {
		t.Errorf("empty input = %v, %v; want nil, nil", got, err)
	}

	for _, bad := range []string{"cpd:a", "=1", "cpd:a=high"} {
		if _, err := parseAssignments("conc", []string{bad}); !errors.Is(err, simulate.ErrInvalidConfig) {
			t.Errorf("parseAssignments(%q) error = %v, want ErrInvalidConfig", bad, err)
		}
	}
}

func TestApplySimulationDefaults(t *testing.T) {
	cfg := simulate.DefaultConfig()
	want := cfg
	applySimulationDefaults(&cfg, config.SimulationDefaults{})
	if cfg.TEnd != want.TEnd || cfg.Method != want.Method {
		t.Errorf("zero defaults changed the config: %+v", cfg)
	}

	applySimulationDefaults(&cfg, config.SimulationDefaults{TEnd: 20, Method: "rk45", RTol: 1e-4})
	if cfg.TEnd != 20 || cfg.Method != "rk45" || cfg.RTol != 1e-4 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.TPoints != want.TPoints {
		t.Errorf("TPoints = %d, want %d", cfg.TPoints, want.TPoints)
	}
}

func TestApplySimFlags(t *testing.T) {
	saved := sim
	t.Cleanup(func() { sim = saved })

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.BoolVar(&sim.minimize, "minimize", false, "")
	fs.Float64Var(&sim.tEnd, "t-end", 0, "")
	fs.StringSliceVar(&sim.bounds, "bound", nil, "")
	fs.StringSliceVar(&sim.conc, "conc", nil, "")
	fs.StringVar(&sim.method, "method", "", "")
	if err := fs.Parse([]string{"--minimize", "--t-end=7", "--bound=rxn:a=0:3", "--conc=cpd:x=2"}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	cfg := simulate.DefaultConfig()
	if err := applySimFlags(&cfg, fs); err != nil {
		t.Fatalf("applySimFlags: %v", err)
	}
	if cfg.Maximize {
		t.Error("--minimize should clear Maximize")
	}
	if cfg.TEnd != 7 {
		t.Errorf("TEnd = %v, want 7", cfg.TEnd)
	}
	if cfg.FluxBounds["rxn:a"] != [2]float64{0, 3} {
		t.Errorf("FluxBounds = %v", cfg.FluxBounds)
	}
	if cfg.InitialConcentrations["cpd:x"] != 2 {
		t.Errorf("InitialConcentrations = %v", cfg.InitialConcentrations)
	}
	if cfg.Method != simulate.DefaultConfig().Method {
		t.Errorf("unset --method changed Method to %q", cfg.Method)
	}
}

func TestLoadScenario_Inline(t *testing.T) {
	saved := sim
	t.Cleanup(func() { sim = saved })

	sim = simFlags{knockouts: []string{"enz:e"}, factors: []string{"enz:f=0.5"}}
	sc, err := loadScenario()
	if err != nil {
		t.Fatalf("loadScenario: %v", err)
	}
	if sc.Name != "cli" || len(sc.EnzymeKnockouts) != 1 || sc.EnzymeFactors["enz:f"] != 0.5 {
		t.Errorf("scenario = %+v", sc)
	}

	sim = simFlags{}
	if _, err := loadScenario(); !errors.Is(err, simulate.ErrInvalidConfig) {
		t.Errorf("empty scenario error = %v, want ErrInvalidConfig", err)
	}
}

func TestTruncateString(t *testing.T) {
	if got := truncateString("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncateString("a very long reaction name", 10); got != "a very ..." {
		t.Errorf("got %q", got)
	}
}
