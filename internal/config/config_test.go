package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/talgya/forage-sim/internal/agents"
	"github.com/talgya/forage-sim/internal/competition"
	"github.com/talgya/forage-sim/internal/simerr"
	"github.com/talgya/forage-sim/internal/world"
)

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing scenario: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	sc := Default()
	if err := sc.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if err := validateShape(DefaultsYAML()); err != nil {
		t.Fatalf("expected defaults to match the schema, got %v", err)
	}
	if sc.Duration != 100 || len(sc.Subfleets) != 1 {
		t.Errorf("unexpected defaults: duration %d, %d subfleets", sc.Duration, len(sc.Subfleets))
	}
}

func TestLoadFromFileOverlaysDefaults(t *testing.T) {
	path := writeScenario(t, `
duration: 30
competition:
  method: [interference-simple, split-catch]
subfleets:
  - name: locals
    agents: 4
    catchability: 0.2
    choice: full_weighted_heatmap
    initial_memory: true_yield
  - name: visitors
    agents: 2
    choice: random
`)
	sc, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if sc.Duration != 30 {
		t.Errorf("expected duration 30, got %d", sc.Duration)
	}
	if sc.Environment.Units != 10 {
		t.Errorf("expected default units 10, got %d", sc.Environment.Units)
	}
	if len(sc.Subfleets) != 2 || sc.Subfleets[1].Name != "visitors" {
		t.Fatalf("expected subfleets replaced, got %+v", sc.Subfleets)
	}
	if len(sc.Competition.Method) != 2 || sc.Competition.Method[1] != competition.MethodSplitCatch {
		t.Errorf("unexpected method list %v", sc.Competition.Method)
	}
	if err := sc.Validate(); err != nil {
		t.Errorf("expected valid scenario, got %v", err)
	}
}

func TestShapeErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"method mapping", "competition:\n  method: {name: absent}\n"},
		{"method number", "competition:\n  method: 3\n"},
		{"method list of numbers", "competition:\n  method: [1, 2]\n"},
		{"unknown key", "duratoin: 10\n"},
		{"wrong type", "environment:\n  units: many\n"},
		{"subfleet without agents", "subfleets:\n  - name: x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.body))
			if !errors.Is(err, simerr.ErrConfiguration) {
				t.Errorf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestValidateRejectsBadNames(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Scenario)
	}{
		{"distribution", func(sc *Scenario) { sc.Environment.Reset.Distribution = "poisson" }},
		{"layout", func(sc *Scenario) { sc.Environment.Layout.Kind = "hex" }},
		{"method", func(sc *Scenario) { sc.Competition.Method = competition.MethodSpec{"absent", "split-catch"} }},
		{"sharing", func(sc *Scenario) { sc.Sharing.Strategy = "gossip" }},
		{"choice", func(sc *Scenario) { sc.Subfleets[0].Choice = "greedy" }},
		{"initial memory", func(sc *Scenario) { sc.Subfleets[0].InitialMemory = "oracle" }},
		{"duplicate subfleet", func(sc *Scenario) { sc.Subfleets = append(sc.Subfleets, sc.Subfleets[0]) }},
		{"log level", func(sc *Scenario) { sc.Logging.Level = "loud" }},
		{"log format", func(sc *Scenario) { sc.Logging.Format = "xml" }},
		{"duration", func(sc *Scenario) { sc.Duration = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := Default()
			tt.mutate(sc)
			if err := sc.Validate(); !errors.Is(err, simerr.ErrConfiguration) {
				t.Errorf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FORAGE_SEED", "99")
	t.Setenv("FORAGE_DURATION", "7")
	t.Setenv("FORAGE_REPLICATES", "not-a-number")
	t.Setenv("FORAGE_LOG_LEVEL", "debug")

	sc, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if sc.Seed != 99 || sc.Duration != 7 {
		t.Errorf("expected seed 99 and duration 7, got %d and %d", sc.Seed, sc.Duration)
	}
	if sc.Replicates != 1 {
		t.Errorf("expected invalid override ignored, got %d replicates", sc.Replicates)
	}
	if sc.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %q", sc.Logging.Level)
	}
}

func TestEngineMapping(t *testing.T) {
	sc, err := Parse([]byte(`
seed: 5
environment:
  units: 3
  reset: {distribution: uniform, min: 10, max: 20, probability: 0.5}
  layout: {kind: noise, scale: 0.3}
sharing: {strategy: top_k, k: 2, receivers: group, receiving: mean}
subfleets:
  - {name: a, agents: 6, catchability: 0.4, explore_probability: 0.1, choice: explore_weighted_heatmap, groups: 3}
tracking: {memory_snapshots: true}
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	cfg, err := sc.Engine()
	if err != nil {
		t.Fatalf("Engine failed: %v", err)
	}

	if cfg.Seed != 5 || cfg.World.Units != 3 {
		t.Errorf("unexpected seed %d or units %d", cfg.Seed, cfg.World.Units)
	}
	if cfg.World.Reset.Kind != world.DistUniform || cfg.World.Reset.Max != 20 || cfg.World.ResetProb != 0.5 {
		t.Errorf("unexpected reset %+v (p=%v)", cfg.World.Reset, cfg.World.ResetProb)
	}
	if cfg.World.Layout.Kind != world.LayoutNoise || cfg.World.Layout.Scale != 0.3 {
		t.Errorf("unexpected layout %+v", cfg.World.Layout)
	}
	if cfg.Fleet.Share.Strategy != agents.ShareTopK || cfg.Fleet.Share.K != 2 || cfg.Fleet.Share.Receivers != agents.ReceiversGroup {
		t.Errorf("unexpected share policy %+v", cfg.Fleet.Share)
	}
	if !cfg.Fleet.TrackMemory {
		t.Error("expected memory snapshots enabled")
	}
	sf := cfg.Fleet.Subfleets[0]
	if sf.Agents != 6 || sf.ExploreProb != 0.1 || sf.Groups != 3 || sf.Choice != "explore_weighted_heatmap" {
		t.Errorf("unexpected subfleet %+v", sf)
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	sc := Default()
	sc.Competition.Method = competition.MethodSpec{competition.MethodInterferenceSimple, competition.MethodSplitCatch}
	data, err := sc.YAML()
	if err != nil {
		t.Fatalf("YAML failed: %v", err)
	}
	back, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(back.Competition.Method) != 2 {
		t.Errorf("expected method list preserved, got %v", back.Competition.Method)
	}
}
