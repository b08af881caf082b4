// Package config loads and validates scenario files.
// A scenario is YAML overlaid on embedded defaults, then on environment
// variables.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/talgya/forage-sim/internal/agents"
	"github.com/talgya/forage-sim/internal/competition"
	"github.com/talgya/forage-sim/internal/engine"
	"github.com/talgya/forage-sim/internal/simerr"
	"github.com/talgya/forage-sim/internal/world"
)

//go:embed defaults.yaml
var defaultsYAML []byte

//go:embed schema.json
var schemaJSON string

var scenarioSchema = jsonschema.MustCompileString("scenario.schema.json", schemaJSON)

// Scenario is a complete run description.
type Scenario struct {
	// Seed is the base seed; replicate r runs with Seed+r. 0 means draw one.
	Seed       int64 `yaml:"seed" json:"seed"`
	Duration   int   `yaml:"duration" json:"duration"`
	Replicates int   `yaml:"replicates" json:"replicates"`

	Environment EnvironmentConfig `yaml:"environment" json:"environment"`
	Competition CompetitionConfig `yaml:"competition" json:"competition"`
	Sharing     SharingConfig     `yaml:"sharing" json:"sharing"`
	Subfleets   []SubfleetConfig  `yaml:"subfleets" json:"subfleets"`
	Tracking    TrackingConfig    `yaml:"tracking" json:"tracking"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
	Output      OutputConfig      `yaml:"output" json:"output"`
}

// EnvironmentConfig describes the resource units.
type EnvironmentConfig struct {
	Units  int          `yaml:"units" json:"units"`
	Growth float64      `yaml:"growth" json:"growth"`
	Reset  ResetConfig  `yaml:"reset" json:"reset"`
	Layout LayoutConfig `yaml:"layout" json:"layout"`
}

// ResetConfig is the stock-reset distribution. Mean and SD apply to
// "normal", Min and Max to "uniform".
type ResetConfig struct {
	Distribution string  `yaml:"distribution" json:"distribution"`
	Mean         float64 `yaml:"mean" json:"mean"`
	SD           float64 `yaml:"sd" json:"sd"`
	Min          float64 `yaml:"min" json:"min"`
	Max          float64 `yaml:"max" json:"max"`
	Probability  float64 `yaml:"probability" json:"probability"`
}

// LayoutConfig controls how initial stocks are assigned.
type LayoutConfig struct {
	Kind  string  `yaml:"kind" json:"kind"`
	Scale float64 `yaml:"scale" json:"scale"`
}

// CompetitionConfig selects the competition correction.
type CompetitionConfig struct {
	// Method is one method name or a list of names applied in order.
	Method             competition.MethodSpec `yaml:"method" json:"method"`
	InterferenceFactor float64                `yaml:"interference_factor" json:"interference_factor"`
}

// SharingConfig is the fleet-wide knowledge sharing policy.
type SharingConfig struct {
	Strategy   string `yaml:"strategy" json:"strategy"`
	K          int    `yaml:"k" json:"k"`
	Duplicates bool   `yaml:"duplicates" json:"duplicates"`
	Receivers  string `yaml:"receivers" json:"receivers"`
	Receiving  string `yaml:"receiving" json:"receiving"`
}

// SubfleetConfig describes a batch of identical agents.
type SubfleetConfig struct {
	Name               string  `yaml:"name" json:"name"`
	Agents             int     `yaml:"agents" json:"agents"`
	Catchability       float64 `yaml:"catchability" json:"catchability"`
	ExploreProbability float64 `yaml:"explore_probability" json:"explore_probability"`
	Choice             string  `yaml:"choice" json:"choice"`
	Groups             int     `yaml:"groups" json:"groups"`
	InitialMemory      string  `yaml:"initial_memory" json:"initial_memory"`
}

// TrackingConfig toggles the heavier trackers.
type TrackingConfig struct {
	MemorySnapshots bool `yaml:"memory_snapshots" json:"memory_snapshots"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `yaml:"level" json:"level"`
	// Format is one of text, json, pretty or auto.
	Format string `yaml:"format" json:"format"`
}

// OutputConfig selects the post-run exports.
type OutputConfig struct {
	Dir     string `yaml:"dir" json:"dir"`
	CSV     bool   `yaml:"csv" json:"csv"`
	JSON    bool   `yaml:"json" json:"json"`
	StepLog bool   `yaml:"step_log" json:"step_log"`
	SQLite  string `yaml:"sqlite" json:"sqlite"` // Database path; empty disables
}

// DefaultsYAML returns the embedded default scenario document.
func DefaultsYAML() []byte {
	return bytes.Clone(defaultsYAML)
}

// Default returns the embedded default scenario.
func Default() *Scenario {
	sc := &Scenario{}
	if err := yaml.Unmarshal(defaultsYAML, sc); err != nil {
		panic(fmt.Sprintf("parsing embedded defaults: %v", err))
	}
	return sc
}

// Load returns the scenario at path overlaid on the defaults, with
// environment overrides applied. An empty path yields the defaults.
func Load(path string) (*Scenario, error) {
	sc := Default()
	if path != "" {
		var err error
		if sc, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	applyEnvOverrides(sc)
	return sc, nil
}

// LoadFromFile reads a YAML scenario and overlays it on the defaults. The
// document's shape is checked against the scenario schema before decoding.
func LoadFromFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return sc, nil
}

// Parse overlays a YAML document on the defaults.
func Parse(data []byte) (*Scenario, error) {
	if err := validateShape(data); err != nil {
		return nil, err
	}
	sc := Default()
	if err := yaml.Unmarshal(data, sc); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	return sc, nil
}

// validateShape checks the raw document against the embedded JSON Schema.
// YAML is converted to JSON values first since the schema validator expects
// them.
func validateShape(data []byte) error {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing scenario: %w", err)
	}
	if raw == nil {
		return nil
	}

	buf, err := json.Marshal(raw)
	if err != nil {
		return simerr.Config("scenario", "", fmt.Sprintf("not representable as JSON: %v", err))
	}
	dec := json.NewDecoder(bytes.NewReader(buf))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("re-decoding scenario: %w", err)
	}

	if err := scenarioSchema.Validate(doc); err != nil {
		return simerr.Config("scenario", "", err.Error())
	}
	return nil
}

// applyEnvOverrides applies FORAGE_* environment variables. Unparseable
// values are ignored with a warning.
func applyEnvOverrides(sc *Scenario) {
	if v := os.Getenv("FORAGE_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			sc.Seed = n
		} else {
			slog.Warn("ignoring FORAGE_SEED", "value", v, "error", err)
		}
	}
	if v := os.Getenv("FORAGE_DURATION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			sc.Duration = n
		} else {
			slog.Warn("ignoring FORAGE_DURATION", "value", v, "error", err)
		}
	}
	if v := os.Getenv("FORAGE_REPLICATES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			sc.Replicates = n
		} else {
			slog.Warn("ignoring FORAGE_REPLICATES", "value", v, "error", err)
		}
	}
	if v := os.Getenv("FORAGE_LOG_LEVEL"); v != "" {
		sc.Logging.Level = v
	}
}

// YAML renders the scenario as a YAML document.
func (sc *Scenario) YAML() ([]byte, error) {
	return yaml.Marshal(sc)
}

// Validate checks every name and range in the scenario.
func (sc *Scenario) Validate() error {
	cfg, err := sc.Engine()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[sc.Logging.Level] {
		return simerr.Config("logging.level", sc.Logging.Level, "expected debug, info, warn or error")
	}
	validFormats := map[string]bool{"text": true, "json": true, "pretty": true, "auto": true}
	if !validFormats[sc.Logging.Format] {
		return simerr.Config("logging.format", sc.Logging.Format, "expected text, json, pretty or auto")
	}
	if sc.Environment.Layout.Scale < 0 {
		return simerr.Config("environment.layout.scale", fmt.Sprint(sc.Environment.Layout.Scale), "must be non-negative")
	}
	return nil
}

// Engine resolves names into the scheduler configuration. The seed is
// copied as is; callers resolve a zero seed first.
func (sc *Scenario) Engine() (engine.Config, error) {
	dist, err := world.ParseDistribution(sc.Environment.Reset.Distribution)
	if err != nil {
		return engine.Config{}, err
	}
	layout, err := world.ParseLayout(sc.Environment.Layout.Kind)
	if err != nil {
		return engine.Config{}, err
	}
	share, err := agents.ParseSharePolicy(sc.Sharing.Strategy, sc.Sharing.Receivers, sc.Sharing.Receiving,
		sc.Sharing.K, sc.Sharing.Duplicates)
	if err != nil {
		return engine.Config{}, err
	}

	seen := make(map[string]bool, len(sc.Subfleets))
	subfleets := make([]agents.SubfleetSpec, 0, len(sc.Subfleets))
	for i, sf := range sc.Subfleets {
		if sf.Name == "" {
			return engine.Config{}, simerr.Config(fmt.Sprintf("subfleets[%d].name", i), "", "must not be empty")
		}
		if seen[sf.Name] {
			return engine.Config{}, simerr.Config(fmt.Sprintf("subfleets[%d].name", i), sf.Name, "duplicate subfleet name")
		}
		seen[sf.Name] = true

		subfleets = append(subfleets, agents.SubfleetSpec{
			Name:          sf.Name,
			Agents:        sf.Agents,
			Catchability:  sf.Catchability,
			ExploreProb:   sf.ExploreProbability,
			Choice:        sf.Choice,
			Groups:        sf.Groups,
			InitialMemory: agents.MemoryInit(sf.InitialMemory),
		})
	}

	r := sc.Environment.Reset
	return engine.Config{
		Seed:       sc.Seed,
		Duration:   sc.Duration,
		Replicates: sc.Replicates,
		World: world.Config{
			Units:  sc.Environment.Units,
			Growth: sc.Environment.Growth,
			Reset: world.ResetDistribution{
				Kind: dist,
				Mean: r.Mean,
				SD:   r.SD,
				Min:  r.Min,
				Max:  r.Max,
			},
			ResetProb: r.Probability,
			Layout:    world.Layout{Kind: layout, Scale: sc.Environment.Layout.Scale},
		},
		Fleet: agents.FleetConfig{
			Subfleets:   subfleets,
			Share:       share,
			TrackMemory: sc.Tracking.MemorySnapshots,
		},
		Method:             sc.Competition.Method,
		InterferenceFactor: sc.Competition.InterferenceFactor,
	}, nil
}
