package engine

import (
	"fmt"
	"math"

	"github.com/talgya/forage-sim/internal/agents"
	"github.com/talgya/forage-sim/internal/competition"
	"github.com/talgya/forage-sim/internal/simerr"
	"github.com/talgya/forage-sim/internal/world"
)

// Config is everything the scheduler needs to run a scenario. Enum names are
// already resolved; Validate checks the remaining ranges.
type Config struct {
	Seed       int64
	Duration   int
	Replicates int

	World              world.Config
	Fleet              agents.FleetConfig
	Method             competition.MethodSpec
	InterferenceFactor float64
}

// Validate checks ranges and method names.
func (c Config) Validate() error {
	if c.Duration < 1 {
		return simerr.Config("duration", fmt.Sprint(c.Duration), "must be at least 1")
	}
	if c.Replicates < 1 {
		return simerr.Config("replicates", fmt.Sprint(c.Replicates), "must be at least 1")
	}
	if c.World.Units < 1 {
		return simerr.Config("environment.units", fmt.Sprint(c.World.Units), "need at least one unit")
	}
	if c.World.Growth < 0 || math.IsNaN(c.World.Growth) {
		return simerr.Config("environment.growth", fmt.Sprint(c.World.Growth), "must be non-negative")
	}
	if p := c.World.ResetProb; p < 0 || p > 1 || math.IsNaN(p) {
		return simerr.Config("environment.reset.probability", fmt.Sprint(p), "must be in [0, 1]")
	}
	d := c.World.Reset
	switch d.Kind {
	case world.DistNormal:
		if d.SD < 0 {
			return simerr.Config("environment.reset.sd", fmt.Sprint(d.SD), "must be non-negative")
		}
		if d.SD == 0 && d.Mean < 0 {
			return simerr.Config("environment.reset.mean", fmt.Sprint(d.Mean), "a zero-sd distribution must have a non-negative mean")
		}
	case world.DistUniform:
		if d.Min > d.Max {
			return simerr.Config("environment.reset.min", fmt.Sprint(d.Min), "must not exceed max")
		}
	}

	if err := competition.Validate(c.Method, c.InterferenceFactor); err != nil {
		return err
	}

	total := 0
	for _, sf := range c.Fleet.Subfleets {
		field := "subfleets." + sf.Name
		if sf.Agents < 0 {
			return simerr.Config(field+".agents", fmt.Sprint(sf.Agents), "must be non-negative")
		}
		if sf.Catchability < 0 || math.IsNaN(sf.Catchability) {
			return simerr.Config(field+".catchability", fmt.Sprint(sf.Catchability), "must be non-negative")
		}
		if p := sf.ExploreProb; p < 0 || p > 1 || math.IsNaN(p) {
			return simerr.Config(field+".explore_probability", fmt.Sprint(p), "must be in [0, 1]")
		}
		if !agents.ValidChoice(sf.Choice) {
			return simerr.Config(field+".choice", sf.Choice, "unknown choice method")
		}
		switch sf.InitialMemory {
		case "", agents.MemoryUnknown, agents.MemoryTrueYield:
		default:
			return simerr.Config(field+".initial_memory", string(sf.InitialMemory), "expected unknown or true_yield")
		}
		if sf.Groups < 0 {
			return simerr.Config(field+".groups", fmt.Sprint(sf.Groups), "must be non-negative")
		}
		total += sf.Agents
	}
	if total < 1 {
		return simerr.Config("subfleets", fmt.Sprint(total), "need at least one agent")
	}
	return nil
}

// Result is the final state of one replicate. Env and Fleet hold every
// tracker the step loop filled in.
type Result struct {
	Replicate int
	Seed      int64
	Method    string
	Steps     []world.TimeID
	Resets    int // Unit resets over the whole replicate
	Shares    int // Receivers reached by knowledge sharing

	Env   *world.Environment
	Fleet *agents.Fleet
}

// StepSummary is an immutable digest of one finished step.
type StepSummary struct {
	Replicate  int                  `json:"replicate"`
	Index      int                  `json:"index"`
	Time       world.TimeID         `json:"time"`
	Catch      float64              `json:"catch"`
	TotalStock float64              `json:"total_stock"`
	Effort     map[world.UnitID]int `json:"effort"`
	Resets     int                  `json:"resets"`
	Shares     int                  `json:"shares"`
}
