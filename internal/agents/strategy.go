// Choice strategies map an agent's memory to the unit it forages next.

package agents

import (
	"fmt"

	"github.com/talgya/forage-sim/internal/entropy"
	"github.com/talgya/forage-sim/internal/simerr"
	"github.com/talgya/forage-sim/internal/world"
)

// ChoiceMethod names a choice strategy variant.
type ChoiceMethod string

const (
	ChoiceRandom                 ChoiceMethod = "random"
	ChoiceFullHeatmap            ChoiceMethod = "full_heatmap"
	ChoiceExploreHeatmap         ChoiceMethod = "explore_heatmap"
	ChoiceFullWeightedHeatmap    ChoiceMethod = "full_weighted_heatmap"
	ChoiceExploreWeightedHeatmap ChoiceMethod = "explore_weighted_heatmap"
)

// ChoiceMethods lists every valid choice method.
var ChoiceMethods = []ChoiceMethod{
	ChoiceRandom,
	ChoiceFullHeatmap,
	ChoiceExploreHeatmap,
	ChoiceFullWeightedHeatmap,
	ChoiceExploreWeightedHeatmap,
}

// Strategy picks a unit from an agent's memory and remembers its last pick.
type Strategy interface {
	Method() ChoiceMethod
	Choose(h *Heatmap, exploreProb float64, s *entropy.Stream) (world.UnitID, error)
	Last() world.UnitID
}

// NewStrategy binds the named method to the environment's units. Unknown
// names fail here rather than on first use.
func NewStrategy(method string, env *world.Environment) (Strategy, error) {
	b := bound{units: env.UnitIDs()}
	switch ChoiceMethod(method) {
	case ChoiceRandom:
		return &randomChoice{bound: b}, nil
	case ChoiceFullHeatmap:
		return &fullHeatmap{bound: b}, nil
	case ChoiceExploreHeatmap:
		return &explore{bound: b, method: ChoiceExploreHeatmap, exploit: pickBest}, nil
	case ChoiceFullWeightedHeatmap:
		return &fullWeighted{bound: b}, nil
	case ChoiceExploreWeightedHeatmap:
		return &explore{bound: b, method: ChoiceExploreWeightedHeatmap, exploit: pickWeighted}, nil
	default:
		return nil, simerr.Config("choice", method, fmt.Sprintf("unknown choice method (valid: %v)", ChoiceMethods))
	}
}

// ValidChoice reports whether method names a known strategy.
func ValidChoice(method string) bool {
	for _, m := range ChoiceMethods {
		if string(m) == method {
			return true
		}
	}
	return false
}

// bound holds the environment binding and the last chosen unit.
type bound struct {
	units []world.UnitID
	last  world.UnitID
}

func (b *bound) Last() world.UnitID { return b.last }

func (b *bound) record(u world.UnitID) world.UnitID {
	b.last = u
	return u
}

type randomChoice struct{ bound }

func (r *randomChoice) Method() ChoiceMethod { return ChoiceRandom }

func (r *randomChoice) Choose(_ *Heatmap, _ float64, s *entropy.Stream) (world.UnitID, error) {
	return r.record(pickUniform(r.units, s)), nil
}

type fullHeatmap struct{ bound }

func (f *fullHeatmap) Method() ChoiceMethod { return ChoiceFullHeatmap }

func (f *fullHeatmap) Choose(h *Heatmap, _ float64, _ *entropy.Stream) (world.UnitID, error) {
	u, err := pickBest(h, nil)
	if err != nil {
		return "", err
	}
	return f.record(u), nil
}

type fullWeighted struct{ bound }

func (f *fullWeighted) Method() ChoiceMethod { return ChoiceFullWeightedHeatmap }

func (f *fullWeighted) Choose(h *Heatmap, _ float64, s *entropy.Stream) (world.UnitID, error) {
	u, err := pickWeighted(h, s)
	if err != nil {
		return "", err
	}
	return f.record(u), nil
}

// explore draws uniformly with the agent's explore probability, and
// otherwise delegates to its exploit rule.
type explore struct {
	bound
	method  ChoiceMethod
	exploit func(h *Heatmap, s *entropy.Stream) (world.UnitID, error)
}

func (e *explore) Method() ChoiceMethod { return e.method }

func (e *explore) Choose(h *Heatmap, exploreProb float64, s *entropy.Stream) (world.UnitID, error) {
	if s.Bernoulli(exploreProb) {
		return e.record(pickUniform(e.units, s)), nil
	}
	u, err := e.exploit(h, s)
	if err != nil {
		return "", err
	}
	return e.record(u), nil
}

func pickUniform(units []world.UnitID, s *entropy.Stream) world.UnitID {
	return units[s.Intn(len(units))]
}

func pickBest(h *Heatmap, _ *entropy.Stream) (world.UnitID, error) {
	return h.Best(), nil
}

// pickWeighted draws a unit with probability proportional to its remembered
// value. Unknown entries weigh zero; negative values and a zero total are
// invariant violations.
func pickWeighted(h *Heatmap, s *entropy.Stream) (world.UnitID, error) {
	total := 0.0
	for _, u := range h.units {
		v := h.value(u)
		if v < 0 {
			return "", simerr.Invariant("choice.weighted", "", string(u), fmt.Sprintf("negative memory value %v", v))
		}
		total += v
	}
	if !(total > 0) {
		return "", simerr.Invariant("choice.weighted", "", "", "memory values sum to zero")
	}

	r := s.Float64() * total
	cum := 0.0
	var last world.UnitID
	for _, u := range h.units {
		v := h.value(u)
		if v == 0 {
			continue
		}
		cum += v
		last = u
		if r < cum {
			return u, nil
		}
	}
	// Rounding can leave r just above the final cumulative sum.
	return last, nil
}
