// Package agents provides foragers, their memory heatmaps, choice strategies,
// knowledge sharing, and the fleet that groups them.
package agents

import (
	"errors"
	"fmt"

	"github.com/talgya/forage-sim/internal/entropy"
	"github.com/talgya/forage-sim/internal/simerr"
	"github.com/talgya/forage-sim/internal/world"
)

// AgentID is a zero-padded agent identifier, e.g. "a013".
type AgentID string

// NoCompetitors is the competitors-encountered sentinel used when the
// competition method does not count competitors.
const NoCompetitors = -1

// Agent is a forager bound to one choice strategy for its lifetime.
type Agent struct {
	ID           AgentID `json:"id"`
	Subfleet     string  `json:"subfleet"`
	Group        string  `json:"group,omitempty"` // Empty when the agent has no group allegiance
	Catchability float64 `json:"catchability"`
	ExploreProb  float64 `json:"explore_probability"`

	Memory   *Heatmap `json:"-"`
	Strategy Strategy `json:"-"`

	// Trackers
	CatchByTime map[world.TimeID]float64 `json:"catch_by_time"`
	UnitCatch   map[world.UnitID]float64 `json:"unit_catch"`
	UnitVisits  map[world.UnitID]int     `json:"unit_visits"`
	TotalCatch  float64                  `json:"total_catch"`
}

// ChooseAndForage asks the strategy for a unit and returns it together with
// the uncorrected yield: the unit's true current stock times catchability.
// The agent's memory of that unit plays no part in the yield.
func (a *Agent) ChooseAndForage(env *world.Environment, s *entropy.Stream) (world.UnitID, float64, error) {
	unit, err := a.Strategy.Choose(a.Memory, a.ExploreProb, s)
	if err != nil {
		var inv *simerr.InvariantError
		if errors.As(err, &inv) && inv.Agent == "" {
			inv.Agent = string(a.ID)
		}
		return "", 0, fmt.Errorf("agent %s choose: %w", a.ID, err)
	}
	stock, err := env.TrueStock(unit)
	if err != nil {
		return "", 0, err
	}
	return unit, stock * a.Catchability, nil
}

// UpdateTrackers books a corrected yield from unit at step t. Memory keeps
// only the most recent realized yield for the unit.
func (a *Agent) UpdateTrackers(unit world.UnitID, corrected float64, t world.TimeID) {
	a.Memory.Set(unit, corrected)
	a.UnitCatch[unit] += corrected
	a.UnitVisits[unit]++
	a.TotalCatch += corrected
	a.CatchByTime[t] += corrected
}
