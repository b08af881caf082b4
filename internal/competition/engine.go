// Package competition provides the engine that corrects each forager's yield
// for the other foragers at the same unit in the same step.
//
// Per step the engine moves EMPTY → LOADED → SETTLED → EMPTY: every agent's
// choice is loaded first, then every agent is corrected, then Reset clears the
// transient state. Corrections depend on the full set of choices, so no agent
// may be corrected before all have loaded.
package competition

import (
	"fmt"
	"strings"

	"github.com/talgya/forage-sim/internal/agents"
	"github.com/talgya/forage-sim/internal/simerr"
	"github.com/talgya/forage-sim/internal/world"
)

// State is the engine's position in the per-step cycle.
type State uint8

const (
	StateEmpty State = iota
	StateLoaded
	StateSettled
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoaded:
		return "loaded"
	case StateSettled:
		return "settled"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Outcome is one agent's settled step.
type Outcome struct {
	Unit         world.UnitID `json:"unit"`
	Uncorrected  float64      `json:"uncorrected"`
	Corrected    float64      `json:"corrected"`
	Competitors  int          `json:"competitors"` // agents.NoCompetitors when not meaningful
	Realized     float64      `json:"realized"`
	Hypothetical float64      `json:"hypothetical"`
}

// Engine holds static method configuration and per-step transient state.
type Engine struct {
	methods []Method
	factor  float64
	units   []world.UnitID

	state   State
	effort  map[world.UnitID]int
	choices map[agents.AgentID]world.UnitID
	settled map[agents.AgentID]bool
}

// New builds an engine for the given units. Unknown or malformed method
// specs fail here.
func New(spec MethodSpec, interferenceFactor float64, units []world.UnitID) (*Engine, error) {
	methods, err := buildMethods(spec, interferenceFactor)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		methods: methods,
		factor:  interferenceFactor,
		units:   units,
	}
	e.Reset()
	return e, nil
}

// Validate checks a method spec without building an engine.
func Validate(spec MethodSpec, interferenceFactor float64) error {
	_, err := buildMethods(spec, interferenceFactor)
	return err
}

// Name returns the method names joined with "+".
func (e *Engine) Name() string {
	names := make([]string, len(e.methods))
	for i, m := range e.methods {
		names[i] = m.Name()
	}
	return strings.Join(names, "+")
}

// InterferenceFactor returns the configured interference factor.
func (e *Engine) InterferenceFactor() float64 {
	return e.factor
}

// State returns the current cycle position.
func (e *Engine) State() State {
	return e.state
}

// Load records that agent chose unit this step.
func (e *Engine) Load(unit world.UnitID, agent agents.AgentID) error {
	if e.state == StateSettled {
		return simerr.Invariant("competition.load", string(agent), string(unit), "load after correct in the same step")
	}
	if _, ok := e.effort[unit]; !ok {
		return simerr.Invariant("competition.load", string(agent), string(unit), "unknown unit")
	}
	if prev, ok := e.choices[agent]; ok {
		return simerr.Invariant("competition.load", string(agent), string(unit),
			fmt.Sprintf("agent already loaded %s this step", prev))
	}
	e.effort[unit]++
	e.choices[agent] = unit
	e.state = StateLoaded
	return nil
}

// Effort returns the number of agents that loaded unit this step.
func (e *Engine) Effort(unit world.UnitID) int {
	return e.effort[unit]
}

// TotalEffort returns the number of loads this step.
func (e *Engine) TotalEffort() int {
	total := 0
	for _, n := range e.effort {
		total += n
	}
	return total
}

// Choice returns the unit an agent loaded this step.
func (e *Engine) Choice(agent agents.AgentID) (world.UnitID, bool) {
	u, ok := e.choices[agent]
	return u, ok
}

// Correct settles an agent's yield from its loaded choice and books the
// result into the agent's and the environment's trackers.
func (e *Engine) Correct(a *agents.Agent, env *world.Environment, t world.TimeID) (Outcome, error) {
	unit, ok := e.choices[a.ID]
	if !ok {
		return Outcome{}, simerr.Invariant("competition.correct", string(a.ID), "", "agent did not load a choice this step")
	}
	if e.settled[a.ID] {
		return Outcome{}, simerr.Invariant("competition.correct", string(a.ID), string(unit), "agent already corrected this step")
	}
	effort := e.effort[unit]
	if effort < 1 {
		return Outcome{}, simerr.Invariant("competition.correct", string(a.ID), string(unit), "effort is zero at a loaded unit")
	}

	stock, err := env.TrueStock(unit)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{
		Unit:         unit,
		Uncorrected:  stock * a.Catchability,
		Competitors:  agents.NoCompetitors,
		Realized:     1,
		Hypothetical: 1,
	}
	for _, m := range e.methods {
		out.Realized *= m.Correction(effort)
		out.Hypothetical *= m.Hypothetical(effort)
		if m.Counts() {
			out.Competitors = effort - 1
		}
	}
	out.Corrected = out.Uncorrected * out.Realized

	a.UpdateTrackers(unit, out.Corrected, t)
	env.RecordHarvest(unit, t, out.Corrected)

	e.settled[a.ID] = true
	e.state = StateSettled
	return out, nil
}

// UpdateAggregateTrackers records the realized and hypothetical correction
// of every unit for step t, visited or not. Unvisited units record a
// realized correction of 1.
func (e *Engine) UpdateAggregateTrackers(env *world.Environment, t world.TimeID) {
	for _, u := range e.units {
		effort := e.effort[u]
		rec := world.CorrectionRecord{Realized: 1, Hypothetical: 1}
		for _, m := range e.methods {
			if effort > 0 {
				rec.Realized *= m.Correction(effort)
			}
			rec.Hypothetical *= m.Hypothetical(effort)
		}
		env.RecordCorrection(t, u, rec)
	}
}

// Reset discards per-step state. Method configuration is kept.
func (e *Engine) Reset() {
	e.effort = make(map[world.UnitID]int, len(e.units))
	for _, u := range e.units {
		e.effort[u] = 0
	}
	e.choices = make(map[agents.AgentID]world.UnitID)
	e.settled = make(map[agents.AgentID]bool)
	e.state = StateEmpty
}
