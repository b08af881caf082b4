package agents

import (
	"github.com/talgya/forage-sim/internal/entropy"
	"github.com/talgya/forage-sim/internal/world"
)

// Fleet is the ordered collection of agents plus fleet-level trackers that
// share one time axis.
type Fleet struct {
	Agents []*Agent
	index  map[AgentID]*Agent

	Share       SharePolicy
	TrackMemory bool // Record full memory snapshots every step

	Catch       map[world.TimeID]float64         // Total corrected catch per step
	Competitors map[world.TimeID]map[AgentID]int // Competitors encountered per agent per step
	Subfleets   map[string][]AgentID             // Subfleet name → member ids

	// Recorded before the settle phase, from the prior step's stock.
	MemoryFill          map[world.TimeID]map[AgentID]float64
	ExpectedCompetitors map[world.TimeID]map[AgentID]int
	PotentialCatch      map[world.TimeID]map[AgentID]float64
	Memory              map[world.TimeID]map[AgentID]map[world.UnitID]Yield
}

func newFleet(share SharePolicy, trackMemory bool) *Fleet {
	return &Fleet{
		index:               make(map[AgentID]*Agent),
		Share:               share,
		TrackMemory:         trackMemory,
		Catch:               make(map[world.TimeID]float64),
		Competitors:         make(map[world.TimeID]map[AgentID]int),
		Subfleets:           make(map[string][]AgentID),
		MemoryFill:          make(map[world.TimeID]map[AgentID]float64),
		ExpectedCompetitors: make(map[world.TimeID]map[AgentID]int),
		PotentialCatch:      make(map[world.TimeID]map[AgentID]float64),
		Memory:              make(map[world.TimeID]map[AgentID]map[world.UnitID]Yield),
	}
}

func (f *Fleet) add(a *Agent) {
	f.Agents = append(f.Agents, a)
	f.index[a.ID] = a
	f.Subfleets[a.Subfleet] = append(f.Subfleets[a.Subfleet], a.ID)
}

// Agent looks up an agent by id.
func (f *Fleet) Agent(id AgentID) (*Agent, bool) {
	a, ok := f.index[id]
	return a, ok
}

// Shuffled returns the agents in a fresh random execution order. The fleet's
// own order is left untouched.
func (f *Fleet) Shuffled(s *entropy.Stream) []*Agent {
	order := make([]*Agent, len(f.Agents))
	copy(order, f.Agents)
	s.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	return order
}

// SnapshotBefore records the pre-settle trackers for step t: memory fill,
// expected competitors at each agent's best-remembered unit (from the previous
// step's visits, excluding the agent itself), and potential catch at the best
// unit by true stock. It must run before any stock or memory changes in t.
func (f *Fleet) SnapshotBefore(env *world.Environment, t world.TimeID, prevVisits map[world.UnitID]int) {
	fill := make(map[AgentID]float64, len(f.Agents))
	expected := make(map[AgentID]int, len(f.Agents))
	potential := make(map[AgentID]float64, len(f.Agents))

	maxStock := env.Units[0].Stock
	for _, u := range env.Units[1:] {
		if u.Stock > maxStock {
			maxStock = u.Stock
		}
	}

	for _, a := range f.Agents {
		fill[a.ID] = a.Memory.Fill()

		best := a.Memory.Best()
		n := prevVisits[best]
		if n > 0 && a.Strategy.Last() == best {
			n--
		}
		expected[a.ID] = n

		potential[a.ID] = maxStock * a.Catchability
	}

	f.MemoryFill[t] = fill
	f.ExpectedCompetitors[t] = expected
	f.PotentialCatch[t] = potential

	if f.TrackMemory {
		snap := make(map[AgentID]map[world.UnitID]Yield, len(f.Agents))
		for _, a := range f.Agents {
			snap[a.ID] = a.Memory.Snapshot()
		}
		f.Memory[t] = snap
	}
}

// RecordOutcome books an agent's settled step into the fleet trackers.
func (f *Fleet) RecordOutcome(id AgentID, t world.TimeID, corrected float64, competitors int) {
	f.Catch[t] += corrected
	byAgent := f.Competitors[t]
	if byAgent == nil {
		byAgent = make(map[AgentID]int, len(f.Agents))
		f.Competitors[t] = byAgent
	}
	byAgent[id] = competitors
}

// TotalCatch sums every agent's cumulative catch.
func (f *Fleet) TotalCatch() float64 {
	total := 0.0
	for _, a := range f.Agents {
		total += a.TotalCatch
	}
	return total
}
