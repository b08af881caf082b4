package agents

import (
	"fmt"

	"github.com/talgya/forage-sim/internal/simerr"
	"github.com/talgya/forage-sim/internal/world"
)

// MemoryInit selects an agent's starting memory.
type MemoryInit string

const (
	MemoryUnknown   MemoryInit = "unknown"    // Every unit unknown
	MemoryTrueYield MemoryInit = "true_yield" // Initial stock × catchability for every unit
)

// SubfleetSpec describes a batch of agents sharing parameters.
type SubfleetSpec struct {
	Name          string
	Agents        int
	Catchability  float64
	ExploreProb   float64
	Choice        string
	Groups        int // Agents are assigned round-robin to this many groups; 0 = no groups
	InitialMemory MemoryInit
}

// FleetConfig describes a whole fleet.
type FleetConfig struct {
	Subfleets   []SubfleetSpec
	Share       SharePolicy
	TrackMemory bool
}

// Spawner issues agent ids across subfleets.
type Spawner struct {
	nextID int
	total  int
}

// NewSpawner creates a spawner for a fleet of total agents.
func NewSpawner(total int) *Spawner {
	return &Spawner{total: total}
}

// NewFleet spawns every subfleet in order against env.
func NewFleet(cfg FleetConfig, env *world.Environment) (*Fleet, error) {
	total := 0
	for _, sf := range cfg.Subfleets {
		total += sf.Agents
	}
	if total < 1 {
		return nil, simerr.Config("subfleets", "", "need at least one agent")
	}

	f := newFleet(cfg.Share, cfg.TrackMemory)
	sp := NewSpawner(total)
	for _, sf := range cfg.Subfleets {
		batch, err := sp.SpawnSubfleet(sf, env)
		if err != nil {
			return nil, fmt.Errorf("subfleet %q: %w", sf.Name, err)
		}
		for _, a := range batch {
			f.add(a)
		}
	}
	return f, nil
}

// SpawnSubfleet creates the agents of one subfleet.
func (sp *Spawner) SpawnSubfleet(sf SubfleetSpec, env *world.Environment) ([]*Agent, error) {
	switch sf.InitialMemory {
	case "", MemoryUnknown, MemoryTrueYield:
	default:
		return nil, simerr.Config("initial_memory", string(sf.InitialMemory), "expected unknown or true_yield")
	}
	// Reject unknown choice methods even for empty subfleets.
	if !ValidChoice(sf.Choice) {
		_, err := NewStrategy(sf.Choice, env)
		return nil, err
	}

	out := make([]*Agent, 0, sf.Agents)
	for i := 0; i < sf.Agents; i++ {
		strategy, err := NewStrategy(sf.Choice, env)
		if err != nil {
			return nil, err
		}
		a := sp.spawnOne(sf, strategy, env)
		if sf.Groups > 0 {
			a.Group = fmt.Sprintf("%s/g%d", sf.Name, i%sf.Groups)
		}
		out = append(out, a)
	}
	return out, nil
}

func (sp *Spawner) spawnOne(sf SubfleetSpec, strategy Strategy, env *world.Environment) *Agent {
	id := AgentID(fmt.Sprintf("a%0*d", world.PadWidth(sp.total), sp.nextID))
	sp.nextID++

	units := env.UnitIDs()
	mem := NewHeatmap(units)
	if sf.InitialMemory == MemoryTrueYield {
		for _, u := range env.Units {
			mem.Set(u.ID, u.Stock*sf.Catchability)
		}
	}

	return &Agent{
		ID:           id,
		Subfleet:     sf.Name,
		Catchability: sf.Catchability,
		ExploreProb:  sf.ExploreProb,
		Memory:       mem,
		Strategy:     strategy,
		CatchByTime:  make(map[world.TimeID]float64),
		UnitCatch:    make(map[world.UnitID]float64, len(units)),
		UnitVisits:   make(map[world.UnitID]int, len(units)),
	}
}
