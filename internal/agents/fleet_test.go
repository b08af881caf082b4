package agents

import (
	"errors"
	"testing"

	"github.com/talgya/forage-sim/internal/entropy"
	"github.com/talgya/forage-sim/internal/simerr"
	"github.com/talgya/forage-sim/internal/world"
)

func TestNewFleetIDsAndSubfleets(t *testing.T) {
	env := newTestEnv(t, 3, 100)
	f, err := NewFleet(FleetConfig{
		Subfleets: []SubfleetSpec{
			{Name: "coastal", Agents: 6, Catchability: 0.2, Choice: "random"},
			{Name: "deep", Agents: 5, Catchability: 0.4, Choice: "full_heatmap", Groups: 2},
		},
		Share: NoSharing,
	}, env)
	if err != nil {
		t.Fatalf("NewFleet failed: %v", err)
	}

	if len(f.Agents) != 11 {
		t.Fatalf("expected 11 agents, got %d", len(f.Agents))
	}
	if f.Agents[0].ID != "a00" || f.Agents[10].ID != "a10" {
		t.Errorf("expected ids a00..a10, got %s..%s", f.Agents[0].ID, f.Agents[10].ID)
	}
	if len(f.Subfleets["coastal"]) != 6 || len(f.Subfleets["deep"]) != 5 {
		t.Errorf("unexpected subfleet sizes: %v", f.Subfleets)
	}
	deep, _ := f.Agent("a06")
	if deep.Catchability != 0.4 || deep.Group != "deep/g0" {
		t.Errorf("unexpected deep agent: catchability %v group %q", deep.Catchability, deep.Group)
	}
	for _, a := range f.Agents {
		if a.Memory.Len() != len(env.Units) {
			t.Errorf("agent %s: expected one memory entry per unit, got %d", a.ID, a.Memory.Len())
		}
	}
}

func TestNewFleetUnknownChoiceFailsEvenWhenEmpty(t *testing.T) {
	env := newTestEnv(t, 3, 100)
	_, err := NewFleet(FleetConfig{
		Subfleets: []SubfleetSpec{
			{Name: "ok", Agents: 2, Catchability: 0.2, Choice: "random"},
			{Name: "bad", Agents: 0, Catchability: 0.2, Choice: "clairvoyant"},
		},
	}, env)
	if !errors.Is(err, simerr.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestTrueYieldInitialMemory(t *testing.T) {
	env := newTestEnv(t, 3, 100)
	f, err := NewFleet(FleetConfig{
		Subfleets: []SubfleetSpec{{Name: "f", Agents: 1, Catchability: 0.25, Choice: "full_weighted_heatmap", InitialMemory: MemoryTrueYield}},
	}, env)
	if err != nil {
		t.Fatalf("NewFleet failed: %v", err)
	}
	for _, u := range env.UnitIDs() {
		if got := f.Agents[0].Memory.Get(u); !got.Known || got.Value != 25 {
			t.Errorf("unit %s: expected known 25, got %+v", u, got)
		}
	}
}

func TestShuffledKeepsFleetOrder(t *testing.T) {
	env := newTestEnv(t, 3, 100)
	f, _ := NewFleet(FleetConfig{
		Subfleets: []SubfleetSpec{{Name: "f", Agents: 20, Catchability: 0.1, Choice: "random"}},
	}, env)

	before := make([]AgentID, len(f.Agents))
	for i, a := range f.Agents {
		before[i] = a.ID
	}

	order := f.Shuffled(entropy.New(8))
	if len(order) != 20 {
		t.Fatalf("expected 20 agents, got %d", len(order))
	}
	for i, a := range f.Agents {
		if a.ID != before[i] {
			t.Errorf("fleet order changed at %d: %s", i, a.ID)
		}
	}
	seen := map[AgentID]bool{}
	for _, a := range order {
		seen[a.ID] = true
	}
	if len(seen) != 20 {
		t.Errorf("expected a permutation, got %d distinct agents", len(seen))
	}
}

func TestSnapshotBefore(t *testing.T) {
	env := newTestEnv(t, 3, 100)
	env.Units[2].Stock = 300
	f, _ := NewFleet(FleetConfig{
		Subfleets:   []SubfleetSpec{{Name: "f", Agents: 2, Catchability: 0.5, Choice: "full_heatmap"}},
		TrackMemory: true,
	}, env)

	a0, a1 := f.Agents[0], f.Agents[1]
	a0.Memory.Set("u1", 10)
	// a1 foraged u1 last step, so it is not its own competitor.
	a1.Memory.Set("u1", 10)
	a1.Strategy.Choose(a1.Memory, 0, entropy.New(1))

	f.SnapshotBefore(env, "1", map[world.UnitID]int{"u1": 2})

	if got := f.MemoryFill["1"][a0.ID]; got != 1.0/3 {
		t.Errorf("expected fill 1/3, got %v", got)
	}
	if got := f.ExpectedCompetitors["1"][a0.ID]; got != 2 {
		t.Errorf("expected 2 expected competitors for a0, got %d", got)
	}
	if got := f.ExpectedCompetitors["1"][a1.ID]; got != 1 {
		t.Errorf("expected 1 expected competitor for a1, got %d", got)
	}
	if got := f.PotentialCatch["1"][a0.ID]; got != 150 {
		t.Errorf("expected potential catch 300 × 0.5 = 150, got %v", got)
	}
	if !f.Memory["1"][a0.ID]["u1"].Known {
		t.Error("expected memory snapshot to be recorded")
	}
}

func TestRecordOutcome(t *testing.T) {
	env := newTestEnv(t, 2, 100)
	f, _ := NewFleet(FleetConfig{
		Subfleets: []SubfleetSpec{{Name: "f", Agents: 2, Catchability: 0.5, Choice: "random"}},
	}, env)
	f.RecordOutcome("a0", "0", 10, 1)
	f.RecordOutcome("a1", "0", 15, NoCompetitors)

	if f.Catch["0"] != 25 {
		t.Errorf("expected step catch 25, got %v", f.Catch["0"])
	}
	if f.Competitors["0"]["a1"] != NoCompetitors {
		t.Errorf("expected sentinel for a1, got %d", f.Competitors["0"]["a1"])
	}
}
