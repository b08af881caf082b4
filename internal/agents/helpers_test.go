package agents

import (
	"testing"

	"github.com/talgya/forage-sim/internal/entropy"
	"github.com/talgya/forage-sim/internal/world"
)

// newTestEnv builds n units with stock fixed at stock.
func newTestEnv(t *testing.T, n int, stock float64) *world.Environment {
	t.Helper()
	env, err := world.NewEnvironment(world.Config{
		Units:  n,
		Growth: 1,
		Reset:  world.ResetDistribution{Kind: world.DistUniform, Min: stock, Max: stock},
	}, entropy.New(1))
	if err != nil {
		t.Fatalf("NewEnvironment failed: %v", err)
	}
	return env
}

// newTestAgent builds a single agent with the given choice method.
func newTestAgent(t *testing.T, env *world.Environment, choice string, explore float64) *Agent {
	t.Helper()
	batch, err := NewSpawner(1).SpawnSubfleet(SubfleetSpec{
		Name:         "test",
		Agents:       1,
		Catchability: 0.5,
		ExploreProb:  explore,
		Choice:       choice,
	}, env)
	if err != nil {
		t.Fatalf("SpawnSubfleet failed: %v", err)
	}
	return batch[0]
}
