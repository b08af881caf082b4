package persistence

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/talgya/forage-sim/internal/agents"
	"github.com/talgya/forage-sim/internal/competition"
	"github.com/talgya/forage-sim/internal/engine"
	"github.com/talgya/forage-sim/internal/world"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testResults(t *testing.T) []engine.Result {
	t.Helper()
	sc, err := engine.NewScheduler(engine.Config{
		Seed:       21,
		Duration:   6,
		Replicates: 2,
		World: world.Config{
			Units:     4,
			Growth:    1.01,
			Reset:     world.ResetDistribution{Kind: world.DistUniform, Min: 40, Max: 80},
			ResetProb: 0.1,
		},
		Fleet: agents.FleetConfig{
			Subfleets: []agents.SubfleetSpec{{Name: "f", Agents: 3, Catchability: 0.2, Choice: "random", Groups: 2}},
			Share:     agents.NoSharing,
		},
		Method:             competition.MethodSpec{competition.MethodInterferenceSimple},
		InterferenceFactor: 0.9,
	})
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}
	results, err := sc.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return results
}

func TestSaveAndReadRun(t *testing.T) {
	db := openTestDB(t)
	results := testResults(t)
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	var ids []string
	for i := range results {
		id, err := db.SaveRun(&results[i], []byte("seed: 21\n"), created)
		if err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}
		ids = append(ids, id)
	}
	if ids[0] == ids[1] {
		t.Fatal("expected distinct run ids")
	}

	runs, err := db.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 || runs[0].Replicate != 0 || runs[1].Seed != 22 {
		t.Errorf("unexpected runs %+v", runs)
	}
	if runs[0].Scenario != "" {
		t.Error("expected list to omit scenario text")
	}

	run, err := db.GetRun(ids[1])
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Scenario != "seed: 21\n" || run.Method != "interference-simple" || !run.CreatedAt.Equal(created) {
		t.Errorf("unexpected run %+v", run)
	}
	if math.Abs(run.TotalCatch-results[1].Fleet.TotalCatch()) > 1e-9 {
		t.Errorf("expected total catch %v, got %v", results[1].Fleet.TotalCatch(), run.TotalCatch)
	}

	steps, err := db.RunSteps(ids[1])
	if err != nil {
		t.Fatalf("RunSteps failed: %v", err)
	}
	if len(steps) != 6 || steps[0].Time != "0" {
		t.Fatalf("unexpected steps %+v", steps)
	}
	if steps[2].Catch != results[1].Fleet.Catch["2"] {
		t.Errorf("expected step catch %v, got %v", results[1].Fleet.Catch["2"], steps[2].Catch)
	}

	units, err := db.RunUnits(ids[1])
	if err != nil {
		t.Fatalf("RunUnits failed: %v", err)
	}
	if len(units) != 6*4 || units[0].Unit != "u0" {
		t.Errorf("unexpected unit rows: %d", len(units))
	}

	agentRows, err := db.RunAgents(ids[0])
	if err != nil {
		t.Fatalf("RunAgents failed: %v", err)
	}
	if len(agentRows) != 3 || agentRows[0].Agent != "a0" || agentRows[0].Group != "f/g0" {
		t.Errorf("unexpected agent rows %+v", agentRows)
	}
	visits := 0
	for _, a := range agentRows {
		visits += a.Visits
	}
	if visits != 3*6 {
		t.Errorf("expected %d visits, got %d", 3*6, visits)
	}
}

func TestGetRunNotFound(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.GetRun("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMeta(t *testing.T) {
	db := openTestDB(t)
	if err := db.SaveMeta("last_seed", "7"); err != nil {
		t.Fatalf("SaveMeta failed: %v", err)
	}
	if err := db.SaveMeta("last_seed", "8"); err != nil {
		t.Fatalf("SaveMeta failed: %v", err)
	}
	if v, err := db.GetMeta("last_seed"); err != nil || v != "8" {
		t.Errorf("expected 8, got %q (%v)", v, err)
	}
}
