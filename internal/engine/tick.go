// Package engine provides the replicate and step loop of the simulation.
package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/talgya/forage-sim/internal/agents"
	"github.com/talgya/forage-sim/internal/competition"
	"github.com/talgya/forage-sim/internal/entropy"
	"github.com/talgya/forage-sim/internal/world"
)

// Scheduler runs every replicate of a scenario, one after another.
type Scheduler struct {
	cfg Config

	// Callbacks, populated during setup. Both run on the scheduler goroutine.
	OnStep      func(StepSummary) // After every step
	OnReplicate func(*Result)     // After every replicate
}

// NewScheduler validates cfg up front so that a bad scenario fails before
// any replicate starts.
func NewScheduler(cfg Config) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scheduler{cfg: cfg}, nil
}

// Config returns the scheduler's configuration.
func (sc *Scheduler) Config() Config {
	return sc.cfg
}

// Run executes all replicates in order and returns one Result per replicate.
// Any error aborts the run; results of completed replicates are returned
// alongside it.
func (sc *Scheduler) Run() ([]Result, error) {
	results := make([]Result, 0, sc.cfg.Replicates)
	start := time.Now()
	slog.Info("run started",
		"seed", sc.cfg.Seed,
		"replicates", sc.cfg.Replicates,
		"duration", sc.cfg.Duration,
		"units", sc.cfg.World.Units,
	)

	for r := 0; r < sc.cfg.Replicates; r++ {
		res, err := sc.RunReplicate(r)
		if err != nil {
			return results, fmt.Errorf("replicate %d: %w", r, err)
		}
		results = append(results, *res)
		if sc.OnReplicate != nil {
			sc.OnReplicate(res)
		}
	}

	slog.Info("run finished", "replicates", len(results), "elapsed", time.Since(start).Round(time.Millisecond))
	return results, nil
}

// RunReplicate runs replicate r with a fresh environment, fleet and
// generator seeded from the base seed plus r.
func (sc *Scheduler) RunReplicate(r int) (*Result, error) {
	seed := entropy.ReplicateSeed(sc.cfg.Seed, r)
	s := entropy.New(seed)

	env, err := world.NewEnvironment(sc.cfg.World, s)
	if err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	fleet, err := agents.NewFleet(sc.cfg.Fleet, env)
	if err != nil {
		return nil, fmt.Errorf("fleet: %w", err)
	}
	ce, err := competition.New(sc.cfg.Method, sc.cfg.InterferenceFactor, env.UnitIDs())
	if err != nil {
		return nil, fmt.Errorf("competition: %w", err)
	}

	res := &Result{
		Replicate: r,
		Seed:      seed,
		Method:    ce.Name(),
		Env:       env,
		Fleet:     fleet,
	}

	var prev world.TimeID
	for i := 0; i < sc.cfg.Duration; i++ {
		t := world.FormatTimeID(i, sc.cfg.Duration)
		sum, err := sc.step(s, env, fleet, ce, i, t, prev)
		if err != nil {
			return nil, fmt.Errorf("step %s: %w", t, err)
		}
		sum.Replicate = r
		res.Steps = append(res.Steps, t)
		res.Resets += sum.Resets
		res.Shares += sum.Shares
		if sc.OnStep != nil {
			sc.OnStep(sum)
		}
		prev = t
	}

	slog.Info("replicate finished",
		"replicate", r,
		"seed", seed,
		"method", res.Method,
		"total_catch", fmt.Sprintf("%.3f", fleet.TotalCatch()),
		"total_stock", fmt.Sprintf("%.3f", env.TotalStock()),
		"resets", res.Resets,
	)
	return res, nil
}

// step advances one replicate by one time step. Randomness is consumed in a
// fixed order: shuffle, strategy draws (and sharing), then stock resampling.
func (sc *Scheduler) step(s *entropy.Stream, env *world.Environment, fleet *agents.Fleet,
	ce *competition.Engine, i int, t, prev world.TimeID) (StepSummary, error) {
	order := fleet.Shuffled(s)

	var prevVisits map[world.UnitID]int
	if i > 0 {
		prevVisits = env.Visits[prev]
	}
	fleet.SnapshotBefore(env, t, prevVisits)

	// Phase 1: every agent chooses before anyone is settled.
	for _, a := range order {
		unit, _, err := a.ChooseAndForage(env, s)
		if err != nil {
			return StepSummary{}, err
		}
		if err := ce.Load(unit, a.ID); err != nil {
			return StepSummary{}, err
		}
	}

	// Phase 2: settle against the full effort picture, sharing as we go.
	shares := 0
	for _, a := range order {
		out, err := ce.Correct(a, env, t)
		if err != nil {
			return StepSummary{}, err
		}
		fleet.RecordOutcome(a.ID, t, out.Corrected, out.Competitors)
		shares += fleet.ShareFrom(a, s)
	}

	effort := make(map[world.UnitID]int, len(env.Units))
	for _, u := range env.UnitIDs() {
		effort[u] = ce.Effort(u)
	}

	resets, err := env.Advance(s, t)
	if err != nil {
		return StepSummary{}, err
	}

	ce.UpdateAggregateTrackers(env, t)
	ce.Reset()

	sum := StepSummary{
		Index:      i,
		Time:       t,
		Catch:      fleet.Catch[t],
		TotalStock: env.TotalStock(),
		Effort:     effort,
		Resets:     resets,
		Shares:     shares,
	}
	slog.Debug("step",
		"step", t,
		"catch", sum.Catch,
		"stock", sum.TotalStock,
		"resets", resets,
		"shares", shares,
	)
	return sum, nil
}
