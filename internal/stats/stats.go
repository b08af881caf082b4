// Package stats derives summary figures from finished replicates.
package stats

import (
	"math"
	"sort"

	"golang.org/x/exp/constraints"

	"github.com/talgya/forage-sim/internal/agents"
	"github.com/talgya/forage-sim/internal/engine"
	"github.com/talgya/forage-sim/internal/world"
)

// Number is any integer or float type.
type Number interface {
	constraints.Integer | constraints.Float
}

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean[T Number](xs []T) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += float64(x)
	}
	return sum / float64(len(xs))
}

// SD returns the sample standard deviation, or 0 with fewer than two values.
func SD[T Number](xs []T) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := Mean(xs)
	ss := 0.0
	for _, x := range xs {
		d := float64(x) - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

// Gini returns the Gini coefficient of non-negative values: 0 for perfect
// equality, approaching 1 when one value holds everything.
func Gini(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	total, weighted := 0.0, 0.0
	for i, x := range sorted {
		total += x
		weighted += float64(i+1) * x
	}
	if total == 0 {
		return 0
	}
	return (2*weighted)/(float64(n)*total) - float64(n+1)/float64(n)
}

// MemoryAccuracy is the mean absolute error between each agent's known
// memory entries and the yield it would get alone at the current stock.
// Returns 0 when no agent knows anything.
func MemoryAccuracy(fleet *agents.Fleet, env *world.Environment) float64 {
	var errs []float64
	for _, a := range fleet.Agents {
		for _, u := range a.Memory.Known() {
			stock, err := env.TrueStock(u)
			if err != nil {
				continue
			}
			errs = append(errs, math.Abs(a.Memory.Get(u).Value-stock*a.Catchability))
		}
	}
	return Mean(errs)
}

// DepletionRatio is the total stock after the last step divided by the total
// after the first. Returns 0 for runs without recorded stock.
func DepletionRatio(env *world.Environment, steps []world.TimeID) float64 {
	if len(steps) == 0 {
		return 0
	}
	first := sumStock(env.Stock[steps[0]])
	if first == 0 {
		return 0
	}
	return sumStock(env.Stock[steps[len(steps)-1]]) / first
}

func sumStock(byUnit map[world.UnitID]float64) float64 {
	total := 0.0
	for _, v := range byUnit {
		total += v
	}
	return total
}

// Summary is the headline figures of one replicate.
type Summary struct {
	Replicate      int     `json:"replicate"`
	Seed           int64   `json:"seed"`
	Method         string  `json:"method"`
	Steps          int     `json:"steps"`
	Agents         int     `json:"agents"`
	Units          int     `json:"units"`
	TotalCatch     float64 `json:"total_catch"`
	MeanAgentCatch float64 `json:"mean_agent_catch"`
	SDAgentCatch   float64 `json:"sd_agent_catch"`
	Gini           float64 `json:"gini"`
	MemoryAccuracy float64 `json:"memory_accuracy"`
	DepletionRatio float64 `json:"depletion_ratio"`
	FinalStock     float64 `json:"final_stock"`
	Resets         int     `json:"resets"`
	Shares         int     `json:"shares"`

	Subfleets map[string]float64 `json:"subfleet_catch"`
}

// Summarize derives the Summary of a finished replicate.
func Summarize(res *engine.Result) Summary {
	catches := make([]float64, len(res.Fleet.Agents))
	for i, a := range res.Fleet.Agents {
		catches[i] = a.TotalCatch
	}

	subfleets := make(map[string]float64, len(res.Fleet.Subfleets))
	for name, ids := range res.Fleet.Subfleets {
		for _, id := range ids {
			if a, ok := res.Fleet.Agent(id); ok {
				subfleets[name] += a.TotalCatch
			}
		}
	}

	return Summary{
		Replicate:      res.Replicate,
		Seed:           res.Seed,
		Method:         res.Method,
		Steps:          len(res.Steps),
		Agents:         len(res.Fleet.Agents),
		Units:          len(res.Env.Units),
		TotalCatch:     res.Fleet.TotalCatch(),
		MeanAgentCatch: Mean(catches),
		SDAgentCatch:   SD(catches),
		Gini:           Gini(catches),
		MemoryAccuracy: MemoryAccuracy(res.Fleet, res.Env),
		DepletionRatio: DepletionRatio(res.Env, res.Steps),
		FinalStock:     res.Env.TotalStock(),
		Resets:         res.Resets,
		Shares:         res.Shares,
		Subfleets:      subfleets,
	}
}
