package world

import (
	"fmt"
	"log/slog"

	"github.com/talgya/forage-sim/internal/entropy"
	"github.com/talgya/forage-sim/internal/simerr"
)

// Config describes the units an Environment is built from.
type Config struct {
	Units     int
	Growth    float64
	Reset     ResetDistribution
	ResetProb float64
	Layout    Layout
}

// CorrectionRecord is the competition correction observed at a unit in one step.
type CorrectionRecord struct {
	Realized     float64 `json:"realized"`     // Correction applied to this step's foragers
	Hypothetical float64 `json:"hypothetical"` // Correction a new arrival would have faced
}

// Environment owns the fixed set of resource units and their aggregate trackers.
// Trackers are keyed by UnitID and TimeID.
type Environment struct {
	Units []*ResourceUnit // Ordered by Ordinal
	index map[UnitID]*ResourceUnit
	ids   []UnitID

	Effort      map[UnitID]int                         // Cumulative forager-visits per unit
	Catch       map[UnitID]float64                     // Cumulative corrected catch per unit
	Visits      map[TimeID]map[UnitID]int              // Foragers per unit per step
	Stock       map[TimeID]map[UnitID]float64          // Stock after dynamics, per step
	Corrections map[TimeID]map[UnitID]CorrectionRecord // Competition correction per unit per step

	// Catch taken this step, removed from stock in Advance.
	pending map[UnitID]float64
	// Units already flagged for negative stock.
	negative map[UnitID]bool
}

// NewEnvironment builds the units from cfg. Initial stocks are drawn from s,
// in ordinal order, according to cfg.Layout.
func NewEnvironment(cfg Config, s *entropy.Stream) (*Environment, error) {
	if cfg.Units < 1 {
		return nil, simerr.Config("environment.units", fmt.Sprint(cfg.Units), "need at least one unit")
	}

	stocks, err := initialStocks(cfg, s)
	if err != nil {
		return nil, fmt.Errorf("initial stocks: %w", err)
	}

	env := &Environment{
		Units:       make([]*ResourceUnit, 0, cfg.Units),
		index:       make(map[UnitID]*ResourceUnit, cfg.Units),
		ids:         make([]UnitID, 0, cfg.Units),
		Effort:      make(map[UnitID]int, cfg.Units),
		Catch:       make(map[UnitID]float64, cfg.Units),
		Visits:      make(map[TimeID]map[UnitID]int),
		Stock:       make(map[TimeID]map[UnitID]float64),
		Corrections: make(map[TimeID]map[UnitID]CorrectionRecord),
		pending:     make(map[UnitID]float64),
		negative:    make(map[UnitID]bool),
	}

	for i := 0; i < cfg.Units; i++ {
		u := &ResourceUnit{
			ID:        FormatUnitID(i, cfg.Units),
			Ordinal:   i,
			Stock:     stocks[i],
			Growth:    cfg.Growth,
			Reset:     cfg.Reset,
			ResetProb: cfg.ResetProb,
		}
		env.Units = append(env.Units, u)
		env.index[u.ID] = u
		env.ids = append(env.ids, u.ID)
		env.Effort[u.ID] = 0
		env.Catch[u.ID] = 0
	}
	return env, nil
}

// UnitIDs returns unit ids in ordinal order. The slice must not be modified.
func (e *Environment) UnitIDs() []UnitID {
	return e.ids
}

// Unit looks up a unit by id.
func (e *Environment) Unit(id UnitID) (*ResourceUnit, bool) {
	u, ok := e.index[id]
	return u, ok
}

// TrueStock returns the current stock of a unit.
func (e *Environment) TrueStock(id UnitID) (float64, error) {
	u, ok := e.index[id]
	if !ok {
		return 0, simerr.Invariant("world.stock", "", string(id), "unknown unit")
	}
	return u.Stock, nil
}

// TotalStock sums the current stock over all units.
func (e *Environment) TotalStock() float64 {
	total := 0.0
	for _, u := range e.Units {
		total += u.Stock
	}
	return total
}

// RecordHarvest books one forager's corrected catch at a unit during step t.
// The catch is removed from the stock in Advance, so every forager in a step
// reads the same stock.
func (e *Environment) RecordHarvest(id UnitID, t TimeID, catch float64) {
	e.Effort[id]++
	e.Catch[id] += catch
	e.pending[id] += catch

	visits := e.Visits[t]
	if visits == nil {
		visits = make(map[UnitID]int, len(e.Units))
		e.Visits[t] = visits
	}
	visits[id]++
}

// RecordCorrection stores the competition correction for a unit at step t.
func (e *Environment) RecordCorrection(t TimeID, id UnitID, rec CorrectionRecord) {
	byUnit := e.Corrections[t]
	if byUnit == nil {
		byUnit = make(map[UnitID]CorrectionRecord, len(e.Units))
		e.Corrections[t] = byUnit
	}
	byUnit[id] = rec
}

// Advance removes this step's harvest, then applies growth and reset to every
// unit in ordinal order and records the resulting stock under t. Returns the
// number of units that were reset.
func (e *Environment) Advance(s *entropy.Stream, t TimeID) (int, error) {
	resets := 0
	stock := make(map[UnitID]float64, len(e.Units))
	for _, u := range e.Units {
		u.Stock -= e.pending[u.ID]
		reset, err := u.advance(s)
		if err != nil {
			return resets, fmt.Errorf("step %s: %w", t, err)
		}
		if reset {
			resets++
		}
		if u.Stock < 0 && !e.negative[u.ID] {
			// Known gap: stock is not clamped.
			e.negative[u.ID] = true
			slog.Warn("unit stock went negative", "unit", u.ID, "step", t, "stock", u.Stock)
		}
		stock[u.ID] = u.Stock
	}
	clear(e.pending)
	e.Stock[t] = stock
	return resets, nil
}
