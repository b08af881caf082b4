package agents

import "github.com/talgya/forage-sim/internal/world"

// Yield is an optional expected yield: either unknown, or a realized value.
type Yield struct {
	Value float64 `json:"value"`
	Known bool    `json:"known"`
}

// Heatmap is an agent's memory: one Yield per environment unit, enumerated in
// the environment's unit order.
type Heatmap struct {
	units  []world.UnitID
	values map[world.UnitID]Yield
}

// NewHeatmap creates a memory with every unit unknown.
func NewHeatmap(units []world.UnitID) *Heatmap {
	h := &Heatmap{
		units:  units,
		values: make(map[world.UnitID]Yield, len(units)),
	}
	for _, u := range units {
		h.values[u] = Yield{}
	}
	return h
}

// Units returns unit ids in enumeration order.
func (h *Heatmap) Units() []world.UnitID {
	return h.units
}

// Len returns the number of entries (always the number of units).
func (h *Heatmap) Len() int {
	return len(h.values)
}

// Get returns the entry for a unit.
func (h *Heatmap) Get(unit world.UnitID) Yield {
	return h.values[unit]
}

// Set overwrites the entry for a unit with a realized value.
func (h *Heatmap) Set(unit world.UnitID, v float64) {
	h.values[unit] = Yield{Value: v, Known: true}
}

// Merge folds in a value learned from another agent: an unknown entry adopts
// it as-is, a known entry becomes the arithmetic mean of old and new.
func (h *Heatmap) Merge(unit world.UnitID, v float64) {
	old := h.values[unit]
	if !old.Known {
		h.values[unit] = Yield{Value: v, Known: true}
		return
	}
	h.values[unit] = Yield{Value: (old.Value + v) / 2, Known: true}
}

// Known returns the units with a realized value, in enumeration order.
func (h *Heatmap) Known() []world.UnitID {
	var known []world.UnitID
	for _, u := range h.units {
		if h.values[u].Known {
			known = append(known, u)
		}
	}
	return known
}

// Fill returns the fraction of units with a realized value.
func (h *Heatmap) Fill() float64 {
	if len(h.units) == 0 {
		return 0
	}
	return float64(len(h.Known())) / float64(len(h.units))
}

// value treats unknown entries as zero.
func (h *Heatmap) value(unit world.UnitID) float64 {
	y := h.values[unit]
	if !y.Known {
		return 0
	}
	return y.Value
}

// Best returns the unit with the highest value. Ties go to the first unit in
// enumeration order, so an all-zero memory always yields the first unit.
func (h *Heatmap) Best() world.UnitID {
	best := h.units[0]
	bestVal := h.value(best)
	for _, u := range h.units[1:] {
		if v := h.value(u); v > bestVal {
			best, bestVal = u, v
		}
	}
	return best
}

// Snapshot copies the memory.
func (h *Heatmap) Snapshot() map[world.UnitID]Yield {
	out := make(map[world.UnitID]Yield, len(h.values))
	for k, v := range h.values {
		out[k] = v
	}
	return out
}
