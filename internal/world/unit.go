// Package world provides the resource units agents forage and the
// environment that owns them, together with its aggregate trackers.
package world

import (
	"github.com/talgya/forage-sim/internal/entropy"
	"github.com/talgya/forage-sim/internal/simerr"
)

// DistributionKind selects how a unit's stock is resampled on reset.
type DistributionKind uint8

const (
	DistNormal  DistributionKind = iota // Normal truncated at zero
	DistUniform                         // Uniform over [Min, Max]
)

// DistributionName returns the configuration name of a distribution kind.
func DistributionName(k DistributionKind) string {
	switch k {
	case DistNormal:
		return "normal"
	case DistUniform:
		return "uniform"
	default:
		return "unknown"
	}
}

// ParseDistribution maps a configuration name to a DistributionKind.
func ParseDistribution(name string) (DistributionKind, error) {
	switch name {
	case "normal":
		return DistNormal, nil
	case "uniform":
		return DistUniform, nil
	default:
		return 0, simerr.Config("environment.reset.distribution", name, "expected normal or uniform")
	}
}

// ResetDistribution parameterises stock resampling.
type ResetDistribution struct {
	Kind DistributionKind
	Mean float64 // Normal only
	SD   float64 // Normal only
	Min  float64 // Uniform only
	Max  float64 // Uniform only
}

// Sample draws a fresh stock level. Only the truncated normal can fail.
func (d ResetDistribution) Sample(s *entropy.Stream) (float64, bool) {
	if d.Kind == DistUniform {
		return s.Uniform(d.Min, d.Max), true
	}
	return s.TruncatedNormal(d.Mean, d.SD)
}

// ResourceUnit is a single forageable option.
type ResourceUnit struct {
	ID        UnitID
	Ordinal   int     // Fixed iteration position
	Stock     float64 // Not clamped: harvesting without resets can drive it negative
	Growth    float64 // Multiplicative growth per step
	Reset     ResetDistribution
	ResetProb float64
}

// advance applies growth and then, with probability ResetProb, a reset that
// overwrites the grown stock. Exactly one uniform draw is consumed before any
// resampling draws. Returns whether a reset happened.
func (u *ResourceUnit) advance(s *entropy.Stream) (bool, error) {
	u.Stock *= u.Growth
	if !s.Bernoulli(u.ResetProb) {
		return false, nil
	}
	v, ok := u.Reset.Sample(s)
	if !ok {
		return false, simerr.Invariant("world.reset", "", string(u.ID), "truncated normal rejection sampling exhausted")
	}
	u.Stock = v
	return true, nil
}
