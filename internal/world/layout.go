package world

import (
	"fmt"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/forage-sim/internal/entropy"
	"github.com/talgya/forage-sim/internal/simerr"
)

// LayoutKind selects how initial stocks are assigned.
type LayoutKind uint8

const (
	LayoutSampled LayoutKind = iota // Independent draws from the reset distribution
	LayoutNoise                     // Correlated richness along the unit ordinals
)

// Layout controls initial stock assignment.
type Layout struct {
	Kind  LayoutKind
	Scale float64 // Noise frequency per ordinal step (noise layout only)
}

// ParseLayout maps a configuration name to a LayoutKind.
func ParseLayout(name string) (LayoutKind, error) {
	switch name {
	case "", "sampled":
		return LayoutSampled, nil
	case "noise":
		return LayoutNoise, nil
	default:
		return 0, simerr.Config("environment.layout.kind", name, "expected sampled or noise")
	}
}

func initialStocks(cfg Config, s *entropy.Stream) ([]float64, error) {
	stocks := make([]float64, cfg.Units)

	if cfg.Layout.Kind == LayoutNoise {
		// One draw seeds the noise field.
		noise := opensimplex.NewNormalized(s.Int63())
		scale := cfg.Layout.Scale
		if scale <= 0 {
			scale = 0.15
		}
		for i := range stocks {
			n := noise.Eval2(float64(i)*scale, 0)
			stocks[i] = noiseStock(cfg.Reset, n)
		}
		return stocks, nil
	}

	for i := range stocks {
		v, ok := cfg.Reset.Sample(s)
		if !ok {
			return nil, simerr.Invariant("world.init", "", string(FormatUnitID(i, cfg.Units)),
				fmt.Sprintf("cannot sample initial stock from %s distribution", DistributionName(cfg.Reset.Kind)))
		}
		stocks[i] = v
	}
	return stocks, nil
}

// noiseStock maps a normalized noise value in [0, 1) onto the reset distribution's range.
func noiseStock(d ResetDistribution, n float64) float64 {
	if d.Kind == DistUniform {
		return d.Min + n*(d.Max-d.Min)
	}
	v := d.Mean + d.SD*(2*n-1)
	if v < 0 {
		v = 0
	}
	return v
}
