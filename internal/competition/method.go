package competition

import (
	"fmt"
	"math"

	"gopkg.in/yaml.v3"

	"github.com/talgya/forage-sim/internal/simerr"
)

const (
	MethodAbsent             = "absent"
	MethodInterferenceSimple = "interference-simple"
	MethodSplitCatch         = "split-catch"
)

// Method computes correction factors from a unit's effort.
type Method interface {
	Name() string
	// Correction is the factor applied to each of effort foragers (effort >= 1).
	Correction(effort int) float64
	// Hypothetical is the factor a new arrival would face (effort >= 0).
	Hypothetical(effort int) float64
	// Counts reports whether competitors encountered is meaningful.
	Counts() bool
}

type absent struct{}

func (absent) Name() string { return MethodAbsent }
func (absent) Correction(int) float64 { return 1 }
func (absent) Hypothetical(int) float64 { return 1 }
func (absent) Counts() bool { return false }

// interference penalises each competitor multiplicatively.
type interference struct{ factor float64 }

func (interference) Name() string { return MethodInterferenceSimple }
func (m interference) Correction(effort int) float64 {
	return math.Pow(m.factor, float64(effort-1))
}
func (m interference) Hypothetical(effort int) float64 {
	return math.Pow(m.factor, float64(effort))
}
func (interference) Counts() bool { return true }

// splitCatch divides the unit's yield evenly among its foragers.
type splitCatch struct{}

func (splitCatch) Name() string { return MethodSplitCatch }
func (splitCatch) Correction(effort int) float64 {
	return 1 / float64(effort)
}
func (splitCatch) Hypothetical(effort int) float64 {
	return 1 / float64(effort+1)
}
func (splitCatch) Counts() bool { return true }

// MethodSpec is a single method name or an ordered list of names. In YAML it
// may be written either as a scalar or as a sequence.
type MethodSpec []string

// ParseMethodSpec accepts a string, a []string, or a []any of strings.
// Anything else is a shape error.
func ParseMethodSpec(v any) (MethodSpec, error) {
	switch val := v.(type) {
	case string:
		return MethodSpec{val}, nil
	case []string:
		return MethodSpec(val), nil
	case MethodSpec:
		return val, nil
	case []any:
		spec := make(MethodSpec, 0, len(val))
		for i, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, simerr.Config("competition.method", fmt.Sprint(v),
					fmt.Sprintf("entry %d is %T, expected a method name", i, item))
			}
			spec = append(spec, s)
		}
		return spec, nil
	default:
		return nil, simerr.Config("competition.method", fmt.Sprint(v),
			fmt.Sprintf("got %T, expected a method name or a list of names", v))
	}
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *MethodSpec) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	spec, err := ParseMethodSpec(raw)
	if err != nil {
		return err
	}
	*m = spec
	return nil
}

// MarshalYAML writes a single-name spec as a scalar.
func (m MethodSpec) MarshalYAML() (any, error) {
	if len(m) == 1 {
		return m[0], nil
	}
	return []string(m), nil
}

// buildMethods resolves a spec into methods. absent must stand alone, and
// a name may appear only once.
func buildMethods(spec MethodSpec, factor float64) ([]Method, error) {
	if len(spec) == 0 {
		return nil, simerr.Config("competition.method", "", "no method given")
	}

	seen := make(map[string]bool, len(spec))
	methods := make([]Method, 0, len(spec))
	for _, name := range spec {
		if seen[name] {
			return nil, simerr.Config("competition.method", name, "listed more than once")
		}
		seen[name] = true

		switch name {
		case MethodAbsent:
			if len(spec) > 1 {
				return nil, simerr.Config("competition.method", name, "absent cannot be combined with other methods")
			}
			methods = append(methods, absent{})
		case MethodInterferenceSimple:
			if factor < 0 || math.IsNaN(factor) {
				return nil, simerr.Config("competition.interference_factor", fmt.Sprint(factor), "must be non-negative")
			}
			methods = append(methods, interference{factor: factor})
		case MethodSplitCatch:
			methods = append(methods, splitCatch{})
		default:
			return nil, simerr.Config("competition.method", name,
				"unknown competition method (valid: absent, interference-simple, split-catch)")
		}
	}
	return methods, nil
}
