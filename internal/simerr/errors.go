// Package simerr defines the two failure classes of the simulation core:
// configuration errors raised at construction, and invariant violations that
// signal a sequencing bug inside a step.
package simerr

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration matches any *ConfigError via errors.Is.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvariant matches any *InvariantError via errors.Is.
	ErrInvariant = errors.New("invariant violation")
)

// ConfigError reports an unknown strategy/method name or a malformed setting.
type ConfigError struct {
	Field  string // e.g. "choice", "competition.method"
	Value  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("configuration error: %s=%q: %s", e.Field, e.Value, e.Reason)
}

// Is lets errors.Is(err, ErrConfiguration) match.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

// Config builds a ConfigError.
func Config(field, value, reason string) error {
	return &ConfigError{Field: field, Value: value, Reason: reason}
}

// InvariantError reports a broken precondition, with the offending ids attached.
type InvariantError struct {
	Op     string // operation that detected it, e.g. "competition.correct"
	Agent  string // empty when not agent-specific
	Unit   string // empty when not unit-specific
	Reason string
}

func (e *InvariantError) Error() string {
	msg := "invariant violation in " + e.Op
	if e.Agent != "" {
		msg += " agent=" + e.Agent
	}
	if e.Unit != "" {
		msg += " unit=" + e.Unit
	}
	return msg + ": " + e.Reason
}

// Is lets errors.Is(err, ErrInvariant) match.
func (e *InvariantError) Is(target error) bool {
	return target == ErrInvariant
}

// Invariant builds an InvariantError.
func Invariant(op, agent, unit, reason string) error {
	return &InvariantError{Op: op, Agent: agent, Unit: unit, Reason: reason}
}
