package simerr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestConfigErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("build strategy: %w", Config("choice", "greedy", "unknown choice method"))

	if !errors.Is(err, ErrConfiguration) {
		t.Fatal("expected errors.Is(err, ErrConfiguration)")
	}
	if errors.Is(err, ErrInvariant) {
		t.Error("config error must not match ErrInvariant")
	}

	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatal("expected errors.As to find *ConfigError")
	}
	if ce.Value != "greedy" {
		t.Errorf("expected value 'greedy', got '%s'", ce.Value)
	}
}

func TestInvariantErrorCarriesIDs(t *testing.T) {
	err := Invariant("competition.correct", "a003", "u1", "effort is zero")

	if !errors.Is(err, ErrInvariant) {
		t.Fatal("expected errors.Is(err, ErrInvariant)")
	}
	msg := err.Error()
	for _, want := range []string{"competition.correct", "agent=a003", "unit=u1", "effort is zero"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected message to contain %q, got %q", want, msg)
		}
	}
}
