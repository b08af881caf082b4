package entropy

import "testing"

func TestSameSeedSameSequence(t *testing.T) {
	a := New(42)
	b := New(42)
	for i := 0; i < 100; i++ {
		if x, y := a.Float64(), b.Float64(); x != y {
			t.Fatalf("draw %d differs: %v vs %v", i, x, y)
		}
	}
}

func TestBernoulliConsumesOneDraw(t *testing.T) {
	a := New(7)
	b := New(7)
	a.Bernoulli(0)
	b.Bernoulli(1)
	if a.Float64() != b.Float64() {
		t.Error("expected streams to stay aligned after Bernoulli with different p")
	}
}

func TestTruncatedNormalNonNegative(t *testing.T) {
	s := New(3)
	for i := 0; i < 1000; i++ {
		v, ok := s.TruncatedNormal(1, 5)
		if !ok {
			t.Fatal("expected a value within the rejection budget")
		}
		if v < 0 {
			t.Fatalf("expected non-negative value, got %v", v)
		}
	}
}

func TestTruncatedNormalGivesUp(t *testing.T) {
	s := New(3)
	if _, ok := s.TruncatedNormal(-1e6, 1); ok {
		t.Error("expected rejection sampling to give up for an all-negative distribution")
	}
}

func TestResolveSeed(t *testing.T) {
	if got := ResolveSeed(99); got != 99 {
		t.Errorf("expected 99, got %d", got)
	}
	if got := ResolveSeed(0); got == 0 {
		t.Error("expected a non-zero seed to be drawn")
	}
	if got := ReplicateSeed(10, 3); got != 13 {
		t.Errorf("expected 13, got %d", got)
	}
}
