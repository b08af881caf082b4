package agents

import (
	"errors"
	"testing"

	"github.com/talgya/forage-sim/internal/entropy"
	"github.com/talgya/forage-sim/internal/simerr"
	"github.com/talgya/forage-sim/internal/world"
)

func newSharingFleet(t *testing.T, policy SharePolicy, groups int) (*Fleet, *world.Environment) {
	t.Helper()
	env := newTestEnv(t, 6, 100)
	f, err := NewFleet(FleetConfig{
		Subfleets: []SubfleetSpec{{Name: "f", Agents: 4, Catchability: 0.5, Choice: "random", Groups: groups}},
		Share:     policy,
	}, env)
	if err != nil {
		t.Fatalf("NewFleet failed: %v", err)
	}
	return f, env
}

func TestParseSharePolicy(t *testing.T) {
	tests := []struct {
		name      string
		strategy  string
		receivers string
		receiving string
		k         int
		wantErr   bool
	}{
		{"disabled", "none", "none", "ignore", 0, false},
		{"random sample", "random_sample", "all", "mean", 2, false},
		{"top k group", "top_k", "group", "mean", 1, false},
		{"unknown strategy", "gossip", "all", "mean", 1, true},
		{"unknown receivers", "top_k", "nearby", "mean", 1, true},
		{"recency receiving", "top_k", "all", "recency", 1, true},
		{"zero k", "top_k", "all", "mean", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSharePolicy(tt.strategy, tt.receivers, tt.receiving, tt.k, false)
			if tt.wantErr && !errors.Is(err, simerr.ErrConfiguration) {
				t.Errorf("expected configuration error, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestSampleWithoutDuplicates(t *testing.T) {
	env := newTestEnv(t, 6, 100)
	a := newTestAgent(t, env, "random", 0)
	a.Memory.Set("u1", 1)
	a.Memory.Set("u3", 3)
	a.Memory.Set("u5", 5)

	got := a.Sample(5, false, entropy.New(1))
	if len(got) != 3 {
		t.Fatalf("expected sample capped at 3 known entries, got %d", len(got))
	}
	seen := map[world.UnitID]bool{}
	for _, e := range got {
		if seen[e.Unit] {
			t.Errorf("duplicate entry %s without duplicates allowed", e.Unit)
		}
		seen[e.Unit] = true
		if e.Value != a.Memory.Get(e.Unit).Value {
			t.Errorf("entry %s: value %v does not match memory", e.Unit, e.Value)
		}
	}
}

func TestSampleWithDuplicates(t *testing.T) {
	env := newTestEnv(t, 6, 100)
	a := newTestAgent(t, env, "random", 0)
	a.Memory.Set("u2", 7)

	got := a.Sample(4, true, entropy.New(1))
	if len(got) != 4 {
		t.Fatalf("expected exactly 4 entries with replacement, got %d", len(got))
	}
	for _, e := range got {
		if e.Unit != "u2" {
			t.Errorf("expected only u2, got %s", e.Unit)
		}
	}
}

func TestSampleEmptyMemory(t *testing.T) {
	env := newTestEnv(t, 3, 100)
	a := newTestAgent(t, env, "random", 0)
	if got := a.Sample(2, true, entropy.New(1)); got != nil {
		t.Errorf("expected nil sample from empty memory, got %v", got)
	}
}

func TestTop(t *testing.T) {
	env := newTestEnv(t, 5, 100)
	a := newTestAgent(t, env, "random", 0)
	a.Memory.Set("u0", 2)
	a.Memory.Set("u1", 9)
	a.Memory.Set("u4", 9)
	a.Memory.Set("u3", 1)

	got := a.Top(2)
	if len(got) != 2 || got[0].Unit != "u1" || got[1].Unit != "u4" {
		t.Errorf("expected [u1 u4], got %+v", got)
	}
}

func TestShareFromAll(t *testing.T) {
	policy := SharePolicy{Strategy: ShareTopK, K: 1, Receivers: ReceiversAll, Receiving: ReceiveMean}
	f, _ := newSharingFleet(t, policy, 0)
	sender := f.Agents[0]
	sender.Memory.Set("u2", 40)
	f.Agents[1].Memory.Set("u2", 20)

	n := f.ShareFrom(sender, entropy.New(1))
	if n != 3 {
		t.Fatalf("expected 3 receivers, got %d", n)
	}
	if got := f.Agents[1].Memory.Get("u2").Value; got != 30 {
		t.Errorf("expected known entry mean-merged to 30, got %v", got)
	}
	if got := f.Agents[2].Memory.Get("u2"); !got.Known || got.Value != 40 {
		t.Errorf("expected unknown entry adopted as 40, got %+v", got)
	}
	if got := sender.Memory.Get("u2").Value; got != 40 {
		t.Errorf("expected sender untouched, got %v", got)
	}
}

func TestShareFromGroup(t *testing.T) {
	policy := SharePolicy{Strategy: ShareTopK, K: 1, Receivers: ReceiversGroup, Receiving: ReceiveMean}
	f, _ := newSharingFleet(t, policy, 2)
	// Round-robin: agents 0 and 2 share group g0, agents 1 and 3 share g1.
	sender := f.Agents[0]
	sender.Memory.Set("u0", 8)

	if n := f.ShareFrom(sender, entropy.New(1)); n != 1 {
		t.Fatalf("expected 1 group receiver, got %d", n)
	}
	if !f.Agents[2].Memory.Get("u0").Known {
		t.Error("expected group member to learn u0")
	}
	if f.Agents[1].Memory.Get("u0").Known || f.Agents[3].Memory.Get("u0").Known {
		t.Error("expected other group to stay ignorant")
	}
}

func TestShareFromRandomOneNeverSelf(t *testing.T) {
	policy := SharePolicy{Strategy: ShareRandomSample, K: 1, Receivers: ReceiversRandomOne, Receiving: ReceiveMean}
	f, _ := newSharingFleet(t, policy, 0)
	s := entropy.New(4)
	for _, sender := range f.Agents {
		for i := 0; i < 50; i++ {
			for _, r := range f.receiversFor(sender, s) {
				if r == sender {
					t.Fatalf("sender %s selected itself", sender.ID)
				}
			}
		}
	}
}

func TestShareDisabled(t *testing.T) {
	policy := SharePolicy{Strategy: ShareTopK, K: 1, Receivers: ReceiversAll, Receiving: ReceiveIgnore}
	f, _ := newSharingFleet(t, policy, 0)
	f.Agents[0].Memory.Set("u0", 8)
	if n := f.ShareFrom(f.Agents[0], entropy.New(1)); n != 0 {
		t.Errorf("expected no receivers when receiving is ignore, got %d", n)
	}
}
