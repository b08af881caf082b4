// Knowledge sharing: agents pass bounded samples of their memory to
// receivers chosen by a fleet-wide policy.

package agents

import (
	"sort"

	"github.com/talgya/forage-sim/internal/entropy"
	"github.com/talgya/forage-sim/internal/simerr"
	"github.com/talgya/forage-sim/internal/world"
)

// ShareStrategy selects which memory entries an agent exposes.
type ShareStrategy string

const (
	ShareNone         ShareStrategy = "none"
	ShareRandomSample ShareStrategy = "random_sample" // k random known entries
	ShareTopK         ShareStrategy = "top_k"         // k highest known entries
)

// ReceiverPolicy selects who receives an agent's shared entries.
type ReceiverPolicy string

const (
	ReceiversNone      ReceiverPolicy = "none"
	ReceiversAll       ReceiverPolicy = "all"
	ReceiversGroup     ReceiverPolicy = "group"
	ReceiversRandomOne ReceiverPolicy = "random_one"
)

// ReceivePolicy decides how a receiver folds entries into its memory.
// Recency-weighted merging is not supported.
type ReceivePolicy string

const (
	ReceiveMean   ReceivePolicy = "mean"
	ReceiveIgnore ReceivePolicy = "ignore"
)

// SharePolicy is the fleet-wide sharing configuration.
type SharePolicy struct {
	Strategy   ShareStrategy
	K          int
	Duplicates bool // random_sample only: draw with replacement
	Receivers  ReceiverPolicy
	Receiving  ReceivePolicy
}

// NoSharing disables knowledge sharing.
var NoSharing = SharePolicy{Strategy: ShareNone, Receivers: ReceiversNone, Receiving: ReceiveIgnore}

// ParseSharePolicy validates policy names.
func ParseSharePolicy(strategy, receivers, receiving string, k int, duplicates bool) (SharePolicy, error) {
	p := SharePolicy{
		Strategy:   ShareStrategy(strategy),
		K:          k,
		Duplicates: duplicates,
		Receivers:  ReceiverPolicy(receivers),
		Receiving:  ReceivePolicy(receiving),
	}
	switch p.Strategy {
	case ShareNone, ShareRandomSample, ShareTopK:
	default:
		return p, simerr.Config("sharing.strategy", strategy, "expected none, random_sample or top_k")
	}
	switch p.Receivers {
	case ReceiversNone, ReceiversAll, ReceiversGroup, ReceiversRandomOne:
	default:
		return p, simerr.Config("sharing.receivers", receivers, "expected none, all, group or random_one")
	}
	switch p.Receiving {
	case ReceiveMean, ReceiveIgnore:
	default:
		return p, simerr.Config("sharing.receiving", receiving, "expected mean or ignore")
	}
	if p.Strategy != ShareNone && k < 1 {
		return p, simerr.Config("sharing.k", "", "must be at least 1 when sharing is enabled")
	}
	return p, nil
}

// Enabled reports whether sharing can move any information.
func (p SharePolicy) Enabled() bool {
	return p.Strategy != ShareNone && p.Receivers != ReceiversNone && p.Receiving != ReceiveIgnore && p.K > 0
}

// SharedEntry is one memory entry passed between agents.
type SharedEntry struct {
	Unit  world.UnitID `json:"unit"`
	Value float64      `json:"value"`
}

// Sample returns up to k known entries chosen at random. With duplicates the
// draws are with replacement and exactly k entries are returned; otherwise at
// most the number of known entries.
func (a *Agent) Sample(k int, duplicates bool, s *entropy.Stream) []SharedEntry {
	known := a.Memory.Known()
	if len(known) == 0 || k < 1 {
		return nil
	}

	if duplicates {
		out := make([]SharedEntry, 0, k)
		for i := 0; i < k; i++ {
			u := known[s.Intn(len(known))]
			out = append(out, SharedEntry{Unit: u, Value: a.Memory.Get(u).Value})
		}
		return out
	}

	if k > len(known) {
		k = len(known)
	}
	// Partial Fisher-Yates over the known units.
	for i := 0; i < k; i++ {
		j := i + s.Intn(len(known)-i)
		known[i], known[j] = known[j], known[i]
	}
	out := make([]SharedEntry, 0, k)
	for _, u := range known[:k] {
		out = append(out, SharedEntry{Unit: u, Value: a.Memory.Get(u).Value})
	}
	return out
}

// Top returns the k highest known entries, ties in enumeration order.
func (a *Agent) Top(k int) []SharedEntry {
	known := a.Memory.Known()
	out := make([]SharedEntry, 0, len(known))
	for _, u := range known {
		out = append(out, SharedEntry{Unit: u, Value: a.Memory.Get(u).Value})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Value > out[j].Value
	})
	if k < len(out) {
		out = out[:k]
	}
	return out
}

// Receive folds shared entries into memory by mean-merging.
func (a *Agent) Receive(entries []SharedEntry) {
	for _, e := range entries {
		a.Memory.Merge(e.Unit, e.Value)
	}
}

// ShareFrom runs one sharing round from sender under the fleet's policy and
// returns the number of receivers reached.
func (f *Fleet) ShareFrom(sender *Agent, s *entropy.Stream) int {
	p := f.Share
	if !p.Enabled() {
		return 0
	}

	var entries []SharedEntry
	switch p.Strategy {
	case ShareRandomSample:
		entries = sender.Sample(p.K, p.Duplicates, s)
	case ShareTopK:
		entries = sender.Top(p.K)
	}
	if len(entries) == 0 {
		return 0
	}

	receivers := f.receiversFor(sender, s)
	for _, r := range receivers {
		r.Receive(entries)
	}
	return len(receivers)
}

func (f *Fleet) receiversFor(sender *Agent, s *entropy.Stream) []*Agent {
	switch f.Share.Receivers {
	case ReceiversAll:
		out := make([]*Agent, 0, len(f.Agents)-1)
		for _, a := range f.Agents {
			if a != sender {
				out = append(out, a)
			}
		}
		return out
	case ReceiversGroup:
		if sender.Group == "" {
			return nil
		}
		var out []*Agent
		for _, a := range f.Agents {
			if a != sender && a.Group == sender.Group {
				out = append(out, a)
			}
		}
		return out
	case ReceiversRandomOne:
		if len(f.Agents) < 2 {
			return nil
		}
		i := s.Intn(len(f.Agents) - 1)
		if f.Agents[i] == sender {
			// Skip over the sender.
			i = len(f.Agents) - 1
		}
		return []*Agent{f.Agents[i]}
	default:
		return nil
	}
}
