// Package entropy provides the seeded random stream that drives a replicate.
// Every stochastic draw in a run (agent shuffling, strategy sampling, stock
// resampling) comes from one Stream, so the seed fully determines the outcome.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	mrand "math/rand"
)

// MaxRejectionDraws bounds rejection sampling for truncated distributions.
const MaxRejectionDraws = 10000

// Stream is a seeded pseudo-random generator shared by one replicate.
type Stream struct {
	*mrand.Rand
	seed int64
}

// New creates a stream from seed.
func New(seed int64) *Stream {
	return &Stream{
		Rand: mrand.New(mrand.NewSource(seed)),
		seed: seed,
	}
}

// Seed returns the seed the stream was created with.
func (s *Stream) Seed() int64 {
	return s.seed
}

// Bernoulli returns true with probability p. It always consumes exactly one
// draw, regardless of p, so the stream position does not depend on p.
func (s *Stream) Bernoulli(p float64) bool {
	return s.Float64() < p
}

// TruncatedNormal draws from N(mean, sd) rejecting values below zero.
// Returns false if no acceptable value was found within MaxRejectionDraws.
func (s *Stream) TruncatedNormal(mean, sd float64) (float64, bool) {
	for i := 0; i < MaxRejectionDraws; i++ {
		v := mean + s.NormFloat64()*sd
		if v >= 0 {
			return v, true
		}
	}
	return 0, false
}

// Uniform draws from [min, max).
func (s *Stream) Uniform(min, max float64) float64 {
	return min + s.Float64()*(max-min)
}

// ReplicateSeed derives the seed of replicate r from a base seed.
func ReplicateSeed(base int64, r int) int64 {
	return base + int64(r)
}

// ResolveSeed returns seed unchanged, or a fresh seed from crypto/rand when
// seed is zero. The chosen seed is logged so the run can be reproduced.
func ResolveSeed(seed int64) int64 {
	if seed != 0 {
		return seed
	}
	seed = cryptoSeed()
	slog.Info("no seed configured, drew one", "seed", seed)
	return seed
}

func cryptoSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// This should never happen.
		return 1
	}
	n := int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
	if n == 0 {
		return 1
	}
	return n
}
