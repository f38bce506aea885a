package sim

import (
	"hash/fnv"
	"math/rand"
)

// Stream names used by the engine. Delay selection is the only place the
// engine consults randomness; tie-breaks among equal-time events never do.
const (
	// StreamDelay is the substream the Network draws message delays from.
	StreamDelay = "delay"
)

// Rng is the deterministic random source of a run. It is seeded explicitly
// at construction, never from system entropy or the clock, and produces an
// identical sequence of draws for an identical seed on any host.
//
// The source is partitioned into named substreams so that draws made for one
// concern cannot perturb another. Substream seeds are derived as
// seed XOR fnv1a64(name).
//
// Not safe for concurrent use. A run is single-threaded, so no locking is
// needed; independent runs own independent Rngs.
type Rng struct {
	seed    int64
	streams map[string]*rand.Rand
}

// NewRng creates a Rng seeded with the given value.
func NewRng(seed int64) *Rng {
	return &Rng{
		seed:    seed,
		streams: make(map[string]*rand.Rand),
	}
}

// Seed returns the seed the Rng was constructed with.
func (r *Rng) Seed() int64 {
	return r.seed
}

// Stream returns the deterministically-seeded substream with the given name.
// The same name always returns the same *rand.Rand instance.
func (r *Rng) Stream(name string) *rand.Rand {
	if s, ok := r.streams[name]; ok {
		return s
	}

	s := rand.New(rand.NewSource(r.seed ^ fnv1a64(name)))
	r.streams[name] = s
	return s
}

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
