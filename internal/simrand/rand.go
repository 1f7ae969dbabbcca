// Package simrand provides the simulator's deterministic RNG splitting and
// the config-file distribution family (§6: always/uniform/normal/
// exponential). Splitting is modeled on ramp.go's math/rand usage in the
// teacher, generalized so a parent RNG can hand out any number of
// independent child RNGs in a fixed, replay-stable order (§5 "Deterministic
// RNG splitting": the parent is consumed to derive children in a fixed
// order at construction time, never mid-run by a parallel worker).
package simrand

import "math/rand"

// Rng is a splittable pseudo-random source. Every Rng in a simulation run
// traces back to one seed; splitting at construction time (never mid-run)
// is what keeps the parallel evaluation harness deterministic regardless
// of goroutine scheduling.
type Rng struct {
	r *rand.Rand
}

// New returns an Rng seeded deterministically from seed.
func New(seed int64) *Rng {
	return &Rng{r: rand.New(rand.NewSource(seed))}
}

// Child derives a new, independent Rng from g. Calling Child repeatedly on
// the same Rng produces a fixed sequence of children for a fixed seed;
// callers must derive every child they will ever need before using g for
// anything else so that the sequence isn't perturbed by intervening draws.
func (g *Rng) Child() *Rng {
	seed := g.r.Int63()
	return New(seed)
}

// Children returns n independent child Rngs, derived in order.
func (g *Rng) Children(n int) []*Rng {
	out := make([]*Rng, n)
	for i := range out {
		out[i] = g.Child()
	}
	return out
}

// Float64 returns a uniform random float64 in [0, 1).
func (g *Rng) Float64() float64 { return g.r.Float64() }

// NormFloat64 returns a standard-normal random float64.
func (g *Rng) NormFloat64() float64 { return g.r.NormFloat64() }

// Intn returns a uniform random int in [0, n).
func (g *Rng) Intn(n int) int { return g.r.Intn(n) }

// Source returns the underlying math/rand source, for libraries (gonum's
// distuv family) that want to drive their own sampling from it.
func (g *Rng) Source() rand.Source { return g.r }

// Std returns the underlying *rand.Rand directly, for gonum distributions
// that require the full rand.Rand (not just rand.Source) interface.
func (g *Rng) Std() *rand.Rand { return g.r }
