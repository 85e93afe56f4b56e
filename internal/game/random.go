// Package game holds the randomness primitives shared by the card's chance
// mechanics: greeting rotation, the prize wheel and the fortune envelope.
package game

import (
	"math/rand"
)

// Random is the source of randomness used by the chance mechanics.
// Tests inject a deterministic implementation.
type Random interface {
	// Intn returns a uniform integer in [0, n). n must be positive.
	Intn(n int) int
	// Float64 returns a uniform float in [0.0, 1.0).
	Float64() float64
}

type globalRandom struct{}

func (globalRandom) Intn(n int) int    { return rand.Intn(n) }
func (globalRandom) Float64() float64 { return rand.Float64() }

// DefaultRandom uses the math/rand top-level functions, which are safe for
// concurrent use.
var DefaultRandom Random = globalRandom{}

// Candidates returns the indexes in [0, n) for which keep returns true.
func Candidates(n int, keep func(i int) bool) []int {
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if keep(i) {
			out = append(out, i)
		}
	}
	return out
}

// Sample picks one element of candidates uniformly at random.
// It returns false when candidates is empty.
func Sample(r Random, candidates []int) (int, bool) {
	if len(candidates) == 0 {
		return 0, false
	}
	return candidates[r.Intn(len(candidates))], true
}
