// Package simrand supplies the scene's injected randomness.
package simrand

import "math/rand/v2"

// Random picks integers in an inclusive range.
type Random interface {
	RandomInt(low, high int) int
}

// PCG is a seeded, reproducible Random.
type PCG struct {
	r *rand.Rand
}

func New(seed uint64) *PCG {
	return &PCG{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (p *PCG) RandomInt(low, high int) int {
	if high <= low {
		return low
	}
	return low + p.r.IntN(high-low+1)
}
