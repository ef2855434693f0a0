package frontier

import (
	"math/rand/v2"
)

// RandomSource yields uniform draws in [0, 1). *rand.Rand satisfies it.
type RandomSource interface {
	Float64() float64
}

// NewRandomSource returns a PCG-backed source. A nil seed gives an unseeded
// source; a fixed seed gives reproducible draws.
func NewRandomSource(seed *uint64) RandomSource {
	if seed == nil {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
}
