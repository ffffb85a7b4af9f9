package market

import (
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"
)

// Rand is the randomness the generators draw from. *rand.Rand satisfies it;
// seeded instances are not safe for concurrent use, the default is.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

// DefaultRand draws from the goroutine-safe math/rand/v2 top-level source.
var DefaultRand Rand = globalRand{}

// NewSeededRand is deterministic; meant for tests and reproducible runs.
func NewSeededRand(seed uint64) Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Clock returns the current instant.
type Clock func() time.Time

// uniform draws from [lo, hi).
func uniform(r Rand, lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}

// centered draws from [-span/2, span/2).
func centered(r Rand, span float64) float64 {
	return (r.Float64() - 0.5) * span
}

func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// trunc2 drops digits past the cent so a value drawn from [lo, hi) stays
// below hi.
func trunc2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Truncate(2).Float64()
	return f
}
