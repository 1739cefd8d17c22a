// Package sampling wraps the single pseudo-random source used by a simulation.
//
// Every component that draws random numbers receives an *Rng explicitly, so
// two environments never share state and a fixed seed reproduces an episode
// exactly. Rng is not goroutine-safe.
package sampling

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// ErrInvalidDistribution is returned for truncated-normal parameters that
// could produce negative samples.
var ErrInvalidDistribution = errors.New("sampling: invalid distribution")

// Dist is a (mu, sigma) pair describing a truncated normal distribution on
// [mu-sigma, mu+sigma].
type Dist struct {
	Mu    float64 `yaml:"mu" json:"mu"`
	Sigma float64 `yaml:"sigma" json:"sigma"`
}

// Validate checks that the distribution only covers non-negative values.
func (d Dist) Validate() error {
	if d.Sigma < 0 || d.Mu < d.Sigma {
		return fmt.Errorf("%w: mu=%g sigma=%g", ErrInvalidDistribution, d.Mu, d.Sigma)
	}
	return nil
}

// Rng is an explicit random source.
type Rng struct {
	r *rand.Rand
}

// New returns an Rng seeded with seed.
func New(seed uint64) *Rng {
	return &Rng{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Float64 returns a sample in [0, 1).
func (g *Rng) Float64() float64 { return g.r.Float64() }

// IntN returns a sample in [0, n).
func (g *Rng) IntN(n int) int { return g.r.IntN(n) }

// Uint64 returns a raw 64-bit sample, used to derive child seeds.
func (g *Rng) Uint64() uint64 { return g.r.Uint64() }

// Uniform returns a sample in [lo, hi). Uniform(x, x) is x.
func (g *Rng) Uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*g.r.Float64()
}

// TruncatedNormal draws from N(mu, sigma) and clamps the result to
// [mu-sigma, mu+sigma].
func (g *Rng) TruncatedNormal(d Dist) (float64, error) {
	if err := d.Validate(); err != nil {
		return 0, err
	}
	x := d.Mu + d.Sigma*g.r.NormFloat64()
	return min(max(x, d.Mu-d.Sigma), d.Mu+d.Sigma), nil
}

// Binomial returns the number of successes in n Bernoulli(p) trials.
func (g *Rng) Binomial(n int, p float64) int {
	if p <= 0 {
		return 0
	}
	if p >= 1 {
		return n
	}
	k := 0
	for i := 0; i < n; i++ {
		if g.r.Float64() < p {
			k++
		}
	}
	return k
}

// Choice returns a uniformly drawn element of values. values must not be empty.
func Choice[T any](g *Rng, values []T) T {
	return values[g.r.IntN(len(values))]
}
