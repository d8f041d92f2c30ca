// Package weight maps a validator's (impact score, reputation, stake bond)
// triple to its effective consensus voting weight.
package weight

import "math"

// Default formula coefficients: weight_eff = BASE + λ·impact_score +
// μ·rep_score + ν·sqrt(stake_bond).
const (
	DefaultBase   = 100
	DefaultLambda = 10.0
	DefaultMu     = 0.05
	DefaultNu     = 0.02
)

// Calculator computes effective weight from PoI-derived inputs. All
// determinism requirements (spec §4.4) hold because inputs are either
// integers or fixed-precision floats and the reduction order below never
// changes.
type Calculator struct {
	base   uint64
	lambda float64
	mu     float64
	nu     float64
}

// New returns a Calculator using the default coefficients.
func New() Calculator {
	return Calculator{base: DefaultBase, lambda: DefaultLambda, mu: DefaultMu, nu: DefaultNu}
}

// NewWithCoefficients returns a Calculator using custom coefficients, for
// deployments that tune the weighting curve away from the defaults.
func NewWithCoefficients(base uint64, lambda, mu, nu float64) Calculator {
	return Calculator{base: base, lambda: lambda, mu: mu, nu: nu}
}

// Calculate computes weight_eff from impactScore, repScore, and stakeBond.
// The float64 accumulation is truncated toward zero (never rounded) to an
// integer, matching the reference formula's truncating cast.
func (c Calculator) Calculate(impactScore float64, repScore uint64, stakeBond uint64) uint64 {
	base := float64(c.base)
	poiComponent := c.lambda * impactScore
	repComponent := c.mu * float64(repScore)
	stakeComponent := c.nu * math.Sqrt(float64(stakeBond))

	total := base + poiComponent + repComponent + stakeComponent
	if total < 0 {
		return 0
	}
	return uint64(total)
}
