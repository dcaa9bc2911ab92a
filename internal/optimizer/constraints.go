// Package optimizer solves the constrained minimum-variance program that
// turns a covariance estimate into portfolio weights.
package optimizer

import (
	"errors"
	"fmt"
)

var (
	// ErrNonConvergence means the solver exhausted its iteration budget; the
	// caller should fall back to equal weights for the period.
	ErrNonConvergence = errors.New("optimization did not converge")

	// ErrInfeasible means the box bounds cannot produce weights summing to 1.
	ErrInfeasible = errors.New("infeasible constraints")
)

// Constraints are the uniform per-asset position limits for a window.
type Constraints struct {
	MinWeight  float64
	MaxWeight  float64
	AllowShort bool
	LongOnly   bool
}

// DefaultConstraints mirrors the original research defaults: full long/short
// with |w| ≤ 1.
func DefaultConstraints() Constraints {
	return Constraints{
		MinWeight:  -1.0,
		MaxWeight:  1.0,
		AllowShort: true,
		LongOnly:   false,
	}
}

// Bounds expands the constraints into per-asset [lower, upper] pairs.
// LongOnly (or AllowShort=false) clips the lower bound at zero.
func (c Constraints) Bounds(n int) [][2]float64 {
	lower := c.MinWeight
	if c.LongOnly || !c.AllowShort {
		if lower < 0 {
			lower = 0
		}
	}
	bounds := make([][2]float64, n)
	for i := range bounds {
		bounds[i] = [2]float64{lower, c.MaxWeight}
	}
	return bounds
}

// Validate rejects constraint sets that can never hold n weights summing
// to 1.
func (c Constraints) Validate(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: no assets", ErrInfeasible)
	}
	bounds := c.Bounds(n)
	lower, upper := 0.0, 0.0
	for _, b := range bounds {
		if b[0] > b[1] {
			return fmt.Errorf("%w: lower bound %.4f above upper bound %.4f", ErrInfeasible, b[0], b[1])
		}
		lower += b[0]
		upper += b[1]
	}
	if lower > 1+1e-12 || upper < 1-1e-12 {
		return fmt.Errorf("%w: achievable weight sum is [%.4f, %.4f]", ErrInfeasible, lower, upper)
	}
	return nil
}
