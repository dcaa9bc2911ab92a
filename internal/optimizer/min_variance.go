package optimizer

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

// Solver defaults. The projection keeps every iterate feasible, so the
// tolerance applies to the step size, not to constraint violation.
const (
	DefaultMaxIterations = 50000
	DefaultTolerance     = 1e-10
	DefaultRiskAversion  = 1.0
)

// Result is a solved weight vector in the asset order of the input matrix.
type Result struct {
	Weights    []float64
	Variance   float64
	Iterations int
}

// MinVariance minimizes wᵀΣw (optionally minus a scaled expected-return
// term) subject to Σw = 1 and per-asset box bounds, via projected gradient
// descent. The projection onto {Σw = 1, l ≤ w ≤ u} is computed exactly, so
// every iterate satisfies the constraints and the method is deterministic
// and robust to near-singular covariance matrices.
type MinVariance struct {
	MaxIterations int
	Tolerance     float64
	RiskAversion  float64 // weight on μᵀw when expected returns are supplied

	log zerolog.Logger
}

// NewMinVariance creates a solver with default settings.
func NewMinVariance(log zerolog.Logger) *MinVariance {
	return &MinVariance{
		MaxIterations: DefaultMaxIterations,
		Tolerance:     DefaultTolerance,
		RiskAversion:  DefaultRiskAversion,
		log:           log.With().Str("component", "min_variance").Logger(),
	}
}

// Optimize solves for the weight vector. expectedReturns may be nil for the
// pure minimum-variance program; when supplied its length must match the
// matrix dimension. Returns ErrInfeasible when the bounds cannot sum to 1
// and ErrNonConvergence when the iteration budget runs out.
func (o *MinVariance) Optimize(cov mat.Symmetric, expectedReturns []float64, cons Constraints) (*Result, error) {
	n := cov.SymmetricDim()
	if err := cons.Validate(n); err != nil {
		return nil, err
	}
	if expectedReturns != nil && len(expectedReturns) != n {
		return nil, fmt.Errorf("expected returns length %d does not match %d assets", len(expectedReturns), n)
	}

	bounds := cons.Bounds(n)

	// Step size from a Gershgorin bound on the largest eigenvalue of 2Σ.
	lipschitz := 0.0
	for i := 0; i < n; i++ {
		rowSum := 0.0
		for j := 0; j < n; j++ {
			rowSum += math.Abs(cov.At(i, j))
		}
		if rowSum > lipschitz {
			lipschitz = rowSum
		}
	}
	lipschitz *= 2

	x := make([]float64, n)
	for i := range x {
		x[i] = 1.0 / float64(n)
	}
	x = projectOntoSimplexBox(x, bounds)

	if lipschitz == 0 {
		// Zero covariance: any feasible point is optimal.
		return &Result{Weights: x, Variance: 0, Iterations: 0}, nil
	}
	step := 1.0 / lipschitz

	grad := make([]float64, n)
	next := make([]float64, n)
	for iter := 1; iter <= o.MaxIterations; iter++ {
		// ∇ = 2Σx − γμ
		for i := 0; i < n; i++ {
			g := 0.0
			for j := 0; j < n; j++ {
				g += cov.At(i, j) * x[j]
			}
			grad[i] = 2 * g
			if expectedReturns != nil {
				grad[i] -= o.RiskAversion * expectedReturns[i]
			}
		}

		for i := 0; i < n; i++ {
			next[i] = x[i] - step*grad[i]
		}
		projected := projectOntoSimplexBox(next, bounds)

		maxDelta := 0.0
		for i := 0; i < n; i++ {
			d := math.Abs(projected[i] - x[i])
			if d > maxDelta {
				maxDelta = d
			}
		}
		copy(x, projected)

		if maxDelta < o.Tolerance {
			return &Result{
				Weights:    x,
				Variance:   portfolioVariance(cov, x),
				Iterations: iter,
			}, nil
		}
	}

	o.log.Warn().Int("max_iterations", o.MaxIterations).Msg("Solver exhausted iteration budget")
	return nil, fmt.Errorf("%w after %d iterations", ErrNonConvergence, o.MaxIterations)
}

// EqualWeights is the 1/N fallback used when a period's optimization fails.
func EqualWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1.0 / float64(n)
	}
	return w
}

// portfolioVariance computes wᵀΣw.
func portfolioVariance(cov mat.Symmetric, w []float64) float64 {
	n := len(w)
	v := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v += w[i] * w[j] * cov.At(i, j)
		}
	}
	return v
}

// projectOntoSimplexBox computes the Euclidean projection of v onto
// {w : Σw = 1, l_i ≤ w_i ≤ u_i}. The projection has the closed form
// w_i = clip(v_i − τ, l_i, u_i) where the shift τ makes the sum hit 1;
// the sum is monotone non-increasing in τ, so τ is found by bisection.
// Callers must ensure feasibility (Σl ≤ 1 ≤ Σu) beforehand.
func projectOntoSimplexBox(v []float64, bounds [][2]float64) []float64 {
	n := len(v)
	lo := math.Inf(1)
	hi := math.Inf(-1)
	for i := 0; i < n; i++ {
		if t := v[i] - bounds[i][1]; t < lo {
			lo = t
		}
		if t := v[i] - bounds[i][0]; t > hi {
			hi = t
		}
	}

	sumAt := func(tau float64) float64 {
		s := 0.0
		for i := 0; i < n; i++ {
			w := v[i] - tau
			if w < bounds[i][0] {
				w = bounds[i][0]
			} else if w > bounds[i][1] {
				w = bounds[i][1]
			}
			s += w
		}
		return s
	}

	for iter := 0; iter < 200 && hi-lo > 1e-15; iter++ {
		mid := (lo + hi) / 2
		if sumAt(mid) > 1 {
			lo = mid
		} else {
			hi = mid
		}
	}
	tau := (lo + hi) / 2

	out := make([]float64, n)
	free := make([]int, 0, n)
	sum := 0.0
	for i := 0; i < n; i++ {
		w := v[i] - tau
		if w < bounds[i][0] {
			w = bounds[i][0]
		} else if w > bounds[i][1] {
			w = bounds[i][1]
		} else {
			free = append(free, i)
		}
		out[i] = w
		sum += w
	}

	// Spread the residual bisection error across interior coordinates so the
	// sum-to-one invariant holds to machine precision.
	if residual := 1 - sum; residual != 0 && len(free) > 0 {
		adj := residual / float64(len(free))
		for _, i := range free {
			out[i] += adj
		}
	}

	return out
}
