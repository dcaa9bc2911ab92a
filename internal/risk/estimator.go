// Package risk estimates asset covariance structure from windowed returns.
// Two interchangeable estimators are provided: the unbiased sample
// covariance and a Ledoit-Wolf shrinkage estimator that stays invertible
// when the window is short relative to the asset count.
package risk

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Method names, used to tag backtest rows and persisted results.
const (
	MethodSample     = "sample"
	MethodLedoitWolf = "lw"
)

// ErrSingularCovariance means the sample estimator cannot produce a usable
// matrix because the window has too few observations for the asset count.
var ErrSingularCovariance = errors.New("singular covariance matrix")

// Estimate is a covariance matrix tagged with its shrinkage diagnostic.
// Shrinkage is always 0 for the sample estimator and the data-driven
// intensity in [0, 1] for Ledoit-Wolf.
type Estimate struct {
	Cov       *mat.SymDense
	Shrinkage float64
}

// Estimator is the shared contract: a T×N return matrix in, a symmetric
// N×N matrix plus a scalar diagnostic out.
type Estimator interface {
	Name() string
	Estimate(returns mat.Matrix) (*Estimate, error)
}

// validateDims rejects degenerate inputs shared by both estimators.
func validateDims(returns mat.Matrix) (t, n int, err error) {
	t, n = returns.Dims()
	if n == 0 {
		return 0, 0, fmt.Errorf("no assets in return matrix")
	}
	if t < 2 {
		return 0, 0, fmt.Errorf("need at least 2 observations, got %d", t)
	}
	return t, n, nil
}

// demean returns a copy of the matrix with column means removed, plus T and N.
func demean(returns mat.Matrix) (*mat.Dense, int, int) {
	t, n := returns.Dims()
	centered := mat.NewDense(t, n, nil)
	for j := 0; j < n; j++ {
		mean := 0.0
		for i := 0; i < t; i++ {
			mean += returns.At(i, j)
		}
		mean /= float64(t)
		for i := 0; i < t; i++ {
			centered.Set(i, j, returns.At(i, j)-mean)
		}
	}
	return centered, t, n
}
