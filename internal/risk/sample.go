package risk

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// SampleEstimator computes the unbiased (T−1 denominator) sample covariance.
// It refuses windows where T ≤ N: the resulting matrix would be singular and
// the minimum-variance program behind it meaningless.
type SampleEstimator struct{}

// NewSampleEstimator creates a sample covariance estimator.
func NewSampleEstimator() *SampleEstimator {
	return &SampleEstimator{}
}

// Name implements Estimator.
func (e *SampleEstimator) Name() string {
	return MethodSample
}

// Estimate implements Estimator. The diagnostic is always 0.
func (e *SampleEstimator) Estimate(returns mat.Matrix) (*Estimate, error) {
	t, n, err := validateDims(returns)
	if err != nil {
		return nil, err
	}
	if t <= n {
		return nil, fmt.Errorf("%w: %d observations for %d assets (need at least %d)",
			ErrSingularCovariance, t, n, n+1)
	}

	cov := mat.NewSymDense(n, nil)
	stat.CovarianceMatrix(cov, returns, nil)

	return &Estimate{Cov: cov, Shrinkage: 0}, nil
}
