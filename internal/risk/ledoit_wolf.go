package risk

import (
	"gonum.org/v1/gonum/mat"
)

// LedoitWolfEstimator shrinks the sample covariance toward a scaled-identity
// target with a data-driven intensity, following Ledoit & Wolf (2004),
// "A well-conditioned estimator for large-dimensional covariance matrices".
// The estimate stays positive definite and invertible even when T < N,
// which is the whole point of running it alongside the sample estimator.
type LedoitWolfEstimator struct{}

// NewLedoitWolfEstimator creates a Ledoit-Wolf shrinkage estimator.
func NewLedoitWolfEstimator() *LedoitWolfEstimator {
	return &LedoitWolfEstimator{}
}

// Name implements Estimator.
func (e *LedoitWolfEstimator) Name() string {
	return MethodLedoitWolf
}

// Estimate implements Estimator. The diagnostic is the shrinkage intensity
// λ ∈ [0, 1]: 0 keeps the raw sample covariance, 1 collapses to the scaled
// identity. λ shrinks toward 0 as T grows relative to N.
func (e *LedoitWolfEstimator) Estimate(returns mat.Matrix) (*Estimate, error) {
	if _, _, err := validateDims(returns); err != nil {
		return nil, err
	}

	centered, t, n := demean(returns)
	tf := float64(t)
	nf := float64(n)

	// Maximum-likelihood sample covariance S = XᵀX / T (biased denominator,
	// as in the original estimator derivation).
	sample := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			var s float64
			for k := 0; k < t; k++ {
				s += centered.At(k, i) * centered.At(k, j)
			}
			sample.SetSym(i, j, s/tf)
		}
	}

	// Target: mI with m = tr(S)/N, the average variance.
	m := 0.0
	for i := 0; i < n; i++ {
		m += sample.At(i, i)
	}
	m /= nf

	// d² = ||S − mI||²_F / N measures how far the sample is from the target.
	d2 := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			diff := sample.At(i, j)
			if i == j {
				diff -= m
			}
			d2 += diff * diff
		}
	}
	d2 /= nf

	// b̄² = (1/T²) Σ_t ||x_t x_tᵀ − S||²_F / N estimates the variance of the
	// sample entries; capped at d² so λ never exceeds 1.
	b2bar := 0.0
	for k := 0; k < t; k++ {
		for i := 0; i < n; i++ {
			xi := centered.At(k, i)
			for j := 0; j < n; j++ {
				diff := xi*centered.At(k, j) - sample.At(i, j)
				b2bar += diff * diff
			}
		}
	}
	b2bar /= tf * tf * nf

	b2 := b2bar
	if b2 > d2 {
		b2 = d2
	}

	lambda := 0.0
	if d2 > 0 {
		lambda = b2 / d2
	}

	// Σ = (1−λ)S + λmI
	shrunk := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := (1 - lambda) * sample.At(i, j)
			if i == j {
				v += lambda * m
			}
			shrunk.SetSym(i, j, v)
		}
	}

	return &Estimate{Cov: shrunk, Shrinkage: lambda}, nil
}
