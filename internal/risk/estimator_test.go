package risk

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// randomReturns builds a deterministic T×N return matrix.
func randomReturns(t, n int, seed int64) *mat.Dense {
	rng := rand.New(rand.NewSource(seed))
	data := make([]float64, t*n)
	for i := range data {
		data[i] = rng.NormFloat64() * 0.05
	}
	return mat.NewDense(t, n, data)
}

func TestSampleEstimator_MatchesHandComputedCovariance(t *testing.T) {
	// Two assets, three months, y = 2x exactly.
	returns := mat.NewDense(3, 2, []float64{
		0.01, 0.02,
		0.02, 0.04,
		0.03, 0.06,
	})

	est, err := NewSampleEstimator().Estimate(returns)
	require.NoError(t, err)
	assert.Equal(t, 0.0, est.Shrinkage)

	// var(x) = ((0.01)^2 + 0 + (0.01)^2) / 2 = 1e-4
	assert.InDelta(t, 1e-4, est.Cov.At(0, 0), 1e-12)
	assert.InDelta(t, 4e-4, est.Cov.At(1, 1), 1e-12)
	assert.InDelta(t, 2e-4, est.Cov.At(0, 1), 1e-12)
	assert.InDelta(t, est.Cov.At(0, 1), est.Cov.At(1, 0), 1e-15)
}

func TestSampleEstimator_SingularWhenTooFewObservations(t *testing.T) {
	// 10 observations for 15 assets: T <= N.
	returns := randomReturns(10, 15, 1)

	_, err := NewSampleEstimator().Estimate(returns)
	assert.ErrorIs(t, err, ErrSingularCovariance)
}

func TestSampleEstimator_BoundaryTEqualsNPlusOne(t *testing.T) {
	returns := randomReturns(6, 5, 2)
	est, err := NewSampleEstimator().Estimate(returns)
	require.NoError(t, err)
	assert.Equal(t, 5, est.Cov.SymmetricDim())
}

func TestLedoitWolf_IntensityInUnitInterval(t *testing.T) {
	cases := []struct {
		name string
		t, n int
	}{
		{"wide window", 120, 5},
		{"square", 20, 20},
		{"more assets than months", 10, 15},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			est, err := NewLedoitWolfEstimator().Estimate(randomReturns(tc.t, tc.n, 3))
			require.NoError(t, err)
			assert.GreaterOrEqual(t, est.Shrinkage, 0.0)
			assert.LessOrEqual(t, est.Shrinkage, 1.0)
		})
	}
}

func TestLedoitWolf_IntensityShrinksWithLongerWindows(t *testing.T) {
	short, err := NewLedoitWolfEstimator().Estimate(randomReturns(30, 5, 4))
	require.NoError(t, err)
	long, err := NewLedoitWolfEstimator().Estimate(randomReturns(360, 5, 4))
	require.NoError(t, err)

	assert.Less(t, long.Shrinkage, short.Shrinkage,
		"shrinkage intensity should fall as the window dwarfs the asset count")
}

func TestLedoitWolf_InvertibleWhenSampleIsSingular(t *testing.T) {
	// T < N: the sample estimator refuses this window, shrinkage must not.
	returns := randomReturns(10, 15, 5)

	est, err := NewLedoitWolfEstimator().Estimate(returns)
	require.NoError(t, err)
	assert.Greater(t, est.Shrinkage, 0.0)

	var chol mat.Cholesky
	ok := chol.Factorize(est.Cov)
	assert.True(t, ok, "shrunk covariance should be positive definite")
}

func TestLedoitWolf_Symmetric(t *testing.T) {
	est, err := NewLedoitWolfEstimator().Estimate(randomReturns(48, 6, 6))
	require.NoError(t, err)

	n := est.Cov.SymmetricDim()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			assert.Equal(t, est.Cov.At(i, j), est.Cov.At(j, i))
		}
	}
}

func TestEstimators_RejectDegenerateInput(t *testing.T) {
	one := mat.NewDense(1, 3, []float64{0.01, 0.02, 0.03})

	_, err := NewSampleEstimator().Estimate(one)
	assert.Error(t, err)

	_, err = NewLedoitWolfEstimator().Estimate(one)
	assert.Error(t, err)
}
