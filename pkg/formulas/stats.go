package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// MonthsPerYear is the annualization factor for monthly return series.
const MonthsPerYear = 12.0

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Variance calculates the sample variance of a slice of float64 values
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.Variance(data, nil)
}

// AnnualizedReturn annualizes a mean monthly return.
// Formula: mean(monthly returns) × 12
func AnnualizedReturn(monthlyReturns []float64) float64 {
	if len(monthlyReturns) == 0 {
		return 0
	}
	return Mean(monthlyReturns) * MonthsPerYear
}

// AnnualizedVolatility annualizes the standard deviation of monthly returns.
// Formula: std(monthly returns) × sqrt(12)
func AnnualizedVolatility(monthlyReturns []float64) float64 {
	if len(monthlyReturns) < 2 {
		return 0
	}
	return StdDev(monthlyReturns) * math.Sqrt(MonthsPerYear)
}

// CumulativeReturn compounds a return series: (1+r1)·(1+r2)·…·(1+rN) − 1.
func CumulativeReturn(returns []float64) float64 {
	cumulative := 1.0
	for _, r := range returns {
		cumulative *= 1 + r
	}
	return cumulative - 1
}

// EquityCurve returns the running cumulative product of (1+r), starting at 1.
// Element i is the growth of one unit invested through returns[0..i].
func EquityCurve(returns []float64) []float64 {
	curve := make([]float64, len(returns))
	value := 1.0
	for i, r := range returns {
		value *= 1 + r
		curve[i] = value
	}
	return curve
}

// MaxDrawdown returns the largest peak-to-trough decline of the compounded
// series as a non-positive fraction (e.g. -0.35 for a 35% drawdown).
func MaxDrawdown(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	peak := 1.0
	value := 1.0
	maxDD := 0.0
	for _, r := range returns {
		value *= 1 + r
		if value > peak {
			peak = value
		}
		dd := (value - peak) / peak
		if dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// DownsideDeviation computes the annualized downside deviation of monthly
// returns: sqrt(mean(min(r, 0)²)) × sqrt(12). Only negative periods
// contribute to the sum; the denominator is the full period count.
func DownsideDeviation(monthlyReturns []float64) float64 {
	if len(monthlyReturns) == 0 {
		return 0
	}

	var sumSq float64
	for _, r := range monthlyReturns {
		if r < 0 {
			sumSq += r * r
		}
	}
	return math.Sqrt(sumSq/float64(len(monthlyReturns))) * math.Sqrt(MonthsPerYear)
}

// WinRate returns the fraction of strictly positive periods.
func WinRate(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	wins := 0
	for _, r := range returns {
		if r > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(returns))
}

// Skewness returns the third standardized moment of the series.
func Skewness(returns []float64) float64 {
	if len(returns) < 3 || StdDev(returns) == 0 {
		return 0
	}
	return stat.Skew(returns, nil)
}

// Kurtosis returns the fourth standardized moment of the series
// (a normal distribution scores 3, not 0).
func Kurtosis(returns []float64) float64 {
	if len(returns) < 4 || StdDev(returns) == 0 {
		return 0
	}
	return stat.ExKurtosis(returns, nil) + 3
}
