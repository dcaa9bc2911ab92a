package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// SMASeries computes a simple moving average over an equity curve for chart
// overlays. Positions before the first full window are NaN, matching the
// underlying talib behaviour.
func SMASeries(values []float64, period int) []float64 {
	if len(values) == 0 || period <= 0 {
		return []float64{}
	}
	if len(values) < period {
		// Not enough data for a single window; return all-NaN of equal length.
		out := make([]float64, len(values))
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	return talib.Sma(values, period)
}

// EMASeries computes an exponential moving average over an equity curve.
//
//	EMA_today = (value_today × k) + (EMA_yesterday × (1 − k)), k = 2/(period+1)
func EMASeries(values []float64, period int) []float64 {
	if len(values) == 0 || period <= 0 {
		return []float64{}
	}
	if len(values) < period {
		out := make([]float64, len(values))
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	return talib.Ema(values, period)
}
