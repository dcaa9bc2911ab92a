// Package analytics turns a completed backtest into comparable performance
// summaries per estimation method.
package analytics

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/backtest"
	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/pkg/formulas"
)

// Metrics is the full scorecard for one method's realized return series.
// All rate figures are annualized from monthly data; TotalReturn, BestMonth
// and WorstMonth are plain monthly-compounded values.
type Metrics struct {
	Method               string  `json:"method"`
	Periods              int     `json:"periods"`
	TotalReturn          float64 `json:"total_return"`
	AnnualizedReturn     float64 `json:"annualized_return"`
	AnnualizedVolatility float64 `json:"annualized_volatility"`
	SharpeRatio          float64 `json:"sharpe_ratio"`
	SortinoRatio         float64 `json:"sortino_ratio"`
	MaxDrawdown          float64 `json:"max_drawdown"`
	WinRate              float64 `json:"win_rate"`
	BestMonth            float64 `json:"best_month"`
	WorstMonth           float64 `json:"worst_month"`
	Skewness             float64 `json:"skewness"`
	Kurtosis             float64 `json:"kurtosis"`
	AverageTurnover      float64 `json:"average_turnover"`
	DegradedRate         float64 `json:"degraded_rate"`
	AverageShrinkage     float64 `json:"average_shrinkage"`
}

// PerformanceAnalyzer scores completed runs. The risk-free rate is annual
// and shared across methods so Sharpe ratios are directly comparable.
type PerformanceAnalyzer struct {
	riskFreeRate float64
	log          zerolog.Logger
}

// NewPerformanceAnalyzer creates an analyzer with the given annual
// risk-free rate.
func NewPerformanceAnalyzer(riskFreeRate float64, log zerolog.Logger) *PerformanceAnalyzer {
	return &PerformanceAnalyzer{
		riskFreeRate: riskFreeRate,
		log:          log.With().Str("component", "analytics").Logger(),
	}
}

// Analyze scores every method in the result, in the result's method order.
func (a *PerformanceAnalyzer) Analyze(result *backtest.Result) []Metrics {
	tracker := backtest.NewTurnoverTracker(result)

	out := make([]Metrics, 0, len(result.Methods))
	for _, method := range result.Methods {
		m := a.analyzeMethod(result, tracker, method)
		a.log.Debug().
			Str("method", method).
			Float64("sharpe", m.SharpeRatio).
			Float64("annualized_return", m.AnnualizedReturn).
			Msg("Scored method")
		out = append(out, m)
	}
	return out
}

func (a *PerformanceAnalyzer) analyzeMethod(result *backtest.Result, tracker *backtest.TurnoverTracker, method string) Metrics {
	returns := result.RealizedReturns(method)

	m := Metrics{
		Method:               method,
		Periods:              len(returns),
		TotalReturn:          formulas.CumulativeReturn(returns),
		AnnualizedReturn:     formulas.AnnualizedReturn(returns),
		AnnualizedVolatility: formulas.AnnualizedVolatility(returns),
		MaxDrawdown:          formulas.MaxDrawdown(returns),
		WinRate:              formulas.WinRate(returns),
		Skewness:             formulas.Skewness(returns),
		Kurtosis:             formulas.Kurtosis(returns),
		AverageTurnover:      tracker.Summary(method).Average,
		DegradedRate:         result.DegradedRate(method),
	}

	if len(returns) > 0 {
		best := math.Inf(-1)
		worst := math.Inf(1)
		for _, r := range returns {
			if r > best {
				best = r
			}
			if r < worst {
				worst = r
			}
		}
		m.BestMonth = best
		m.WorstMonth = worst
	}

	excess := m.AnnualizedReturn - a.riskFreeRate
	if m.AnnualizedVolatility > 0 {
		m.SharpeRatio = excess / m.AnnualizedVolatility
	}
	if dd := formulas.DownsideDeviation(returns); dd > 0 {
		m.SortinoRatio = excess / dd
	}

	shrinkSum := 0.0
	for _, row := range result.Rows[method] {
		shrinkSum += row.Shrinkage
	}
	if len(result.Rows[method]) > 0 {
		m.AverageShrinkage = shrinkSum / float64(len(result.Rows[method]))
	}

	return m
}
