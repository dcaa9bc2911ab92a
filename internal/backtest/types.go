// Package backtest composes coverage filtering, covariance estimation and
// constrained optimization into a rolling-window out-of-sample study of the
// two estimators.
package backtest

import (
	"time"

	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/coverage"
	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/optimizer"
)

// DefaultDegradedRateThreshold is the fraction of degraded periods above
// which a completed run carries a RunDegraded warning.
const DefaultDegradedRateThreshold = 0.20

// Config holds every knob of a run. Defaults mirror the original research
// setup; they are explicit values, never mutable package state.
type Config struct {
	Tickers               []string
	StartYear             int
	EndYear               int
	EstimationWindow      int // trailing months used for estimation
	StepSize              int // months between rebalances, default 1
	Constraints           optimizer.Constraints
	RiskFreeRate          float64 // annual, e.g. 0.042
	Coverage              coverage.Params
	DegradedRateThreshold float64
}

// DefaultConfig returns the original project defaults: 20 blue chips,
// 2010-2024, 36-month window, long/short within ±100%, 4.2% risk-free.
func DefaultConfig(tickers []string) Config {
	return Config{
		Tickers:               tickers,
		StartYear:             2010,
		EndYear:               2024,
		EstimationWindow:      36,
		StepSize:              1,
		Constraints:           optimizer.DefaultConstraints(),
		RiskFreeRate:          0.042,
		Coverage:              coverage.Params{MinObservations: 36, MaxMissingPct: 0.10},
		DegradedRateThreshold: DefaultDegradedRateThreshold,
	}
}

// Row is one period's outcome for one method. Weights cover only that
// window's eligible tickers; a ticker absent from the map holds zero weight.
type Row struct {
	Date      time.Time          `json:"date"`
	Method    string             `json:"method"`
	Weights   map[string]float64 `json:"weights"`
	Realized  float64            `json:"realized_return"`
	Turnover  float64            `json:"turnover"`
	Degraded  bool               `json:"degraded"`
	Singular  bool               `json:"singular_covariance"`
	Shrinkage float64            `json:"shrinkage"`
	Eligible  int                `json:"eligible_count"`
}

// Result is the complete, ordered outcome of a run; immutable once Run
// returns. Rows are keyed by method name and ordered by date.
type Result struct {
	Methods  []string
	Rows     map[string][]Row
	Warnings []string

	// RunDegraded marks methods whose degraded-period rate exceeded the
	// configured threshold. The run still completed.
	RunDegraded map[string]bool
}

// RealizedReturns extracts the ordered realized-return series for a method.
func (r *Result) RealizedReturns(method string) []float64 {
	rows := r.Rows[method]
	out := make([]float64, len(rows))
	for i, row := range rows {
		out[i] = row.Realized
	}
	return out
}

// Dates returns the ordered rebalance dates (identical across methods).
func (r *Result) Dates() []time.Time {
	if len(r.Methods) == 0 {
		return nil
	}
	rows := r.Rows[r.Methods[0]]
	out := make([]time.Time, len(rows))
	for i, row := range rows {
		out[i] = row.Date
	}
	return out
}

// DegradedRate returns the fraction of degraded periods for a method.
func (r *Result) DegradedRate(method string) float64 {
	rows := r.Rows[method]
	if len(rows) == 0 {
		return 0
	}
	degraded := 0
	for _, row := range rows {
		if row.Degraded {
			degraded++
		}
	}
	return float64(degraded) / float64(len(rows))
}
