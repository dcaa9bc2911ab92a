package backtest

import "math"

// Turnover is the sum of absolute weight changes between two consecutive
// weight vectors, taken over the union of their tickers. A ticker present
// in only one of the two vectors is treated as transitioning to or from a
// zero weight.
func Turnover(prev, curr map[string]float64) float64 {
	total := 0.0
	for ticker, w := range curr {
		total += math.Abs(w - prev[ticker])
	}
	for ticker, w := range prev {
		if _, ok := curr[ticker]; !ok {
			total += math.Abs(w)
		}
	}
	return total
}

// TurnoverSummary aggregates per-period turnover for one method. It is
// reporting output only; realized returns are always gross of costs.
type TurnoverSummary struct {
	Method   string  `json:"method"`
	Periods  int     `json:"periods"`
	Total    float64 `json:"total_turnover"`
	Average  float64 `json:"average_turnover"`
	Max      float64 `json:"max_turnover"`
	MaxIndex int     `json:"max_period_index"`
}

// TurnoverTracker aggregates period-over-period weight-change statistics
// from a completed result. The first period of each method carries no
// predecessor and is excluded from the average.
type TurnoverTracker struct {
	result *Result
}

// NewTurnoverTracker wraps a completed result for turnover reporting.
func NewTurnoverTracker(result *Result) *TurnoverTracker {
	return &TurnoverTracker{result: result}
}

// Summary computes the aggregate turnover statistics for a method.
func (t *TurnoverTracker) Summary(method string) TurnoverSummary {
	rows := t.result.Rows[method]
	summary := TurnoverSummary{Method: method}

	for i, row := range rows {
		if i == 0 {
			continue
		}
		summary.Periods++
		summary.Total += row.Turnover
		if row.Turnover > summary.Max {
			summary.Max = row.Turnover
			summary.MaxIndex = i
		}
	}
	if summary.Periods > 0 {
		summary.Average = summary.Total / float64(summary.Periods)
	}
	return summary
}

// Summaries computes turnover statistics for every method in the result.
func (t *TurnoverTracker) Summaries() []TurnoverSummary {
	out := make([]TurnoverSummary, 0, len(t.result.Methods))
	for _, method := range t.result.Methods {
		out = append(out, t.Summary(method))
	}
	return out
}
