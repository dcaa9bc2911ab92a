// Package universe holds the immutable monthly return history the backtest
// runs against, plus the loaders that materialize it (CSV, SQLite, Yahoo).
package universe

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInsufficientHistory means the loaded history cannot cover a single
	// estimation window plus one evaluation month.
	ErrInsufficientHistory = errors.New("insufficient return history")

	// ErrInvalidDateRange means observations are not strictly increasing or
	// the requested year range is inverted.
	ErrInvalidDateRange = errors.New("invalid date range")
)

// Observation is one month's cross-section of returns. A ticker absent from
// the map is a missing observation for that month; the data is not
// pre-cleaned.
type Observation struct {
	Date    time.Time
	Returns map[string]float64
}

// ReturnSeries is an ordered, immutable monthly return history for a fixed
// universe of tickers. Dates are strictly increasing.
type ReturnSeries struct {
	tickers      []string
	observations []Observation
}

// NewReturnSeries validates and wraps a set of observations. Observations
// must already be sorted by date; duplicate or out-of-order dates are
// rejected. The ticker slice fixes the stable universe order used by every
// downstream component.
func NewReturnSeries(tickers []string, observations []Observation) (*ReturnSeries, error) {
	if len(tickers) == 0 {
		return nil, fmt.Errorf("%w: empty ticker universe", ErrInsufficientHistory)
	}

	for i := 1; i < len(observations); i++ {
		if !observations[i].Date.After(observations[i-1].Date) {
			return nil, fmt.Errorf("%w: observation %s does not follow %s",
				ErrInvalidDateRange,
				observations[i].Date.Format("2006-01"),
				observations[i-1].Date.Format("2006-01"))
		}
	}

	ts := make([]string, len(tickers))
	copy(ts, tickers)

	return &ReturnSeries{tickers: ts, observations: observations}, nil
}

// Tickers returns the stable universe order.
func (rs *ReturnSeries) Tickers() []string {
	out := make([]string, len(rs.tickers))
	copy(out, rs.tickers)
	return out
}

// Len returns the number of monthly observations.
func (rs *ReturnSeries) Len() int {
	return len(rs.observations)
}

// At returns the observation at index i.
func (rs *ReturnSeries) At(i int) Observation {
	return rs.observations[i]
}

// Window returns the observations in [start, end). Callers must not mutate
// the returned slice.
func (rs *ReturnSeries) Window(start, end int) []Observation {
	return rs.observations[start:end]
}

// Dates returns all observation dates in order.
func (rs *ReturnSeries) Dates() []time.Time {
	dates := make([]time.Time, len(rs.observations))
	for i, obs := range rs.observations {
		dates[i] = obs.Date
	}
	return dates
}

// Return looks up the return for ticker at index i. The second value is
// false when the observation is missing.
func (rs *ReturnSeries) Return(i int, ticker string) (float64, bool) {
	r, ok := rs.observations[i].Returns[ticker]
	return r, ok
}
