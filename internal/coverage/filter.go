// Package coverage decides which assets have enough data inside a window to
// be eligible for estimation.
package coverage

import (
	"errors"
	"fmt"

	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/universe"
)

// ErrInsufficientUniverse means fewer than two assets survived the coverage
// thresholds, so no diversified portfolio can be formed for the window.
var ErrInsufficientUniverse = errors.New("insufficient eligible universe")

// Params are the coverage thresholds applied uniformly to every candidate.
type Params struct {
	MinObservations int     // minimum non-missing months inside the window
	MaxMissingPct   float64 // maximum tolerated missing fraction, e.g. 0.10
}

// Filter screens tickers by data coverage within a window.
type Filter struct {
	params Params
}

// NewFilter creates a coverage filter with the given thresholds.
func NewFilter(params Params) *Filter {
	return &Filter{params: params}
}

// Eligible returns the tickers that satisfy both coverage thresholds inside
// the window, preserving the candidate order. A ticker needs at least
// MinObservations non-missing months AND a missing fraction no greater than
// MaxMissingPct. When fewer than two tickers qualify it returns
// ErrInsufficientUniverse together with the (possibly empty) surviving set;
// the caller decides whether that is fatal.
func (f *Filter) Eligible(window []universe.Observation, candidates []string) ([]string, error) {
	if len(window) == 0 {
		return nil, fmt.Errorf("%w: empty window", ErrInsufficientUniverse)
	}

	eligible := make([]string, 0, len(candidates))
	for _, ticker := range candidates {
		observed := 0
		for _, obs := range window {
			if _, ok := obs.Returns[ticker]; ok {
				observed++
			}
		}

		missingFrac := float64(len(window)-observed) / float64(len(window))
		if observed >= f.params.MinObservations && missingFrac <= f.params.MaxMissingPct {
			eligible = append(eligible, ticker)
		}
	}

	if len(eligible) < 2 {
		return eligible, fmt.Errorf("%w: %d of %d tickers eligible (need at least 2)",
			ErrInsufficientUniverse, len(eligible), len(candidates))
	}

	return eligible, nil
}
