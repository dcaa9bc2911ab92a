package backtest

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/coverage"
	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/optimizer"
	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/risk"
	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/universe"
)

// Engine drives the rolling-window study. Each rebalance date t uses only
// observations strictly before t for estimation and the observation at t for
// evaluation, so results are out-of-sample by construction.
type Engine struct {
	cfg        Config
	filter     *coverage.Filter
	estimators []risk.Estimator
	solver     *optimizer.MinVariance
	log        zerolog.Logger
	progress   func(done, total int)
}

// NewEngine validates the configuration and wires the two estimators and
// the shared solver.
func NewEngine(cfg Config, log zerolog.Logger) (*Engine, error) {
	if cfg.EstimationWindow < 2 {
		return nil, fmt.Errorf("estimation window must be at least 2 months, got %d", cfg.EstimationWindow)
	}
	if cfg.StepSize < 1 {
		cfg.StepSize = 1
	}
	if cfg.DegradedRateThreshold <= 0 {
		cfg.DegradedRateThreshold = DefaultDegradedRateThreshold
	}

	return &Engine{
		cfg:    cfg,
		filter: coverage.NewFilter(cfg.Coverage),
		estimators: []risk.Estimator{
			risk.NewSampleEstimator(),
			risk.NewLedoitWolfEstimator(),
		},
		solver: optimizer.NewMinVariance(log),
		log:    log.With().Str("component", "backtest").Logger(),
	}, nil
}

// SetProgress registers a callback invoked after each completed period.
// It may be called from multiple goroutines.
func (e *Engine) SetProgress(fn func(done, total int)) {
	e.progress = fn
}

// periodOutcome is the per-rebalance result before the serial turnover pass.
type periodOutcome struct {
	date time.Time
	rows []Row // one per estimator, in estimator order
}

// Run executes the full study over the series. Per-period computations are
// independent and run concurrently; turnover needs the previous period's
// weights, so it is filled in by an ordered pass afterwards.
func (e *Engine) Run(series *universe.ReturnSeries) (*Result, error) {
	total := series.Len()
	window := e.cfg.EstimationWindow
	if total < window+1 {
		return nil, fmt.Errorf("%w: have %d months, need %d for one window plus evaluation",
			universe.ErrInsufficientHistory, total, window+1)
	}

	var rebalances []int
	for t := window; t < total; t += e.cfg.StepSize {
		rebalances = append(rebalances, t)
	}

	e.log.Info().
		Int("periods", len(rebalances)).
		Int("window_months", window).
		Int("tickers", len(e.cfg.Tickers)).
		Msg("Starting backtest run")

	outcomes := make([]*periodOutcome, len(rebalances))
	var done atomic.Int64

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for idx, t := range rebalances {
		g.Go(func() error {
			outcome, err := e.runPeriod(series, t, idx == 0)
			if err != nil {
				return err
			}
			outcomes[idx] = outcome
			if e.progress != nil {
				e.progress(int(done.Add(1)), len(rebalances))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return e.assemble(outcomes), nil
}

// runPeriod computes the full pipeline for one rebalance date: coverage
// filter, both estimates, both optimizations and the realized return.
func (e *Engine) runPeriod(series *universe.ReturnSeries, t int, first bool) (*periodOutcome, error) {
	date := series.At(t).Date
	win := series.Window(t-e.cfg.EstimationWindow, t)

	eligible, covErr := e.filter.Eligible(win, e.cfg.Tickers)
	if covErr != nil {
		// An unusable first window means the whole configuration is wrong;
		// later windows degrade to whatever survived the filter.
		if first {
			return nil, fmt.Errorf("first rebalance %s: %w", date.Format("2006-01"), covErr)
		}
		e.log.Warn().
			Str("date", date.Format("2006-01")).
			Int("eligible", len(eligible)).
			Msg("Window below eligibility minimum, emitting degraded period")
		return e.degradedPeriod(series, t, date, eligible), nil
	}

	returns := windowMatrix(win, eligible)

	outcome := &periodOutcome{date: date, rows: make([]Row, len(e.estimators))}
	for i, est := range e.estimators {
		row := Row{Date: date, Method: est.Name(), Eligible: len(eligible)}

		estimate, err := est.Estimate(returns)
		switch {
		case err != nil:
			// Singular or otherwise unusable covariance: fall back to 1/N
			// rather than aborting the run.
			e.log.Warn().Err(err).
				Str("method", est.Name()).
				Str("date", date.Format("2006-01")).
				Msg("Estimation failed, falling back to equal weights")
			row.Singular = true
			row.Degraded = true
			row.Weights = weightMap(eligible, optimizer.EqualWeights(len(eligible)))
		default:
			row.Shrinkage = estimate.Shrinkage
			res, optErr := e.solver.Optimize(estimate.Cov, nil, e.cfg.Constraints)
			if optErr != nil {
				e.log.Warn().Err(optErr).
					Str("method", est.Name()).
					Str("date", date.Format("2006-01")).
					Msg("Optimization failed, falling back to equal weights")
				row.Degraded = true
				row.Weights = weightMap(eligible, optimizer.EqualWeights(len(eligible)))
			} else {
				row.Weights = weightMap(eligible, res.Weights)
			}
		}

		row.Realized = realizedReturn(series, t, row.Weights)
		outcome.rows[i] = row
	}
	return outcome, nil
}

// degradedPeriod records an under-covered window. A single surviving ticker
// gets full weight; an empty survivor set sits in cash for the month.
func (e *Engine) degradedPeriod(series *universe.ReturnSeries, t int, date time.Time, eligible []string) *periodOutcome {
	weights := map[string]float64{}
	if len(eligible) == 1 {
		weights[eligible[0]] = 1.0
	}
	realized := realizedReturn(series, t, weights)

	outcome := &periodOutcome{date: date, rows: make([]Row, len(e.estimators))}
	for i, est := range e.estimators {
		outcome.rows[i] = Row{
			Date:     date,
			Method:   est.Name(),
			Weights:  weights,
			Realized: realized,
			Degraded: true,
			Eligible: len(eligible),
		}
	}
	return outcome
}

// assemble runs the ordered serial pass: turnover against the previous
// period's weights, degraded-rate accounting and warning synthesis.
func (e *Engine) assemble(outcomes []*periodOutcome) *Result {
	result := &Result{
		Rows:        make(map[string][]Row, len(e.estimators)),
		RunDegraded: make(map[string]bool, len(e.estimators)),
	}
	for _, est := range e.estimators {
		result.Methods = append(result.Methods, est.Name())
	}

	for i, method := range result.Methods {
		rows := make([]Row, len(outcomes))
		for p, outcome := range outcomes {
			row := outcome.rows[i]
			if p > 0 {
				row.Turnover = Turnover(rows[p-1].Weights, row.Weights)
			}
			rows[p] = row
		}
		result.Rows[method] = rows

		rate := result.DegradedRate(method)
		if rate > e.cfg.DegradedRateThreshold {
			result.RunDegraded[method] = true
			warning := fmt.Sprintf("method %s degraded in %.1f%% of periods (threshold %.1f%%)",
				method, rate*100, e.cfg.DegradedRateThreshold*100)
			result.Warnings = append(result.Warnings, warning)
			e.log.Warn().Str("method", method).Float64("degraded_rate", rate).Msg("Run is degraded")
		}
	}

	e.log.Info().
		Int("periods", len(outcomes)).
		Int("warnings", len(result.Warnings)).
		Msg("Backtest run complete")
	return result
}

// windowMatrix builds the T×N estimation matrix for the eligible tickers.
// Missing observations enter as zero; the coverage filter already bounds how
// many of those any column can carry.
func windowMatrix(window []universe.Observation, tickers []string) *mat.Dense {
	m := mat.NewDense(len(window), len(tickers), nil)
	for i, obs := range window {
		for j, ticker := range tickers {
			if r, ok := obs.Returns[ticker]; ok {
				m.Set(i, j, r)
			}
		}
	}
	return m
}

// weightMap pairs solved weights with their tickers.
func weightMap(tickers []string, weights []float64) map[string]float64 {
	out := make(map[string]float64, len(tickers))
	for i, ticker := range tickers {
		out[ticker] = weights[i]
	}
	return out
}

// realizedReturn evaluates the weight vector against the observation at t.
// A ticker missing its realized return contributes zero.
func realizedReturn(series *universe.ReturnSeries, t int, weights map[string]float64) float64 {
	total := 0.0
	for ticker, w := range weights {
		if r, ok := series.Return(t, ticker); ok {
			total += w * r
		}
	}
	return total
}
