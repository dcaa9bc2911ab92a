// Package services composes the engine, analytics and persistence into the
// operations the HTTP API and CLI expose.
package services

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/analytics"
	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/backtest"
	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/results"
	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/universe"
)

// SeriesProvider supplies the return history for a run. The SQLite returns
// repository satisfies it; tests and the CSV path plug in their own.
type SeriesProvider interface {
	LoadSeries(tickers []string, startYear, endYear int) (*universe.ReturnSeries, error)
}

// RunArchive persists completed runs. Nil disables archiving.
type RunArchive interface {
	SaveRun(cfg backtest.Config, result *backtest.Result, metrics []analytics.Metrics) (string, error)
}

// RunOutput is everything a completed run produces.
type RunOutput struct {
	RunID    string                     `json:"run_id,omitempty"`
	Result   *backtest.Result           `json:"result"`
	Metrics  []analytics.Metrics        `json:"metrics"`
	Turnover []backtest.TurnoverSummary `json:"turnover"`
}

// RunService executes full studies: load history, run the engine, score the
// methods and archive the outcome.
type RunService struct {
	provider SeriesProvider
	archive  RunArchive
	log      zerolog.Logger
}

// NewRunService creates a run service. archive may be nil.
func NewRunService(provider SeriesProvider, archive RunArchive, log zerolog.Logger) *RunService {
	return &RunService{
		provider: provider,
		archive:  archive,
		log:      log.With().Str("component", "run_service").Logger(),
	}
}

// Execute runs a complete study. progress may be nil.
func (s *RunService) Execute(cfg backtest.Config, progress func(done, total int)) (*RunOutput, error) {
	series, err := s.provider.LoadSeries(cfg.Tickers, cfg.StartYear, cfg.EndYear)
	if err != nil {
		return nil, fmt.Errorf("failed to load return history: %w", err)
	}

	engine, err := backtest.NewEngine(cfg, s.log)
	if err != nil {
		return nil, err
	}
	if progress != nil {
		engine.SetProgress(progress)
	}

	result, err := engine.Run(series)
	if err != nil {
		return nil, err
	}

	analyzer := analytics.NewPerformanceAnalyzer(cfg.RiskFreeRate, s.log)
	metrics := analyzer.Analyze(result)
	turnover := backtest.NewTurnoverTracker(result).Summaries()

	output := &RunOutput{Result: result, Metrics: metrics, Turnover: turnover}
	if s.archive != nil {
		id, err := s.archive.SaveRun(cfg, result, metrics)
		if err != nil {
			// The study itself succeeded; report it even when archiving fails.
			s.log.Error().Err(err).Msg("Failed to archive run")
		} else {
			output.RunID = id
		}
	}

	return output, nil
}

var _ RunArchive = (*results.RunRepository)(nil)
var _ SeriesProvider = (*universe.Repository)(nil)
