package scheduler

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/universe"
)

// HistorySource downloads monthly return history for a ticker universe.
type HistorySource interface {
	FetchUniverse(tickers []string, startYear, endYear int) (*universe.ReturnSeries, error)
}

// HistorySink persists a downloaded series.
type HistorySink interface {
	SaveSeries(series *universe.ReturnSeries) error
}

// ReturnsSyncJob refreshes the cached return history from the market data
// source. It always re-fetches from startYear so late revisions (dividends,
// splits) are picked up, and relies on the repository upsert for idempotence.
type ReturnsSyncJob struct {
	source    HistorySource
	sink      HistorySink
	tickers   []string
	startYear int
	log       zerolog.Logger
}

// NewReturnsSyncJob creates the sync job.
func NewReturnsSyncJob(source HistorySource, sink HistorySink, tickers []string, startYear int, log zerolog.Logger) *ReturnsSyncJob {
	return &ReturnsSyncJob{
		source:    source,
		sink:      sink,
		tickers:   tickers,
		startYear: startYear,
		log:       log.With().Str("job", "returns_sync").Logger(),
	}
}

// Name implements Job.
func (j *ReturnsSyncJob) Name() string {
	return "returns_sync"
}

// Run implements Job.
func (j *ReturnsSyncJob) Run() error {
	endYear := time.Now().UTC().Year()
	started := time.Now()

	series, err := j.source.FetchUniverse(j.tickers, j.startYear, endYear)
	if err != nil {
		return fmt.Errorf("failed to download return history: %w", err)
	}
	if err := j.sink.SaveSeries(series); err != nil {
		return fmt.Errorf("failed to persist return history: %w", err)
	}

	j.log.Info().
		Int("tickers", len(j.tickers)).
		Int("months", series.Len()).
		Dur("took", time.Since(started)).
		Msg("Return history synced")
	return nil
}
