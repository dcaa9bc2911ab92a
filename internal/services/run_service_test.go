package services

import (
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/analytics"
	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/backtest"
	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/coverage"
	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/universe"
)

type fakeProvider struct {
	series *universe.ReturnSeries
	err    error
}

func (f *fakeProvider) LoadSeries(tickers []string, startYear, endYear int) (*universe.ReturnSeries, error) {
	return f.series, f.err
}

type fakeArchive struct {
	saved bool
	err   error
}

func (f *fakeArchive) SaveRun(cfg backtest.Config, result *backtest.Result, metrics []analytics.Metrics) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.saved = true
	return "run-123", nil
}

func randomSeries(t *testing.T, tickers []string, months int, seed int64) *universe.ReturnSeries {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	start := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	obs := make([]universe.Observation, months)
	for i := range obs {
		returns := make(map[string]float64, len(tickers))
		for _, ticker := range tickers {
			returns[ticker] = rng.NormFloat64()*0.05 + 0.005
		}
		obs[i] = universe.Observation{Date: start.AddDate(0, i, 0), Returns: returns}
	}
	series, err := universe.NewReturnSeries(tickers, obs)
	require.NoError(t, err)
	return series
}

func testRunConfig(tickers []string) backtest.Config {
	cfg := backtest.DefaultConfig(tickers)
	cfg.EstimationWindow = 4
	cfg.Coverage = coverage.Params{MinObservations: 4, MaxMissingPct: 0}
	return cfg
}

func TestExecute_FullRun(t *testing.T) {
	tickers := []string{"AAA", "BBB", "CCC"}
	provider := &fakeProvider{series: randomSeries(t, tickers, 10, 42)}
	archive := &fakeArchive{}

	svc := NewRunService(provider, archive, zerolog.Nop())
	out, err := svc.Execute(testRunConfig(tickers), nil)
	require.NoError(t, err)

	assert.Equal(t, "run-123", out.RunID)
	assert.True(t, archive.saved)
	require.Len(t, out.Metrics, 2)
	require.Len(t, out.Turnover, 2)
	assert.Len(t, out.Result.Rows[out.Result.Methods[0]], 6)
}

func TestExecute_ProviderFailure(t *testing.T) {
	svc := NewRunService(&fakeProvider{err: errors.New("db gone")}, nil, zerolog.Nop())
	_, err := svc.Execute(testRunConfig([]string{"AAA", "BBB"}), nil)
	assert.Error(t, err)
}

func TestExecute_ArchiveFailureDoesNotFailRun(t *testing.T) {
	tickers := []string{"AAA", "BBB", "CCC"}
	provider := &fakeProvider{series: randomSeries(t, tickers, 10, 42)}
	archive := &fakeArchive{err: errors.New("disk full")}

	svc := NewRunService(provider, archive, zerolog.Nop())
	out, err := svc.Execute(testRunConfig(tickers), nil)

	require.NoError(t, err)
	assert.Empty(t, out.RunID)
	assert.NotNil(t, out.Result)
}

func TestExecute_NilArchive(t *testing.T) {
	tickers := []string{"AAA", "BBB", "CCC"}
	provider := &fakeProvider{series: randomSeries(t, tickers, 10, 42)}

	svc := NewRunService(provider, nil, zerolog.Nop())
	out, err := svc.Execute(testRunConfig(tickers), nil)

	require.NoError(t, err)
	assert.Empty(t, out.RunID)
}

func TestExecute_ProgressForwarded(t *testing.T) {
	tickers := []string{"AAA", "BBB", "CCC"}
	provider := &fakeProvider{series: randomSeries(t, tickers, 10, 42)}

	svc := NewRunService(provider, nil, zerolog.Nop())

	var mu sync.Mutex
	seen := 0
	_, err := svc.Execute(testRunConfig(tickers), func(done, total int) {
		mu.Lock()
		seen++
		mu.Unlock()
	})

	require.NoError(t, err)
	assert.Equal(t, 6, seen)
}
