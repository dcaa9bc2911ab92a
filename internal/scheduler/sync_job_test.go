package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/universe"
)

type fakeSource struct {
	series *universe.ReturnSeries
	err    error
	calls  int
}

func (f *fakeSource) FetchUniverse(tickers []string, startYear, endYear int) (*universe.ReturnSeries, error) {
	f.calls++
	return f.series, f.err
}

type fakeSink struct {
	saved *universe.ReturnSeries
	err   error
}

func (f *fakeSink) SaveSeries(series *universe.ReturnSeries) error {
	f.saved = series
	return f.err
}

func sampleSeries(t *testing.T) *universe.ReturnSeries {
	t.Helper()
	series, err := universe.NewReturnSeries([]string{"AAA"}, []universe.Observation{
		{Date: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), Returns: map[string]float64{"AAA": 0.01}},
	})
	require.NoError(t, err)
	return series
}

func TestReturnsSyncJob_Run(t *testing.T) {
	source := &fakeSource{series: sampleSeries(t)}
	sink := &fakeSink{}

	job := NewReturnsSyncJob(source, sink, []string{"AAA"}, 2010, zerolog.Nop())
	require.NoError(t, job.Run())

	assert.Equal(t, 1, source.calls)
	assert.Same(t, source.series, sink.saved)
	assert.Equal(t, "returns_sync", job.Name())
}

func TestReturnsSyncJob_SourceFailure(t *testing.T) {
	source := &fakeSource{err: errors.New("rate limited")}
	sink := &fakeSink{}

	job := NewReturnsSyncJob(source, sink, []string{"AAA"}, 2010, zerolog.Nop())
	err := job.Run()

	assert.Error(t, err)
	assert.Nil(t, sink.saved)
}

func TestReturnsSyncJob_SinkFailure(t *testing.T) {
	source := &fakeSource{series: sampleSeries(t)}
	sink := &fakeSink{err: errors.New("disk full")}

	job := NewReturnsSyncJob(source, sink, []string{"AAA"}, 2010, zerolog.Nop())
	assert.Error(t, job.Run())
}
