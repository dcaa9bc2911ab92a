package universe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func month(y int, m time.Month) time.Time {
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

func TestNewReturnSeries_RejectsEmptyUniverse(t *testing.T) {
	_, err := NewReturnSeries(nil, nil)
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}

func TestNewReturnSeries_RejectsOutOfOrderDates(t *testing.T) {
	obs := []Observation{
		{Date: month(2020, time.March)},
		{Date: month(2020, time.February)},
	}
	_, err := NewReturnSeries([]string{"AAA"}, obs)
	assert.ErrorIs(t, err, ErrInvalidDateRange)
}

func TestNewReturnSeries_RejectsDuplicateDates(t *testing.T) {
	obs := []Observation{
		{Date: month(2020, time.March)},
		{Date: month(2020, time.March)},
	}
	_, err := NewReturnSeries([]string{"AAA"}, obs)
	assert.ErrorIs(t, err, ErrInvalidDateRange)
}

func TestReturnSeries_Accessors(t *testing.T) {
	obs := []Observation{
		{Date: month(2020, time.January), Returns: map[string]float64{"AAA": 0.01, "BBB": -0.02}},
		{Date: month(2020, time.February), Returns: map[string]float64{"AAA": 0.03}},
		{Date: month(2020, time.March), Returns: map[string]float64{"AAA": 0.00, "BBB": 0.05}},
	}
	series, err := NewReturnSeries([]string{"AAA", "BBB"}, obs)
	require.NoError(t, err)

	assert.Equal(t, 3, series.Len())
	assert.Equal(t, []string{"AAA", "BBB"}, series.Tickers())
	assert.Equal(t, month(2020, time.February), series.At(1).Date)

	r, ok := series.Return(0, "BBB")
	assert.True(t, ok)
	assert.Equal(t, -0.02, r)

	// BBB is missing in February, not zero.
	_, ok = series.Return(1, "BBB")
	assert.False(t, ok)

	window := series.Window(1, 3)
	require.Len(t, window, 2)
	assert.Equal(t, month(2020, time.February), window[0].Date)

	dates := series.Dates()
	assert.Equal(t, []time.Time{month(2020, time.January), month(2020, time.February), month(2020, time.March)}, dates)
}

func TestReturnSeries_TickersIsACopy(t *testing.T) {
	series, err := NewReturnSeries([]string{"AAA", "BBB"}, []Observation{{Date: month(2020, time.January)}})
	require.NoError(t, err)

	got := series.Tickers()
	got[0] = "ZZZ"
	assert.Equal(t, []string{"AAA", "BBB"}, series.Tickers())
}

func TestDefaultTickers(t *testing.T) {
	tickers := DefaultTickers()
	assert.Len(t, tickers, 20)
	assert.Contains(t, tickers, "AAPL")
	assert.Contains(t, tickers, "XOM")

	seen := make(map[string]bool)
	for _, ticker := range tickers {
		assert.False(t, seen[ticker], "duplicate ticker %s", ticker)
		seen[ticker] = true
	}
}
