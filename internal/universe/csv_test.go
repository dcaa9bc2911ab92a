package universe

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSV_BasicDataset(t *testing.T) {
	data := `date,ticker,return,sector
2020-01-31,AAPL,0.05,Technology
2020-01-31,JPM,-0.02,Financials
2020-02-28,AAPL,0.01,Technology
2020-02-28,JPM,0.03,Financials
`
	series, err := parseCSV(strings.NewReader(data), LoadOptions{}, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, 2, series.Len())
	assert.Equal(t, []string{"AAPL", "JPM"}, series.Tickers())

	// Rows are bucketed to the first of the month.
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), series.At(0).Date)

	r, ok := series.Return(0, "AAPL")
	assert.True(t, ok)
	assert.Equal(t, 0.05, r)
	r, ok = series.Return(1, "JPM")
	assert.True(t, ok)
	assert.Equal(t, 0.03, r)
}

func TestParseCSV_FiltersTickersAndYears(t *testing.T) {
	data := `date,ticker,return
2019-12-31,AAPL,0.10
2020-01-31,AAPL,0.05
2020-01-31,JPM,-0.02
2021-01-31,AAPL,0.02
`
	opts := LoadOptions{Tickers: []string{"AAPL"}, StartYear: 2020, EndYear: 2020}
	series, err := parseCSV(strings.NewReader(data), opts, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, 1, series.Len())
	assert.Equal(t, []string{"AAPL"}, series.Tickers())

	_, ok := series.Return(0, "JPM")
	assert.False(t, ok)
}

func TestParseCSV_FirstRowWinsOnDuplicates(t *testing.T) {
	data := `date,ticker,return
2020-01-02,AAPL,0.05
2020-01-31,AAPL,0.99
`
	series, err := parseCSV(strings.NewReader(data), LoadOptions{}, zerolog.Nop())
	require.NoError(t, err)

	require.Equal(t, 1, series.Len())
	r, _ := series.Return(0, "AAPL")
	assert.Equal(t, 0.05, r)
}

func TestParseCSV_SkipsMalformedRows(t *testing.T) {
	data := `date,ticker,return
not-a-date,AAPL,0.05
2020-01-31,AAPL,not-a-number
2020-01-31,,0.05
2020-01-31,AAPL,0.07
`
	series, err := parseCSV(strings.NewReader(data), LoadOptions{}, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, 1, series.Len())
	r, ok := series.Return(0, "AAPL")
	assert.True(t, ok)
	assert.Equal(t, 0.07, r)
}

func TestParseCSV_MissingColumns(t *testing.T) {
	data := `date,symbol,price
2020-01-31,AAPL,100
`
	_, err := parseCSV(strings.NewReader(data), LoadOptions{}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrInvalidDateRange)
}

func TestParseCSV_EmptyDataset(t *testing.T) {
	data := `date,ticker,return
`
	_, err := parseCSV(strings.NewReader(data), LoadOptions{}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}

func TestParseDate_Layouts(t *testing.T) {
	for _, input := range []string{"2020-03-31", "2020/03/31", "03/31/2020", "2020-03-31 00:00:00"} {
		parsed, err := parseDate(input)
		require.NoError(t, err, "layout %q", input)
		assert.Equal(t, 2020, parsed.Year())
		assert.Equal(t, time.March, parsed.Month())
	}

	_, err := parseDate("31st of March")
	assert.Error(t, err)
}
