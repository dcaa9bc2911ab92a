package universe

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LoadOptions filter a raw dataset down to the configured run.
type LoadOptions struct {
	Tickers   []string // universe order; empty means every ticker in the file
	StartYear int      // 0 means unbounded
	EndYear   int      // 0 means unbounded
}

// LoadCSV reads a `date,ticker,return` dataset (the static market-universe
// export; extra columns such as market_cap and sector are ignored) and
// assembles a ReturnSeries. Rows are bucketed by calendar month; the first
// row wins when a (month, ticker) pair appears twice.
func LoadCSV(path string, opts LoadOptions, log zerolog.Logger) (*ReturnSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open returns file: %w", err)
	}
	defer f.Close()

	series, err := parseCSV(f, opts, log)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return series, nil
}

func parseCSV(r io.Reader, opts LoadOptions, log zerolog.Logger) (*ReturnSeries, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // datasets carry optional metadata columns

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	dateIdx, tickerIdx, returnIdx := -1, -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "date":
			dateIdx = i
		case "ticker":
			tickerIdx = i
		case "return", "ret":
			returnIdx = i
		}
	}
	if dateIdx < 0 || tickerIdx < 0 || returnIdx < 0 {
		return nil, fmt.Errorf("%w: header must contain date, ticker and return columns", ErrInvalidDateRange)
	}

	wanted := make(map[string]bool, len(opts.Tickers))
	for _, t := range opts.Tickers {
		wanted[strings.ToUpper(t)] = true
	}

	byMonth := make(map[time.Time]map[string]float64)
	seen := make(map[string]bool)
	skipped := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		if len(record) <= returnIdx || len(record) <= dateIdx || len(record) <= tickerIdx {
			skipped++
			continue
		}

		date, err := parseDate(strings.TrimSpace(record[dateIdx]))
		if err != nil {
			skipped++
			continue
		}
		if opts.StartYear > 0 && date.Year() < opts.StartYear {
			continue
		}
		if opts.EndYear > 0 && date.Year() > opts.EndYear {
			continue
		}

		ticker := strings.ToUpper(strings.TrimSpace(record[tickerIdx]))
		if ticker == "" {
			skipped++
			continue
		}
		if len(wanted) > 0 && !wanted[ticker] {
			continue
		}

		ret, err := strconv.ParseFloat(strings.TrimSpace(record[returnIdx]), 64)
		if err != nil {
			skipped++
			continue
		}

		month := time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, time.UTC)
		if byMonth[month] == nil {
			byMonth[month] = make(map[string]float64)
		}
		if _, dup := byMonth[month][ticker]; !dup {
			byMonth[month][ticker] = ret
		}
		seen[ticker] = true
	}

	if skipped > 0 {
		log.Warn().Int("rows", skipped).Msg("Skipped malformed rows in returns dataset")
	}
	if len(byMonth) == 0 {
		return nil, fmt.Errorf("%w: no usable observations in dataset", ErrInsufficientHistory)
	}

	months := make([]time.Time, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

	observations := make([]Observation, len(months))
	for i, m := range months {
		observations[i] = Observation{Date: m, Returns: byMonth[m]}
	}

	tickers := opts.Tickers
	if len(tickers) == 0 {
		tickers = make([]string, 0, len(seen))
		for t := range seen {
			tickers = append(tickers, t)
		}
		sort.Strings(tickers)
	}

	log.Info().
		Int("months", len(observations)).
		Int("tickers", len(tickers)).
		Str("first", observations[0].Date.Format("2006-01")).
		Str("last", observations[len(observations)-1].Date.Format("2006-01")).
		Msg("Loaded return history")

	return NewReturnSeries(tickers, observations)
}

// parseDate accepts the date layouts seen in the exported datasets.
func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "2006-01-02 15:04:05", "2006/01/02", "01/02/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
