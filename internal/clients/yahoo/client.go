// Package yahoo downloads monthly price history from Yahoo Finance and
// converts it into the return series the engine consumes.
package yahoo

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/wnjoon/go-yfinance/pkg/models"
	"github.com/wnjoon/go-yfinance/pkg/ticker"

	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/universe"
)

const defaultMaxRetries = 3

// Client fetches monthly bars per ticker. Symbols that fail after retries
// are reported but do not abort a universe download; the coverage filter
// downstream handles the resulting gaps.
type Client struct {
	log        zerolog.Logger
	maxRetries int
}

// NewClient creates a Yahoo Finance history client.
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		log:        log.With().Str("client", "yahoo").Logger(),
		maxRetries: defaultMaxRetries,
	}
}

// MonthlyReturns fetches the adjusted price history for one symbol and
// converts it to month-over-month returns keyed by the first of the month.
// A return is only produced when the immediately preceding month has a
// price; gaps stay missing rather than being interpolated.
func (c *Client) MonthlyReturns(symbol string, startYear, endYear int) (map[time.Time]float64, error) {
	bars, err := c.historyWithRetry(symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history for %s: %w", symbol, err)
	}

	prices := monthlyPrices(bars)
	months := make([]time.Time, 0, len(prices))
	for m := range prices {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

	returns := make(map[time.Time]float64)
	for i := 1; i < len(months); i++ {
		curr := months[i]
		prev := curr.AddDate(0, -1, 0)
		prevPrice, ok := prices[prev]
		if !ok || prevPrice <= 0 {
			continue
		}
		if startYear > 0 && curr.Year() < startYear {
			continue
		}
		if endYear > 0 && curr.Year() > endYear {
			continue
		}
		returns[curr] = prices[curr]/prevPrice - 1
	}

	c.log.Debug().Str("symbol", symbol).Int("months", len(returns)).Msg("Converted history to returns")
	return returns, nil
}

// FetchUniverse downloads every ticker and assembles a ReturnSeries over the
// union of their observed months. Tickers whose download fails entirely are
// left missing in every month.
func (c *Client) FetchUniverse(tickers []string, startYear, endYear int) (*universe.ReturnSeries, error) {
	byMonth := make(map[time.Time]map[string]float64)
	failed := 0

	for _, symbol := range tickers {
		returns, err := c.MonthlyReturns(symbol, startYear, endYear)
		if err != nil {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("Skipping ticker after failed download")
			failed++
			continue
		}
		for m, r := range returns {
			if byMonth[m] == nil {
				byMonth[m] = make(map[string]float64)
			}
			byMonth[m][symbol] = r
		}
	}

	if failed == len(tickers) || len(byMonth) == 0 {
		return nil, fmt.Errorf("%w: no ticker produced usable history", universe.ErrInsufficientHistory)
	}

	months := make([]time.Time, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

	observations := make([]universe.Observation, len(months))
	for i, m := range months {
		observations[i] = universe.Observation{Date: m, Returns: byMonth[m]}
	}

	c.log.Info().
		Int("tickers", len(tickers)-failed).
		Int("failed", failed).
		Int("months", len(observations)).
		Msg("Downloaded universe history")

	return universe.NewReturnSeries(tickers, observations)
}

// historyWithRetry fetches monthly bars with exponential backoff, matching
// Yahoo's tendency to throw transient errors under load.
func (c *Client) historyWithRetry(symbol string) ([]models.Bar, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(1<<uint(attempt-1)) * time.Second
			c.log.Warn().Err(lastErr).Str("symbol", symbol).Int("attempt", attempt+1).Dur("wait", wait).Msg("Retrying")
			time.Sleep(wait)
		}

		t, err := ticker.New(symbol)
		if err != nil {
			lastErr = fmt.Errorf("failed to create ticker: %w", err)
			continue
		}

		bars, err := t.History(models.HistoryParams{
			Period:     "max",
			Interval:   "1mo",
			AutoAdjust: true,
		})
		t.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to fetch bars: %w", err)
			continue
		}
		if len(bars) == 0 {
			lastErr = fmt.Errorf("no bars returned for %s", symbol)
			continue
		}
		return bars, nil
	}
	return nil, lastErr
}

// monthlyPrices buckets bars to the first of their month, preferring the
// adjusted close. The last bar of a month wins when Yahoo returns more than
// one bar for the same month.
func monthlyPrices(bars []models.Bar) map[time.Time]float64 {
	prices := make(map[time.Time]float64, len(bars))
	for _, bar := range bars {
		price := bar.AdjClose
		if price <= 0 {
			price = bar.Close
		}
		if price <= 0 {
			continue
		}
		m := time.Date(bar.Date.Year(), bar.Date.Month(), 1, 0, 0, 0, 0, time.UTC)
		prices[m] = price
	}
	return prices
}
