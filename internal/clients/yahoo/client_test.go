package yahoo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/wnjoon/go-yfinance/pkg/models"
)

func bar(y int, m time.Month, d int, adjClose, close float64) models.Bar {
	return models.Bar{
		Date:     time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		AdjClose: adjClose,
		Close:    close,
	}
}

func TestMonthlyPrices_BucketsAndPrefersAdjClose(t *testing.T) {
	bars := []models.Bar{
		bar(2020, time.January, 31, 100, 105),
		bar(2020, time.February, 28, 0, 110), // no adjusted close, fall back
		bar(2020, time.March, 31, 120, 125),
	}

	prices := monthlyPrices(bars)
	assert.Len(t, prices, 3)
	assert.Equal(t, 100.0, prices[time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)])
	assert.Equal(t, 110.0, prices[time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC)])
	assert.Equal(t, 120.0, prices[time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)])
}

func TestMonthlyPrices_LastBarOfMonthWins(t *testing.T) {
	bars := []models.Bar{
		bar(2020, time.January, 2, 90, 90),
		bar(2020, time.January, 31, 100, 100),
	}

	prices := monthlyPrices(bars)
	assert.Len(t, prices, 1)
	assert.Equal(t, 100.0, prices[time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)])
}

func TestMonthlyPrices_DropsUnusableBars(t *testing.T) {
	bars := []models.Bar{
		bar(2020, time.January, 31, 0, 0),
		bar(2020, time.February, 28, 50, 50),
	}

	prices := monthlyPrices(bars)
	assert.Len(t, prices, 1)
}
