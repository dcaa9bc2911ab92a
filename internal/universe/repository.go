package universe

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Repository stores monthly returns in SQLite so downloaded history is
// reused across runs instead of re-fetched.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates the returns repository and its schema.
func NewRepository(db *sql.DB, log zerolog.Logger) (*Repository, error) {
	repo := &Repository{
		db:  db,
		log: log.With().Str("component", "returns_repo").Logger(),
	}
	if err := repo.initSchema(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *Repository) initSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS monthly_returns (
			month  TEXT NOT NULL,
			ticker TEXT NOT NULL,
			ret    REAL NOT NULL,
			PRIMARY KEY (month, ticker)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create monthly_returns table: %w", err)
	}
	return nil
}

// SaveSeries upserts every observation of a series.
func (r *Repository) SaveSeries(series *ReturnSeries) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO monthly_returns (month, ticker, ret)
		VALUES (?, ?, ?)
		ON CONFLICT (month, ticker) DO UPDATE SET ret = excluded.ret
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	rows := 0
	for i := 0; i < series.Len(); i++ {
		obs := series.At(i)
		month := obs.Date.Format("2006-01")
		for ticker, ret := range obs.Returns {
			if _, err := stmt.Exec(month, ticker, ret); err != nil {
				return fmt.Errorf("failed to insert %s/%s: %w", month, ticker, err)
			}
			rows++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit returns: %w", err)
	}

	r.log.Info().Int("rows", rows).Msg("Saved return history")
	return nil
}

// LoadSeries reads the stored history for the given tickers and year range.
func (r *Repository) LoadSeries(tickers []string, startYear, endYear int) (*ReturnSeries, error) {
	if len(tickers) == 0 {
		return nil, fmt.Errorf("%w: no tickers requested", ErrInsufficientHistory)
	}
	if startYear > endYear {
		return nil, fmt.Errorf("%w: start year %d after end year %d", ErrInvalidDateRange, startYear, endYear)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(tickers)), ", ")
	query := fmt.Sprintf(`
		SELECT month, ticker, ret
		FROM monthly_returns
		WHERE ticker IN (%s) AND month >= ? AND month <= ?
		ORDER BY month ASC
	`, placeholders)

	args := make([]interface{}, 0, len(tickers)+2)
	for _, t := range tickers {
		args = append(args, t)
	}
	args = append(args, fmt.Sprintf("%04d-01", startYear), fmt.Sprintf("%04d-12", endYear))

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query returns: %w", err)
	}
	defer rows.Close()

	byMonth := make(map[string]map[string]float64)
	for rows.Next() {
		var month, ticker string
		var ret float64
		if err := rows.Scan(&month, &ticker, &ret); err != nil {
			return nil, fmt.Errorf("failed to scan return row: %w", err)
		}
		if byMonth[month] == nil {
			byMonth[month] = make(map[string]float64)
		}
		byMonth[month][ticker] = ret
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating return rows: %w", err)
	}

	if len(byMonth) == 0 {
		return nil, fmt.Errorf("%w: no stored returns for %d-%d", ErrInsufficientHistory, startYear, endYear)
	}

	months := make([]string, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Strings(months)

	observations := make([]Observation, len(months))
	for i, m := range months {
		date, err := time.Parse("2006-01", m)
		if err != nil {
			return nil, fmt.Errorf("corrupt month key %q: %w", m, err)
		}
		observations[i] = Observation{Date: date, Returns: byMonth[m]}
	}

	return NewReturnSeries(tickers, observations)
}

// Count returns the number of stored (month, ticker) rows.
func (r *Repository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM monthly_returns`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count returns: %w", err)
	}
	return n, nil
}
