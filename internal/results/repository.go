// Package results archives completed runs in SQLite so past studies can be
// listed, reloaded and charted without re-running the engine.
package results

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/analytics"
	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/backtest"
)

// ErrRunNotFound means no archived run carries the requested ID.
var ErrRunNotFound = errors.New("run not found")

// RunSummary is the listing view of an archived run.
type RunSummary struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Tickers   int       `json:"tickers"`
	Periods   int       `json:"periods"`
	Warnings  int       `json:"warnings"`
}

// StoredRun is a fully rehydrated archived run.
type StoredRun struct {
	ID        string              `json:"id"`
	CreatedAt time.Time           `json:"created_at"`
	Config    backtest.Config     `json:"config"`
	Result    *backtest.Result    `json:"result"`
	Metrics   []analytics.Metrics `json:"metrics"`
}

// RunRepository persists runs. Row weight vectors are msgpack blobs; the
// scalar per-period fields stay as columns so summaries never decode blobs.
type RunRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRunRepository creates the archive and its schema.
func NewRunRepository(db *sql.DB, log zerolog.Logger) (*RunRepository, error) {
	repo := &RunRepository{
		db:  db,
		log: log.With().Str("component", "run_repo").Logger(),
	}
	if err := repo.initSchema(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *RunRepository) initSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			created_at  TEXT NOT NULL,
			config      TEXT NOT NULL,
			methods     TEXT NOT NULL,
			warnings    TEXT NOT NULL,
			metrics     TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS run_rows (
			run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			method     TEXT NOT NULL,
			period     INTEGER NOT NULL,
			date       TEXT NOT NULL,
			realized   REAL NOT NULL,
			turnover   REAL NOT NULL,
			degraded   INTEGER NOT NULL,
			singular   INTEGER NOT NULL,
			shrinkage  REAL NOT NULL,
			eligible   INTEGER NOT NULL,
			weights    BLOB NOT NULL,
			PRIMARY KEY (run_id, method, period)
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create run archive schema: %w", err)
	}
	return nil
}

// SaveRun archives a completed run and returns its generated ID.
func (r *RunRepository) SaveRun(cfg backtest.Config, result *backtest.Result, metrics []analytics.Metrics) (string, error) {
	id := uuid.NewString()
	createdAt := time.Now().UTC()

	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	methodsJSON, err := json.Marshal(result.Methods)
	if err != nil {
		return "", fmt.Errorf("failed to encode methods: %w", err)
	}
	warningsJSON, err := json.Marshal(result.Warnings)
	if err != nil {
		return "", fmt.Errorf("failed to encode warnings: %w", err)
	}
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return "", fmt.Errorf("failed to encode metrics: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (id, created_at, config, methods, warnings, metrics)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, createdAt.Format(time.RFC3339), string(configJSON), string(methodsJSON), string(warningsJSON), string(metricsJSON))
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO run_rows (run_id, method, period, date, realized, turnover, degraded, singular, shrinkage, eligible, weights)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare row insert: %w", err)
	}
	defer stmt.Close()

	for _, method := range result.Methods {
		for period, row := range result.Rows[method] {
			weights, err := msgpack.Marshal(row.Weights)
			if err != nil {
				return "", fmt.Errorf("failed to encode weights: %w", err)
			}
			_, err = stmt.Exec(id, method, period, row.Date.Format(time.RFC3339),
				row.Realized, row.Turnover, boolToInt(row.Degraded), boolToInt(row.Singular),
				row.Shrinkage, row.Eligible, weights)
			if err != nil {
				return "", fmt.Errorf("failed to insert row %s/%d: %w", method, period, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}

	r.log.Info().Str("run_id", id).Int("methods", len(result.Methods)).Msg("Archived run")
	return id, nil
}

// GetRun rehydrates an archived run by ID.
func (r *RunRepository) GetRun(id string) (*StoredRun, error) {
	var createdAt, configJSON, methodsJSON, warningsJSON, metricsJSON string
	err := r.db.QueryRow(`
		SELECT created_at, config, methods, warnings, metrics FROM runs WHERE id = ?
	`, id).Scan(&createdAt, &configJSON, &methodsJSON, &warningsJSON, &metricsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	stored := &StoredRun{ID: id, Result: &backtest.Result{
		Rows:        make(map[string][]backtest.Row),
		RunDegraded: make(map[string]bool),
	}}

	stored.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("corrupt created_at for run %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(configJSON), &stored.Config); err != nil {
		return nil, fmt.Errorf("corrupt config for run %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(methodsJSON), &stored.Result.Methods); err != nil {
		return nil, fmt.Errorf("corrupt methods for run %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(warningsJSON), &stored.Result.Warnings); err != nil {
		return nil, fmt.Errorf("corrupt warnings for run %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(metricsJSON), &stored.Metrics); err != nil {
		return nil, fmt.Errorf("corrupt metrics for run %s: %w", id, err)
	}

	rows, err := r.db.Query(`
		SELECT method, date, realized, turnover, degraded, singular, shrinkage, eligible, weights
		FROM run_rows WHERE run_id = ?
		ORDER BY method, period ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query run rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var method, date string
		var degraded, singular int
		var blob []byte
		row := backtest.Row{}
		if err := rows.Scan(&method, &date, &row.Realized, &row.Turnover,
			&degraded, &singular, &row.Shrinkage, &row.Eligible, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		row.Method = method
		row.Degraded = degraded != 0
		row.Singular = singular != 0
		if row.Date, err = time.Parse(time.RFC3339, date); err != nil {
			return nil, fmt.Errorf("corrupt row date for run %s: %w", id, err)
		}
		if err := msgpack.Unmarshal(blob, &row.Weights); err != nil {
			return nil, fmt.Errorf("corrupt weights for run %s: %w", id, err)
		}
		stored.Result.Rows[method] = append(stored.Result.Rows[method], row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}

	for _, m := range stored.Metrics {
		if m.DegradedRate > stored.Config.DegradedRateThreshold {
			stored.Result.RunDegraded[m.Method] = true
		}
	}

	return stored, nil
}

// ListRuns returns the newest runs first, up to limit.
func (r *RunRepository) ListRuns(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(`
		SELECT r.id, r.created_at, r.config, r.warnings,
		       (SELECT COUNT(DISTINCT period) FROM run_rows WHERE run_id = r.id)
		FROM runs r
		ORDER BY r.created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		var createdAt, configJSON, warningsJSON string
		if err := rows.Scan(&s.ID, &createdAt, &configJSON, &warningsJSON, &s.Periods); err != nil {
			return nil, fmt.Errorf("failed to scan run summary: %w", err)
		}
		if s.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("corrupt created_at: %w", err)
		}
		var cfg backtest.Config
		if err := json.Unmarshal([]byte(configJSON), &cfg); err == nil {
			s.Tickers = len(cfg.Tickers)
		}
		var warnings []string
		if err := json.Unmarshal([]byte(warningsJSON), &warnings); err == nil {
			s.Warnings = len(warnings)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteRun removes an archived run and its rows.
func (r *RunRepository) DeleteRun(id string) error {
	res, err := r.db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	// run_rows cascade via the foreign key; delete explicitly too in case
	// the connection was opened without foreign_keys.
	if _, err := r.db.Exec(`DELETE FROM run_rows WHERE run_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete run rows: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
