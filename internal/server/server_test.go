package server

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/database"
	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/results"
	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/services"
	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/universe"
)

func seedSeries(t *testing.T, repo *universe.Repository, tickers []string, months int) {
	t.Helper()
	rng := rand.New(rand.NewSource(17))
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
	require.NoError(t, repo.SaveSeries(series))
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()

	returnsDB, err := database.New(database.Config{Path: filepath.Join(dir, "returns.db"), Name: "returns"})
	require.NoError(t, err)
	t.Cleanup(func() { returnsDB.Close() })

	resultsDB, err := database.New(database.Config{Path: filepath.Join(dir, "results.db"), Profile: database.ProfileResults, Name: "results"})
	require.NoError(t, err)
	t.Cleanup(func() { resultsDB.Close() })

	returnsRepo, err := universe.NewRepository(returnsDB.Conn(), zerolog.Nop())
	require.NoError(t, err)
	seedSeries(t, returnsRepo, []string{"AAA", "BBB", "CCC"}, 10)

	runRepo, err := results.NewRunRepository(resultsDB.Conn(), zerolog.Nop())
	require.NoError(t, err)

	return New(Config{
		Log:        zerolog.Nop(),
		Port:       0,
		DevMode:    true,
		RunService: services.NewRunService(returnsRepo, runRepo, zerolog.Nop()),
		RunRepo:    runRepo,
	})
}

func runBody() []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"tickers":           []string{"AAA", "BBB", "CCC"},
		"start_year":        2015,
		"end_year":          2015,
		"estimation_window": 4,
	})
	return body
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestHandleRunBacktest_EndToEnd(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/backtest/run", bytes.NewReader(runBody()))
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var output services.RunOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &output))
	assert.NotEmpty(t, output.RunID)
	require.Len(t, output.Metrics, 2)
	assert.Equal(t, 6, output.Metrics[0].Periods)

	// The run must now be listed.
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var summaries []results.RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, output.RunID, summaries[0].ID)

	// And fetchable by ID.
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/"+output.RunID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stored results.StoredRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stored))
	assert.Equal(t, output.RunID, stored.ID)
	assert.Len(t, stored.Result.Rows["sample"], 6)
}

func TestHandleRunBacktest_InsufficientHistory(t *testing.T) {
	srv := newTestServer(t)

	body, _ := json.Marshal(map[string]interface{}{
		"tickers":           []string{"AAA", "BBB", "CCC"},
		"start_year":        2015,
		"end_year":          2015,
		"estimation_window": 24, // longer than the seeded 10 months
	})
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/backtest/run", bytes.NewReader(body)))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "insufficient")
}

func TestHandleRunBacktest_BadBody(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/backtest/run", strings.NewReader("{not json")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetRun_NotFound(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleRunChartAndDelete(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/backtest/run", bytes.NewReader(runBody())))
	require.Equal(t, http.StatusOK, rec.Code)

	var output services.RunOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &output))
	require.NotEmpty(t, output.RunID)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/"+output.RunID+"/chart?window=3", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var chart chartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chart))
	assert.Len(t, chart.Dates, 6)
	require.Len(t, chart.Series, 2)
	assert.Len(t, chart.Series[0].Equity, 6)
	assert.Len(t, chart.Series[0].SMA, 6)
	// Warmup values are zeroed, the rest follow the curve.
	assert.Zero(t, chart.Series[0].SMA[0])
	assert.NotZero(t, chart.Series[0].SMA[5])

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/runs/"+output.RunID, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/"+output.RunID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleRunBacktestWS(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/backtest/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	var req map[string]interface{}
	require.NoError(t, json.Unmarshal(runBody(), &req))
	require.NoError(t, wsjson.Write(ctx, conn, req))

	sawProgress := false
	for {
		var frame map[string]interface{}
		require.NoError(t, wsjson.Read(ctx, conn, &frame))

		switch frame["type"] {
		case "progress":
			sawProgress = true
		case "result":
			output := frame["output"].(map[string]interface{})
			assert.NotEmpty(t, output["run_id"])
			assert.True(t, sawProgress, "expected at least one progress frame before the result")
			return
		case "error":
			t.Fatalf("run failed over websocket: %v", frame["error"])
		}
	}
}
