package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/backtest"
	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/coverage"
	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/results"
	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/universe"
	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/pkg/formulas"
)

// runRequest is the JSON body for starting a study. Every field is optional;
// zero values fall back to the research defaults.
type runRequest struct {
	Tickers          []string `json:"tickers"`
	StartYear        int      `json:"start_year"`
	EndYear          int      `json:"end_year"`
	EstimationWindow int      `json:"estimation_window"`
	StepSize         int      `json:"step_size"`
	RiskFreeRate     *float64 `json:"risk_free_rate"`
	MinWeight        *float64 `json:"min_weight"`
	MaxWeight        *float64 `json:"max_weight"`
	LongOnly         bool     `json:"long_only"`
	MinObservations  int      `json:"min_observations"`
	MaxMissingPct    *float64 `json:"max_missing_pct"`
}

// toConfig merges the request over the defaults.
func (req *runRequest) toConfig() backtest.Config {
	tickers := req.Tickers
	if len(tickers) == 0 {
		tickers = universe.DefaultTickers()
	}
	cfg := backtest.DefaultConfig(tickers)

	if req.StartYear > 0 {
		cfg.StartYear = req.StartYear
	}
	if req.EndYear > 0 {
		cfg.EndYear = req.EndYear
	}
	if req.EstimationWindow > 0 {
		cfg.EstimationWindow = req.EstimationWindow
		cfg.Coverage.MinObservations = req.EstimationWindow
	}
	if req.StepSize > 0 {
		cfg.StepSize = req.StepSize
	}
	if req.RiskFreeRate != nil {
		cfg.RiskFreeRate = *req.RiskFreeRate
	}
	if req.MinWeight != nil {
		cfg.Constraints.MinWeight = *req.MinWeight
	}
	if req.MaxWeight != nil {
		cfg.Constraints.MaxWeight = *req.MaxWeight
	}
	if req.LongOnly {
		cfg.Constraints.LongOnly = true
		cfg.Constraints.AllowShort = false
	}
	if req.MinObservations > 0 {
		cfg.Coverage.MinObservations = req.MinObservations
	}
	if req.MaxMissingPct != nil {
		cfg.Coverage.MaxMissingPct = *req.MaxMissingPct
	}
	return cfg
}

func (s *Server) handleRunBacktest(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	output, err := s.runService.Execute(req.toConfig(), nil)
	if err != nil {
		switch {
		case errors.Is(err, universe.ErrInsufficientHistory),
			errors.Is(err, universe.ErrInvalidDateRange),
			errors.Is(err, coverage.ErrInsufficientUniverse):
			s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			s.log.Error().Err(err).Msg("Run failed")
			s.respondError(w, http.StatusInternalServerError, "run failed: "+err.Error())
		}
		return
	}

	s.respondJSON(w, http.StatusOK, output)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	summaries, err := s.runRepo.ListRuns(limit)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list runs")
		s.respondError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if summaries == nil {
		summaries = []results.RunSummary{}
	}
	s.respondJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	stored, err := s.runRepo.GetRun(chi.URLParam(r, "id"))
	if errors.Is(err, results.ErrRunNotFound) {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load run")
		s.respondError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	s.respondJSON(w, http.StatusOK, stored)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	err := s.runRepo.DeleteRun(chi.URLParam(r, "id"))
	if errors.Is(err, results.ErrRunNotFound) {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to delete run")
		s.respondError(w, http.StatusInternalServerError, "failed to delete run")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// methodChart is one method's equity curve plus moving-average overlays.
type methodChart struct {
	Method string    `json:"method"`
	Equity []float64 `json:"equity"`
	SMA    []float64 `json:"sma"`
	EMA    []float64 `json:"ema"`
}

type chartResponse struct {
	RunID  string        `json:"run_id"`
	Dates  []string      `json:"dates"`
	Series []methodChart `json:"series"`
}

// handleRunChart renders an archived run as chart-ready series: compounded
// equity curves with SMA/EMA overlays for the requested window.
func (s *Server) handleRunChart(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	window := 6
	if v := r.URL.Query().Get("window"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			window = n
		}
	}

	stored, err := s.runRepo.GetRun(id)
	if errors.Is(err, results.ErrRunNotFound) {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load run for chart")
		s.respondError(w, http.StatusInternalServerError, "failed to load run")
		return
	}

	resp := chartResponse{RunID: id}
	for _, d := range stored.Result.Dates() {
		resp.Dates = append(resp.Dates, d.Format("2006-01"))
	}
	for _, method := range stored.Result.Methods {
		equity := formulas.EquityCurve(stored.Result.RealizedReturns(method))
		resp.Series = append(resp.Series, methodChart{
			Method: method,
			Equity: equity,
			SMA:    sanitizeNaN(formulas.SMASeries(equity, window)),
			EMA:    sanitizeNaN(formulas.EMASeries(equity, window)),
		})
	}

	s.respondJSON(w, http.StatusOK, resp)
}

// sanitizeNaN zeroes leading NaN warmup values so the payload stays valid JSON.
func sanitizeNaN(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if v == v {
			out[i] = v
		}
	}
	return out
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
