package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"

	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/analytics"
	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/backtest"
	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/clients/yahoo"
	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/database"
	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/results"
	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/services"
	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/universe"
	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/pkg/logger"
)

// csvProvider adapts the static-dataset loader to the run service.
type csvProvider struct {
	path string
	log  zerolog.Logger
}

func (p *csvProvider) LoadSeries(tickers []string, startYear, endYear int) (*universe.ReturnSeries, error) {
	return universe.LoadCSV(p.path, universe.LoadOptions{
		Tickers:   tickers,
		StartYear: startYear,
		EndYear:   endYear,
	}, p.log)
}

func main() {
	var (
		csvPath    = flag.String("csv", "", "static returns dataset (date,ticker,return); empty uses the cache/Yahoo")
		tickerList = flag.String("tickers", "", "comma-separated tickers; empty uses the default universe")
		startYear  = flag.Int("start", 2010, "first year of history")
		endYear    = flag.Int("end", 2024, "last year of history")
		window     = flag.Int("window", 36, "estimation window in months")
		step       = flag.Int("step", 1, "months between rebalances")
		riskFree   = flag.Float64("rf", 0.042, "annual risk-free rate")
		longOnly   = flag.Bool("long-only", false, "forbid short positions")
		minWeight  = flag.Float64("min-weight", -1, "per-asset lower bound")
		maxWeight  = flag.Float64("max-weight", 1, "per-asset upper bound")
		dataDir    = flag.String("data-dir", "./data", "directory holding the cached databases")
		save       = flag.Bool("save", false, "archive the run in results.db")
		logLevel   = flag.String("log-level", "warn", "zerolog level")
	)
	flag.Parse()

	log := logger.New(logger.Config{Level: *logLevel, Pretty: true})

	tickers := universe.DefaultTickers()
	if *tickerList != "" {
		tickers = nil
		for _, t := range strings.Split(*tickerList, ",") {
			if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
				tickers = append(tickers, t)
			}
		}
	}

	cfg := backtest.DefaultConfig(tickers)
	cfg.StartYear = *startYear
	cfg.EndYear = *endYear
	cfg.EstimationWindow = *window
	cfg.StepSize = *step
	cfg.RiskFreeRate = *riskFree
	cfg.Coverage.MinObservations = *window
	cfg.Constraints.MinWeight = *minWeight
	cfg.Constraints.MaxWeight = *maxWeight
	if *longOnly {
		cfg.Constraints.LongOnly = true
		cfg.Constraints.AllowShort = false
	}

	var provider services.SeriesProvider
	var archive services.RunArchive

	if *csvPath != "" {
		provider = &csvProvider{path: *csvPath, log: log}
	} else {
		returnsDB, err := database.New(database.Config{
			Path: *dataDir + "/returns.db",
			Name: "returns",
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open returns database")
		}
		defer returnsDB.Close()

		repo, err := universe.NewRepository(returnsDB.Conn(), log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize returns repository")
		}

		if n, err := repo.Count(); err == nil && n == 0 {
			fmt.Fprintln(os.Stderr, "return cache is empty, downloading history from Yahoo Finance...")
			series, err := yahoo.NewClient(log).FetchUniverse(tickers, *startYear, *endYear)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to download return history")
			}
			if err := repo.SaveSeries(series); err != nil {
				log.Fatal().Err(err).Msg("Failed to cache return history")
			}
		}
		provider = repo
	}

	if *save {
		resultsDB, err := database.New(database.Config{
			Path:    *dataDir + "/results.db",
			Profile: database.ProfileResults,
			Name:    "results",
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open results database")
		}
		defer resultsDB.Close()

		runRepo, err := results.NewRunRepository(resultsDB.Conn(), log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize run archive")
		}
		archive = runRepo
	}

	svc := services.NewRunService(provider, archive, log)
	output, err := svc.Execute(cfg, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Run failed")
	}

	printComparison(output)

	if output.RunID != "" {
		fmt.Printf("\narchived as run %s\n", output.RunID)
	}
}

func printComparison(output *services.RunOutput) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "metric\tsample\tledoit-wolf")
	fmt.Fprintln(w, "------\t------\t-----------")

	byMethod := make(map[string]analytics.Metrics, len(output.Metrics))
	for _, m := range output.Metrics {
		byMethod[m.Method] = m
	}
	s, lw := byMethod["sample"], byMethod["lw"]

	row := func(name, format string, sv, lv float64) {
		fmt.Fprintf(w, "%s\t"+format+"\t"+format+"\n", name, sv, lv)
	}
	row("total return", "%.2f%%", s.TotalReturn*100, lw.TotalReturn*100)
	row("annualized return", "%.2f%%", s.AnnualizedReturn*100, lw.AnnualizedReturn*100)
	row("annualized volatility", "%.2f%%", s.AnnualizedVolatility*100, lw.AnnualizedVolatility*100)
	row("sharpe ratio", "%.3f", s.SharpeRatio, lw.SharpeRatio)
	row("sortino ratio", "%.3f", s.SortinoRatio, lw.SortinoRatio)
	row("max drawdown", "%.2f%%", s.MaxDrawdown*100, lw.MaxDrawdown*100)
	row("win rate", "%.1f%%", s.WinRate*100, lw.WinRate*100)
	row("best month", "%.2f%%", s.BestMonth*100, lw.BestMonth*100)
	row("worst month", "%.2f%%", s.WorstMonth*100, lw.WorstMonth*100)
	row("skewness", "%.3f", s.Skewness, lw.Skewness)
	row("kurtosis", "%.3f", s.Kurtosis, lw.Kurtosis)
	row("average turnover", "%.3f", s.AverageTurnover, lw.AverageTurnover)
	row("degraded periods", "%.1f%%", s.DegradedRate*100, lw.DegradedRate*100)
	fmt.Fprintf(w, "avg shrinkage\t-\t%.3f\n", lw.AverageShrinkage)
	fmt.Fprintf(w, "periods\t%d\t%d\n", s.Periods, lw.Periods)
	w.Flush()

	for _, warning := range output.Result.Warnings {
		fmt.Printf("\nwarning: %s\n", warning)
	}
}
