package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/clients/yahoo"
	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/config"
	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/database"
	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/results"
	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/scheduler"
	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/server"
	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/services"
	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/universe"
	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// No logger yet; bare exit with the default writer.
		logger.New(logger.Config{Level: "error", Pretty: true}).
			Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting portfolio optimizer service")

	// returns.db - cached monthly return history
	returnsDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/returns.db",
		Profile: database.ProfileStandard,
		Name:    "returns",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize returns database")
	}
	defer returnsDB.Close()

	// results.db - append-only run archive
	resultsDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/results.db",
		Profile: database.ProfileResults,
		Name:    "results",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize results database")
	}
	defer resultsDB.Close()

	returnsRepo, err := universe.NewRepository(returnsDB.Conn(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize returns repository")
	}
	runRepo, err := results.NewRunRepository(resultsDB.Conn(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize run archive")
	}

	runService := services.NewRunService(returnsRepo, runRepo, log)

	// A static dataset seeds the cache directly and replaces the Yahoo sync.
	if cfg.ReturnsCSV != "" {
		series, err := universe.LoadCSV(cfg.ReturnsCSV, universe.LoadOptions{
			StartYear: cfg.StartYear,
			EndYear:   cfg.EndYear,
		}, log)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.ReturnsCSV).Msg("Failed to load returns dataset")
		}
		if err := returnsRepo.SaveSeries(series); err != nil {
			log.Fatal().Err(err).Msg("Failed to cache returns dataset")
		}
	}

	// Background sync keeps the cached history current; the first sync runs
	// immediately when the cache is empty.
	sched := scheduler.New(log)
	if cfg.SyncEnabled && cfg.ReturnsCSV == "" {
		yahooClient := yahoo.NewClient(log)
		syncJob := scheduler.NewReturnsSyncJob(yahooClient, returnsRepo, universe.DefaultTickers(), cfg.StartYear, log)

		if err := sched.AddJob(cfg.SyncSchedule, syncJob); err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.SyncSchedule).Msg("Failed to register sync job")
		}

		if n, err := returnsRepo.Count(); err == nil && n == 0 {
			log.Info().Msg("Return cache is empty, running initial sync")
			go func() {
				if err := sched.RunNow(syncJob); err != nil {
					log.Error().Err(err).Msg("Initial returns sync failed")
				}
			}()
		}
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Log:        log,
		Port:       cfg.Port,
		DevMode:    cfg.DevMode,
		RunService: runService,
		RunRepo:    runRepo,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("Server failed")
		}
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}

	log.Info().Msg("Stopped")
}
