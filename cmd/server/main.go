package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gruppetto/internal/api"
	"gruppetto/internal/config"
	"gruppetto/internal/db"
	"gruppetto/internal/jobs"
	"gruppetto/internal/logging"
	"gruppetto/internal/metrics"
	"gruppetto/internal/routes"
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	if err := logging.Init(cfg.AppEnv); err != nil {
		log.Fatalf("❌ Failed to initialize logger: %v", err)
	}
	defer logging.Close()

	logging.Info("Gruppetto starting up",
		"environment", cfg.AppEnv,
		"timestamp", time.Now().Format(time.RFC3339),
	)

	dsn := cfg.PostgresDSN()

	// Connect to DB with sqlx
	if err := db.InitPostgres(dsn); err != nil {
		logging.Error("Failed to connect to Postgres (sqlx)", "error", err.Error())
		log.Fatalf("❌ Failed to connect to Postgres (sqlx): %v", err)
	}
	logging.Info("Connected to Postgres (sqlx)")

	// Connect to DB with GORM
	if _, err := db.InitPostgresORM(dsn); err != nil {
		logging.Error("Failed to connect to Postgres (GORM)", "error", err.Error())
		log.Fatalf("❌ Failed to connect to Postgres (GORM): %v", err)
	}
	logging.Info("Connected to Postgres (GORM)")

	if err := db.Migrate(db.PgDB); err != nil {
		logging.Error("Failed to run migrations", "error", err.Error())
		log.Fatalf("❌ Failed to run migrations: %v", err)
	}
	logging.Info("Schema migrated")

	metricsReg := metrics.NewMetricsRegistry()

	deps, err := api.InitDependencies(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize dependencies: %v", err)
	}

	discovery := jobs.NewDiscoveryJob(
		deps.Repo.Accounts,
		deps.Repo.Sessions,
		deps.Repo.Batches,
		deps.Repo.Results,
		deps.Services.Creds,
		deps.Services.Budget,
		deps.Services.Provider,
		deps.Repo.Logs,
		cfg.PageSize,
		cfg.MaxPagesPerBatch,
	)
	enrichment := jobs.NewEnrichmentJob(
		deps.Repo.Accounts,
		deps.Repo.Sessions,
		deps.Repo.Batches,
		deps.Repo.Results,
		deps.Services.Creds,
		deps.Services.Budget,
		deps.Services.Provider,
		deps.Repo.Logs,
		cfg.EnrichmentCapacity,
	)
	monitor := jobs.NewHealthMonitor(
		deps.Repo.Accounts,
		deps.Repo.Sessions,
		deps.Repo.Batches,
		deps.Repo.Results,
		deps.Repo.Logs,
		cfg.EnrichmentCapacity,
	)

	scheduler := jobs.NewScheduler(
		deps.Repo.Batches,
		discovery,
		enrichment,
		monitor,
		deps.Repo.Logs,
		deps.Services.Budget,
		metricsReg,
		cfg.TickInterval,
		cfg.InvocationBudget,
	)
	go scheduler.RunScheduled(context.Background())
	logging.Info("Sync scheduler started", "interval", cfg.TickInterval.String())

	upSince := time.Now()
	router := routes.RegisterRoutes(deps, metricsReg, upSince)

	// Setup metrics endpoint outside of Chi router
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", router)
	logging.Info("Prometheus metrics endpoint registered at /metrics")

	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	logging.Info("Server starting",
		"port", cfg.HTTPPort,
		"environment", cfg.AppEnv,
	)

	log.Printf("Starting server on %s", addr)
	log.Fatal(http.ListenAndServe(addr, mux))
}
