package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/wonny/arbfilter/internal/api"
	"github.com/wonny/arbfilter/internal/api/handlers"
	"github.com/wonny/arbfilter/internal/marketdata"
	"github.com/wonny/arbfilter/internal/scheduler"
	"github.com/wonny/arbfilter/internal/scheduler/jobs"
	"github.com/wonny/arbfilter/internal/service"
	"github.com/wonny/arbfilter/internal/store"
	"github.com/wonny/arbfilter/internal/units"
	"github.com/wonny/arbfilter/pkg/config"
	"github.com/wonny/arbfilter/pkg/database"
	"github.com/wonny/arbfilter/pkg/httputil"
	"github.com/wonny/arbfilter/pkg/logger"
	"github.com/wonny/arbfilter/pkg/redis"
)

func newServeCmd(_ *globalFlags) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "API 서버 시작",
		Long: `Starts the HTTP API server.

Persistence (DATABASE_URL), the Redis run cache (REDIS_ENABLED) and the
scheduled re-filter job (SCHEDULER_ENABLED) are enabled from the
environment; without them the server keeps runs in memory only.

Endpoints:
  GET  /health                    - Health check
  GET  /metrics                   - Prometheus metrics
  GET  /ws/runs                   - Run event stream (websocket)
  POST /api/runs                  - Submit quotes and run the filter
  GET  /api/runs                  - Recent runs
  GET  /api/runs/{id}             - Run summary
  GET  /api/runs/{id}/quotes      - Filtered quotes
  GET  /api/runs/{id}/bounds      - No-arbitrage bounds
  GET  /api/runs/{id}/errors      - Filter error statistics

Example:
  go run ./cmd/arbfilter serve
  go run ./cmd/arbfilter serve --port 8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, port)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "API 서버 포트 (default $PORT)")
	return cmd
}

func runServe(cmd *cobra.Command, port string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "=== arbfilter API Server ===")

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port != "" {
		cfg.Port = port
	}

	// 2. Initialize logger
	log := logger.New(cfg)
	log.WithFields(map[string]interface{}{
		"port": cfg.Port,
		"env":  cfg.Env,
	}).Info("Initializing API server")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svcOpts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(service.NewMetrics(reg)),
		service.WithMaxRuns(cfg.API.MaxRuns),
	}
	checks := map[string]handlers.Check{}

	// 4. Database (optional)
	var repo *store.Repository
	db, err := database.New(ctx, cfg.Database)
	switch {
	case errors.Is(err, database.ErrDisabled):
		log.Warn("DATABASE_URL not set, runs are kept in memory only")
	case err != nil:
		return fmt.Errorf("connect to database: %w", err)
	default:
		defer db.Close()
		repo = store.NewRepository(db.Pool)
		if err := repo.Migrate(ctx); err != nil {
			return err
		}
		svcOpts = append(svcOpts, service.WithStore(repo))
		checks["database"] = db.Ping
		log.Info("Connected to database")
	}

	// 5. Redis (optional)
	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer rdb.Close()

	var limiter *redis.RateLimiter
	if rdb.Enabled() {
		svcOpts = append(svcOpts, service.WithCache(redis.NewCache(rdb, "arbfilter", cfg.Redis.TTL)))
		limiter = redis.NewRateLimiter(rdb, "arbfilter")
		checks["redis"] = rdb.Ping
		log.Info("Connected to redis")
	}

	// 6. Service and handlers
	svc := service.New(svcOpts...)

	router := api.NewRouter(api.Deps{
		Runs:          handlers.NewRunHandler(svc, cfg.Filter, log),
		Stream:        handlers.NewStreamHandler(svc, log),
		Health:        handlers.NewHealthHandler("arbfilter", checks),
		Registry:      reg,
		SubmitLimiter: limiter,
		API:           cfg.API,
		Logger:        log,
	})
	server := api.New(cfg, log, router)

	// 7. Scheduler
	sched, err := newScheduler(cfg, svc, repo, reg, log)
	if err != nil {
		return err
	}
	if sched != nil {
		sched.Start()
		defer sched.Stop()
	}

	// 8. Start server with graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	log.Info("API server started successfully")
	fmt.Fprintf(out, "\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}

// newScheduler registers the periodic jobs. Returns nil when nothing is scheduled.
func newScheduler(cfg *config.Config, svc *service.Service, repo *store.Repository, reg prometheus.Registerer, log *logger.Logger) (*scheduler.Scheduler, error) {
	sc := cfg.Scheduler
	if !sc.Enabled && repo == nil {
		return nil, nil
	}

	sched := scheduler.New(log, scheduler.WithRegisterer(reg))

	if sc.Enabled {
		pu, err := units.ParsePriceUnit(sc.InputPriceUnit)
		if err != nil {
			return nil, fmt.Errorf("SCHEDULER_PRICE_UNIT: %w", err)
		}
		su, err := units.ParseStrikeUnit(sc.InputStrikeUnit)
		if err != nil {
			return nil, fmt.Errorf("SCHEDULER_STRIKE_UNIT: %w", err)
		}
		job := jobs.NewRefilterJob(jobs.RefilterConfig{
			Name:       "refilter",
			Schedule:   sc.Spec,
			InputPath:  sc.InputPath,
			ConfigPath: sc.ConfigPath,
			Units:      marketdata.Units{Price: pu, Strike: su},
		}, svc, httputil.New(log), log)
		if err := sched.AddJob(job); err != nil {
			return nil, err
		}
	}

	if repo != nil {
		if err := sched.AddJob(jobs.NewPruneJob(repo, sc.Retention, sc.PruneSpec, log)); err != nil {
			return nil, err
		}
	}

	return sched, nil
}
