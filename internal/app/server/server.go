package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cpis/internal/domain/audit"
	"cpis/internal/domain/auth"
	"cpis/internal/domain/cpis"
	"cpis/internal/domain/performance"
	"cpis/internal/platform/config"
	cryptoutil "cpis/internal/platform/crypto"
	"cpis/internal/platform/db"
	"cpis/internal/platform/jobs"
	"cpis/internal/platform/metrics"
	"cpis/internal/platform/report"
	cpishandler "cpis/internal/transport/http/handlers/cpis"
	"cpis/internal/transport/http/middleware"
	"cpis/migrations"
)

type App struct {
	Config  config.Config
	DB      *pgxpool.Pool
	Router  http.Handler
	Jobs    *jobs.Service
	Metrics *metrics.Collector
}

// Run is the process entrypoint used by cmd/server.
func Run() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Warn("dotenv load failed", "err", err)
	}
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg)
	if err != nil {
		slog.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := app.Serve(ctx); err != nil {
		slog.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func LoadPolicy(path string) (cpis.Policy, error) {
	if path == "" {
		return cpis.DefaultPolicy(), nil
	}
	return cpis.LoadPolicyFile(path)
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	policy, err := LoadPolicy(cfg.CPISPolicyFile)
	if err != nil {
		return nil, fmt.Errorf("load cpis policy: %w", err)
	}
	engine, err := cpis.NewEngine(policy)
	if err != nil {
		return nil, err
	}
	crypto, err := cryptoutil.New(cfg.DataEncryptionKey)
	if err != nil {
		return nil, err
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, migrations.FS); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}
	if cfg.RunSeed {
		tenantID, err := db.SeedTenant(ctx, pool, cfg.SeedTenantName)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
		slog.Info("seed tenant ready", "tenantId", tenantID)
	}

	collector := metrics.New()
	service := performance.NewService(performance.NewStore(pool), engine, cfg.CPISWorkers, cfg.CPISHistoryLimit).WithRecorder(collector)
	jobSvc := jobs.New(pool, cfg.CPISRecomputeInterval, service).WithRecorder(collector).WithRuns(jobs.NewRunStore(pool))
	jobSvc.Start(ctx)

	handler := cpishandler.NewHandler(service, jobSvc, report.NewService(cfg.ScorecardDir, pool, crypto), audit.New(pool), auth.StaticPermissions{})
	router := NewRouter(cfg, collector, pool.Ping, handler)

	slog.Info("cpis policy loaded",
		"source", policySource(cfg.CPISPolicyFile),
		"smoothingK", policy.SmoothingK,
		"confidenceK", policy.ConfidenceK,
	)
	return &App{Config: cfg, DB: pool, Router: router, Jobs: jobSvc, Metrics: collector}, nil
}

func policySource(path string) string {
	if path == "" {
		return "embedded default"
	}
	return path
}

// RouteRegistrar mounts a handler's routes under /api/v1.
type RouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

func NewRouter(cfg config.Config, collector *metrics.Collector, ping func(context.Context) error, registrars ...RouteRegistrar) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Observe(collector))
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if err := jsonEncode(w, collector.Snapshot()); err != nil {
				slog.Warn("metrics encode failed", "err", err)
			}
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
		r.Use(middleware.ExpensiveRateLimit(cfg.RateLimitPerMinute, time.Minute))
		for _, reg := range registrars {
			reg.RegisterRoutes(r)
		}
	})
	return router
}

func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Config.Addr,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("cpis server listening", "addr", a.Config.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	slog.Info("cpis server shutting down")
	return srv.Shutdown(shutdownCtx)
}

// Close waits for the job workers, which stop with the start-up context,
// then releases the pool.
func (a *App) Close() {
	if a.Jobs != nil {
		a.Jobs.Wait()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
