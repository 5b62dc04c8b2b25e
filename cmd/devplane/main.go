package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	devhttp "github.com/Strob0t/DevPlane/internal/adapter/http"
	"github.com/Strob0t/DevPlane/internal/adapter/memory"
	devnats "github.com/Strob0t/DevPlane/internal/adapter/nats"
	"github.com/Strob0t/DevPlane/internal/adapter/natskv"
	devotel "github.com/Strob0t/DevPlane/internal/adapter/otel"
	"github.com/Strob0t/DevPlane/internal/adapter/postgres"
	"github.com/Strob0t/DevPlane/internal/adapter/ristretto"
	"github.com/Strob0t/DevPlane/internal/adapter/script"
	"github.com/Strob0t/DevPlane/internal/adapter/sse"
	"github.com/Strob0t/DevPlane/internal/adapter/tiered"
	"github.com/Strob0t/DevPlane/internal/adapter/ws"
	"github.com/Strob0t/DevPlane/internal/config"
	domainrun "github.com/Strob0t/DevPlane/internal/domain/run"
	"github.com/Strob0t/DevPlane/internal/logger"
	"github.com/Strob0t/DevPlane/internal/middleware"
	"github.com/Strob0t/DevPlane/internal/port/cache"
	"github.com/Strob0t/DevPlane/internal/port/eventlog"
	"github.com/Strob0t/DevPlane/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	flags, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		return err
	}
	cfg, cfgPath, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logCloser.Close()

	slog.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Driver,
		"log_level", cfg.Logging.Level,
	)

	ctx := context.Background()

	// --- Infrastructure ---

	var (
		eventLog eventlog.Log
		ready    func() error
	)
	switch cfg.Storage.Driver {
	case "postgres":
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()
		eventLog = postgres.NewEventLog(pool)
		ready = func() error { return pool.Ping(context.Background()) }
		slog.Info("postgres connected")
	default:
		eventLog = memory.NewEventLog()
	}

	var opts []service.RuntimeOption

	var queue *devnats.Queue
	if cfg.NATS.Enabled {
		queue, err = devnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = queue.Close() }()
		opts = append(opts, service.WithPublisher(queue))
	}

	if cfg.OTel.Endpoint != "" {
		shutdown, err := devotel.Setup(ctx, cfg.Logging.Service, cfg.OTel.Endpoint)
		if err != nil {
			return fmt.Errorf("otel: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
		metrics, err := devotel.NewMetrics()
		if err != nil {
			return fmt.Errorf("otel metrics: %w", err)
		}
		opts = append(opts, service.WithMetrics(metrics))
	}

	// File content cache: ristretto in-process, with a JetStream KV second
	// tier when the broker is around.
	var fileCache cache.Cache
	if cfg.Cache.MaxSizeMB > 0 {
		c, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
		if err != nil {
			return fmt.Errorf("cache: %w", err)
		}
		defer c.Close()
		fileCache = c

		if queue != nil {
			kv, err := queue.KeyValue(ctx, "devplane-files", cfg.Cache.TTL)
			if err != nil {
				return fmt.Errorf("cache kv: %w", err)
			}
			fileCache = tiered.New(c, natskv.New(kv), cfg.Cache.TTL)
		}
	}

	// --- Services ---

	hub := ws.NewHub()
	opts = append(opts, service.WithBroadcaster(hub))

	projects := service.NewProjectService(cfg.Workspace.Root)
	sessions := service.NewSessionService(projects)

	var runtime *service.RuntimeService
	usage := func(ctx context.Context, runID string, u domainrun.Usage) {
		if err := runtime.AddUsage(ctx, runID, u); err != nil {
			slog.WarnContext(ctx, "usage report dropped", "run_id", runID, "error", err)
		}
	}
	exec := script.New(sessions, usage, cfg.Runs.StepDelay)
	runtime = service.NewRuntimeService(eventLog, exec, cfg.Runs.MaxConcurrent, opts...)

	handlers := devhttp.NewHandlers()
	handlers.Projects = projects
	handlers.Sessions = sessions
	handlers.Runtime = runtime
	handlers.Files = service.NewFilesService(projects, service.NewETagManager(), fileCache, cfg.Cache.TTL)
	handlers.Diffs = service.NewDiffService(projects)
	handlers.Deployments = service.NewDeployService(projects, runtime)
	handlers.Workflows = service.NewWorkflowService(projects, runtime)
	handlers.Stream = sse.NewHandler(eventLog, cfg.Stream.KeepAlive)
	handlers.Hub = hub
	handlers.Log = eventLog
	handlers.Ready = ready

	// --- HTTP ---

	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	stopCleanup := limiter.StartCleanup(cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)
	defer stopCleanup()

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(devhttp.SecurityHeaders)
	r.Use(devhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(devhttp.Logger)
	r.Use(limiter.Handler)
	r.Use(chimw.Recoverer)
	if cfg.OTel.Endpoint != "" {
		r.Use(devotel.HTTPMiddleware(cfg.Logging.Service))
	}

	devhttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port

	// WriteTimeout stays zero: SSE responses are open-ended.
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Stop accepting runs and let in-flight executors finish before the
	// listener goes away, so their final events still reach open streams.
	drainCtx, cancelDrain := context.WithTimeout(shutdownCtx, 10*time.Second)
	defer cancelDrain()
	runtime.Drain(drainCtx)

	return srv.Shutdown(shutdownCtx)
}
