package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"

	"github.com/procrastinator/procrastinator/examples/handlers"
	"github.com/procrastinator/procrastinator/internal/api"
	"github.com/procrastinator/procrastinator/internal/config"
	"github.com/procrastinator/procrastinator/internal/logging"
	"github.com/procrastinator/procrastinator/internal/metrics"
	"github.com/procrastinator/procrastinator/internal/pidfile"
	"github.com/procrastinator/procrastinator/internal/queue"
	"github.com/procrastinator/procrastinator/internal/store"
	"github.com/procrastinator/procrastinator/internal/store/memstore"
	"github.com/procrastinator/procrastinator/internal/store/postgres"
	"github.com/procrastinator/procrastinator/internal/store/redisstore"
	"github.com/procrastinator/procrastinator/internal/store/sqlite"
	"github.com/procrastinator/procrastinator/internal/worker"
)

func newStartCmd(pidFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(*pidFile)
		},
	}
}

func runStart(pidFileOverride string) error {
	_ = godotenv.Load()

	var env config.Env
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	if pidFileOverride != "" {
		env.PIDFile = pidFileOverride
	}

	logger := logging.New(logging.Options{FilePath: env.LogFile, Level: slog.LevelInfo})

	st, closeStore, err := openStore(env)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore()

	registry := config.NewRegistry(st, logger)
	if _, err := registry.RegisterQueue("send_email", handlers.NewSendEmailHandler); err != nil {
		return err
	}
	if _, err := registry.RegisterQueue("run_query", handlers.NewRunQueryHandler, queue.WithMaxAttempts(3)); err != nil {
		return err
	}

	metricsReg := metrics.NewRegistry(prometheus.DefaultRegisterer)

	mgr := worker.NewManager(registry.Queues(), st, logger, registry.Container, registry.Scheduler, metricsReg)

	if err := pidfile.Write(env.PIDFile, os.Getpid()); err != nil {
		return fmt.Errorf("write pidfile: %w", err)
	}
	defer pidfile.Remove(env.PIDFile)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mgr.Start(ctx, logger)

	srv := &http.Server{Addr: env.AdminBindAddr, Handler: adminRouter(mgr, registry.Queues(), st, logger)}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("admin http server failed", "error", err)
		}
	}()

	logger.Info("procrastinator daemon started", "pid", os.Getpid(), "admin_bind_addr", env.AdminBindAddr)
	<-ctx.Done()
	logger.Info("shutdown signal received, draining workers")

	_ = srv.Shutdown(context.Background())
	if err := mgr.Shutdown(); err != nil {
		logger.Error("worker shutdown reported errors", "error", err)
	}
	logger.Info("procrastinator daemon stopped")
	return nil
}

func adminRouter(mgr *worker.QueueManager, queues []*queue.Queue, st store.Store, logger *slog.Logger) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	api.NewHandler(mgr, queues, st, logger).RegisterRoutes(r)
	return r
}

// openStore opens the backend named by env.StoreBackend, applying Postgres
// migrations first when that backend is selected.
func openStore(env config.Env) (store.Store, func(), error) {
	switch env.StoreBackend {
	case "postgres":
		pool, err := pgxpool.New(context.Background(), env.Database.ToDbConnectionUri())
		if err != nil {
			return nil, nil, err
		}
		if err := runPostgresMigrations(env); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return postgres.NewStore(pool), pool.Close, nil

	case "sqlite":
		s, err := sqlite.Open(env.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil

	case "redis":
		client := redis.NewClient(&redis.Options{Addr: env.RedisAddr})
		return redisstore.New(client), func() { client.Close() }, nil

	case "memory":
		return memstore.New(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown STORE_BACKEND %q", env.StoreBackend)
	}
}

func runPostgresMigrations(env config.Env) error {
	d, err := iofs.New(postgres.Migrations, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", d, env.Database.ToMigrationUri())
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
