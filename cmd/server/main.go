// Command tt-server serves the task, query and user HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/tasktime/internal/config"
	"github.com/and161185/tasktime/internal/limiter"
	"github.com/and161185/tasktime/internal/logging"
	"github.com/and161185/tasktime/internal/migrate"
	"github.com/and161185/tasktime/internal/repository/postgres"
	"github.com/and161185/tasktime/internal/server/httpapi"
	"github.com/and161185/tasktime/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const shutdownTimeout = 5 * time.Second

// main loads configuration, runs migrations, and serves the API until SIGINT/SIGTERM.
func main() {
	cfgFile := flag.String("config", "", "config file (default: search ~/.config/tasktime and .)")
	flag.Parse()

	cfg, err := config.NewLoader(*cfgFile).Load()
	if err == nil {
		err = cfg.ValidateServer()
	}
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Server.Addr),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.Server.DSN, logger); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	db, err := postgres.New(ctx, cfg.Server.DSN)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer db.Close()

	loc, _ := cfg.Server.Location()

	// Repositories
	userRepo := postgres.NewUserRepo(db)
	taskRepo := postgres.NewTaskRepo(db)
	queryRepo := postgres.NewQueryRepo(db)
	statsRepo := postgres.NewStatsRepo(db)

	lim := limiter.NewPG(db.Pool, cfg.Server.LoginWindow, cfg.Server.LoginMaxFails, cfg.Server.LoginBlock)

	// Services
	authSvc := service.NewAuthService(userRepo, []byte(cfg.Server.JWTKey), cfg.Server.AccessTTL, lim)
	taskSvc := service.NewTaskService(taskRepo)
	querySvc := service.NewQueryService(queryRepo)
	userSvc := service.NewUserService(userRepo, statsRepo, loc)

	if s := cfg.Server; s.BootstrapEmail != "" {
		created, err := authSvc.EnsureSuperior(ctx, s.BootstrapName, s.BootstrapEmail, s.BootstrapPassword)
		if err != nil {
			logger.Fatal("bootstrap superior", zap.Error(err))
		}
		if created {
			logger.Info("bootstrap superior created", zap.String("email", s.BootstrapEmail))
		}
	}

	api := httpapi.New(authSvc, taskSvc, querySvc, userSvc, db, logger)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(logger),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Server.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			logger.Warn("graceful shutdown failed", zap.Error(err))
			_ = srv.Close()
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}
