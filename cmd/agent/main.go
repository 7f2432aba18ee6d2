// Command tt-agent runs the per-user timer and serves it to the tt CLI over local gRPC.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/and161185/tasktime/internal/agent"
	"github.com/and161185/tasktime/internal/apiclient"
	"github.com/and161185/tasktime/internal/config"
	"github.com/and161185/tasktime/internal/errs"
	"github.com/and161185/tasktime/internal/kvstore"
	"github.com/and161185/tasktime/internal/logging"
	"github.com/and161185/tasktime/internal/migrate"
	"github.com/and161185/tasktime/internal/session"
	"github.com/and161185/tasktime/internal/timer"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const shutdownTimeout = 5 * time.Second

// main loads configuration, restores the logged-in user's timer and serves it until SIGINT/SIGTERM.
func main() {
	cfgFile := flag.String("config", "", "config file (default: search ~/.config/tasktime and .)")
	flag.Parse()

	cfg, err := config.NewLoader(*cfgFile).Load()
	if err == nil {
		err = cfg.ValidateAgent()
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
		zap.String("addr", cfg.Agent.Addr),
		zap.String("store", cfg.Agent.StoreDriver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg.Agent, logger)
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}
	defer closeStore()

	sessions := session.Default()
	sess, sessErr := sessions.Load()
	api, err := apiclient.New(cfg.Client.ServerURL, cfg.Client.Timeout,
		func(context.Context) (string, error) { return sessions.Token() }, logger.Named("api"))
	if err != nil {
		logger.Fatal("api client", zap.Error(err))
	}
	// follow the server of the latest tt login
	api.WithURLSource(func() string {
		if s, err := sessions.Load(); err == nil {
			return s.ServerURL
		}
		return ""
	})

	loc, _ := cfg.Agent.Location()
	hub := agent.NewHub(logger.Named("events"))
	ctrl := timer.NewController(timer.Config{
		BreakWindow:        cfg.Agent.BreakWindow(),
		WorkTarget:         cfg.Agent.WorkTarget,
		BreakReducesTarget: cfg.Agent.BreakReducesTarget,
		AssignTimeout:      cfg.Agent.AssignTimeout,
		Location:           loc,
	}, store, api, hub, logger.Named("timer"))
	defer ctrl.Close()

	switch {
	case sessErr == nil:
		if err := ctrl.LoadForUser(ctx, sess.UserID, ctrl.Today()); err != nil {
			logger.Fatal("load timer state", zap.Int64("user_id", sess.UserID), zap.Error(err))
		}
		logger.Info("timer loaded", zap.Int64("user_id", sess.UserID))
	case errors.Is(sessErr, errs.ErrUnauthorized):
		logger.Info("no session; waiting for login")
	default:
		logger.Warn("read session", zap.Error(sessErr))
	}

	srv, hs := agent.NewGRPCServer(agent.NewServer(ctrl, hub, logger), logger, cfg.Agent.Reflection)
	lis, err := net.Listen("tcp", cfg.Agent.Addr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("listening", zap.String("addr", lis.Addr().String()))
		errCh <- srv.Serve(lis)
	}()
	go func() {
		if err := ctrl.Run(ctx, cfg.Agent.TickInterval); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("ticker: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("agent error", zap.Error(err))
	}

	hs.SetServingStatus(agent.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	done := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		srv.Stop()
	}

	ctrl.Wait()
	if uid := ctrl.UserID(); uid != 0 {
		persistCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := ctrl.PersistForUser(persistCtx, uid); err != nil {
			logger.Error("persist on shutdown", zap.Int64("user_id", uid), zap.Error(err))
		}
		cancel()
	}
	logger.Info("shutdown complete")
}

// openStore opens the configured key-value store and returns its closer.
func openStore(ctx context.Context, cfg config.AgentConfig, log *zap.Logger) (kvstore.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		s, err := kvstore.OpenSQLite(ctx, cfg.StorePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case config.DriverPostgres:
		if err := migrate.Up(ctx, cfg.StoreDSN, log); err != nil {
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		pool, err := pgxpool.New(ctx, cfg.StoreDSN)
		if err != nil {
			return nil, nil, err
		}
		return kvstore.NewPostgres(pool), pool.Close, nil
	case config.DriverMemory:
		log.Warn("memory store: timer state is lost on exit")
		return kvstore.NewMemory(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
