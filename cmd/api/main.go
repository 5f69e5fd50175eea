// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carterperez-dev/templates/go-auth-api/internal/admin"
	"github.com/carterperez-dev/templates/go-auth-api/internal/auth"
	"github.com/carterperez-dev/templates/go-auth-api/internal/config"
	"github.com/carterperez-dev/templates/go-auth-api/internal/core"
	"github.com/carterperez-dev/templates/go-auth-api/internal/health"
	"github.com/carterperez-dev/templates/go-auth-api/internal/mail"
	"github.com/carterperez-dev/templates/go-auth-api/internal/server"
	"github.com/carterperez-dev/templates/go-auth-api/internal/user"
)

const (
	drainDelay = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	genKeys := flag.Bool("genkeys", false, "write a new ES256 key pair to the configured paths and exit")
	flag.Parse()

	if err := run(*configPath, *genKeys); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, genKeys bool) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	if _, err := os.Stat(configPath); err != nil {
		configPath = ""
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	if genKeys {
		if err := auth.GenerateKeyPair(cfg.JWT.PrivateKeyPath, cfg.JWT.PublicKeyPath); err != nil {
			return err
		}
		logger.Info("key pair written",
			"private", cfg.JWT.PrivateKeyPath,
			"public", cfg.JWT.PublicKeyPath,
		)
		return nil
	}

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
		"store", cfg.Database.Driver,
	)

	telemetry, err := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	} else if cfg.Otel.Enabled {
		logger.Info("tracing enabled", "endpoint", cfg.Otel.Endpoint)
	}

	st, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}

	var rdb *core.Redis
	if cfg.Redis.URL != "" {
		rdb, err = core.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("redis unavailable, rate limiting stays in-process", "error", err)
			rdb = nil
		} else {
			logger.Info("redis connected", "pool_size", cfg.Redis.PoolSize)
		}
	}

	mailer, err := mail.New(cfg.Mail)
	if err != nil {
		return fmt.Errorf("mail transport: %w", err)
	}

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("JWT manager initialized",
		"algorithm", jwtManager.Algorithm(),
		"key_id", jwtManager.KeyID(),
		"ttl", jwtManager.TTL(),
	)

	userSvc := user.NewService(st.users)
	userHandler := user.NewHandler(userSvc)

	authSvc := auth.NewService(st.users, jwtManager, mailer, auth.Settings{
		AppName:          cfg.App.Name,
		AppURL:           cfg.App.URL,
		ResetTokenTTL:    cfg.Auth.ResetTokenTTL,
		ResetSubject:     cfg.Mail.ResetSubject,
		RequireDelivery:  cfg.Mail.RequireDelivery,
		ExposeResetToken: cfg.IsTest(),
	}, auth.WithLogger(logger))
	authHandler := auth.NewHandler(authSvc)

	adminCfg := admin.HandlerConfig{
		Driver:    cfg.Database.Driver,
		Users:     userSvc,
		Sessions:  authSvc,
		StorePing: st.Ping,
		DBStats:   st.dbStats,
	}

	deps := []health.Dependency{{Name: "store", Checker: st}}
	if rdb != nil {
		deps = append(deps, health.Dependency{Name: "redis", Checker: rdb, Optional: true})
		adminCfg.RedisPing = rdb.Ping
		adminCfg.RedisStats = rdb.PoolStats
	}
	healthHandler := health.NewHandler(deps...)
	adminHandler := admin.NewHandler(adminCfg)

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	mountRoutes(srv.Router(), cfg, routeDeps{
		logger: logger,
		redis:  rdb,
		health: healthHandler,
		jwt:    jwtManager,
		authz:  authSvc,
		auth:   authHandler,
		user:   userHandler,
		admin:  adminHandler,
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	// Close in reverse order of opening once no request can reach them.
	closers := []struct {
		name  string
		close func(context.Context) error
	}{
		{"telemetry", telemetry.Shutdown},
		{"redis", func(context.Context) error { return rdb.Close() }},
		{"store", st.close},
	}
	for _, c := range closers {
		if err := c.close(shutdownCtx); err != nil {
			logger.Error("close failed", "component", c.name, "error", err)
		}
	}

	logger.Info("application stopped")
	return nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
