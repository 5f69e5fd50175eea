// AngelaMos | 2026
// store.go

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/carterperez-dev/templates/go-auth-api/internal/config"
	"github.com/carterperez-dev/templates/go-auth-api/internal/core"
	"github.com/carterperez-dev/templates/go-auth-api/internal/user"
)

// store is the opened user store plus the hooks health and admin need.
type store struct {
	users   user.Repository
	dbStats func() sql.DBStats
	close   func(ctx context.Context) error
}

func (s *store) Ping(ctx context.Context) error {
	return s.users.Ping(ctx)
}

func openStore(
	ctx context.Context,
	cfg config.DatabaseConfig,
	logger *slog.Logger,
) (*store, error) {
	switch cfg.Driver {
	case config.DriverMongo:
		m, err := core.NewMongo(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := user.EnsureMongoIndexes(ctx, m.DB); err != nil {
			_ = m.Close(context.Background()) //nolint:errcheck // cleanup on setup failure
			return nil, fmt.Errorf("ensure indexes: %w", err)
		}
		logger.Info("mongo connected",
			"database", cfg.Name,
			"max_pool_size", cfg.MaxOpenConns,
		)
		return &store{
			users: user.NewMongoRepository(m.DB),
			close: m.Close,
		}, nil

	case config.DriverPostgres:
		db, err := core.NewPostgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := user.EnsurePostgresSchema(ctx, db.DB); err != nil {
			_ = db.Close() //nolint:errcheck // cleanup on setup failure
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		logger.Info("postgres connected",
			"max_open_conns", cfg.MaxOpenConns,
			"max_idle_conns", cfg.MaxIdleConns,
		)
		return &store{
			users:   user.NewPostgresRepository(db.DB),
			dbStats: db.Stats,
			close: func(context.Context) error {
				return db.Close()
			},
		}, nil

	case config.DriverMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		return &store{
			users: user.NewMemoryRepository(),
			close: func(context.Context) error { return nil },
		}, nil
	}

	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}
