// AngelaMos | 2026
// database.go

package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/templates/go-auth-api/internal/config"
)

// Postgres is the sqlx handle behind the postgres user store.
type Postgres struct {
	DB *sqlx.DB
}

func NewPostgres(ctx context.Context, cfg config.DatabaseConfig) (*Postgres, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(withJitter(cfg.ConnMaxLifetime))
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	p := &Postgres{DB: db}
	if err := p.Ping(ctx); err != nil {
		_ = db.Close() //nolint:errcheck // cleanup on connection failure
		return nil, err
	}
	return p, nil
}

func (p *Postgres) Close() error {
	if p.DB == nil {
		return nil
	}
	return p.DB.Close()
}

func (p *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := p.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

func (p *Postgres) Stats() sql.DBStats {
	return p.DB.Stats()
}

// InTx commits when fn returns nil and rolls back on error or panic.
func InTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback() //nolint:errcheck // already panicking
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// PostgresErr maps driver errors onto the core sentinels, mirroring MongoErr.
func PostgresErr(op string, err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.As(err, &pgErr) && pgErr.Code == "23505":
		return fmt.Errorf("%s: %w", op, ErrDuplicateKey)
	case IsPostgresTransient(err):
		// Nothing was sent, or the server rolled back, unless the statement
		// timed out while in flight.
		return transientErr(op, err, !pgconn.SafeToRetry(err) && pgconn.Timeout(err))
	}

	return fmt.Errorf("%s: %w", op, err)
}

// IsPostgresTransient covers serialization failures, deadlocks and errors the
// driver reports as safe to retry because nothing reached the server.
func IsPostgresTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return pgconn.SafeToRetry(err) || pgconn.Timeout(err)
}

func transientErr(op string, err error, outcomeUnknown bool) error {
	if outcomeUnknown {
		return fmt.Errorf("%s: %w: %w: %w", op, ErrTransient, ErrOutcomeUnknown, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrTransient, err)
}

// withJitter spreads connection recycling so the pool does not reconnect all
// at once.
func withJitter(base time.Duration) time.Duration {
	spread := int64(base / 7)
	if spread <= 0 {
		return base
	}
	//nolint:gosec // G404: pool jitter needs no crypto randomness
	return base + time.Duration(rand.Int64N(spread))
}
