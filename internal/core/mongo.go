// AngelaMos | 2026
// mongo.go

package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/carterperez-dev/templates/go-auth-api/internal/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second
)

type Mongo struct {
	Client *mongo.Client
	DB     *mongo.Database
}

func NewMongo(ctx context.Context, cfg config.DatabaseConfig) (*Mongo, error) {
	opts := options.Client().
		ApplyURI(cfg.URL).
		SetMaxPoolSize(uint64(max(cfg.MaxOpenConns, 1))).
		SetMinPoolSize(uint64(max(cfg.MaxIdleConns, 0))).
		SetMaxConnIdleTime(cfg.ConnMaxIdleTime).
		SetRetryWrites(true)

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background()) //nolint:errcheck // cleanup on connection failure
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &Mongo{
		Client: client,
		DB:     client.Database(cfg.Name),
	}, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	if m.Client != nil {
		return m.Client.Disconnect(ctx)
	}
	return nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := m.Client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("ping mongo: %w", err)
	}

	return nil
}

// MongoErr maps driver errors onto the core sentinels. ErrNoDocuments becomes
// ErrNotFound, duplicate keys become ErrDuplicateKey and anything the server
// labels retryable is tagged ErrTransient.
func MongoErr(op string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s: %w", op, ErrDuplicateKey)
	case IsMongoTransient(err):
		return transientErr(op, err, mongoOutcomeUnknown(err))
	}

	return fmt.Errorf("%s: %w", op, err)
}

// mongoOutcomeUnknown reports timeouts and network failures the server has not
// labeled as safe to retry. The write may have been applied before the reply
// was lost.
func mongoOutcomeUnknown(err error) bool {
	if !mongo.IsTimeout(err) && !mongo.IsNetworkError(err) {
		return false
	}
	var labeled mongo.LabeledError
	return !errors.As(err, &labeled) || !labeled.HasErrorLabel("RetryableWriteError")
}

func IsMongoTransient(err error) bool {
	if err == nil {
		return false
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return true
	}

	var labeled mongo.LabeledError
	if errors.As(err, &labeled) {
		return labeled.HasErrorLabel("RetryableWriteError") ||
			labeled.HasErrorLabel("TransientTransactionError") ||
			labeled.HasErrorLabel("UnknownTransactionCommitResult")
	}

	return false
}
