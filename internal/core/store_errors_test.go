// AngelaMos | 2026
// store_errors_test.go

package core

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestPostgresErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", sql.ErrNoRows, ErrNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, ErrDuplicateKey},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, ErrTransient},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, ErrTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := PostgresErr("find user", tt.err)
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "find user")
		})
	}

	assert.NoError(t, PostgresErr("noop", nil))

	plain := PostgresErr("insert", &pgconn.PgError{Code: "23502"})
	assert.False(t, errors.Is(plain, ErrTransient))
	assert.False(t, errors.Is(plain, ErrDuplicateKey))
}

func TestStoreErr_TimeoutOutcomeUnknown(t *testing.T) {
	pgTimeout := PostgresErr("consume reset token", context.DeadlineExceeded)
	assert.ErrorIs(t, pgTimeout, ErrTransient)
	assert.ErrorIs(t, pgTimeout, ErrOutcomeUnknown)

	rolledBack := PostgresErr("consume reset token", &pgconn.PgError{Code: "40001"})
	assert.ErrorIs(t, rolledBack, ErrTransient)
	assert.NotErrorIs(t, rolledBack, ErrOutcomeUnknown)

	mongoTimeout := MongoErr("consume reset token", context.DeadlineExceeded)
	assert.ErrorIs(t, mongoTimeout, ErrTransient)
	assert.ErrorIs(t, mongoTimeout, ErrOutcomeUnknown)

	labeled := mongo.CommandError{Code: 91, Labels: []string{"RetryableWriteError"}}
	assert.ErrorIs(t, MongoErr("push token", labeled), ErrTransient)
	assert.NotErrorIs(t, MongoErr("push token", labeled), ErrOutcomeUnknown)
}

func TestMongoErr(t *testing.T) {
	dup := mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000}}}
	assert.ErrorIs(t, MongoErr("insert user", dup), ErrDuplicateKey)
	assert.ErrorIs(t, MongoErr("find user", mongo.ErrNoDocuments), ErrNotFound)

	retryable := mongo.CommandError{Code: 112, Labels: []string{"TransientTransactionError"}}
	assert.ErrorIs(t, MongoErr("push token", retryable), ErrTransient)

	assert.NoError(t, MongoErr("noop", nil))
	assert.False(t, IsMongoTransient(nil))
	assert.False(t, IsMongoTransient(errors.New("bad query")))
}

func TestWithJitter(t *testing.T) {
	base := 7 * time.Minute
	for range 50 {
		got := withJitter(base)
		assert.GreaterOrEqual(t, got, base)
		assert.Less(t, got, base+time.Minute)
	}
	assert.Equal(t, time.Duration(0), withJitter(0))
}
