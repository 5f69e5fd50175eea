// AngelaMos | 2026
// postgres_repository.go

package user

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/templates/go-auth-api/internal/core"
)

const userColumns = `id, email, password_hash, role, status, profile, tokens,
	password_reset_token, password_reset_expires, created_at, updated_at`

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id                     UUID PRIMARY KEY,
		email                  TEXT NOT NULL UNIQUE,
		password_hash          TEXT NOT NULL,
		role                   TEXT NOT NULL,
		status                 TEXT NOT NULL,
		profile                JSONB NOT NULL DEFAULT '{}'::jsonb,
		tokens                 JSONB NOT NULL DEFAULT '[]'::jsonb,
		password_reset_token   TEXT,
		password_reset_expires TIMESTAMPTZ,
		created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT reset_fields_paired CHECK (
			(password_reset_token IS NULL) = (password_reset_expires IS NULL)
		)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_users_reset_token
		ON users (password_reset_token)
		WHERE password_reset_token IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_users_tokens
		ON users USING GIN (tokens jsonb_path_ops)`,
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

// EnsurePostgresSchema creates the users table and its indexes in one transaction.
func EnsurePostgresSchema(ctx context.Context, db *sqlx.DB) error {
	return core.InTx(ctx, db, func(tx *sqlx.Tx) error {
		for _, stmt := range schemaStatements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("ensure schema: %w", err)
			}
		}
		return nil
	})
}

func (r *postgresRepository) Create(ctx context.Context, user *User) error {
	if err := user.BeforeSave(); err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Tokens == nil {
		user.Tokens = TokenList{}
	}

	query := `
		INSERT INTO users (id, email, password_hash, role, status, profile, tokens)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	row := r.db.QueryRowxContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Status,
		user.Profile,
		user.Tokens,
	)
	if err := row.Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
		return core.PostgresErr("create user", err)
	}

	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id string) (*User, error) {
	if err := checkID("get user", id); err != nil {
		return nil, err
	}

	return r.get(ctx, "get user",
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *postgresRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.get(ctx, "get user by email",
		`SELECT `+userColumns+` FROM users WHERE email = $1`, NormalizeEmail(email))
}

func (r *postgresRepository) PushToken(
	ctx context.Context,
	id string,
	token AuthToken,
	now time.Time,
) error {
	if err := checkID("push token", id); err != nil {
		return err
	}

	entry, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("push token: %w", err)
	}

	query := `
		UPDATE users
		SET tokens = COALESCE((
				SELECT jsonb_agg(t)
				FROM jsonb_array_elements(tokens) AS t
				WHERE (t->>'expiresAt')::timestamptz > $3
				  AND t->>'accessToken' <> $4
			), '[]'::jsonb) || jsonb_build_array($2::jsonb),
			updated_at = $3
		WHERE id = $1`

	return r.exec(ctx, "push token", query, id, string(entry), now, token.AccessToken)
}

func (r *postgresRepository) PullToken(ctx context.Context, id, accessToken string) error {
	if err := checkID("pull token", id); err != nil {
		return err
	}

	query := `
		UPDATE users
		SET tokens = COALESCE((
				SELECT jsonb_agg(t)
				FROM jsonb_array_elements(tokens) AS t
				WHERE t->>'accessToken' <> $2
			), '[]'::jsonb),
			updated_at = NOW()
		WHERE id = $1`

	return r.exec(ctx, "pull token", query, id, accessToken)
}

func (r *postgresRepository) PullAllTokens(ctx context.Context, id, keep string) error {
	if err := checkID("pull all tokens", id); err != nil {
		return err
	}

	query := `
		UPDATE users
		SET tokens = COALESCE((
				SELECT jsonb_agg(t)
				FROM jsonb_array_elements(tokens) AS t
				WHERE t->>'accessToken' = $2
			), '[]'::jsonb),
			updated_at = NOW()
		WHERE id = $1`

	return r.exec(ctx, "pull all tokens", query, id, keep)
}

func (r *postgresRepository) FindByToken(
	ctx context.Context,
	id, accessToken string,
) (*User, error) {
	if err := checkID("find by token", id); err != nil {
		return nil, err
	}

	query := `SELECT ` + userColumns + ` FROM users
		WHERE id = $1
		  AND tokens @> jsonb_build_array(jsonb_build_object('accessToken', $2::text))`

	return r.get(ctx, "find by token", query, id, accessToken)
}

func (r *postgresRepository) SavePassword(ctx context.Context, user *User) error {
	if err := checkID("save password", user.ID); err != nil {
		return err
	}
	if err := user.BeforeSave(); err != nil {
		return fmt.Errorf("save password: %w", err)
	}

	query := `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	return r.exec(ctx, "save password", query, user.ID, user.PasswordHash)
}

func (r *postgresRepository) ChangePassword(ctx context.Context, user *User, keep string) error {
	if err := checkID("change password", user.ID); err != nil {
		return err
	}
	if err := user.BeforeSave(); err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	query := `
		UPDATE users
		SET password_hash = $2,
			tokens = COALESCE((
				SELECT jsonb_agg(t)
				FROM jsonb_array_elements(tokens) AS t
				WHERE t->>'accessToken' = $3
			), '[]'::jsonb),
			updated_at = NOW()
		WHERE id = $1`

	return r.exec(ctx, "change password", query, user.ID, user.PasswordHash, keep)
}

func (r *postgresRepository) SetResetToken(
	ctx context.Context,
	email, digest string,
	expires time.Time,
) (*User, error) {
	query := `
		UPDATE users
		SET password_reset_token = $2,
			password_reset_expires = $3,
			updated_at = NOW()
		WHERE email = $1
		RETURNING ` + userColumns

	return r.get(ctx, "set reset token", query, NormalizeEmail(email), digest, expires)
}

func (r *postgresRepository) ConsumeResetToken(
	ctx context.Context,
	digest string,
	now time.Time,
	newPassword string,
) (*User, error) {
	hash, err := hashForSave(newPassword)
	if err != nil {
		return nil, fmt.Errorf("consume reset token: %w", err)
	}

	query := `
		UPDATE users
		SET password_hash = $3,
			password_reset_token = NULL,
			password_reset_expires = NULL,
			tokens = '[]'::jsonb,
			updated_at = $2
		WHERE password_reset_token = $1
		  AND password_reset_expires > $2
		RETURNING ` + userColumns

	return r.get(ctx, "consume reset token", query, digest, now, hash)
}

func (r *postgresRepository) Stats(ctx context.Context) (Stats, error) {
	query := `
		SELECT role,
		       COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE status = 'active') AS active
		FROM users
		GROUP BY role`

	var rows []struct {
		Role   string `db:"role"`
		Total  int64  `db:"total"`
		Active int64  `db:"active"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return Stats{}, core.PostgresErr("user stats", err)
	}

	stats := Stats{ByRole: make(map[string]int64, len(rows))}
	for _, row := range rows {
		stats.Total += row.Total
		stats.Active += row.Active
		stats.ByRole[row.Role] = row.Total
	}
	return stats, nil
}

func (r *postgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *postgresRepository) get(
	ctx context.Context,
	op, query string,
	args ...any,
) (*User, error) {
	var user User
	if err := r.db.GetContext(ctx, &user, query, args...); err != nil {
		return nil, core.PostgresErr(op, err)
	}
	return &user, nil
}

func (r *postgresRepository) exec(
	ctx context.Context,
	op, query string,
	args ...any,
) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return core.PostgresErr(op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if rows == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}

	return nil
}

// checkID turns ids the uuid column could never hold into ErrNotFound, the
// same answer the mongo and memory stores give, instead of a 22P02 cast error.
func checkID(op, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return nil
}

var _ Repository = (*postgresRepository)(nil)
