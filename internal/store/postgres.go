// Package store handles all database and cache interactions.
//
// postgres.go -- pgxpool connection setup and user queries.
// Creates a connection pool at startup, shared across all handlers.
// All queries use parameterized statements (no string concatenation).
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// userColumns is the column list every user query scans, in scanUser order.
const userColumns = `id, external_subject_id, email, display_name, picture_url, last_login_at, created_at, updated_at`

// upsertUserSQL creates or reconciles a user in one statement.
// ON CONFLICT takes the row lock on external_subject_id, so two first logins
// for the same subject racing each other still converge on a single row.
// Profile fields keep the stored value when the incoming one is NULL.
const upsertUserSQL = `
	INSERT INTO users (` + userColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $6, $6)
	ON CONFLICT (external_subject_id) DO UPDATE SET
		email         = COALESCE(EXCLUDED.email, users.email),
		display_name  = COALESCE(EXCLUDED.display_name, users.display_name),
		picture_url   = COALESCE(EXCLUDED.picture_url, users.picture_url),
		last_login_at = EXCLUDED.last_login_at,
		updated_at    = CASE
			WHEN (EXCLUDED.email IS NOT NULL AND EXCLUDED.email IS DISTINCT FROM users.email)
			  OR (EXCLUDED.display_name IS NOT NULL AND EXCLUDED.display_name IS DISTINCT FROM users.display_name)
			  OR (EXCLUDED.picture_url IS NOT NULL AND EXCLUDED.picture_url IS DISTINCT FROM users.picture_url)
			THEN EXCLUDED.updated_at
			ELSE users.updated_at
		END
	RETURNING ` + userColumns

// PostgresStore is the durable user store backed by a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a connection pool to PostgreSQL, pings it, and
// returns a ready-to-use store.
// Call once at startup...the returned store is safe for concurrent use.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating pgx pool: %w", err)
	}

	// Ping db to make sure connection works
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	return &PostgresStore{pool}, nil
}

// Close shuts down the connection pool and releases all resources.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// CheckHealth pings Postgres.
func (s *PostgresStore) CheckHealth(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// UpsertUserBySubject creates the user for p.Subject if absent, otherwise
// reconciles it (see ApplyLogin for the field rules). id is only used on insert;
// the caller generates a UUID v7 before calling.
// Returns the canonical row as stored after the statement.
func (s *PostgresStore) UpsertUserBySubject(ctx context.Context, id uuid.UUID, p LoginProfile, now time.Time) (*User, error) {
	if p.Subject == "" {
		return nil, ErrEmptySubject
	}
	row := s.pool.QueryRow(ctx, upsertUserSQL,
		id, p.Subject, nullable(p.Email), nullable(p.DisplayName), nullable(p.PictureURL), now.UTC())
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("upserting user: %w", err)
	}
	return u, nil
}

// GetUserBySubject fetches a user by external subject identifier.
// Returns ErrUserNotFound if no row matches.
func (s *PostgresStore) GetUserBySubject(ctx context.Context, subject string) (*User, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE external_subject_id = $1", subject)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching user by subject: %w", err)
	}
	return u, nil
}

// scanUser reads one row selected with userColumns.
func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.ExternalSubjectID, &u.Email, &u.DisplayName, &u.PictureURL,
		&u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
