package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dmsbot/session-server-go/internal/model"
)

// SessionRepository is the durable session registry: the single source of
// truth for a session's flags and status. Upsert has merge semantics: fields
// absent from the partial record are never lost, and every mutation is
// atomic with respect to concurrent callers.
type SessionRepository interface {
	List(ctx context.Context) ([]model.Session, error)
	Get(ctx context.Context, identity string) (*model.Session, error)
	Upsert(ctx context.Context, params model.UpsertSessionParams) (*model.Session, error)
	Remove(ctx context.Context, identity string) error
	// DeleteStalePending removes pending records created before the cutoff
	// whose pairing never completed.
	DeleteStalePending(ctx context.Context, cutoff time.Time) (int64, error)
}

type sessionDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type sessionRepo struct {
	db sessionDB
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) List(ctx context.Context) ([]model.Session, error) {
	sessions := []model.Session{}
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT * FROM sessions ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepo) Get(ctx context.Context, identity string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM sessions WHERE identity = $1
	`, identity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Upsert merges the partial record onto any existing row in one statement, so
// concurrent upserts for the same identity serialize inside the database.
func (r *sessionRepo) Upsert(ctx context.Context, params model.UpsertSessionParams) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO sessions (identity, phone_number, flags, status, created_at, last_open_at)
		VALUES (
			$1,
			COALESCE($2, ''),
			COALESCE($3, '{}'::jsonb),
			COALESCE($4, 'pending'),
			COALESCE($5, NOW()),
			$6
		)
		ON CONFLICT (identity) DO UPDATE SET
			phone_number = COALESCE($2, sessions.phone_number),
			flags        = COALESCE($3, sessions.flags),
			status       = COALESCE($4, sessions.status),
			created_at   = COALESCE($5, sessions.created_at),
			last_open_at = COALESCE($6, sessions.last_open_at)
		RETURNING *
	`,
		params.Identity,
		nullString(params.PhoneNumber),
		params.Flags,
		nullStatus(params.Status),
		nullTime(params.CreatedAt),
		nullTime(params.LastOpenAt),
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) Remove(ctx context.Context, identity string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE identity = $1
	`, identity)
	return err
}

func (r *sessionRepo) DeleteStalePending(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM sessions
		WHERE status = 'pending' AND created_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullStatus(s *model.SessionStatus) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*s), Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
