// Package sessionrepository journals worker sessions in PostgreSQL
package sessionrepository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"gitlab.com/arbfn-2025.net/internal/core/ports/primary"
	"gitlab.com/arbfn-2025.net/internal/core/ports/secondary"
	"gitlab.com/arbfn-2025.net/internal/domain"
	querybuilder "gitlab.com/arbfn-2025.net/internal/utils"
)

const DefaultListLimit = 100

const schema = `
CREATE TABLE IF NOT EXISTS worker_sessions (
	id            UUID PRIMARY KEY,
	run_id        UUID NOT NULL,
	uid           BIGINT,
	source        INTEGER NOT NULL,
	policy        TEXT NOT NULL,
	registered_at TIMESTAMPTZ NOT NULL,
	ended_at      TIMESTAMPTZ,
	end_reason    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS worker_sessions_run_idx ON worker_sessions (run_id, registered_at DESC);
`

var _ secondary.SessionRepository = &SessionRepository{}

// SessionRepository implements the SessionRepository interface with PostgreSQL
type SessionRepository struct {
	db     *sqlx.DB
	logger primary.Logger
}

// NewSessionRepository creates a new PostgreSQL session repository
func NewSessionRepository(db *sqlx.DB, logger primary.Logger) *SessionRepository {
	return &SessionRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema creates the journal table when it does not exist
func (r *SessionRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create session schema: %w", err)
	}
	return nil
}

// SaveSession inserts the session or updates its end
func (r *SessionRepository) SaveSession(ctx context.Context, session *domain.Session) error {
	tbl := domain.GetSessionTable()
	query, args := querybuilder.NewQueryBuilder("").
		Insert(tbl.ID, tbl.RunID, tbl.UID, tbl.Source, tbl.Policy, tbl.RegisteredAt, tbl.EndedAt, tbl.EndReason).
		Into(tbl.TableName()).
		Values(session.ID, session.RunID, session.UID, session.Source, session.Policy,
			session.RegisteredAt, session.EndedAt, session.EndReason).
		OnConflict(tbl.ID).
		SetExclude(tbl.EndedAt, tbl.EndReason).
		Build()

	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
		r.logger.Error("Failed to save session", "session", session.ID, "error", err)
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// ListSessions returns the most recent sessions of a run, newest first
func (r *SessionRepository) ListSessions(ctx context.Context, runID uuid.UUID, limit int) ([]*domain.Session, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	tbl := domain.GetSessionTable()
	query, args := querybuilder.NewQueryBuilder("").
		Select(tbl.ID, tbl.RunID, tbl.UID, tbl.Source, tbl.Policy, tbl.RegisteredAt, tbl.EndedAt, tbl.EndReason).
		From(tbl.TableName()).
		Where(tbl.RunID+" = ?", runID).
		OrderBy(tbl.RegisteredAt, false).
		Limit(limit).
		Build()

	sessions := make([]*domain.Session, 0)
	if err := r.db.SelectContext(ctx, &sessions, r.db.Rebind(query), args...); err != nil {
		r.logger.Error("Failed to list sessions", "run", runID, "error", err)
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}
