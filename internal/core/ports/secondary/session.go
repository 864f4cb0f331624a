package secondary

import (
	"context"

	"github.com/google/uuid"

	"gitlab.com/arbfn-2025.net/internal/domain"
)

// SessionRepository journals worker sessions.
type SessionRepository interface {
	// SaveSession inserts or updates a session record
	SaveSession(ctx context.Context, session *domain.Session) error

	// ListSessions returns the most recent sessions of a run
	ListSessions(ctx context.Context, runID uuid.UUID, limit int) ([]*domain.Session, error)
}
