package secondary

import (
	"context"

	"github.com/google/uuid"

	"gitlab.com/arbfn-2025.net/internal/domain"
)

// RosterRepository mirrors the active worker set of a run for outside readers.
// The registry owned by the service loop stays authoritative.
type RosterRepository interface {
	// SaveWorker stores a registered worker session
	SaveWorker(ctx context.Context, runID uuid.UUID, worker *domain.WorkerInfo) error

	// RemoveWorker drops a session that ended
	RemoveWorker(ctx context.Context, runID uuid.UUID, sessionID uuid.UUID) error

	// GetAllWorkers lists the mirrored sessions of a run
	GetAllWorkers(ctx context.Context, runID uuid.UUID) ([]*domain.WorkerInfo, error)

	// ClearRun removes every mirrored session of a run
	ClearRun(ctx context.Context, runID uuid.UUID) error
}
