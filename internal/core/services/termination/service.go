package termination

import (
	"context"

	"gitlab.com/arbfn-2025.net/internal/domain"
)

// ICoordinator decides when the master stops and performs the exit rendezvous.
type ICoordinator interface {
	// ShouldStop is asked after every event that lowers the active count.
	// A true result moves the master to draining.
	ShouldStop(active int) bool

	State() domain.MasterState

	// Shutdown waits on the exit barrier and marks the master stopped.
	Shutdown(ctx context.Context) error

	// Abort marks the master stopped without the rendezvous.
	Abort()
}
