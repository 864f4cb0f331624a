package worker

import (
	"gitlab.com/arbfn-2025.net/internal/domain"
)

// IWorkerRegistry tracks active worker membership.
//
// Implementations are owned by the master service loop and are not safe
// for concurrent use.
type IWorkerRegistry interface {
	// Policy reports whether workers are identified by uid or anonymous
	Policy() domain.Policy

	// Register opens a session for src; identified sessions carry the smallest free uid
	Register(src domain.Address) (domain.WorkerInfo, error)

	// Deregister closes the session named by uid (identified) or the latest session of src (anonymous)
	Deregister(src domain.Address, uid *uint64) (domain.WorkerInfo, error)

	// Check validates the uid carried by a request
	Check(src domain.Address, uid *uint64) error

	// Release closes every session bound to src and returns them
	Release(src domain.Address) []domain.WorkerInfo

	// ActiveCount returns the number of open sessions
	ActiveCount() int

	// Active lists the open sessions ordered by uid, then source
	Active() []domain.WorkerInfo
}
