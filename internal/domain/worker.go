package domain

import (
	"time"

	"github.com/google/uuid"
)

// Address is the rank of a process within the master's partition.
// The master itself is rank 0; workers are numbered from 1.
type Address int

const MasterAddress Address = 0

// Policy selects how the registry identifies workers.
type Policy string

const (
	PolicyIdentified Policy = "identified"
	PolicyAnonymous  Policy = "anonymous"
)

func (p Policy) Valid() bool {
	return p == PolicyIdentified || p == PolicyAnonymous
}

// WorkerInfo represents one registered worker session
type WorkerInfo struct {
	SessionID    uuid.UUID `json:"session_id"`
	UID          *uint64   `json:"uid,omitempty"`
	Source       Address   `json:"source"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Key identifies the session for batching purposes: the uid when the
// worker is identified, the transport source otherwise.
func (w WorkerInfo) Key() SessionKey {
	if w.UID != nil {
		return SessionKey{UID: *w.UID}
	}
	return SessionKey{Source: w.Source}
}

// SessionKey is a comparable session identity usable as a map key.
type SessionKey struct {
	UID    uint64
	Source Address
}

// MasterState is the lifecycle state of the master service loop.
type MasterState string

const (
	StateRunning  MasterState = "running"
	StateDraining MasterState = "draining"
	StateStopped  MasterState = "stopped"
)

// FailurePolicy decides what happens when a single worker breaks the protocol.
type FailurePolicy string

const (
	FailureIsolate FailurePolicy = "isolate"
	FailureFatal   FailurePolicy = "fatal"
)

func (f FailurePolicy) Valid() bool {
	return f == FailureIsolate || f == FailureFatal
}

// DispatchMode selects between answering each request on arrival and
// answering a whole timestep at once.
type DispatchMode string

const (
	ModeImmediate DispatchMode = "immediate"
	ModeBulk      DispatchMode = "bulk"
)

func (m DispatchMode) Valid() bool {
	return m == ModeImmediate || m == ModeBulk
}
