package domain

import (
	"time"

	"github.com/google/uuid"
)

// Session is the journal record of one worker session.
type Session struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	RunID        uuid.UUID  `db:"run_id" json:"run_id"`
	UID          *int64     `db:"uid" json:"uid,omitempty"`
	Source       int        `db:"source" json:"source"`
	Policy       string     `db:"policy" json:"policy"`
	RegisteredAt time.Time  `db:"registered_at" json:"registered_at"`
	EndedAt      *time.Time `db:"ended_at" json:"ended_at,omitempty"`
	EndReason    string     `db:"end_reason" json:"end_reason"`
}

const (
	EndReasonDeregister = "deregister"
	EndReasonIsolated   = "isolated"
)

type SessionTable struct {
	ID           string
	RunID        string
	UID          string
	Source       string
	Policy       string
	RegisteredAt string
	EndedAt      string
	EndReason    string
}

func (t SessionTable) TableName() string {
	return "worker_sessions"
}

func GetSessionTable() SessionTable {
	return SessionTable{
		ID:           "id",
		RunID:        "run_id",
		UID:          "uid",
		Source:       "source",
		Policy:       "policy",
		RegisteredAt: "registered_at",
		EndedAt:      "ended_at",
		EndReason:    "end_reason",
	}
}

// NewSession opens a journal record for a freshly registered worker.
func NewSession(runID uuid.UUID, policy Policy, w WorkerInfo) *Session {
	s := &Session{
		ID:           w.SessionID,
		RunID:        runID,
		Source:       int(w.Source),
		Policy:       string(policy),
		RegisteredAt: w.RegisteredAt,
	}
	if w.UID != nil {
		uid := int64(*w.UID)
		s.UID = &uid
	}
	return s
}
