package monitor

import (
	"context"

	"gitlab.com/arbfn-2025.net/internal/domain"
)

// StatsSource provides the counters collected from the service loop
type StatsSource interface {
	Stats() domain.StatsSnapshot
}

// StateSource reports the lifecycle state of the master
type StateSource interface {
	State() domain.MasterState
}

// IMonitorService is the read side used by the admin API
type IMonitorService interface {
	Workers(ctx context.Context) ([]*domain.WorkerInfo, error)
	Sessions(ctx context.Context, limit int) ([]*domain.Session, error)
	Stats() domain.StatsSnapshot
	State() domain.MasterState
}
