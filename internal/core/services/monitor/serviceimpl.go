package monitor

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"gitlab.com/arbfn-2025.net/internal/core/ports/secondary"
	"gitlab.com/arbfn-2025.net/internal/domain"
	"gitlab.com/arbfn-2025.net/internal/static/errs"
)

var _ IMonitorService = &MonitorService{}

type MonitorService struct {
	runID    uuid.UUID
	roster   secondary.RosterRepository
	sessions secondary.SessionRepository
	stats    StatsSource
	state    StateSource
}

// NewMonitorService wires the read side. roster and sessions may be nil
// when the corresponding store is not configured.
func NewMonitorService(
	runID uuid.UUID,
	roster secondary.RosterRepository,
	sessions secondary.SessionRepository,
	stats StatsSource,
	state StateSource,
) *MonitorService {
	return &MonitorService{
		runID:    runID,
		roster:   roster,
		sessions: sessions,
		stats:    stats,
		state:    state,
	}
}

// Workers lists the mirrored active workers ordered by source
func (m *MonitorService) Workers(ctx context.Context) ([]*domain.WorkerInfo, error) {
	if m.roster == nil {
		return nil, errs.StoreDisabled
	}
	workers, err := m.roster.GetAllWorkers(ctx, m.runID)
	if err != nil {
		return nil, err
	}
	sort.Slice(workers, func(i, j int) bool {
		return workers[i].Source < workers[j].Source
	})
	return workers, nil
}

func (m *MonitorService) Sessions(ctx context.Context, limit int) ([]*domain.Session, error) {
	if m.sessions == nil {
		return nil, errs.StoreDisabled
	}
	return m.sessions.ListSessions(ctx, m.runID, limit)
}

func (m *MonitorService) Stats() domain.StatsSnapshot {
	var s domain.StatsSnapshot
	if m.stats != nil {
		s = m.stats.Stats()
	}
	s.RunID = m.runID.String()
	s.State = m.State()
	return s
}

func (m *MonitorService) State() domain.MasterState {
	if m.state == nil {
		return domain.StateRunning
	}
	return m.state.State()
}
