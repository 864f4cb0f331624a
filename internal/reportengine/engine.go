// Package reportengine moves observations of the service loop off the
// critical path. Events are buffered and applied by one background
// goroutine to the roster mirror, the session journal and the in-memory
// statistics read by the admin API.
package reportengine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/google/uuid"

	"gitlab.com/arbfn-2025.net/internal/core/ports/primary"
	"gitlab.com/arbfn-2025.net/internal/core/ports/secondary"
	"gitlab.com/arbfn-2025.net/internal/domain"
)

const (
	DefaultBuffer   = 4096
	DefaultInterval = time.Minute
	storeTimeout    = 5 * time.Second

	// latency is recorded in microseconds, from 1us up to one minute
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
	sigFigures   = 3
)

var _ secondary.Reporter = &ReportEngine{}

type ReportEngine struct {
	runID    uuid.UUID
	policy   domain.Policy
	interval time.Duration
	roster   secondary.RosterRepository
	sessions secondary.SessionRepository
	logger   primary.Logger

	events  chan domain.Event
	dropped atomic.Int64
	stopCh  chan struct{}
	done    chan struct{}
	started atomic.Bool
	once    sync.Once

	mu           sync.Mutex
	state        domain.MasterState
	active       int
	registered   int64
	deregistered int64
	isolated     int64
	requests     int64
	atoms        int64
	latency      *hdrhistogram.Histogram
	open         map[uuid.UUID]*domain.Session
}

type Option func(*ReportEngine)

// WithRoster mirrors the active workers into repo
func WithRoster(repo secondary.RosterRepository) Option {
	return func(e *ReportEngine) {
		e.roster = repo
	}
}

// WithSessions journals every session into repo
func WithSessions(repo secondary.SessionRepository) Option {
	return func(e *ReportEngine) {
		e.sessions = repo
	}
}

// WithInterval sets how often a stats line is logged; zero disables it
func WithInterval(d time.Duration) Option {
	return func(e *ReportEngine) {
		e.interval = d
	}
}

// WithBuffer sets how many events may wait before new ones are dropped
func WithBuffer(n int) Option {
	return func(e *ReportEngine) {
		if n > 0 {
			e.events = make(chan domain.Event, n)
		}
	}
}

func NewReportEngine(runID uuid.UUID, policy domain.Policy, logger primary.Logger, opts ...Option) *ReportEngine {
	e := &ReportEngine{
		runID:    runID,
		policy:   policy,
		interval: DefaultInterval,
		logger:   logger,
		events:   make(chan domain.Event, DefaultBuffer),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
		state:    domain.StateRunning,
		latency:  hdrhistogram.New(minLatencyUs, maxLatencyUs, sigFigures),
		open:     make(map[uuid.UUID]*domain.Session),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Publish queues ev without blocking; the event is counted and dropped
// when the buffer is full or the engine has stopped.
func (e *ReportEngine) Publish(ev domain.Event) {
	select {
	case <-e.stopCh:
		e.dropped.Add(1)
		return
	default:
	}

	select {
	case e.events <- ev:
	default:
		e.dropped.Add(1)
	}
}

// Start runs the background goroutine until ctx is done or Stop is called
func (e *ReportEngine) Start(ctx context.Context) {
	if !e.started.CompareAndSwap(false, true) {
		return
	}
	go e.run(ctx)
}

// Stop applies the events still buffered and waits for the goroutine to exit
func (e *ReportEngine) Stop() {
	e.once.Do(func() {
		close(e.stopCh)
	})
	if e.started.Load() {
		<-e.done
	}
}

// Stats returns a snapshot of the counters and dispatch latency percentiles
func (e *ReportEngine) Stats() domain.StatsSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	return domain.StatsSnapshot{
		RunID:         e.runID.String(),
		State:         e.state,
		Policy:        e.policy,
		ActiveWorkers: e.active,
		Registered:    e.registered,
		Deregistered:  e.deregistered,
		Isolated:      e.isolated,
		Requests:      e.requests,
		Atoms:         e.atoms,
		LatencyP50Us:  e.latency.ValueAtQuantile(50),
		LatencyP90Us:  e.latency.ValueAtQuantile(90),
		LatencyP99Us:  e.latency.ValueAtQuantile(99),
		LatencyMaxUs:  e.latency.Max(),
		DroppedEvents: e.dropped.Load(),
	}
}

func (e *ReportEngine) run(ctx context.Context) {
	defer close(e.done)

	var tick <-chan time.Time
	if e.interval > 0 {
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case ev := <-e.events:
			e.apply(ctx, ev)
		case <-tick:
			e.logStats()
		case <-e.stopCh:
			e.drain(context.WithoutCancel(ctx))
			return
		case <-ctx.Done():
			e.drain(context.WithoutCancel(ctx))
			return
		}
	}
}

func (e *ReportEngine) drain(ctx context.Context) {
	for {
		select {
		case ev := <-e.events:
			e.apply(ctx, ev)
		default:
			e.logStats()
			return
		}
	}
}

func (e *ReportEngine) apply(ctx context.Context, ev domain.Event) {
	e.record(ev)

	storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	switch ev.Kind {
	case domain.EventRegistered:
		e.opened(storeCtx, ev.Worker)
	case domain.EventDeregistered:
		e.closed(storeCtx, ev.Worker, ev.At, domain.EndReasonDeregister)
	case domain.EventIsolated:
		e.closed(storeCtx, ev.Worker, ev.At, domain.EndReasonIsolated)
	case domain.EventState:
		if ev.State == domain.StateStopped && e.roster != nil {
			if err := e.roster.ClearRun(storeCtx, e.runID); err != nil {
				e.logger.Error("Failed to clear roster", "run", e.runID, "error", err)
			}
		}
	}
}

// record folds ev into the counters
func (e *ReportEngine) record(ev domain.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.active = ev.Active
	switch ev.Kind {
	case domain.EventRegistered:
		e.registered++
	case domain.EventDeregistered:
		e.deregistered++
	case domain.EventIsolated:
		e.isolated++
	case domain.EventRequest:
		e.requests++
		e.atoms += int64(ev.Atoms)
		us := ev.Latency.Microseconds()
		if us < minLatencyUs {
			us = minLatencyUs
		}
		if err := e.latency.RecordValue(us); err != nil {
			e.logger.Debug("Latency out of range", "latency", ev.Latency)
		}
	case domain.EventState:
		e.state = ev.State
	}
}

func (e *ReportEngine) opened(ctx context.Context, w domain.WorkerInfo) {
	if e.roster != nil {
		if err := e.roster.SaveWorker(ctx, e.runID, &w); err != nil {
			e.logger.Error("Failed to mirror worker", "session", w.SessionID, "error", err)
		}
	}

	session := domain.NewSession(e.runID, e.policy, w)
	e.mu.Lock()
	e.open[w.SessionID] = session
	e.mu.Unlock()

	if e.sessions != nil {
		if err := e.sessions.SaveSession(ctx, session); err != nil {
			e.logger.Error("Failed to journal session", "session", w.SessionID, "error", err)
		}
	}
}

func (e *ReportEngine) closed(ctx context.Context, w domain.WorkerInfo, at time.Time, reason string) {
	if e.roster != nil {
		if err := e.roster.RemoveWorker(ctx, e.runID, w.SessionID); err != nil {
			e.logger.Error("Failed to remove mirrored worker", "session", w.SessionID, "error", err)
		}
	}

	e.mu.Lock()
	session, ok := e.open[w.SessionID]
	delete(e.open, w.SessionID)
	e.mu.Unlock()
	if !ok {
		session = domain.NewSession(e.runID, e.policy, w)
	}
	session.EndedAt = &at
	session.EndReason = reason

	if e.sessions != nil {
		if err := e.sessions.SaveSession(ctx, session); err != nil {
			e.logger.Error("Failed to journal session end", "session", w.SessionID, "error", err)
		}
	}
}

func (e *ReportEngine) logStats() {
	s := e.Stats()
	e.logger.Info("Master stats",
		"state", s.State,
		"active", s.ActiveWorkers,
		"requests", s.Requests,
		"atoms", s.Atoms,
		"p50_us", s.LatencyP50Us,
		"p99_us", s.LatencyP99Us,
		"dropped", s.DroppedEvents,
	)
}
