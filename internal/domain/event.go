package domain

import "time"

type EventKind string

const (
	EventRegistered   EventKind = "registered"
	EventDeregistered EventKind = "deregistered"
	EventIsolated     EventKind = "isolated"
	EventRequest      EventKind = "request"
	EventState        EventKind = "state"
)

// Event is an observation emitted by the service loop for the reporting side.
type Event struct {
	Kind    EventKind
	At      time.Time
	Worker  WorkerInfo
	Active  int
	Atoms   int
	Latency time.Duration
	State   MasterState
	Reason  string
}

// StatsSnapshot is a point-in-time view of master activity.
type StatsSnapshot struct {
	RunID         string      `json:"run_id"`
	State         MasterState `json:"state"`
	Policy        Policy      `json:"policy"`
	ActiveWorkers int         `json:"active_workers"`
	Registered    int64       `json:"registered"`
	Deregistered  int64       `json:"deregistered"`
	Isolated      int64       `json:"isolated"`
	Requests      int64       `json:"requests"`
	Atoms         int64       `json:"atoms"`
	LatencyP50Us  int64       `json:"latency_p50_us"`
	LatencyP90Us  int64       `json:"latency_p90_us"`
	LatencyP99Us  int64       `json:"latency_p99_us"`
	LatencyMaxUs  int64       `json:"latency_max_us"`
	DroppedEvents int64       `json:"dropped_events"`
}
