package worker

import (
	"container/heap"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"gitlab.com/arbfn-2025.net/internal/core/ports/primary"
	"gitlab.com/arbfn-2025.net/internal/domain"
	"gitlab.com/arbfn-2025.net/internal/static/errs"
)

var _ IWorkerRegistry = &WorkerRegistry{}

// uidHeap is the free list of reusable worker ids, smallest first.
type uidHeap []uint64

func (h uidHeap) Len() int            { return len(h) }
func (h uidHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h uidHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *uidHeap) Push(x interface{}) { *h = append(*h, x.(uint64)) }
func (h *uidHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// WorkerRegistry implements IWorkerRegistry for both worker policies.
type WorkerRegistry struct {
	policy    domain.Policy
	free      uidHeap
	maxIssued uint64
	active    map[uint64]*domain.WorkerInfo
	bySource  map[domain.Address][]*domain.WorkerInfo
	count     int
	now       func() time.Time
	logger    primary.Logger
}

// NewWorkerRegistry creates a registry for the given policy
func NewWorkerRegistry(policy domain.Policy, logger primary.Logger) (*WorkerRegistry, error) {
	if !policy.Valid() {
		return nil, fmt.Errorf("unknown worker policy %q", policy)
	}
	return &WorkerRegistry{
		policy:   policy,
		free:     uidHeap{1},
		active:   make(map[uint64]*domain.WorkerInfo),
		bySource: make(map[domain.Address][]*domain.WorkerInfo),
		now:      time.Now,
		logger:   logger,
	}, nil
}

func (r *WorkerRegistry) Policy() domain.Policy {
	return r.policy
}

// Register opens a new worker session
func (r *WorkerRegistry) Register(src domain.Address) (domain.WorkerInfo, error) {
	w := &domain.WorkerInfo{
		SessionID:    uuid.New(),
		Source:       src,
		RegisteredAt: r.now(),
	}

	if r.policy == domain.PolicyIdentified {
		uid := r.allocate()
		w.UID = domain.UIDOf(uid)
		r.active[uid] = w
	}

	r.bySource[src] = append(r.bySource[src], w)
	r.count++

	r.logger.Debug("Worker session opened", "source", src, "uid", uidValue(w.UID), "active", r.count)
	return *w, nil
}

// Deregister closes a worker session
func (r *WorkerRegistry) Deregister(src domain.Address, uid *uint64) (domain.WorkerInfo, error) {
	if r.policy == domain.PolicyAnonymous {
		sessions := r.bySource[src]
		if len(sessions) == 0 {
			return domain.WorkerInfo{}, fmt.Errorf("%w: deregister from source %d with no open session", errs.ErrProtocolViolation, src)
		}
		w := sessions[len(sessions)-1]
		r.detach(w)
		return *w, nil
	}

	if uid == nil {
		return domain.WorkerInfo{}, fmt.Errorf("%w: deregister without uid", errs.ErrMalformedMessage)
	}
	w, ok := r.active[*uid]
	if !ok {
		return domain.WorkerInfo{}, fmt.Errorf("%w: deregister of unknown uid %d", errs.ErrProtocolViolation, *uid)
	}
	r.detach(w)
	return *w, nil
}

// Check validates the uid of a request against the policy
func (r *WorkerRegistry) Check(src domain.Address, uid *uint64) error {
	if r.policy == domain.PolicyAnonymous {
		return nil
	}
	if uid == nil {
		return fmt.Errorf("%w: request without uid", errs.ErrMalformedMessage)
	}
	if _, ok := r.active[*uid]; !ok {
		return fmt.Errorf("%w: request from unknown uid %d (source %d)", errs.ErrProtocolViolation, *uid, src)
	}
	return nil
}

// Release drops every session owned by src
func (r *WorkerRegistry) Release(src domain.Address) []domain.WorkerInfo {
	sessions := r.bySource[src]
	released := make([]domain.WorkerInfo, 0, len(sessions))
	for len(r.bySource[src]) > 0 {
		cur := r.bySource[src]
		w := cur[len(cur)-1]
		r.detach(w)
		released = append(released, *w)
	}
	return released
}

func (r *WorkerRegistry) ActiveCount() int {
	return r.count
}

func (r *WorkerRegistry) Active() []domain.WorkerInfo {
	out := make([]domain.WorkerInfo, 0, r.count)
	for _, sessions := range r.bySource {
		for _, w := range sessions {
			out = append(out, *w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.UID != nil && b.UID != nil && *a.UID != *b.UID {
			return *a.UID < *b.UID
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.RegisteredAt.Before(b.RegisteredAt)
	})
	return out
}

// allocate hands out the smallest id that is not currently active.
// The free list always holds exactly the ids <= maxIssued that are not active.
func (r *WorkerRegistry) allocate() uint64 {
	if r.free.Len() == 0 {
		heap.Push(&r.free, r.maxIssued+1)
	}
	uid := heap.Pop(&r.free).(uint64)
	if uid > r.maxIssued {
		r.maxIssued = uid
	}
	return uid
}

func (r *WorkerRegistry) detach(w *domain.WorkerInfo) {
	sessions := r.bySource[w.Source]
	for i, s := range sessions {
		if s == w {
			sessions = append(sessions[:i], sessions[i+1:]...)
			break
		}
	}
	if len(sessions) == 0 {
		delete(r.bySource, w.Source)
	} else {
		r.bySource[w.Source] = sessions
	}

	if w.UID != nil {
		delete(r.active, *w.UID)
		heap.Push(&r.free, *w.UID)
	}
	r.count--

	r.logger.Debug("Worker session closed", "source", w.Source, "uid", uidValue(w.UID), "active", r.count)
}
