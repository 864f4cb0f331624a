package dispatch

import (
	"fmt"

	"gitlab.com/arbfn-2025.net/internal/core/ports/primary"
	"gitlab.com/arbfn-2025.net/internal/domain"
	"gitlab.com/arbfn-2025.net/internal/static/errs"
)

var _ IDispatcher = &Dispatcher{}

// Membership is the read-only view of the registry the dispatcher needs.
type Membership interface {
	Policy() domain.Policy
	ActiveCount() int
}

type pendingRequest struct {
	key    domain.SessionKey
	src    domain.Address
	uid    *uint64
	forces []domain.AtomForce
}

// Dispatcher applies a correction to every request, either immediately or
// once every active session has reported for the timestep (bulk mode).
type Dispatcher struct {
	mode       domain.DispatchMode
	correction Correction
	batch      BatchCorrection
	members    Membership
	pending    []*pendingRequest
	logger     primary.Logger
}

type Option func(*Dispatcher)

// WithBulk enables bulk mode with the given batch correction.
func WithBulk(batch BatchCorrection) Option {
	return func(d *Dispatcher) {
		d.mode = domain.ModeBulk
		d.batch = batch
	}
}

func NewDispatcher(correction Correction, members Membership, logger primary.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		mode:       domain.ModeImmediate,
		correction: correction,
		members:    members,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.mode == domain.ModeBulk && d.batch == nil {
		d.batch = Gravity(DefaultGravityLimit)
	}
	return d
}

func (d *Dispatcher) Mode() domain.DispatchMode {
	return d.mode
}

func (d *Dispatcher) Dispatch(src domain.Address, req *domain.Message) ([]Reply, error) {
	if req == nil || req.Type != domain.MsgRequest {
		return nil, fmt.Errorf("%w: dispatcher only handles requests", errs.ErrProtocolViolation)
	}
	uid := d.replyUID(req.UID)

	if d.mode == domain.ModeImmediate {
		fixes := make([]domain.AtomCorrection, len(req.Forces))
		for i, f := range req.Forces {
			fixes[i] = d.correction(f)
		}
		return []Reply{{To: src, Message: domain.NewResponse(uid, fixes)}}, nil
	}

	key := domain.SessionKey{Source: src}
	if uid != nil {
		key = domain.SessionKey{UID: *uid}
	}
	d.store(&pendingRequest{key: key, src: src, uid: uid, forces: req.Forces})

	if replies := d.flush(); replies != nil {
		return replies, nil
	}
	return []Reply{{To: src, Message: domain.NewWaiting()}}, nil
}

func (d *Dispatcher) Forget(sessions []domain.WorkerInfo) []Reply {
	if d.mode != domain.ModeBulk || len(d.pending) == 0 {
		return nil
	}
	for _, s := range sessions {
		key := s.Key()
		for i, p := range d.pending {
			if p.key == key {
				d.pending = append(d.pending[:i], d.pending[i+1:]...)
				break
			}
		}
	}
	return d.flush()
}

// store buffers a request, replacing an earlier one from the same session.
func (d *Dispatcher) store(p *pendingRequest) {
	for i, cur := range d.pending {
		if cur.key == p.key {
			d.pending[i] = p
			return
		}
	}
	d.pending = append(d.pending, p)
}

// flush releases the timestep once every active session has a pending request.
func (d *Dispatcher) flush() []Reply {
	if len(d.pending) == 0 || len(d.pending) < d.members.ActiveCount() {
		return nil
	}

	batch := make([][]domain.AtomForce, len(d.pending))
	for i, p := range d.pending {
		batch[i] = p.forces
	}
	fixes := d.batch(batch)

	replies := make([]Reply, len(d.pending))
	for i, p := range d.pending {
		replies[i] = Reply{To: p.src, Message: domain.NewResponse(p.uid, fixes[i])}
	}
	d.logger.Debug("Timestep released", "sessions", len(d.pending))
	d.pending = nil
	return replies
}

func (d *Dispatcher) replyUID(uid *uint64) *uint64 {
	if d.members.Policy() != domain.PolicyIdentified || uid == nil {
		return nil
	}
	return domain.UIDOf(*uid)
}
