package worker

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"gitlab.com/arbfn-2025.net/internal/codec"
	"gitlab.com/arbfn-2025.net/internal/core/ports/primary"
	"gitlab.com/arbfn-2025.net/internal/domain"
	"gitlab.com/arbfn-2025.net/internal/static/errs"
)

const (
	DefaultAckTimeout = 1000 * time.Millisecond
	DefaultMaxDelay   = 5 * time.Second
	simulationStep    = 0.01
	simulationRange   = 100.0
)

// Worker is the client side of the protocol: it registers with the master,
// exchanges atom forces for corrections and deregisters.
type Worker struct {
	link       primary.Link
	logger     primary.Logger
	ackTimeout time.Duration
	maxDelay   time.Duration
	uid        *uint64
	registered bool
	waits      uint64
}

type WorkerOption func(*Worker)

// WithAckTimeout bounds the wait for the registration ack
func WithAckTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) {
		w.ackTimeout = d
	}
}

// WithMaxDelay bounds the wait for each reply packet and is announced to the master
func WithMaxDelay(d time.Duration) WorkerOption {
	return func(w *Worker) {
		w.maxDelay = d
	}
}

func NewWorker(link primary.Link, logger primary.Logger, opts ...WorkerOption) *Worker {
	w := &Worker{
		link:       link,
		logger:     logger,
		ackTimeout: DefaultAckTimeout,
		maxDelay:   DefaultMaxDelay,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// UID returns the id assigned by the master; nil for anonymous masters
func (w *Worker) UID() *uint64 {
	return w.uid
}

// Waits counts the waiting packets skipped so far
func (w *Worker) Waits() uint64 {
	return w.waits
}

// Register announces the worker and waits for the ack
func (w *Worker) Register(ctx context.Context) (*uint64, error) {
	if w.registered {
		return w.uid, nil
	}
	if err := w.send(ctx, domain.NewRegister()); err != nil {
		return nil, fmt.Errorf("failed to send registration: %w", err)
	}

	ackCtx, cancel := context.WithTimeout(ctx, w.ackTimeout)
	defer cancel()
	msg, err := w.recv(ackCtx)
	if err != nil {
		return nil, fmt.Errorf("no registration ack: %w", err)
	}
	if msg.Type != domain.MsgAck {
		return nil, fmt.Errorf("%w: expected ack, got %s", errs.ErrProtocolViolation, msg.Type)
	}

	w.uid = msg.UID
	w.registered = true
	w.logger.Info("Worker registered", "uid", uidValue(w.uid))
	return w.uid, nil
}

// Interchange sends the atoms and returns one correction per atom
func (w *Worker) Interchange(ctx context.Context, atoms []domain.AtomForce) ([]domain.AtomCorrection, error) {
	if !w.registered {
		return nil, fmt.Errorf("worker is not registered")
	}

	req := domain.NewRequest(w.uid, atoms)
	req.ExpectResponse = float64(w.maxDelay / time.Millisecond)
	if err := w.send(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	for {
		packetCtx, cancel := context.WithTimeout(ctx, w.maxDelay)
		msg, err := w.recv(packetCtx)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("no response: %w", err)
		}

		switch msg.Type {
		case domain.MsgWaiting:
			w.waits++
			continue
		case domain.MsgResponse:
			if len(msg.Corrections) != len(atoms) {
				return nil, fmt.Errorf("%w: sent %d atoms, got %d corrections",
					errs.ErrProtocolViolation, len(atoms), len(msg.Corrections))
			}
			return msg.Corrections, nil
		default:
			return nil, fmt.Errorf("%w: expected response, got %s", errs.ErrProtocolViolation, msg.Type)
		}
	}
}

// Deregister ends the session. The master does not reply.
func (w *Worker) Deregister(ctx context.Context) error {
	if !w.registered {
		return nil
	}
	if err := w.send(ctx, domain.NewDeregister(w.uid)); err != nil {
		return fmt.Errorf("failed to send deregistration: %w", err)
	}
	w.registered = false
	w.logger.Info("Worker deregistered", "uid", uidValue(w.uid))
	return nil
}

// Simulate integrates n random atoms for the given number of steps,
// applying the master's corrections after every step.
func (w *Worker) Simulate(ctx context.Context, n, steps int, rng *rand.Rand) error {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	atoms := make([]domain.AtomForce, n)
	for i := range atoms {
		atoms[i] = domain.AtomForce{
			X: uniform(rng), VX: uniform(rng), FX: uniform(rng),
			Y: uniform(rng), VY: uniform(rng), FY: uniform(rng),
			Z: uniform(rng), VZ: uniform(rng), FZ: uniform(rng),
		}
	}

	if _, err := w.Register(ctx); err != nil {
		return err
	}

	for step := 0; step < steps; step++ {
		for i := range atoms {
			a := &atoms[i]
			a.VX += a.FX * simulationStep
			a.X += a.VX * simulationStep
			a.VY += a.FY * simulationStep
			a.Y += a.VY * simulationStep
			a.VZ += a.FZ * simulationStep
			a.Z += a.VZ * simulationStep
		}

		fixes, err := w.Interchange(ctx, atoms)
		if err != nil {
			return fmt.Errorf("step %d: %w", step, err)
		}
		if step%10 == 0 {
			w.logger.Debug("Got corrections", "uid", uidValue(w.uid), "step", step)
		}

		for i, fix := range fixes {
			atoms[i].FX += fix.DFX
			atoms[i].FY += fix.DFY
			atoms[i].FZ += fix.DFZ
		}
	}

	return w.Deregister(ctx)
}

func (w *Worker) send(ctx context.Context, msg *domain.Message) error {
	payload, err := codec.Encode(msg)
	if err != nil {
		return err
	}
	return w.link.Send(ctx, payload)
}

func (w *Worker) recv(ctx context.Context) (*domain.Message, error) {
	payload, err := w.link.Recv(ctx)
	if err != nil {
		return nil, err
	}
	return codec.Decode(payload)
}

func uniform(rng *rand.Rand) float64 {
	return (rng.Float64()*2 - 1) * simulationRange
}

func uidValue(uid *uint64) interface{} {
	if uid == nil {
		return nil
	}
	return *uid
}
