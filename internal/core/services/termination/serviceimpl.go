package termination

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"gitlab.com/arbfn-2025.net/internal/core/ports/primary"
	"gitlab.com/arbfn-2025.net/internal/core/ports/secondary"
	"gitlab.com/arbfn-2025.net/internal/domain"
)

var _ ICoordinator = &Coordinator{}

// Coordinator stops the master once the last worker has gone.
type Coordinator struct {
	state   atomic.Value
	barrier secondary.Barrier
	timeout time.Duration
	logger  primary.Logger
}

type Option func(*Coordinator)

// WithBarrierTimeout bounds the wait on the exit barrier; zero waits for ctx only.
func WithBarrierTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.timeout = d
	}
}

// NewCoordinator creates a coordinator in the running state. A nil barrier means no rendezvous.
func NewCoordinator(barrier secondary.Barrier, logger primary.Logger, opts ...Option) *Coordinator {
	if barrier == nil {
		barrier = NoopBarrier{}
	}
	c := &Coordinator{barrier: barrier, logger: logger}
	c.state.Store(domain.StateRunning)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) State() domain.MasterState {
	return c.state.Load().(domain.MasterState)
}

func (c *Coordinator) ShouldStop(active int) bool {
	if active > 0 {
		return false
	}
	if c.State() == domain.StateRunning {
		c.transition(domain.StateDraining)
	}
	return true
}

func (c *Coordinator) Shutdown(ctx context.Context) error {
	if c.State() == domain.StateRunning {
		c.transition(domain.StateDraining)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	c.logger.Info("Waiting on exit barrier")
	err := c.barrier.Wait(ctx)
	c.transition(domain.StateStopped)
	if err != nil {
		return fmt.Errorf("exit barrier: %w", err)
	}
	return nil
}

func (c *Coordinator) Abort() {
	c.transition(domain.StateStopped)
}

func (c *Coordinator) transition(next domain.MasterState) {
	prev := c.State()
	if prev == next {
		return
	}
	c.state.Store(next)
	c.logger.Info("Master state changed", "from", prev, "to", next)
}
