package termination

import (
	"context"
	"fmt"
	"sync"

	"gitlab.com/arbfn-2025.net/internal/core/ports/secondary"
)

var (
	_ secondary.Barrier = NoopBarrier{}
	_ secondary.Barrier = &LocalBarrier{}
)

// NoopBarrier returns immediately.
type NoopBarrier struct{}

func (NoopBarrier) Wait(context.Context) error { return nil }

// LocalBarrier is an in-process barrier for a fixed number of participants.
// It is reusable: once released, the next Wait starts a new generation.
type LocalBarrier struct {
	mu      sync.Mutex
	parties int
	arrived int
	release chan struct{}
}

func NewLocalBarrier(parties int) (*LocalBarrier, error) {
	if parties < 1 {
		return nil, fmt.Errorf("barrier needs at least one participant, got %d", parties)
	}
	return &LocalBarrier{parties: parties, release: make(chan struct{})}, nil
}

func (b *LocalBarrier) Wait(ctx context.Context) error {
	b.mu.Lock()
	gen := b.release
	b.arrived++
	if b.arrived == b.parties {
		b.arrived = 0
		b.release = make(chan struct{})
		b.mu.Unlock()
		close(gen)
		return nil
	}
	b.mu.Unlock()

	select {
	case <-gen:
		return nil
	case <-ctx.Done():
		b.mu.Lock()
		defer b.mu.Unlock()
		select {
		case <-gen:
			return nil
		default:
		}
		b.arrived--
		return ctx.Err()
	}
}
