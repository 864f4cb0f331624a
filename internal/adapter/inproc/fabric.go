// Package inproc is a channel-backed transport for workers that live in the
// same process as the master.
package inproc

import (
	"context"
	"fmt"
	"sync"

	"gitlab.com/arbfn-2025.net/internal/core/ports/primary"
	"gitlab.com/arbfn-2025.net/internal/domain"
	"gitlab.com/arbfn-2025.net/internal/static/errs"
)

var (
	_ primary.Transport = &MasterEndpoint{}
	_ primary.Link      = &WorkerEndpoint{}
)

const inboxSize = 1024

type envelope struct {
	src     domain.Address
	payload []byte
	closed  bool
}

// Fabric connects masters and workers by partition key.
type Fabric struct {
	mu      sync.Mutex
	masters map[uint32]*MasterEndpoint
}

func NewFabric() *Fabric {
	return &Fabric{masters: make(map[uint32]*MasterEndpoint)}
}

// Listen creates the master endpoint of a partition.
func (f *Fabric) Listen(partition uint32) (*MasterEndpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.masters[partition]; ok {
		return nil, fmt.Errorf("partition %d already has a master", partition)
	}
	m := &MasterEndpoint{
		fabric:    f,
		partition: partition,
		inbox:     make(chan envelope, inboxSize),
		workers:   make(map[domain.Address]*WorkerEndpoint),
		dropped:   make(map[domain.Address]struct{}),
		closed:    make(chan struct{}),
	}
	f.masters[partition] = m
	return m, nil
}

// Dial attaches a new worker to the master of partition.
func (f *Fabric) Dial(partition uint32) (*WorkerEndpoint, error) {
	f.mu.Lock()
	m, ok := f.masters[partition]
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no master listening on partition %d", partition)
	}
	return m.attach()
}

func (f *Fabric) release(partition uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.masters, partition)
}

// MasterEndpoint implements primary.Transport over channels.
type MasterEndpoint struct {
	fabric    *Fabric
	partition uint32
	inbox     chan envelope
	pending   *envelope

	mu       sync.RWMutex
	lastRank domain.Address
	workers  map[domain.Address]*WorkerEndpoint
	dropped  map[domain.Address]struct{}

	closed    chan struct{}
	closeOnce sync.Once
}

func (m *MasterEndpoint) attach() (*WorkerEndpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	select {
	case <-m.closed:
		return nil, errs.ErrTransportClosed
	default:
	}

	m.lastRank++
	w := &WorkerEndpoint{
		master: m,
		rank:   m.lastRank,
		inbox:  make(chan []byte, inboxSize),
		gone:   make(chan struct{}),
	}
	m.workers[w.rank] = w
	return w, nil
}

func (m *MasterEndpoint) isDropped(src domain.Address) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.dropped[src]
	return ok
}

func (m *MasterEndpoint) Probe(ctx context.Context) (primary.Status, error) {
	for {
		if m.pending != nil {
			if !m.isDropped(m.pending.src) {
				return primary.Status{Source: m.pending.src, Count: len(m.pending.payload), Closed: m.pending.closed}, nil
			}
			m.pending = nil
		}
		select {
		case <-ctx.Done():
			return primary.Status{}, ctx.Err()
		case <-m.closed:
			return primary.Status{}, errs.ErrTransportClosed
		case env := <-m.inbox:
			m.pending = &env
		}
	}
}

func (m *MasterEndpoint) Receive(ctx context.Context, st primary.Status) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.pending == nil || m.pending.src != st.Source {
		return nil, fmt.Errorf("%w: receive from %d without a matching probe", errs.ErrSizeMismatch, st.Source)
	}
	env := m.pending
	m.pending = nil
	if env.closed {
		return nil, fmt.Errorf("%w: rank %d hung up", errs.ErrPeerGone, env.src)
	}
	if len(env.payload) != st.Count {
		return nil, fmt.Errorf("%w: probed %d bytes from %d, message holds %d", errs.ErrSizeMismatch, st.Count, env.src, len(env.payload))
	}
	return env.payload, nil
}

func (m *MasterEndpoint) Send(ctx context.Context, dst domain.Address, payload []byte) error {
	m.mu.RLock()
	w, ok := m.workers[dst]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: no worker at rank %d", errs.ErrPeerGone, dst)
	}

	buf := make([]byte, len(payload))
	copy(buf, payload)
	select {
	case w.inbox <- buf:
		return nil
	case <-w.gone:
		return fmt.Errorf("%w: rank %d hung up", errs.ErrPeerGone, dst)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MasterEndpoint) Disconnect(src domain.Address) error {
	if m.pending != nil && m.pending.src == src {
		m.pending = nil
	}
	m.mu.Lock()
	w, ok := m.workers[src]
	delete(m.workers, src)
	m.dropped[src] = struct{}{}
	m.mu.Unlock()
	if ok {
		w.sever()
	}
	return nil
}

func (m *MasterEndpoint) Close() error {
	m.closeOnce.Do(func() {
		close(m.closed)
		m.fabric.release(m.partition)

		m.mu.Lock()
		workers := m.workers
		m.workers = make(map[domain.Address]*WorkerEndpoint)
		m.mu.Unlock()
		for _, w := range workers {
			w.sever()
		}
	})
	return nil
}

// WorkerEndpoint implements primary.Link over channels.
type WorkerEndpoint struct {
	master   *MasterEndpoint
	rank     domain.Address
	inbox    chan []byte
	gone     chan struct{}
	goneOnce sync.Once
}

func (w *WorkerEndpoint) Rank() domain.Address {
	return w.rank
}

func (w *WorkerEndpoint) sever() {
	w.goneOnce.Do(func() { close(w.gone) })
}

func (w *WorkerEndpoint) Send(ctx context.Context, payload []byte) error {
	buf := make([]byte, len(payload))
	copy(buf, payload)
	select {
	case <-w.gone:
		return fmt.Errorf("%w: link closed", errs.ErrPeerGone)
	default:
	}
	select {
	case w.master.inbox <- envelope{src: w.rank, payload: buf}:
		return nil
	case <-w.gone:
		return fmt.Errorf("%w: link closed", errs.ErrPeerGone)
	case <-w.master.closed:
		return errs.ErrTransportClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *WorkerEndpoint) Recv(ctx context.Context) ([]byte, error) {
	select {
	case payload := <-w.inbox:
		return payload, nil
	default:
	}
	select {
	case payload := <-w.inbox:
		return payload, nil
	case <-w.gone:
		return nil, fmt.Errorf("%w: link closed", errs.ErrPeerGone)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close hangs up; the master sees the hangup as a closed status.
func (w *WorkerEndpoint) Close() error {
	select {
	case <-w.gone:
		return nil
	default:
	}
	w.sever()
	select {
	case w.master.inbox <- envelope{src: w.rank, closed: true}:
	case <-w.master.closed:
	}
	return nil
}
