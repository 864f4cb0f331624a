package master

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/arbfn-2025.net/internal/adapter/logging"
	"gitlab.com/arbfn-2025.net/internal/core/services/dispatch"
	"gitlab.com/arbfn-2025.net/internal/core/services/termination"
	"gitlab.com/arbfn-2025.net/internal/core/services/worker"
	"gitlab.com/arbfn-2025.net/internal/domain"
	"gitlab.com/arbfn-2025.net/internal/static/errs"
	"gitlab.com/arbfn-2025.net/internal/tcp"
)

func startTCPMaster(t *testing.T) (*tcp.TCPTransport, chan error) {
	t.Helper()
	logger := logging.NewNopLogger()
	transport := tcp.NewTCPTransport(logger, tcp.WithAddress("127.0.0.1:0"), tcp.WithPartition(testPartition))
	require.NoError(t, transport.Start())

	registry, err := worker.NewWorkerRegistry(domain.PolicyIdentified, logger)
	require.NoError(t, err)
	dispatcher := dispatch.NewDispatcher(dispatch.Damping(dispatch.DefaultDampingK), registry, logger)
	server := NewServer(transport, registry, dispatcher, termination.NewCoordinator(nil, logger), logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		_ = transport.Close()
	})
	return transport, done
}

func TestTCPSimulationRoundTrip(t *testing.T) {
	transport, done := startTCPMaster(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	link, err := tcp.Dial(ctx, transport.Addr(), testPartition)
	require.NoError(t, err)
	defer link.Close()

	w := worker.NewWorker(link, logging.NewNopLogger())
	require.NoError(t, w.Simulate(ctx, 4, 5, rand.New(rand.NewSource(7))))
	require.NotNil(t, w.UID())
	assert.Equal(t, uint64(1), *w.UID())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("master did not stop after the worker deregistered")
	}
}

func TestTCPForeignPartitionNeverReachesMaster(t *testing.T) {
	transport, done := startTCPMaster(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	link, err := tcp.Dial(ctx, transport.Addr(), testPartition+1)
	require.NoError(t, err)
	defer link.Close()

	w := worker.NewWorker(link, logging.NewNopLogger())
	_, err = w.Register(ctx)
	assert.ErrorIs(t, err, errs.ErrPeerGone)

	select {
	case err := <-done:
		t.Fatalf("master stopped unexpectedly: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
}
