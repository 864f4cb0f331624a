package tcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/arbfn-2025.net/internal/core/ports/primary"
	"gitlab.com/arbfn-2025.net/internal/domain"
	"gitlab.com/arbfn-2025.net/internal/static/errs"
	"gitlab.com/arbfn-2025.net/internal/tcp/connectionmanager"
	"gitlab.com/arbfn-2025.net/internal/tcp/defs"
)

var _ primary.Transport = &TCPTransport{}

type inboundFrame struct {
	src     domain.Address
	payload []byte
	closed  bool
}

// TCPTransport is the master side of the TCP transport. Every accepted
// connection is a rank; frames from all ranks are fanned into one inbox
// that the service loop probes.
type TCPTransport struct {
	address          string
	partition        uint32
	handshakeTimeout time.Duration
	logger           primary.Logger
	listener         net.Listener
	connectionMgr    *connectionmanager.ConnectionManager
	inbox            chan inboundFrame
	pending          *inboundFrame
	lastRank         int64
	stopCh           chan struct{}
	closeOnce        sync.Once
	wg               sync.WaitGroup
}

// TCPTransportOption configures a TCPTransport
type TCPTransportOption func(*TCPTransport)

// WithAddress sets the listen address
func WithAddress(address string) TCPTransportOption {
	return func(s *TCPTransport) {
		s.address = address
	}
}

// WithPartition sets the partition key peers must present
func WithPartition(partition uint32) TCPTransportOption {
	return func(s *TCPTransport) {
		s.partition = partition
	}
}

// WithHandshakeTimeout bounds the wait for the first frame of a connection
func WithHandshakeTimeout(d time.Duration) TCPTransportOption {
	return func(s *TCPTransport) {
		s.handshakeTimeout = d
	}
}

// NewTCPTransport creates a new TCP transport
func NewTCPTransport(logger primary.Logger, options ...TCPTransportOption) *TCPTransport {
	server := &TCPTransport{
		address:          ":9000", // Default address
		partition:        defs.DefaultPartition,
		handshakeTimeout: defs.InitialRegistrationTimeout,
		logger:           logger,
		connectionMgr:    connectionmanager.NewConnectionManager(logger),
		inbox:            make(chan inboundFrame, defs.InboxSize),
		stopCh:           make(chan struct{}),
	}

	// Apply options
	for _, option := range options {
		option(server)
	}

	return server
}

// Start starts listening for workers
func (s *TCPTransport) Start() error {
	var err error
	s.listener, err = net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start TCP transport: %w", err)
	}

	s.logger.Info("TCP transport listening", "address", s.listener.Addr().String(), "partition", s.partition)

	// Accept connections in a goroutine
	s.wg.Add(1)
	go s.acceptConnections()

	return nil
}

// Addr returns the bound listen address
func (s *TCPTransport) Addr() string {
	if s.listener == nil {
		return s.address
	}
	return s.listener.Addr().String()
}

// Probe blocks until a frame or hangup is pending and describes it.
func (s *TCPTransport) Probe(ctx context.Context) (primary.Status, error) {
	for {
		if s.pending != nil {
			if !s.connectionMgr.IsDisconnected(s.pending.src) {
				return primary.Status{
					Source: s.pending.src,
					Count:  len(s.pending.payload),
					Closed: s.pending.closed,
				}, nil
			}
			s.pending = nil
		}

		select {
		case <-ctx.Done():
			return primary.Status{}, ctx.Err()
		case <-s.stopCh:
			return primary.Status{}, errs.ErrTransportClosed
		case f := <-s.inbox:
			s.pending = &f
		}
	}
}

// Receive consumes the frame described by st.
func (s *TCPTransport) Receive(ctx context.Context, st primary.Status) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pending == nil || s.pending.src != st.Source {
		return nil, fmt.Errorf("%w: receive from %d without a matching probe", errs.ErrSizeMismatch, st.Source)
	}

	f := s.pending
	s.pending = nil

	if f.closed {
		return nil, fmt.Errorf("%w: rank %d hung up", errs.ErrPeerGone, f.src)
	}
	if len(f.payload) != st.Count {
		return nil, fmt.Errorf("%w: probed %d bytes from %d, frame holds %d", errs.ErrSizeMismatch, st.Count, f.src, len(f.payload))
	}
	return f.payload, nil
}

// Send writes payload to the worker at dst
func (s *TCPTransport) Send(ctx context.Context, dst domain.Address, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.connectionMgr.Send(dst, s.partition, payload); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrPeerGone, err)
	}
	return nil
}

// Disconnect drops the worker at src
func (s *TCPTransport) Disconnect(src domain.Address) error {
	if s.pending != nil && s.pending.src == src {
		s.pending = nil
	}
	if err := s.connectionMgr.Disconnect(src); err != nil {
		s.logger.Debug("Failed to close dropped connection", "rank", src, "error", err)
	}
	s.logger.Info("Worker disconnected", "rank", src)
	return nil
}

// Close stops accepting, closes every connection and waits for the readers
func (s *TCPTransport) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopCh)

		// Close listener
		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				s.logger.Error("Failed to close listener", "error", err)
			}
		}

		// Close all connections
		s.connectionMgr.CloseAll()
	})
	s.wg.Wait()
	return nil
}

// acceptConnections accepts incoming connections
func (s *TCPTransport) acceptConnections() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
				s.logger.Error("Failed to accept connection", "error", err)
				time.Sleep(defs.ConnectionRetryDelay) // Avoid tight loop on error
				continue
			}
		}

		// Handle connection in a goroutine
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection reads frames from one worker until it hangs up
func (s *TCPTransport) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	// Set initial timeout for the first frame
	_ = conn.SetReadDeadline(time.Now().Add(s.handshakeTimeout))

	first, ok := s.readValid(conn)
	if !ok {
		return
	}
	_ = conn.SetReadDeadline(time.Time{}) // No timeout

	rank := domain.Address(atomic.AddInt64(&s.lastRank, 1))
	s.connectionMgr.RegisterWorker(rank, conn)
	s.logger.Debug("Worker connected", "rank", rank, "remote", conn.RemoteAddr().String())

	payload := first.Payload
	for {
		if !s.push(inboundFrame{src: rank, payload: payload}) {
			return
		}

		f, ok := s.readValid(conn)
		if !ok {
			s.connectionMgr.RemoveWorker(rank)
			if !s.connectionMgr.IsDisconnected(rank) {
				s.push(inboundFrame{src: rank, closed: true})
			}
			return
		}
		payload = f.Payload
	}
}

// readValid reads the next data frame of the local partition; any other
// frame is answered with an error frame and ends the connection.
func (s *TCPTransport) readValid(conn net.Conn) (connectionmanager.Frame, bool) {
	f, err := connectionmanager.ReadFrame(conn)
	if err != nil {
		switch {
		case errors.Is(err, connectionmanager.ErrFrameTooLarge):
			s.logger.Warn("Rejecting connection", "remote", conn.RemoteAddr().String(), "error", err)
			connectionmanager.SendErrorMessage(conn, s.partition, defs.ErrCodeTooLarge, err.Error())
		case errors.Is(err, connectionmanager.ErrFrame):
			s.logger.Warn("Rejecting connection", "remote", conn.RemoteAddr().String(), "error", err)
			connectionmanager.SendErrorMessage(conn, s.partition, defs.ErrCodeBadMagic, err.Error())
		case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		default:
			select {
			case <-s.stopCh:
			default:
				s.logger.Debug("Failed to read frame", "remote", conn.RemoteAddr().String(), "error", err)
			}
		}
		return connectionmanager.Frame{}, false
	}

	if f.Partition != s.partition {
		s.logger.Warn("Rejecting frame from foreign partition", "remote", conn.RemoteAddr().String(), "partition", f.Partition)
		connectionmanager.SendErrorMessage(conn, f.Partition, defs.ErrCodePartitionMismatch,
			fmt.Sprintf("partition %d is not served here", f.Partition))
		return connectionmanager.Frame{}, false
	}
	if f.Kind != defs.FrameData {
		connectionmanager.SendErrorMessage(conn, s.partition, defs.ErrCodeBadFrameKind,
			fmt.Sprintf("unexpected frame kind %d", f.Kind))
		return connectionmanager.Frame{}, false
	}
	return f, true
}

func (s *TCPTransport) push(f inboundFrame) bool {
	select {
	case s.inbox <- f:
		return true
	case <-s.stopCh:
		return false
	}
}
