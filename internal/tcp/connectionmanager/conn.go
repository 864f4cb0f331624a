package connectionmanager

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/bytedance/sonic"

	"gitlab.com/arbfn-2025.net/internal/core/ports/primary"
	"gitlab.com/arbfn-2025.net/internal/domain"
	"gitlab.com/arbfn-2025.net/internal/tcp/defs"
)

var (
	// ErrFrame is returned by ReadFrame for headers that cannot be accepted.
	ErrFrame = errors.New("invalid frame")
	// ErrFrameTooLarge is returned by ReadFrame for payloads above defs.MaxPayloadSize.
	ErrFrameTooLarge = errors.New("frame too large")
)

// Frame is one decoded transport frame
type Frame struct {
	Kind      byte
	Partition uint32
	Payload   []byte
}

type peer struct {
	conn    net.Conn
	writeMu sync.Mutex
}

// ConnectionManager tracks worker connections by rank
type ConnectionManager struct {
	connections  map[domain.Address]*peer
	disconnected map[domain.Address]struct{}
	connMutex    sync.RWMutex
	Logger       primary.Logger
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager(logger primary.Logger) *ConnectionManager {
	return &ConnectionManager{
		connections:  make(map[domain.Address]*peer),
		disconnected: make(map[domain.Address]struct{}),
		Logger:       logger,
	}
}

// RegisterWorker registers a worker connection under its rank
func (cm *ConnectionManager) RegisterWorker(rank domain.Address, conn net.Conn) {
	cm.connMutex.Lock()
	defer cm.connMutex.Unlock()
	cm.connections[rank] = &peer{conn: conn}
}

// RemoveWorker forgets a worker connection without closing it
func (cm *ConnectionManager) RemoveWorker(rank domain.Address) {
	cm.connMutex.Lock()
	defer cm.connMutex.Unlock()
	delete(cm.connections, rank)
}

// Disconnect closes a worker connection and discards any further traffic from it
func (cm *ConnectionManager) Disconnect(rank domain.Address) error {
	cm.connMutex.Lock()
	p, ok := cm.connections[rank]
	delete(cm.connections, rank)
	cm.disconnected[rank] = struct{}{}
	cm.connMutex.Unlock()

	if !ok {
		return nil
	}
	return p.conn.Close()
}

// IsDisconnected reports whether rank was dropped by Disconnect
func (cm *ConnectionManager) IsDisconnected(rank domain.Address) bool {
	cm.connMutex.RLock()
	defer cm.connMutex.RUnlock()
	_, ok := cm.disconnected[rank]
	return ok
}

// Send writes a data frame to the worker at rank
func (cm *ConnectionManager) Send(rank domain.Address, partition uint32, payload []byte) error {
	cm.connMutex.RLock()
	p, ok := cm.connections[rank]
	cm.connMutex.RUnlock()
	if !ok {
		return fmt.Errorf("no connection for rank %d", rank)
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return WriteFrame(p.conn, defs.FrameData, partition, payload)
}

// CloseAll closes every worker connection
func (cm *ConnectionManager) CloseAll() {
	cm.connMutex.Lock()
	defer cm.connMutex.Unlock()

	for rank, p := range cm.connections {
		if err := p.conn.Close(); err != nil {
			cm.Logger.Debug("Failed to close connection", "rank", rank, "error", err)
		}
		delete(cm.connections, rank)
	}
}

// SendErrorMessage sends an error frame to a peer
func SendErrorMessage(conn net.Conn, partition uint32, code int, message string) {
	errorBytes, err := sonic.Marshal(defs.ErrorData{Code: code, Message: message})
	if err != nil {
		// Can't do much if marshaling fails
		return
	}

	// Ignore errors here as the connection might be closing
	_ = WriteFrame(conn, defs.FrameError, partition, errorBytes)
}

// WriteFrame writes header and payload in a single write
func WriteFrame(w io.Writer, kind byte, partition uint32, payload []byte) error {
	buf := make([]byte, defs.HeaderSize+len(payload))
	binary.BigEndian.PutUint16(buf[0:2], defs.MagicNumber)
	buf[2] = kind
	buf[3] = 0 // Reserved
	binary.BigEndian.PutUint32(buf[4:8], partition)
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(payload)))
	copy(buf[defs.HeaderSize:], payload)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// ReadFrame reads one frame. The payload is exactly the length announced by the header.
func ReadFrame(r io.Reader) (Frame, error) {
	header := make([]byte, defs.HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return Frame{}, err
	}

	magic := binary.BigEndian.Uint16(header[0:2])
	if magic != defs.MagicNumber {
		return Frame{}, fmt.Errorf("%w: invalid magic number %x", ErrFrame, magic)
	}
	f := Frame{
		Kind:      header[2],
		Partition: binary.BigEndian.Uint32(header[4:8]),
	}
	length := binary.BigEndian.Uint32(header[8:12])
	if length > defs.MaxPayloadSize {
		return Frame{}, fmt.Errorf("%w: payload of %d bytes exceeds %d", ErrFrameTooLarge, length, defs.MaxPayloadSize)
	}

	f.Payload = make([]byte, length)
	if _, err := io.ReadFull(r, f.Payload); err != nil {
		return Frame{}, err
	}
	return f, nil
}
