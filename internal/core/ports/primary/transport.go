package primary

import (
	"context"

	"gitlab.com/arbfn-2025.net/internal/domain"
)

// Status describes the next pending inbound message without consuming it.
type Status struct {
	Source domain.Address
	Count  int
	// Closed is set when the pending event is the source hanging up.
	Closed bool
}

// Transport is the master side of a rank-addressed, partitioned channel.
type Transport interface {
	// Probe blocks until a message is pending and reports its source and exact size.
	Probe(ctx context.Context) (Status, error)
	// Receive consumes exactly the message described by a previous Probe.
	Receive(ctx context.Context, st Status) ([]byte, error)
	// Send delivers payload to exactly one destination.
	Send(ctx context.Context, dst domain.Address, payload []byte) error
	// Disconnect drops a peer; pending and future traffic from it is discarded.
	Disconnect(src domain.Address) error
	Close() error
}

// Link is the worker side of the channel: a single connection to the master.
type Link interface {
	Send(ctx context.Context, payload []byte) error
	Recv(ctx context.Context) ([]byte, error)
	Close() error
}

// MessageHandler handles one decoded message type on the master
type MessageHandler interface {
	HandleMessage(ctx context.Context, src domain.Address, msg *domain.Message) error
}

// MessagePublisher encodes and sends a reply to a worker
type MessagePublisher interface {
	PublishMessage(ctx context.Context, dst domain.Address, msg *domain.Message) error
}
