package tcp

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"gitlab.com/arbfn-2025.net/internal/core/ports/primary"
	"gitlab.com/arbfn-2025.net/internal/static/errs"
	"gitlab.com/arbfn-2025.net/internal/tcp/connectionmanager"
	"gitlab.com/arbfn-2025.net/internal/tcp/defs"
)

var _ primary.Link = &Client{}

// Client is a worker's connection to the master
type Client struct {
	conn      net.Conn
	partition uint32
	writeMu   sync.Mutex
	readMu    sync.Mutex
}

// Dial connects to the master at addr within partition
func Dial(ctx context.Context, addr string, partition uint32) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to master at %s: %w", addr, err)
	}
	return &Client{conn: conn, partition: partition}, nil
}

// Send writes one message to the master
func (c *Client) Send(ctx context.Context, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return c.withContext(ctx, c.conn.SetWriteDeadline, func() error {
		return connectionmanager.WriteFrame(c.conn, defs.FrameData, c.partition, payload)
	})
}

// Recv reads the next message from the master
func (c *Client) Recv(ctx context.Context) ([]byte, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	var f connectionmanager.Frame
	err := c.withContext(ctx, c.conn.SetReadDeadline, func() error {
		var err error
		f, err = connectionmanager.ReadFrame(c.conn)
		return err
	})
	if err != nil {
		return nil, err
	}

	if f.Kind == defs.FrameError {
		var data defs.ErrorData
		if err := sonic.Unmarshal(f.Payload, &data); err != nil {
			return nil, fmt.Errorf("%w: unreadable error frame", errs.ErrPeerGone)
		}
		return nil, fmt.Errorf("%w: master rejected connection (%d): %s", errs.ErrPeerGone, data.Code, data.Message)
	}
	return f.Payload, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// withContext runs io with the deadline of ctx applied and aborts it when ctx is cancelled.
func (c *Client) withContext(ctx context.Context, setDeadline func(time.Time) error, io func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline, _ := ctx.Deadline()
	_ = setDeadline(deadline)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case <-ctx.Done():
			_ = setDeadline(time.Unix(1, 0))
		case <-stop:
		}
	}()

	err := io()
	close(stop)
	<-done
	_ = setDeadline(time.Time{})

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}
