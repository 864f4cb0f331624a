package worker

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/arbfn-2025.net/internal/adapter/inproc"
	"gitlab.com/arbfn-2025.net/internal/adapter/logging"
	"gitlab.com/arbfn-2025.net/internal/codec"
	"gitlab.com/arbfn-2025.net/internal/domain"
	"gitlab.com/arbfn-2025.net/internal/static/errs"
)

// scriptedMaster answers each inbound message with the replies produced by reply.
func scriptedMaster(t *testing.T, reply func(msg *domain.Message) []*domain.Message) (*inproc.Fabric, func()) {
	t.Helper()
	fabric := inproc.NewFabric()
	master, err := fabric.Listen(1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			st, err := master.Probe(ctx)
			if err != nil {
				return
			}
			payload, err := master.Receive(ctx, st)
			if err != nil {
				continue
			}
			msg, err := codec.Decode(payload)
			if err != nil {
				continue
			}
			for _, out := range reply(msg) {
				raw, _ := codec.Encode(out)
				_ = master.Send(ctx, st.Source, raw)
			}
		}
	}()

	return fabric, func() {
		cancel()
		<-done
		_ = master.Close()
	}
}

func TestWorkerRegisterInterchangeDeregister(t *testing.T) {
	var seen []*domain.Message
	deregistered := make(chan struct{})
	fabric, stop := scriptedMaster(t, func(msg *domain.Message) []*domain.Message {
		seen = append(seen, msg)
		switch msg.Type {
		case domain.MsgDeregister:
			close(deregistered)
		case domain.MsgRegister:
			return []*domain.Message{domain.NewAck(domain.UIDOf(1))}
		case domain.MsgRequest:
			fixes := make([]domain.AtomCorrection, len(msg.Forces))
			for i, f := range msg.Forces {
				fixes[i] = domain.AtomCorrection{DFX: -f.FX}
			}
			return []*domain.Message{domain.NewWaiting(), domain.NewWaiting(), domain.NewResponse(msg.UID, fixes)}
		}
		return nil
	})

	link, err := fabric.Dial(1)
	require.NoError(t, err)
	w := NewWorker(link, logging.NewNopLogger(), WithMaxDelay(time.Second))
	ctx := context.Background()

	uid, err := w.Register(ctx)
	require.NoError(t, err)
	require.NotNil(t, uid)
	assert.Equal(t, uint64(1), *uid)

	fixes, err := w.Interchange(ctx, []domain.AtomForce{{FX: 2}, {FX: -3}})
	require.NoError(t, err)
	assert.Equal(t, []domain.AtomCorrection{{DFX: -2}, {DFX: 3}}, fixes)
	assert.Equal(t, uint64(2), w.Waits())

	require.NoError(t, w.Deregister(ctx))
	<-deregistered
	stop()

	require.Len(t, seen, 3)
	assert.Equal(t, domain.MsgDeregister, seen[2].Type)
	assert.Equal(t, uint64(1), *seen[2].UID)
	assert.Equal(t, 1000.0, seen[1].ExpectResponse)
}

func TestWorkerRegisterTimesOut(t *testing.T) {
	fabric, stop := scriptedMaster(t, func(*domain.Message) []*domain.Message { return nil })
	defer stop()

	link, _ := fabric.Dial(1)
	w := NewWorker(link, logging.NewNopLogger(), WithAckTimeout(20*time.Millisecond))

	_, err := w.Register(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWorkerRejectsShortResponse(t *testing.T) {
	fabric, stop := scriptedMaster(t, func(msg *domain.Message) []*domain.Message {
		if msg.Type == domain.MsgRegister {
			return []*domain.Message{domain.NewAck(nil)}
		}
		return []*domain.Message{domain.NewResponse(nil, nil)}
	})
	defer stop()

	link, _ := fabric.Dial(1)
	w := NewWorker(link, logging.NewNopLogger())
	uid, err := w.Register(context.Background())
	require.NoError(t, err)
	assert.Nil(t, uid)

	_, err = w.Interchange(context.Background(), []domain.AtomForce{{FX: 1}})
	assert.ErrorIs(t, err, errs.ErrProtocolViolation)
}

func TestInterchangeRequiresRegistration(t *testing.T) {
	fabric, stop := scriptedMaster(t, func(*domain.Message) []*domain.Message { return nil })
	defer stop()

	link, _ := fabric.Dial(1)
	w := NewWorker(link, logging.NewNopLogger())
	_, err := w.Interchange(context.Background(), nil)
	assert.Error(t, err)
}

func TestSimulateRunsEveryStep(t *testing.T) {
	requests := 0
	fabric, stop := scriptedMaster(t, func(msg *domain.Message) []*domain.Message {
		switch msg.Type {
		case domain.MsgRegister:
			return []*domain.Message{domain.NewAck(domain.UIDOf(1))}
		case domain.MsgRequest:
			requests++
			return []*domain.Message{domain.NewResponse(msg.UID, make([]domain.AtomCorrection, len(msg.Forces)))}
		}
		return nil
	})

	link, _ := fabric.Dial(1)
	w := NewWorker(link, logging.NewNopLogger())
	require.NoError(t, w.Simulate(context.Background(), 8, 25, rand.New(rand.NewSource(1))))
	stop()

	assert.Equal(t, 25, requests)
}
