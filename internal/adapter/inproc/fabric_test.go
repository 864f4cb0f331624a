package inproc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/arbfn-2025.net/internal/static/errs"
)

func TestProbeDoesNotConsume(t *testing.T) {
	fabric := NewFabric()
	master, err := fabric.Listen(56789)
	require.NoError(t, err)
	defer master.Close()

	w, err := fabric.Dial(56789)
	require.NoError(t, err)
	require.NoError(t, w.Send(context.Background(), []byte(`{"type":"register"}`)))

	ctx := context.Background()
	st1, err := master.Probe(ctx)
	require.NoError(t, err)
	st2, err := master.Probe(ctx)
	require.NoError(t, err)
	assert.Equal(t, st1, st2)
	assert.Equal(t, w.Rank(), st1.Source)
	assert.Equal(t, 19, st1.Count)

	payload, err := master.Receive(ctx, st1)
	require.NoError(t, err)
	assert.Equal(t, `{"type":"register"}`, string(payload))
}

func TestReceiveSizeMismatch(t *testing.T) {
	fabric := NewFabric()
	master, _ := fabric.Listen(1)
	w, _ := fabric.Dial(1)
	require.NoError(t, w.Send(context.Background(), []byte("abc")))

	st, err := master.Probe(context.Background())
	require.NoError(t, err)
	st.Count = 5
	_, err = master.Receive(context.Background(), st)
	assert.ErrorIs(t, err, errs.ErrSizeMismatch)
}

func TestPartitionsAreIsolated(t *testing.T) {
	fabric := NewFabric()
	a, _ := fabric.Listen(1)
	b, _ := fabric.Listen(2)

	wa, _ := fabric.Dial(1)
	require.NoError(t, wa.Send(context.Background(), []byte("x")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := b.Probe(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	st, err := a.Probe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, wa.Rank(), st.Source)

	_, err = fabric.Dial(3)
	assert.Error(t, err)
	_, err = fabric.Listen(1)
	assert.Error(t, err)
}

func TestSendReachesExactlyOneWorker(t *testing.T) {
	fabric := NewFabric()
	master, _ := fabric.Listen(1)
	w1, _ := fabric.Dial(1)
	w2, _ := fabric.Dial(1)

	require.NoError(t, master.Send(context.Background(), w2.Rank(), []byte("hi")))

	got, err := w2.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hi", string(got))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = w1.Recv(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHangupAndDisconnect(t *testing.T) {
	fabric := NewFabric()
	master, _ := fabric.Listen(1)
	w1, _ := fabric.Dial(1)
	w2, _ := fabric.Dial(1)

	require.NoError(t, w1.Close())
	st, err := master.Probe(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Closed)
	_, err = master.Receive(context.Background(), st)
	assert.ErrorIs(t, err, errs.ErrPeerGone)

	require.NoError(t, w2.Send(context.Background(), []byte("late")))
	require.NoError(t, master.Disconnect(w2.Rank()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = master.Probe(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.ErrorIs(t, master.Send(context.Background(), w2.Rank(), []byte("x")), errs.ErrPeerGone)
	_, err = w2.Recv(context.Background())
	assert.ErrorIs(t, err, errs.ErrPeerGone)
}
