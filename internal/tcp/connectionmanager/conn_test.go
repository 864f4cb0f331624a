package connectionmanager

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/arbfn-2025.net/internal/tcp/defs"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte(`{"type":"register"}`)
	require.NoError(t, WriteFrame(&buf, defs.FrameData, defs.DefaultPartition, payload))
	assert.Equal(t, defs.HeaderSize+len(payload), buf.Len())

	f, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, defs.FrameData, f.Kind)
	assert.Equal(t, defs.DefaultPartition, f.Partition)
	assert.Equal(t, payload, f.Payload)
}

func TestEmptyFrame(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, defs.FrameData, 1, nil))

	f, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Empty(t, f.Payload)
}

func TestReadFrameRejectsBadMagic(t *testing.T) {
	raw := make([]byte, defs.HeaderSize)
	raw[0], raw[1] = 0xBE, 0xEF
	_, err := ReadFrame(bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrFrame)
}

func TestReadFrameRejectsOversizedPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, defs.FrameData, 1, nil))
	raw := buf.Bytes()
	raw[8], raw[9], raw[10], raw[11] = 0xFF, 0xFF, 0xFF, 0xFF

	_, err := ReadFrame(bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
	assert.NotErrorIs(t, err, ErrFrame)
}
