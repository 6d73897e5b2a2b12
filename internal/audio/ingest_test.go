package audio

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestRequiresReadySession(t *testing.T) {
	c := &fakeCapturer{}
	p := NewIngestPipeline(c)

	err := p.Start(false, func([]float32) {})
	require.ErrorIs(t, err, ErrNotConnected)
	assert.Zero(t, c.opened)
	assert.False(t, p.Recording())
}

func TestIngestRequestsCaptureConstraints(t *testing.T) {
	c := &fakeCapturer{}
	p := NewIngestPipeline(c)

	require.NoError(t, p.Start(true, func([]float32) {}))
	assert.True(t, p.Recording())
	assert.Equal(t, 16000, c.constraints.SampleRate)
	assert.Equal(t, 1, c.constraints.Channels)
	assert.Equal(t, 4096, c.constraints.FrameSize)
	assert.True(t, c.constraints.EchoCancellation)
	assert.True(t, c.constraints.NoiseSuppression)

	require.NoError(t, p.Start(true, func([]float32) {}))
	assert.Equal(t, 1, c.opened, "second start is a no-op")
}

func TestIngestCaptureError(t *testing.T) {
	p := NewIngestPipeline(&fakeCapturer{err: errDevice})

	err := p.Start(true, func([]float32) {})
	require.True(t, errors.Is(err, ErrCaptureFailure))
	assert.False(t, p.Recording())
}

func TestIngestSendsRawPCM16Frames(t *testing.T) {
	p := NewIngestPipeline(&fakeCapturer{})
	require.NoError(t, p.Start(true, func([]float32) {}))

	var sent [][]byte
	send := func(b []byte) error {
		sent = append(sent, b)
		return nil
	}

	assert.True(t, p.HandleFrame([]float32{0, 1, -1}, true, send))
	require.Len(t, sent, 1)
	assert.Equal(t, []byte{0x00, 0x00, 0xff, 0x7f, 0x00, 0x80}, sent[0])
	assert.Equal(t, int64(1), p.Stats().FramesSent)
}

func TestIngestDropsFramesWhenChannelNotOpen(t *testing.T) {
	p := NewIngestPipeline(&fakeCapturer{})
	require.NoError(t, p.Start(true, func([]float32) {}))

	calls := 0
	send := func([]byte) error {
		calls++
		return errors.New("closed")
	}

	assert.False(t, p.HandleFrame([]float32{0.1}, false, send))
	assert.Zero(t, calls)
	assert.False(t, p.HandleFrame([]float32{0.1}, true, send))
	assert.Equal(t, 1, calls)
	assert.Equal(t, int64(2), p.Stats().FramesDropped)
}

func TestIngestStopIsIdempotent(t *testing.T) {
	c := &fakeCapturer{}
	p := NewIngestPipeline(c)
	require.NoError(t, p.Start(true, func([]float32) {}))

	assert.True(t, p.Stop())
	assert.False(t, p.Stop())
	assert.Equal(t, 1, c.stream.closed)

	assert.False(t, p.HandleFrame([]float32{0.2}, true, func([]byte) error { return nil }),
		"frames delivered after stop are dropped")
}
