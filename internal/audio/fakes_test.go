package audio

import (
	"time"

	"github.com/pkg/errors"
)

type fakeClip struct {
	frames int
}

func (c fakeClip) Frames() int { return c.frames }

func (c fakeClip) Duration() time.Duration {
	return PCMDuration(c.frames*2, DefaultSampleRate, DefaultChannels, DefaultBitDepth)
}

// fakeDecoder reads the canonical header and yields one frame per two bytes.
type fakeDecoder struct {
	calls int
	err   error
}

func (d *fakeDecoder) Decode(container []byte) (Clip, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	n, err := HeaderDataLength(container)
	if err != nil {
		return nil, err
	}
	return fakeClip{frames: n / 2}, nil
}

type fakePlayer struct {
	played []Clip
	gains  []float64
	dones  []func(error)
	err    error
}

func (p *fakePlayer) Play(clip Clip, gain float64, done func(error)) error {
	if p.err != nil {
		return p.err
	}
	p.played = append(p.played, clip)
	p.gains = append(p.gains, gain)
	p.dones = append(p.dones, done)
	return nil
}

type fakeStream struct {
	closed int
}

func (s *fakeStream) Close() error {
	s.closed++
	return nil
}

type fakeCapturer struct {
	opened      int
	constraints CaptureConstraints
	onFrame     func([]float32)
	stream      *fakeStream
	err         error
}

func (c *fakeCapturer) Open(cc CaptureConstraints, onFrame func([]float32)) (CaptureStream, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.opened++
	c.constraints = cc
	c.onFrame = onFrame
	c.stream = &fakeStream{}
	return c.stream, nil
}

var errDevice = errors.New("device busy")
