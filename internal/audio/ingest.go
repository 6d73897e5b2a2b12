package audio

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Microphone capture format expected by the server.
const (
	CaptureSampleRate = 16000
	CaptureChannels   = 1
	CaptureFrameSize  = 4096
)

// CaptureConstraints is what the ingest pipeline asks of the platform.
// Backends that cannot honour EchoCancellation or NoiseSuppression log it
// and capture anyway.
type CaptureConstraints struct {
	SampleRate       int
	Channels         int
	FrameSize        int
	EchoCancellation bool
	NoiseSuppression bool
}

// DefaultCaptureConstraints returns 16 kHz mono 4096-sample frames with echo
// cancellation and noise suppression requested.
func DefaultCaptureConstraints() CaptureConstraints {
	return CaptureConstraints{
		SampleRate:       CaptureSampleRate,
		Channels:         CaptureChannels,
		FrameSize:        CaptureFrameSize,
		EchoCancellation: true,
		NoiseSuppression: true,
	}
}

// CaptureStream is an open microphone. Close disconnects the audio graph,
// halts capture and releases the device.
type CaptureStream interface {
	Close() error
}

// Capturer opens the microphone. onFrame is invoked once per captured frame
// from the capture goroutine; the slice is owned by the callee.
type Capturer interface {
	Open(c CaptureConstraints, onFrame func(samples []float32)) (CaptureStream, error)
}

// IngestStats counts outbound microphone frames.
type IngestStats struct {
	FramesSent    int64 `json:"frames_sent"`
	FramesDropped int64 `json:"frames_dropped"`
}

// IngestPipeline streams microphone frames to the server as raw PCM16.
// Frames that cannot be sent immediately are dropped, never queued.
type IngestPipeline struct {
	capturer    Capturer
	constraints CaptureConstraints
	logger      zerolog.Logger

	stream    CaptureStream
	recording bool
	stats     IngestStats
}

type IngestOption func(*IngestPipeline)

func WithIngestLogger(l zerolog.Logger) IngestOption {
	return func(p *IngestPipeline) { p.logger = l }
}

func WithConstraints(c CaptureConstraints) IngestOption {
	return func(p *IngestPipeline) { p.constraints = c }
}

func NewIngestPipeline(capturer Capturer, opts ...IngestOption) *IngestPipeline {
	p := &IngestPipeline{
		capturer:    capturer,
		constraints: DefaultCaptureConstraints(),
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start opens the microphone. It fails with ErrNotConnected unless the
// session is ready; starting twice is a no-op.
func (p *IngestPipeline) Start(ready bool, onFrame func(samples []float32)) error {
	if p.recording {
		return nil
	}
	if !ready {
		return ErrNotConnected
	}

	stream, err := p.capturer.Open(p.constraints, onFrame)
	if err != nil {
		p.logger.Error().Err(err).Msg("Failed to open microphone")
		return errors.Wrap(ErrCaptureFailure, err.Error())
	}

	p.stream = stream
	p.recording = true
	p.logger.Info().
		Int("sample_rate", p.constraints.SampleRate).
		Int("frame_size", p.constraints.FrameSize).
		Msg("Recording started")
	return nil
}

// HandleFrame converts a captured frame and sends it when recording and the
// channel is open. It reports whether the frame was sent.
func (p *IngestPipeline) HandleFrame(samples []float32, channelOpen bool, send func([]byte) error) bool {
	if !p.recording || !channelOpen {
		p.stats.FramesDropped++
		return false
	}

	if err := send(PCM16Bytes(FloatToPCM16(samples))); err != nil {
		p.logger.Debug().Err(err).Msg("Dropping microphone frame")
		p.stats.FramesDropped++
		return false
	}
	p.stats.FramesSent++
	return true
}

// Stop releases the microphone. It reports whether capture was running.
func (p *IngestPipeline) Stop() bool {
	if !p.recording {
		return false
	}
	p.recording = false

	if p.stream != nil {
		if err := p.stream.Close(); err != nil {
			p.logger.Warn().Err(err).Msg("Error closing microphone stream")
		}
		p.stream = nil
	}

	p.logger.Info().
		Int64("frames_sent", p.stats.FramesSent).
		Int64("frames_dropped", p.stats.FramesDropped).
		Msg("Recording stopped")
	return true
}

func (p *IngestPipeline) Recording() bool { return p.recording }

func (p *IngestPipeline) Stats() IngestStats { return p.stats }
