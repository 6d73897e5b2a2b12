package device

import (
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/pkg/errors"
	"github.com/raihanakbr/voice-agent-client/internal/audio"
	"github.com/rs/zerolog"
)

// PortAudioCapturer opens the default input device through PortAudio.
type PortAudioCapturer struct {
	logger zerolog.Logger
}

func NewPortAudioCapturer(logger zerolog.Logger) *PortAudioCapturer {
	return &PortAudioCapturer{logger: logger}
}

// Open starts a callback stream delivering float32 frames of c.FrameSize
// samples. PortAudio offers no echo cancellation or noise suppression, so
// those requests are only logged.
func (p *PortAudioCapturer) Open(c audio.CaptureConstraints, onFrame func(samples []float32)) (audio.CaptureStream, error) {
	if c.EchoCancellation || c.NoiseSuppression {
		p.logger.Debug().
			Bool("echo_cancellation", c.EchoCancellation).
			Bool("noise_suppression", c.NoiseSuppression).
			Msg("Capture processing not supported by PortAudio, capturing raw input")
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, errors.Wrap(err, "initialize portaudio")
	}

	stream, err := portaudio.OpenDefaultStream(c.Channels, 0, float64(c.SampleRate), c.FrameSize, func(in []float32) {
		frame := make([]float32, len(in))
		copy(frame, in)
		onFrame(frame)
	})
	if err != nil {
		portaudio.Terminate()
		return nil, errors.Wrap(err, "open input stream")
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, errors.Wrap(err, "start input stream")
	}

	p.logger.Info().Int("sample_rate", c.SampleRate).Int("frame_size", c.FrameSize).Msg("Microphone opened")
	return &portAudioStream{stream: stream}, nil
}

type portAudioStream struct {
	once   sync.Once
	stream *portaudio.Stream
}

// Close stops the stream, closes it and releases PortAudio.
func (s *portAudioStream) Close() error {
	var err error
	s.once.Do(func() {
		if stopErr := s.stream.Stop(); stopErr != nil {
			err = stopErr
		}
		if closeErr := s.stream.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		portaudio.Terminate()
	})
	return err
}
