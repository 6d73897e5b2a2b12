package device

import (
	"bytes"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/generators"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
	"github.com/pkg/errors"
	"github.com/raihanakbr/voice-agent-client/internal/audio"
	"github.com/rs/zerolog"
)

// Clip is decoded audio held in memory.
type Clip struct {
	buf *beep.Buffer
}

func (c *Clip) Frames() int { return c.buf.Len() }

func (c *Clip) Duration() time.Duration {
	return c.buf.Format().SampleRate.D(c.buf.Len())
}

// WAVDecoder decodes RIFF/WAVE containers.
type WAVDecoder struct{}

func (WAVDecoder) Decode(container []byte) (audio.Clip, error) {
	streamer, format, err := wav.Decode(bytes.NewReader(container))
	if err != nil {
		return nil, errors.Wrap(err, "decode wav")
	}
	defer streamer.Close()

	buf := beep.NewBuffer(format)
	buf.Append(streamer)
	if err := streamer.Err(); err != nil {
		return nil, errors.Wrap(err, "read wav samples")
	}
	return &Clip{buf: buf}, nil
}

// Speaker plays clips on the default output device. The device is opened on
// first use at a fixed rate; clips at other rates are resampled.
type Speaker struct {
	rate   beep.SampleRate
	logger zerolog.Logger

	once    sync.Once
	initErr error
}

func NewSpeaker(logger zerolog.Logger) *Speaker {
	return &Speaker{rate: beep.SampleRate(audio.DefaultSampleRate), logger: logger}
}

func (s *Speaker) init() error {
	s.once.Do(func() {
		s.initErr = speaker.Init(s.rate, s.rate.N(time.Second/10))
		if s.initErr == nil {
			s.logger.Info().Int("sample_rate", int(s.rate)).Msg("Speaker initialized")
		}
	})
	return errors.Wrap(s.initErr, "initialize speaker")
}

// Play starts clip at gain (1 is unchanged) and returns immediately. done
// runs on its own goroutine when playback finishes.
func (s *Speaker) Play(clip audio.Clip, gain float64, done func(error)) error {
	c, ok := clip.(*Clip)
	if !ok {
		return errors.Errorf("unsupported clip type %T", clip)
	}
	if err := s.init(); err != nil {
		return err
	}

	var stream beep.Streamer = c.buf.Streamer(0, c.buf.Len())
	if from := c.buf.Format().SampleRate; from != s.rate {
		stream = beep.Resample(4, from, s.rate, stream)
	}

	speaker.Play(beep.Seq(
		&effects.Gain{Streamer: stream, Gain: gain - 1},
		beep.Callback(func() { go done(nil) }),
	))
	return nil
}

// Tone renders a sine wave at the speaker rate.
func (s *Speaker) Tone(freq int, d time.Duration) (audio.Clip, error) {
	tone, err := generators.SinTone(s.rate, freq)
	if err != nil {
		return nil, errors.Wrapf(err, "generate %d Hz tone", freq)
	}
	buf := beep.NewBuffer(beep.Format{SampleRate: s.rate, NumChannels: 2, Precision: 2})
	buf.Append(beep.Take(s.rate.N(d), tone))
	return &Clip{buf: buf}, nil
}

// Stop silences anything still playing.
func (s *Speaker) Stop() {
	speaker.Clear()
}
