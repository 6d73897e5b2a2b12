package audio

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/raihanakbr/voice-agent-client/internal/ui"
	"github.com/rs/zerolog"
)

const (
	// PlaybackGain is the fixed output gain applied to synthesized speech.
	PlaybackGain = 0.7

	// TeardownDelay is how long a completed buffer stays live after its
	// completion has been handled.
	TeardownDelay = time.Second

	// Speaker self-test tone.
	ToneFrequency = 440
	ToneDuration  = 500 * time.Millisecond
	ToneGain      = 0.1
)

// Clip is decoded audio ready for playback.
type Clip interface {
	// Frames is the decoded length in sample frames.
	Frames() int
	Duration() time.Duration
}

// Decoder turns a complete audio container into a Clip. It may be slow and is
// called off the control loop.
type Decoder interface {
	Decode(container []byte) (Clip, error)
}

// Player plays a clip once. done is called exactly once when playback ends,
// possibly from another goroutine.
type Player interface {
	Play(clip Clip, gain float64, done func(error)) error
}

// ToneSource synthesizes a sine tone of freq Hz lasting d.
type ToneSource interface {
	Tone(freq int, d time.Duration) (Clip, error)
}

// Attempt records one completion handled by the output pipeline.
type Attempt struct {
	Turn      int           `json:"turn"`
	Chunks    int           `json:"chunks"`
	Duration  time.Duration `json:"duration,omitempty"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// OutputPipeline turns completed TurnBuffers into audible speech. Prepare,
// Finish and PlaybackEnded must be called from the control loop; Decode may
// run anywhere.
type OutputPipeline struct {
	decoder  Decoder
	player   Player
	reporter ui.Reporter
	logger   zerolog.Logger
	gain     float64
	now      func() time.Time

	attempts []Attempt
	playing  bool
	playID   uint64
}

type OutputOption func(*OutputPipeline)

func WithOutputLogger(l zerolog.Logger) OutputOption {
	return func(p *OutputPipeline) { p.logger = l }
}

func WithGain(g float64) OutputOption {
	return func(p *OutputPipeline) { p.gain = g }
}

func WithClock(now func() time.Time) OutputOption {
	return func(p *OutputPipeline) { p.now = now }
}

// NewOutputPipeline creates a pipeline that decodes through decoder and plays
// through player.
func NewOutputPipeline(decoder Decoder, player Player, reporter ui.Reporter, opts ...OutputOption) *OutputPipeline {
	p := &OutputPipeline{
		decoder:  decoder,
		player:   player,
		reporter: reporter,
		logger:   zerolog.Nop(),
		gain:     PlaybackGain,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Prepare validates a completed buffer and assembles its container.
func (p *OutputPipeline) Prepare(buf *TurnBuffer) ([]byte, error) {
	logger := p.logger.With().Int("turn", buf.Turn()).Int("chunks", buf.Len()).Logger()

	if buf.Len() == 0 {
		logger.Error().Msg("No audio chunks to process")
		p.reporter.SetStatus(ui.StatusNoAudio)
		p.record(buf, 0, ErrEmptyAudioTurn)
		return nil, ErrEmptyAudioTurn
	}

	container, pcmLen, err := Assemble(buf.Fragments())
	if err != nil {
		logger.Error().Err(err).Msg("Failed to assemble turn audio")
		p.fail(buf, err)
		return nil, err
	}

	logger.Debug().Int("pcm_bytes", pcmLen).Msg("Assembled turn audio")
	p.reporter.SetStatus(ui.StatusProcessingAudio)
	return container, nil
}

// Decode runs the platform decoder on an assembled container.
func (p *OutputPipeline) Decode(container []byte) (Clip, error) {
	clip, err := p.decoder.Decode(container)
	if err != nil {
		return nil, errors.Wrap(ErrDecodeFailure, err.Error())
	}
	if clip == nil || clip.Frames() == 0 {
		return nil, errors.Wrap(ErrDecodeFailure, "empty decoded buffer")
	}
	return clip, nil
}

// Finish handles the outcome of Decode. On success the clip is played once;
// onEnd receives the playback id when it stops.
func (p *OutputPipeline) Finish(buf *TurnBuffer, clip Clip, decodeErr error, onEnd func(id uint64, err error)) error {
	logger := p.logger.With().Int("turn", buf.Turn()).Logger()

	if decodeErr != nil {
		logger.Error().Err(decodeErr).Msg("Audio processing failed")
		p.fail(buf, decodeErr)
		return decodeErr
	}

	logger.Info().Dur("duration", clip.Duration()).Msg("Decode succeeded")
	p.record(buf, clip.Duration(), nil)

	p.playID++
	id := p.playID
	p.playing = true
	p.reporter.SetStatus(ui.StatusPlaying)

	if err := p.player.Play(clip, p.gain, func(err error) { onEnd(id, err) }); err != nil {
		p.playing = false
		logger.Error().Err(err).Msg("Playback failed to start")
		p.reporter.SetStatus(ui.StatusPlaybackError)
		return errors.Wrap(err, "start playback")
	}

	p.reporter.SystemMessage(fmt.Sprintf("Playing: %.1fs (%d chunks)", clip.Duration().Seconds(), buf.Len()))
	return nil
}

// PlaybackEnded handles the end of playback id. Ready is reported unless the
// user is already recording the next turn. It reports whether id was the
// current playback.
func (p *OutputPipeline) PlaybackEnded(id uint64, err error, recording bool) bool {
	if id != p.playID {
		return false
	}
	p.playing = false

	if err != nil {
		p.logger.Error().Err(err).Msg("Audio playback error")
		p.reporter.SetStatus(ui.StatusPlaybackError)
		return true
	}

	p.logger.Debug().Msg("Audio playback completed")
	if !recording {
		p.reporter.SetStatus(ui.StatusReady)
	}
	return true
}

// Playing reports whether a clip is currently playing.
func (p *OutputPipeline) Playing() bool { return p.playing }

// Attempts returns a copy of the completion log.
func (p *OutputPipeline) Attempts() []Attempt {
	return append([]Attempt(nil), p.attempts...)
}

func (p *OutputPipeline) fail(buf *TurnBuffer, err error) {
	p.reporter.SetStatus(ui.StatusDecodeFailed)
	p.reporter.SystemMessage(fmt.Sprintf("Audio failed: %s", err.Error()))
	p.record(buf, 0, err)
}

func (p *OutputPipeline) record(buf *TurnBuffer, d time.Duration, err error) {
	a := Attempt{
		Turn:      buf.Turn(),
		Chunks:    buf.Len(),
		Duration:  d,
		Success:   err == nil,
		Timestamp: p.now(),
	}
	if err != nil {
		a.Error = err.Error()
	}
	p.attempts = append(p.attempts, a)
}
