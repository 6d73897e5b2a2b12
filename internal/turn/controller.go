// Package turn tracks the state of the conversation one turn at a time:
// transcripts, streamed response text and the audio buffer of the turn
// currently being spoken back.
package turn

import (
	"github.com/raihanakbr/voice-agent-client/internal/audio"
	"github.com/raihanakbr/voice-agent-client/internal/ui"
	"github.com/rs/zerolog"
)

// Phase is the position of the current turn in its lifecycle.
type Phase int

const (
	Idle Phase = iota
	Listening
	Finalized
	Thinking
	Responding
	AudioStreaming
	Playing
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	case Finalized:
		return "finalized"
	case Thinking:
		return "thinking"
	case Responding:
		return "responding"
	case AudioStreaming:
		return "audio_streaming"
	case Playing:
		return "playing"
	default:
		return "unknown"
	}
}

// Turn is one user utterance and the reply to it.
type Turn struct {
	Number     int
	Partial    string
	Transcript string
	// Response is the latest accumulated reply text; it becomes the full
	// response once streaming completes.
	Response string
}

// Exchange is a committed (user, AI) pair.
type Exchange struct {
	Turn int    `json:"turn"`
	User string `json:"user"`
	AI   string `json:"ai"`
}

// Controller is the turn state machine. It is owned by the control loop.
type Controller struct {
	surface ui.Surface
	logger  zerolog.Logger

	phase   Phase
	current Turn
	buffer  *audio.TurnBuffer
	history []Exchange
}

type Option func(*Controller)

func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

func NewController(surface ui.Surface, opts ...Option) *Controller {
	c := &Controller{surface: surface, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Phase() Phase { return c.phase }

// Current returns a copy of the turn in progress.
func (c *Controller) Current() Turn { return c.current }

// Buffer returns the live audio buffer, or nil.
func (c *Controller) Buffer() *audio.TurnBuffer { return c.buffer }

func (c *Controller) History() []Exchange {
	return append([]Exchange(nil), c.history...)
}

// Partial shows in-progress speech. It does not create a turn.
func (c *Controller) Partial(text string) {
	c.phase = Listening
	c.current.Partial = text
	c.surface.PartialTranscript(text)
	c.surface.SetStatus(ui.StatusUserSpeaking)
}

// Finalize records the finished transcript of turn number. Later response and
// audio envelopes are associated with this turn.
func (c *Controller) Finalize(text string, number int) {
	if number != c.current.Number {
		c.current = Turn{Number: number}
	}
	c.current.Transcript = text
	c.current.Partial = ""
	c.phase = Finalized

	c.logger.Info().Int("turn", number).Str("text", text).Msg("Final transcript")
	c.surface.FinalTranscript(text, number)
}

func (c *Controller) StreamingStarted(number int) {
	c.phase = Thinking
	c.logger.Debug().Int("turn", number).Msg("LLM streaming started")
	c.surface.SetStatus(ui.StatusThinking)
}

// Chunk keeps the latest accumulated response text.
func (c *Controller) Chunk(number int, accumulated string) {
	c.phase = Responding
	if accumulated != "" {
		c.current.Response = accumulated
	}
	c.surface.SetStatus(ui.StatusResponding)
}

// StreamingComplete closes the text side of the turn and commits it to the
// history.
func (c *Controller) StreamingComplete(number int, fullResponse string) Exchange {
	c.current.Response = fullResponse
	c.phase = AudioStreaming

	ex := Exchange{Turn: number, User: c.current.Transcript, AI: fullResponse}
	c.history = append(c.history, ex)

	c.logger.Info().Int("turn", number).Int("chars", len(fullResponse)).Msg("LLM response complete")
	c.surface.SetStatus(ui.StatusGenerating)
	c.surface.SystemMessage("AI: " + fullResponse)
	c.surface.AddExchange(number, ex.User, ex.AI)
	return ex
}

// AudioChunk feeds a fragment to the buffer of turn number, replacing the
// buffer of any other turn. It returns the buffer when this chunk completed
// it, and nil otherwise.
func (c *Controller) AudioChunk(number int, fragment string, completes bool) *audio.TurnBuffer {
	if c.buffer == nil || c.buffer.Turn() != number {
		if c.buffer != nil && !c.buffer.Completed() {
			c.logger.Warn().Int("turn", c.buffer.Turn()).Int("chunks", c.buffer.Len()).
				Msg("Discarding unfinished audio for superseded turn")
		}
		c.buffer = audio.NewTurnBuffer(number)
		c.phase = AudioStreaming
		c.logger.Info().Int("turn", number).Msg("Starting audio accumulation")
		c.surface.SetStatus(ui.StatusReceivingAudio)
	}

	if fragment != "" && !c.buffer.Append(fragment) {
		c.logger.Debug().Int("turn", number).Msg("Ignoring audio chunk for completed turn")
	}

	if completes && c.buffer.Complete() {
		return c.buffer
	}
	return nil
}

// AudioStreamingComplete is the fallback completion signal. It completes the
// live buffer only when it belongs to number, holds fragments and has not been
// completed yet.
func (c *Controller) AudioStreamingComplete(number int) *audio.TurnBuffer {
	buf := c.buffer
	if buf == nil || buf.Turn() != number || buf.Len() == 0 {
		return nil
	}
	if !buf.Complete() {
		return nil
	}
	return buf
}

// ReleaseBuffer tears down buf if it is still the live buffer.
func (c *Controller) ReleaseBuffer(buf *audio.TurnBuffer) bool {
	if buf == nil || c.buffer != buf {
		return false
	}
	c.buffer = nil
	return true
}

func (c *Controller) PlaybackStarted() { c.phase = Playing }

// PlaybackFinished returns the controller to Idle unless a newer turn has
// moved it along already.
func (c *Controller) PlaybackFinished() {
	if c.phase == Playing {
		c.phase = Idle
	}
}
