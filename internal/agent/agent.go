// Package agent runs the voice client's control loop. A single goroutine owns
// the session, the current turn and its audio buffer; the websocket reader,
// dialer, timers, decoder, speaker and microphone only post events to it.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/raihanakbr/voice-agent-client/internal/audio"
	"github.com/raihanakbr/voice-agent-client/internal/keystore"
	"github.com/raihanakbr/voice-agent-client/internal/turn"
	"github.com/raihanakbr/voice-agent-client/internal/ui"
	"github.com/raihanakbr/voice-agent-client/internal/websocket"
	"github.com/rs/zerolog"
)

// StopSettleDelay is how long after capture stops the agent reports ready.
const StopSettleDelay = time.Second

// ErrStopped is returned by commands issued after the loop has exited.
var ErrStopped = errors.New("agent: stopped")

// ErrNoToneSource is returned by TestTone when no tone source is configured.
var ErrNoToneSource = errors.New("agent: no tone source")

// Devices are the platform audio collaborators. Tone is optional.
type Devices struct {
	Decoder  audio.Decoder
	Player   audio.Player
	Capturer audio.Capturer
	Tone     audio.ToneSource
}

// Agent wires the connection manager, router, turn controller and audio
// pipelines to one event loop. It implements websocket.Notifier for the
// manager's goroutines and websocket.Handler for the router; the Handler
// methods only run on the loop.
type Agent struct {
	events chan interface{}
	done   chan struct{}

	store     keystore.Store
	surface   ui.Surface
	scheduler websocket.Scheduler
	logger    zerolog.Logger
	dialer    websocket.WebsocketDialer

	manager *websocket.Manager
	router  *websocket.Router
	turns   *turn.Controller
	output  *audio.OutputPipeline
	ingest  *audio.IngestPipeline
	player  audio.Player
	tone    audio.ToneSource

	stopSeq uint64
	dropped int
}

type Option func(*Agent)

func WithLogger(l zerolog.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

// WithScheduler replaces the timers used for reconnects, buffer teardown and
// the stop settle delay.
func WithScheduler(s websocket.Scheduler) Option {
	return func(a *Agent) { a.scheduler = s }
}

func WithDialer(d websocket.WebsocketDialer) Option {
	return func(a *Agent) { a.dialer = d }
}

// New creates an agent for the channel at endpoint. Call Run to start it.
func New(endpoint string, store keystore.Store, surface ui.Surface, dev Devices, opts ...Option) *Agent {
	a := &Agent{
		events:    make(chan interface{}, 64),
		done:      make(chan struct{}),
		store:     store,
		surface:   surface,
		player:    dev.Player,
		tone:      dev.Tone,
		scheduler: websocket.SystemScheduler,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}

	mopts := []websocket.ManagerOption{
		websocket.WithScheduler(a.scheduler),
		websocket.WithLogger(a.logger.With().Str("component", "connection").Logger()),
	}
	if a.dialer != nil {
		mopts = append(mopts, websocket.WithDialer(a.dialer))
	}
	a.manager = websocket.NewManager(endpoint, store, a, surface, mopts...)
	a.router = websocket.NewRouter(a, a.logger.With().Str("component", "router").Logger())
	a.turns = turn.NewController(surface, turn.WithLogger(a.logger.With().Str("component", "turn").Logger()))
	a.output = audio.NewOutputPipeline(dev.Decoder, dev.Player, surface,
		audio.WithOutputLogger(a.logger.With().Str("component", "output").Logger()))
	a.ingest = audio.NewIngestPipeline(dev.Capturer,
		audio.WithIngestLogger(a.logger.With().Str("component", "ingest").Logger()))
	return a
}

// Run processes events until ctx is done, then releases the microphone and
// closes the channel.
func (a *Agent) Run(ctx context.Context) error {
	defer close(a.done)
	defer a.shutdown()

	a.logger.Info().Str("session_id", a.manager.Session().ID).Msg("Agent started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-a.events:
			a.handle(ev)
		}
	}
}

func (a *Agent) shutdown() {
	a.ingest.Stop()
	a.manager.Close()
	a.logger.Info().Msg("Agent stopped")
}

func (a *Agent) handle(ev interface{}) {
	switch ev := ev.(type) {
	case command:
		ev.fn()
		close(ev.done)
	case channelOpened:
		a.manager.HandleOpened(ev.gen, ev.conn)
	case channelMessage:
		if data, ok := a.manager.Accept(ev.gen, ev.kind, ev.data); ok {
			// The router has already logged the envelope.
			if err := a.router.Route(data); err != nil {
				a.dropped++
			}
		}
	case channelClosed:
		a.manager.HandleClosed(ev.gen, ev.err)
	case reconnectDue:
		a.manager.HandleReconnectDue(ev.token)
	case decodeFinished:
		a.finishAudio(ev)
	case playbackEnded:
		if a.output.PlaybackEnded(ev.id, ev.err, a.ingest.Recording()) {
			a.turns.PlaybackFinished()
		}
	case teardownDue:
		a.teardown(ev.buf)
	case stopSettled:
		if ev.seq == a.stopSeq && !a.output.Playing() && !a.ingest.Recording() {
			a.surface.SetStatus(ui.StatusReady)
		}
	case captureFrame:
		a.ingest.HandleFrame(ev.samples, a.manager.Open(), a.manager.SendBinary)
	default:
		a.logger.Warn().Str("event", fmt.Sprintf("%T", ev)).Msg("Unknown event")
	}
}

func (a *Agent) post(ev interface{}) bool {
	select {
	case a.events <- ev:
		return true
	case <-a.done:
		return false
	}
}

// do runs fn on the loop and waits for it.
func (a *Agent) do(fn func()) error {
	done := make(chan struct{})
	if !a.post(command{fn: fn, done: done}) {
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-a.done:
		return ErrStopped
	}
}

// Connect opens the channel with the stored credentials.
func (a *Agent) Connect() error {
	var err error
	if derr := a.do(func() { err = a.manager.Connect() }); derr != nil {
		return derr
	}
	return err
}

// Reconfigure saves new credentials and reconnects with them. The store
// refuses incomplete credential sets.
func (a *Agent) Reconfigure(creds keystore.Credentials) error {
	var err error
	derr := a.do(func() {
		if err = a.store.Save(creds); err != nil {
			a.logger.Error().Err(err).Msg("Failed to save API keys")
			a.surface.SystemMessage("Could not save API keys: " + err.Error())
			return
		}
		a.surface.SystemMessage("API keys saved. Reconnecting...")
		err = a.manager.Reconfigure()
	})
	if derr != nil {
		return derr
	}
	return err
}

// StartCapture starts streaming the microphone. Without a ready session it
// fails with audio.ErrNotConnected and starts connecting instead.
func (a *Agent) StartCapture() error {
	var err error
	if derr := a.do(func() { err = a.startCapture() }); derr != nil {
		return derr
	}
	return err
}

func (a *Agent) startCapture() error {
	if a.ingest.Recording() {
		return nil
	}

	err := a.ingest.Start(a.manager.Phase() == websocket.Ready, a.onCaptureFrame)
	switch {
	case errors.Is(err, audio.ErrNotConnected):
		a.logger.Warn().Str("phase", a.manager.Phase().String()).Msg("Recording requested without a ready session")
		if cerr := a.manager.Connect(); cerr != nil {
			a.logger.Debug().Err(cerr).Msg("Connect on record failed")
		}
		a.surface.SetStatus(ui.StatusCaptureError)
		a.surface.SystemMessage("Not connected. Please ensure API keys are correct and try again.")
		return err
	case err != nil:
		a.surface.SetStatus(ui.StatusCaptureError)
		a.surface.SystemMessage("Error starting recording: " + err.Error())
		return err
	}

	a.surface.SetStatus(ui.StatusRecording)
	a.surface.ClearCurrentTurn()
	return nil
}

// StopCapture stops the microphone. It is a no-op when not recording.
func (a *Agent) StopCapture() error {
	return a.do(a.stopCapture)
}

func (a *Agent) stopCapture() {
	if !a.ingest.Stop() {
		return
	}
	a.surface.SetStatus(ui.StatusStopping)

	a.stopSeq++
	seq := a.stopSeq
	a.scheduler.AfterFunc(StopSettleDelay, func() { a.post(stopSettled{seq: seq}) })
}

// TestTone plays a short quiet sine tone to check the speaker. It runs
// alongside any turn audio and leaves the status line alone.
func (a *Agent) TestTone() error {
	var err error
	if derr := a.do(func() { err = a.testTone() }); derr != nil {
		return derr
	}
	return err
}

func (a *Agent) testTone() error {
	if a.tone == nil {
		return ErrNoToneSource
	}
	clip, err := a.tone.Tone(audio.ToneFrequency, audio.ToneDuration)
	if err != nil {
		a.logger.Error().Err(err).Msg("Failed to generate test tone")
		return err
	}

	logger := a.logger.With().Int("frequency", audio.ToneFrequency).Logger()
	err = a.player.Play(clip, audio.ToneGain, func(err error) {
		if err != nil {
			logger.Error().Err(err).Msg("Test tone playback error")
			return
		}
		logger.Debug().Msg("Test tone finished")
	})
	if err != nil {
		logger.Error().Err(err).Msg("Test tone failed to start")
		return errors.Wrap(err, "play test tone")
	}
	logger.Info().Msg("Testing audio")
	a.surface.SystemMessage(fmt.Sprintf("Test tone should play (%d Hz)", audio.ToneFrequency))
	return nil
}

// ToggleCapture starts recording when idle and stops it otherwise.
func (a *Agent) ToggleCapture() error {
	var err error
	derr := a.do(func() {
		if a.ingest.Recording() {
			a.stopCapture()
			return
		}
		err = a.startCapture()
	})
	if derr != nil {
		return derr
	}
	return err
}

// onCaptureFrame runs on the capture goroutine. A full queue drops the frame.
func (a *Agent) onCaptureFrame(samples []float32) {
	select {
	case a.events <- captureFrame{samples: samples}:
	case <-a.done:
	default:
		a.logger.Debug().Int("samples", len(samples)).Msg("Event queue full, dropping microphone frame")
	}
}

// completeAudio hands a completed buffer to the output pipeline. Decoding runs
// off the loop so later envelopes keep flowing.
func (a *Agent) completeAudio(buf *audio.TurnBuffer) {
	container, err := a.output.Prepare(buf)
	if err != nil {
		a.scheduleTeardown(buf)
		return
	}

	output := a.output
	go func() {
		clip, err := output.Decode(container)
		a.post(decodeFinished{buf: buf, clip: clip, err: err})
	}()
}

func (a *Agent) finishAudio(ev decodeFinished) {
	err := a.output.Finish(ev.buf, ev.clip, ev.err, func(id uint64, err error) {
		a.post(playbackEnded{id: id, err: err})
	})
	if err == nil {
		a.turns.PlaybackStarted()
	}
	a.scheduleTeardown(ev.buf)
}

func (a *Agent) scheduleTeardown(buf *audio.TurnBuffer) {
	a.scheduler.AfterFunc(audio.TeardownDelay, func() { a.post(teardownDue{buf: buf}) })
}

func (a *Agent) teardown(buf *audio.TurnBuffer) {
	if !a.turns.ReleaseBuffer(buf) {
		a.logger.Debug().Int("turn", buf.Turn()).Msg("Buffer already superseded")
		return
	}
	if !a.output.Playing() && !a.ingest.Recording() && a.manager.Phase() == websocket.Ready {
		a.surface.SetStatus(ui.StatusReady)
	}
}

// websocket.Notifier

func (a *Agent) ChannelOpened(gen uint64, conn websocket.Conn) {
	if !a.post(channelOpened{gen: gen, conn: conn}) {
		conn.Close()
	}
}

func (a *Agent) ChannelMessage(gen uint64, kind int, data []byte) {
	a.post(channelMessage{gen: gen, kind: kind, data: data})
}

func (a *Agent) ChannelClosed(gen uint64, err error) {
	a.post(channelClosed{gen: gen, err: err})
}

func (a *Agent) ReconnectDue(token uint64) {
	a.post(reconnectDue{token: token})
}

// websocket.Handler

func (a *Agent) OnConnectionEstablished(sessionID string) {
	if !a.manager.MarkReady() {
		return
	}
	a.logger.Info().Str("server_session", sessionID).Msg("Connection established")
	a.surface.SetStatus(ui.StatusReady)
	a.surface.SystemMessage("Audio system ready - speak naturally!")
}

func (a *Agent) OnSessionBegin(sessionID string) {
	a.logger.Info().Str("server_session", sessionID).Msg("Transcription session started")
	a.surface.SystemMessage("Session started - speak naturally!")
}

func (a *Agent) OnSessionTerminated(message string) {
	a.logger.Info().Str("message", message).Msg("Transcription session terminated")
	if message == "" {
		message = "transcription session ended"
	}
	a.surface.SystemMessage("Session ended: " + message)
}

func (a *Agent) OnPartialTranscript(text string) { a.turns.Partial(text) }

func (a *Agent) OnFinalTranscript(text string, number int) { a.turns.Finalize(text, number) }

func (a *Agent) OnLLMStreamingStart(number int) { a.turns.StreamingStarted(number) }

func (a *Agent) OnLLMChunk(number int, accumulated string) { a.turns.Chunk(number, accumulated) }

func (a *Agent) OnLLMStreamingComplete(number int, fullResponse string) {
	a.turns.StreamingComplete(number, fullResponse)
}

func (a *Agent) OnAudioChunk(chunk websocket.AudioChunk) {
	if buf := a.turns.AudioChunk(chunk.Turn, chunk.Data, chunk.Completes()); buf != nil {
		a.completeAudio(buf)
	}
}

func (a *Agent) OnAudioStreamingComplete(number int) {
	if buf := a.turns.AudioStreamingComplete(number); buf != nil {
		a.logger.Debug().Int("turn", number).Msg("Completing audio from stream-complete signal")
		a.completeAudio(buf)
	}
}

func (a *Agent) OnOpenURL(url string) {
	a.logger.Info().Str("url", url).Msg("Opening URL")
	a.surface.SystemMessage(fmt.Sprintf("Opening %s...", url))
	if err := a.surface.OpenURL(url); err != nil {
		a.logger.Warn().Err(err).Str("url", url).Msg("Failed to open URL")
		a.surface.SystemMessage("Could not open " + url + ": " + err.Error())
	}
}

func (a *Agent) OnLLMError(message string) {
	a.logger.Error().Str("error", message).Msg("LLM error")
	a.surface.SetStatus(ui.StatusLLMError)
	a.surface.SystemMessage("LLM Error: " + message)
}

func (a *Agent) OnError(message string, authRejected bool) {
	a.logger.Error().Str("message", message).Bool("auth", authRejected).Msg("Server error")
	a.surface.SetStatus(ui.Status{Text: message, Color: ui.Red})
	a.surface.SystemMessage("System Error: " + message)
	if authRejected {
		a.logger.Warn().Err(errors.Wrap(websocket.ErrAuthRejected, message)).Msg("Prompting for new API keys")
		a.surface.PromptKeys()
	}
}
