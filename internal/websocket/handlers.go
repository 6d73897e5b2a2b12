package websocket

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Handler receives routed envelopes. Router calls it synchronously, so its
// methods run on whatever goroutine calls Route.
type Handler interface {
	OnConnectionEstablished(sessionID string)
	OnSessionBegin(sessionID string)
	OnSessionTerminated(message string)
	OnPartialTranscript(text string)
	OnFinalTranscript(text string, turn int)
	OnLLMStreamingStart(turn int)
	OnLLMChunk(turn int, accumulated string)
	OnLLMStreamingComplete(turn int, fullResponse string)
	OnAudioChunk(chunk AudioChunk)
	OnAudioStreamingComplete(turn int)
	OnOpenURL(url string)
	OnLLMError(message string)
	OnError(message string, authRejected bool)
}

// Router decodes inbound text envelopes and dispatches them by tag.
type Router struct {
	handler Handler
	logger  zerolog.Logger
}

func NewRouter(handler Handler, logger zerolog.Logger) *Router {
	return &Router{handler: handler, logger: logger}
}

// Route dispatches one raw envelope. Malformed and unknown envelopes are
// logged, then returned as ErrMalformedEnvelope or ErrUnknownEnvelope so the
// caller can count them.
func (r *Router) Route(raw []byte) error {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		r.logger.Warn().Err(err).Str("raw", preview(raw)).Msg("Error parsing server message")
		return errors.Wrap(ErrMalformedEnvelope, err.Error())
	}

	r.logger.Debug().Str("type", env.Type).Int("turn", env.TurnNumber).Msg("Received from server")

	h := r.handler
	switch env.Type {
	case TypeConnectionEstablished:
		h.OnConnectionEstablished(env.SessionID)
	case TypeSessionBegin:
		h.OnSessionBegin(env.SessionID)
	case TypeSessionTerminated:
		h.OnSessionTerminated(env.Message)
	case TypePartialTranscript:
		h.OnPartialTranscript(env.Text)
	case TypeFinalTranscript, TypeTurnCompleted, TypeTurnUpdated:
		h.OnFinalTranscript(env.Transcript(), env.TurnNumber)
	case TypeLLMStreamingStart:
		h.OnLLMStreamingStart(env.TurnNumber)
	case TypeLLMChunk:
		text := env.Accumulated
		if text == "" {
			text = env.Chunk
		}
		h.OnLLMChunk(env.TurnNumber, text)
	case TypeLLMStreamingComplete:
		h.OnLLMStreamingComplete(env.TurnNumber, env.FullResponse)
	case TypeAudioChunk:
		chunk := AudioChunk{Turn: env.TurnNumber, Final: env.Final}
		if env.AudioData != nil {
			chunk.Data = *env.AudioData
			chunk.HasData = true
		}
		h.OnAudioChunk(chunk)
	case TypeAudioStreamingComplete:
		h.OnAudioStreamingComplete(env.TurnNumber)
	case TypeOpenURL:
		h.OnOpenURL(env.URL)
	case TypeLLMError:
		h.OnLLMError(env.Error)
	case TypeError:
		h.OnError(env.Message, IsAuthRejection(env.Message))
	default:
		r.logger.Info().Str("type", env.Type).Msg("Unhandled message type")
		return errors.Wrapf(ErrUnknownEnvelope, "%q", env.Type)
	}
	return nil
}

func preview(raw []byte) string {
	const limit = 120
	if len(raw) <= limit {
		return string(raw)
	}
	return string(raw[:limit]) + "..."
}
