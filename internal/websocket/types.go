package websocket

import (
	"strings"

	"github.com/raihanakbr/voice-agent-client/internal/keystore"
)

// Envelope tags sent by the server.
const (
	TypeConnectionEstablished  = "connection_established"
	TypeSessionBegin           = "session_begin"
	TypeSessionTerminated      = "session_terminated"
	TypePartialTranscript      = "partial_transcript"
	TypeFinalTranscript        = "final_transcript"
	TypeTurnCompleted          = "turn_completed"
	TypeTurnUpdated            = "turn_updated"
	TypeLLMStreamingStart      = "llm_streaming_start"
	TypeLLMChunk               = "llm_chunk"
	TypeLLMStreamingComplete   = "llm_streaming_complete"
	TypeAudioChunk             = "audio_chunk"
	TypeAudioStreamingComplete = "audio_streaming_complete"
	TypeOpenURL                = "open_url"
	TypeLLMError               = "llm_error"
	TypeError                  = "error"
)

// TypeConfigureAPIKeys is the first envelope the client sends.
const TypeConfigureAPIKeys = "configure_api_keys"

// Envelope is any message from the server. Only the fields relevant to Type
// are populated.
type Envelope struct {
	Type            string  `json:"type"`
	SessionID       string  `json:"session_id,omitempty"`
	Message         string  `json:"message,omitempty"`
	Text            string  `json:"text,omitempty"`
	FinalTranscript string  `json:"final_transcript,omitempty"`
	TurnNumber      int     `json:"turn_number,omitempty"`
	Chunk           string  `json:"chunk,omitempty"`
	Accumulated     string  `json:"accumulated,omitempty"`
	FullResponse    string  `json:"full_response,omitempty"`
	AudioData       *string `json:"audio_data,omitempty"`
	Final           bool    `json:"final,omitempty"`
	URL             string  `json:"url,omitempty"`
	Error           string  `json:"error,omitempty"`
}

// Transcript returns the finalized text, whichever field carried it.
func (e Envelope) Transcript() string {
	if e.Text != "" {
		return e.Text
	}
	return e.FinalTranscript
}

// ConfigureKeysMessage carries the credential set.
type ConfigureKeysMessage struct {
	Type string               `json:"type"`
	Keys keystore.Credentials `json:"keys"`
}

// AudioChunk is one audio_chunk envelope.
type AudioChunk struct {
	Turn int
	// Data is the base64 fragment; HasData is false when the field was absent.
	Data    string
	HasData bool
	Final   bool
}

// Completes reports whether this chunk ends the turn's audio: an explicit
// final flag or an empty payload.
func (c AudioChunk) Completes() bool {
	return c.Final || (c.HasData && c.Data == "")
}

// IsAuthRejection reports whether a server error message is about credentials.
func IsAuthRejection(message string) bool {
	return strings.Contains(strings.ToLower(message), "api key")
}
