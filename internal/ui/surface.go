// Package ui defines what the voice client needs from its presentation layer
// and provides a terminal implementation of it.
package ui

// Color classifies a status badge.
type Color string

const (
	Green  Color = "green"
	Blue   Color = "blue"
	Red    Color = "red"
	Orange Color = "orange"
	Purple Color = "purple"
	Gray   Color = "gray"
)

// Status is the single-line agent status shown to the user.
type Status struct {
	Text  string
	Color Color
}

// Statuses reported by the client.
var (
	StatusKeysRequired    = Status{"API Keys Required", Orange}
	StatusAuthenticating  = Status{"Authenticating...", Blue}
	StatusReady           = Status{"Turn Detection + LLM Ready", Green}
	StatusDisconnected    = Status{"Disconnected", Gray}
	StatusConnectionError = Status{"Connection Error", Red}
	StatusFailed          = Status{"Connection Failed", Red}

	StatusUserSpeaking = Status{"User Speaking...", Blue}
	StatusThinking     = Status{"AI Thinking...", Orange}
	StatusResponding   = Status{"AI Responding...", Purple}
	StatusGenerating   = Status{"Generating Audio...", Blue}
	StatusLLMError     = Status{"LLM Error", Red}

	StatusReceivingAudio  = Status{"Receiving Audio...", Blue}
	StatusProcessingAudio = Status{"Processing Audio...", Orange}
	StatusPlaying         = Status{"Playing Audio...", Green}
	StatusNoAudio         = Status{"No Audio Data", Red}
	StatusDecodeFailed    = Status{"Audio Decode Failed", Red}
	StatusPlaybackError   = Status{"Playback Error", Red}

	StatusRecording    = Status{"Recording...", Red}
	StatusStopping     = Status{"Stopping...", Orange}
	StatusCaptureError = Status{"Mic/Config Error", Red}
)

// Reporter receives status transitions and free-form system messages.
type Reporter interface {
	SetStatus(s Status)
	SystemMessage(msg string)
}

// Surface is everything the client core asks of the user interface.
// Implementations must not block: the core calls them from its control loop.
type Surface interface {
	Reporter

	// PartialTranscript shows the in-progress transcript of the current utterance.
	PartialTranscript(text string)
	// FinalTranscript shows the finalized transcript of a turn.
	FinalTranscript(text string, turn int)
	// AddExchange commits a (user, AI) pair to the conversation history.
	AddExchange(turn int, user, ai string)
	// ClearCurrentTurn resets the current-turn panel.
	ClearCurrentTurn()
	// PromptKeys opens the key-entry flow.
	PromptKeys()
	// OpenURL delegates an "open a resource" action request.
	OpenURL(url string) error
}
