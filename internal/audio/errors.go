package audio

import "github.com/pkg/errors"

// Sentinel errors for the audio package.
var (
	// ErrMalformedFragment indicates a fragment that is not valid base64.
	ErrMalformedFragment = errors.New("audio: malformed fragment")

	// ErrEmptyAudioTurn indicates a turn completed without any audio.
	ErrEmptyAudioTurn = errors.New("audio: no audio data for turn")

	// ErrDecodeFailure indicates the platform decoder rejected the container
	// or produced an empty buffer.
	ErrDecodeFailure = errors.New("audio: decode failed")

	// ErrNotConnected indicates capture was requested before the session was ready.
	ErrNotConnected = errors.New("audio: session not connected")

	// ErrCaptureFailure indicates the microphone could not be opened.
	ErrCaptureFailure = errors.New("audio: capture failed")
)
