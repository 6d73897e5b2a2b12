package agent

import (
	"github.com/raihanakbr/voice-agent-client/internal/audio"
	"github.com/raihanakbr/voice-agent-client/internal/websocket"
)

// Events consumed by the control loop. Everything that mutates session, turn
// or buffer state arrives as one of these.

type channelOpened struct {
	gen  uint64
	conn websocket.Conn
}

type channelMessage struct {
	gen  uint64
	kind int
	data []byte
}

type channelClosed struct {
	gen uint64
	err error
}

type reconnectDue struct {
	token uint64
}

type decodeFinished struct {
	buf  *audio.TurnBuffer
	clip audio.Clip
	err  error
}

type playbackEnded struct {
	id  uint64
	err error
}

type teardownDue struct {
	buf *audio.TurnBuffer
}

type stopSettled struct {
	seq uint64
}

type captureFrame struct {
	samples []float32
}

// command runs fn on the loop and closes done afterwards.
type command struct {
	fn   func()
	done chan struct{}
}
