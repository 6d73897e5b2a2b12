package websocket

import "github.com/pkg/errors"

var (
	// ErrConnection indicates the channel failed or closed remotely.
	ErrConnection = errors.New("websocket: connection error")

	// ErrAuthRejected indicates the server refused the configured credentials.
	ErrAuthRejected = errors.New("websocket: credentials rejected")

	// ErrNotOpen indicates a send was attempted without an open channel.
	ErrNotOpen = errors.New("websocket: channel not open")

	// ErrMalformedEnvelope indicates an inbound message that is not valid JSON.
	ErrMalformedEnvelope = errors.New("websocket: malformed envelope")

	// ErrUnknownEnvelope indicates an inbound message with an unrecognised tag.
	ErrUnknownEnvelope = errors.New("websocket: unknown envelope type")
)
