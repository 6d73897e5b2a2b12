package websocket

import (
	"net/url"
	"time"

	"github.com/pkg/errors"
)

// Configuration constants
const (
	DefaultServerURL = "http://localhost:8000"
	ServerPath       = "/ws"

	// Connection lifecycle
	MaxReconnectAttempts = 5
	ReconnectDelay       = 3 * time.Second
	HandshakeTimeout     = 10 * time.Second
	WriteTimeout         = 5 * time.Second
)

// EndpointURL derives the channel URL from the server's base URL, upgrading
// http to ws and https to wss.
func EndpointURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", errors.Wrapf(err, "parse server URL %q", base)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", errors.Errorf("unsupported server URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.Errorf("server URL %q has no host", base)
	}

	u.Path = ServerPath
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
