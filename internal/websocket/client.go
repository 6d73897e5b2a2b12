package websocket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"github.com/raihanakbr/voice-agent-client/internal/keystore"
	"github.com/raihanakbr/voice-agent-client/internal/ui"
	"github.com/rs/zerolog"
)

// Phase is the connectivity phase of the session.
type Phase int

const (
	Disconnected Phase = iota
	Connecting
	Authenticating
	Ready
	Failed
)

func (p Phase) String() string {
	switch p {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Authenticating:
		return "authenticating"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Message kinds, re-exported so callers need not import gorilla.
const (
	TextMessage   = websocket.TextMessage
	BinaryMessage = websocket.BinaryMessage
)

// Conn is the part of *websocket.Conn the manager uses.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	WriteJSON(v interface{}) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type WebsocketDialer interface {
	Dial(urlStr string, requestHeader http.Header) (Conn, error)
}

// GorillaDialer adapts a gorilla dialer to WebsocketDialer.
type GorillaDialer struct {
	Dialer *websocket.Dialer
}

func (d GorillaDialer) Dial(urlStr string, requestHeader http.Header) (Conn, error) {
	conn, _, err := d.Dialer.Dial(urlStr, requestHeader)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// NewDialer returns a gorilla-backed dialer with the default handshake timeout.
func NewDialer() WebsocketDialer {
	return GorillaDialer{Dialer: &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: HandshakeTimeout,
	}}
}

// Timer is a pending scheduled callback.
type Timer interface {
	Stop() bool
}

// Scheduler runs f after d on some other goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type systemScheduler struct{}

func (systemScheduler) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// SystemScheduler schedules with time.AfterFunc.
var SystemScheduler Scheduler = systemScheduler{}

// KeySource supplies the credential set for each connection attempt.
type KeySource interface {
	Load() (keystore.Credentials, error)
}

// Notifier hands channel activity from background goroutines to the control
// loop. Implementations must not act on the calls directly.
type Notifier interface {
	ChannelOpened(gen uint64, conn Conn)
	ChannelMessage(gen uint64, kind int, data []byte)
	ChannelClosed(gen uint64, err error)
	ReconnectDue(token uint64)
}

// Session is the connectivity state of the single duplex session.
type Session struct {
	ID    string
	Phase Phase
	// Attempts counts consecutive closes since the session was last Ready.
	Attempts    int
	Credentials keystore.Credentials
}

// Manager owns the duplex channel: connect, authenticate, detect closure and
// reconnect a bounded number of times. All methods except those of the
// background goroutines it starts must be called from the control loop.
type Manager struct {
	url       string
	dialer    WebsocketDialer
	keys      KeySource
	notifier  Notifier
	scheduler Scheduler
	surface   ui.Surface
	logger    zerolog.Logger

	session Session
	gen     uint64
	conn    Conn

	reconnectTimer Timer
	timerSeq       uint64
	restart        bool
}

type ManagerOption func(*Manager)

func WithDialer(d WebsocketDialer) ManagerOption {
	return func(m *Manager) { m.dialer = d }
}

func WithScheduler(s Scheduler) ManagerOption {
	return func(m *Manager) { m.scheduler = s }
}

func WithLogger(l zerolog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a disconnected manager for the channel at endpoint.
func NewManager(endpoint string, keys KeySource, notifier Notifier, surface ui.Surface, opts ...ManagerOption) *Manager {
	m := &Manager{
		url:       endpoint,
		dialer:    NewDialer(),
		keys:      keys,
		notifier:  notifier,
		scheduler: SystemScheduler,
		surface:   surface,
		logger:    zerolog.Nop(),
		session:   Session{ID: ulid.Make().String()},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With().Str("session_id", m.session.ID).Logger()
	return m
}

// Session returns a snapshot of the session.
func (m *Manager) Session() Session { return m.session }

func (m *Manager) Phase() Phase { return m.session.Phase }

// Open reports whether the channel is open for writes.
func (m *Manager) Open() bool {
	return m.conn != nil && (m.session.Phase == Authenticating || m.session.Phase == Ready)
}

// Connect opens the channel with the stored credentials. It fails with
// keystore.ErrCredentialsMissing, without dialing, when a mandatory key is
// absent. Connecting while a channel is already live is a no-op.
func (m *Manager) Connect() error {
	switch m.session.Phase {
	case Connecting, Authenticating, Ready:
		return nil
	}
	m.cancelReconnect()

	creds, err := m.keys.Load()
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to load API keys")
		m.surface.SetStatus(ui.StatusKeysRequired)
		return errors.Wrap(err, "load credentials")
	}
	if err := creds.Validate(); err != nil {
		m.logger.Info().Strs("missing", creds.Missing()).Msg("API keys not found. Opening key entry")
		m.surface.SetStatus(ui.StatusKeysRequired)
		m.surface.PromptKeys()
		return err
	}

	m.session.Credentials = creds
	m.session.Phase = Connecting
	m.gen++
	gen, url, dialer, notifier := m.gen, m.url, m.dialer, m.notifier

	m.logger.Info().Str("url", url).Uint64("gen", gen).Msg("Connecting to server")
	go func() {
		conn, err := dialer.Dial(url, nil)
		if err != nil {
			notifier.ChannelClosed(gen, err)
			return
		}
		notifier.ChannelOpened(gen, conn)
	}()
	return nil
}

// HandleOpened is called when a dial completes. It starts the reader and
// sends the configure envelope.
func (m *Manager) HandleOpened(gen uint64, conn Conn) {
	if gen != m.gen || m.session.Phase != Connecting {
		m.logger.Debug().Uint64("gen", gen).Msg("Discarding stale connection")
		conn.Close()
		return
	}

	m.conn = conn
	go m.readLoop(gen, conn)

	if m.restart {
		m.logger.Info().Msg("Credentials changed while connecting, reconnecting")
		conn.Close()
		return
	}

	m.session.Phase = Authenticating
	m.logger.Info().Msg("Connected, sending API keys")
	if err := m.writeJSON(ConfigureKeysMessage{Type: TypeConfigureAPIKeys, Keys: m.session.Credentials}); err != nil {
		m.logger.Error().Err(err).Msg("Failed to send API keys")
		conn.Close()
		return
	}
	m.surface.SetStatus(ui.StatusAuthenticating)
}

func (m *Manager) readLoop(gen uint64, conn Conn) {
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			m.notifier.ChannelClosed(gen, err)
			return
		}
		m.notifier.ChannelMessage(gen, kind, data)
	}
}

// Accept filters a message from the reader. It returns the text payload when
// the message belongs to the live channel.
func (m *Manager) Accept(gen uint64, kind int, data []byte) ([]byte, bool) {
	if gen != m.gen || m.conn == nil {
		return nil, false
	}
	if kind != TextMessage {
		m.logger.Debug().Int("kind", kind).Int("bytes", len(data)).Msg("Ignoring non-text message")
		return nil, false
	}
	return data, true
}

// MarkReady records the server's acknowledgment of the credentials.
func (m *Manager) MarkReady() bool {
	if m.conn == nil || m.session.Phase != Authenticating {
		return false
	}
	m.session.Phase = Ready
	m.session.Attempts = 0
	m.cancelReconnect()
	m.logger.Info().Msg("Session ready")
	return true
}

// HandleClosed is called when the channel closes or a dial fails. It applies
// the reconnection policy.
func (m *Manager) HandleClosed(gen uint64, cause error) {
	if gen != m.gen {
		return
	}
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.session.Phase = Disconnected

	if m.restart {
		m.restart = false
		m.logger.Info().Msg("Channel closed for reconfiguration")
		if err := m.Connect(); err != nil {
			m.logger.Warn().Err(err).Msg("Reconnect after reconfiguration failed")
		}
		return
	}

	var closeErr *websocket.CloseError
	if errors.As(cause, &closeErr) {
		m.logger.Warn().Int("code", closeErr.Code).Str("reason", closeErr.Text).Msg("Server closed connection")
		if closeErr.Code == websocket.ClosePolicyViolation {
			m.logger.Warn().Err(errors.Wrap(ErrAuthRejected, closeErr.Text)).Msg("Credentials rejected")
			m.surface.SystemMessage("Server rejected the API key configuration: " + closeErr.Text)
			m.surface.PromptKeys()
		}
	} else {
		m.logger.Error().Err(errors.Wrap(ErrConnection, errString(cause))).Msg("Connection error")
		m.surface.SetStatus(ui.StatusConnectionError)
	}
	m.surface.SetStatus(ui.StatusDisconnected)

	m.session.Attempts++
	if m.session.Attempts >= MaxReconnectAttempts {
		m.session.Phase = Failed
		m.logger.Error().Int("attempts", m.session.Attempts).Msg("Giving up on reconnection")
		m.surface.SetStatus(ui.StatusFailed)
		m.surface.SystemMessage("Could not reconnect to the server. Please check your connection and API keys, then restart.")
		return
	}

	m.timerSeq++
	token, notifier := m.timerSeq, m.notifier
	m.reconnectTimer = m.scheduler.AfterFunc(ReconnectDelay, func() { notifier.ReconnectDue(token) })
	m.logger.Info().Int("attempt", m.session.Attempts).Dur("delay", ReconnectDelay).Msg("Scheduling reconnect")
}

// HandleReconnectDue is called when a reconnect timer fires.
func (m *Manager) HandleReconnectDue(token uint64) {
	if token != m.timerSeq || m.reconnectTimer == nil {
		return
	}
	m.reconnectTimer = nil
	if err := m.Connect(); err != nil {
		m.logger.Warn().Err(err).Msg("Reconnect failed")
	}
}

// Reconfigure applies changed credentials. A live channel is closed first
// and the fresh connection starts once the close has been observed; with no
// channel the connection starts immediately.
func (m *Manager) Reconfigure() error {
	m.session.Attempts = 0
	switch m.session.Phase {
	case Connecting:
		m.restart = true
		return nil
	case Authenticating, Ready:
		m.restart = true
		m.logger.Info().Msg("Closing connection to reconnect with new keys")
		return errors.Wrap(m.conn.Close(), "close channel")
	default:
		return m.Connect()
	}
}

// SendBinary writes one binary frame.
func (m *Manager) SendBinary(data []byte) error {
	if !m.Open() {
		return ErrNotOpen
	}
	m.conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
	return m.conn.WriteMessage(BinaryMessage, data)
}

func (m *Manager) writeJSON(v interface{}) error {
	if m.conn == nil {
		return ErrNotOpen
	}
	m.conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
	return m.conn.WriteJSON(v)
}

// Close tears the session down without reconnecting.
func (m *Manager) Close() {
	m.cancelReconnect()
	m.gen++
	m.restart = false
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.session.Phase = Disconnected
	m.logger.Info().Msg("Closed connection")
}

func (m *Manager) cancelReconnect() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	m.timerSeq++
}

func errString(err error) string {
	if err == nil {
		return "closed"
	}
	return err.Error()
}
