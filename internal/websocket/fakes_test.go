package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/raihanakbr/voice-agent-client/internal/keystore"
	"github.com/stretchr/testify/require"
)

type staticKeys struct {
	creds keystore.Credentials
	err   error
}

func (k *staticKeys) Load() (keystore.Credentials, error) { return k.creds, k.err }

var validKeys = keystore.Credentials{AssemblyAI: "a", Gemini: "b", Murf: "c"}

type fakeConn struct {
	mu       sync.Mutex
	texts    [][]byte
	binaries [][]byte
	inbox    chan []byte
	done     chan struct{}
	once     sync.Once
	closeErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbox: make(chan []byte, 16), done: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case d := <-c.inbox:
		return websocket.TextMessage, d, nil
	case <-c.done:
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closeErr != nil {
			return 0, nil, c.closeErr
		}
		return 0, nil, errors.New("use of closed network connection")
	}
}

func (c *fakeConn) WriteMessage(kind int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if kind == websocket.BinaryMessage {
		c.binaries = append(c.binaries, data)
	} else {
		c.texts = append(c.texts, data)
	}
	return nil
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, b)
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// closeWith simulates a remote close carrying err.
func (c *fakeConn) closeWith(err error) {
	c.mu.Lock()
	c.closeErr = err
	c.mu.Unlock()
	c.Close()
}

func (c *fakeConn) Texts() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.texts...)
}

type fakeDialer struct {
	mu    sync.Mutex
	calls int
	conns []*fakeConn
	fail  bool
}

func (d *fakeDialer) Dial(string, http.Header) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.fail {
		return nil, errors.New("connection refused")
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type fakeTimer struct {
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type scheduled struct {
	delay time.Duration
	fn    func()
	timer *fakeTimer
}

type fakeScheduler struct {
	pending []scheduled
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{}
	s.pending = append(s.pending, scheduled{delay: d, fn: f, timer: t})
	return t
}

type openedEvent struct {
	gen  uint64
	conn Conn
}

type closedEvent struct {
	gen uint64
	err error
}

type messageEvent struct {
	gen  uint64
	kind int
	data []byte
}

// chanNotifier queues everything the manager's goroutines report so the test
// can play the control loop.
type chanNotifier struct {
	opened   chan openedEvent
	closed   chan closedEvent
	messages chan messageEvent
	due      chan uint64
}

func newChanNotifier() *chanNotifier {
	return &chanNotifier{
		opened:   make(chan openedEvent, 16),
		closed:   make(chan closedEvent, 16),
		messages: make(chan messageEvent, 16),
		due:      make(chan uint64, 16),
	}
}

func (n *chanNotifier) ChannelOpened(gen uint64, conn Conn) { n.opened <- openedEvent{gen, conn} }
func (n *chanNotifier) ChannelMessage(gen uint64, kind int, data []byte) {
	n.messages <- messageEvent{gen, kind, data}
}
func (n *chanNotifier) ChannelClosed(gen uint64, err error) { n.closed <- closedEvent{gen, err} }
func (n *chanNotifier) ReconnectDue(token uint64)           { n.due <- token }

func waitOpened(t *testing.T, n *chanNotifier) openedEvent {
	t.Helper()
	select {
	case ev := <-n.opened:
		return ev
	case <-time.After(2 * time.Second):
		require.FailNow(t, "timed out waiting for open")
	}
	return openedEvent{}
}

func waitClosed(t *testing.T, n *chanNotifier) closedEvent {
	t.Helper()
	select {
	case ev := <-n.closed:
		return ev
	case <-time.After(2 * time.Second):
		require.FailNow(t, "timed out waiting for close")
	}
	return closedEvent{}
}

func waitDue(t *testing.T, n *chanNotifier) uint64 {
	t.Helper()
	select {
	case tok := <-n.due:
		return tok
	case <-time.After(2 * time.Second):
		require.FailNow(t, "timed out waiting for reconnect timer")
	}
	return 0
}

func waitTimeout() <-chan time.Time { return time.After(2 * time.Second) }
