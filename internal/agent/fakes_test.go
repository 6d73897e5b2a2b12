package agent

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/raihanakbr/voice-agent-client/internal/audio"
	"github.com/raihanakbr/voice-agent-client/internal/keystore"
	"github.com/raihanakbr/voice-agent-client/internal/websocket"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu    sync.Mutex
	creds keystore.Credentials
	saves int
}

func (s *memStore) Load() (keystore.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds, nil
}

func (s *memStore) Save(c keystore.Credentials) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = c
	s.saves++
	return nil
}

type fakeClip struct{ frames int }

func (c fakeClip) Frames() int { return c.frames }
func (c fakeClip) Duration() time.Duration {
	return audio.PCMDuration(c.frames*2, audio.DefaultSampleRate, audio.DefaultChannels, audio.DefaultBitDepth)
}

// fakeDecoder yields one frame per two PCM bytes declared in the header.
type fakeDecoder struct {
	mu         sync.Mutex
	containers [][]byte
	err        error
}

func (d *fakeDecoder) Decode(container []byte) (audio.Clip, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.containers = append(d.containers, container)
	if d.err != nil {
		return nil, d.err
	}
	n, err := audio.HeaderDataLength(container)
	if err != nil {
		return nil, err
	}
	return fakeClip{frames: n / 2}, nil
}

func (d *fakeDecoder) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.containers)
}

func (d *fakeDecoder) Container(i int) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.containers[i]
}

type fakePlayer struct {
	mu    sync.Mutex
	clips []audio.Clip
	gains []float64
	dones []func(error)
}

func (p *fakePlayer) Play(clip audio.Clip, gain float64, done func(error)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clips = append(p.clips, clip)
	p.gains = append(p.gains, gain)
	p.dones = append(p.dones, done)
	return nil
}

func (p *fakePlayer) Played(i int) (audio.Clip, float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clips[i], p.gains[i]
}

func (p *fakePlayer) Plays() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.dones)
}

func (p *fakePlayer) Finish(i int, err error) {
	p.mu.Lock()
	done := p.dones[i]
	p.mu.Unlock()
	done(err)
}

// fakeTone yields one frame per millisecond.
type fakeTone struct {
	mu    sync.Mutex
	freqs []int
	err   error
}

func (s *fakeTone) Tone(freq int, d time.Duration) (audio.Clip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.freqs = append(s.freqs, freq)
	if s.err != nil {
		return nil, s.err
	}
	return fakeClip{frames: int(d / time.Millisecond)}, nil
}

type fakeStream struct{}

func (fakeStream) Close() error { return nil }

type fakeCapturer struct {
	mu      sync.Mutex
	onFrame func([]float32)
	err     error
}

func (c *fakeCapturer) Open(_ audio.CaptureConstraints, onFrame func([]float32)) (audio.CaptureStream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	c.onFrame = onFrame
	return fakeStream{}, nil
}

func (c *fakeCapturer) Emit(samples []float32) {
	c.mu.Lock()
	fn := c.onFrame
	c.mu.Unlock()
	fn(samples)
}

type fakeTimer struct{}

func (fakeTimer) Stop() bool { return true }

type pendingTimer struct {
	delay time.Duration
	fn    func()
}

// manualScheduler collects timers; the test fires them.
type manualScheduler struct {
	mu      sync.Mutex
	pending []pendingTimer
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) websocket.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, pendingTimer{delay: d, fn: f})
	return fakeTimer{}
}

// FireAll runs and clears every pending timer.
func (s *manualScheduler) FireAll() int {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, p := range pending {
		p.fn()
	}
	return len(pending)
}

func (s *manualScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// voiceServer plays the server side of the channel.
type voiceServer struct {
	srv *httptest.Server

	configs chan websocket.ConfigureKeysMessage
	raw     chan string
	binary  chan []byte

	mu    sync.Mutex
	conns []*gws.Conn
}

func newVoiceServer(t *testing.T) *voiceServer {
	t.Helper()
	s := &voiceServer{
		configs: make(chan websocket.ConfigureKeysMessage, 16),
		raw:     make(chan string, 16),
		binary:  make(chan []byte, 64),
	}
	upgrader := gws.Upgrader{}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != websocket.ServerPath {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		s.serve(conn)
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *voiceServer) serve(conn *gws.Conn) {
	defer conn.Close()
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if kind == gws.BinaryMessage {
			s.binary <- data
			continue
		}
		var msg websocket.ConfigureKeysMessage
		if err := json.Unmarshal(data, &msg); err == nil && msg.Type == websocket.TypeConfigureAPIKeys {
			s.configs <- msg
			s.raw <- string(data)
		}
	}
}

func (s *voiceServer) endpoint(t *testing.T) string {
	t.Helper()
	u, err := websocket.EndpointURL(s.srv.URL)
	require.NoError(t, err)
	return u
}

func (s *voiceServer) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Send writes v as JSON on the most recent connection.
func (s *voiceServer) Send(t *testing.T, v interface{}) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.conns)
	require.NoError(t, s.conns[len(s.conns)-1].WriteJSON(v))
}

func (s *voiceServer) WaitConfig(t *testing.T) websocket.ConfigureKeysMessage {
	t.Helper()
	select {
	case msg := <-s.configs:
		return msg
	case <-time.After(5 * time.Second):
		require.FailNow(t, "timed out waiting for configure_api_keys")
	}
	return websocket.ConfigureKeysMessage{}
}

// WaitConfigJSON returns the next configure_api_keys envelope as sent.
func (s *voiceServer) WaitConfigJSON(t *testing.T) string {
	t.Helper()
	select {
	case raw := <-s.raw:
		return raw
	case <-time.After(5 * time.Second):
		require.FailNow(t, "timed out waiting for configure_api_keys")
	}
	return ""
}

func (s *voiceServer) WaitBinary(t *testing.T) []byte {
	t.Helper()
	select {
	case data := <-s.binary:
		return data
	case <-time.After(5 * time.Second):
		require.FailNow(t, "timed out waiting for audio frame")
	}
	return nil
}

var errMicDenied = errors.New("permission denied")
