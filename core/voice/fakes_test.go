package voice_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// silence produces zeroed PCM until closed.
type silence struct {
	closed chan struct{}
	once   sync.Once
}

func (s *silence) Read(p []byte) (int, error) {
	select {
	case <-s.closed:
		return 0, io.EOF
	case <-time.After(2 * time.Millisecond):
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
}

func (s *silence) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

type fakeMic struct {
	mu     sync.Mutex
	err    error
	opened []*silence
}

func (m *fakeMic) Open(context.Context) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	s := &silence{closed: make(chan struct{})}
	m.opened = append(m.opened, s)
	return s, nil
}

// released reports whether every opened stream was closed.
func (m *fakeMic) released() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.opened {
		select {
		case <-s.closed:
		default:
			return false
		}
	}
	return true
}

// transcriber is a fake transcription service.
type transcriber struct {
	server *httptest.Server
	conns  chan *websocket.Conn
	chunks atomic.Int64
	closed atomic.Bool
}

func newTranscriber() *transcriber {
	t := &transcriber{conns: make(chan *websocket.Conn, 4)}
	upgrader := websocket.Upgrader{}
	t.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		t.conns <- conn
		for {
			kind, _, err := conn.ReadMessage()
			if err != nil {
				t.closed.Store(true)
				return
			}
			if kind == websocket.BinaryMessage {
				t.chunks.Add(1)
			}
		}
	}))
	return t
}

func (t *transcriber) url() string {
	return "ws" + strings.TrimPrefix(t.server.URL, "http")
}
