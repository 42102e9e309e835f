package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"github.com/park285/kata-chess-viewer/internal/protocol"
)

type fakeServer struct {
	srv      *httptest.Server
	received chan string
	conns    chan *websocket.Conn
	headers  chan http.Header
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{
		received: make(chan string, 256),
		conns:    make(chan *websocket.Conn, 8),
		headers:  make(chan http.Header, 8),
	}
	fs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.headers <- r.Header.Clone()
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		fs.conns <- c
		for {
			typ, data, err := c.Read(context.Background())
			if err != nil {
				return
			}
			if typ == websocket.MessageText {
				select {
				case fs.received <- string(data):
				default:
				}
			}
		}
	}))
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fakeServer) url() string {
	return "ws" + strings.TrimPrefix(fs.srv.URL, "http")
}

func waitFor(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case got := <-ch:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func newClient(t *testing.T, opts Options) *WebSocket {
	t.Helper()
	ws := NewWebSocket(opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = ws.Close(ctx)
	})
	return ws
}

func TestConnectObserveAndDeliver(t *testing.T) {
	fs := newFakeServer(t)
	ws := newClient(t, Options{
		URL:     fs.url(),
		Headers: func() map[string]string { return map[string]string{"X-Session-Id": "sess-1", "X-Empty": " "} },
	})
	ws.OnConnect(func(ctx context.Context) {
		if err := ws.Send(ctx, protocol.Observe{}); err != nil {
			t.Errorf("send observe: %v", err)
		}
	})
	got := make(chan string, 4)
	ws.OnMessage(func(raw string) { got <- raw })

	if err := ws.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if ws.State() != StateConnected {
		t.Fatalf("state = %v", ws.State())
	}
	hdr := <-fs.headers
	if hdr.Get("X-Session-Id") != "sess-1" || hdr.Get("X-Empty") != "" {
		t.Fatalf("unexpected handshake headers: %v", hdr)
	}
	waitFor(t, fs.received, "observe")

	conn := <-fs.conns
	if err := conn.Write(context.Background(), websocket.MessageText, []byte("playerid 3\nplayer 3,-,a,0,0,0,,0")); err != nil {
		t.Fatalf("server write: %v", err)
	}
	waitFor(t, got, "playerid 3\nplayer 3,-,a,0,0,0,,0")

	if err := ws.Send(context.Background(), protocol.APIKey{Key: "k"}, protocol.RequestPlayerID{}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	waitFor(t, fs.received, "apikey k")
	waitFor(t, fs.received, "playerid")
}

func TestKeepAlivePing(t *testing.T) {
	fs := newFakeServer(t)
	ws := newClient(t, Options{URL: fs.url(), PingInterval: 20 * time.Millisecond})
	if err := ws.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitFor(t, fs.received, "ping")
}

func TestReconnectReplaysConnectHandlers(t *testing.T) {
	fs := newFakeServer(t)
	ws := newClient(t, Options{URL: fs.url(), MaxReconnectAttempts: 3, ReconnectDelay: 10 * time.Millisecond})
	ws.OnConnect(func(ctx context.Context) { _ = ws.Send(ctx, protocol.Observe{}) })

	if err := ws.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitFor(t, fs.received, "observe")

	first := <-fs.conns
	_ = first.Close(websocket.StatusGoingAway, "restart")

	waitFor(t, fs.received, "observe")
	select {
	case <-fs.conns:
	case <-time.After(3 * time.Second):
		t.Fatalf("no second connection")
	}
}

func TestSendWithoutConnection(t *testing.T) {
	ws := newClient(t, Options{URL: "ws://127.0.0.1:1"})
	err := ws.Send(context.Background(), protocol.Ping{})
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestConnectFailureWithoutRetries(t *testing.T) {
	ws := newClient(t, Options{URL: "ws://127.0.0.1:1"})
	var states []State
	ws.OnStateChange(func(s State) { states = append(states, s) })
	if err := ws.Connect(context.Background()); err == nil {
		t.Fatalf("expected dial error")
	}
	if ws.State() != StateFailed {
		t.Fatalf("state = %v", ws.State())
	}
	if len(states) != 2 || states[0] != StateConnecting || states[1] != StateFailed {
		t.Fatalf("unexpected transitions: %v", states)
	}
}

func TestConnectRetriesFirstDial(t *testing.T) {
	fs := newFakeServer(t)
	var dials atomic.Int32
	flaky := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if dials.Add(1) <= 2 {
			http.Error(w, "starting", http.StatusServiceUnavailable)
			return
		}
		fs.srv.Config.Handler.ServeHTTP(w, r)
	}))
	t.Cleanup(flaky.Close)

	ws := newClient(t, Options{
		URL:                  "ws" + strings.TrimPrefix(flaky.URL, "http"),
		MaxReconnectAttempts: 3,
		ReconnectDelay:       10 * time.Millisecond,
	})
	if err := ws.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if ws.State() != StateConnected {
		t.Fatalf("state = %v", ws.State())
	}
	if got := dials.Load(); got != 3 {
		t.Fatalf("dials = %d, want 3", got)
	}
}

func TestConnectGivesUpWithoutBackgroundRetry(t *testing.T) {
	ws := newClient(t, Options{
		URL:                  "ws://127.0.0.1:1",
		MaxReconnectAttempts: 2,
		ReconnectDelay:       5 * time.Millisecond,
	})
	var states []State
	ws.OnStateChange(func(s State) { states = append(states, s) })
	if err := ws.Connect(context.Background()); err == nil {
		t.Fatalf("expected dial error")
	}
	time.Sleep(50 * time.Millisecond)
	if ws.State() != StateFailed || ws.reconnecting.Load() {
		t.Fatalf("state = %v, reconnecting = %v", ws.State(), ws.reconnecting.Load())
	}
	if len(states) != 2 || states[0] != StateConnecting || states[1] != StateFailed {
		t.Fatalf("unexpected transitions: %v", states)
	}
}

func TestConnectStopsRetryingOnCancel(t *testing.T) {
	ws := newClient(t, Options{
		URL:                  "ws://127.0.0.1:1",
		MaxReconnectAttempts: 5,
		ReconnectDelay:       time.Hour,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := ws.Connect(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestBackoff(t *testing.T) {
	ws := NewWebSocket(Options{ReconnectDelay: 100 * time.Millisecond})
	want := []time.Duration{100, 200, 400, 800, 1600, 3200, 3200}
	for i, w := range want {
		if got := ws.backoff(i + 1); got != w*time.Millisecond {
			t.Fatalf("backoff(%d) = %v, want %v", i+1, got, w*time.Millisecond)
		}
	}
}

func TestDryRunEgress(t *testing.T) {
	s := NewEgress(nil, true, nil)
	if err := s.Send(context.Background(), protocol.Move{Move: "e2e4"}); err != nil {
		t.Fatalf("dry run send: %v", err)
	}
	if redact(protocol.APIKey{Key: "secret"}) != "apikey ***" {
		t.Fatalf("api key not redacted")
	}
}
