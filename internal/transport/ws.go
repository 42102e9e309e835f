package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/park285/kata-chess-viewer/internal/obslog"
	"github.com/park285/kata-chess-viewer/internal/protocol"
)

var ErrNotConnected = errors.New("websocket not connected")

const (
	dialTimeout  = 10 * time.Second
	pingTimeout  = 3 * time.Second
	writeTimeout = 5 * time.Second
	readLimit    = 1 << 20
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "disconnected"
	}
}

// MessageHandler receives each text frame as one raw protocol message.
type MessageHandler func(raw string)

type StateHandler func(State)

// ConnectHandler runs after every successful (re)connect, before any
// message from that connection is delivered.
type ConnectHandler func(ctx context.Context)

// HeaderProvider supplies handshake headers for each dial.
type HeaderProvider func() map[string]string

type Options struct {
	URL                  string
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
	PingInterval         time.Duration
	Headers              HeaderProvider
}

// WebSocket is a text-frame client that keeps itself connected: it pings on
// a timer, redials with exponential backoff and replays connect handlers on
// every new connection.
type WebSocket struct {
	opts Options

	conn       *websocket.Conn
	connCancel context.CancelFunc
	connM      sync.RWMutex
	writeM     sync.Mutex

	state  State
	stateM sync.RWMutex

	msgHandlers     []MessageHandler
	stateHandlers   []StateHandler
	connectHandlers []ConnectHandler
	handlersM       sync.RWMutex

	reconnecting atomic.Bool

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc
}

func NewWebSocket(opts Options) *WebSocket {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = time.Second
	}
	ws := &WebSocket{
		opts:   opts,
		state:  StateDisconnected,
		stopCh: make(chan struct{}),
	}
	ws.rootCtx, ws.rootCancel = context.WithCancel(context.Background())
	return ws
}

// Connect dials until it succeeds, retrying with the reconnect backoff up to
// MaxReconnectAttempts times. Once connected, dropped connections are
// re-established in the background.
func (ws *WebSocket) Connect(ctx context.Context) error {
	if st := ws.State(); st == StateConnected || st == StateConnecting {
		return nil
	}
	ws.setState(StateConnecting)

	conn, err := ws.dial(ctx)
	for attempt := 1; err != nil && attempt <= ws.opts.MaxReconnectAttempts; attempt++ {
		obslog.L().Info("ws_connect_retry", zap.Int("attempt", attempt), zap.Error(err))
		if werr := ws.waitBackoff(ctx, attempt); werr != nil {
			err = werr
			break
		}
		conn, err = ws.dial(ctx)
	}
	if err != nil {
		ws.setState(StateFailed)
		return err
	}
	ws.attach(conn)
	return nil
}

func (ws *WebSocket) waitBackoff(ctx context.Context, attempt int) error {
	t := time.NewTimer(ws.backoff(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ws.stopCh:
		return ErrNotConnected
	case <-t.C:
		return nil
	}
}

func (ws *WebSocket) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, ws.opts.URL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      ws.buildHeaders(),
	})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", ws.opts.URL, err)
	}
	conn.SetReadLimit(readLimit)
	return conn, nil
}

func (ws *WebSocket) attach(conn *websocket.Conn) {
	if ws.isStopping() {
		_ = conn.Close(websocket.StatusNormalClosure, "close")
		return
	}
	connCtx, cancel := context.WithCancel(ws.rootCtx)
	ws.connM.Lock()
	ws.conn = conn
	ws.connCancel = cancel
	ws.connM.Unlock()
	ws.setState(StateConnected)

	ws.handlersM.RLock()
	onConnect := append([]ConnectHandler(nil), ws.connectHandlers...)
	ws.handlersM.RUnlock()
	for _, h := range onConnect {
		h(connCtx)
	}

	ws.wg.Add(2)
	go ws.listen(connCtx, conn)
	go ws.pingLoop(connCtx, conn)
}

func (ws *WebSocket) listen(ctx context.Context, conn *websocket.Conn) {
	defer ws.wg.Done()
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if ws.isStopping() || ctx.Err() != nil {
				return
			}
			obslog.L().Warn("ws_read_failed", zap.Error(err))
			ws.drop(conn, websocket.StatusGoingAway, "reconnect")
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		ws.handlersM.RLock()
		handlers := append([]MessageHandler(nil), ws.msgHandlers...)
		ws.handlersM.RUnlock()
		for _, h := range handlers {
			h(string(data))
		}
	}
}

// pingLoop sends a control ping and the protocol keep-alive line on every
// tick. Two consecutive failures drop the connection.
func (ws *WebSocket) pingLoop(ctx context.Context, conn *websocket.Conn) {
	defer ws.wg.Done()
	t := time.NewTicker(ws.opts.PingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := conn.Ping(pctx)
			if err == nil {
				err = ws.write(pctx, conn, protocol.Ping{})
			}
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			obslog.L().Debug("ws_ping_failed", zap.Int("failures", failures), zap.Error(err))
			if failures >= 2 {
				if ws.isStopping() || ctx.Err() != nil {
					return
				}
				ws.drop(conn, websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

// drop closes conn if it is still current and starts reconnecting.
func (ws *WebSocket) drop(conn *websocket.Conn, code websocket.StatusCode, reason string) {
	ws.connM.Lock()
	if ws.conn != conn {
		ws.connM.Unlock()
		return
	}
	cancel := ws.connCancel
	ws.conn = nil
	ws.connCancel = nil
	ws.connM.Unlock()

	if cancel != nil {
		cancel()
	}
	_ = conn.Close(code, reason)
	ws.setState(StateDisconnected)
	ws.scheduleReconnect()
}

func (ws *WebSocket) scheduleReconnect() {
	if ws.opts.MaxReconnectAttempts <= 0 || ws.isStopping() {
		return
	}
	if !ws.reconnecting.CompareAndSwap(false, true) {
		return
	}
	ws.setState(StateReconnecting)

	ws.wg.Add(1)
	go func() {
		defer ws.wg.Done()
		for attempt := 1; attempt <= ws.opts.MaxReconnectAttempts; attempt++ {
			select {
			case <-ws.stopCh:
				ws.reconnecting.Store(false)
				return
			case <-time.After(ws.backoff(attempt)):
			}

			conn, err := ws.dial(ws.rootCtx)
			if err != nil {
				obslog.L().Info("ws_reconnect_failed", zap.Int("attempt", attempt), zap.Error(err))
				continue
			}
			ws.reconnecting.Store(false)
			ws.attach(conn)
			return
		}
		ws.reconnecting.Store(false)
		ws.setState(StateFailed)
	}()
}

// backoff doubles the reconnect delay per attempt, capped at 32x.
func (ws *WebSocket) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * ws.opts.ReconnectDelay
}

// Send writes each intent as its own text frame, in order. Concurrent Send
// calls do not interleave.
func (ws *WebSocket) Send(ctx context.Context, intents ...protocol.Intent) error {
	ws.writeM.Lock()
	defer ws.writeM.Unlock()

	ws.connM.RLock()
	conn := ws.conn
	ws.connM.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	wctx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, writeTimeout)
		defer cancel()
	}
	for _, in := range intents {
		if err := conn.Write(wctx, websocket.MessageText, []byte(in.Encode())); err != nil {
			return fmt.Errorf("send %T: %w", in, err)
		}
	}
	return nil
}

func (ws *WebSocket) write(ctx context.Context, conn *websocket.Conn, in protocol.Intent) error {
	ws.writeM.Lock()
	defer ws.writeM.Unlock()
	return conn.Write(ctx, websocket.MessageText, []byte(in.Encode()))
}

func (ws *WebSocket) OnMessage(h MessageHandler) {
	ws.handlersM.Lock()
	defer ws.handlersM.Unlock()
	ws.msgHandlers = append(ws.msgHandlers, h)
}

func (ws *WebSocket) OnStateChange(h StateHandler) {
	ws.handlersM.Lock()
	defer ws.handlersM.Unlock()
	ws.stateHandlers = append(ws.stateHandlers, h)
}

func (ws *WebSocket) OnConnect(h ConnectHandler) {
	ws.handlersM.Lock()
	defer ws.handlersM.Unlock()
	ws.connectHandlers = append(ws.connectHandlers, h)
}

func (ws *WebSocket) State() State {
	ws.stateM.RLock()
	defer ws.stateM.RUnlock()
	return ws.state
}

func (ws *WebSocket) setState(state State) {
	ws.stateM.Lock()
	ws.state = state
	ws.stateM.Unlock()

	ws.handlersM.RLock()
	handlers := append([]StateHandler(nil), ws.stateHandlers...)
	ws.handlersM.RUnlock()
	for _, h := range handlers {
		h(state)
	}
}

// Close stops reconnecting, closes the connection and waits for the
// background goroutines until ctx expires.
func (ws *WebSocket) Close(ctx context.Context) error {
	ws.stopOnce.Do(func() { close(ws.stopCh) })

	ws.connM.Lock()
	conn, cancel := ws.conn, ws.connCancel
	ws.conn, ws.connCancel = nil, nil
	ws.connM.Unlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "close")
	}
	if cancel != nil {
		cancel()
	}
	ws.rootCancel()

	done := make(chan struct{})
	go func() {
		ws.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		ws.setState(StateDisconnected)
		return nil
	}
}

func (ws *WebSocket) isStopping() bool {
	select {
	case <-ws.stopCh:
		return true
	default:
		return false
	}
}

func (ws *WebSocket) buildHeaders() http.Header {
	hdr := http.Header{}
	if ws.opts.Headers == nil {
		return hdr
	}
	for k, v := range ws.opts.Headers() {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		hdr.Set(k, v)
	}
	return hdr
}
