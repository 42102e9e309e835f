package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func newTestWebhook(t *testing.T, handler fasthttp.RequestHandler, opts ...Option) *Webhook {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	t.Cleanup(func() { _ = ln.Close() })
	go func() { _ = fasthttp.Serve(ln, handler) }()
	client := &fasthttp.Client{Dial: func(addr string) (net.Conn, error) { return ln.Dial() }}
	return NewWebhook("http://hooks.test/notify", append([]Option{WithClient(client)}, opts...)...)
}

func TestWebhookRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	bodies := make(chan []byte, 4)
	w := newTestWebhook(t, func(ctx *fasthttp.RequestCtx) {
		n := hits.Add(1)
		bodies <- append([]byte(nil), ctx.PostBody()...)
		if n == 1 {
			ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
			return
		}
		ctx.SetStatusCode(fasthttp.StatusNoContent)
	}, WithHeaderProvider(func() map[string]string { return map[string]string{"X-Token": "t"} }))

	if err := w.Notify(context.Background(), ServerError("game is full")); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if hits.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", hits.Load())
	}
	var got struct {
		Source  string `json:"source"`
		Kind    string `json:"kind"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(<-bodies, &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got.Source != "kata-viewer" || got.Kind != KindServerError || got.Message != "game is full" {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestWebhookDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	w := newTestWebhook(t, func(ctx *fasthttp.RequestCtx) {
		hits.Add(1)
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		ctx.SetBodyString("nope")
	})
	err := w.Notify(context.Background(), ServerError("x"))
	if err == nil || !strings.Contains(err.Error(), "status=400") {
		t.Fatalf("expected 400 error, got %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", hits.Load())
	}
}

func TestMultiJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	var delivered []string
	m := Multi{
		Func(func(_ context.Context, n Notice) error { delivered = append(delivered, n.Message); return nil }),
		nil,
		Func(func(context.Context, Notice) error { return boom }),
		NewLogNotifier(nil),
	}
	err := m.Notify(context.Background(), ServerError("hello"))
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if len(delivered) != 1 || delivered[0] != "hello" {
		t.Fatalf("first notifier not called: %v", delivered)
	}
}

func TestBackoffDuration(t *testing.T) {
	if backoffDuration(0) != backoffDuration(1) || backoffDuration(9) != backoffDuration(6) {
		t.Fatalf("backoff bounds not clamped")
	}
	if !shouldRetryStatus(502) || shouldRetryStatus(404) {
		t.Fatalf("unexpected retry policy")
	}
}
