package pushchan_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/merchkit/storesync/internal/adapters/pushchan"
	"github.com/merchkit/storesync/internal/core/domain"
)

// recordingLogger collects log lines; the stream transport runs outside a
// synctest bubble so a plain fake is easier than a mock here.
type recordingLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Info(string, ...any)  {}
func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}
func (l *recordingLogger) Error(error, ...any) {}

func (l *recordingLogger) warnCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warns)
}

func TestStreamTransport_DeliversEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/events/t1", r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "event: data-changed\ndata: {\"kind\":\"products\",\"tenantId\":\"t1\"}\n\n")
		fmt.Fprint(w, "event: other-event\ndata: {\"kind\":\"ignored\",\"tenantId\":\"t1\"}\n\n")
		fmt.Fprint(w, "event: data-changed\ndata: not-json\n\n")
		fmt.Fprint(w, "event: data-changed\ndata: {\"kind\":\"orders\",\"tenantId\":\"t1\"}\n\n")
		flusher.Flush()
		// Hold the stream open briefly so the client reads everything.
		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	tr := pushchan.NewStreamTransport(srv.URL, &recordingLogger{}, 1)
	defer tr.Close() //nolint:errcheck // test teardown

	events := make(chan domain.ChangeEvent, 8)
	cancel := tr.Subscribe(func(ev domain.ChangeEvent) { events <- ev })
	defer cancel()

	require.NoError(t, tr.Join("t1"))

	first := <-events
	assert.Equal(t, domain.ChangeEvent{Kind: domain.KindProducts, TenantID: "t1"}, first)
	second := <-events
	assert.Equal(t, domain.ChangeEvent{Kind: domain.KindOrders, TenantID: "t1"}, second)

	// Only data-changed frames with valid payloads are dispatched.
	select {
	case ev := <-events:
		t.Fatalf("unexpected extra event: %+v", ev)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestStreamTransport_LeaveStopsStream(t *testing.T) {
	connected := make(chan struct{}, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		connected <- struct{}{}
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	tr := pushchan.NewStreamTransport(srv.URL, &recordingLogger{}, 3)
	require.NoError(t, tr.Join("t1"))
	<-connected

	require.NoError(t, tr.Leave("t1"))
	require.NoError(t, tr.Close())

	// No reconnect after an explicit leave.
	select {
	case <-connected:
		t.Fatal("unexpected reconnect after leave")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestStreamTransport_BoundedReconnects(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	logger := &recordingLogger{}
	tr := pushchan.NewStreamTransport(srv.URL, logger, 1)
	require.NoError(t, tr.Join("t1"))

	require.Eventually(t, func() bool { return logger.warnCount() > 0 }, 2*time.Second, 20*time.Millisecond)
	require.NoError(t, tr.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, attempts)
}

func TestStreamTransport_RejoinAfterExhaustionRevives(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "event: data-changed\ndata: {\"kind\":\"products\",\"tenantId\":\"t1\"}\n\n")
		flusher.Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	logger := &recordingLogger{}
	tr := pushchan.NewStreamTransport(srv.URL, logger, 1)
	defer tr.Close() //nolint:errcheck // test teardown

	events := make(chan domain.ChangeEvent, 1)
	cancel := tr.Subscribe(func(ev domain.ChangeEvent) { events <- ev })
	defer cancel()

	require.NoError(t, tr.Join("t1"))
	require.Eventually(t, func() bool { return logger.warnCount() > 0 }, 2*time.Second, 20*time.Millisecond)

	// The exhausted room was forgotten, so joining again opens a new
	// stream instead of hitting the idempotency check.
	require.NoError(t, tr.Join("t1"))
	select {
	case ev := <-events:
		assert.Equal(t, domain.ChangeEvent{Kind: domain.KindProducts, TenantID: "t1"}, ev)
	case <-time.After(2 * time.Second):
		t.Fatal("no events after rejoin")
	}
}

func TestStreamTransport_JoinAfterCloseFails(t *testing.T) {
	tr := pushchan.NewStreamTransport("http://127.0.0.1:1", &recordingLogger{}, 1)
	require.NoError(t, tr.Close())
	require.Error(t, tr.Join("t1"))
}

func TestStreamTransport_JoinIsIdempotent(t *testing.T) {
	var mu sync.Mutex
	conns := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		conns++
		mu.Unlock()
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	tr := pushchan.NewStreamTransport(srv.URL, &recordingLogger{}, 3)
	require.NoError(t, tr.Join("t1"))
	require.NoError(t, tr.Join("t1"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return conns == 1
	}, time.Second, 10*time.Millisecond)
	require.NoError(t, tr.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, conns)
}
