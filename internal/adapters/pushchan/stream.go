package pushchan

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.trai.ch/zerr"

	"github.com/merchkit/storesync/internal/core/domain"
	"github.com/merchkit/storesync/internal/core/ports"
)

const (
	// reconnectInitialDelay is the first wait between stream attempts.
	reconnectInitialDelay = 500 * time.Millisecond
	// reconnectMaxDelay caps the backoff between stream attempts.
	reconnectMaxDelay = 10 * time.Second
)

// StreamTransport implements ports.PushTransport over a server-sent event
// stream, one stream per joined room:
//
//	GET {base}/events/{room}    event: data-changed
//	                            data: {"kind":"...","tenantId":"..."}
//
// A dropped stream reconnects with bounded exponential backoff. Once the
// attempts are exhausted the room is forgotten and goes silent; the engine
// keeps serving from cache without live updates, and the next Join for the
// room opens a fresh stream.
type StreamTransport struct {
	baseURL     string
	http        *http.Client
	logger      ports.Logger
	maxAttempts uint

	mu      sync.Mutex
	rooms   map[string]*roomStream
	subs    map[int]func(domain.ChangeEvent)
	nextSub int
	closed  bool
	wg      sync.WaitGroup
}

type roomStream struct {
	cancel context.CancelFunc
}

var _ ports.PushTransport = (*StreamTransport)(nil)

// NewStreamTransport creates a transport for the given push base URL.
func NewStreamTransport(baseURL string, logger ports.Logger, maxAttempts uint) *StreamTransport {
	return &StreamTransport{
		baseURL:     strings.TrimRight(baseURL, "/"),
		http:        &http.Client{},
		logger:      logger,
		maxAttempts: maxAttempts,
		rooms:       make(map[string]*roomStream),
		subs:        make(map[int]func(domain.ChangeEvent)),
	}
}

// Join opens the event stream for a room. Idempotent per room.
func (t *StreamTransport) Join(room string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return zerr.New("transport closed")
	}
	if _, ok := t.rooms[room]; ok {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	rs := &roomStream{cancel: cancel}
	t.rooms[room] = rs
	t.wg.Add(1)
	go t.run(ctx, room, rs)
	return nil
}

// Leave closes the event stream for a room. Unknown rooms are a no-op.
func (t *StreamTransport) Leave(room string) error {
	t.mu.Lock()
	rs, ok := t.rooms[room]
	delete(t.rooms, room)
	t.mu.Unlock()
	if ok {
		rs.cancel()
	}
	return nil
}

// Subscribe registers a change event handler.
func (t *StreamTransport) Subscribe(fn func(domain.ChangeEvent)) (cancel func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = fn
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.subs, id)
	}
}

// Close cancels every room stream and waits for them to drain.
func (t *StreamTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	for room, rs := range t.rooms {
		rs.cancel()
		delete(t.rooms, room)
	}
	t.mu.Unlock()

	t.wg.Wait()
	return nil
}

// run consumes the room's stream, reconnecting with backoff until either
// the room is left or the attempt budget is exhausted.
func (t *StreamTransport) run(ctx context.Context, room string, rs *roomStream) {
	defer t.wg.Done()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = reconnectInitialDelay
	policy.MaxInterval = reconnectMaxDelay

	operation := func() (struct{}, error) {
		err := t.consume(ctx, room)
		if ctx.Err() != nil {
			// The room was left; stop retrying.
			return struct{}{}, backoff.Permanent(ctx.Err())
		}
		return struct{}{}, err
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(t.maxAttempts),
	)
	if err != nil && ctx.Err() == nil {
		// Forget the room so a later Join can open a fresh stream. The
		// identity check keeps a stale run from evicting a replacement
		// registered after a leave/join cycle.
		t.mu.Lock()
		if t.rooms[room] == rs {
			delete(t.rooms, room)
		}
		t.mu.Unlock()
		t.logger.Warn("push stream exhausted reconnect attempts, live updates disabled", "room", room, "error", err)
	}
}

// consume runs one stream connection until it drops or ctx is cancelled.
func (t *StreamTransport) consume(ctx context.Context, room string) error {
	streamURL := fmt.Sprintf("%s/events/%s", t.baseURL, url.PathEscape(room))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return zerr.Wrap(err, "failed to build stream request")
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := t.http.Do(req)
	if err != nil {
		return zerr.Wrap(domain.ErrNetwork, err.Error())
	}
	defer resp.Body.Close() //nolint:errcheck // Best effort close in defer

	if resp.StatusCode != http.StatusOK {
		return zerr.Wrap(domain.ErrNetwork, fmt.Sprintf("unexpected stream status %d", resp.StatusCode))
	}

	t.logger.Debug("push stream connected", "room", room)

	var eventName, data string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if eventName == "data-changed" && data != "" {
				t.dispatch(data)
			}
			eventName, data = "", ""
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return zerr.Wrap(domain.ErrNetwork, err.Error())
	}
	return zerr.Wrap(domain.ErrNetwork, "stream closed by server")
}

func (t *StreamTransport) dispatch(data string) {
	var ev domain.ChangeEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		t.logger.Warn("dropping malformed change event", "error", err)
		return
	}

	t.mu.Lock()
	handlers := make([]func(domain.ChangeEvent), 0, len(t.subs))
	for _, fn := range t.subs {
		handlers = append(handlers, fn)
	}
	t.mu.Unlock()

	for _, fn := range handlers {
		fn(ev)
	}
}
