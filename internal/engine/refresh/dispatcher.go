// Package refresh turns change notifications from the push channel into
// debounced, deduplicated gateway fetches.
package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/merchkit/storesync/internal/core/domain"
	"github.com/merchkit/storesync/internal/core/ports"
	"github.com/merchkit/storesync/internal/engine/cache"
	"github.com/merchkit/storesync/internal/engine/origin"
)

// Dispatcher coalesces refresh signals per kind. A burst of signals within
// the debounce window collapses to one fetch; when signals for different
// tenants race, the last signal's tenant wins. Fetched values are applied to
// the cache marked as socket-originated so the reconciler will not echo them
// back to the gateway.
type Dispatcher struct {
	gateway ports.Gateway
	cache   *cache.Store
	origins *origin.Registry
	kinds   *domain.Registry
	logger  ports.Logger

	debounce time.Duration
	timeout  time.Duration

	// current reports the active tenant and switch generation. Refreshes
	// whose tenant is no longer active, or whose generation advanced while
	// the fetch was in flight, are discarded.
	current   func() (string, domain.Generation)
	onApplied func(domain.CacheEntry)

	group singleflight.Group

	mu      sync.Mutex
	pending map[domain.Kind]*pendingRefresh
	closed  bool
}

type pendingRefresh struct {
	tenantID string
	timer    *time.Timer
}

func NewDispatcher(
	gateway ports.Gateway,
	store *cache.Store,
	origins *origin.Registry,
	kinds *domain.Registry,
	logger ports.Logger,
	debounce, timeout time.Duration,
	current func() (string, domain.Generation),
	onApplied func(domain.CacheEntry),
) *Dispatcher {
	return &Dispatcher{
		gateway:   gateway,
		cache:     store,
		origins:   origins,
		kinds:     kinds,
		logger:    logger,
		debounce:  debounce,
		timeout:   timeout,
		current:   current,
		onApplied: onApplied,
		pending:   make(map[domain.Kind]*pendingRefresh),
	}
}

// Request schedules a refresh for (kind, tenant). Signals inside the
// debounce window coalesce; the most recent tenant id wins.
func (d *Dispatcher) Request(sig domain.RefreshSignal) {
	if _, ok := d.kinds.Policy(sig.Kind); !ok {
		d.logger.Debug("refresh signal for unknown kind dropped", "kind", sig.Kind)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if p, ok := d.pending[sig.Kind]; ok {
		p.tenantID = sig.TenantID
		p.timer.Reset(d.debounce)
		return
	}
	kind := sig.Kind
	d.pending[kind] = &pendingRefresh{
		tenantID: sig.TenantID,
		timer:    time.AfterFunc(d.debounce, func() { d.fire(kind) }),
	}
}

func (d *Dispatcher) fire(kind domain.Kind) {
	d.mu.Lock()
	p, ok := d.pending[kind]
	if ok {
		delete(d.pending, kind)
	}
	d.mu.Unlock()
	if !ok {
		return
	}

	active, gen := d.current()
	if active == "" || active != p.tenantID {
		d.logger.Debug("refresh dropped, tenant no longer active",
			"kind", kind, "tenant", p.tenantID)
		return
	}

	value, err := d.fetch(kind, p.tenantID)
	if err != nil {
		d.logger.Warn("refresh fetch failed, keeping cached value",
			"kind", kind, "tenant", p.tenantID, "error", err)
		return
	}

	// A tenant switch may have completed while the fetch was in flight.
	if nowActive, nowGen := d.current(); nowActive != p.tenantID || nowGen != gen {
		d.logger.Debug("stale refresh response discarded",
			"kind", kind, "tenant", p.tenantID)
		return
	}

	d.origins.Mark(kind, p.tenantID)
	entry := domain.CacheEntry{
		Kind:         kind,
		TenantID:     p.tenantID,
		Value:        value,
		LastSyncedAt: time.Now(),
		Origin:       domain.OriginSocket,
	}
	d.cache.Put(context.Background(), entry)
	if d.onApplied != nil {
		d.onApplied(entry)
	}
}

// fetch deduplicates concurrent fetches of the same (kind, tenant) and
// substitutes the kind's default on NotFound.
func (d *Dispatcher) fetch(kind domain.Kind, tenantID string) (json.RawMessage, error) {
	v, err, _ := d.group.Do(tenantID+"::"+string(kind), func() (any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		return d.gateway.FetchEntity(ctx, kind, tenantID)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			policy, _ := d.kinds.Policy(kind)
			return policy.Default, nil
		}
		return nil, err
	}
	return v.(json.RawMessage), nil
}

// Close cancels every pending refresh timer and stops accepting signals.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	for kind, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, kind)
	}
}
