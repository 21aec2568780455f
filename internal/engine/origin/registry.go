// Package origin tracks which cache writes originated from the push channel.
//
// When a remote change notification triggers a refresh, the fetched value is
// written into the cache just like a local edit would be. Without a marker the
// reconciler would observe that write and save it straight back to the
// gateway, echoing the server's own data at it. The registry lets the refresh
// path mark such writes so the reconciler can consume the marker exactly once
// and skip the save.
package origin

import (
	"sync"
	"time"

	"github.com/merchkit/storesync/internal/core/domain"
)

// Registry remembers socket-originated writes per (kind, tenant) pair.
// Marks are one-shot and expire after a TTL so a refresh whose observation
// never arrives cannot suppress an unrelated local edit later.
type Registry struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]*time.Timer
}

func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		ttl:     ttl,
		entries: make(map[string]*time.Timer),
	}
}

func key(kind domain.Kind, tenantID string) string {
	return tenantID + "::" + string(kind)
}

// Mark records that the next observation for (kind, tenant) came from the
// push channel. A second Mark before the first is consumed resets the TTL.
func (r *Registry) Mark(kind domain.Kind, tenantID string) {
	k := key(kind, tenantID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.entries[k]; ok {
		t.Stop()
	}
	r.entries[k] = time.AfterFunc(r.ttl, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.entries, k)
	})
}

// Consume reports whether (kind, tenant) carries an unexpired mark and
// clears it. Each mark satisfies at most one Consume.
func (r *Registry) Consume(kind domain.Kind, tenantID string) bool {
	k := key(kind, tenantID)

	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.entries[k]
	if !ok {
		return false
	}
	t.Stop()
	delete(r.entries, k)
	return true
}

// Reset drops every pending mark. Called on tenant switch.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, t := range r.entries {
		t.Stop()
		delete(r.entries, k)
	}
}
