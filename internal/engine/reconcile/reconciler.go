// Package reconcile decides which cache writes become gateway saves.
//
// Every observed write runs through a fixed guard chain before a save is
// scheduled, in this order: the bootstrap guard (no saves before the kind's
// load phase completed), the first-observation guard (the first value seen
// is the baseline, not an edit), the socket-origin guard (values fetched in
// response to a push event are never echoed back), the no-op guard (the
// sanitized fingerprint did not change), and the empty-regression guard (a
// list collapsing to empty without an explicit delete is suspect). Only a
// write that clears all five is saved, immediately or debounced per the
// kind's policy.
package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/merchkit/storesync/internal/core/domain"
	"github.com/merchkit/storesync/internal/core/ports"
	"github.com/merchkit/storesync/internal/engine/origin"
)

// Reconciler watches cache writes and persists genuine local edits.
type Reconciler struct {
	gateway  ports.Gateway
	origins  *origin.Registry
	kinds    *domain.Registry
	logger   ports.Logger
	notifier ports.Notifier

	debounce time.Duration
	timeout  time.Duration
	disabled bool

	// current reports the active tenant and switch generation; a save whose
	// generation went stale while its debounce timer ran is dropped.
	current func() (string, domain.Generation)
	// phaseLoaded reports whether the load phase that delivers a kind has
	// completed for the tenant. Saves before that are bootstrap echoes.
	phaseLoaded func(tenantID string, phase domain.LoadPhase) bool

	mu      sync.Mutex
	seen    map[string]observation
	pending map[string]*pendingSave
	closed  bool
}

// observation is the per-(kind, tenant) baseline the guards compare against.
type observation struct {
	fingerprint uint64
	empty       bool
}

type pendingSave struct {
	entry domain.CacheEntry
	gen   domain.Generation
	timer *time.Timer
}

func NewReconciler(
	gateway ports.Gateway,
	origins *origin.Registry,
	kinds *domain.Registry,
	logger ports.Logger,
	notifier ports.Notifier,
	debounce, timeout time.Duration,
	disabled bool,
	current func() (string, domain.Generation),
	phaseLoaded func(string, domain.LoadPhase) bool,
) *Reconciler {
	return &Reconciler{
		gateway:     gateway,
		origins:     origins,
		kinds:       kinds,
		logger:      logger,
		notifier:    notifier,
		debounce:    debounce,
		timeout:     timeout,
		disabled:    disabled,
		current:     current,
		phaseLoaded: phaseLoaded,
		seen:        make(map[string]observation),
		pending:     make(map[string]*pendingSave),
	}
}

func key(kind domain.Kind, tenantID string) string {
	return tenantID + "::" + string(kind)
}

// Observe runs one cache write through the guard chain and schedules a save
// if it survives.
func (r *Reconciler) Observe(entry domain.CacheEntry) {
	r.observe(entry, false)
}

// ObserveIntentional is Observe without the empty-regression guard. Used for
// deliberate clear operations, where an empty list is the edit.
func (r *Reconciler) ObserveIntentional(entry domain.CacheEntry) {
	r.observe(entry, true)
}

func (r *Reconciler) observe(entry domain.CacheEntry, intentional bool) {
	policy, ok := r.kinds.Policy(entry.Kind)
	if !ok {
		r.logger.Debug("observation for unknown kind dropped", "kind", entry.Kind)
		return
	}

	fp, err := domain.Fingerprint(entry.Value)
	if err != nil {
		r.logger.Warn("unfingerprintable value, save skipped",
			"kind", entry.Kind, "tenant", entry.TenantID, "error", err)
		return
	}
	obs := observation{fingerprint: fp, empty: domain.IsEmptyList(entry.Value)}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	k := key(entry.Kind, entry.TenantID)

	if !r.phaseLoaded(entry.TenantID, policy.Phase) {
		r.seen[k] = obs
		return
	}

	prev, observed := r.seen[k]
	if !observed {
		r.seen[k] = obs
		return
	}

	if r.origins.Consume(entry.Kind, entry.TenantID) {
		r.seen[k] = obs
		return
	}

	if prev.fingerprint == obs.fingerprint {
		return
	}

	if !intentional && policy.ListShaped && !prev.empty && obs.empty {
		r.logger.Warn("empty list regression blocked, not saving",
			"kind", entry.Kind, "tenant", entry.TenantID)
		return
	}

	r.seen[k] = obs

	if r.disabled {
		r.logger.Debug("remote save disabled, keeping local only",
			"kind", entry.Kind, "tenant", entry.TenantID)
		return
	}

	_, gen := r.current()
	delay := r.debounce
	if policy.SaveMode == domain.SaveImmediate {
		delay = 0
	}
	if p, ok := r.pending[k]; ok {
		p.entry = entry
		p.gen = gen
		p.timer.Reset(delay)
		return
	}
	p := &pendingSave{entry: entry, gen: gen}
	p.timer = time.AfterFunc(delay, func() { r.flush(k) })
	r.pending[k] = p
}

func (r *Reconciler) flush(k string) {
	r.mu.Lock()
	p, ok := r.pending[k]
	if ok {
		delete(r.pending, k)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	active, gen := r.current()
	if active != p.entry.TenantID || gen != p.gen {
		r.logger.Debug("stale save discarded",
			"kind", p.entry.Kind, "tenant", p.entry.TenantID)
		return
	}

	// Transient annotations never reach the remote store.
	value, err := domain.Sanitize(p.entry.Value)
	if err != nil {
		r.logger.Warn("save skipped, value not sanitizable",
			"kind", p.entry.Kind, "tenant", p.entry.TenantID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.gateway.SaveEntity(ctx, p.entry.Kind, p.entry.TenantID, value); err != nil {
		r.logger.Warn("save failed, local value kept",
			"kind", p.entry.Kind, "tenant", p.entry.TenantID, "error", err)
		r.notifier.SaveFailed(p.entry.Kind, p.entry.TenantID, err)
		return
	}
	r.logger.Debug("saved", "kind", p.entry.Kind, "tenant", p.entry.TenantID)
}

// FlushAll runs every pending save now instead of waiting out its debounce
// window. Generation checks still apply per save.
func (r *Reconciler) FlushAll() {
	r.mu.Lock()
	keys := make([]string, 0, len(r.pending))
	for k, p := range r.pending {
		if p.timer.Stop() {
			keys = append(keys, k)
		}
	}
	r.mu.Unlock()
	for _, k := range keys {
		r.flush(k)
	}
}

// Reset drops all baselines and cancels pending saves. Called on tenant
// switch so the next tenant's values re-enter through the first-observation
// guard.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, p := range r.pending {
		p.timer.Stop()
		delete(r.pending, k)
	}
	r.seen = make(map[string]observation)
}

// Close cancels pending saves and stops accepting observations.
func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for k, p := range r.pending {
		p.timer.Stop()
		delete(r.pending, k)
	}
}
