// Package engine assembles the sync engine: the tenant-partitioned cache,
// the push channel room manager, the refresh dispatcher, the persistence
// reconciler and the session coordinator, behind one facade.
package engine

import (
	"context"
	"sync"
	"time"

	"go.trai.ch/zerr"

	"github.com/merchkit/storesync/internal/adapters/pushchan"
	"github.com/merchkit/storesync/internal/core/domain"
	"github.com/merchkit/storesync/internal/core/ports"
	"github.com/merchkit/storesync/internal/engine/cache"
	"github.com/merchkit/storesync/internal/engine/origin"
	"github.com/merchkit/storesync/internal/engine/reconcile"
	"github.com/merchkit/storesync/internal/engine/refresh"
	"github.com/merchkit/storesync/internal/engine/session"
)

// Options carries the ports and tuning knobs the engine is built from.
type Options struct {
	Gateway   ports.Gateway
	Snapshots ports.SnapshotStore
	Transport ports.PushTransport
	Notifier  ports.Notifier
	Logger    ports.Logger
	Kinds     *domain.Registry

	RefreshDebounce time.Duration
	SaveDebounce    time.Duration
	JoinDelay       time.Duration
	SocketFlagTTL   time.Duration
	RequestTimeout  time.Duration

	DisableRemoteSave bool
}

// Handle is a read-only view of one kind for the active tenant.
type Handle struct {
	Kind     domain.Kind
	Value    []byte
	SyncedAt time.Time
	Origin   domain.Origin
	// Loading is true while no value exists yet and the kind's load phase
	// has not completed.
	Loading bool
	// Err is the last save failure for this kind, if any. Cleared by the
	// next applied write.
	Err error
}

// Engine is the facade over the sync machinery. All methods are safe for
// concurrent use.
type Engine struct {
	logger    ports.Logger
	snapshots ports.SnapshotStore
	kinds     *domain.Registry

	cache       *cache.Store
	origins     *origin.Registry
	dispatcher  *refresh.Dispatcher
	reconciler  *reconcile.Reconciler
	coordinator *session.Coordinator
	rooms       *pushchan.Manager

	mu      sync.Mutex
	subs    map[int]func(domain.CacheEntry)
	nextSub int
	// saveErrs holds the last save failure per (kind, tenant), cleared by
	// the next applied write for that pair.
	saveErrs map[string]error
	closed   bool
}

// recordingNotifier captures save failures for Handle.Err before forwarding
// them to the host's notifier.
type recordingNotifier struct {
	engine *Engine
	next   ports.Notifier
}

func (n recordingNotifier) SaveFailed(kind domain.Kind, tenantID string, err error) {
	n.engine.mu.Lock()
	n.engine.saveErrs[tenantID+"::"+string(kind)] = err
	n.engine.mu.Unlock()
	n.next.SaveFailed(kind, tenantID, err)
}

func New(opts Options) *Engine {
	e := &Engine{
		logger:    opts.Logger,
		snapshots: opts.Snapshots,
		kinds:     opts.Kinds,
		subs:      make(map[int]func(domain.CacheEntry)),
		saveErrs:  make(map[string]error),
	}

	e.cache = cache.NewStore(opts.Snapshots, opts.Logger)
	e.origins = origin.NewRegistry(opts.SocketFlagTTL)

	current := func() (string, domain.Generation) { return e.coordinator.Current() }
	phaseLoaded := func(tenantID string, phase domain.LoadPhase) bool {
		return e.coordinator.PhaseLoaded(tenantID, phase)
	}

	e.reconciler = reconcile.NewReconciler(
		opts.Gateway, e.origins, opts.Kinds, opts.Logger,
		recordingNotifier{engine: e, next: opts.Notifier},
		opts.SaveDebounce, opts.RequestTimeout, opts.DisableRemoteSave,
		current, phaseLoaded,
	)
	e.dispatcher = refresh.NewDispatcher(
		opts.Gateway, e.cache, e.origins, opts.Kinds, opts.Logger,
		opts.RefreshDebounce, opts.RequestTimeout,
		current,
		func(entry domain.CacheEntry) {
			e.reconciler.Observe(entry)
			e.notify(entry)
		},
	)
	e.rooms = pushchan.NewManager(opts.Transport, opts.Logger, opts.JoinDelay, e.dispatcher.Request)
	e.coordinator = session.NewCoordinator(
		opts.Gateway, e.cache, e.reconciler, e.origins, opts.Kinds,
		e.rooms, opts.Logger, opts.RequestTimeout, e.notify,
	)
	return e
}

// Switch makes tenantID the active tenant and loads its data.
func (e *Engine) Switch(ctx context.Context, tenantID string) error {
	if err := e.guard(); err != nil {
		return err
	}
	return e.coordinator.Switch(ctx, tenantID)
}

// Handle returns the current view of one kind for the active tenant.
func (e *Engine) Handle(kind domain.Kind) (Handle, error) {
	if err := e.guard(); err != nil {
		return Handle{}, err
	}
	policy, ok := e.kinds.Policy(kind)
	if !ok {
		return Handle{}, zerr.Wrap(domain.ErrUnknownKind, string(kind))
	}
	active, _ := e.coordinator.Current()
	if active == "" {
		return Handle{}, domain.ErrNoActiveTenant
	}

	e.mu.Lock()
	saveErr := e.saveErrs[active+"::"+string(kind)]
	e.mu.Unlock()

	entry, ok := e.cache.Get(kind, active)
	if !ok {
		return Handle{
			Kind:    kind,
			Value:   policy.Default,
			Loading: !e.coordinator.PhaseLoaded(active, policy.Phase),
			Err:     saveErr,
		}, nil
	}
	return Handle{
		Kind:     kind,
		Value:    entry.Value,
		SyncedAt: entry.LastSyncedAt,
		Origin:   entry.Origin,
		Err:      saveErr,
	}, nil
}

// Update applies a local edit to one kind. The value becomes visible to
// readers immediately; persistence follows the kind's save policy.
func (e *Engine) Update(ctx context.Context, kind domain.Kind, value []byte) error {
	entry, err := e.localEntry(kind, value)
	if err != nil {
		return err
	}
	e.cache.Put(ctx, entry)
	e.reconciler.Observe(entry)
	e.notify(entry)
	return nil
}

// Clear resets one kind to its default and persists the clear. Unlike a
// plain Update to an empty value, a Clear is an explicit delete and is not
// blocked by the empty-regression guard.
func (e *Engine) Clear(ctx context.Context, kind domain.Kind) error {
	policy, ok := e.kinds.Policy(kind)
	if !ok {
		return zerr.Wrap(domain.ErrUnknownKind, string(kind))
	}
	entry, err := e.localEntry(kind, policy.Default)
	if err != nil {
		return err
	}
	e.cache.Put(ctx, entry)
	e.reconciler.ObserveIntentional(entry)
	e.notify(entry)
	return nil
}

// Refresh asks for a re-fetch of one kind, going through the same debounced
// path a push notification takes.
func (e *Engine) Refresh(kind domain.Kind) error {
	if err := e.guard(); err != nil {
		return err
	}
	if _, ok := e.kinds.Policy(kind); !ok {
		return zerr.Wrap(domain.ErrUnknownKind, string(kind))
	}
	active, _ := e.coordinator.Current()
	if active == "" {
		return domain.ErrNoActiveTenant
	}
	e.dispatcher.Request(domain.RefreshSignal{Kind: kind, TenantID: active})
	return nil
}

// Subscribe registers a callback invoked after every applied cache write
// for the active tenant. The returned cancel removes the subscription.
func (e *Engine) Subscribe(fn func(domain.CacheEntry)) (cancel func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.subs, id)
	}
}

// Flush pushes every pending debounced save out immediately.
func (e *Engine) Flush() {
	e.reconciler.FlushAll()
}

// DeleteAll removes every cached value and durable snapshot of the active
// tenant. Remote data is untouched.
func (e *Engine) DeleteAll(ctx context.Context) error {
	if err := e.guard(); err != nil {
		return err
	}
	active, _ := e.coordinator.Current()
	if active == "" {
		return domain.ErrNoActiveTenant
	}
	e.reconciler.Reset()
	e.origins.Reset()
	return e.cache.Purge(ctx, active)
}

// Close shuts the engine down. Pending debounced saves are dropped, not
// flushed; the durable snapshots already hold the local values.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.dispatcher.Close()
	e.reconciler.Close()
	err := e.rooms.Close()
	if cerr := e.snapshots.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (e *Engine) guard() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return domain.ErrEngineClosed
	}
	return nil
}

func (e *Engine) localEntry(kind domain.Kind, value []byte) (domain.CacheEntry, error) {
	if err := e.guard(); err != nil {
		return domain.CacheEntry{}, err
	}
	if _, ok := e.kinds.Policy(kind); !ok {
		return domain.CacheEntry{}, zerr.Wrap(domain.ErrUnknownKind, string(kind))
	}
	active, _ := e.coordinator.Current()
	if active == "" {
		return domain.CacheEntry{}, domain.ErrNoActiveTenant
	}
	return domain.CacheEntry{
		Kind:         kind,
		TenantID:     active,
		Value:        value,
		LastSyncedAt: time.Now(),
		Origin:       domain.OriginLocal,
	}, nil
}

func (e *Engine) notify(entry domain.CacheEntry) {
	e.mu.Lock()
	delete(e.saveErrs, entry.TenantID+"::"+string(entry.Kind))
	subs := make([]func(domain.CacheEntry), 0, len(e.subs))
	for _, fn := range e.subs {
		subs = append(subs, fn)
	}
	e.mu.Unlock()
	for _, fn := range subs {
		fn(entry)
	}
}
