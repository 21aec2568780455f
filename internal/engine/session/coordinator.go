// Package session owns the active tenant, the switch generation counter and
// the per-tenant load flags that gate persistence.
package session

import (
	"context"
	"sync"
	"time"

	"go.trai.ch/zerr"

	"github.com/merchkit/storesync/internal/core/domain"
	"github.com/merchkit/storesync/internal/core/ports"
	"github.com/merchkit/storesync/internal/engine/cache"
	"github.com/merchkit/storesync/internal/engine/origin"
	"github.com/merchkit/storesync/internal/engine/reconcile"
)

// TenantRooms is the push channel surface the coordinator drives on a
// switch. Satisfied by pushchan.Manager.
type TenantRooms interface {
	SetActiveTenant(tenantID string)
}

// loadFlags track which bootstrap phases completed for the active tenant.
// All three reset to false on every switch.
type loadFlags struct {
	bootstrap bool
	catalog   bool
	admin     bool
}

// Coordinator serializes tenant switches. Each switch advances a generation
// counter; any response initiated under an older generation is discarded
// when it lands. Switching never blocks on the network: warm snapshots are
// visible immediately and the bootstrap fills in live data as it arrives.
type Coordinator struct {
	gateway    ports.Gateway
	cache      *cache.Store
	reconciler *reconcile.Reconciler
	origins    *origin.Registry
	kinds      *domain.Registry
	rooms      TenantRooms
	logger     ports.Logger

	timeout   time.Duration
	onApplied func(domain.CacheEntry)

	// swapMu makes a switch's teardown and a bundle entry's
	// check-then-write mutually exclusive, so no entry of a superseded
	// tenant can land in the cache after its teardown ran.
	swapMu sync.Mutex

	mu     sync.Mutex
	active string
	gen    domain.Generation
	flags  loadFlags
}

func NewCoordinator(
	gateway ports.Gateway,
	store *cache.Store,
	reconciler *reconcile.Reconciler,
	origins *origin.Registry,
	kinds *domain.Registry,
	rooms TenantRooms,
	logger ports.Logger,
	timeout time.Duration,
	onApplied func(domain.CacheEntry),
) *Coordinator {
	return &Coordinator{
		gateway:    gateway,
		cache:      store,
		reconciler: reconciler,
		origins:    origins,
		kinds:      kinds,
		rooms:      rooms,
		logger:     logger,
		timeout:    timeout,
		onApplied:  onApplied,
	}
}

// Current returns the active tenant and the live switch generation.
func (c *Coordinator) Current() (string, domain.Generation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active, c.gen
}

// PhaseLoaded reports whether the load phase delivering a kind has completed
// for the given tenant. Always false for tenants other than the active one.
func (c *Coordinator) PhaseLoaded(tenantID string, phase domain.LoadPhase) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tenantID != c.active {
		return false
	}
	switch phase {
	case domain.PhaseCatalog:
		return c.flags.catalog
	case domain.PhaseAdmin:
		return c.flags.admin
	default:
		return c.flags.bootstrap
	}
}

// Switch makes tenantID the active tenant. The previous tenant's in-memory
// state is torn down first, then persisted snapshots warm the cache, then
// the two bootstrap bundles stream in. Switching to the already active
// tenant is a no-op once its bootstrap completed; before that it retries
// the bundles under the live generation.
func (c *Coordinator) Switch(ctx context.Context, tenantID string) error {
	if tenantID == "" {
		return zerr.Wrap(domain.ErrNoActiveTenant, "empty tenant id")
	}

	c.swapMu.Lock()
	c.mu.Lock()
	if tenantID == c.active {
		loaded := c.flags.bootstrap
		gen := c.gen
		c.mu.Unlock()
		c.swapMu.Unlock()
		if loaded {
			return nil
		}
		c.logger.Info("retrying bootstrap", "tenant", tenantID)
		if err := c.bootstrap(ctx, tenantID, gen); err != nil {
			return err
		}
		c.secondaryBootstrap(ctx, tenantID, gen)
		return nil
	}
	previous := c.active
	c.gen++
	gen := c.gen
	c.active = tenantID
	c.flags = loadFlags{}
	c.mu.Unlock()

	if previous != "" {
		c.cache.ResetAll(previous)
	}
	c.reconciler.Reset()
	c.origins.Reset()
	c.swapMu.Unlock()

	c.logger.Info("tenant switch", "from", previous, "to", tenantID)

	c.rooms.SetActiveTenant(tenantID)

	warmed, err := c.cache.WarmFrom(ctx, tenantID)
	if err != nil {
		c.logger.Warn("snapshot warm-up failed", "tenant", tenantID, "error", err)
	}
	for _, e := range warmed {
		c.reconciler.Observe(e)
		if c.onApplied != nil {
			c.onApplied(e)
		}
	}

	if err := c.bootstrap(ctx, tenantID, gen); err != nil {
		return err
	}
	c.secondaryBootstrap(ctx, tenantID, gen)
	return nil
}

func (c *Coordinator) bootstrap(ctx context.Context, tenantID string, gen domain.Generation) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	bundle, err := c.gateway.Bootstrap(ctx, tenantID)
	if err != nil {
		return zerr.Wrap(err, "bootstrap failed")
	}
	if !c.applyBundle(bundle, gen) {
		return zerr.Wrap(domain.ErrStaleGeneration, "bootstrap superseded by a newer switch")
	}

	c.mu.Lock()
	if c.gen == gen {
		c.flags.bootstrap = true
	}
	c.mu.Unlock()
	return nil
}

// secondaryBootstrap loads catalog and admin data. A failure here degrades
// to primary-only operation: the catalog and admin flags stay false, which
// keeps their kinds read-only until a refresh signal fills them in.
func (c *Coordinator) secondaryBootstrap(ctx context.Context, tenantID string, gen domain.Generation) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	bundle, err := c.gateway.SecondaryBootstrap(ctx, tenantID)
	if err != nil {
		c.logger.Warn("secondary bootstrap failed", "tenant", tenantID, "error", err)
		return
	}
	if !c.applyBundle(bundle, gen) {
		return
	}

	c.mu.Lock()
	if c.gen == gen {
		c.flags.catalog = true
		c.flags.admin = true
	}
	c.mu.Unlock()
}

// applyBundle writes a bundle's values into the cache, seeding reconciler
// baselines as it goes. Returns false as soon as the generation goes
// stale; entries applied before that point belonged to the generation
// that produced them and are cleared by the superseding switch.
func (c *Coordinator) applyBundle(bundle domain.Bundle, gen domain.Generation) bool {
	for _, kind := range c.kinds.Kinds() {
		value, ok := bundle.Values[kind]
		if !ok {
			continue
		}
		entry := domain.CacheEntry{
			Kind:         kind,
			TenantID:     bundle.TenantID,
			Value:        value,
			LastSyncedAt: time.Now(),
			Origin:       domain.OriginInitial,
		}
		if !c.putLive(entry, gen) {
			c.logger.Debug("stale bootstrap bundle discarded", "tenant", bundle.TenantID)
			return false
		}
		c.reconciler.Observe(entry)
		if c.onApplied != nil {
			c.onApplied(entry)
		}
	}

	c.mu.Lock()
	live := c.gen == gen && c.active == bundle.TenantID
	c.mu.Unlock()
	if !live {
		c.logger.Debug("stale bootstrap bundle discarded", "tenant", bundle.TenantID)
	}
	return live
}

// putLive stores one entry unless a newer switch already tore the tenant
// down. The check and the write happen under swapMu, mirroring the
// teardown in Switch.
func (c *Coordinator) putLive(entry domain.CacheEntry, gen domain.Generation) bool {
	c.swapMu.Lock()
	defer c.swapMu.Unlock()

	c.mu.Lock()
	live := c.gen == gen && c.active == entry.TenantID
	c.mu.Unlock()
	if !live {
		return false
	}
	c.cache.Put(context.Background(), entry)
	return true
}
