// Package domain contains the core types of the tenant data sync engine.
package domain

import (
	"encoding/json"
	"sort"
	"sync"
)

// Kind names a category of tenant-scoped data, such as "products" or
// "theme_config". Every cache entry, refresh signal and save decision is
// keyed by a Kind together with a tenant id.
type Kind string

// Built-in kinds. The set mirrors the storefront data model: a handful of
// config-class entities whose staleness is immediately visible, and the
// catalog/list-class entities that tolerate a short save debounce.
const (
	KindProducts        Kind = "products"
	KindOrders          Kind = "orders"
	KindThemeConfig     Kind = "theme_config"
	KindWebsiteConfig   Kind = "website_config"
	KindLogo            Kind = "logo"
	KindDeliveryConfig  Kind = "delivery_config"
	KindCategories      Kind = "categories"
	KindSubCategories   Kind = "subcategories"
	KindChildCategories Kind = "childcategories"
	KindBrands          Kind = "brands"
	KindTags            Kind = "tags"
	KindRoles           Kind = "roles"
	KindLandingPages    Kind = "landing_pages"
	KindUsers           Kind = "users"
	KindCourierConfig   Kind = "courier_config"
	KindFacebookPixel   Kind = "facebook_pixel"
)

// SaveMode decides how the reconciler schedules a save once all guards pass.
type SaveMode int

const (
	// SaveDebounced batches rapid successive edits behind a short timer.
	SaveDebounced SaveMode = iota
	// SaveImmediate schedules the save on the next tick. Used for entities
	// whose visible staleness is costly (theme, branding, products).
	SaveImmediate
)

// LoadPhase tells which bootstrap bundle delivers a kind and which loaded
// flag gates its persistence.
type LoadPhase int

const (
	// PhasePrimary kinds arrive with the first-paint bootstrap bundle.
	PhasePrimary LoadPhase = iota
	// PhaseCatalog kinds arrive with the secondary bundle and are gated on
	// the catalog-loaded flag.
	PhaseCatalog
	// PhaseAdmin kinds arrive with the secondary bundle and are gated on
	// the admin-data-loaded flag.
	PhaseAdmin
)

// KindPolicy captures the per-kind reconciliation rule parameters. All kinds
// share the same guard chain; the policy only varies scheduling, the default
// substituted for a NotFound, and whether the empty-regression guard applies.
type KindPolicy struct {
	Kind       Kind
	SaveMode   SaveMode
	ListShaped bool
	Phase      LoadPhase
	// Default is substituted when the remote gateway reports NotFound.
	// A NotFound is not an error at the cache level.
	Default json.RawMessage
}

// Registry holds the known kind policies. The zero value is unusable; use
// NewRegistry, which seeds the built-in storefront kinds.
type Registry struct {
	mu       sync.RWMutex
	policies map[Kind]KindPolicy
}

// NewRegistry returns a registry seeded with the built-in kinds.
func NewRegistry() *Registry {
	r := &Registry{policies: make(map[Kind]KindPolicy)}
	for _, p := range builtinPolicies() {
		r.policies[p.Kind] = p
	}
	return r
}

// Register adds or replaces a kind policy.
func (r *Registry) Register(p KindPolicy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[p.Kind] = p
}

// Policy returns the policy for a kind.
func (r *Registry) Policy(kind Kind) (KindPolicy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.policies[kind]
	return p, ok
}

// Kinds returns all registered kinds in a stable order.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]Kind, 0, len(r.policies))
	for k := range r.policies {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

var (
	emptyList   = json.RawMessage(`[]`)
	emptyObject = json.RawMessage(`{}`)
	nullValue   = json.RawMessage(`null`)
)

func builtinPolicies() []KindPolicy {
	return []KindPolicy{
		{Kind: KindProducts, SaveMode: SaveImmediate, ListShaped: true, Phase: PhasePrimary, Default: emptyList},
		{Kind: KindThemeConfig, SaveMode: SaveImmediate, Phase: PhasePrimary, Default: nullValue},
		{Kind: KindWebsiteConfig, SaveMode: SaveImmediate, Phase: PhasePrimary, Default: emptyObject},
		{Kind: KindLogo, SaveMode: SaveImmediate, Phase: PhasePrimary, Default: nullValue},
		{Kind: KindOrders, SaveMode: SaveDebounced, ListShaped: true, Phase: PhaseAdmin, Default: emptyList},
		{Kind: KindDeliveryConfig, SaveMode: SaveDebounced, ListShaped: true, Phase: PhaseAdmin, Default: emptyList},
		{Kind: KindRoles, SaveMode: SaveDebounced, ListShaped: true, Phase: PhaseAdmin, Default: emptyList},
		{Kind: KindUsers, SaveMode: SaveDebounced, ListShaped: true, Phase: PhaseAdmin, Default: emptyList},
		{Kind: KindCourierConfig, SaveMode: SaveDebounced, Phase: PhaseAdmin, Default: emptyObject},
		{Kind: KindFacebookPixel, SaveMode: SaveDebounced, Phase: PhaseAdmin, Default: emptyObject},
		{Kind: KindCategories, SaveMode: SaveDebounced, ListShaped: true, Phase: PhaseCatalog, Default: emptyList},
		{Kind: KindSubCategories, SaveMode: SaveDebounced, ListShaped: true, Phase: PhaseCatalog, Default: emptyList},
		{Kind: KindChildCategories, SaveMode: SaveDebounced, ListShaped: true, Phase: PhaseCatalog, Default: emptyList},
		{Kind: KindBrands, SaveMode: SaveDebounced, ListShaped: true, Phase: PhaseCatalog, Default: emptyList},
		{Kind: KindTags, SaveMode: SaveDebounced, ListShaped: true, Phase: PhaseCatalog, Default: emptyList},
		{Kind: KindLandingPages, SaveMode: SaveDebounced, ListShaped: true, Phase: PhaseCatalog, Default: emptyList},
	}
}
