package ports

import (
	"context"
	"encoding/json"

	"github.com/merchkit/storesync/internal/core/domain"
)

// Gateway is the stateless remote store client. Pure I/O: no caching, no
// retries. Retry and fallback policy lives in the refresh dispatcher and
// the persistence reconciler.
//
//go:generate mockgen -source=gateway.go -destination=mocks/mock_gateway.go -package=mocks
type Gateway interface {
	// FetchEntity retrieves the current value of one kind for one tenant.
	// Returns domain.ErrNotFound when the remote store has no value;
	// callers substitute the kind's documented default.
	FetchEntity(ctx context.Context, kind domain.Kind, tenantID string) (json.RawMessage, error)

	// SaveEntity persists one value. Fails with domain.ErrValidation when
	// the server rejects the payload, domain.ErrNetwork otherwise.
	SaveEntity(ctx context.Context, kind domain.Kind, tenantID string, value json.RawMessage) error

	// Bootstrap fetches the primary bundle needed for first paint.
	Bootstrap(ctx context.Context, tenantID string) (domain.Bundle, error)

	// SecondaryBootstrap fetches everything not needed above the fold.
	SecondaryBootstrap(ctx context.Context, tenantID string) (domain.Bundle, error)
}
