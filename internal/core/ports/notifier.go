package ports

import "github.com/merchkit/storesync/internal/core/domain"

// Notifier surfaces save failures to the user, typically as a toast. The
// reconciler reports one notification per failed kind and keeps local state
// intact; nothing is silently swallowed and nothing is thrown into the
// rendering layer.
//
//go:generate mockgen -source=notifier.go -destination=mocks/mock_notifier.go -package=mocks
type Notifier interface {
	SaveFailed(kind domain.Kind, tenantID string, err error)
}
