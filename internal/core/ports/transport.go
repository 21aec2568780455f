package ports

import "github.com/merchkit/storesync/internal/core/domain"

// PushTransport is the low-level push connection. Implementations own
// framing, reconnection and backoff; the channel manager above them only
// deals in rooms and change events. Join and Leave are keyed by room
// (tenant id), never globally ordered: a late Leave for tenant A must not
// cancel an already-started Join for tenant B.
//
//go:generate mockgen -source=transport.go -destination=mocks/mock_transport.go -package=mocks
type PushTransport interface {
	// Join subscribes to a tenant room. Idempotent per room.
	Join(room string) error

	// Leave unsubscribes from a tenant room. Unknown rooms are a no-op.
	Leave(room string) error

	// Subscribe registers a handler for data-changed events. The returned
	// cancel func unregisters it. Handlers may be called from the
	// transport's receive goroutine and must not block.
	Subscribe(fn func(domain.ChangeEvent)) (cancel func())

	// Close tears the connection down and releases all rooms.
	Close() error
}
