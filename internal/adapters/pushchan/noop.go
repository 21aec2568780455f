package pushchan

import (
	"github.com/merchkit/storesync/internal/core/domain"
	"github.com/merchkit/storesync/internal/core/ports"
)

// NoopTransport is a PushTransport that never delivers events. Used when no
// push endpoint is configured; the engine then operates cache-only.
type NoopTransport struct{}

var _ ports.PushTransport = (*NoopTransport)(nil)

// NewNoopTransport creates a transport that drops everything.
func NewNoopTransport() *NoopTransport { return &NoopTransport{} }

func (*NoopTransport) Join(string) error  { return nil }
func (*NoopTransport) Leave(string) error { return nil }
func (*NoopTransport) Subscribe(func(domain.ChangeEvent)) (cancel func()) {
	return func() {}
}
func (*NoopTransport) Close() error { return nil }
