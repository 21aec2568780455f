package pushchan

import (
	"context"

	"github.com/grindlemire/graft"
	"github.com/merchkit/storesync/internal/adapters/config"
	"github.com/merchkit/storesync/internal/adapters/logger"
	"github.com/merchkit/storesync/internal/core/ports"
)

// TransportNodeID provides the push transport. The Manager itself is
// constructed by the engine, which owns the signal sink.
const TransportNodeID graft.ID = "adapter.pushchan.transport"

func init() {
	graft.Register(graft.Node[ports.PushTransport]{
		ID:        TransportNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID, logger.NodeID},
		Run: func(ctx context.Context) (ports.PushTransport, error) {
			cfg, err := graft.Dep[config.Config](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			if cfg.PushBaseURL == "" {
				// No push endpoint configured: run cache-only.
				return NewNoopTransport(), nil
			}
			return NewStreamTransport(cfg.PushBaseURL, log, cfg.ReconnectAttempts), nil
		},
	})
}
