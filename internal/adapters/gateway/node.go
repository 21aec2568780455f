package gateway

import (
	"context"

	"github.com/grindlemire/graft"
	"github.com/merchkit/storesync/internal/adapters/config"
	"github.com/merchkit/storesync/internal/core/ports"
)

const NodeID graft.ID = "adapter.gateway"

func init() {
	graft.Register(graft.Node[ports.Gateway]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID},
		Run: func(ctx context.Context) (ports.Gateway, error) {
			cfg, err := graft.Dep[config.Config](ctx)
			if err != nil {
				return nil, err
			}
			return NewClient(cfg.APIBaseURL, cfg.RequestTimeout), nil
		},
	})
}
