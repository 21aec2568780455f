package localstore

import (
	"context"

	"github.com/grindlemire/graft"
	"github.com/merchkit/storesync/internal/adapters/config"
	"github.com/merchkit/storesync/internal/core/ports"
)

const NodeID graft.ID = "adapter.localstore"

func init() {
	graft.Register(graft.Node[ports.SnapshotStore]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID},
		Run: func(ctx context.Context) (ports.SnapshotStore, error) {
			cfg, err := graft.Dep[config.Config](ctx)
			if err != nil {
				return nil, err
			}
			return Open(cfg.SnapshotDBPath)
		},
	})
}
