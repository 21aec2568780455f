package config

import (
	"context"
	"os"

	"github.com/grindlemire/graft"
)

const NodeID graft.ID = "adapter.config"

func init() {
	graft.Register(graft.Node[Config]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(ctx context.Context) (Config, error) {
			path := os.Getenv("STORESYNC_CONFIG")
			return Load(path)
		},
	})
}
