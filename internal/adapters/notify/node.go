package notify

import (
	"context"

	"github.com/grindlemire/graft"
	"github.com/merchkit/storesync/internal/adapters/logger"
	"github.com/merchkit/storesync/internal/core/ports"
)

const NodeID graft.ID = "adapter.notify"

func init() {
	graft.Register(graft.Node[ports.Notifier]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (ports.Notifier, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewLogNotifier(log), nil
		},
	})
}
