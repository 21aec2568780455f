package engine

import (
	"context"

	"github.com/grindlemire/graft"

	"github.com/merchkit/storesync/internal/adapters/config"
	"github.com/merchkit/storesync/internal/adapters/gateway"
	"github.com/merchkit/storesync/internal/adapters/localstore"
	"github.com/merchkit/storesync/internal/adapters/logger"
	"github.com/merchkit/storesync/internal/adapters/notify"
	"github.com/merchkit/storesync/internal/adapters/pushchan"
	"github.com/merchkit/storesync/internal/core/domain"
	"github.com/merchkit/storesync/internal/core/ports"
)

const NodeID graft.ID = "engine"

func init() {
	graft.Register(graft.Node[*Engine]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			logger.NodeID,
			gateway.NodeID,
			localstore.NodeID,
			pushchan.TransportNodeID,
			notify.NodeID,
		},
		Run: func(ctx context.Context) (*Engine, error) {
			cfg, err := graft.Dep[config.Config](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			gw, err := graft.Dep[ports.Gateway](ctx)
			if err != nil {
				return nil, err
			}
			snapshots, err := graft.Dep[ports.SnapshotStore](ctx)
			if err != nil {
				return nil, err
			}
			transport, err := graft.Dep[ports.PushTransport](ctx)
			if err != nil {
				return nil, err
			}
			notifier, err := graft.Dep[ports.Notifier](ctx)
			if err != nil {
				return nil, err
			}

			return New(Options{
				Gateway:           gw,
				Snapshots:         snapshots,
				Transport:         transport,
				Notifier:          notifier,
				Logger:            log,
				Kinds:             domain.NewRegistry(),
				RefreshDebounce:   cfg.RefreshDebounce,
				SaveDebounce:      cfg.SaveDebounce,
				JoinDelay:         cfg.JoinDelay,
				SocketFlagTTL:     cfg.SocketFlagTTL,
				RequestTimeout:    cfg.RequestTimeout,
				DisableRemoteSave: cfg.DisableRemoteSave,
			}), nil
		},
	})
}
