// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "github.com/merchkit/storesync/internal/adapters/config"
	_ "github.com/merchkit/storesync/internal/adapters/gateway"
	_ "github.com/merchkit/storesync/internal/adapters/localstore"
	_ "github.com/merchkit/storesync/internal/adapters/logger"
	_ "github.com/merchkit/storesync/internal/adapters/notify"
	_ "github.com/merchkit/storesync/internal/adapters/pushchan"
	// Register the engine node.
	_ "github.com/merchkit/storesync/internal/engine"
)
