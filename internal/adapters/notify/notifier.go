// Package notify surfaces save failures to the operator.
package notify

import (
	"github.com/merchkit/storesync/internal/core/domain"
	"github.com/merchkit/storesync/internal/core/ports"
)

// LogNotifier reports save failures through the structured logger. A host
// embedding the engine replaces it with something user-facing.
type LogNotifier struct {
	logger ports.Logger
}

func NewLogNotifier(logger ports.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SaveFailed(kind domain.Kind, tenantID string, err error) {
	n.logger.Error(err, "event", "save_failed", "kind", kind, "tenant", tenantID)
}
