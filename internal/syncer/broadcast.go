package syncer

import (
	"context"

	"github.com/MrSnakeDoc/parley/internal/cluster"
	"github.com/MrSnakeDoc/parley/internal/logger"
)

// Broadcaster pushes service configuration changes to every node. Each
// receiver refreshes its view of the named service from the shared store
// before the broadcast call returns on that node.
type Broadcaster struct {
	coord  cluster.Coordinator
	logger logger.Logger
}

// NewBroadcaster creates a broadcaster on top of coord.
func NewBroadcaster(coord cluster.Coordinator, log logger.Logger) *Broadcaster {
	return &Broadcaster{coord: coord, logger: log}
}

// ServiceUpdated announces that the record for subdomain changed,
// appeared or disappeared. Delivery failure is logged, not returned:
// nodes that miss the announcement re-converge on the next snapshot
// exchange.
func (b *Broadcaster) ServiceUpdated(ctx context.Context, subdomain string) {
	payload, err := cluster.EncodeServiceUpdate(subdomain)
	if err != nil {
		b.logger.Error("unable to encode service update",
			logger.String("subdomain", subdomain),
			logger.Error(err))
		return
	}
	if err := b.coord.Broadcast(ctx, cluster.QueryServiceUpdated, payload); err != nil {
		b.logger.Error("unable to broadcast service update",
			logger.String("subdomain", subdomain),
			logger.Error(err))
	}
}
