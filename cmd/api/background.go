package main

import (
	"context"
	"time"
)

type outboxPruner interface {
	PruneDispatched(ctx context.Context, olderThan time.Duration) (int64, error)
}

// pruneDispatchedChanges deletes delivered outbox rows older than retention,
// once at start and then every interval, until ctx is done.
func (app *application) pruneDispatchedChanges(ctx context.Context, p outboxPruner, retention, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, err := p.PruneDispatched(ctx, retention)
		if err != nil && ctx.Err() == nil {
			app.logger.Errorf("Error pruning dispatched changes: %v", err)
		} else if n > 0 {
			app.logger.Infof("Pruned %d dispatched changes older than %s", n, retention)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
