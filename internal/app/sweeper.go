package app

import (
	"context"
	"log/slog"
	"time"
)

type expiredSessionPurger interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// sweepSessions purges expired sessions every interval until ctx is done.
func sweepSessions(ctx context.Context, store expiredSessionPurger, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			purged, err := store.DeleteExpired(ctx, now)
			if err != nil {
				logger.Warn("session sweep failed", "error", err)
				continue
			}
			if purged > 0 {
				logger.Info("expired sessions purged", "count", purged)
			}
		}
	}
}
