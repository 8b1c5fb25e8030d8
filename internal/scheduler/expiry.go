package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Expirer releases reservations older than a cutoff.
type Expirer interface {
	ExpireReservations(ctx context.Context, olderThan time.Duration) (int, error)
}

// ExpireReservations returns a task body that fails stale holds and logs
// how many were released.
func ExpireReservations(e Expirer, ttl time.Duration, logger *slog.Logger) func(context.Context) error {
	return func(ctx context.Context) error {
		n, err := e.ExpireReservations(ctx, ttl)
		if err != nil {
			return err
		}
		if n > 0 && logger != nil {
			logger.Info("expired stale reservations", slog.Int("count", n), slog.Duration("ttl", ttl))
		}
		return nil
	}
}
