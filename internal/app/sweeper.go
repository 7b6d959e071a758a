package app

import (
	"context"
	"log/slog"
	"time"
)

type expiredURLPurger interface {
	PurgeExpiredURLs(ctx context.Context) (int64, error)
}

// sweeper periodically removes expired URLs so that codes nobody resolves
// again do not stay in the store forever.
type sweeper struct {
	purger   expiredURLPurger
	interval time.Duration
	logger   *slog.Logger
}

func newSweeper(purger expiredURLPurger, interval time.Duration, logger *slog.Logger) *sweeper {
	return &sweeper{
		purger:   purger,
		interval: interval,
		logger:   logger,
	}
}

// Run sweeps every interval until ctx is done. A failed sweep is logged and
// retried on the next tick.
func (s *sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *sweeper) sweep(ctx context.Context) {
	n, err := s.purger.PurgeExpiredURLs(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.ErrorContext(ctx, "failed to purge expired urls", slog.Any("err", err))
		}
		return
	}

	if n > 0 {
		s.logger.InfoContext(ctx, "purged expired urls", slog.Int64("count", n))
	}
}
