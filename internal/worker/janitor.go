package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/rental-portal/internal/cache"
	"github.com/spec-kit/rental-portal/internal/domain"
	"github.com/spec-kit/rental-portal/internal/store"
)

// StartJanitor sweeps expired cache entries and session state on a fixed
// interval until ctx is cancelled. The stores stay correct without it (every
// read checks expiry); the janitor only bounds memory.
func StartJanitor(ctx context.Context, interval time.Duration, bookings *cache.Cache[*domain.Booking], sessions store.SessionStore, logger *zap.Logger) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweep(ctx, bookings, sessions, logger)
			}
		}
	}()
}

func sweep(ctx context.Context, bookings *cache.Cache[*domain.Booking], sessions store.SessionStore, logger *zap.Logger) {
	cacheRemoved := 0
	if bookings != nil {
		cacheRemoved = bookings.Cleanup()
	}

	sessionRemoved := 0
	if sessions != nil {
		removed, err := sessions.Cleanup(ctx)
		if err != nil {
			logger.Warn("session store sweep failed", zap.Error(err))
			return
		}
		sessionRemoved = removed
	}

	if cacheRemoved > 0 || sessionRemoved > 0 {
		logger.Debug("janitor sweep",
			zap.Int("cache_removed", cacheRemoved),
			zap.Int("session_state_removed", sessionRemoved))
	}
}
