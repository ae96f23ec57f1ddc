package velocity

import (
	"context"
	"fmt"
	"time"

	"github.com/yusdesign/trier/internal/domain"
)

// Counter tracks live per-user velocity through windowed cache counters.
// Each call to Observe bumps the counters for every configured window and
// returns the new tallies, so the ingest path reads velocity for free as
// a side effect of recording the transaction.
type Counter struct {
	cache   domain.Cache
	windows []time.Duration
}

// NewCounter builds a live counter over the given windows.
func NewCounter(cache domain.Cache, windows ...time.Duration) *Counter {
	if len(windows) == 0 {
		windows = []time.Duration{time.Hour, 24 * time.Hour}
	}
	return &Counter{cache: cache, windows: windows}
}

// Observe records one transaction for the user and returns the updated
// count per window, keyed by window duration.
func (c *Counter) Observe(ctx context.Context, userID int64) (map[time.Duration]int64, error) {
	counts := make(map[time.Duration]int64, len(c.windows))
	for _, w := range c.windows {
		n, err := c.cache.IncrementCounter(ctx, counterKey(userID, w), w)
		if err != nil {
			return nil, fmt.Errorf("failed to bump velocity counter: %w", err)
		}
		counts[w] = n
	}
	return counts, nil
}

func counterKey(userID int64, window time.Duration) string {
	return fmt.Sprintf("velocity:%d:%s", userID, window)
}
