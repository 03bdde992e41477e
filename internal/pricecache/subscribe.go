package pricecache

import (
	"context"
	"time"

	"github.com/ajitpratap0/cryptofunk/internal/domain"
)

// DefaultCoordinatorInterval is the global coordinator's default tick (spec
// §4.1: "a periodic timer (default 15s) collects union of subscribed
// symbols and triggers a batch ticker fetch").
const DefaultCoordinatorInterval = 15 * time.Second

// Unsubscribe drops a subscription registered with SubscribeGlobalUpdates.
type Unsubscribe func()

// SubscribeGlobalUpdates registers a callback the global coordinator polls
// each tick for the set of coins that subscriber currently needs; the
// coordinator unions every subscriber's coins into one coalesced batch per
// interval.
func (c *Cache) SubscribeGlobalUpdates(wanted func() []string) Unsubscribe {
	c.subMu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = wanted
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subscribers, id)
		c.subMu.Unlock()
	}
}

// RunGlobalCoordinator blocks, refreshing the union of every subscriber's
// coins into a batched ticker fetch every interval, until ctx is canceled.
// One instance should run per process.
func (c *Cache) RunGlobalCoordinator(ctx context.Context, mode domain.TradingMode, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCoordinatorInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			coins := c.unionSubscribedCoins()
			if len(coins) == 0 {
				continue
			}
			if _, err := c.GetTicker24hBatch(ctx, coins, mode); err != nil {
				c.log.Warn().Err(err).Msg("global coordinator batch fetch failed")
			}
		}
	}
}

func (c *Cache) unionSubscribedCoins() []string {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	seen := make(map[string]bool)
	var out []string
	for _, wanted := range c.subscribers {
		for _, coin := range wanted() {
			if !seen[coin] {
				seen[coin] = true
				out = append(out, coin)
			}
		}
	}
	return out
}
