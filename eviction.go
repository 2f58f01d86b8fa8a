package diskcache

import (
	"context"
)

// evictLocked removes least recently used entries until the cache is back
// under its size budget. Entries are taken in ascending last-access order,
// oldest first, with ties broken by key so removal order is deterministic.
// The entry named by keep (the key just written) is never evicted, which is
// how a single entry larger than the whole budget ends up as the sole
// survivor.
//
// A removal fault on one victim is logged and counted, then the pass moves
// on to the next victim so one bad artifact cannot wedge every subsequent
// put. Callers must hold c.mu.
func (c *Cache) evictLocked(ctx context.Context, keep string) {
	if c.budget.overBudgetBy() == 0 {
		return
	}

	for _, victim := range c.store.ByLastAccess() {
		if c.budget.overBudgetBy() == 0 {
			return
		}
		if victim.Key == keep {
			continue
		}

		if err := c.store.Remove(victim.Key); err != nil {
			c.metrics.RecordError()
			c.logger.Warn(ctx, "failed to evict entry",
				"key", victim.Key,
				"size", victim.Size,
				"error", err)
			continue
		}

		c.budget.reserve(-victim.Size)
		c.metrics.RecordEviction(victim.Size)
		logEviction(ctx, c.logger, victim.Key, victim.Size, "size budget exceeded")
	}

	if over := c.budget.overBudgetBy(); over > 0 {
		// Either the surviving entry alone exceeds the budget, or victims
		// could not be removed. The total is the smallest achievable.
		c.logger.Debug(ctx, "cache remains over budget after eviction",
			"over_budget_by", over,
			"entries", c.store.Len())
	}
}
