package swcache

import (
	"context"
	"sort"
)

// evictOverQuota removes oldest stored entries until store fits into quota with a margin of EvictFraction.
func (c *MemoryStore) evictOverQuota(ctx context.Context) {
	if c.config.MaxBytes <= 0 {
		return
	}

	type item struct {
		key  string
		n    int64
		size int64
	}

	c.RLock()
	total := c.bytes
	items := make([]item, 0, len(c.data))

	for k, e := range c.data {
		items = append(items, item{key: k, n: e.N, size: int64(len(e.R.Body))})
	}
	c.RUnlock()

	if total <= c.config.MaxBytes {
		return
	}

	// Sort entries to put oldest in head.
	sort.Slice(items, func(i, j int) bool {
		return items[i].n < items[j].n
	})

	target := int64(float64(c.config.MaxBytes) * (1 - c.config.EvictFraction))
	evicted := 0

	c.Lock()
	for _, it := range items {
		if c.bytes <= target {
			break
		}

		e, ok := c.data[it.key]
		if !ok || e.N != it.n {
			continue // Replaced or deleted concurrently.
		}

		delete(c.data, it.key)
		c.bytes -= it.size
		evicted++
	}

	cnt := len(c.data)
	c.Unlock()

	if c.log != nil {
		c.log.Debug(ctx, "evicted cache entries over quota",
			"name", c.name,
			"count", evicted,
			"maxBytes", c.config.MaxBytes,
		)
	}

	if c.stat != nil {
		c.stat.Add(ctx, MetricEvict, float64(evicted), "name", c.name)
		c.stat.Set(ctx, MetricItems, float64(cnt), "name", c.name)
	}
}
