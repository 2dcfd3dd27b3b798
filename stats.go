package swcache

// Metric names.
const (
	MetricHit    = "cache_hit"
	MetricMiss   = "cache_miss"
	MetricWrite  = "cache_write"
	MetricDelete = "cache_delete"
	MetricEvict  = "cache_evict"
	MetricItems  = "cache_items"

	// MetricFetch counts network fetches, labeled with "result".
	MetricFetch = "network_fetch"

	// MetricFallback counts offline fallbacks, labeled with "kind".
	MetricFallback = "offline_fallback"

	// MetricPrecache counts pre-cache outcomes during install, labeled with "result".
	MetricPrecache = "precache"

	// MetricStoreDeleted counts cache stores removed on activation.
	MetricStoreDeleted = "cache_store_deleted"
)

// MetricWorker counts worker lifecycle transitions, labeled with "version" and "state".
const MetricWorker = "worker_transition"
