package swcache

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bool64/ctxd"
	"github.com/bool64/stats"
	"github.com/puzpuzpuz/xsync"
)

// entry is a cache entry.
type entry struct {
	K string
	R *Response
	N int64 // Write sequence within store.
}

func (e entry) Key() string {
	return e.K
}

func (e entry) Response() *Response {
	return e.R
}

// MemoryConfig controls in-memory storage instance.
type MemoryConfig struct {
	// Logger is an instance of contextualized logger, can be nil.
	Logger ctxd.Logger

	// Stats is metrics collector, can be nil.
	Stats stats.Tracker

	// MaxBytes is a soft limit of body bytes per store, 0 disables the limit.
	//
	// When limit is exceeded after write, oldest stored entries are evicted
	// until store fits into MaxBytes * (1 - EvictFraction).
	MaxBytes int64

	// EvictFraction is a fraction of MaxBytes to free on eviction (0, 1], default 0.1.
	EvictFraction float64
}

var _ Storage = &MemoryStorage{}

// MemoryStorage is an in-memory registry of cache stores.
type MemoryStorage struct {
	stores *xsync.Map
	seq    int64

	config MemoryConfig
}

// NewMemoryStorage creates an instance of in-memory storage with optional configuration.
func NewMemoryStorage(cfg ...MemoryConfig) *MemoryStorage {
	config := MemoryConfig{}

	if len(cfg) >= 1 {
		config = cfg[0]
	}

	if config.EvictFraction == 0 {
		config.EvictFraction = 0.1
	}

	return &MemoryStorage{
		stores: xsync.NewMap(),
		config: config,
	}
}

// Open returns existing store or creates a new one.
func (s *MemoryStorage) Open(ctx context.Context, name string) (Store, error) {
	return s.open(ctx, name), nil
}

func (s *MemoryStorage) open(ctx context.Context, name string) *MemoryStore {
	if v, ok := s.stores.Load(name); ok {
		return v.(*MemoryStore)
	}

	ms := newMemoryStore(name, atomic.AddInt64(&s.seq, 1), s.config)

	v, loaded := s.stores.LoadOrStore(name, ms)
	if !loaded && ms.log != nil {
		ms.log.Debug(ctx, "created cache store", "name", name)
	}

	return v.(*MemoryStore)
}

// Has checks store existence.
func (s *MemoryStorage) Has(_ context.Context, name string) (bool, error) {
	_, ok := s.stores.Load(name)

	return ok, nil
}

// Delete removes store.
func (s *MemoryStorage) Delete(ctx context.Context, name string) (bool, error) {
	v, ok := s.stores.LoadAndDelete(name)
	if !ok {
		return false, nil
	}

	ms := v.(*MemoryStore)
	ms.RemoveAll()

	if ms.log != nil {
		ms.log.Debug(ctx, "deleted cache store", "name", name)
	}

	return true, nil
}

// Keys returns store names in creation order.
func (s *MemoryStorage) Keys(_ context.Context) ([]string, error) {
	stores := make([]*MemoryStore, 0)

	s.stores.Range(func(_ string, v interface{}) bool {
		stores = append(stores, v.(*MemoryStore))

		return true
	})

	sort.Slice(stores, func(i, j int) bool {
		return stores[i].seq < stores[j].seq
	})

	names := make([]string, 0, len(stores))
	for _, ms := range stores {
		names = append(names, ms.name)
	}

	return names, nil
}

var (
	_ Store  = &MemoryStore{}
	_ Walker = &MemoryStore{}
)

// MemoryStore is an in-memory cache store.
type MemoryStore struct {
	sync.RWMutex
	data   map[string]entry
	bytes  int64
	writes int64

	name   string
	seq    int64
	config MemoryConfig
	log    ctxd.Logger
	stat   stats.Tracker
}

func newMemoryStore(name string, seq int64, config MemoryConfig) *MemoryStore {
	return &MemoryStore{
		data:   map[string]entry{},
		name:   name,
		seq:    seq,
		config: config,
		log:    config.Logger,
		stat:   config.Stats,
	}
}

// Name returns store name.
func (c *MemoryStore) Name() string {
	return c.name
}

// Match gets cached response.
func (c *MemoryStore) Match(ctx context.Context, key string) (*Response, error) {
	if SkipRead(ctx) {
		return nil, ErrNotFound
	}

	c.RLock()
	cacheEntry, found := c.data[key]
	c.RUnlock()

	if !found {
		if c.log != nil {
			c.log.Debug(ctx, "cache miss",
				"name", c.name,
				"key", key)
		}

		if c.stat != nil {
			c.stat.Add(ctx, MetricMiss, 1, "name", c.name)
		}

		return nil, ErrNotFound
	}

	if c.stat != nil {
		c.stat.Add(ctx, MetricHit, 1, "name", c.name)
	}

	if c.log != nil {
		c.log.Debug(ctx, "cache hit",
			"name", c.name,
			"key", key,
			"status", cacheEntry.R.Status)
	}

	return cacheEntry.R.Clone(), nil
}

// Put stores a copy of response.
func (c *MemoryStore) Put(ctx context.Context, key string, resp *Response) error {
	r := resp.Clone()
	r.StoredAt = time.Now()

	c.Lock()
	if prev, ok := c.data[key]; ok {
		c.bytes -= int64(len(prev.R.Body))
	}

	c.writes++
	c.data[key] = entry{K: key, R: r, N: c.writes}
	c.bytes += int64(len(r.Body))
	overQuota := c.config.MaxBytes > 0 && c.bytes > c.config.MaxBytes
	cnt := len(c.data)
	c.Unlock()

	if c.log != nil {
		c.log.Debug(ctx, "wrote to cache", "name", c.name, "key", key, "status", r.Status, "bytes", len(r.Body))
	}

	if c.stat != nil {
		c.stat.Add(ctx, MetricWrite, 1, "name", c.name)
		c.stat.Set(ctx, MetricItems, float64(cnt), "name", c.name)
	}

	if overQuota {
		c.evictOverQuota(ctx)
	}

	return nil
}

// Delete removes cached response.
func (c *MemoryStore) Delete(ctx context.Context, key string) error {
	c.Lock()
	prev, found := c.data[key]

	if found {
		delete(c.data, key)
		c.bytes -= int64(len(prev.R.Body))
	}

	cnt := len(c.data)
	c.Unlock()

	if !found {
		return ErrNotFound
	}

	if c.stat != nil {
		c.stat.Add(ctx, MetricDelete, 1, "name", c.name)
		c.stat.Set(ctx, MetricItems, float64(cnt), "name", c.name)
	}

	return nil
}

// Keys lists cached request keys in order of storing.
func (c *MemoryStore) Keys(_ context.Context) ([]string, error) {
	c.RLock()
	entries := make([]entry, 0, len(c.data))

	for _, e := range c.data {
		entries = append(entries, e)
	}
	c.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].N < entries[j].N
	})

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.K)
	}

	return keys, nil
}

// RemoveAll deletes all entries.
func (c *MemoryStore) RemoveAll() {
	c.Lock()
	c.data = make(map[string]entry)
	c.bytes = 0
	c.Unlock()
}

// Len returns number of elements in cache.
func (c *MemoryStore) Len() int {
	c.RLock()
	cnt := len(c.data)
	c.RUnlock()

	return cnt
}

// Bytes returns total size of cached bodies.
func (c *MemoryStore) Bytes() int64 {
	c.RLock()
	defer c.RUnlock()

	return c.bytes
}

// Walk walks cached entries.
func (c *MemoryStore) Walk(walkFn func(e Entry) error) (int, error) {
	c.RLock()
	entries := make([]entry, 0, len(c.data))

	for _, v := range c.data {
		entries = append(entries, v)
	}
	c.RUnlock()

	n := 0

	for _, v := range entries {
		if err := walkFn(v); err != nil {
			return n, err
		}

		n++
	}

	return n, nil
}
