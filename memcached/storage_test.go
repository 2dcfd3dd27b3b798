package memcached_test

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/bool64/stats"
	"github.com/bool64/swcache"
	"github.com/bool64/swcache/memcached"
	"github.com/bradfitz/gomemcache/memcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clientMock is an in-memory memcached, CAS ids are not tracked.
type clientMock struct {
	mu        sync.Mutex
	items     map[string][]byte
	conflicts int
}

func newClientMock() *clientMock {
	return &clientMock{items: map[string][]byte{}}
}

func (c *clientMock) Get(key string) (*memcache.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.items[key]
	if !ok {
		return nil, memcache.ErrCacheMiss
	}

	return &memcache.Item{Key: key, Value: append([]byte(nil), v...)}, nil
}

func (c *clientMock) Set(item *memcache.Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[item.Key] = append([]byte(nil), item.Value...)

	return nil
}

func (c *clientMock) Add(item *memcache.Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[item.Key]; ok {
		return memcache.ErrNotStored
	}

	c.items[item.Key] = append([]byte(nil), item.Value...)

	return nil
}

func (c *clientMock) CompareAndSwap(item *memcache.Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conflicts > 0 {
		c.conflicts--

		return memcache.ErrCASConflict
	}

	if _, ok := c.items[item.Key]; !ok {
		return memcache.ErrNotStored
	}

	c.items[item.Key] = append([]byte(nil), item.Value...)

	return nil
}

func (c *clientMock) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[key]; !ok {
		return memcache.ErrCacheMiss
	}

	delete(c.items, key)

	return nil
}

func (c *clientMock) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.items)
}

func TestStorage(t *testing.T) {
	ctx := context.Background()
	c := newClientMock()
	s := memcached.New(c)

	for _, name := range []string{"v2", "v1", "v3"} {
		store, err := s.Open(ctx, name)
		require.NoError(t, err)
		require.NoError(t, store.Put(ctx, "k", &swcache.Response{Status: http.StatusOK, Body: []byte(name)}))
	}

	names, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"v2", "v1", "v3"}, names)

	has, err := s.Has(ctx, "v1")
	require.NoError(t, err)
	assert.True(t, has)

	deleted, err := s.Delete(ctx, "v1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.Delete(ctx, "v1")
	require.NoError(t, err)
	assert.False(t, deleted)

	names, err = s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"v2", "v3"}, names)

	// Stores index and two stores with key index and single entry.
	assert.Equal(t, 5, c.len())

	v1, err := s.Open(ctx, "v1")
	require.NoError(t, err)

	_, err = v1.Match(ctx, "k")
	assert.True(t, errors.Is(err, swcache.ErrNotFound))
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	st := &stats.TrackerMock{}
	s := memcached.New(newClientMock(), memcached.Config{Prefix: "test:", Stats: st})

	store, err := s.Open(ctx, "v1")
	require.NoError(t, err)

	_, err = store.Match(ctx, "https://pads.test/audio/piano.mp3")
	assert.True(t, errors.Is(err, swcache.ErrNotFound))

	require.NoError(t, store.Put(ctx, "https://pads.test/audio/piano.mp3", &swcache.Response{
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": []string{"audio/mpeg"}},
		Body:   []byte("mp3"),
	}))
	require.NoError(t, store.Put(ctx, "https://pads.test/", &swcache.Response{Status: http.StatusOK}))
	require.NoError(t, store.Put(ctx, "https://pads.test/audio/piano.mp3", &swcache.Response{Status: http.StatusOK, Body: []byte("mp3 v2")}))

	resp, err := store.Match(ctx, "https://pads.test/audio/piano.mp3")
	require.NoError(t, err)
	assert.Equal(t, "mp3 v2", string(resp.Body))
	assert.False(t, resp.StoredAt.IsZero())

	_, err = store.Match(swcache.WithSkipRead(ctx), "https://pads.test/audio/piano.mp3")
	assert.True(t, errors.Is(err, swcache.ErrNotFound))

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://pads.test/audio/piano.mp3", "https://pads.test/"}, keys)

	require.NoError(t, store.Delete(ctx, "https://pads.test/audio/piano.mp3"))
	assert.True(t, errors.Is(store.Delete(ctx, "https://pads.test/audio/piano.mp3"), swcache.ErrNotFound))

	keys, err = store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://pads.test/"}, keys)

	assert.Equal(t, 3, st.Int(swcache.MetricWrite))
	assert.Equal(t, 1, st.Int(swcache.MetricHit))
	assert.Equal(t, 1, st.Int(swcache.MetricMiss))
	assert.Equal(t, 1, st.Int(swcache.MetricDelete))
}

func TestStorage_Open_contention(t *testing.T) {
	ctx := context.Background()
	c := newClientMock()
	s := memcached.New(c)

	_, err := s.Open(ctx, "v1")
	require.NoError(t, err)

	// Few conflicts are retried.
	c.conflicts = 3

	_, err = s.Open(ctx, "v2")
	require.NoError(t, err)

	names, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"v1", "v2"}, names)

	// Persistent conflicts fail.
	c.conflicts = 100

	_, err = s.Open(ctx, "v3")
	assert.Error(t, err)
}

func TestStorage_integration(t *testing.T) {
	addr := os.Getenv("MEMCACHED_ADDR")
	if addr == "" {
		t.Skip("MEMCACHED_ADDR is not set")
	}

	ctx := context.Background()
	s := memcached.New(memcache.New(addr), memcached.Config{
		Prefix: "swcache-test-" + strconv.FormatInt(time.Now().UnixNano(), 36) + ":",
	})

	store, err := s.Open(ctx, "v1")
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "https://pads.test/audio/piano.mp3", &swcache.Response{Status: http.StatusOK, Body: []byte("mp3")}))

	resp, err := store.Match(ctx, "https://pads.test/audio/piano.mp3")
	require.NoError(t, err)
	assert.Equal(t, "mp3", string(resp.Body))

	deleted, err := s.Delete(ctx, "v1")
	require.NoError(t, err)
	assert.True(t, deleted)
}
