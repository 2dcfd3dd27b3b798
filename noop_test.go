package swcache_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/bool64/swcache"
	"github.com/stretchr/testify/assert"
)

func TestNoOp_Match(t *testing.T) {
	v, err := swcache.NoOp{}.Match(context.Background(), "foo")
	assert.Nil(t, v)
	assert.EqualError(t, err, "missing cache item")
}

func TestNoOp_Put(t *testing.T) {
	err := swcache.NoOp{}.Put(context.Background(), "foo", &swcache.Response{Status: http.StatusOK})
	assert.NoError(t, err)

	v, err := swcache.NoOp{}.Match(context.Background(), "foo")
	assert.Nil(t, v)
	assert.EqualError(t, err, "missing cache item")

	keys, err := swcache.NoOp{}.Keys(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, keys)
}

func TestNoOpStorage(t *testing.T) {
	ctx := context.Background()
	s := swcache.NoOpStorage{}

	store, err := s.Open(ctx, "v1")
	assert.NoError(t, err)
	assert.Equal(t, swcache.NoOp{}, store)

	has, err := s.Has(ctx, "v1")
	assert.NoError(t, err)
	assert.False(t, has)

	deleted, err := s.Delete(ctx, "v1")
	assert.NoError(t, err)
	assert.False(t, deleted)
}

func TestNoOpStorage_audioOffline(t *testing.T) {
	o := newOrigin()
	m := newManager(t, o, swcache.NoOpStorage{}, "v1")

	resp, err := fetch(t, m, get(scope+"audio/piano.mp3"))
	assert.NoError(t, err)
	assert.Equal(t, "mp3:audio/piano.mp3", string(resp.Body))

	// Nothing was cached.
	o.setOffline(true)

	resp, err = fetch(t, m, get(scope+"audio/piano.mp3"))
	assert.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.Status)
}
