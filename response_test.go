package swcache_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/bool64/swcache"
	"github.com/stretchr/testify/assert"
)

func TestRequest_Key(t *testing.T) {
	assert.Equal(t, scope+"index.html", get(scope+"index.html#top").Key())
	assert.Equal(t, scope+"index.html?a=1", get(scope+"index.html?a=1").Key())
	assert.Equal(t, swcache.RequestKey(scope+"a.mp3#t=10"), scope+"a.mp3")
}

func TestRequest_Accepts(t *testing.T) {
	assert.True(t, navigate(scope).Accepts("text/html"))
	assert.False(t, get(scope).Accepts("text/html"))
	assert.False(t, (&swcache.Request{URL: scope}).Accepts("text/html"))
}

func TestResponse_Clone(t *testing.T) {
	r := &swcache.Response{
		Status: http.StatusOK,
		Header: http.Header{"Etag": []string{"abc"}},
		Body:   []byte("body"),
	}

	c := r.Clone()
	c.Body[0] = 'B'
	c.Header.Set("Etag", "def")

	assert.Equal(t, "body", string(r.Body))
	assert.Equal(t, "abc", r.Header.Get("Etag"))
	assert.True(t, c.OK())
	assert.False(t, (&swcache.Response{Status: http.StatusNotModified}).OK())
	assert.Nil(t, (&swcache.Response{}).Clone().Body)
}

func TestNotFoundResponse(t *testing.T) {
	r := swcache.NotFoundResponse()
	assert.Equal(t, http.StatusNotFound, r.Status)
	assert.Equal(t, "Offline - audio file not cached", r.StatusText)
	assert.Empty(t, r.Body)
	assert.False(t, r.OK())
}

func TestClientID(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", swcache.ClientID(ctx))
	assert.Equal(t, "abc", swcache.ClientID(swcache.WithClientID(ctx, "abc")))
	assert.False(t, swcache.SkipRead(ctx))
	assert.True(t, swcache.SkipRead(swcache.WithSkipRead(ctx)))
}
