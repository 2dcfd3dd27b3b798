package swcache_test

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"github.com/bool64/swcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorage_Dump(t *testing.T) {
	ctx := context.Background()
	src := swcache.NewMemoryStorage()

	v2, err := src.Open(ctx, "worship-pads-v2")
	require.NoError(t, err)

	_, err = src.Open(ctx, "empty")
	require.NoError(t, err)

	v3, err := src.Open(ctx, "worship-pads-v3")
	require.NoError(t, err)

	require.NoError(t, v2.Put(ctx, scope+"audio/piano.mp3", &swcache.Response{Status: http.StatusOK, Body: []byte("old")}))
	require.NoError(t, v3.Put(ctx, scope+"index.html", &swcache.Response{
		Status:     http.StatusOK,
		StatusText: "OK",
		Header:     http.Header{"Content-Type": []string{"text/html"}},
		Body:       []byte("<html></html>"),
	}))
	require.NoError(t, v3.Put(ctx, scope+"audio/piano.mp3", &swcache.Response{Status: http.StatusOK, Body: []byte("new")}))

	w := bytes.NewBuffer(nil)

	n, err := src.Dump(w)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	dst := swcache.NewMemoryStorage()

	n, err = dst.Restore(w)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	names, err := dst.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"worship-pads-v2", "empty", "worship-pads-v3"}, names)

	s, err := dst.Open(ctx, "worship-pads-v3")
	require.NoError(t, err)

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{scope + "index.html", scope + "audio/piano.mp3"}, keys)

	resp, err := s.Match(ctx, scope+"index.html")
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(resp.Body))
	assert.Equal(t, "text/html", resp.Header.Get("Content-Type"))
	assert.Equal(t, int64(len("<html></html>")+len("new")), s.(*swcache.MemoryStore).Bytes())

	resp, err = s.Match(ctx, scope+"audio/piano.mp3")
	require.NoError(t, err)
	assert.Equal(t, "new", string(resp.Body))
}

func TestMemoryStorage_Restore_invalid(t *testing.T) {
	_, err := swcache.NewMemoryStorage().Restore(bytes.NewBufferString("not a gob stream"))
	assert.Error(t, err)
}
