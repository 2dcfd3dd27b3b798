package swcache_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/bool64/swcache"
)

const scope = "https://pads.test/"

var errOffline = errors.New("dial tcp: connection refused")

// origin is a fake network with a switchable connectivity.
type origin struct {
	mu      sync.Mutex
	files   map[string]string
	broken  map[string]bool
	calls   map[string]int
	offline bool
}

func newOrigin() *origin {
	o := &origin{
		files:  map[string]string{},
		broken: map[string]bool{},
		calls:  map[string]int{},
	}

	m := swcache.DefaultManifest()

	o.files[scope] = "<html>root</html>"
	o.files[scope+"index.html"] = "<html>shell v1</html>"

	for _, a := range m.Assets {
		o.files[scope+a] = "mp3:" + a
	}

	return o
}

func (o *origin) set(u, body string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.files[u] = body
}

func (o *origin) setOffline(offline bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.offline = offline
}

func (o *origin) callsTo(u string) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.calls[u]
}

func (o *origin) Fetch(_ context.Context, req *swcache.Request) (*swcache.Response, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.calls[req.URL]++

	if o.offline || o.broken[req.URL] {
		return nil, errOffline
	}

	body, ok := o.files[req.URL]
	if !ok {
		return &swcache.Response{Status: http.StatusNotFound, Header: http.Header{}, Body: []byte("not found")}, nil
	}

	return &swcache.Response{
		Status:     http.StatusOK,
		StatusText: "OK",
		Header:     http.Header{"Content-Type": []string{"audio/mpeg"}},
		Body:       []byte(body),
	}, nil
}

// scopeMock records lifecycle requests of a handler.
type scopeMock struct {
	skipWaiting int32
	claim       int32
}

func (s *scopeMock) SkipWaiting(context.Context) error {
	atomic.AddInt32(&s.skipWaiting, 1)

	return nil
}

func (s *scopeMock) Claim(context.Context) error {
	atomic.AddInt32(&s.claim, 1)

	return nil
}

// spyStorage counts storage access.
type spyStorage struct {
	swcache.Storage
	opens int32
}

func (s *spyStorage) Open(ctx context.Context, name string) (swcache.Store, error) {
	atomic.AddInt32(&s.opens, 1)

	return s.Storage.Open(ctx, name)
}

// brokenStorage fails to open stores.
type brokenStorage struct {
	swcache.Storage
}

func (brokenStorage) Open(context.Context, string) (swcache.Store, error) {
	return nil, errors.New("quota exceeded")
}

func (brokenStorage) Keys(context.Context) ([]string, error) {
	return nil, errors.New("storage unavailable")
}

func manifest(version string) swcache.Manifest {
	m := swcache.DefaultManifest()
	m.Version = version
	m.Scope = scope

	return m
}

func get(u string) *swcache.Request {
	return swcache.NewRequest(u)
}

func navigate(u string) *swcache.Request {
	r := swcache.NewRequest(u)
	r.Header.Set("Accept", "text/html,application/xhtml+xml")

	return r
}
