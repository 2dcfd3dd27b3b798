package swcache

import (
	"context"
	"errors"
	"net/http"

	"github.com/bool64/ctxd"
)

func (m *Manager) fetch(ctx context.Context, req *Request) (*Response, error) {
	resp, err := m.fetcher.Fetch(ctx, req)
	if err != nil {
		m.stat.Add(ctx, MetricFetch, 1, "name", m.Version(), "result", "failed")
		m.log.Debug(ctx, "network fetch failed", "url", req.URL, "error", err)

		return nil, err
	}

	m.stat.Add(ctx, MetricFetch, 1, "name", m.Version(), "result", "ok")

	return resp, nil
}

// store opens current store if it exists, a store deleted by a newer version is not recreated.
func (m *Manager) store(ctx context.Context) (Store, error) {
	ok, err := m.storage.Has(ctx, m.Version())
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, ErrNotFound
	}

	return m.storage.Open(ctx, m.Version())
}

// match looks up current store, failures other than a miss are logged and treated as a miss.
func (m *Manager) match(ctx context.Context, key string) (*Response, bool) {
	store, err := m.store(ctx)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.log.Error(ctx, "failed to open cache store", "name", m.Version(), "error", err)
		}

		return nil, false
	}

	resp, err := store.Match(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.log.Error(ctx, "failed to read cache", "name", m.Version(), "key", key, "error", err)
		}

		return nil, false
	}

	return resp, true
}

// putAsync stores a copy of response in background, response itself stays untouched for the caller.
//
// Nothing is written if current store does not exist.
func (m *Manager) putAsync(ctx context.Context, key string, resp *Response) {
	clone := resp.Clone()
	ctx = detach(ctx)

	m.background.Add(1)

	go func() {
		defer m.background.Done()

		store, err := m.store(ctx)
		if errors.Is(err, ErrNotFound) {
			m.log.Debug(ctx, "skipped write to missing cache store", "name", m.Version(), "key", key)

			return
		}

		if err == nil {
			err = store.Put(ctx, key, clone)
		}

		if err != nil {
			m.log.Warn(ctx, "failed to store response",
				"name", m.Version(),
				"key", key,
				"error", err)
		}
	}()
}

// networkFirstShell serves live HTML, falling back to the cached core shell when offline.
func (m *Manager) networkFirstShell(ctx context.Context, req *Request) (*Response, error) {
	resp, err := m.fetch(ctx, req)
	if err == nil {
		if resp.Status == http.StatusOK && m.core[req.Key()] {
			m.putAsync(ctx, req.Key(), resp)
		}

		return resp, nil
	}

	m.stat.Add(ctx, MetricFallback, 1, "name", m.Version(), "kind", KindHTML.String())

	if shell, ok := m.match(ctx, m.shell); ok {
		m.log.Debug(ctx, "serving cached shell", "url", req.URL)

		return shell, nil
	}

	return nil, ctxd.WrapError(ctx, ErrNoShell, "offline navigation failed",
		"url", req.URL,
		"fetchError", err.Error())
}

// cacheFirst serves cached audio without revalidation, caching successful network responses.
func (m *Manager) cacheFirst(ctx context.Context, req *Request) (*Response, error) {
	key := req.Key()

	if cached, ok := m.match(ctx, key); ok {
		return cached, nil
	}

	resp, err := m.fetch(ctx, req)
	if err != nil {
		m.stat.Add(ctx, MetricFallback, 1, "name", m.Version(), "kind", KindAudio.String())

		return NotFoundResponse(), nil
	}

	if resp.Status == http.StatusOK {
		m.putAsync(ctx, key, resp)
	}

	return resp, nil
}

// networkFirst serves network response and falls back to exact cached match.
//
// Without cached match network error is returned as is.
func (m *Manager) networkFirst(ctx context.Context, req *Request) (*Response, error) {
	resp, err := m.fetch(ctx, req)
	if err == nil {
		return resp, nil
	}

	if cached, ok := m.match(ctx, req.Key()); ok {
		m.stat.Add(ctx, MetricFallback, 1, "name", m.Version(), "kind", KindOther.String())

		return cached, nil
	}

	return nil, err
}
