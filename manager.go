package swcache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/bool64/ctxd"
	"github.com/bool64/stats"
)

// ManagerConfig controls offline cache manager.
type ManagerConfig struct {
	// Manifest describes version and resources to pre-cache, DefaultManifest is used if Version is empty.
	Manifest Manifest

	// Storage is a registry of cache stores, in-memory created by default.
	Storage Storage

	// Fetcher performs network requests, required.
	Fetcher Fetcher

	// Logger collects messages with context.
	Logger ctxd.Logger

	// Stats tracks stats.
	Stats stats.Tracker
}

var _ Handler = &Manager{}

// Manager maintains a versioned cache and serves requests from cache, network or a fallback.
//
// Please use NewManager to create instance.
type Manager struct {
	manifest Manifest
	storage  Storage
	fetcher  Fetcher
	log      ctxd.Logger
	stat     stats.Tracker

	shell    string
	precache []string
	core     map[string]bool

	background sync.WaitGroup
}

// NewManager creates an offline cache manager for a single version.
func NewManager(config ManagerConfig) (*Manager, error) {
	if config.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}

	if config.Manifest.Version == "" {
		config.Manifest = DefaultManifest()
	}

	if err := config.Manifest.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		manifest: config.Manifest,
		storage:  config.Storage,
		fetcher:  config.Fetcher,
		log:      config.Logger,
		stat:     config.Stats,
		core:     make(map[string]bool, len(config.Manifest.Core)),
	}

	if m.log == nil {
		m.log = ctxd.NoOpLogger{}
	}

	if m.stat == nil {
		m.stat = stats.NoOp{}
	}

	if m.storage == nil {
		m.storage = NewMemoryStorage(MemoryConfig{Logger: config.Logger, Stats: config.Stats})
	}

	shell, err := m.manifest.Resolve(m.manifest.Shell)
	if err != nil {
		return nil, err
	}

	m.shell = shell

	seen := map[string]bool{}

	for i, paths := range [][]string{m.manifest.Core, m.manifest.Assets} {
		for _, p := range paths {
			u, err := m.manifest.Resolve(p)
			if err != nil {
				return nil, err
			}

			if i == 0 {
				m.core[u] = true
			}

			if !seen[u] {
				seen[u] = true
				m.precache = append(m.precache, u)
			}
		}
	}

	return m, nil
}

// Version returns cache store name of this manager.
func (m *Manager) Version() string {
	return m.manifest.Version
}

// Storage returns cache storage.
func (m *Manager) Storage() Storage {
	return m.storage
}

// Install opens the current cache store and pre-caches manifest resources.
//
// Failures of individual resources are logged and ignored, only a failure
// to open the store fails installation.
func (m *Manager) Install(ctx context.Context, e *InstallEvent) error {
	store, err := m.storage.Open(ctx, m.Version())
	if err != nil {
		return ctxd.WrapError(ctx, err, "failed to open cache store", "name", m.Version())
	}

	outcomes := settleAll(ctx, m.precache, func(ctx context.Context, u string) error {
		return m.precacheOne(ctx, store, u)
	})

	cached := 0

	for _, o := range outcomes {
		if o.Err != nil {
			m.log.Warn(ctx, "failed to pre-cache resource",
				"name", m.Version(),
				"url", o.Item,
				"error", o.Err)
			m.stat.Add(ctx, MetricPrecache, 1, "name", m.Version(), "result", "failed")

			continue
		}

		cached++

		m.stat.Add(ctx, MetricPrecache, 1, "name", m.Version(), "result", "ok")
	}

	m.log.Info(ctx, "installed version",
		"name", m.Version(),
		"cached", cached,
		"failed", len(outcomes)-cached)

	if e == nil || e.Scope == nil {
		return nil
	}

	return e.Scope.SkipWaiting(ctx)
}

func (m *Manager) precacheOne(ctx context.Context, store Store, u string) error {
	resp, err := m.fetch(ctx, NewRequest(u))
	if err != nil {
		return err
	}

	if !resp.OK() {
		return fmt.Errorf("unexpected response status %d", resp.Status)
	}

	return store.Put(ctx, RequestKey(u), resp)
}

// Activate deletes stores of other versions and claims open pages.
func (m *Manager) Activate(ctx context.Context, e *ActivateEvent) error {
	names, err := m.storage.Keys(ctx)
	if err != nil {
		return ctxd.WrapError(ctx, err, "failed to list cache stores")
	}

	for _, name := range names {
		if name == m.Version() {
			continue
		}

		if _, err := m.storage.Delete(ctx, name); err != nil {
			return ctxd.WrapError(ctx, err, "failed to delete cache store", "name", name)
		}

		m.log.Info(ctx, "deleted stale cache store", "name", name, "current", m.Version())
		m.stat.Add(ctx, MetricStoreDeleted, 1, "name", name)
	}

	if e == nil || e.Scope == nil {
		return nil
	}

	return e.Scope.Claim(ctx)
}

// Fetch serves GET requests with a strategy that depends on request kind.
func (m *Manager) Fetch(ctx context.Context, e *FetchEvent) (*Response, error) {
	req := e.Request
	if req.Method != http.MethodGet {
		return nil, nil
	}

	switch Classify(req) {
	case KindHTML:
		return m.networkFirstShell(ctx, req)
	case KindAudio:
		return m.cacheFirst(ctx, req)
	default:
		return m.networkFirst(ctx, req)
	}
}

// Message handles control messages from pages.
func (m *Manager) Message(ctx context.Context, e *MessageEvent) error {
	if s, ok := e.Data.(string); ok && s == SkipWaitingMessage && e.Scope != nil {
		m.log.Info(ctx, "skip waiting requested", "name", m.Version(), "client", e.Source)

		return e.Scope.SkipWaiting(ctx)
	}

	m.log.Debug(ctx, "ignored message", "name", m.Version(), "data", e.Data)

	return nil
}

// Wait blocks until background cache writes finish.
func (m *Manager) Wait() {
	m.background.Wait()
}
