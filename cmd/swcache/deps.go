package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/bool64/ctxd"
	"github.com/bool64/stats"
	"github.com/bool64/swcache"
	"github.com/bool64/swcache/internal/config"
	"github.com/bool64/swcache/memcached"
	"github.com/bool64/swcache/sqlite"
	"github.com/bradfitz/gomemcache/memcache"
)

// deps holds long-lived service dependencies.
type deps struct {
	cfg      *config.Config
	log      ctxd.Logger
	stat     stats.Tracker
	manifest swcache.Manifest
	storage  swcache.Storage
	memory   *swcache.MemoryStorage
	closers  []io.Closer
}

func (d *deps) loadManifest() error {
	m := swcache.DefaultManifest()

	if d.cfg.Manifest != "" {
		var err error

		if m, err = swcache.LoadManifest(d.cfg.Manifest); err != nil {
			return err
		}
	}

	// Origin is authoritative for scope, manifest files are shared between environments.
	m.Scope = d.cfg.Origin
	d.manifest = m

	return m.Validate()
}

func (d *deps) openStorage(ctx context.Context) error {
	switch d.cfg.Storage {
	case config.StorageNone:
		d.storage = swcache.NoOpStorage{}
	case config.StorageSQLite:
		s, err := sqlite.Open(d.cfg.SQLitePath, sqlite.Config{Logger: d.log, Stats: d.stat})
		if err != nil {
			return err
		}

		d.storage = s
		d.closers = append(d.closers, s)
	case config.StorageMemcached:
		d.storage = memcached.New(memcache.New(d.cfg.Memcached...), memcached.Config{Logger: d.log, Stats: d.stat})
	default:
		d.memory = swcache.NewMemoryStorage(swcache.MemoryConfig{
			Logger:   d.log,
			Stats:    d.stat,
			MaxBytes: d.cfg.MaxBytes,
		})
		d.storage = d.memory

		if err := d.restoreSnapshot(ctx); err != nil {
			return err
		}
	}

	return nil
}

func (d *deps) restoreSnapshot(ctx context.Context) error {
	if d.cfg.Snapshot == "" {
		return nil
	}

	f, err := os.Open(d.cfg.Snapshot)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}

	defer func() {
		_ = f.Close()
	}()

	n, err := d.memory.Restore(f)
	if err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}

	d.log.Info(ctx, "restored cache snapshot", "file", d.cfg.Snapshot, "entries", n)

	return nil
}

func (d *deps) saveSnapshot(ctx context.Context) error {
	if d.cfg.Snapshot == "" || d.memory == nil {
		return nil
	}

	f, err := os.CreateTemp(filepath.Dir(d.cfg.Snapshot), filepath.Base(d.cfg.Snapshot)+".*")
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}

	n, err := d.memory.Dump(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		_ = os.Remove(f.Name())

		return fmt.Errorf("dump snapshot: %w", err)
	}

	if err := os.Rename(f.Name(), d.cfg.Snapshot); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}

	d.log.Info(ctx, "saved cache snapshot", "file", d.cfg.Snapshot, "entries", n)

	return nil
}

func (d *deps) fetcher() swcache.Fetcher {
	return &swcache.HTTPFetcher{Client: &http.Client{Timeout: d.cfg.FetchTimeout}}
}

func (d *deps) close() {
	for _, c := range d.closers {
		_ = c.Close()
	}
}
