// Package memcached provides a cache storage on top of memcached.
//
// Memcached can not enumerate keys, so store names and request keys of every
// store are kept in index items updated with compare-and-swap. Item keys are
// hashed to fit memcached key restrictions.
package memcached

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bool64/ctxd"
	"github.com/bool64/stats"
	"github.com/bool64/swcache"
	"github.com/bradfitz/gomemcache/memcache"
	"github.com/cespare/xxhash/v2"
)

const maxCASAttempts = 10

// errContention indicates index could not be updated because of concurrent writers.
var errContention = errors.New("index update contention")

// Client is a subset of *memcache.Client.
type Client interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
	Add(item *memcache.Item) error
	CompareAndSwap(item *memcache.Item) error
	Delete(key string) error
}

var _ Client = &memcache.Client{}

// Config is optional configuration of storage.
type Config struct {
	// Prefix is prepended to all item keys, default "swcache:".
	Prefix string

	// Logger is an instance of contextualized logger, can be nil.
	Logger ctxd.Logger

	// Stats is metrics collector, can be nil.
	Stats stats.Tracker
}

var _ swcache.Storage = &Storage{}

// Storage keeps cache stores in memcached.
type Storage struct {
	client Client
	prefix string
	log    ctxd.Logger
	stat   stats.Tracker
}

// New creates memcached storage.
func New(client Client, cfg ...Config) *Storage {
	config := Config{}
	if len(cfg) >= 1 {
		config = cfg[0]
	}

	if config.Prefix == "" {
		config.Prefix = "swcache:"
	}

	s := &Storage{
		client: client,
		prefix: config.Prefix,
		log:    config.Logger,
		stat:   config.Stats,
	}

	if s.log == nil {
		s.log = ctxd.NoOpLogger{}
	}

	if s.stat == nil {
		s.stat = stats.NoOp{}
	}

	return s
}

func hash(s string) string {
	return strconv.FormatUint(xxhash.Sum64String(s), 36)
}

func (s *Storage) storesKey() string {
	return s.prefix + "stores"
}

func (s *Storage) keysKey(store string) string {
	return s.prefix + "keys:" + hash(store)
}

func (s *Storage) entryKey(store, key string) string {
	return s.prefix + "e:" + hash(store) + ":" + hash(key)
}

func decodeList(v []byte) []string {
	if len(v) == 0 {
		return nil
	}

	return strings.Split(string(v), "\n")
}

func encodeList(l []string) []byte {
	return []byte(strings.Join(l, "\n"))
}

func contains(l []string, v string) bool {
	for _, i := range l {
		if i == v {
			return true
		}
	}

	return false
}

func without(l []string, v string) []string {
	res := make([]string, 0, len(l))

	for _, i := range l {
		if i != v {
			res = append(res, i)
		}
	}

	return res
}

// updateList applies fn to a list item with optimistic locking.
func (s *Storage) updateList(ctx context.Context, key string, fn func(l []string) ([]string, bool)) error {
	for i := 0; i < maxCASAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		item, err := s.client.Get(key)
		if errors.Is(err, memcache.ErrCacheMiss) {
			l, changed := fn(nil)
			if !changed {
				return nil
			}

			err = s.client.Add(&memcache.Item{Key: key, Value: encodeList(l)})
			if errors.Is(err, memcache.ErrNotStored) {
				continue
			}

			return err
		}

		if err != nil {
			return err
		}

		l, changed := fn(decodeList(item.Value))
		if !changed {
			return nil
		}

		item.Value = encodeList(l)

		err = s.client.CompareAndSwap(item)
		if errors.Is(err, memcache.ErrCASConflict) || errors.Is(err, memcache.ErrNotStored) {
			continue
		}

		return err
	}

	return fmt.Errorf("%w: %s", errContention, key)
}

func (s *Storage) readList(ctx context.Context, key string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	item, err := s.client.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return decodeList(item.Value), nil
}

// Open returns a store, creating it if absent.
func (s *Storage) Open(ctx context.Context, name string) (swcache.Store, error) {
	err := s.updateList(ctx, s.storesKey(), func(l []string) ([]string, bool) {
		if contains(l, name) {
			return l, false
		}

		return append(l, name), true
	})
	if err != nil {
		return nil, ctxd.WrapError(ctx, err, "failed to register store", "name", name)
	}

	return &Store{s: s, name: name}, nil
}

// Has checks store existence.
func (s *Storage) Has(ctx context.Context, name string) (bool, error) {
	l, err := s.readList(ctx, s.storesKey())
	if err != nil {
		return false, err
	}

	return contains(l, name), nil
}

// Delete removes store with its entries.
func (s *Storage) Delete(ctx context.Context, name string) (bool, error) {
	existed := false

	err := s.updateList(ctx, s.storesKey(), func(l []string) ([]string, bool) {
		existed = contains(l, name)

		return without(l, name), existed
	})
	if err != nil {
		return false, ctxd.WrapError(ctx, err, "failed to unregister store", "name", name)
	}

	keys, err := s.readList(ctx, s.keysKey(name))
	if err != nil {
		return existed, err
	}

	for _, k := range keys {
		if err := s.client.Delete(s.entryKey(name, k)); err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
			return existed, fmt.Errorf("delete entry %s: %w", k, err)
		}
	}

	if err := s.client.Delete(s.keysKey(name)); err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		return existed, fmt.Errorf("delete key index: %w", err)
	}

	s.log.Debug(ctx, "deleted cache store", "name", name, "existed", existed, "entries", len(keys))

	return existed, nil
}

// Keys returns store names in creation order.
func (s *Storage) Keys(ctx context.Context) ([]string, error) {
	return s.readList(ctx, s.storesKey())
}

// record is a stored item value, Key protects from hash collisions.
type record struct {
	Key  string
	Resp *swcache.Response
}

var _ swcache.Store = &Store{}

// Store is a named cache store in memcached storage.
type Store struct {
	s    *Storage
	name string
}

// Match returns cached response.
func (c *Store) Match(ctx context.Context, key string) (*swcache.Response, error) {
	if swcache.SkipRead(ctx) {
		return nil, swcache.ErrNotFound
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	item, err := c.s.client.Get(c.s.entryKey(c.name, key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		c.s.stat.Add(ctx, swcache.MetricMiss, 1, "name", c.name)

		return nil, swcache.ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}

	var rec record
	if err := gob.NewDecoder(bytes.NewReader(item.Value)).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode entry: %w", err)
	}

	if rec.Key != key || rec.Resp == nil {
		c.s.stat.Add(ctx, swcache.MetricMiss, 1, "name", c.name)

		return nil, swcache.ErrNotFound
	}

	c.s.stat.Add(ctx, swcache.MetricHit, 1, "name", c.name)

	return rec.Resp, nil
}

// Put stores response.
func (c *Store) Put(ctx context.Context, key string, resp *swcache.Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r := resp.Clone()
	r.StoredAt = time.Now()

	buf := bytes.Buffer{}
	if err := gob.NewEncoder(&buf).Encode(record{Key: key, Resp: r}); err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}

	if err := c.s.client.Set(&memcache.Item{Key: c.s.entryKey(c.name, key), Value: buf.Bytes()}); err != nil {
		return fmt.Errorf("set entry: %w", err)
	}

	err := c.s.updateList(ctx, c.s.keysKey(c.name), func(l []string) ([]string, bool) {
		if contains(l, key) {
			return l, false
		}

		return append(l, key), true
	})
	if err != nil {
		return ctxd.WrapError(ctx, err, "failed to index entry", "name", c.name, "key", key)
	}

	c.s.log.Debug(ctx, "wrote to cache", "name", c.name, "key", key, "status", r.Status, "bytes", len(r.Body))
	c.s.stat.Add(ctx, swcache.MetricWrite, 1, "name", c.name)

	return nil
}

// Delete removes cached response.
func (c *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := c.s.client.Delete(c.s.entryKey(c.name, key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return swcache.ErrNotFound
	}

	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}

	c.s.stat.Add(ctx, swcache.MetricDelete, 1, "name", c.name)

	return c.s.updateList(ctx, c.s.keysKey(c.name), func(l []string) ([]string, bool) {
		return without(l, key), contains(l, key)
	})
}

// Keys lists cached request keys in order of first storing.
func (c *Store) Keys(ctx context.Context) ([]string, error) {
	return c.s.readList(ctx, c.s.keysKey(c.name))
}
