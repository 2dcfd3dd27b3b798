package swcache

import (
	"context"
)

// NoOp is a Store stub.
type NoOp struct{}

var _ Store = NoOp{}

// Match does not find anything.
func (NoOp) Match(ctx context.Context, key string) (*Response, error) {
	return nil, ErrNotFound
}

// Put discards response.
func (NoOp) Put(ctx context.Context, key string, resp *Response) error {
	return nil
}

// Delete does not find anything.
func (NoOp) Delete(ctx context.Context, key string) error {
	return ErrNotFound
}

// Keys returns no keys.
func (NoOp) Keys(ctx context.Context) ([]string, error) {
	return nil, nil
}

// NoOpStorage is a Storage stub that opens NoOp stores, it disables caching.
type NoOpStorage struct{}

var _ Storage = NoOpStorage{}

// Open returns NoOp store.
func (NoOpStorage) Open(ctx context.Context, name string) (Store, error) {
	return NoOp{}, nil
}

// Has reports no stores.
func (NoOpStorage) Has(ctx context.Context, name string) (bool, error) {
	return false, nil
}

// Delete does not find anything.
func (NoOpStorage) Delete(ctx context.Context, name string) (bool, error) {
	return false, nil
}

// Keys returns no names.
func (NoOpStorage) Keys(ctx context.Context) ([]string, error) {
	return nil, nil
}
