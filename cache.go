package swcache

import (
	"context"
)

// Store is a named cache of responses keyed by request identity.
type Store interface {
	// Match returns cached response or ErrNotFound.
	Match(ctx context.Context, key string) (*Response, error)

	// Put stores response with a given key, previous value is replaced.
	Put(ctx context.Context, key string, resp *Response) error

	// Delete removes cached response, ErrNotFound is returned for missing key.
	Delete(ctx context.Context, key string) error

	// Keys lists cached request keys.
	Keys(ctx context.Context) ([]string, error)
}

// Storage is a registry of named cache stores of a single origin.
type Storage interface {
	// Open returns a store with a given name, creating it if absent.
	Open(ctx context.Context, name string) (Store, error)

	// Has checks if store with a given name exists.
	Has(ctx context.Context, name string) (bool, error)

	// Delete removes store with all its entries and returns true if store existed.
	Delete(ctx context.Context, name string) (bool, error)

	// Keys returns store names in creation order.
	Keys(ctx context.Context) ([]string, error)
}

// Fetcher performs network requests.
//
// Any error returned is a network failure, HTTP error statuses are valid responses.
type Fetcher interface {
	Fetch(ctx context.Context, req *Request) (*Response, error)
}

// FetcherFunc adapts function to Fetcher.
type FetcherFunc func(ctx context.Context, req *Request) (*Response, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Entry is a cached response with its key.
type Entry interface {
	Key() string
	Response() *Response
}

// Walker calls function for every entry in cache and fails on first error returned by that function.
//
// Count of processed entries is returned.
type Walker interface {
	Walk(func(entry Entry) error) (int, error)
}
