package swcache

import (
	"context"
)

type (
	clientIDCtxKey struct{}
	skipReadCtxKey struct{}
)

// WithClientID returns context with id of the page that issued the request.
func WithClientID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, clientIDCtxKey{}, id)
}

// ClientID returns id of the requesting page or empty string.
func ClientID(ctx context.Context) string {
	id, _ := ctx.Value(clientIDCtxKey{}).(string)

	return id
}

// WithSkipRead returns context with cache read ignored.
//
// With such context Store.Match should always return ErrNotFound discarding cached value,
// writes are not affected.
func WithSkipRead(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipReadCtxKey{}, true)
}

// SkipRead returns true if cache read is ignored in context.
func SkipRead(ctx context.Context) bool {
	_, ok := ctx.Value(skipReadCtxKey{}).(bool)

	return ok
}
