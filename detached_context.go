package swcache

import (
	"context"
	"time"
)

// detached keeps values of parent context but ignores its cancellation,
// background cache writes outlive the request that triggered them.
type detached struct {
	parent context.Context
}

func detach(ctx context.Context) context.Context {
	return detached{parent: ctx}
}

func (detached) Deadline() (time.Time, bool) { return time.Time{}, false }

func (detached) Done() <-chan struct{} { return nil }

func (detached) Err() error { return nil }

func (d detached) Value(key interface{}) interface{} {
	return d.parent.Value(key)
}
