package swcache

// SentinelError is an error.
type SentinelError string

const (
	// ErrNotFound indicates missing cache entry or cache store.
	ErrNotFound = SentinelError("missing cache item")

	// ErrClosed indicates storage was closed and deactivated.
	ErrClosed = SentinelError("storage is closed")

	// ErrNoShell indicates the core shell document is not cached.
	ErrNoShell = SentinelError("core shell is not cached")

	// ErrNoActiveWorker indicates there is no activated worker to dispatch to.
	ErrNoActiveWorker = SentinelError("no active worker")

	// ErrInvalidState indicates lifecycle operation is not allowed in current worker state.
	ErrInvalidState = SentinelError("invalid worker state")
)

// Error implements error.
func (e SentinelError) Error() string {
	return string(e)
}
