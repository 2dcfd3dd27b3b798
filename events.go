package swcache

import (
	"context"
)

// Scope is the host environment of a worker.
type Scope interface {
	// SkipWaiting requests activation without waiting for pages of the previous version to close.
	SkipWaiting(ctx context.Context) error

	// Claim makes the worker the controller of all open pages.
	Claim(ctx context.Context) error
}

// InstallEvent is dispatched once per worker version.
type InstallEvent struct {
	Scope Scope
}

// ActivateEvent is dispatched when worker becomes the active version.
type ActivateEvent struct {
	Scope Scope
}

// FetchEvent is dispatched for every request of a controlled page.
type FetchEvent struct {
	Request  *Request
	ClientID string
}

// MessageEvent carries a message posted by a page.
type MessageEvent struct {
	Scope  Scope
	Data   interface{}
	Source string
}

// Handler reacts to lifecycle and request events, host invokes one method per event.
type Handler interface {
	// Install prepares caches, an error makes the worker redundant.
	Install(ctx context.Context, e *InstallEvent) error

	// Activate cleans up after previous versions.
	Activate(ctx context.Context, e *ActivateEvent) error

	// Fetch returns a response for the request.
	//
	// Nil response with nil error means the request is not handled and
	// must go to default network handling.
	Fetch(ctx context.Context, e *FetchEvent) (*Response, error)

	// Message handles a message from a page.
	Message(ctx context.Context, e *MessageEvent) error
}
