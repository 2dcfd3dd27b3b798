package swcache

import (
	"context"
	"fmt"
	"sync"

	"github.com/bool64/ctxd"
	"github.com/bool64/stats"
	"github.com/google/uuid"
)

// State is a worker lifecycle state.
type State int

// Worker states.
const (
	StateParsed State = iota
	StateInstalling
	StateInstalled
	StateActivating
	StateActivated
	StateRedundant
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateParsed:
		return "parsed"
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActivating:
		return "activating"
	case StateActivated:
		return "activated"
	case StateRedundant:
		return "redundant"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Worker is a single version of event handler within registration.
type Worker struct {
	reg     *Registration
	version string
	handler Handler

	// Guarded by reg.mu.
	state       State
	skipWaiting bool
}

var _ Scope = &Worker{}

// Version returns worker version.
func (w *Worker) Version() string {
	return w.version
}

// State returns current lifecycle state.
func (w *Worker) State() State {
	w.reg.mu.Lock()
	defer w.reg.mu.Unlock()

	return w.state
}

// SkipWaiting activates installed worker without waiting for pages of previous version to close.
//
// During installation the request is remembered and honored once install succeeds.
func (w *Worker) SkipWaiting(ctx context.Context) error {
	w.reg.mu.Lock()
	w.skipWaiting = true
	waiting := w.state == StateInstalled && w.reg.waiting == w
	w.reg.mu.Unlock()

	if !waiting {
		return nil
	}

	return w.reg.tryActivate(ctx)
}

// Claim makes worker the controller of all clients.
func (w *Worker) Claim(ctx context.Context) error {
	w.reg.mu.Lock()
	defer w.reg.mu.Unlock()

	if w.reg.active != w {
		return fmt.Errorf("%w: claim by %s worker %s", ErrInvalidState, w.state, w.version)
	}

	for id := range w.reg.clients {
		w.reg.clients[id] = w
	}

	w.reg.log.Debug(ctx, "claimed clients", "version", w.version, "count", len(w.reg.clients))

	return nil
}

// RegistrationConfig controls registration.
type RegistrationConfig struct {
	// Logger collects messages with context.
	Logger ctxd.Logger

	// Stats tracks stats.
	Stats stats.Tracker

	// Network handles requests that workers do not handle, required for Fetch.
	Network Fetcher
}

// Registration runs worker lifecycle of a single scope and dispatches events to workers.
type Registration struct {
	// lifecycle serializes install and activation jobs.
	lifecycle sync.Mutex

	mu         sync.Mutex
	installing *Worker
	waiting    *Worker
	active     *Worker
	clients    map[string]*Worker

	network Fetcher
	log     ctxd.Logger
	stat    stats.Tracker
}

// NewRegistration creates a registration without workers.
func NewRegistration(config RegistrationConfig) *Registration {
	r := &Registration{
		clients: make(map[string]*Worker),
		network: config.Network,
		log:     config.Logger,
		stat:    config.Stats,
	}

	if r.log == nil {
		r.log = ctxd.NoOpLogger{}
	}

	if r.stat == nil {
		r.stat = stats.NoOp{}
	}

	return r
}

// Register installs a new worker version and activates it when possible.
//
// Error is returned if installation fails, such worker becomes redundant and
// the previous version stays in control. Activation error is returned too,
// but worker remains active.
func (r *Registration) Register(ctx context.Context, version string, h Handler) (*Worker, error) {
	w := &Worker{reg: r, version: version, handler: h}

	r.lifecycle.Lock()

	r.mu.Lock()
	w.state = StateInstalling
	r.installing = w
	r.mu.Unlock()

	r.log.Info(ctx, "installing worker", "version", version)

	err := h.Install(ctx, &InstallEvent{Scope: w})

	r.mu.Lock()
	r.installing = nil

	if err != nil {
		w.state = StateRedundant
		r.mu.Unlock()
		r.lifecycle.Unlock()

		r.stat.Add(ctx, MetricWorker, 1, "version", version, "state", StateRedundant.String())

		return w, ctxd.WrapError(ctx, err, "failed to install worker", "version", version)
	}

	if r.waiting != nil {
		r.waiting.state = StateRedundant
	}

	w.state = StateInstalled
	r.waiting = w
	r.mu.Unlock()

	r.lifecycle.Unlock()

	r.log.Info(ctx, "installed worker", "version", version)

	return w, r.tryActivate(ctx)
}

// tryActivate promotes waiting worker if there is no active one,
// or active one controls no clients, or waiting one asked to skip waiting.
func (r *Registration) tryActivate(ctx context.Context) error {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	r.mu.Lock()
	w := r.waiting

	if w == nil || w.state != StateInstalled {
		r.mu.Unlock()

		return nil
	}

	if r.active != nil && !w.skipWaiting && r.controlledByLocked(r.active) > 0 {
		r.mu.Unlock()
		r.log.Debug(ctx, "worker is waiting", "version", w.version, "active", r.active.version)

		return nil
	}

	prev := r.active
	if prev != nil {
		prev.state = StateRedundant

		for id, c := range r.clients {
			if c == prev {
				r.clients[id] = w
			}
		}
	}

	r.waiting = nil
	r.active = w
	w.state = StateActivating
	r.mu.Unlock()

	r.log.Info(ctx, "activating worker", "version", w.version)

	err := w.handler.Activate(ctx, &ActivateEvent{Scope: w})

	r.mu.Lock()
	w.state = StateActivated
	r.mu.Unlock()

	if err != nil {
		return ctxd.WrapError(ctx, err, "failed to activate worker", "version", w.version)
	}

	r.log.Info(ctx, "activated worker", "version", w.version)
	r.stat.Add(ctx, MetricWorker, 1, "version", w.version, "state", StateActivated.String())

	return nil
}

func (r *Registration) controlledByLocked(w *Worker) int {
	n := 0

	for _, c := range r.clients {
		if c == w {
			n++
		}
	}

	return n
}

// Active returns active worker or nil.
func (r *Registration) Active() *Worker {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.active
}

// Installing returns worker being installed or nil.
func (r *Registration) Installing() *Worker {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.installing
}

// Waiting returns installed worker waiting for activation or nil.
func (r *Registration) Waiting() *Worker {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.waiting
}

// Connect registers a new page and returns its id.
//
// Page is controlled by active worker if there is one.
func (r *Registration) Connect(ctx context.Context) string {
	id := uuid.New().String()

	r.mu.Lock()
	r.clients[id] = r.active
	r.mu.Unlock()

	r.log.Debug(ctx, "client connected", "client", id)

	return id
}

// Disconnect removes a page, a waiting worker is activated once the last page of active one is gone.
func (r *Registration) Disconnect(ctx context.Context, id string) error {
	r.mu.Lock()
	_, ok := r.clients[id]
	delete(r.clients, id)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: unknown client %s", ErrNotFound, id)
	}

	r.log.Debug(ctx, "client disconnected", "client", id)

	return r.tryActivate(ctx)
}

// Controller returns worker version controlling the page, empty if page is not controlled.
func (r *Registration) Controller(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if w := r.clients[id]; w != nil {
		return w.version
	}

	return ""
}

// Clients returns number of connected pages.
func (r *Registration) Clients() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.clients)
}

// Fetch dispatches request to the worker that controls the page.
//
// Requests of uncontrolled or unknown pages go to the active worker if it is a
// navigation, and to the network otherwise. Requests not handled by worker go
// to the network.
func (r *Registration) Fetch(ctx context.Context, clientID string, req *Request) (*Response, error) {
	r.mu.Lock()
	w, known := r.clients[clientID]

	if w == nil && (!known || Classify(req) == KindHTML) {
		w = r.active
	}

	if w != nil && w.state != StateActivated && w.state != StateActivating {
		w = nil
	}
	r.mu.Unlock()

	if w != nil {
		resp, err := w.handler.Fetch(ctx, &FetchEvent{Request: req, ClientID: clientID})
		if err != nil || resp != nil {
			return resp, err
		}
	}

	if r.network == nil {
		return nil, ErrNoActiveWorker
	}

	return r.network.Fetch(ctx, req)
}

// PostMessage delivers message to the waiting worker, or to the active one if none is waiting.
func (r *Registration) PostMessage(ctx context.Context, source string, data interface{}) error {
	r.mu.Lock()
	w := r.waiting

	if w == nil {
		w = r.active
	}
	r.mu.Unlock()

	if w == nil {
		return ErrNoActiveWorker
	}

	return w.handler.Message(ctx, &MessageEvent{Scope: w, Data: data, Source: source})
}
