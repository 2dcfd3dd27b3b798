// Package proxy serves an origin through a worker registration.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"

	"github.com/bool64/ctxd"
	"github.com/bool64/swcache"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// ClientHeader carries id of a connected page.
const ClientHeader = "Sw-Client-Id"

// Config describes proxy dependencies.
type Config struct {
	// Origin is a base URL of the upstream application.
	Origin *url.URL

	// Registration dispatches requests to workers.
	Registration *swcache.Registration

	// Storage is used by cache listing endpoint, can be nil.
	Storage swcache.Storage

	// Metrics is exposed at /metrics if not nil.
	Metrics http.Handler

	Logger ctxd.Logger
}

// Handler serves control endpoints under /_sw/ and proxies everything else.
type Handler struct {
	origin  *url.URL
	reg     *swcache.Registration
	storage swcache.Storage
	network *httputil.ReverseProxy
	log     ctxd.Logger
}

// NewRouter creates HTTP handler.
func NewRouter(cfg Config) http.Handler {
	h := &Handler{
		origin:  cfg.Origin,
		reg:     cfg.Registration,
		storage: cfg.Storage,
		network: httputil.NewSingleHostReverseProxy(cfg.Origin),
		log:     cfg.Logger,
	}

	if h.log == nil {
		h.log = ctxd.NoOpLogger{}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.Route("/_sw", func(r chi.Router) {
		r.Get("/status", h.status)
		r.Get("/caches", h.caches)
		r.Post("/clients", h.connect)
		r.Delete("/clients/{id}", h.disconnect)
		r.Post("/message", h.message)
	})

	r.Handle("/*", http.HandlerFunc(h.serve))

	return r
}

// serve intercepts GET requests, other methods go straight to origin.
func (h *Handler) serve(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.network.ServeHTTP(rw, r)

		return
	}

	clientID := r.Header.Get(ClientHeader)
	ctx := swcache.WithClientID(r.Context(), clientID)

	ref := &url.URL{Path: strings.TrimPrefix(r.URL.Path, "/"), RawQuery: r.URL.RawQuery}
	req := &swcache.Request{
		Method: http.MethodGet,
		URL:    h.origin.ResolveReference(ref).String(),
		Header: r.Header.Clone(),
	}
	req.Header.Del(ClientHeader)

	resp, err := h.reg.Fetch(ctx, clientID, req)
	if err != nil {
		h.log.Warn(ctx, "request failed", "url", req.URL, "error", err)
		http.Error(rw, "network error", http.StatusBadGateway)

		return
	}

	for k, v := range resp.Header {
		rw.Header()[k] = v
	}

	rw.Header().Set("Content-Length", strconv.Itoa(len(resp.Body)))
	rw.WriteHeader(resp.Status)

	if _, err := rw.Write(resp.Body); err != nil {
		h.log.Debug(ctx, "failed to write response", "error", err)
	}
}

type statusResponse struct {
	Active     string `json:"active,omitempty"`
	Waiting    string `json:"waiting,omitempty"`
	Installing string `json:"installing,omitempty"`
	Clients    int    `json:"clients"`
}

func version(w *swcache.Worker) string {
	if w == nil {
		return ""
	}

	return w.Version()
}

func (h *Handler) status(rw http.ResponseWriter, r *http.Request) {
	h.json(r.Context(), rw, http.StatusOK, statusResponse{
		Active:     version(h.reg.Active()),
		Waiting:    version(h.reg.Waiting()),
		Installing: version(h.reg.Installing()),
		Clients:    h.reg.Clients(),
	})
}

type cacheInfo struct {
	Name  string   `json:"name"`
	Keys  []string `json:"keys"`
	Bytes int64    `json:"bytes,omitempty"`
}

func (h *Handler) caches(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.storage == nil {
		h.json(ctx, rw, http.StatusOK, []cacheInfo{})

		return
	}

	names, err := h.storage.Keys(ctx)
	if err != nil {
		h.fail(ctx, rw, err)

		return
	}

	res := make([]cacheInfo, 0, len(names))

	for _, name := range names {
		store, err := h.storage.Open(ctx, name)
		if err != nil {
			h.fail(ctx, rw, err)

			return
		}

		keys, err := store.Keys(ctx)
		if err != nil {
			h.fail(ctx, rw, err)

			return
		}

		info := cacheInfo{Name: name, Keys: keys}

		// Body sizes are only known to stores that can be walked.
		if w, ok := store.(swcache.Walker); ok {
			if _, err := w.Walk(func(e swcache.Entry) error {
				info.Bytes += int64(len(e.Response().Body))

				return nil
			}); err != nil {
				h.fail(ctx, rw, err)

				return
			}
		}

		res = append(res, info)
	}

	h.json(ctx, rw, http.StatusOK, res)
}

func (h *Handler) connect(rw http.ResponseWriter, r *http.Request) {
	id := h.reg.Connect(r.Context())

	h.json(r.Context(), rw, http.StatusCreated, map[string]string{
		"id":         id,
		"controller": h.reg.Controller(id),
	})
}

func (h *Handler) disconnect(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	err := h.reg.Disconnect(ctx, chi.URLParam(r, "id"))
	if errors.Is(err, swcache.ErrNotFound) {
		http.Error(rw, err.Error(), http.StatusNotFound)

		return
	}

	if err != nil {
		h.fail(ctx, rw, err)

		return
	}

	rw.WriteHeader(http.StatusNoContent)
}

// message posts request body as a string message, e.g. SKIP_WAITING.
func (h *Handler) message(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		http.Error(rw, err.Error(), http.StatusBadRequest)

		return
	}

	err = h.reg.PostMessage(ctx, r.Header.Get(ClientHeader), strings.TrimSpace(string(body)))
	if errors.Is(err, swcache.ErrNoActiveWorker) {
		http.Error(rw, err.Error(), http.StatusConflict)

		return
	}

	if err != nil {
		h.fail(ctx, rw, err)

		return
	}

	h.status(rw, r)
}

func (h *Handler) fail(ctx context.Context, rw http.ResponseWriter, err error) {
	h.log.Error(ctx, "control request failed", "error", err)
	http.Error(rw, err.Error(), http.StatusInternalServerError)
}

func (h *Handler) json(ctx context.Context, rw http.ResponseWriter, status int, v interface{}) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)

	if err := json.NewEncoder(rw).Encode(v); err != nil {
		h.log.Debug(ctx, "failed to write response", "error", err)
	}
}
