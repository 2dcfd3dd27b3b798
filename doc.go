// Package swcache implements an offline cache manager for a small audio web application.
//
// The manager pre-caches a manifest of audio assets together with the HTML shell,
// serves requests from a versioned cache store using per-resource strategies and
// evicts stores of previous versions when a new version activates.
//
// Features:
//
//   - Versioned cache stores behind an injected Storage registry (memory, sqlite, memcached).
//   - Best-effort concurrent pre-cache, missing assets never fail installation.
//   - Network-first for HTML with cached shell fallback, cache-first for audio with
//     an empty 404 fallback, network-first with cache fallback for everything else.
//   - Explicit lifecycle state machine (install, wait, activate, redundant) with
//     skip-waiting and client claiming.
//   - Allows logging, stats collection.
//   - Propagates context to allow better control of backend and application components.
package swcache
