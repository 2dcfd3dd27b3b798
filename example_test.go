package swcache_test

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bool64/ctxd"
	"github.com/bool64/stats"
	"github.com/bool64/swcache"
)

func ExampleNewManager() {
	online := true

	// Network stub, use swcache.HTTPFetcher for real requests.
	network := swcache.FetcherFunc(func(ctx context.Context, req *swcache.Request) (*swcache.Response, error) {
		if !online {
			return nil, fmt.Errorf("offline")
		}

		return &swcache.Response{Status: http.StatusOK, Body: []byte("content of " + req.URL)}, nil
	})

	manifest := swcache.DefaultManifest()
	manifest.Scope = "https://pads.example/"

	m, err := swcache.NewManager(swcache.ManagerConfig{
		Manifest: manifest,
		Fetcher:  network,
		Logger:   &ctxd.LoggerMock{},
		Stats:    &stats.TrackerMock{},
	})
	if err != nil {
		panic(err)
	}

	// Use context if available.
	ctx := context.TODO()

	// Pre-cache shell and audio files, then drop stale versions.
	_ = m.Install(ctx, &swcache.InstallEvent{})
	_ = m.Activate(ctx, &swcache.ActivateEvent{})

	online = false

	// Cached audio is available offline.
	resp, _ := m.Fetch(ctx, &swcache.FetchEvent{Request: swcache.NewRequest("https://pads.example/audio/piano.mp3")})
	fmt.Println(resp.Status, string(resp.Body))

	// Any offline navigation gets the application shell.
	resp, _ = m.Fetch(ctx, &swcache.FetchEvent{Request: swcache.NewRequest("https://pads.example/songs/")})
	fmt.Println(resp.Status, string(resp.Body))

	// Uncached audio gets an empty 404.
	resp, _ = m.Fetch(ctx, &swcache.FetchEvent{Request: swcache.NewRequest("https://pads.example/audio/new.mp3")})
	fmt.Println(resp.Status, resp.StatusText)

	// Output:
	// 200 content of https://pads.example/audio/piano.mp3
	// 200 content of https://pads.example/index.html
	// 404 Offline - audio file not cached
}
