package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/bool64/swcache"
	"github.com/bool64/swcache/internal/config"
	"github.com/bool64/swcache/internal/promstats"
	"github.com/bool64/swcache/internal/proxy"
	"github.com/bool64/swcache/internal/zapctxd"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:          "swcache",
		Short:        "Offline caching proxy for the worship pads application",
		SilenceUsage: true,
	}

	cfg.Bind(root.PersistentFlags())

	root.AddCommand(newServeCmd(cfg), newCachesCmd(cfg), newPurgeCmd(cfg))

	return root
}

// setup prepares dependencies shared by commands.
func setup(ctx context.Context, cfg *config.Config) (*deps, *prometheus.Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger, err := zapctxd.New(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}

	registry := prometheus.NewRegistry()
	tracker := promstats.NewTracker("swcache", registry)
	tracker.Logger = logger

	d := &deps{
		cfg:  cfg,
		log:  logger,
		stat: tracker,
	}

	if err := d.loadManifest(); err != nil {
		return nil, nil, err
	}

	if err := d.openStorage(ctx); err != nil {
		return nil, nil, err
	}

	return d, registry, nil
}

func newServeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Install current version and serve origin through it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	d, registry, err := setup(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.close()

	origin, err := url.Parse(cfg.Origin)
	if err != nil {
		return fmt.Errorf("parse origin: %w", err)
	}

	network := d.fetcher()

	m, err := swcache.NewManager(swcache.ManagerConfig{
		Manifest: d.manifest,
		Storage:  d.storage,
		Fetcher:  network,
		Logger:   d.log,
		Stats:    d.stat,
	})
	if err != nil {
		return err
	}

	reg := swcache.NewRegistration(swcache.RegistrationConfig{
		Logger:  d.log,
		Stats:   d.stat,
		Network: network,
	})

	if _, err := reg.Register(ctx, m.Version(), m); err != nil {
		return err
	}

	srv := &http.Server{
		Addr: cfg.Listen,
		Handler: proxy.NewRouter(proxy.Config{
			Origin:       origin,
			Registration: reg,
			Storage:      d.storage,
			Metrics:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			Logger:       d.log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		d.log.Important(ctx, "listening", "addr", cfg.Listen, "origin", cfg.Origin, "version", m.Version())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		d.log.Warn(shutdownCtx, "shutdown failed", "error", err)
	}

	m.Wait()

	return d.saveSnapshot(shutdownCtx)
}

func newCachesCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "caches",
		Short: "List cache stores and their entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			d, _, err := setup(ctx, cfg)
			if err != nil {
				return err
			}
			defer d.close()

			names, err := d.storage.Keys(ctx)
			if err != nil {
				return err
			}

			for _, name := range names {
				store, err := d.storage.Open(ctx, name)
				if err != nil {
					return err
				}

				keys, err := store.Keys(ctx)
				if err != nil {
					return err
				}

				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s (%d entries)\n", name, len(keys))

				for _, k := range keys {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", k)
				}
			}

			return nil
		},
	}
}

func newPurgeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete cache stores of versions other than the current one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			d, _, err := setup(ctx, cfg)
			if err != nil {
				return err
			}
			defer d.close()

			m, err := swcache.NewManager(swcache.ManagerConfig{
				Manifest: d.manifest,
				Storage:  d.storage,
				Fetcher:  d.fetcher(),
				Logger:   d.log,
				Stats:    d.stat,
			})
			if err != nil {
				return err
			}

			// Activation without scope only cleans up stores.
			if err := m.Activate(ctx, &swcache.ActivateEvent{}); err != nil {
				return err
			}

			return d.saveSnapshot(ctx)
		},
	}
}
