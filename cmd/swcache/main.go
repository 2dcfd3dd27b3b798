// Package main runs an offline caching proxy for the worship pads application.
package main

import (
	"context"
	"log"
	"os"

	"github.com/bool64/swcache/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	if err := newRootCmd(&cfg).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
