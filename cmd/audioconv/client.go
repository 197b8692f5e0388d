package main

import (
	"context"
	"time"

	"audioconv/internal/api"
	"audioconv/internal/config"
)

const pingTimeout = 2 * time.Second

// withClient pings the configured server before running fn so connection
// problems surface with guidance instead of mid-upload.
func withClient(ctx context.Context, cfg *config.Config, fn func(*api.Client) error) error {
	client := api.NewClient(cfg.APIURL)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		return err
	}

	return fn(client)
}
