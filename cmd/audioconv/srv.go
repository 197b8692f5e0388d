package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"audioconv/internal/artifact"
	"audioconv/internal/config"
	"audioconv/internal/scratch"
	"audioconv/internal/server"
	"audioconv/internal/transcode"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the audioconv API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}
			if cfg.OutputDir == "" {
				return fmt.Errorf("output dir is required")
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			logger := slog.Default().With("component", "server")

			addr, err := server.ListenAddr(cfg.APIURL)
			if err != nil {
				return err
			}

			srv, err := buildServer(ctx, addr, cfg, logger)
			if err != nil {
				return err
			}
			return srv.ListenAndServe(ctx)
		},
	}
}

func buildServer(ctx context.Context, addr string, cfg *config.Config, logger *slog.Logger) (*server.Server, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := artifact.NewLocalStore(cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("open output dir: %w", err)
	}
	scratchDir, err := scratch.NewDir(cfg.ScratchDir)
	if err != nil {
		return nil, fmt.Errorf("open scratch dir: %w", err)
	}

	if err := transcode.CheckInstalled(ctx, cfg.Engine.Path); err != nil {
		logger.Warn("transcoding engine check failed; conversions will fail until it is installed", "engine", cfg.Engine.Path, "error", err)
	}

	pool := transcode.NewPool(cfg.Engine.MaxConcurrent)
	engine := transcode.NewEngine(transcode.Options{
		Path:            cfg.Engine.Path,
		Timeout:         cfg.Engine.Timeout,
		StderrTailBytes: cfg.Engine.StderrTailBytes,
		QueueTimeout:    cfg.Engine.QueueTimeout,
	}, pool)

	maxUpload := cfg.Upload.MaxBytes.Int64()
	conversions := server.NewConversionService(scratchDir, store, engine, maxUpload, logger)

	budget := engine.Timeout() + cfg.Engine.QueueTimeout
	if cfg.Engine.QueueTimeout <= 0 {
		budget += engine.Timeout()
	}

	logger.Info("conversion pipeline ready",
		"output_dir", store.Root(),
		"scratch_dir", scratchDir.Root(),
		"engine", engine.Path(),
		"engine_timeout", engine.Timeout().String(),
		"max_concurrent", pool.MaxWorkers(),
		"max_upload", humanize.IBytes(uint64(maxUpload)),
	)

	return server.New(addr, server.Options{
		Conversions:     conversions,
		Artifacts:       store,
		MaxUploadBytes:  maxUpload,
		MultipartMemory: cfg.Upload.MultipartMemory.Int64(),
		MaxPending:      cfg.Server.MaxPending,
		PublicBaseURL:   cfg.PublicBaseURL,
		EngineBudget:    budget,
	}, logger), nil
}
