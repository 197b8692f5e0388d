package main

import (
	"context"

	"github.com/spf13/cobra"

	"audioconv/internal/api"
	"audioconv/internal/config"
	"audioconv/internal/transcode"
)

type checkReport struct {
	Engine       string `json:"engine"`
	EngineOK     bool   `json:"engine_ok"`
	EngineError  string `json:"engine_error,omitempty"`
	Server       string `json:"server,omitempty"`
	ServerOK     bool   `json:"server_ok,omitempty"`
	ServerError  string `json:"server_error,omitempty"`
	ServiceTitle string `json:"service,omitempty"`
}

func newCheckCmd(cfg *config.Config) *cobra.Command {
	var checkServer bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the transcoding engine (and optionally the server) is usable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			report := checkReport{Engine: cfg.Engine.Path}
			engineErr := transcode.CheckInstalled(ctx, cfg.Engine.Path)
			report.EngineOK = engineErr == nil
			if engineErr != nil {
				report.EngineError = engineErr.Error()
			}

			var serverErr error
			if checkServer {
				report.Server = cfg.APIURL
				svc, err := api.NewClient(cfg.APIURL).Service(ctx)
				serverErr = err
				report.ServerOK = err == nil
				if err != nil {
					report.ServerError = err.Error()
				} else {
					report.ServiceTitle = svc.Service
				}
			}

			if err := writeResult(report, func() error {
				return writeCheckPlain(report)
			}); err != nil {
				return err
			}

			if engineErr != nil {
				return engineErr
			}
			return serverErr
		},
	}

	cmd.Flags().BoolVar(&checkServer, "server", false, "also check that the API server answers")
	return cmd
}

func writeCheckPlain(report checkReport) error {
	status := func(ok bool) string {
		if ok {
			return "ok"
		}
		return "FAILED"
	}
	if err := writePlain("engine %s: %s\n", report.Engine, status(report.EngineOK)); err != nil {
		return err
	}
	if report.Server != "" {
		return writePlain("server %s: %s\n", report.Server, status(report.ServerOK))
	}
	return nil
}

