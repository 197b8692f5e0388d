package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"audioconv/internal/api"
	"audioconv/internal/config"
)

func newFetchCmd(cfg *config.Config) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "fetch <filename>",
		Short: "Download a previously converted artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			filename := args[0]

			return withClient(ctx, cfg, func(client *api.Client) error {
				result, path, err := saveDownload(outPath, func(w *os.File) (api.DownloadResult, error) {
					return client.Download(ctx, filename, w)
				})
				if err != nil {
					return err
				}
				return writeSaved(result, path)
			})
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "where to write the artifact (default: its name in the current directory, - for stdout)")
	return cmd
}
