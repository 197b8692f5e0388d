package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"audioconv/internal/api"
	"audioconv/internal/config"
	"audioconv/internal/models"
)

func newConvertCmd(cfg *config.Config) *cobra.Command {
	var target string
	var download bool
	var outPath string

	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Upload an audio file and convert it to mp3 or ogg",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := models.ParseFormat(target)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			src, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer src.Close()

			opts := api.ConvertOptions{
				Source:       src,
				SourceName:   filepath.Base(args[0]),
				TargetFormat: string(format),
			}

			return withClient(ctx, cfg, func(client *api.Client) error {
				if !download {
					resp, err := client.Convert(ctx, opts)
					if err != nil {
						return err
					}
					return writeResult(resp, func() error {
						return writePlain("%s (%s)\n%s\n", resp.Filename, humanize.IBytes(uint64(resp.SizeBytes)), resp.DownloadURL)
					})
				}

				result, path, err := saveDownload(outPath, func(w *os.File) (api.DownloadResult, error) {
					return client.ConvertInline(ctx, opts, w)
				})
				if err != nil {
					return err
				}
				return writeSaved(result, path)
			})
		},
	}

	cmd.Flags().StringVar(&target, "to", "", "target format (mp3, ogg)")
	cmd.Flags().BoolVar(&download, "download", false, "receive the converted bytes instead of a download link")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "where to write downloaded bytes (default: artifact name in the current directory, - for stdout)")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

type savedFile struct {
	Filename    string `json:"filename"`
	Path        string `json:"path"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

func writeSaved(result api.DownloadResult, path string) error {
	if path == "-" {
		return nil
	}
	saved := savedFile{
		Filename:    result.Filename,
		Path:        path,
		ContentType: result.ContentType,
		SizeBytes:   result.SizeBytes,
	}
	return writeResult(saved, func() error {
		return writePlain("saved %s (%s)\n", path, humanize.IBytes(uint64(result.SizeBytes)))
	})
}

// saveDownload streams into a temporary file next to the destination and
// renames it once the transfer completes. When outPath is empty the server's
// artifact name is used in the current directory.
func saveDownload(outPath string, fetch func(*os.File) (api.DownloadResult, error)) (api.DownloadResult, string, error) {
	if outPath == "-" {
		result, err := fetch(os.Stdout)
		return result, "-", err
	}

	dir := "."
	if outPath != "" {
		dir = filepath.Dir(outPath)
	}
	tmp, err := os.CreateTemp(dir, ".audioconv-download-*")
	if err != nil {
		return api.DownloadResult{}, "", err
	}
	tmpPath := tmp.Name()
	fail := func(err error) (api.DownloadResult, string, error) {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return api.DownloadResult{}, "", err
	}

	result, err := fetch(tmp)
	if err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return api.DownloadResult{}, "", err
	}

	dest := outPath
	if dest == "" {
		name := filepath.Base(result.Filename)
		if name == "" || name == "." || name == string(filepath.Separator) {
			_ = os.Remove(tmpPath)
			return api.DownloadResult{}, "", fmt.Errorf("server did not name the artifact; pass --output")
		}
		dest = filepath.Join(dir, name)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return api.DownloadResult{}, "", err
	}
	return result, dest, nil
}
