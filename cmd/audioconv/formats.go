package main

import (
	"github.com/spf13/cobra"

	"audioconv/internal/models"
)

type formatInfo struct {
	Name        string `json:"name"`
	Extension   string `json:"extension"`
	ContentType string `json:"content_type"`
}

func supportedFormatInfo() []formatInfo {
	formats := models.SupportedFormats()
	out := make([]formatInfo, 0, len(formats))
	for _, f := range formats {
		out = append(out, formatInfo{
			Name:        string(f),
			Extension:   "." + f.Extension(),
			ContentType: f.ContentType(),
		})
	}
	return out
}

func newFormatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List supported target formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formats := supportedFormatInfo()
			return writeResult(formats, func() error {
				for _, f := range formats {
					if err := writePlain("%s\t%s\t%s\n", f.Name, f.Extension, f.ContentType); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}
