package transcode

import (
	"fmt"

	"audioconv/internal/models"
)

var muxers = map[models.Format]string{
	models.FormatMP3: "mp3",
	models.FormatOGG: "ogg",
}

// BuildArgs returns the engine argument vector for one conversion. Only the
// two paths vary per request; the muxer comes from the closed format set.
// Paths must be absolute so that neither can be mistaken for an option.
func BuildArgs(inputPath, outputPath string, format models.Format) ([]string, error) {
	muxer, ok := muxers[format]
	if !ok {
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
	return []string{
		"-hide_banner",
		"-nostdin",
		"-loglevel", "error",
		"-y",
		"-i", inputPath,
		"-vn",
		"-f", muxer,
		outputPath,
	}, nil
}
