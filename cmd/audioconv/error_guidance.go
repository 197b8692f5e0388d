package main

import (
	"context"
	"errors"
	"net"
	"slices"

	"audioconv/internal/api"
	"audioconv/internal/transcode"
)

// codeHints maps server error codes to what the user can do about them.
var codeHints = map[string]string{
	"unsupported_format": "list supported formats with: audioconv formats",
	"missing_required":   "pass the target format with --to mp3 or --to ogg",
	"request_too_large":  "the server caps uploads; raise upload.max_bytes or AUDIOCONV_MAX_UPLOAD on the server",
	"empty_file":         "the upload had no bytes; check the input path",
	"engine_timeout":     "conversion exceeded engine.timeout; raise it on the server for long inputs",
	"engine_unavailable": "the server cannot run ffmpeg; run `audioconv check` on the server host",
	"not_found":          "artifact names are printed by `audioconv convert`; check the filename",
	"forbidden":          "artifact names are plain file names without directories",
}

// formatCLIError renders err followed by hint lines for stderr.
func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}
	return uniqueLines(append([]string{err.Error()}, hintsFor(err)...))
}

func hintsFor(err error) []string {
	var hints []string
	add := func(text string) {
		hints = append(hints, "hint: "+text)
	}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		if hint, ok := codeHints[apiErr.Code]; ok {
			add(hint)
		}
		if !apiErr.FromServer() {
			add("verify AUDIOCONV_API_URL points to an audioconv server")
		}
		if apiErr.Retryable() {
			add("the server is busy or slow; retry shortly")
		}
		if apiErr.Status >= 500 {
			add("the server hides engine output from clients; check its logs for details")
		}
		return hints
	}

	var netErr net.Error
	switch {
	case errors.Is(err, transcode.ErrEngineNotFound):
		add("install ffmpeg or set engine.path / AUDIOCONV_ENGINE to its location")
	case errors.Is(err, context.Canceled):
		add("interrupted; the server discards partial conversions")
	case errors.Is(err, context.DeadlineExceeded):
		add("request timed out; check server health or increase AUDIOCONV_HTTP_TIMEOUT")
	case errors.As(err, &netErr):
		add("ensure an audioconv server is running at AUDIOCONV_API_URL")
		add("start a local server with: audioconv srv")
		if netErr.Timeout() {
			add("you can increase AUDIOCONV_HTTP_TIMEOUT for slower environments")
		}
	}
	return hints
}

func uniqueLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line != "" && !slices.Contains(out, line) {
			out = append(out, line)
		}
	}
	return out
}
