package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"audioconv/internal/config"
)

const (
	logLevelEnvKey  = "AUDIOCONV_LOG_LEVEL"
	logFormatEnvKey = "AUDIOCONV_LOG_FORMAT"
)

var logOutput io.Writer = os.Stderr

// levelChoice is the raw level string that won precedence and where it came
// from: --log-level, then AUDIOCONV_LOG_LEVEL, then log_level.
type levelChoice struct {
	raw    string
	origin string
}

func chooseLogLevel(flagLevel, envLevel, configLevel string) levelChoice {
	for _, c := range []levelChoice{
		{raw: flagLevel, origin: "--log-level"},
		{raw: envLevel, origin: logLevelEnvKey},
		{raw: configLevel, origin: "log_level"},
	} {
		if strings.TrimSpace(c.raw) != "" {
			return c
		}
	}
	return levelChoice{}
}

// configureLoggerForCLI installs the default slog logger. A bad flag value is
// an error; a bad env or config value falls back to the default level and
// returns a warning for the caller to print.
func configureLoggerForCLI(flagLevel, configLevel string) (string, error) {
	choice := chooseLogLevel(flagLevel, os.Getenv(logLevelEnvKey), configLevel)
	jsonOutput := strings.EqualFold(strings.TrimSpace(os.Getenv(logFormatEnvKey)), "json")

	level, err := parseLogLevel(choice.raw)
	if err == nil {
		slog.SetDefault(newLogger(logOutput, level, jsonOutput))
		return "", nil
	}
	if choice.origin == "--log-level" {
		return "", fmt.Errorf("invalid --log-level %q", choice.raw)
	}

	fallback, _ := parseLogLevel("")
	slog.SetDefault(newLogger(logOutput, fallback, jsonOutput))
	if choice.origin == logLevelEnvKey {
		return fmt.Sprintf("warning: invalid %s=%q; defaulting to %s", logLevelEnvKey, choice.raw, config.DefaultLogLevel), nil
	}
	return fmt.Sprintf("warning: invalid log_level=%q; defaulting to %s", choice.raw, config.DefaultLogLevel), nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		value = config.DefaultLogLevel
	}
	if strings.EqualFold(value, "warning") {
		value = "warn"
	}
	if numeric, err := strconv.Atoi(value); err == nil {
		return slog.Level(numeric), nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", raw)
	}
	return level, nil
}

// newLogger builds a text logger, or a JSON one for log collectors.
func newLogger(w io.Writer, level slog.Level, jsonOutput bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if jsonOutput {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
