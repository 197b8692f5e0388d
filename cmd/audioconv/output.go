package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"audioconv/internal/format"
)

// outputFormatter is nil for plain text output.
var outputFormatter format.Formatter

var stdout io.Writer = os.Stdout

func setOutputFormat(name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "plain" || name == "text" {
		outputFormatter = nil
		return nil
	}
	f, err := format.New(name)
	if err != nil {
		return err
	}
	outputFormatter = f
	return nil
}

// writeResult writes payload with the selected formatter, or calls plain
// when no structured format was requested.
func writeResult(payload any, plain func() error) error {
	if outputFormatter != nil {
		return outputFormatter.Write(stdout, payload)
	}
	return plain()
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(stdout, format, args...)
	return err
}
