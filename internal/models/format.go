package models

import (
	"fmt"
	"strings"
)

// Format is an output audio format accepted by the conversion pipeline.
type Format string

const (
	FormatMP3 Format = "mp3"
	FormatOGG Format = "ogg"
)

var supportedFormats = []Format{FormatMP3, FormatOGG}

var formatContentTypes = map[Format]string{
	FormatMP3: "audio/mpeg",
	FormatOGG: "audio/ogg",
}

// SupportedFormats returns the closed set of output formats in display order.
func SupportedFormats() []Format {
	out := make([]Format, len(supportedFormats))
	copy(out, supportedFormats)
	return out
}

// SupportedFormatNames returns the supported formats as plain strings.
func SupportedFormatNames() []string {
	out := make([]string, 0, len(supportedFormats))
	for _, f := range supportedFormats {
		out = append(out, string(f))
	}
	return out
}

// ParseFormat normalizes raw and checks it against the supported set.
func ParseFormat(raw string) (Format, error) {
	value := Format(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return "", fmt.Errorf("target_format is required")
	}
	if _, ok := formatContentTypes[value]; !ok {
		return "", fmt.Errorf("unsupported format: %s. Supported: %s", value, strings.Join(SupportedFormatNames(), ", "))
	}
	return value, nil
}

// Extension returns the filename extension without the leading dot.
func (f Format) Extension() string {
	return string(f)
}

// ContentType returns the HTTP media type served for artifacts of this format.
func (f Format) ContentType() string {
	if ct, ok := formatContentTypes[f]; ok {
		return ct
	}
	return fallbackContentType
}

const fallbackContentType = "application/octet-stream"

// ContentTypeForFilename infers a media type from the extension of name.
// Unknown extensions map to application/octet-stream.
func ContentTypeForFilename(name string) string {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 || idx == len(name)-1 {
		return fallbackContentType
	}
	ext := Format(strings.ToLower(name[idx+1:]))
	if ct, ok := formatContentTypes[ext]; ok {
		return ct
	}
	return fallbackContentType
}

// DeliveryMode selects how a finished conversion is returned.
type DeliveryMode string

const (
	DeliveryDescriptor DeliveryMode = "descriptor"
	DeliveryInline     DeliveryMode = "inline"
)

// ParseDownloadFlag maps the optional download form flag to a delivery mode.
// An empty value selects the descriptor response.
func ParseDownloadFlag(raw string) (DeliveryMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "false", "0", "no", "off", "f", "n":
		return DeliveryDescriptor, nil
	case "true", "1", "yes", "on", "t", "y":
		return DeliveryInline, nil
	default:
		return "", fmt.Errorf("invalid download flag: %s", raw)
	}
}
