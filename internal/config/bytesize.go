package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
)

// ByteSize is a byte count written in config files as an integer or a
// human-readable size such as "100MiB" or "8 MB".
type ByteSize int64

// ParseByteSize parses raw into a positive ByteSize.
func ParseByteSize(raw string) (ByteSize, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("size is required")
	}
	n, err := humanize.ParseBytes(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", raw, err)
	}
	if n == 0 || n > math.MaxInt64 {
		return 0, fmt.Errorf("size %q out of range", raw)
	}
	return ByteSize(n), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *ByteSize) UnmarshalText(text []byte) error {
	parsed, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b ByteSize) String() string {
	if b <= 0 {
		return "0B"
	}
	return strings.ReplaceAll(humanize.IBytes(uint64(b)), " ", "")
}

// Int64 returns the size as a plain byte count.
func (b ByteSize) Int64() int64 {
	return int64(b)
}
