package artifact

import (
	"path"
	"strings"
)

const (
	defaultBase   = "audio"
	maxBaseLength = 64
	maxExtLength  = 10
)

// SanitizeBase derives a filesystem-safe base name from a client supplied filename.
// Directory components and the extension are dropped, characters outside
// [A-Za-z0-9._-] are removed and whitespace becomes '_'. Runs of dots collapse
// to one so the result never contains "..".
func SanitizeBase(sourceName string) string {
	name := strings.ReplaceAll(sourceName, "\\", "/")
	name = path.Base(name)
	if name == "." || name == "/" {
		name = ""
	}
	if idx := strings.LastIndexByte(name, '.'); idx > 0 {
		name = name[:idx]
	}

	var b strings.Builder
	lastDot := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
			lastDot = false
		case r == '.':
			if !lastDot {
				b.WriteRune(r)
			}
			lastDot = true
		case r == ' ' || r == '\t':
			b.WriteByte('_')
			lastDot = false
		}
	}

	out := strings.Trim(b.String(), "._")
	if len(out) > maxBaseLength {
		out = strings.TrimRight(out[:maxBaseLength], "._")
	}
	if out == "" {
		return defaultBase
	}
	return out
}

// SafeExtension returns the lower-cased extension of sourceName including the
// leading dot, or "" when the extension is missing or not purely alphanumeric.
func SafeExtension(sourceName string) string {
	name := path.Base(strings.ReplaceAll(sourceName, "\\", "/"))
	idx := strings.LastIndexByte(name, '.')
	if idx <= 0 || idx == len(name)-1 {
		return ""
	}
	ext := strings.ToLower(name[idx+1:])
	if !validExtension(ext) {
		return ""
	}
	return "." + ext
}

func validExtension(ext string) bool {
	if ext == "" || len(ext) > maxExtLength {
		return false
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// validFilename reports whether name can be looked up directly under the root.
func validFilename(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return false
	}
	return !strings.Contains(name, "..")
}
