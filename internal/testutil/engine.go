// Package testutil provides shared helpers for tests that exercise the
// conversion pipeline without a real transcoding engine.
//
// [FakeEngine] writes a POSIX shell script that honors the engine contract:
// it reads the path following "-i", the muxer following "-f", and treats the
// last argument as the output path. All helpers call t.Fatalf on failure.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// EngineBehavior selects what a fake engine does when invoked.
type EngineBehavior string

const (
	// EngineConvert accepts RIFF input and writes a format magic header
	// followed by the input bytes. Other input fails with exit status 1.
	EngineConvert EngineBehavior = "convert"
	// EngineFail prints a diagnostic mentioning a filesystem path and exits 3.
	EngineFail EngineBehavior = "fail"
	// EngineNoOutput exits 0 without writing anything.
	EngineNoOutput EngineBehavior = "no-output"
	// EngineHang sleeps far longer than any test timeout.
	EngineHang EngineBehavior = "hang"
	// EngineSlowConvert waits briefly and then behaves like EngineConvert.
	EngineSlowConvert EngineBehavior = "slow-convert"
)

const scriptHeader = `#!/bin/sh
in=""
out=""
fmt=""
prev=""
for arg in "$@"; do
  if [ "$prev" = "-i" ]; then in="$arg"; fi
  if [ "$prev" = "-f" ]; then fmt="$arg"; fi
  prev="$arg"
  out="$arg"
done
`

const convertBody = `case "$(head -c 4 "$in")" in
  RIFF) ;;
  *) echo "$in: Invalid data found when processing input" >&2; exit 1 ;;
esac
case "$fmt" in
  mp3) printf 'ID3' > "$out" ;;
  ogg) printf 'OggS' > "$out" ;;
  *) echo "unknown muxer $fmt" >&2; exit 1 ;;
esac
cat "$in" >> "$out"
`

var engineBodies = map[EngineBehavior]string{
	EngineConvert:     convertBody,
	EngineFail:        "echo \"fatal: cannot open /srv/private/$in\" >&2\nexit 3\n",
	EngineNoOutput:    "exit 0\n",
	EngineHang:        "exec sleep 30\n",
	EngineSlowConvert: "sleep 0.2\n" + convertBody,
}

// SkipIfNoShell skips tests that depend on POSIX shell scripts.
func SkipIfNoShell(t testing.TB) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake engine scripts require a POSIX shell")
	}
}

// FakeEngine writes an executable engine script and returns its path.
func FakeEngine(t testing.TB, behavior EngineBehavior) string {
	t.Helper()
	SkipIfNoShell(t)
	body, ok := engineBodies[behavior]
	if !ok {
		t.Fatalf("unknown fake engine behavior %q", behavior)
	}
	return writeScript(t, string(behavior), scriptHeader+body)
}

// RecordingEngine writes an engine script that stores its argument vector,
// one argument per line, in the returned args file and then converts.
func RecordingEngine(t testing.TB) (enginePath, argsFile string) {
	t.Helper()
	SkipIfNoShell(t)
	argsFile = filepath.Join(t.TempDir(), "args.txt")
	record := "printf '%s\\n' \"$@\" > '" + strings.ReplaceAll(argsFile, "'", `'\''`) + "'\n"
	return writeScript(t, "recording", scriptHeader+record+convertBody), argsFile
}

func writeScript(t testing.TB, name, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-engine-"+name)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake engine: %v", err)
	}
	return path
}
