package transcode

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audioconv/internal/models"
	"audioconv/internal/testutil"
)

func writeInput(t *testing.T, data []byte) (input, output string) {
	t.Helper()
	dir := t.TempDir()
	input = filepath.Join(dir, "input.wav")
	output = filepath.Join(dir, "output.mp3")
	require.NoError(t, os.WriteFile(input, data, 0o644))
	return input, output
}

func TestTranscodeSuccess(t *testing.T) {
	engine := NewEngine(Options{Path: testutil.FakeEngine(t, testutil.EngineConvert)}, nil)
	input, output := writeInput(t, testutil.ToneWAV(0.1, 8000, 440))

	res, err := engine.Transcode(context.Background(), input, output, models.FormatMP3)
	require.NoError(t, err)
	assert.Equal(t, ExitOK, res.Outcome)
	assert.Equal(t, 0, res.ExitCode)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "ID3"), "expected mp3 magic, got %q", data[:8])
}

func TestTranscodeArgumentVector(t *testing.T) {
	enginePath, argsFile := testutil.RecordingEngine(t)
	engine := NewEngine(Options{Path: enginePath}, nil)

	dir := t.TempDir()
	input := filepath.Join(dir, "in put; $(touch pwned).wav")
	output := filepath.Join(dir, "out.ogg")
	require.NoError(t, os.WriteFile(input, testutil.ToneWAV(0.05, 8000, 440), 0o644))

	res, err := engine.Transcode(context.Background(), input, output, models.FormatOGG)
	require.NoError(t, err)
	require.Equal(t, ExitOK, res.Outcome)

	raw, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	got := strings.Split(strings.TrimSuffix(string(raw), "\n"), "\n")
	want, err := BuildArgs(input, output, models.FormatOGG)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, statErr := os.Stat(filepath.Join(dir, "pwned"))
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "input path must not be shell-interpreted")
}

func TestTranscodeFailureCapturesStderr(t *testing.T) {
	engine := NewEngine(Options{Path: testutil.FakeEngine(t, testutil.EngineFail)}, nil)
	input, output := writeInput(t, []byte("garbage"))

	res, err := engine.Transcode(context.Background(), input, output, models.FormatMP3)
	require.NoError(t, err)
	assert.Equal(t, ExitFailed, res.Outcome)
	assert.Equal(t, 3, res.ExitCode)
	assert.Contains(t, res.StderrTail, "fatal: cannot open")
}

func TestTranscodeCorruptInput(t *testing.T) {
	engine := NewEngine(Options{Path: testutil.FakeEngine(t, testutil.EngineConvert)}, nil)
	input, output := writeInput(t, []byte("not audio at all"))

	res, err := engine.Transcode(context.Background(), input, output, models.FormatMP3)
	require.NoError(t, err)
	assert.Equal(t, ExitFailed, res.Outcome)
	assert.Equal(t, 1, res.ExitCode)
	assert.Contains(t, res.StderrTail, "Invalid data")
}

func TestTranscodeTimeoutKillsEngine(t *testing.T) {
	engine := NewEngine(Options{
		Path:      testutil.FakeEngine(t, testutil.EngineHang),
		Timeout:   200 * time.Millisecond,
		WaitDelay: time.Second,
	}, nil)
	input, output := writeInput(t, testutil.ToneWAV(0.05, 8000, 440))

	start := time.Now()
	res, err := engine.Transcode(context.Background(), input, output, models.FormatMP3)
	require.NoError(t, err)
	assert.Equal(t, TimedOut, res.Outcome)
	assert.Less(t, time.Since(start), 10*time.Second, "engine should be killed promptly")
}

func TestTranscodeParentCancel(t *testing.T) {
	engine := NewEngine(Options{Path: testutil.FakeEngine(t, testutil.EngineHang), WaitDelay: time.Second}, nil)
	input, output := writeInput(t, testutil.ToneWAV(0.05, 8000, 440))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := engine.Transcode(ctx, input, output, models.FormatMP3)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTranscodeMissingEngine(t *testing.T) {
	engine := NewEngine(Options{Path: filepath.Join(t.TempDir(), "no-such-engine")}, nil)
	input, output := writeInput(t, []byte("RIFF"))

	_, err := engine.Transcode(context.Background(), input, output, models.FormatMP3)
	assert.ErrorIs(t, err, ErrEngineNotFound)
}

func TestTranscodeRejectsRelativePaths(t *testing.T) {
	engine := NewEngine(Options{Path: "unused"}, nil)
	_, err := engine.Transcode(context.Background(), "-i", "/tmp/out.mp3", models.FormatMP3)
	assert.Error(t, err)
	_, err = engine.Transcode(context.Background(), "/tmp/in.wav", "out.mp3", models.FormatMP3)
	assert.Error(t, err)
}

func TestTranscodeRejectsUnknownFormat(t *testing.T) {
	engine := NewEngine(Options{Path: "unused"}, nil)
	_, err := engine.Transcode(context.Background(), "/tmp/in.wav", "/tmp/out.flac", models.Format("flac"))
	assert.Error(t, err)
}

func TestCheckInstalled(t *testing.T) {
	assert.NoError(t, CheckInstalled(context.Background(), testutil.FakeEngine(t, testutil.EngineNoOutput)))
	assert.ErrorIs(t, CheckInstalled(context.Background(), filepath.Join(t.TempDir(), "missing")), ErrEngineNotFound)
}

func TestNewEngineDefaults(t *testing.T) {
	engine := NewEngine(Options{}, nil)
	assert.Equal(t, DefaultEnginePath, engine.Path())
	assert.Equal(t, DefaultTimeout, engine.Timeout())
	assert.Nil(t, engine.Pool())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "exit_ok", ExitOK.String())
	assert.Equal(t, "exit_failed", ExitFailed.String())
	assert.Equal(t, "timed_out", TimedOut.String())
}

func TestTranscodeQueueTimeoutReportsBusy(t *testing.T) {
	pool := NewPool(1)
	require.NoError(t, pool.Acquire(context.Background()))
	defer pool.Release()

	engine := NewEngine(Options{
		Path:         testutil.FakeEngine(t, testutil.EngineConvert),
		QueueTimeout: 50 * time.Millisecond,
	}, pool)
	input, output := writeInput(t, testutil.ToneWAV(0.05, 8000, 440))

	_, err := engine.Transcode(context.Background(), input, output, models.FormatMP3)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, 0, pool.Waiting())
	_, statErr := os.Stat(output)
	assert.True(t, os.IsNotExist(statErr))
}
