package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"audioconv/internal/artifact"
	"audioconv/internal/models"
	"audioconv/internal/scratch"
	"audioconv/internal/testutil"
	"audioconv/internal/transcode"
)

type stubTranscoder struct {
	calls int
	fn    func(ctx context.Context, in, out string, format models.Format) (transcode.Result, error)
}

func (s *stubTranscoder) Transcode(ctx context.Context, in, out string, format models.Format) (transcode.Result, error) {
	s.calls++
	return s.fn(ctx, in, out, format)
}

func newServiceForTest(t *testing.T, engine Transcoder, maxUpload int64) (*ConversionService, *scratch.Dir, *artifact.LocalStore) {
	t.Helper()
	store, err := artifact.NewLocalStore(filepath.Join(t.TempDir(), "out"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	dir, err := scratch.NewDir(filepath.Join(t.TempDir(), "scratch"))
	if err != nil {
		t.Fatalf("new scratch: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewConversionService(dir, store, engine, maxUpload, logger), dir, store
}

func writeOutput(content string) func(context.Context, string, string, models.Format) (transcode.Result, error) {
	return func(_ context.Context, in, out string, _ models.Format) (transcode.Result, error) {
		if _, err := os.Stat(in); err != nil {
			return transcode.Result{}, err
		}
		if err := os.WriteFile(out, []byte(content), 0o644); err != nil {
			return transcode.Result{}, err
		}
		return transcode.Result{Outcome: transcode.ExitOK}, nil
	}
}

func TestConversionServiceSuccess(t *testing.T) {
	var scratchSeen string
	engine := &stubTranscoder{fn: func(ctx context.Context, in, out string, f models.Format) (transcode.Result, error) {
		scratchSeen = in
		return writeOutput("ID3converted")(ctx, in, out, f)
	}}
	svc, dir, store := newServiceForTest(t, engine, 0)

	result := svc.Convert(context.Background(), models.ConversionRequest{
		Source:       strings.NewReader("RIFFsomething"),
		SourceName:   "../../evil name.WAV",
		TargetFormat: models.FormatMP3,
	})
	if !result.Success || result.Err != nil {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.ErrorKind != models.ErrorKindNone {
		t.Fatalf("expected no error kind, got %q", result.ErrorKind)
	}
	a := result.Artifact
	if !strings.HasPrefix(a.Name, "evil_name_") || !strings.HasSuffix(a.Name, ".mp3") {
		t.Fatalf("unexpected artifact name %q", a.Name)
	}
	if a.SizeBytes != int64(len("ID3converted")) || a.Format != models.FormatMP3 {
		t.Fatalf("unexpected artifact: %+v", a)
	}
	if filepath.Dir(a.Path) != store.Root() {
		t.Fatalf("artifact %q outside store root %q", a.Path, store.Root())
	}
	if filepath.Dir(scratchSeen) != dir.Root() || !strings.HasSuffix(scratchSeen, "_input.wav") {
		t.Fatalf("unexpected scratch input path %q", scratchSeen)
	}
	if _, err := os.Stat(scratchSeen); !os.IsNotExist(err) {
		t.Fatalf("expected scratch input removed, stat err=%v", err)
	}
}

func TestConversionServiceValidation(t *testing.T) {
	engine := &stubTranscoder{fn: writeOutput("x")}
	svc, dir, _ := newServiceForTest(t, engine, 8)

	cases := []struct {
		name string
		req  models.ConversionRequest
		want error
	}{
		{"unsupported format", models.ConversionRequest{Source: strings.NewReader("RIFF"), TargetFormat: "flac"}, nil},
		{"nil source", models.ConversionRequest{TargetFormat: models.FormatOGG}, scratch.ErrEmpty},
		{"empty source", models.ConversionRequest{Source: strings.NewReader(""), TargetFormat: models.FormatOGG}, scratch.ErrEmpty},
		{"too large", models.ConversionRequest{Source: strings.NewReader("RIFF0123456789"), TargetFormat: models.FormatOGG}, scratch.ErrTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := svc.Convert(context.Background(), tc.req)
			if result.Success || result.ErrorKind != models.ErrorKindValidation {
				t.Fatalf("expected validation failure, got %+v", result)
			}
			if tc.want != nil && !errors.Is(result.Err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, result.Err)
			}
		})
	}
	if engine.calls != 0 {
		t.Fatalf("engine should not run for invalid requests, ran %d times", engine.calls)
	}
	if entries, _ := os.ReadDir(dir.Root()); len(entries) != 0 {
		t.Fatalf("expected no scratch files, got %d", len(entries))
	}
}

func TestConversionServiceEngineOutcomes(t *testing.T) {
	cases := []struct {
		name   string
		result transcode.Result
		err    error
		kind   models.ErrorKind
	}{
		{"exit failed", transcode.Result{Outcome: transcode.ExitFailed, ExitCode: 1, StderrTail: "boom"}, nil, models.ErrorKindEngine},
		{"timed out", transcode.Result{Outcome: transcode.TimedOut, ExitCode: -1}, nil, models.ErrorKindTimeout},
		{"exit ok without output", transcode.Result{Outcome: transcode.ExitOK}, nil, models.ErrorKindEngine},
		{"engine missing", transcode.Result{}, transcode.ErrEngineNotFound, models.ErrorKindEngine},
		{"busy", transcode.Result{}, transcode.ErrBusy, models.ErrorKindBusy},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var scratchSeen, partialSeen string
			engine := &stubTranscoder{fn: func(_ context.Context, in, out string, _ models.Format) (transcode.Result, error) {
				scratchSeen, partialSeen = in, out
				return tc.result, tc.err
			}}
			svc, _, store := newServiceForTest(t, engine, 0)

			result := svc.Convert(context.Background(), models.ConversionRequest{
				Source:       bytes.NewReader([]byte("RIFFdata")),
				SourceName:   "a.wav",
				TargetFormat: models.FormatMP3,
			})
			if result.Success || result.ErrorKind != tc.kind {
				t.Fatalf("expected %q failure, got %+v", tc.kind, result)
			}
			if !result.ErrorKind.IsEngine() && tc.kind != models.ErrorKindBusy {
				t.Fatalf("expected engine-family error, got %q", result.ErrorKind)
			}
			if tc.result.StderrTail != "" && result.EngineDiagnostics != tc.result.StderrTail {
				t.Fatalf("expected diagnostics %q, got %q", tc.result.StderrTail, result.EngineDiagnostics)
			}
			for _, path := range []string{scratchSeen, partialSeen} {
				if _, err := os.Stat(path); !os.IsNotExist(err) {
					t.Fatalf("expected %s removed, stat err=%v", path, err)
				}
			}
			if entries, _ := os.ReadDir(store.Root()); len(entries) != 1 {
				t.Fatalf("expected only the partial dir in output root, got %d entries", len(entries))
			}
		})
	}
}

func TestConversionServiceCanceledUpload(t *testing.T) {
	engine := &stubTranscoder{fn: writeOutput("x")}
	svc, dir, _ := newServiceForTest(t, engine, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := svc.Convert(ctx, models.ConversionRequest{
		Source:       strings.NewReader("RIFFdata"),
		TargetFormat: models.FormatMP3,
	})
	if result.Success || result.ErrorKind != models.ErrorKindCanceled {
		t.Fatalf("expected canceled failure, got %+v", result)
	}
	if engine.calls != 0 {
		t.Fatal("engine should not run after cancellation")
	}
	if entries, _ := os.ReadDir(dir.Root()); len(entries) != 0 {
		t.Fatalf("expected no scratch files, got %d", len(entries))
	}
}

func TestConversionServiceWithFakeEngine(t *testing.T) {
	engine := transcode.NewEngine(transcode.Options{Path: testutil.FakeEngine(t, testutil.EngineConvert)}, transcode.NewPool(1))
	svc, _, _ := newServiceForTest(t, engine, 0)

	wav := testutil.ToneWAV(0.05, 8000, 440)
	result := svc.Convert(context.Background(), models.ConversionRequest{
		Source:       bytes.NewReader(wav),
		SourceName:   "tone.wav",
		TargetFormat: models.FormatOGG,
	})
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	data, err := os.ReadFile(result.Artifact.Path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("OggS")) {
		t.Fatalf("expected ogg magic, got %q", data[:4])
	}
}
