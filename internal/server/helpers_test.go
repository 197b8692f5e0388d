package server

import (
	"bytes"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"audioconv/internal/artifact"
	"audioconv/internal/scratch"
	"audioconv/internal/testutil"
	"audioconv/internal/transcode"
)

type testEnvConfig struct {
	enginePath     string
	engineTimeout  time.Duration
	maxConcurrent  int
	maxPending     int
	maxUploadBytes int64
	publicBaseURL  string
	logOutput      io.Writer
}

type testEnv struct {
	srv        *Server
	handler    http.Handler
	outputDir  string
	scratchDir string
	pool       *transcode.Pool
}

func newTestEnv(t *testing.T, behavior testutil.EngineBehavior, opts ...func(*testEnvConfig)) *testEnv {
	t.Helper()
	cfg := testEnvConfig{
		engineTimeout: 10 * time.Second,
		maxConcurrent: 4,
		maxPending:    16,
		logOutput:     io.Discard,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.enginePath == "" {
		cfg.enginePath = testutil.FakeEngine(t, behavior)
	}

	root := t.TempDir()
	outputDir := filepath.Join(root, "output")
	scratchDir := filepath.Join(root, "scratch")

	store, err := artifact.NewLocalStore(outputDir)
	if err != nil {
		t.Fatalf("new artifact store: %v", err)
	}
	scratchRoot, err := scratch.NewDir(scratchDir)
	if err != nil {
		t.Fatalf("new scratch dir: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(cfg.logOutput, &slog.HandlerOptions{Level: slog.LevelDebug}))
	pool := transcode.NewPool(cfg.maxConcurrent)
	engine := transcode.NewEngine(transcode.Options{
		Path:      cfg.enginePath,
		Timeout:   cfg.engineTimeout,
		WaitDelay: time.Second,
	}, pool)
	conversions := NewConversionService(scratchRoot, store, engine, cfg.maxUploadBytes, logger)

	srv := New("127.0.0.1:0", Options{
		Conversions:    conversions,
		Artifacts:      store,
		MaxUploadBytes: cfg.maxUploadBytes,
		MaxPending:     cfg.maxPending,
		PublicBaseURL:  cfg.publicBaseURL,
	}, logger)

	return &testEnv{
		srv:        srv,
		handler:    srv.Handler(),
		outputDir:  store.Root(),
		scratchDir: scratchRoot.Root(),
		pool:       pool,
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

// artifacts lists published files in the output directory.
func (e *testEnv) artifacts(t *testing.T) []string {
	t.Helper()
	return regularFiles(t, e.outputDir)
}

func (e *testEnv) partials(t *testing.T) []string {
	t.Helper()
	return regularFiles(t, filepath.Join(e.outputDir, ".partial"))
}

func (e *testEnv) scratchFiles(t *testing.T) []string {
	t.Helper()
	return regularFiles(t, e.scratchDir)
}

func (e *testEnv) assertNoLeftovers(t *testing.T) {
	t.Helper()
	if files := e.scratchFiles(t); len(files) != 0 {
		t.Fatalf("expected scratch dir to be empty, got %v", files)
	}
	if files := e.partials(t); len(files) != 0 {
		t.Fatalf("expected no partial outputs, got %v", files)
	}
}

func regularFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("read dir %s: %v", dir, err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	return names
}

type convertForm struct {
	targetFormat string
	download     string
	filename     string
	content      []byte
	omitFile     bool
}

func newConvertRequest(t *testing.T, form convertForm) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if form.targetFormat != "" {
		if err := writer.WriteField("target_format", form.targetFormat); err != nil {
			t.Fatalf("write target_format: %v", err)
		}
	}
	if form.download != "" {
		if err := writer.WriteField("download", form.download); err != nil {
			t.Fatalf("write download: %v", err)
		}
	}
	if !form.omitFile {
		filename := form.filename
		if filename == "" {
			filename = "tone.wav"
		}
		part, err := writer.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(form.content); err != nil {
			t.Fatalf("write form content: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/convert", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}
