package server

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"audioconv/internal/testutil"
)

func TestDownloadRejectsTraversal(t *testing.T) {
	env := newTestEnv(t, testutil.EngineConvert)

	secretDir := t.TempDir()
	secret := filepath.Join(secretDir, "secret.mp3")
	if err := os.WriteFile(secret, []byte("root:x:0:0"), 0o644); err != nil {
		t.Fatalf("write secret: %v", err)
	}
	if err := os.Symlink(secret, filepath.Join(env.outputDir, "leak.mp3")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if err := os.Mkdir(filepath.Join(env.outputDir, "nested.mp3"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	cases := []struct {
		path   string
		status int
	}{
		{"/download/../../etc/passwd", http.StatusForbidden},
		{"/download/..%2F..%2Fetc%2Fpasswd", http.StatusForbidden},
		{"/download/%2e%2e", http.StatusForbidden},
		{"/download/..%5C..%5Cwindows%5Cwin.ini", http.StatusForbidden},
		{"/download/a..b.mp3", http.StatusForbidden},
		{"/download/leak.mp3", http.StatusForbidden},
		{"/download/.partial", http.StatusNotFound},
		{"/download/nested.mp3", http.StatusNotFound},
		{"/download/missing.mp3", http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			w := env.do(httptest.NewRequest(http.MethodGet, tc.path, nil))
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d (%s)", tc.status, w.Code, w.Body.String())
			}
			body := w.Body.String()
			if strings.Contains(body, "root:") || strings.Contains(body, env.outputDir) {
				t.Fatalf("response leaked filesystem details: %s", body)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Fatalf("expected json error body, got %q", ct)
			}
		})
	}
}

func TestDownloadSupportsRanges(t *testing.T) {
	env := newTestEnv(t, testutil.EngineConvert)
	if err := os.WriteFile(filepath.Join(env.outputDir, "clip_0123.ogg"), []byte("OggS0123456789"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/download/clip_0123.ogg", nil)
	req.Header.Set("Range", "bytes=0-3")
	w := env.do(req)
	if w.Code != http.StatusPartialContent {
		t.Fatalf("expected 206, got %d", w.Code)
	}
	if w.Body.String() != "OggS" {
		t.Fatalf("unexpected range body %q", w.Body.String())
	}
	if got := w.Header().Get("Content-Type"); got != "audio/ogg" {
		t.Fatalf("expected audio/ogg, got %q", got)
	}
}

func TestDownloadUnknownExtensionIsOctetStream(t *testing.T) {
	env := newTestEnv(t, testutil.EngineConvert)
	if err := os.WriteFile(filepath.Join(env.outputDir, "notes_1.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	w := env.do(httptest.NewRequest(http.MethodGet, "/download/notes_1.txt", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != "application/octet-stream" {
		t.Fatalf("expected octet-stream, got %q", got)
	}
}

func TestDownloadIsNonDestructive(t *testing.T) {
	env := newTestEnv(t, testutil.EngineConvert)
	if err := os.WriteFile(filepath.Join(env.outputDir, "a_1.mp3"), []byte("ID3data"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	for i := 0; i < 2; i++ {
		w := env.do(httptest.NewRequest(http.MethodGet, "/download/a_1.mp3", nil))
		if w.Code != http.StatusOK || w.Body.String() != "ID3data" {
			t.Fatalf("download %d: status %d body %q", i, w.Code, w.Body.String())
		}
	}
}
