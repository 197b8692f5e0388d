package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

const (
	requestIDHeader   = "X-Request-ID"
	maxRequestIDBytes = 64
)

type requestIDKey struct{}

// requestID returns the id the logging middleware attached to ctx.
func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// requestLogger returns base annotated with the request id from ctx, if any.
func requestLogger(ctx context.Context, base *slog.Logger) *slog.Logger {
	if id := requestID(ctx); id != "" {
		return base.With("request_id", id)
	}
	return base
}

// acceptRequestID keeps a caller-supplied id when it is short printable ASCII
// and otherwise mints a new one.
func acceptRequestID(raw string) string {
	if raw == "" || len(raw) > maxRequestIDBytes {
		return uuid.NewString()
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < 0x21 || raw[i] > 0x7e {
			return uuid.NewString()
		}
	}
	return raw
}

// responseRecorder remembers the status and body size written through it.
type responseRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func (w *responseRecorder) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseRecorder) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.written += int64(n)
	return n, err
}

func (w *responseRecorder) statusCode() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// Unwrap lets http.ResponseController reach Flush and deadlines.
func (w *responseRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func requestLogLevel(method string, status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case method == http.MethodPost:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := acceptRequestID(r.Header.Get(requestIDHeader))
		w.Header().Set(requestIDHeader, id)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))

		if r.URL.Path == "/" || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		attrs := []any{
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.statusCode(),
			"duration_ms", time.Since(start).Milliseconds(),
			"sent", humanize.IBytes(uint64(rec.written)),
			"remote_addr", r.RemoteAddr,
		}
		if r.ContentLength > 0 {
			attrs = append(attrs, "received", humanize.IBytes(uint64(r.ContentLength)))
		}
		if r.Pattern != "" {
			attrs = append(attrs, "route", r.Pattern)
		}
		s.log().Log(r.Context(), requestLogLevel(r.Method, rec.statusCode()), "request complete", attrs...)
	})
}
