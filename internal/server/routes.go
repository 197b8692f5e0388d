package server

import (
	"net/http"
	"strings"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Liveness.
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)

	// Conversion and retrieval.
	mux.HandleFunc("POST /convert", s.handleConvert)
	mux.HandleFunc("GET /download/{filename}", s.handleDownload)

	return mux
}

// withTraversalGuard rejects download paths with dot-dot segments before the
// mux can clean them into a redirect.
func (s *Server) withTraversalGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/download/") && hasDotDotSegment(r.URL.Path) {
			s.writeError(w, r, classForbidden.errorf("path traversal rejected"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func hasDotDotSegment(path string) bool {
	for _, segment := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' }) {
		if segment == ".." {
			return true
		}
	}
	return false
}
