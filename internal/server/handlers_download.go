package server

import (
	"context"
	"errors"
	"mime"
	"net/http"

	"audioconv/internal/artifact"
	"audioconv/internal/models"
)

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	s.serveArtifact(w, r, r.PathValue("filename"))
}

// serveArtifact streams a stored artifact with range support.
func (s *Server) serveArtifact(w http.ResponseWriter, r *http.Request, name string) {
	if s.artifacts == nil {
		s.writeError(w, r, classInternal.errorf("artifact store is not configured"))
		return
	}

	f, info, err := s.artifacts.Open(r.Context(), name)
	if err != nil {
		switch {
		case errors.Is(err, artifact.ErrForbidden):
			s.writeError(w, r, classForbidden.errorf("access denied"))
		case errors.Is(err, artifact.ErrNotFound):
			s.writeError(w, r, classNotFound.errorf("file not found"))
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			s.writeError(w, r, classCanceled.wrap(err))
		default:
			s.writeError(w, r, classStorageFailure.wrap(err))
		}
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", models.ContentTypeForFilename(info.Name()))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": info.Name()}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
