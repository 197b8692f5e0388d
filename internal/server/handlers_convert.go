package server

import (
	"errors"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"audioconv/internal/api"
	"audioconv/internal/models"
)

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	if s.conversions == nil {
		s.writeError(w, r, classInternal.errorf("conversions are not configured"))
		return
	}
	if !s.acquireLimiter(s.convertLimiter, w, r, "conversion") {
		return
	}
	defer s.releaseLimiter(s.convertLimiter)

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+multipartOverheadBytes)
	if err := r.ParseMultipartForm(s.multipartMemory); err != nil {
		s.writeError(w, r, classifyMultipartError(err))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	format, err := models.ParseFormat(r.FormValue("target_format"))
	if err != nil {
		if strings.TrimSpace(r.FormValue("target_format")) == "" {
			s.writeError(w, r, classMissingRequired.wrap(err))
			return
		}
		s.writeError(w, r, classUnsupportedFormat.wrap(err))
		return
	}

	delivery, err := models.ParseDownloadFlag(r.FormValue("download"))
	if err != nil {
		s.writeError(w, r, classInvalidDownloadFlag.wrap(err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, classMissingFile.errorf("file is required"))
		return
	}
	defer file.Close()

	if header.Size == 0 {
		s.writeError(w, r, classEmptyFile.errorf("file is empty"))
		return
	}
	if header.Size > s.maxUploadBytes {
		s.writeError(w, r, classRequestTooLarge.errorf("request body too large"))
		return
	}

	result := s.conversions.Convert(r.Context(), models.ConversionRequest{
		Source:       file,
		SourceName:   header.Filename,
		TargetFormat: format,
		Delivery:     delivery,
	})
	if !result.Success {
		s.writeError(w, r, conversionError(result))
		return
	}

	if delivery == models.DeliveryInline {
		s.serveArtifact(w, r, result.Artifact.Name)
		return
	}

	s.writeJSON(w, http.StatusOK, api.ConvertResponse{
		Status:      "ok",
		OutputPath:  result.Artifact.Name,
		DownloadURL: s.downloadURL(r, result.Artifact.Name),
		Filename:    result.Artifact.Name,
		Format:      string(result.Artifact.Format),
		SizeBytes:   result.Artifact.SizeBytes,
	})
}

func classifyMultipartError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) || strings.Contains(strings.ToLower(err.Error()), "request body too large") {
		return classRequestTooLarge.errorf("request body too large")
	}
	if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, multipart.ErrMessageTooLarge) {
		return classInvalidArgument.wrap(err)
	}
	return classInvalidArgument.errorf("invalid multipart form: %w", err)
}

// downloadURL builds an absolute retrieval URL for name. A configured public
// base wins; otherwise the scheme and host come from the request.
func (s *Server) downloadURL(r *http.Request, name string) string {
	path := "/download/" + url.PathEscape(name)
	if s.publicBaseURL != "" {
		return s.publicBaseURL + path
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := firstHeaderValue(r.Header.Get("X-Forwarded-Proto")); proto == "http" || proto == "https" {
		scheme = proto
	}
	host := firstHeaderValue(r.Header.Get("X-Forwarded-Host"))
	if host == "" {
		host = r.Host
	}
	return (&url.URL{Scheme: scheme, Host: host}).String() + path
}

func firstHeaderValue(raw string) string {
	if idx := strings.IndexByte(raw, ','); idx >= 0 {
		raw = raw[:idx]
	}
	return strings.ToLower(strings.TrimSpace(raw))
}
