package server

import (
	"encoding/json"
	"net/http"

	"audioconv/internal/api"
)

// statusClientClosedRequest is logged when the client goes away mid-request.
const statusClientClosedRequest = 499

// writeError logs err at a level matching its class and writes the JSON error
// body. Server-side failures are answered with the class's public message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	class := classOf(err)
	logger := requestLogger(r.Context(), s.log())
	fields := []any{
		"status", class.status,
		"code", class.code,
		"error_code", class.errCode,
		"error", err,
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
	}

	message := err.Error()
	switch {
	case class.status == statusClientClosedRequest:
		// Nobody is listening; the status only reaches the request log.
		logger.Info("request canceled by client", fields...)
		w.WriteHeader(statusClientClosedRequest)
		return
	case class.status >= 500:
		logger.Error("request error", fields...)
		message = class.public
	case class.status == http.StatusForbidden, class.status == http.StatusTooManyRequests:
		logger.Warn("request rejected", fields...)
	default:
		logger.Debug("request rejected", fields...)
	}

	s.writeJSON(w, class.status, api.ErrorResponse{Error: message, Code: class.code, ErrorCode: class.errCode})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("write json response", "status", status, "error", err)
	}
}
