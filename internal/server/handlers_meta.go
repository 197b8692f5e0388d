package server

import (
	"net/http"

	"audioconv/internal/api"
)

const serviceName = "Audio Converter"

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, api.ServiceResponse{Status: "ok", Service: serviceName})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, api.HealthResponse{Status: "healthy"})
}
