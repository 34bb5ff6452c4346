package server

import (
	"net/http"
	"strings"
)

type deviceRequest struct {
	UserID string `json:"userId"`
	Brand  string `json:"brand"`
	Model  string `json:"model"`
}

func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		userID := strings.TrimSpace(r.URL.Query().Get("userId"))
		if userID == "" {
			writeError(w, http.StatusBadRequest, "userId is required")
			return
		}
		device, err := s.app.GetDevice(userID)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, device)
	case http.MethodPost:
		var req deviceRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		device, created, err := s.app.RegisterDevice(req.UserID, req.Brand, req.Model)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		writeJSON(w, status, device)
	case http.MethodPut:
		var req deviceRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.UserID) == "" {
			writeError(w, http.StatusBadRequest, "userId is required")
			return
		}
		device, err := s.app.UpdateDevice(req.UserID, req.Brand, req.Model)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, device)
	default:
		methodNotAllowed(w)
	}
}
