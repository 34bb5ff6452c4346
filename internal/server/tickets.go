package server

import (
	"net/http"
	"strings"

	"helpdeskai/pkg/domain"
)

func (s *Server) handleTickets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		userID := strings.TrimSpace(r.URL.Query().Get("userId"))
		if userID == "" {
			writeError(w, http.StatusBadRequest, "userId is required")
			return
		}
		tickets, err := s.app.ListTickets(userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": tickets,
			"count": len(tickets),
		})
	case http.MethodPost:
		var req struct {
			UserID      string `json:"userId"`
			Title       string `json:"title"`
			Description string `json:"description"`
			Priority    string `json:"priority"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		ticket, err := s.app.CreateTicket(req.UserID, req.Title, req.Description, req.Priority)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, ticket)
	default:
		methodNotAllowed(w)
	}
}

// /api/tickets/{id}
func (s *Server) handleTicketByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/tickets/")
	if id == "" || strings.Contains(id, "/") {
		notFound(w, "not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		userID := strings.TrimSpace(r.URL.Query().Get("userId"))
		if userID == "" {
			writeError(w, http.StatusBadRequest, "userId is required")
			return
		}
		ticket, err := s.app.GetTicket(id, userID)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ticket)
	case http.MethodPatch:
		var req struct {
			UserID      string `json:"userId"`
			Status      string `json:"status"`
			Priority    string `json:"priority"`
			Description string `json:"description"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.UserID) == "" {
			writeError(w, http.StatusBadRequest, "userId is required")
			return
		}
		status, ok := parseTicketStatus(req.Status)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		ticket, err := s.app.UpdateTicket(id, req.UserID, status, req.Priority, req.Description)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ticket)
	default:
		methodNotAllowed(w)
	}
}

// parseTicketStatus accepts an empty string, meaning "leave unchanged".
func parseTicketStatus(status string) (domain.TicketStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "":
		return "", true
	case string(domain.TicketOpen):
		return domain.TicketOpen, true
	case string(domain.TicketInProgress):
		return domain.TicketInProgress, true
	case string(domain.TicketClosed):
		return domain.TicketClosed, true
	default:
		return "", false
	}
}
