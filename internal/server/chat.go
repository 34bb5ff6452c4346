package server

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"

	"helpdeskai/internal/app"
)

type chatRequest struct {
	UserID           string `json:"userId"`
	Message          string `json:"message"`
	Image            string `json:"image,omitempty"`
	ImageContentType string `json:"imageContentType,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req chatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "userId and message are required")
		return
	}
	var image *app.ImageUpload
	if req.Image != "" {
		data, err := base64.StdEncoding.DecodeString(req.Image)
		if err != nil {
			writeError(w, http.StatusBadRequest, "image must be base64 encoded")
			return
		}
		image = &app.ImageUpload{Data: data, ContentType: req.ImageContentType}
	}
	result, err := s.app.ProcessMessage(r.Context(), req.UserID, req.Message, image)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if result.Filtered {
		writeJSON(w, http.StatusOK, map[string]any{
			"response": result.Response,
			"filtered": true,
		})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		userID := strings.TrimSpace(r.URL.Query().Get("userId"))
		if userID == "" {
			writeError(w, http.StatusBadRequest, "userId is required")
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		items, err := s.app.ListConversations(userID, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": items,
			"count": len(items),
		})
	case http.MethodPost:
		var req struct {
			UserID string `json:"userId"`
			Title  string `json:"title"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		conversation, err := s.app.CreateConversation(req.UserID, req.Title)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, conversation)
	default:
		methodNotAllowed(w)
	}
}

// /api/conversations/{id}/close or /api/conversations/{id}/messages
func (s *Server) handleConversationByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/conversations/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" || len(parts) != 2 {
		notFound(w, "not found")
		return
	}
	switch parts[1] {
	case "close":
		s.handleCloseConversation(w, r, id)
	case "messages":
		s.handleConversationMessages(w, r, id)
	default:
		notFound(w, "not found")
	}
}

func (s *Server) handleCloseConversation(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		UserID string `json:"userId"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	conversation, err := s.app.CloseConversation(id, req.UserID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conversation)
}

func (s *Server) handleConversationMessages(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		msgs, err := s.app.ListMessages(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": msgs,
			"count": len(msgs),
		})
	case http.MethodPost:
		var req struct {
			UserID  string `json:"userId"`
			Message string `json:"message"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.Message) == "" {
			writeError(w, http.StatusBadRequest, "userId and message are required")
			return
		}
		userMessage, aiMessage, err := s.app.AppendToConversation(r.Context(), id, req.UserID, req.Message)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"userMessage": userMessage,
			"aiMessage":   aiMessage,
		})
	default:
		methodNotAllowed(w)
	}
}
