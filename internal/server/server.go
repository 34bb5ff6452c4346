package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"helpdeskai/internal/app"
	"helpdeskai/internal/ratelimit"
	"helpdeskai/internal/scheduler"
	"helpdeskai/internal/util"
	"helpdeskai/pkg/auth"
	"helpdeskai/pkg/domain"
	"helpdeskai/pkg/store"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App          *app.App
	Sessions     *auth.SessionManager
	Credentials  auth.CredentialVerifier
	Scheduler    *scheduler.Scheduler
	LoginLimiter *ratelimit.FixedWindowLimiter
}

// Server exposes the help-desk HTTP API.
type Server struct {
	app          *app.App
	sessions     *auth.SessionManager
	credentials  auth.CredentialVerifier
	scheduler    *scheduler.Scheduler
	loginLimiter *ratelimit.FixedWindowLimiter
	mux          *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session manager required")
	}
	s := &Server{
		app:          cfg.App,
		sessions:     cfg.Sessions,
		credentials:  cfg.Credentials,
		scheduler:    cfg.Scheduler,
		loginLimiter: cfg.LoginLimiter,
		mux:          http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler with the shared middleware applied.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("helpdesk", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// chat + conversations
	s.mux.HandleFunc("/api/chat", s.handleChat)
	s.mux.HandleFunc("/api/conversations", s.handleConversations)
	s.mux.HandleFunc("/api/conversations/", s.handleConversationByID)

	// devices
	s.mux.HandleFunc("/api/device", s.handleDevice)

	// tickets
	s.mux.HandleFunc("/api/tickets", s.handleTickets)
	s.mux.HandleFunc("/api/tickets/", s.handleTicketByID)

	// knowledge base
	s.mux.HandleFunc("/api/articles", s.handleArticles)
	s.mux.HandleFunc("/api/articles/categories", s.handleArticleCategories)
	s.mux.HandleFunc("/api/articles/user-specific", s.handleUserArticle)
	s.mux.HandleFunc("/api/articles/", s.handleArticleByID)

	// per-user data export
	s.mux.Handle("/api/user-data", s.authenticated(s.handleUserData))

	// sessions + admin
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.Handle("/api/auth/logout", s.authenticated(s.handleLogout))
	s.mux.Handle("/api/admin/articles/generate", s.adminOnly(s.handleGenerateArticle))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type authHandler func(http.ResponseWriter, *http.Request, auth.Identity)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		identity, err := s.sessions.Validate(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, identity)
	})
}

func (s *Server) adminOnly(next authHandler) http.Handler {
	return s.authenticated(func(w http.ResponseWriter, r *http.Request, identity auth.Identity) {
		if identity.Role != domain.RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r, identity)
	})
}

// writeStoreError maps the store sentinels onto the API's status codes:
// state conflicts are 403, missing rows are 404.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrConversationClosed):
		writeError(w, http.StatusForbidden, "conversation closed")
	case errors.Is(err, store.ErrMessageLimit):
		writeError(w, http.StatusForbidden, "message limit exceeded")
	case errors.Is(err, store.ErrConversationNotFound):
		writeError(w, http.StatusNotFound, "conversation not found")
	case errors.Is(err, app.ErrDeviceNotFound):
		writeError(w, http.StatusNotFound, "device not found")
	case errors.Is(err, app.ErrTicketNotFound):
		writeError(w, http.StatusNotFound, "ticket not found")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusNotFound, msg)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      errorCodeFor(status, msg),
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

func errorCodeFor(status int, msg string) string {
	message := strings.ToLower(strings.TrimSpace(msg))
	switch {
	case message == "unauthorized":
		return "AUTH_INVALID_TOKEN"
	case message == "invalid credentials":
		return "AUTH_INVALID_CREDENTIALS"
	case message == "too many login attempts":
		return "AUTH_RATE_LIMITED"
	case message == "forbidden":
		return "AUTH_FORBIDDEN"
	case message == "conversation closed":
		return "CHAT_CONVERSATION_CLOSED"
	case message == "message limit exceeded":
		return "CHAT_MESSAGE_LIMIT"
	case message == "conversation not found":
		return "CHAT_CONVERSATION_NOT_FOUND"
	case message == "device not found":
		return "DEVICE_NOT_FOUND"
	case message == "ticket not found":
		return "TICKET_NOT_FOUND"
	case message == "article not found":
		return "ARTICLE_NOT_FOUND"
	case message == "invalid json body":
		return "REQUEST_INVALID_BODY"
	case message == "method not allowed":
		return "SYSTEM_METHOD_NOT_ALLOWED"
	}

	switch status {
	case http.StatusBadRequest:
		return "REQUEST_INVALID"
	case http.StatusUnauthorized:
		return "AUTH_INVALID_TOKEN"
	case http.StatusForbidden:
		return "AUTH_FORBIDDEN"
	case http.StatusNotFound:
		return "SYSTEM_NOT_FOUND"
	case http.StatusTooManyRequests:
		return "AUTH_RATE_LIMITED"
	case http.StatusMethodNotAllowed:
		return "SYSTEM_METHOD_NOT_ALLOWED"
	default:
		if status >= http.StatusInternalServerError {
			return "SYSTEM_INTERNAL_ERROR"
		}
		return "REQUEST_ERROR"
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}
