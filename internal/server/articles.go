package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"helpdeskai/internal/app"
	"helpdeskai/pkg/auth"
)

func (s *Server) handleArticles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit
	items, total, err := s.app.ListArticles(strings.TrimSpace(q.Get("category")), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

func (s *Server) handleArticleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	categories, err := s.app.ListArticleCategories()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

// /api/articles/{id}
func (s *Server) handleArticleByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/articles/")
	if id == "" || strings.Contains(id, "/") {
		notFound(w, "not found")
		return
	}
	article, ok, err := s.app.GetArticle(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		notFound(w, "article not found")
		return
	}
	writeJSON(w, http.StatusOK, article)
}

func (s *Server) handleUserArticle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		UserID   string `json:"userId"`
		Category string `json:"category"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	article, err := s.app.GenerateUserArticle(r.Context(), req.UserID, strings.TrimSpace(req.Category))
	if err != nil {
		if errors.Is(err, app.ErrUnknownCategory) {
			writeError(w, http.StatusBadRequest, "unknown category")
			return
		}
		writeError(w, http.StatusInternalServerError, "article generation failed")
		return
	}
	writeJSON(w, http.StatusCreated, article)
}

func (s *Server) handleGenerateArticle(w http.ResponseWriter, r *http.Request, _ auth.Identity) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.scheduler == nil {
		writeError(w, http.StatusInternalServerError, "scheduler not configured")
		return
	}
	article, err := s.scheduler.RunOnce(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "article generation failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "article generated",
		"articleId": article.ID,
		"category":  article.Category,
	})
}
