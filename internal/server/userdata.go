package server

import (
	"net/http"
	"strings"

	"helpdeskai/pkg/auth"
	"helpdeskai/pkg/domain"
)

// handleUserData exports everything stored for one user. Callers may only
// export their own data unless they hold the admin role.
func (s *Server) handleUserData(w http.ResponseWriter, r *http.Request, identity auth.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	if identity.UserID != userID && identity.Role != domain.RoleAdmin {
		writeError(w, http.StatusForbidden, "you do not have permission to access this data")
		return
	}
	export, err := s.app.UserData(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, export)
}
