package server

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/openleaf-portal/roles"
)

// SessionInfo is a "likely authenticated" hint for scripts. It is never used for
// authorization; the guard decides every navigation from the live session.
type SessionInfo struct {
	Authenticated bool         `json:"authenticated"`
	UserID        string       `json:"userId,omitempty"`
	Username      string       `json:"username,omitempty"`
	Roles         []roles.Role `json:"roles"`
	Landing       string       `json:"landing,omitempty"`
}

func (s *Server) SessionInfoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info := SessionInfo{Roles: []roles.Role{}}

		if sess := s.currentSession(w, r); sess != nil {
			if claims := sess.Controller.Claims(); claims != nil {
				userID, _ := roles.UserID(claims)
				info = SessionInfo{
					Authenticated: true,
					UserID:        userID,
					Username:      claims.PreferredUsername,
					Roles:         append([]roles.Role{}, s.resolver.Roles(claims)...),
					Landing:       s.guard.DefaultLanding(claims),
				}
			}
		}

		writeJSON(w, http.StatusOK, info)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
