package server

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		location := s.config.GetLogoutLocation()

		if cookie, err := r.Cookie(loggedInSessionID); err == nil && cookie.Value != "" {
			if sess, err := s.loginSessions.Delete(cookie.Value); err == nil {
				location = sess.Controller.Logout(r.Context())
				log.Info().Str("session_id", sess.ID).Msg("Portal session logged out")
			}
		}

		s.ClearLoginSessionCookie(w, r)
		redirectSuccess(w, r, location)
	}
}

// BackchannelLogoutHandler receives the identity provider's logout token and ends every
// portal session of that user.
func (s *Server) BackchannelLogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawToken := r.PostFormValue("logout_token")
		if rawToken == "" {
			http.Error(w, "missing logout_token", http.StatusBadRequest)
			return
		}

		subject, err := s.identity.VerifyLogoutToken(r.Context(), rawToken)
		if err != nil {
			log.Warn().Err(err).Msg("Rejected back-channel logout token")
			http.Error(w, "invalid logout_token", http.StatusBadRequest)
			return
		}

		ended := s.expireSubject(subject, "")
		log.Info().Str("sub", subject).Int("sessions", ended).Msg("Back-channel logout")
		w.WriteHeader(http.StatusOK)
	}
}

// expireSubject ends every portal session of subject except the one with ID except, without
// calling the identity provider. It returns how many sessions ended.
func (s *Server) expireSubject(subject, except string) int {
	ended := 0
	for _, sess := range s.loginSessions.BySubject(subject) {
		if sess.ID == except {
			continue
		}
		if _, err := s.loginSessions.Delete(sess.ID); err != nil {
			continue
		}
		sess.Controller.Expire()
		ended++
	}
	return ended
}

func (s *Server) UnauthorizedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderUnauthorized(w, r, decisionFromContext(r.Context()))
	}
}

// IndexHandler is only reached if the guard renders root, which it never does for a known
// session state; fall back to the login boundary.
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
	}
}
