package server

import (
	"net/http"

	"github.com/jrsteele09/openleaf-portal/guard"
	errs "github.com/jrsteele09/openleaf-portal/internal/errors"
	"github.com/jrsteele09/openleaf-portal/session"
	"github.com/rs/zerolog/log"
)

func (s *Server) OAuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// r.FormValue works for both query params and POST form data
		state := r.FormValue("state")
		code := r.FormValue("code")
		errorParam := r.FormValue("error")
		errorDesc := r.FormValue("error_description")

		if errorParam != "" {
			log.Warn().Str("error", errorParam).Str("description", errorDesc).Msg("Identity provider refused the login")
			s.renderError(w, r, http.StatusBadRequest, "Sign-in was not completed. Please try again.", RouteLogin)
			return
		}

		if code == "" || state == "" {
			s.renderError(w, r, http.StatusBadRequest, "Missing code or state parameter.", RouteLogin)
			return
		}

		authState, err := s.authState.Take(state)
		if err != nil {
			log.Warn().Err(err).Msg("Callback with unknown login state")
			s.renderError(w, r, http.StatusBadRequest, "This sign-in attempt has expired. Please sign in again.", RouteLogin)
			return
		}
		retry := guard.LoginLocation(authState.ReturnURL)

		// A fresh login replaces whatever this browser had before.
		if cookie, err := r.Cookie(loggedInSessionID); err == nil && cookie.Value != "" {
			s.dropSession(cookie.Value)
		}

		sess, err := s.startSession(r.Context(), s.identity.WithAuthorizationCode(code, authState.CodeVerifier, authState.Nonce))
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize session")
			switch {
			case errs.Is(err, errs.ErrNonceMismatch):
				s.renderError(w, r, http.StatusBadRequest, "Sign-in could not be verified. Please try again.", retry)
			case errs.Is(err, session.ErrInitialization):
				s.renderError(w, r, http.StatusBadGateway, "We could not sign you in right now.", retry)
			default:
				s.renderError(w, r, http.StatusInternalServerError, "We could not sign you in right now.", retry)
			}
			return
		}

		s.SetLoginSessionCookie(w, sess.ID, r)
		log.Info().Str("session_id", sess.ID).Str("sub", sess.Subject()).Msg("Portal session started")

		redirectSuccess(w, r, s.afterLogin(sess, authState.ReturnURL))
	}
}
