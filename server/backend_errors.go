package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/jrsteele09/openleaf-portal/apiclient"
	"github.com/jrsteele09/openleaf-portal/backend"
	"github.com/jrsteele09/openleaf-portal/guard"
	errs "github.com/jrsteele09/openleaf-portal/internal/errors"
	"github.com/jrsteele09/openleaf-portal/server/loginsession"
	"github.com/rs/zerolog/log"
)

// handleBackendError turns a failed backend call into a response. back is where the user
// retries from; conflict is shown when the backend answers 409.
func (s *Server) handleBackendError(w http.ResponseWriter, r *http.Request, sess *loginsession.Session, err error, back, conflict string) {
	var statusErr *apiclient.StatusError
	switch {
	case errs.Is(err, apiclient.ErrStaleAuthorization):
		s.revalidate(w, r, sess, back)
	case errs.Is(err, backend.ErrInvalidPayload):
		redirectWithError(w, r, back, validationMessage(err))
	case errs.Is(err, apiclient.ErrNotFound):
		s.renderError(w, r, http.StatusNotFound, "We could not find what you were looking for.", back)
	case errs.As(err, &statusErr) && statusErr.IsConflict() && conflict != "":
		redirectWithError(w, r, back, conflict)
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Str("session_id", sess.ID).Msg("Backend request failed")
		s.renderError(w, r, http.StatusBadGateway, "Something went wrong while talking to OpenLeaf. Please try again.", back)
	}
}

// revalidate handles a backend 401/403: the claims may be stale, so rotate the token and let
// the guard decide again on fresh claims. When fresh claims still allow the page, the refusal
// is about the resource itself and is shown as such instead of looping.
func (s *Server) revalidate(w http.ResponseWriter, r *http.Request, sess *loginsession.Session, back string) {
	if err := sess.Controller.Revalidate(r.Context()); err != nil {
		log.Warn().Err(err).Str("session_id", sess.ID).Msg("Revalidation after backend refusal failed")
	}

	decision := s.guard.Evaluate(sess.Controller, back)
	if decision.Action == guard.Render {
		s.renderError(w, r, http.StatusForbidden, "You do not have access to this.", decision.Landing)
		return
	}
	if decision.Action == guard.RedirectLogin {
		s.dropSession(sess.ID)
		s.ClearLoginSessionCookie(w, r)
	}
	http.Redirect(w, r, decision.Location, http.StatusSeeOther)
}

// validationMessage strips the sentinel text from a payload validation error.
func validationMessage(err error) string {
	msg := err.Error()
	sentinel := backend.ErrInvalidPayload.Error()
	if i := strings.Index(msg, sentinel+": "); i >= 0 {
		return msg[i+len(sentinel)+2:]
	}
	return strings.TrimSuffix(msg, ": "+sentinel)
}

// pathKey returns a path value that names one backend resource, answering 404 when the decoded
// value would span more than one segment.
func (s *Server) pathKey(w http.ResponseWriter, r *http.Request, name, back string) (string, bool) {
	value := r.PathValue(name)
	if value == "" || value == "." || value == ".." || strings.ContainsAny(value, "/\\") {
		s.renderError(w, r, http.StatusNotFound, "We could not find what you were looking for.", back)
		return "", false
	}
	return value, true
}

// pathID parses a numeric path value, answering 404 when it is not one.
func (s *Server) pathID(w http.ResponseWriter, r *http.Request, name, back string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		s.renderError(w, r, http.StatusNotFound, "We could not find what you were looking for.", back)
		return 0, false
	}
	return id, true
}
