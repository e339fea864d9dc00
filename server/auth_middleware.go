package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/jrsteele09/openleaf-portal/guard"
	"github.com/jrsteele09/openleaf-portal/server/loginsession"
	"github.com/rs/zerolog/log"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeySession stores the signed-in *loginsession.Session, if any
	ContextKeySession ContextKey = "session"
	// ContextKeyDecision stores the guard.Decision that let the request through
	ContextKeyDecision ContextKey = "decision"
)

func sessionFromContext(ctx context.Context) *loginsession.Session {
	sess, _ := ctx.Value(ContextKeySession).(*loginsession.Session)
	return sess
}

func decisionFromContext(ctx context.Context) guard.Decision {
	decision, _ := ctx.Value(ContextKeyDecision).(guard.Decision)
	return decision
}

// currentSession resolves the session cookie to a live session. A session whose controller
// has lost authentication is dropped and its cookie cleared.
func (s *Server) currentSession(w http.ResponseWriter, r *http.Request) *loginsession.Session {
	cookie, err := r.Cookie(loggedInSessionID)
	if err != nil || cookie.Value == "" {
		return nil
	}

	sess, err := s.loginSessions.Get(cookie.Value)
	if err != nil {
		s.ClearLoginSessionCookie(w, r)
		return nil
	}
	if !sess.Controller.Authenticated() {
		s.dropSession(sess.ID)
		s.ClearLoginSessionCookie(w, r)
		log.Info().Str("session_id", sess.ID).Msg("Session ended by the refresh loop")
		return nil
	}

	sess.Touch(s.clock.Now())
	return sess
}

// dropSession forgets a session and stops its refresh loop.
func (s *Server) dropSession(sessionID string) {
	if sess, err := s.loginSessions.Delete(sessionID); err == nil {
		sess.Controller.Stop()
	}
}

// GuardMiddleware lets a request through only when the route guard renders its path.
func (s *Server) GuardMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := s.currentSession(w, r)

		var view guard.View
		if sess != nil {
			view = sess.Controller
		}
		decision := s.guard.EvaluateRoute(view, routeOf(r), r.URL.RequestURI())

		switch decision.Action {
		case guard.Render:
			ctx := context.WithValue(r.Context(), ContextKeySession, sess)
			ctx = context.WithValue(ctx, ContextKeyDecision, decision)
			next(w, r.WithContext(ctx))
		case guard.RedirectLogin:
			location := decision.Location
			if r.Method != http.MethodGet {
				// The login boundary returns with a GET, which a form target cannot serve.
				location = guard.LoginLocation(RouteRoot)
			}
			http.Redirect(w, r, location, http.StatusSeeOther)
		default:
			log.Debug().
				Str("path", r.URL.Path).
				Str("action", decision.Action.String()).
				Str("role", string(decision.Role)).
				Msg("Route guard redirect")
			http.Redirect(w, r, decision.Location, http.StatusSeeOther)
		}
	}
}

// SignedInMiddleware refuses to run a handler that needs a session when none reached it.
func (s *Server) SignedInMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sessionFromContext(r.Context()) == nil {
			log.Warn().Str("path", r.URL.Path).Str("pattern", r.Pattern).Msg("Protected handler reached without a session")
			location := guard.LoginLocation(RouteRoot)
			if r.Method == http.MethodGet {
				location = guard.LoginLocation(r.URL.RequestURI())
			}
			http.Redirect(w, r, location, http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}

// routeOf is the path of the mux pattern that matched r, or the escaped request path when r
// was not routed by a pattern.
func routeOf(r *http.Request) string {
	if r.Pattern == "" {
		return r.URL.EscapedPath()
	}
	_, route, found := strings.Cut(r.Pattern, " ")
	if !found {
		route = r.Pattern
	}
	if i := strings.Index(route, "/"); i > 0 {
		route = route[i:]
	}
	return route
}
