package server

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/jrsteele09/openleaf-portal/apiclient"
	"github.com/jrsteele09/openleaf-portal/backend"
	"github.com/jrsteele09/openleaf-portal/guard"
	"github.com/jrsteele09/openleaf-portal/server/authflowrepo"
	"github.com/jrsteele09/openleaf-portal/server/loginsession"
	"github.com/jrsteele09/openleaf-portal/session"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// LoginHandler is the login boundary: it remembers where the user was going and sends the
// browser to the identity provider with a fresh state, nonce and PKCE verifier.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		returnTo := safeReturnPath(r.URL.Query().Get(guard.ReturnParam))

		if sess := s.currentSession(w, r); sess != nil {
			redirectSuccess(w, r, s.afterLogin(sess, returnTo))
			return
		}

		state := uuid.NewString()
		nonce := uuid.NewString()
		verifier := oauth2.GenerateVerifier()

		err := s.authState.Upsert(state, &authflowrepo.AuthFlowState{
			CodeVerifier: verifier,
			Nonce:        nonce,
			ReturnURL:    returnTo,
			CreatedAt:    s.clock.Now(),
		})
		if err != nil {
			log.Error().Err(err).Msg("Failed to store login state")
			s.renderError(w, r, http.StatusInternalServerError, "We could not start signing you in.", r.URL.RequestURI())
			return
		}

		http.Redirect(w, r, s.identity.AuthCodeURL(state, verifier, nonce), http.StatusFound)
	}
}

// afterLogin resolves where a signed-in user goes: the remembered path, or their landing view.
func (s *Server) afterLogin(sess *loginsession.Session, returnTo string) string {
	if returnTo == "" || returnTo == RouteRoot {
		return s.guard.DefaultLanding(sess.Controller.Claims())
	}
	return returnTo
}

// startSession builds the application instance for one browser and establishes its session
// through idp. Nothing is stored unless initialization succeeds.
func (s *Server) startSession(ctx context.Context, idp session.IdentityProvider) (*loginsession.Session, error) {
	apiOptions := []apiclient.Option{}
	if s.backendClient != nil {
		apiOptions = append(apiOptions, apiclient.WithHTTPClient(s.backendClient))
	}
	apiOptions = append(apiOptions, apiclient.WithTimeout(s.config.GetBackendTimeout()))
	api := apiclient.New(apiOptions...)
	services := backend.New(api, s.config)

	ctrl := session.NewController(idp,
		session.WithClock(s.clock),
		session.WithRefreshInterval(s.config.GetRefreshInterval()),
		session.WithMinValidity(s.config.GetMinTokenValidity()),
		session.WithFailureLimit(s.config.GetRefreshFailureLimit()),
		session.WithDecoratorRegistry(api),
		session.WithRegistrar(services.Users),
		session.WithLogoutLocation(s.config.GetLogoutLocation()),
	)
	if _, err := ctrl.Initialize(ctx); err != nil {
		return nil, err
	}

	sess := loginsession.New(uuid.NewString(), ctrl, services, s.clock.Now())
	if err := s.loginSessions.Upsert(sess.ID, sess); err != nil {
		ctrl.Logout(ctx)
		return nil, err
	}
	ctrl.Start(s.ctx)
	return sess, nil
}
