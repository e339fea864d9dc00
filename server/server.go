package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/facebookgo/clock"
	"github.com/jrsteele09/openleaf-portal/guard"
	"github.com/jrsteele09/openleaf-portal/internal/config"
	"github.com/jrsteele09/openleaf-portal/roles"
	"github.com/jrsteele09/openleaf-portal/server/authflowrepo"
	"github.com/jrsteele09/openleaf-portal/server/loginsession"
	"github.com/jrsteele09/openleaf-portal/session"
	"github.com/rs/zerolog/log"
)

// IdentityProvider is the part of the identity provider the portal drives directly.
// *keycloak.Client satisfies it.
type IdentityProvider interface {
	ClientID() string
	AuthCodeURL(state, verifier, nonce string) string
	WithAuthorizationCode(code, verifier, nonce string) session.IdentityProvider
	VerifyLogoutToken(ctx context.Context, rawToken string) (string, error)
}

type Server struct {
	env           string
	mux           *http.ServeMux
	routes        []string
	config        config.Config
	identity      IdentityProvider
	guard         *guard.Guard
	resolver      roles.Resolver
	loginSessions loginsession.Repo
	authState     authflowrepo.Repo
	loginLimiter  *rateLimiter
	clock         clock.Clock
	backendClient *http.Client
	pages         *pageTemplates

	// ctx outlives requests; refresh loops and the janitor run under it.
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Server)

// WithClock drives refresh loops, login state expiry and idle timeouts from c.
func WithClock(c clock.Clock) Option {
	return func(s *Server) {
		s.clock = c
	}
}

// WithBackendHTTPClient sets the transport used for backend calls.
func WithBackendHTTPClient(httpClient *http.Client) Option {
	return func(s *Server) {
		s.backendClient = httpClient
	}
}

func New(cfg config.Config, identity IdentityProvider, loginSessionRepo loginsession.Repo, authStateRepo authflowrepo.Repo, options ...Option) *Server {
	resolver := roles.NewResolver(identity.ClientID())
	s := &Server{
		env:           cfg.GetEnv(),
		mux:           http.NewServeMux(),
		config:        cfg,
		identity:      identity,
		guard:         guard.New(guard.DefaultPolicy(), resolver),
		resolver:      resolver,
		loginSessions: loginSessionRepo,
		authState:     authStateRepo,
		clock:         clock.New(),
		pages:         mustParsePageTemplates(),
		done:          make(chan struct{}),
	}
	for _, opt := range options {
		opt(s)
	}

	requests, window := cfg.GetLoginRateLimit()
	s.loginLimiter = newRateLimiter(requests, window, s.clock, IPKeyExtractor(ParseTrustedProxies(cfg.GetTrustedProxies())))

	s.ctx, s.cancel = context.WithCancel(context.Background())
	go s.janitor(s.ctx, cfg.GetRefreshInterval())

	s.initRoutes()
	s.logRoutes()

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Close stops the janitor and every live refresh loop. Identity-provider sessions are left
// alone; users sign in again once the portal is back.
func (s *Server) Close() {
	s.cancel()
	<-s.done

	sessions := s.loginSessions.Drain()
	for _, sess := range sessions {
		sess.Controller.Stop()
	}
	log.Info().Int("sessions", len(sessions)).Msg("Portal sessions closed")
}

// janitor drops ended and idle sessions and expired login flows once per interval.
func (s *Server) janitor(ctx context.Context, interval time.Duration) {
	defer close(s.done)
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := s.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one janitor pass.
func (s *Server) Sweep(ctx context.Context) {
	now := s.clock.Now()
	idleCutoff := now.Add(-s.config.GetIdleTimeout())

	for _, sess := range s.loginSessions.All() {
		switch {
		case !sess.Controller.Authenticated():
			s.dropSession(sess.ID)
			log.Debug().Str("session_id", sess.ID).Msg("Dropped ended session")
		case sess.LastSeen().Before(idleCutoff):
			if _, err := s.loginSessions.Delete(sess.ID); err == nil {
				sess.Controller.Logout(ctx)
				log.Info().Str("session_id", sess.ID).Msg("Logged out idle session")
			}
		}
	}

	if pruned := s.authState.Prune(now.Add(-s.config.GetLoginStateTimeout())); pruned > 0 {
		log.Debug().Int("pruned", pruned).Msg("Pruned expired login flows")
	}
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Debug().Msgf("[%-19s] %s", colourMethod(method), path)
}

func colourMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		return color + paddedMethod + ResetColor
	}
	return Gray + paddedMethod + ResetColor
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
