// Package session owns the identity-provider session of one application instance.
//
// A Controller establishes the session, keeps its Token Store in step with the current access
// token, rotates the token on a fixed interval and tears everything down on logout. All state
// transitions happen under one mutex; the Token Store is only ever written from here.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/facebookgo/clock"
	"github.com/jrsteele09/openleaf-portal/apiclient"
	errs "github.com/jrsteele09/openleaf-portal/internal/errors"
	"github.com/jrsteele09/openleaf-portal/token"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	defaultRefreshInterval = time.Minute
	defaultMinValidity     = 30 * time.Second
	defaultFailureLimit    = 1
	defaultLogoutLocation  = "/"

	flightInitialize = "initialize"
	flightRefresh    = "refresh"
)

// Controller manages exactly one authenticated session at a time.
type Controller struct {
	idp            IdentityProvider
	store          *token.Store
	registry       DecoratorRegistry
	registrar      Registrar
	clock          clock.Clock
	interval       time.Duration
	minValidity    time.Duration
	failureLimit   int
	logoutLocation string

	mu            sync.Mutex
	current       *oauth2.Token
	authenticated bool
	loggedOut     bool
	failures      int
	decoratorID   apiclient.DecoratorID
	decorated     bool

	flights    singleflight.Group
	refreshing atomic.Bool

	loopMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock, typically with clock.NewMock() in tests.
func WithClock(c clock.Clock) Option {
	return func(ctrl *Controller) {
		ctrl.clock = c
	}
}

func WithRefreshInterval(interval time.Duration) Option {
	return func(c *Controller) {
		c.interval = interval
	}
}

// WithMinValidity sets the remaining token lifetime below which a tick rotates the token.
func WithMinValidity(minValidity time.Duration) Option {
	return func(c *Controller) {
		c.minValidity = minValidity
	}
}

// WithFailureLimit sets how many consecutive refresh failures end the session.
func WithFailureLimit(limit int) Option {
	return func(c *Controller) {
		if limit > 0 {
			c.failureLimit = limit
		}
	}
}

// WithDecoratorRegistry installs the bearer decorator on registry while authenticated.
func WithDecoratorRegistry(registry DecoratorRegistry) Option {
	return func(c *Controller) {
		c.registry = registry
	}
}

// WithRegistrar registers the user with the backend after each successful initialization.
func WithRegistrar(registrar Registrar) Option {
	return func(c *Controller) {
		c.registrar = registrar
	}
}

// WithLogoutLocation sets the origin-relative location returned by Logout.
func WithLogoutLocation(location string) Option {
	return func(c *Controller) {
		c.logoutLocation = location
	}
}

// WithStore uses store instead of a fresh one.
func WithStore(store *token.Store) Option {
	return func(c *Controller) {
		c.store = store
	}
}

func NewController(idp IdentityProvider, options ...Option) *Controller {
	c := &Controller{
		idp:            idp,
		store:          token.NewStore(),
		clock:          clock.New(),
		interval:       defaultRefreshInterval,
		minValidity:    defaultMinValidity,
		failureLimit:   defaultFailureLimit,
		logoutLocation: defaultLogoutLocation,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Store returns the Token Store owned by this controller.
func (c *Controller) Store() *token.Store {
	return c.store
}

// Authenticated reports whether the session is live.
func (c *Controller) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

// Claims returns the current claims, or nil when not authenticated.
func (c *Controller) Claims() *token.Claims {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.authenticated {
		return nil
	}
	return c.store.Claims()
}

// Session returns a snapshot of the session. The zero Session means unauthenticated.
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionLocked()
}

func (c *Controller) sessionLocked() Session {
	if !c.authenticated || c.current == nil {
		return Session{}
	}
	accessToken, claims := c.store.Snapshot()
	return Session{
		Authenticated: true,
		AccessToken:   accessToken,
		RefreshToken:  c.current.RefreshToken,
		Expiry:        c.current.Expiry,
		Claims:        claims,
	}
}

// Initialize establishes the session. Concurrent calls share one attempt, and a controller
// that is already authenticated returns its live session. It returns ErrAuthRequired when the
// interactive login flow must run first, and an error matching ErrInitialization when the
// provider fails or the issued token cannot be decoded.
func (c *Controller) Initialize(ctx context.Context) (Session, error) {
	v, err, _ := c.flights.Do(flightInitialize, func() (any, error) {
		return c.initialize(ctx)
	})
	if err != nil {
		return Session{}, err
	}
	return v.(Session), nil
}

func (c *Controller) initialize(ctx context.Context) (Session, error) {
	if live := c.Session(); live.Authenticated {
		return live, nil
	}

	tok, err := c.idp.Authenticate(ctx)
	if err != nil {
		if errs.Is(err, ErrAuthRequired) {
			return Session{}, ErrAuthRequired
		}
		return Session{}, fmt.Errorf("%w: %w", ErrInitialization, err)
	}

	c.mu.Lock()
	claims, err := c.store.SetAccessToken(tok.AccessToken)
	if err != nil {
		c.deauthenticateLocked()
		c.mu.Unlock()
		return Session{}, fmt.Errorf("%w: %w", ErrInitialization, err)
	}
	c.current = tok
	c.authenticated = true
	c.loggedOut = false
	c.failures = 0
	if c.registry != nil && !c.decorated {
		c.decoratorID = c.registry.Use(apiclient.BearerToken(c.store))
		c.decorated = true
	}
	established := c.sessionLocked()
	c.mu.Unlock()

	log.Info().Str("sub", claims.Subject).Str("username", claims.PreferredUsername).Msg("Session established")

	if c.registrar != nil {
		if err := c.registrar.Register(ctx, claims); err != nil {
			log.Warn().Err(err).Str("sub", claims.Subject).Msg("Backend user registration failed")
		}
	}

	return established, nil
}

// Refresh rotates the access token when its remaining validity is below minValidity; a
// negative minValidity forces the rotation. It reports whether a rotation happened.
// Concurrent calls share one round trip to the identity provider.
func (c *Controller) Refresh(ctx context.Context, minValidity time.Duration) (bool, error) {
	v, err, _ := c.flights.Do(flightRefresh, func() (any, error) {
		return c.refresh(ctx, minValidity)
	})
	rotated, _ := v.(bool)
	return rotated, err
}

// Revalidate forces a rotation so that the next authorization decision sees fresh claims.
// It is used when the backend rejects a request with 401 or 403.
func (c *Controller) Revalidate(ctx context.Context) error {
	_, err := c.Refresh(ctx, -1)
	return err
}

func (c *Controller) refresh(ctx context.Context, minValidity time.Duration) (bool, error) {
	c.mu.Lock()
	current := c.current
	if !c.authenticated || current == nil {
		c.mu.Unlock()
		return false, ErrNotAuthenticated
	}
	if minValidity >= 0 && !c.expiresWithinLocked(current, minValidity) {
		c.mu.Unlock()
		return false, nil
	}
	c.mu.Unlock()

	next, err := c.idp.Refresh(ctx, current)

	c.mu.Lock()
	defer c.mu.Unlock()

	// A logout or a newer session replaced the token while the round trip was in flight;
	// its result belongs to a session that no longer exists.
	if !c.authenticated || c.current != current {
		return false, ErrNotAuthenticated
	}

	if err != nil {
		return false, c.recordFailureLocked(err)
	}

	claims, err := c.store.SetAccessToken(next.AccessToken)
	if err != nil {
		// Undecodable claims fail closed immediately, whatever the failure allowance.
		c.deauthenticateLocked()
		log.Warn().Err(err).Msg("Refreshed token has malformed claims, session ended")
		return false, fmt.Errorf("%w: %w", ErrSessionLost, err)
	}

	if next.RefreshToken == "" {
		next.RefreshToken = current.RefreshToken
	}
	c.current = next
	c.failures = 0

	log.Debug().Str("sub", claims.Subject).Time("expiry", next.Expiry).Msg("Access token rotated")
	return true, nil
}

// expiresWithinLocked prefers the token endpoint's expiry and falls back to the exp claim.
// A token with no known expiry is always due.
func (c *Controller) expiresWithinLocked(tok *oauth2.Token, minValidity time.Duration) bool {
	expiry := tok.Expiry
	if expiry.IsZero() {
		if claims := c.store.Claims(); claims != nil && claims.ExpiresAt != nil {
			expiry = claims.ExpiresAt.Time
		}
	}
	if expiry.IsZero() {
		return true
	}
	return expiry.Sub(c.clock.Now()) < minValidity
}

func (c *Controller) recordFailureLocked(cause error) error {
	c.failures++
	if c.failures < c.failureLimit {
		log.Warn().Err(cause).Int("failures", c.failures).Int("limit", c.failureLimit).Msg("Token refresh failed")
		return fmt.Errorf("%w: %w", ErrRefreshFailed, cause)
	}

	failures := c.failures
	c.deauthenticateLocked()
	log.Warn().Err(cause).Int("failures", failures).Msg("Token refresh failed, session ended")
	return fmt.Errorf("%w after %d consecutive failures: %w", ErrSessionLost, failures, cause)
}

// deauthenticateLocked flips the session to unauthenticated before clearing the store, so
// that authenticated always implies a decodable token.
func (c *Controller) deauthenticateLocked() {
	c.authenticated = false
	c.current = nil
	c.failures = 0
	c.store.Clear()
	c.ejectDecoratorLocked()
}

func (c *Controller) ejectDecoratorLocked() {
	if !c.decorated {
		return
	}
	c.registry.Eject(c.decoratorID)
	c.decorated = false
}

// Logout stops the refresh loop, ends the identity-provider session and clears all derived
// state. It returns the origin-relative location to send the user to. Calling it again has
// no further side effects.
func (c *Controller) Logout(ctx context.Context) string {
	c.Stop()

	c.mu.Lock()
	if c.loggedOut {
		c.mu.Unlock()
		return c.logoutLocation
	}
	current := c.current
	c.loggedOut = true
	c.deauthenticateLocked()
	c.mu.Unlock()

	if current != nil {
		if err := c.idp.EndSession(ctx, current); err != nil {
			log.Warn().Err(err).Msg("Failed to end identity provider session")
		}
	}

	log.Info().Msg("Session logged out")
	return c.logoutLocation
}

// Expire ends the session locally without contacting the identity provider, for when the
// provider has already ended it. A later Logout has no further side effects.
func (c *Controller) Expire() {
	c.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loggedOut {
		return
	}
	c.loggedOut = true
	c.deauthenticateLocked()
	log.Info().Msg("Session expired by the identity provider")
}
