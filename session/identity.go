package session

import (
	"context"
	"time"

	"github.com/jrsteele09/openleaf-portal/apiclient"
	"github.com/jrsteele09/openleaf-portal/token"
	"golang.org/x/oauth2"
)

// IdentityProvider is the live connection to the identity provider. The keycloak package
// provides the real implementation; identityfake provides a scripted one for tests.
type IdentityProvider interface {
	// Authenticate establishes a session without user interaction, or returns ErrAuthRequired
	// when the user must go through the interactive login flow first.
	Authenticate(ctx context.Context) (*oauth2.Token, error)

	// Refresh rotates current using its refresh token.
	Refresh(ctx context.Context, current *oauth2.Token) (*oauth2.Token, error)

	// EndSession terminates the provider-side session for current.
	EndSession(ctx context.Context, current *oauth2.Token) error
}

// Registrar records the signed-in user with the backend. It must be an idempotent upsert.
type Registrar interface {
	Register(ctx context.Context, claims *token.Claims) error
}

// DecoratorRegistry is where the controller installs its bearer-token decorator.
// *apiclient.Client satisfies it.
type DecoratorRegistry interface {
	Use(d apiclient.Decorator) apiclient.DecoratorID
	Eject(id apiclient.DecoratorID) bool
}

// Session is a point-in-time view of the controller's identity-provider session.
type Session struct {
	Authenticated bool
	AccessToken   string
	RefreshToken  string
	Expiry        time.Time
	Claims        *token.Claims
}
