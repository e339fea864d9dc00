package keycloak

import (
	"context"
	"sync"

	"github.com/jrsteele09/openleaf-portal/session"
	"golang.org/x/oauth2"
)

// codeGrant is a Client bound to one authorization code. Its first Authenticate redeems the
// code; every later call needs a fresh login.
type codeGrant struct {
	*Client

	mu       sync.Mutex
	code     string
	verifier string
	nonce    string
	redeemed bool
}

// WithAuthorizationCode returns an IdentityProvider that authenticates by redeeming code.
func (c *Client) WithAuthorizationCode(code, verifier, nonce string) session.IdentityProvider {
	return &codeGrant{Client: c, code: code, verifier: verifier, nonce: nonce}
}

func (g *codeGrant) Authenticate(ctx context.Context) (*oauth2.Token, error) {
	g.mu.Lock()
	if g.redeemed {
		g.mu.Unlock()
		return nil, session.ErrAuthRequired
	}
	g.redeemed = true
	code, verifier, nonce := g.code, g.verifier, g.nonce
	g.mu.Unlock()

	return g.Exchange(ctx, code, verifier, nonce)
}
