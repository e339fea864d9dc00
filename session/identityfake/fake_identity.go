package identityfake

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/openleaf-portal/session"
	"github.com/jrsteele09/openleaf-portal/token"
	"github.com/jrsteele09/openleaf-portal/token/tokenfake"
	"golang.org/x/oauth2"
)

var _ session.IdentityProvider = (*FakeIdentityProvider)(nil)

// FakeIdentityProvider is a scripted session.IdentityProvider.
type FakeIdentityProvider struct {
	mu sync.Mutex

	authToken *oauth2.Token
	authErr   error

	refreshQueue []*oauth2.Token
	refreshErrs  []error

	endSessionErr error

	// AuthenticateGate and RefreshGate, when set, block the matching call until a value is received.
	AuthenticateGate chan struct{}
	RefreshGate      chan struct{}

	authenticateCalls int
	refreshCalls      int
	endSessionCalls   int
}

func NewFakeIdentityProvider() *FakeIdentityProvider {
	return &FakeIdentityProvider{authErr: session.ErrAuthRequired}
}

// TokenFor builds an oauth2 token carrying claims, expiring at expiry.
func TokenFor(claims *token.Claims, expiry time.Time) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  tokenfake.NewAccessToken(claims),
		TokenType:    "Bearer",
		RefreshToken: "refresh-" + claims.Subject,
		Expiry:       expiry,
	}
}

// SetAuthenticated makes Authenticate return tok.
func (f *FakeIdentityProvider) SetAuthenticated(tok *oauth2.Token) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authToken, f.authErr = tok, nil
}

// SetAuthenticateError makes Authenticate fail with err.
func (f *FakeIdentityProvider) SetAuthenticateError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authToken, f.authErr = nil, err
}

// QueueRefresh appends a successful rotation result.
func (f *FakeIdentityProvider) QueueRefresh(tok *oauth2.Token) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshQueue = append(f.refreshQueue, tok)
	f.refreshErrs = append(f.refreshErrs, nil)
}

// QueueRefreshError appends a failed rotation.
func (f *FakeIdentityProvider) QueueRefreshError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshQueue = append(f.refreshQueue, nil)
	f.refreshErrs = append(f.refreshErrs, err)
}

func (f *FakeIdentityProvider) SetEndSessionError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.endSessionErr = err
}

func (f *FakeIdentityProvider) Authenticate(ctx context.Context) (*oauth2.Token, error) {
	f.mu.Lock()
	f.authenticateCalls++
	gate := f.AuthenticateGate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.authErr != nil {
		return nil, f.authErr
	}
	tok := *f.authToken
	return &tok, nil
}

// Refresh pops the next queued result. An empty queue fails.
func (f *FakeIdentityProvider) Refresh(ctx context.Context, _ *oauth2.Token) (*oauth2.Token, error) {
	f.mu.Lock()
	f.refreshCalls++
	gate := f.RefreshGate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.refreshQueue) == 0 {
		return nil, ErrNoRefreshQueued
	}
	tok, err := f.refreshQueue[0], f.refreshErrs[0]
	f.refreshQueue, f.refreshErrs = f.refreshQueue[1:], f.refreshErrs[1:]
	return tok, err
}

func (f *FakeIdentityProvider) EndSession(_ context.Context, _ *oauth2.Token) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.endSessionCalls++
	return f.endSessionErr
}

func (f *FakeIdentityProvider) AuthenticateCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authenticateCalls
}

func (f *FakeIdentityProvider) RefreshCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

func (f *FakeIdentityProvider) EndSessionCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.endSessionCalls
}
