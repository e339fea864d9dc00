// Package keycloak connects the session controller to a Keycloak realm over OpenID Connect.
package keycloak

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/openleaf-portal/internal/config"
	"github.com/jrsteele09/openleaf-portal/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	defaultHTTPTimeout = 10 * time.Second

	backchannelLogoutEvent = "http://schemas.openid.net/event/backchannel-logout"
)

var _ session.IdentityProvider = (*Client)(nil)

// Client is the realm-wide connection to Keycloak. It is safe for concurrent use; per-login
// state lives in the provider returned by WithAuthorizationCode.
type Client struct {
	httpClient     *http.Client
	provider       *oidc.Provider
	oauth2Config   *oauth2.Config
	idVerifier     *oidc.IDTokenVerifier
	accessVerifier *oidc.IDTokenVerifier
	logoutVerifier *oidc.IDTokenVerifier
	endSessionURL  string
}

type Option func(*Client)

// WithHTTPClient uses httpClient for discovery, key fetches and token requests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// New discovers the realm configuration at cfg's issuer URL.
func New(ctx context.Context, cfg config.IdentityConfig, options ...Option) (*Client, error) {
	c := &Client{httpClient: &http.Client{Timeout: defaultHTTPTimeout}}
	for _, opt := range options {
		opt(c)
	}

	provider, err := oidc.NewProvider(c.withHTTPClient(ctx), cfg.GetIssuerURL())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to discover realm at %s", cfg.GetIssuerURL())
	}

	var metadata struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := provider.Claims(&metadata); err != nil {
		return nil, errors.Wrap(err, "failed to read provider metadata")
	}

	c.provider = provider
	c.endSessionURL = metadata.EndSessionEndpoint
	c.oauth2Config = &oauth2.Config{
		ClientID:     cfg.GetClientID(),
		ClientSecret: cfg.GetClientSecret(),
		Endpoint:     provider.Endpoint(),
		RedirectURL:  cfg.GetRedirectURL(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}
	c.idVerifier = provider.Verifier(&oidc.Config{ClientID: cfg.GetClientID()})
	// Keycloak access tokens are audienced to the resource servers, not to this client.
	c.accessVerifier = provider.Verifier(&oidc.Config{SkipClientIDCheck: true})
	c.logoutVerifier = provider.Verifier(&oidc.Config{ClientID: cfg.GetClientID(), SkipExpiryCheck: true})

	log.Info().Str("issuer", cfg.GetIssuerURL()).Str("client_id", cfg.GetClientID()).Msg("Identity provider discovered")
	return c, nil
}

// ClientID returns the OAuth client the portal signs in as.
func (c *Client) ClientID() string {
	return c.oauth2Config.ClientID
}

func (c *Client) withHTTPClient(ctx context.Context) context.Context {
	ctx = oidc.ClientContext(ctx, c.httpClient)
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// AuthCodeURL builds the login redirect for one attempt. The verifier's S256 challenge and the
// nonce are bound to the request; the caller keeps both until the callback.
func (c *Client) AuthCodeURL(state, verifier, nonce string) string {
	return c.oauth2Config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier), oidc.Nonce(nonce))
}

// Authenticate always requires the interactive flow; the portal has no silent sign-on.
func (c *Client) Authenticate(context.Context) (*oauth2.Token, error) {
	return nil, session.ErrAuthRequired
}

// Exchange redeems an authorization code and verifies the returned tokens.
func (c *Client) Exchange(ctx context.Context, code, verifier, nonce string) (*oauth2.Token, error) {
	ctx = c.withHTTPClient(ctx)

	tok, err := c.oauth2Config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, errors.Wrapf(ErrIdentityFailure, "code exchange failed: %v", err)
	}

	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.Wrap(ErrIdentityFailure, "no id_token in token response")
	}
	idToken, err := c.idVerifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, errors.Wrapf(ErrIdentityFailure, "id token verification failed: %v", err)
	}
	if idToken.Nonce != nonce {
		return nil, ErrNonceMismatch
	}

	if err := c.verifyAccessToken(ctx, tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// Refresh redeems current's refresh token for a new token set.
func (c *Client) Refresh(ctx context.Context, current *oauth2.Token) (*oauth2.Token, error) {
	if current == nil || current.RefreshToken == "" {
		return nil, errors.Wrap(ErrIdentityFailure, "no refresh token")
	}
	ctx = c.withHTTPClient(ctx)

	source := c.oauth2Config.TokenSource(ctx, &oauth2.Token{RefreshToken: current.RefreshToken})
	next, err := source.Token()
	if err != nil {
		return nil, errors.Wrapf(ErrIdentityFailure, "refresh grant failed: %v", err)
	}
	if err := c.verifyAccessToken(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (c *Client) verifyAccessToken(ctx context.Context, tok *oauth2.Token) error {
	if tok.AccessToken == "" {
		return errors.Wrap(ErrIdentityFailure, "no access token in token response")
	}
	if _, err := c.accessVerifier.Verify(ctx, tok.AccessToken); err != nil {
		return errors.Wrapf(ErrIdentityFailure, "access token verification failed: %v", err)
	}
	return nil
}

// EndSession ends the realm session that issued current's refresh token.
func (c *Client) EndSession(ctx context.Context, current *oauth2.Token) error {
	if c.endSessionURL == "" {
		log.Warn().Msg("Realm advertises no end_session_endpoint, skipping provider logout")
		return nil
	}
	if current == nil || current.RefreshToken == "" {
		return nil
	}

	form := url.Values{}
	form.Set("client_id", c.oauth2Config.ClientID)
	if c.oauth2Config.ClientSecret != "" {
		form.Set("client_secret", c.oauth2Config.ClientSecret)
	}
	form.Set("refresh_token", current.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endSessionURL, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "failed to build end-session request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(ErrIdentityFailure, "end-session request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return errors.Wrapf(ErrIdentityFailure, "end-session returned status %d", resp.StatusCode)
	}
	return nil
}

// VerifyLogoutToken validates a back-channel logout token and returns its subject.
func (c *Client) VerifyLogoutToken(ctx context.Context, rawToken string) (string, error) {
	logoutToken, err := c.logoutVerifier.Verify(c.withHTTPClient(ctx), rawToken)
	if err != nil {
		return "", errors.Wrapf(ErrInvalidLogoutToken, "%v", err)
	}

	var claims struct {
		Events map[string]any `json:"events"`
		Nonce  string         `json:"nonce"`
	}
	if err := logoutToken.Claims(&claims); err != nil {
		return "", errors.Wrapf(ErrInvalidLogoutToken, "%v", err)
	}
	if _, ok := claims.Events[backchannelLogoutEvent]; !ok {
		return "", errors.Wrap(ErrInvalidLogoutToken, "missing back-channel logout event")
	}
	if claims.Nonce != "" {
		return "", errors.Wrap(ErrInvalidLogoutToken, "logout token must not carry a nonce")
	}
	if logoutToken.Subject == "" {
		return "", errors.Wrap(ErrInvalidLogoutToken, "missing sub")
	}
	return logoutToken.Subject, nil
}
