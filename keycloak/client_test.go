package keycloak_test

import (
	"context"
	"net/url"
	"testing"

	"github.com/jrsteele09/openleaf-portal/keycloak"
	"github.com/jrsteele09/openleaf-portal/session"
	"github.com/jrsteele09/openleaf-portal/token"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newClient(t *testing.T) (*keycloak.Client, *fakeRealm) {
	t.Helper()
	realm := newFakeRealm(t)
	client, err := keycloak.New(context.Background(), realm.config())
	require.NoError(t, err)
	return client, realm
}

func TestNew_UnreachableRealm(t *testing.T) {
	_, err := keycloak.New(context.Background(), identityConfig{issuer: "http://127.0.0.1:1/realms/none"})
	require.Error(t, err)
}

func TestClient_AuthCodeURL(t *testing.T) {
	client, realm := newClient(t)
	verifier := oauth2.GenerateVerifier()

	raw := client.AuthCodeURL("state-1", verifier, "nonce-1")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	q := u.Query()
	require.Equal(t, realm.issuer+"/protocol/openid-connect/auth", u.Scheme+"://"+u.Host+u.Path)
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, clientID, q.Get("client_id"))
	require.Equal(t, "state-1", q.Get("state"))
	require.Equal(t, "nonce-1", q.Get("nonce"))
	require.Equal(t, "S256", q.Get("code_challenge_method"))
	require.Equal(t, oauth2.S256ChallengeFromVerifier(verifier), q.Get("code_challenge"))
	require.Equal(t, "http://portal.test/callback", q.Get("redirect_uri"))
	require.Contains(t, q.Get("scope"), "openid")
}

func TestClient_AuthenticateRequiresInteractiveLogin(t *testing.T) {
	client, _ := newClient(t)

	_, err := client.Authenticate(context.Background())
	require.ErrorIs(t, err, session.ErrAuthRequired)
}

func TestCodeGrant_RedeemsCodeOnce(t *testing.T) {
	client, realm := newClient(t)
	realm.expectAuthorizationCode("code-1", "verifier-1", "nonce-1")

	idp := client.WithAuthorizationCode("code-1", "verifier-1", "nonce-1")
	tok, err := idp.Authenticate(context.Background())
	require.NoError(t, err)
	require.Equal(t, "refresh-1", tok.RefreshToken)

	claims, err := token.Decode(tok.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "patient-kc-123", claims.Subject)
	require.Equal(t, []string{"client_user"}, claims.ClientRoles(clientID))

	requests := realm.tokenRequests()
	require.Len(t, requests, 1)
	require.Equal(t, "verifier-1", requests[0].Get("code_verifier"))

	_, err = idp.Authenticate(context.Background())
	require.ErrorIs(t, err, session.ErrAuthRequired)
	require.Len(t, realm.tokenRequests(), 1)
}

func TestCodeGrant_NonceMismatch(t *testing.T) {
	client, realm := newClient(t)
	realm.expectAuthorizationCode("code-1", "verifier-1", "someone-elses-nonce")

	_, err := client.WithAuthorizationCode("code-1", "verifier-1", "nonce-1").Authenticate(context.Background())
	require.ErrorIs(t, err, keycloak.ErrNonceMismatch)
}

func TestCodeGrant_WrongVerifier(t *testing.T) {
	client, realm := newClient(t)
	realm.expectAuthorizationCode("code-1", "verifier-1", "nonce-1")

	_, err := client.WithAuthorizationCode("code-1", "other-verifier", "nonce-1").Authenticate(context.Background())
	require.ErrorIs(t, err, keycloak.ErrIdentityFailure)
}

func TestClient_Refresh(t *testing.T) {
	client, realm := newClient(t)

	next, err := client.Refresh(context.Background(), &oauth2.Token{AccessToken: "old", RefreshToken: "refresh-1"})
	require.NoError(t, err)
	require.Equal(t, "refresh-2", next.RefreshToken)
	require.NotEmpty(t, next.AccessToken)

	requests := realm.tokenRequests()
	require.Len(t, requests, 1)
	require.Equal(t, "refresh_token", requests[0].Get("grant_type"))
	require.Equal(t, "refresh-1", requests[0].Get("refresh_token"))
}

func TestClient_RefreshFailure(t *testing.T) {
	client, realm := newClient(t)
	realm.rejectRefreshes()

	_, err := client.Refresh(context.Background(), &oauth2.Token{RefreshToken: "refresh-1"})
	require.ErrorIs(t, err, keycloak.ErrIdentityFailure)

	_, err = client.Refresh(context.Background(), &oauth2.Token{})
	require.ErrorIs(t, err, keycloak.ErrIdentityFailure)
}

func TestClient_EndSession(t *testing.T) {
	client, realm := newClient(t)

	require.NoError(t, client.EndSession(context.Background(), &oauth2.Token{RefreshToken: "refresh-1"}))

	requests := realm.endSessionRequests()
	require.Len(t, requests, 1)
	require.Equal(t, clientID, requests[0].Get("client_id"))
	require.Equal(t, "s3cret", requests[0].Get("client_secret"))
	require.Equal(t, "refresh-1", requests[0].Get("refresh_token"))
}

func TestClient_VerifyLogoutToken(t *testing.T) {
	client, realm := newClient(t)

	subject, err := client.VerifyLogoutToken(context.Background(), realm.logoutToken("patient-kc-123", map[string]any{
		"http://schemas.openid.net/event/backchannel-logout": map[string]any{},
	}))
	require.NoError(t, err)
	require.Equal(t, "patient-kc-123", subject)

	_, err = client.VerifyLogoutToken(context.Background(), realm.logoutToken("patient-kc-123", map[string]any{}))
	require.ErrorIs(t, err, keycloak.ErrInvalidLogoutToken)

	_, err = client.VerifyLogoutToken(context.Background(), "not-a-token")
	require.ErrorIs(t, err, keycloak.ErrInvalidLogoutToken)
}
