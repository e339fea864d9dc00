package keycloak_test

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	realmPath = "/realms/OpenLeaf"
	clientID  = "openleaf-rest-api"
	keyID     = "realm-key"
)

type identityConfig struct {
	issuer string
}

func (c identityConfig) GetIdentityProviderURL() string { return c.issuer }
func (c identityConfig) GetRealm() string               { return "OpenLeaf" }
func (c identityConfig) GetClientID() string            { return clientID }
func (c identityConfig) GetClientSecret() string        { return "s3cret" }
func (c identityConfig) GetIssuerURL() string           { return c.issuer }
func (c identityConfig) GetRedirectURL() string         { return "http://portal.test/callback" }

// fakeRealm serves discovery, keys, the token endpoint and the end-session endpoint of a
// single Keycloak realm, signing every token with one RSA key.
type fakeRealm struct {
	t      *testing.T
	server *httptest.Server
	key    *rsa.PrivateKey
	issuer string

	mu             sync.Mutex
	expectCode     string
	expectVerifier string
	idTokenNonce   string
	failRefresh    bool
	tokenForms     []url.Values
	endSessionForm []url.Values
}

func newFakeRealm(t *testing.T) *fakeRealm {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	r := &fakeRealm{t: t, key: key}
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+realmPath+"/.well-known/openid-configuration", r.discovery)
	mux.HandleFunc("GET "+realmPath+"/protocol/openid-connect/certs", r.keys)
	mux.HandleFunc("POST "+realmPath+"/protocol/openid-connect/token", r.token)
	mux.HandleFunc("POST "+realmPath+"/protocol/openid-connect/logout", r.logout)
	r.server = httptest.NewServer(mux)
	r.issuer = r.server.URL + realmPath
	t.Cleanup(r.server.Close)
	return r
}

func (r *fakeRealm) config() identityConfig {
	return identityConfig{issuer: r.issuer}
}

func (r *fakeRealm) expectAuthorizationCode(code, verifier, nonce string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expectCode, r.expectVerifier, r.idTokenNonce = code, verifier, nonce
}

func (r *fakeRealm) rejectRefreshes() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failRefresh = true
}

func (r *fakeRealm) sign(claims jwt.MapClaims) string {
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = keyID
	raw, err := tok.SignedString(r.key)
	if err != nil {
		r.t.Errorf("failed to sign token: %v", err)
	}
	return raw
}

func (r *fakeRealm) accessToken(subject string) string {
	now := time.Now()
	return r.sign(jwt.MapClaims{
		"iss": r.issuer,
		"sub": subject,
		"aud": "account",
		"iat": now.Unix(),
		"exp": now.Add(5 * time.Minute).Unix(),
		"resource_access": map[string]any{
			clientID: map[string]any{"roles": []string{"client_user"}},
		},
	})
}

func (r *fakeRealm) logoutToken(subject string, events map[string]any) string {
	return r.sign(jwt.MapClaims{
		"iss":    r.issuer,
		"sub":    subject,
		"aud":    clientID,
		"iat":    time.Now().Unix(),
		"jti":    "logout-1",
		"events": events,
	})
}

func (r *fakeRealm) discovery(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                                r.issuer,
		"authorization_endpoint":                r.issuer + "/protocol/openid-connect/auth",
		"token_endpoint":                        r.issuer + "/protocol/openid-connect/token",
		"jwks_uri":                              r.issuer + "/protocol/openid-connect/certs",
		"end_session_endpoint":                  r.issuer + "/protocol/openid-connect/logout",
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
}

func (r *fakeRealm) keys(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"keys": []map[string]any{{
			"kty": "RSA",
			"kid": keyID,
			"use": "sig",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(r.key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(r.key.E)).Bytes()),
		}},
	})
}

func (r *fakeRealm) token(w http.ResponseWriter, req *http.Request) {
	if err := req.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	r.mu.Lock()
	r.tokenForms = append(r.tokenForms, req.PostForm)
	expectCode, expectVerifier, nonce, failRefresh := r.expectCode, r.expectVerifier, r.idTokenNonce, r.failRefresh
	r.mu.Unlock()

	switch req.PostForm.Get("grant_type") {
	case "authorization_code":
		if req.PostForm.Get("code") != expectCode || req.PostForm.Get("code_verifier") != expectVerifier {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		now := time.Now()
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  r.accessToken("patient-kc-123"),
			"token_type":    "Bearer",
			"expires_in":    300,
			"refresh_token": "refresh-1",
			"id_token": r.sign(jwt.MapClaims{
				"iss":   r.issuer,
				"sub":   "patient-kc-123",
				"aud":   clientID,
				"iat":   now.Unix(),
				"exp":   now.Add(5 * time.Minute).Unix(),
				"nonce": nonce,
			}),
		})
	case "refresh_token":
		if failRefresh {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  r.accessToken("patient-kc-123"),
			"token_type":    "Bearer",
			"expires_in":    300,
			"refresh_token": "refresh-2",
		})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
	}
}

func (r *fakeRealm) logout(w http.ResponseWriter, req *http.Request) {
	if err := req.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	r.mu.Lock()
	r.endSessionForm = append(r.endSessionForm, req.PostForm)
	r.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (r *fakeRealm) tokenRequests() []url.Values {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]url.Values(nil), r.tokenForms...)
}

func (r *fakeRealm) endSessionRequests() []url.Values {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]url.Values(nil), r.endSessionForm...)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
