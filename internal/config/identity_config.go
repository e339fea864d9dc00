package config

import "strings"

// IdentityConfig describes the Keycloak realm and client the portal signs users in with.
// It is read once when the identity provider is created.
type IdentityConfig interface {
	GetIdentityProviderURL() string
	GetRealm() string
	GetClientID() string
	GetClientSecret() string
	GetIssuerURL() string
	GetRedirectURL() string
}

type Identity struct{}

var _ IdentityConfig = Identity{}

func (Identity) GetIdentityProviderURL() string {
	return strings.TrimSuffix(GetEnv("KEYCLOAK_URL", "http://localhost:8080"), "/")
}

func (Identity) GetRealm() string {
	return GetEnv("KEYCLOAK_REALM", "OpenLeaf")
}

// GetClientID is also the key of the authoritative client-scoped role set in access tokens.
func (Identity) GetClientID() string {
	return GetEnv("KEYCLOAK_CLIENT_ID", "openleaf-rest-api")
}

// GetClientSecret is empty for public clients.
func (Identity) GetClientSecret() string {
	return GetEnv("KEYCLOAK_CLIENT_SECRET", "")
}

func (i Identity) GetIssuerURL() string {
	return i.GetIdentityProviderURL() + "/realms/" + i.GetRealm()
}

func (Identity) GetRedirectURL() string {
	return EnvVars{}.GetBaseURL() + "/callback"
}
