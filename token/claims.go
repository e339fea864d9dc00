package token

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedClaims is returned when a token payload cannot be decoded into Claims.
// Callers treat it exactly like an absent session.
var ErrMalformedClaims = errors.New("malformed token claims")

// Access lists the roles granted at one scope of the identity provider.
type Access struct {
	Roles []string `json:"roles,omitempty"`
}

// Claims is the decoded payload of an access token issued by the identity provider.
// A Claims value is replaced wholesale on every token rotation and must be treated as read-only.
type Claims struct {
	jwt.RegisteredClaims
	PreferredUsername string            `json:"preferred_username,omitempty"` // Login name shown in the UI
	Email             string            `json:"email,omitempty"`
	GivenName         string            `json:"given_name,omitempty"`
	FamilyName        string            `json:"family_name,omitempty"`
	RealmAccess       *Access           `json:"realm_access,omitempty"`    // Realm-wide roles, informational only
	ResourceAccess    map[string]Access `json:"resource_access,omitempty"` // Client-scoped roles keyed by client id
}

// ClientRoles returns the roles granted to the user for one client integration.
// It is nil-safe: absent claims or an absent client entry yield no roles.
func (c *Claims) ClientRoles(clientID string) []string {
	if c == nil || c.ResourceAccess == nil {
		return nil
	}
	return c.ResourceAccess[clientID].Roles
}

// RealmRoles returns the realm-wide roles, if any.
func (c *Claims) RealmRoles() []string {
	if c == nil || c.RealmAccess == nil {
		return nil
	}
	return c.RealmAccess.Roles
}

// DisplayName prefers the username, falling back to the given and family names.
func (c *Claims) DisplayName() string {
	if c == nil {
		return ""
	}
	if c.PreferredUsername != "" {
		return c.PreferredUsername
	}
	return strings.TrimSpace(c.GivenName + " " + c.FamilyName)
}

// Decode extracts the claims from a raw JWT without verifying its signature.
// Signature and audience checks belong to the identity adapter that obtained the token
// and to the backend that consumes it; the portal only needs the payload.
func Decode(rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, fmt.Errorf("empty token: %w", ErrMalformedClaims)
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(rawToken, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedClaims, err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject: %w", ErrMalformedClaims)
	}

	return claims, nil
}
