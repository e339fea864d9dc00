package tokenfake

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/openleaf-portal/token"
)

// ClientID is the client integration whose roles the fake claims carry.
const ClientID = "openleaf-rest-api"

var signingKey = []byte("fake-signing-key")

// NewAccessToken signs claims with a fixed HMAC key. The portal never verifies the signature,
// so the result is accepted anywhere a raw access token is expected.
func NewAccessToken(claims *token.Claims) string {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		panic("tokenfake: failed to sign claims: " + err.Error())
	}
	return raw
}

// NewClaims builds claims for subject holding clientRoles on ClientID, expiring after ttl.
func NewClaims(subject, username string, ttl time.Duration, clientRoles ...string) *token.Claims {
	now := time.Now()
	return &token.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    "http://localhost:8080/realms/OpenLeaf",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		PreferredUsername: username,
		Email:             username + "@example.com",
		GivenName:         "Test",
		FamilyName:        "User",
		ResourceAccess: map[string]token.Access{
			ClientID: {Roles: clientRoles},
		},
	}
}

func PatientClaims() *token.Claims {
	c := NewClaims("patient-kc-123", "john.doe", time.Hour, "client_user")
	c.RealmAccess = &token.Access{Roles: []string{"patient"}}
	return c
}

func TherapistClaims() *token.Claims {
	c := NewClaims("therapist-kc-123", "dr.smith", time.Hour, "client_therapist")
	c.RealmAccess = &token.Access{Roles: []string{"therapist"}}
	return c
}

func AdminClaims() *token.Claims {
	return NewClaims("admin-kc-123", "admin", time.Hour, "admin", "client_therapist", "client_user")
}
