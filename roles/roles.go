// Package roles derives application roles from access token claims.
//
// Roles are never stored: every check reads the claims currently held, so a token rotation
// that changes role assignments takes effect on the next check. The client-scoped role set
// (resource_access[clientID].roles) is authoritative; realm roles are ignored because one
// identity may hold different roles per integration.
package roles

import (
	"slices"

	"github.com/jrsteele09/openleaf-portal/token"
)

// Role is an application role derived from claims.
type Role string

const (
	Unauthenticated Role = "unauthenticated"
	Patient         Role = "patient"
	Therapist       Role = "therapist"
	Admin           Role = "admin"
)

// Reserved client role identifiers issued by the identity provider.
const (
	ClientRolePatient   = "client_user"
	ClientRoleTherapist = "client_therapist"
	ClientRoleAdmin     = "admin"
)

// priority lists the application roles from most to least privileged.
var priority = []struct {
	role       Role
	clientRole string
}{
	{Admin, ClientRoleAdmin},
	{Therapist, ClientRoleTherapist},
	{Patient, ClientRolePatient},
}

// Resolver maps claims to role predicates for one client integration.
type Resolver struct {
	clientID string
}

func NewResolver(clientID string) Resolver {
	return Resolver{clientID: clientID}
}

// ClientID returns the client whose role set is consulted.
func (r Resolver) ClientID() string {
	return r.clientID
}

// ClientRoles returns the raw client-scoped role strings.
func (r Resolver) ClientRoles(claims *token.Claims) []string {
	return claims.ClientRoles(r.clientID)
}

// HasRole reports whether roleName is in the client-scoped role set. Absent claims hold no roles.
func (r Resolver) HasRole(claims *token.Claims, roleName string) bool {
	return slices.Contains(r.ClientRoles(claims), roleName)
}

func (r Resolver) IsPatient(claims *token.Claims) bool {
	return r.HasRole(claims, ClientRolePatient)
}

func (r Resolver) IsTherapist(claims *token.Claims) bool {
	return r.HasRole(claims, ClientRoleTherapist)
}

func (r Resolver) IsAdmin(claims *token.Claims) bool {
	return r.HasRole(claims, ClientRoleAdmin)
}

// Is reports whether claims grant the application role.
func (r Resolver) Is(claims *token.Claims, role Role) bool {
	for _, p := range priority {
		if p.role == role {
			return r.HasRole(claims, p.clientRole)
		}
	}
	return false
}

// Roles returns every application role held, most privileged first.
func (r Resolver) Roles(claims *token.Claims) []Role {
	var held []Role
	for _, p := range priority {
		if r.HasRole(claims, p.clientRole) {
			held = append(held, p.role)
		}
	}
	return held
}

// Primary returns the most privileged role held, or Unauthenticated when none is.
func (r Resolver) Primary(claims *token.Claims) Role {
	if held := r.Roles(claims); len(held) > 0 {
		return held[0]
	}
	return Unauthenticated
}

// UserID returns the stable subject identifier. ok is false when claims are absent.
func UserID(claims *token.Claims) (id string, ok bool) {
	if claims == nil || claims.Subject == "" {
		return "", false
	}
	return claims.Subject, true
}
