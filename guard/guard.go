// Package guard decides, per navigation, whether a view renders or where the browser goes
// instead. It never returns errors: missing or malformed identity degrades to the least
// privileged outcome.
package guard

import (
	"net/url"
	"path"
	"strings"

	"github.com/jrsteele09/openleaf-portal/roles"
	"github.com/jrsteele09/openleaf-portal/token"
)

const (
	PathRoot         = "/"
	PathLogin        = "/login"
	PathUnauthorized = "/unauthorized"

	LandingAdmin     = "/admin"
	LandingTherapist = "/therapist/dashboard"
	LandingPatient   = "/dashboard"

	// ReturnParam carries the originally requested location through the login boundary.
	ReturnParam = "return"
)

// View is the session state a decision is made from. *session.Controller satisfies it.
type View interface {
	Authenticated() bool
	Claims() *token.Claims
}

type Action int

const (
	Render Action = iota
	RedirectLogin
	RedirectUnauthorized
	RedirectLanding
)

func (a Action) String() string {
	switch a {
	case Render:
		return "render"
	case RedirectLogin:
		return "redirect_login"
	case RedirectUnauthorized:
		return "redirect_unauthorized"
	case RedirectLanding:
		return "redirect_landing"
	}
	return "unknown"
}

// Decision is the outcome of one navigation. Location is empty for Render. Landing is the
// user's own home view, offered on the Unauthorized page.
type Decision struct {
	Action   Action
	Location string
	Landing  string
	Role     roles.Role
}

type Guard struct {
	policy   Policy
	resolver roles.Resolver
}

func New(policy Policy, resolver roles.Resolver) *Guard {
	return &Guard{policy: policy, resolver: resolver}
}

// Policy returns the route table the guard enforces.
func (g *Guard) Policy() Policy {
	return g.policy
}

// Evaluate decides what happens when view navigates to target, an origin-relative path that
// may carry a query string.
func (g *Guard) Evaluate(view View, target string) Decision {
	return g.EvaluateRoute(view, routePath(target), target)
}

// EvaluateRoute decides on target using route, the path the request was routed by, for the
// policy lookup. route may be a mux pattern such as /journals/{id}. target is only used as the
// return location of the login boundary.
func (g *Guard) EvaluateRoute(view View, route, target string) Decision {
	requestPath := path.Clean("/" + strings.TrimSuffix(route, "{$}"))

	claims, authenticated := g.identity(view)

	if requestPath == PathRoot {
		if !authenticated {
			return Decision{Action: RedirectLogin, Location: LoginLocation(PathRoot), Role: roles.Unauthenticated}
		}
		landing := g.DefaultLanding(claims)
		return Decision{Action: RedirectLanding, Location: landing, Landing: landing, Role: g.resolver.Primary(claims)}
	}

	rule, protected := g.policy.Match(requestPath)
	if !protected {
		decision := Decision{Action: Render, Role: roles.Unauthenticated}
		if authenticated {
			decision.Role = g.resolver.Primary(claims)
			decision.Landing = g.DefaultLanding(claims)
		}
		return decision
	}

	if !authenticated {
		return Decision{Action: RedirectLogin, Location: LoginLocation(target), Role: roles.Unauthenticated}
	}

	landing := g.DefaultLanding(claims)
	role := g.resolver.Primary(claims)
	if !rule.Permits(g.resolver.Roles(claims)) {
		return Decision{Action: RedirectUnauthorized, Location: PathUnauthorized, Landing: landing, Role: role}
	}
	return Decision{Action: Render, Landing: landing, Role: role}
}

// identity treats an authenticated view without decodable claims as unauthenticated.
func (g *Guard) identity(view View) (*token.Claims, bool) {
	if view == nil || !view.Authenticated() {
		return nil, false
	}
	claims := view.Claims()
	if claims == nil || claims.Subject == "" {
		return nil, false
	}
	return claims, true
}

// DefaultLanding resolves a user's home view: admin, then therapist, then patient. Claims
// without any known role land on the patient dashboard.
func (g *Guard) DefaultLanding(claims *token.Claims) string {
	switch g.resolver.Primary(claims) {
	case roles.Admin:
		return LandingAdmin
	case roles.Therapist:
		return LandingTherapist
	default:
		return LandingPatient
	}
}

// LoginLocation is the login boundary that returns to returnTo afterwards.
func LoginLocation(returnTo string) string {
	if returnTo == "" || returnTo == PathRoot {
		return PathLogin
	}
	return PathLogin + "?" + url.Values{ReturnParam: {returnTo}}.Encode()
}

// routePath returns target's path still escaped, so that an encoded slash stays inside its
// segment the way the mux sees it.
func routePath(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		route, _, _ := strings.Cut(target, "?")
		return route
	}
	return u.EscapedPath()
}
