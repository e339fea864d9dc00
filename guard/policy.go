package guard

import (
	"net/url"
	"path"
	"slices"
	"strings"

	"github.com/jrsteele09/openleaf-portal/roles"
)

// Rule allows a set of roles onto the paths matched by Pattern. Pattern segments written as
// {name} match any single non-empty segment.
type Rule struct {
	Pattern string
	Allowed []roles.Role

	segments []string
	literals int
}

// Policy is the static route table. Paths no rule matches are public.
type Policy struct {
	rules []Rule
}

func NewPolicy(rules ...Rule) Policy {
	compiled := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		rule.segments = splitPath(rule.Pattern)
		for _, segment := range rule.segments {
			if !isParam(segment) {
				rule.literals++
			}
		}
		rule.Allowed = slices.Clone(rule.Allowed)
		compiled = append(compiled, rule)
	}
	return Policy{rules: compiled}
}

// DefaultPolicy is the OpenLeaf route table.
func DefaultPolicy() Policy {
	patient := []roles.Role{roles.Patient}
	therapist := []roles.Role{roles.Therapist}
	careParticipant := []roles.Role{roles.Patient, roles.Therapist}
	admin := []roles.Role{roles.Admin}

	return NewPolicy(
		Rule{Pattern: "/dashboard", Allowed: patient},
		Rule{Pattern: "/journals", Allowed: patient},
		Rule{Pattern: "/journals/create", Allowed: patient},
		Rule{Pattern: "/journals/{id}", Allowed: patient},
		Rule{Pattern: "/find-therapist", Allowed: patient},
		Rule{Pattern: "/book-appointment/{therapistId}", Allowed: patient},

		Rule{Pattern: "/therapist/dashboard", Allowed: therapist},
		Rule{Pattern: "/therapist/patient/{patientId}", Allowed: therapist},
		Rule{Pattern: "/create-appointment-slot", Allowed: therapist},

		Rule{Pattern: "/my-appointments", Allowed: careParticipant},
		Rule{Pattern: "/appointments/{id}/cancel", Allowed: careParticipant},
		Rule{Pattern: "/delete-account", Allowed: careParticipant},

		Rule{Pattern: "/admin", Allowed: admin},
		Rule{Pattern: "/admin/assignments", Allowed: admin},
		Rule{Pattern: "/admin/assignments/{id}/delete", Allowed: admin},
	)
}

// Match returns the most specific rule for p: among rules of the same length, the one with
// the most literal segments wins.
func (p Policy) Match(requestPath string) (Rule, bool) {
	segments := splitPath(requestPath)

	var best Rule
	found := false
	for _, rule := range p.rules {
		if !rule.matches(segments) {
			continue
		}
		if !found || rule.literals > best.literals {
			best, found = rule, true
		}
	}
	return best, found
}

// Protected reports whether any rule covers requestPath.
func (p Policy) Protected(requestPath string) bool {
	_, ok := p.Match(requestPath)
	return ok
}

func (r Rule) matches(segments []string) bool {
	if len(segments) != len(r.segments) {
		return false
	}
	for i, want := range r.segments {
		if isParam(want) {
			if segments[i] == "" {
				return false
			}
			continue
		}
		if segments[i] != want {
			return false
		}
	}
	return true
}

// Permits reports whether any of held is allowed.
func (r Rule) Permits(held []roles.Role) bool {
	for _, role := range held {
		if slices.Contains(r.Allowed, role) {
			return true
		}
	}
	return false
}

// splitPath cleans an escaped path and unescapes each segment on its own, matching how the
// mux compares segments.
func splitPath(p string) []string {
	cleaned := path.Clean("/" + p)
	if cleaned == "/" {
		return nil
	}
	segments := strings.Split(strings.TrimPrefix(cleaned, "/"), "/")
	for i, segment := range segments {
		if unescaped, err := url.PathUnescape(segment); err == nil {
			segments[i] = unescaped
		}
	}
	return segments
}

func isParam(segment string) bool {
	return len(segment) > 2 && strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}")
}
