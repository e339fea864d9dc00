// Package backend wraps the OpenLeaf REST backend: users, journals, scheduling and therapist
// assignments. Every call goes through one API client, which attaches the caller's bearer token.
package backend

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/jrsteele09/openleaf-portal/internal/config"
	errs "github.com/jrsteele09/openleaf-portal/internal/errors"
)

// Doer sends one JSON request. *apiclient.Client satisfies it.
type Doer interface {
	Do(ctx context.Context, method, url string, in, out any) error
}

// Services groups the backend services of one application instance.
type Services struct {
	Users       *Users
	Journals    *Journals
	Scheduling  *Scheduling
	Assignments *Assignments
}

func New(api Doer, cfg config.BackendConfig) *Services {
	v := newPayloadValidator()
	return &Services{
		Users:       &Users{api: api, baseURL: cfg.GetUsersURL(), validator: v},
		Journals:    &Journals{api: api, baseURL: cfg.GetJournalsURL(), validator: v},
		Scheduling:  &Scheduling{api: api, baseURL: cfg.GetAppointmentsURL(), validator: v},
		Assignments: &Assignments{api: api, baseURL: cfg.GetAssignmentsURL(), validator: v},
	}
}

func join(baseURL string, segments ...string) string {
	joined, err := url.JoinPath(baseURL, segments...)
	if err != nil {
		// Base URLs come from configuration; a malformed one fails on dispatch instead.
		return baseURL
	}
	return joined
}

// requireSegment rejects identifiers that cannot stand as a single URL path segment.
func requireSegment(name, value string) error {
	if value == "" {
		return errs.Wrapf(ErrInvalidPayload, "%s is required", name)
	}
	if value == "." || value == ".." || strings.ContainsAny(value, "/\\") {
		return errs.Wrapf(ErrInvalidPayload, "%s is not a valid identifier", name)
	}
	return nil
}

func idSegment(id int64) string {
	return strconv.FormatInt(id, 10)
}
