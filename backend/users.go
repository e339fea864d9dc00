package backend

import (
	"context"
	"net/http"

	errs "github.com/jrsteele09/openleaf-portal/internal/errors"
	"github.com/jrsteele09/openleaf-portal/session"
	"github.com/jrsteele09/openleaf-portal/token"
)

var _ session.Registrar = (*Users)(nil)

type Users struct {
	api       Doer
	baseURL   string
	validator *payloadValidator
}

// Register upserts the signed-in user from their claims.
func (u *Users) Register(ctx context.Context, claims *token.Claims) error {
	if claims == nil {
		return errs.Wrapf(ErrInvalidPayload, "no claims to register")
	}
	req := RegisterUserRequest{
		KeycloakID: claims.Subject,
		Username:   claims.PreferredUsername,
		Email:      claims.Email,
		FirstName:  claims.GivenName,
		LastName:   claims.FamilyName,
	}
	if err := u.validator.Validate(req); err != nil {
		return err
	}
	return errs.Wrapf(u.api.Do(ctx, http.MethodPost, join(u.baseURL, "register"), req, nil), "[backend Users.Register] %s", claims.Subject)
}

func (u *Users) Me(ctx context.Context) (*User, error) {
	var me User
	if err := u.api.Do(ctx, http.MethodGet, join(u.baseURL, "me"), nil, &me); err != nil {
		return nil, errs.Wrapf(err, "[backend Users.Me]")
	}
	return &me, nil
}

func (u *Users) Therapists(ctx context.Context) ([]User, error) {
	var therapists []User
	if err := u.api.Do(ctx, http.MethodGet, join(u.baseURL, "therapists"), nil, &therapists); err != nil {
		return nil, errs.Wrapf(err, "[backend Users.Therapists]")
	}
	return therapists, nil
}

// Delete removes the user's account and all their data.
func (u *Users) Delete(ctx context.Context, keycloakID, reason string) error {
	if err := requireSegment("keycloakId", keycloakID); err != nil {
		return err
	}
	req := DeleteUserRequest{Reason: reason}
	if err := u.validator.Validate(req); err != nil {
		return err
	}
	return errs.Wrapf(u.api.Do(ctx, http.MethodDelete, join(u.baseURL, keycloakID), req, nil), "[backend Users.Delete] %s", keycloakID)
}
