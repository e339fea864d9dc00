package keycloak

import (
	"github.com/pkg/errors"

	errs "github.com/jrsteele09/openleaf-portal/internal/errors"
)

var (
	ErrIdentityFailure = errs.ErrIdentityFailure
	ErrNonceMismatch   = errs.ErrNonceMismatch

	ErrInvalidLogoutToken = errors.New("invalid logout token")
)
