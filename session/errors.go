package session

import (
	"errors"
	"fmt"

	errs "github.com/jrsteele09/openleaf-portal/internal/errors"
)

var (
	// ErrAuthRequired means no session exists yet and the interactive login flow must run.
	ErrAuthRequired = errs.ErrLoginRequired

	// ErrInitialization is fatal for the application instance: protected views must not render.
	ErrInitialization = errors.New("session initialization failed")

	// ErrRefreshFailed is returned for a failed token rotation.
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrSessionLost is returned by the refresh that used up the failure allowance and
	// deauthenticated the session. It matches ErrRefreshFailed.
	ErrSessionLost = fmt.Errorf("%w: session ended", ErrRefreshFailed)

	// ErrRefreshInFlight is returned by Tick when the previous refresh has not finished.
	ErrRefreshInFlight = errors.New("refresh already in flight")

	ErrNotAuthenticated = errs.ErrNotAuthenticated
)
