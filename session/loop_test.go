package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/openleaf-portal/session"
	"github.com/jrsteele09/openleaf-portal/session/identityfake"
	"github.com/jrsteele09/openleaf-portal/token/tokenfake"
	"github.com/stretchr/testify/require"
)

func TestTick_UnauthenticatedDoesNothing(t *testing.T) {
	f := newControllerFixture(t)

	rotated, err := f.ctrl.Tick(context.Background())
	require.NoError(t, err)
	require.False(t, rotated)
	require.Equal(t, 0, f.idp.RefreshCalls())
}

func TestTick_SkipsWhileRefreshInFlight(t *testing.T) {
	f := newControllerFixture(t)
	f.login(t, 10*time.Second)
	f.idp.RefreshGate = make(chan struct{})
	f.idp.QueueRefresh(identityfake.TokenFor(tokenfake.PatientClaims(), f.clock.Now().Add(time.Hour)))

	done := make(chan error, 1)
	go func() {
		_, err := f.ctrl.Tick(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return f.idp.RefreshCalls() == 1 }, time.Second, time.Millisecond)

	rotated, err := f.ctrl.Tick(context.Background())
	require.ErrorIs(t, err, session.ErrRefreshInFlight)
	require.False(t, rotated)

	close(f.idp.RefreshGate)
	require.NoError(t, <-done)
	require.Equal(t, 1, f.idp.RefreshCalls())
}

func TestLoop_RefreshesOnEveryInterval(t *testing.T) {
	f := newControllerFixture(t, session.WithRefreshInterval(time.Minute), session.WithMinValidity(30*time.Second))
	f.login(t, 10*time.Second)

	// Each rotated token is again close to expiry, so every tick rotates.
	for range 3 {
		f.idp.QueueRefresh(identityfake.TokenFor(tokenfake.PatientClaims(), f.clock.Now().Add(70*time.Second)))
	}

	f.ctrl.Start(context.Background())
	require.True(t, f.ctrl.Running())

	for i := 1; i <= 3; i++ {
		f.clock.Add(time.Minute)
		want := i
		require.Eventually(t, func() bool { return f.idp.RefreshCalls() == want }, time.Second, time.Millisecond)
	}
	require.True(t, f.ctrl.Authenticated())

	f.ctrl.Stop()
	require.False(t, f.ctrl.Running())

	f.clock.Add(time.Minute)
	require.Never(t, func() bool { return f.idp.RefreshCalls() > 3 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestLoop_FailedTickEndsSession(t *testing.T) {
	f := newControllerFixture(t)
	f.login(t, 10*time.Second)
	f.idp.QueueRefreshError(errProviderDown)

	f.ctrl.Start(context.Background())
	f.clock.Add(time.Minute)

	require.Eventually(t, func() bool { return !f.ctrl.Authenticated() }, time.Second, time.Millisecond)
	require.False(t, f.ctrl.Store().Present())
	require.Equal(t, 0, f.api.Decorators())
}

func TestLoop_LogoutStopsLoop(t *testing.T) {
	f := newControllerFixture(t)
	f.login(t, time.Hour)
	f.ctrl.Start(context.Background())
	f.ctrl.Start(context.Background())

	f.ctrl.Logout(context.Background())
	require.False(t, f.ctrl.Running())

	f.clock.Add(5 * time.Minute)
	require.Equal(t, 0, f.idp.RefreshCalls())
}
