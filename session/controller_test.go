package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/jrsteele09/openleaf-portal/apiclient"
	"github.com/jrsteele09/openleaf-portal/session"
	"github.com/jrsteele09/openleaf-portal/session/identityfake"
	"github.com/jrsteele09/openleaf-portal/token"
	"github.com/jrsteele09/openleaf-portal/token/tokenfake"
	"github.com/stretchr/testify/require"
)

var errProviderDown = errors.New("provider down")

type recordingRegistrar struct {
	mu       sync.Mutex
	subjects []string
	err      error
}

func (r *recordingRegistrar) Register(_ context.Context, claims *token.Claims) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subjects = append(r.subjects, claims.Subject)
	return r.err
}

func (r *recordingRegistrar) Subjects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.subjects...)
}

type controllerFixture struct {
	idp       *identityfake.FakeIdentityProvider
	clock     *clock.Mock
	api       *apiclient.Client
	registrar *recordingRegistrar
	ctrl      *session.Controller
}

func newControllerFixture(t *testing.T, options ...session.Option) *controllerFixture {
	t.Helper()
	f := &controllerFixture{
		idp:       identityfake.NewFakeIdentityProvider(),
		clock:     clock.NewMock(),
		api:       apiclient.New(),
		registrar: &recordingRegistrar{},
	}
	opts := append([]session.Option{
		session.WithClock(f.clock),
		session.WithDecoratorRegistry(f.api),
		session.WithRegistrar(f.registrar),
	}, options...)
	f.ctrl = session.NewController(f.idp, opts...)
	t.Cleanup(f.ctrl.Stop)
	return f
}

func (f *controllerFixture) login(t *testing.T, validity time.Duration) session.Session {
	t.Helper()
	f.idp.SetAuthenticated(identityfake.TokenFor(tokenfake.PatientClaims(), f.clock.Now().Add(validity)))
	established, err := f.ctrl.Initialize(context.Background())
	require.NoError(t, err)
	require.True(t, established.Authenticated)
	return established
}

func TestController_InitializeSuccess(t *testing.T) {
	f := newControllerFixture(t)
	established := f.login(t, 5*time.Minute)

	require.True(t, f.ctrl.Authenticated())
	require.Equal(t, "patient-kc-123", established.Claims.Subject)
	require.Equal(t, established.AccessToken, f.ctrl.Store().AccessToken())
	require.Equal(t, "patient-kc-123", f.ctrl.Claims().Subject)
	require.Equal(t, 1, f.api.Decorators())
	require.Equal(t, []string{"patient-kc-123"}, f.registrar.Subjects())
}

func TestController_InitializeAuthRequired(t *testing.T) {
	f := newControllerFixture(t)

	_, err := f.ctrl.Initialize(context.Background())
	require.ErrorIs(t, err, session.ErrAuthRequired)
	require.False(t, f.ctrl.Authenticated())
	require.Nil(t, f.ctrl.Claims())
	require.False(t, f.ctrl.Store().Present())
	require.Equal(t, 0, f.api.Decorators())
}

func TestController_InitializeFailure(t *testing.T) {
	f := newControllerFixture(t)
	f.idp.SetAuthenticateError(errProviderDown)

	_, err := f.ctrl.Initialize(context.Background())
	require.ErrorIs(t, err, session.ErrInitialization)
	require.ErrorIs(t, err, errProviderDown)
	require.False(t, f.ctrl.Authenticated())
	require.Equal(t, 0, f.api.Decorators())
}

func TestController_InitializeMalformedTokenFailsClosed(t *testing.T) {
	f := newControllerFixture(t)
	tok := identityfake.TokenFor(tokenfake.PatientClaims(), f.clock.Now().Add(time.Minute))
	tok.AccessToken = "not-a-jwt"
	f.idp.SetAuthenticated(tok)

	_, err := f.ctrl.Initialize(context.Background())
	require.ErrorIs(t, err, session.ErrInitialization)
	require.ErrorIs(t, err, token.ErrMalformedClaims)
	require.False(t, f.ctrl.Authenticated())
	require.False(t, f.ctrl.Store().Present())
	require.Empty(t, f.registrar.Subjects())
}

func TestController_RegistrationFailureDoesNotBlockSession(t *testing.T) {
	f := newControllerFixture(t)
	f.registrar.err = errProviderDown

	f.login(t, time.Minute)
	require.True(t, f.ctrl.Authenticated())
}

func TestController_ConcurrentInitializeCollapses(t *testing.T) {
	f := newControllerFixture(t)
	f.idp.SetAuthenticated(identityfake.TokenFor(tokenfake.PatientClaims(), f.clock.Now().Add(time.Minute)))
	f.idp.AuthenticateGate = make(chan struct{})

	var wg sync.WaitGroup
	results := make([]session.Session, 5)
	errs := make([]error, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.ctrl.Initialize(context.Background())
		}(i)
	}

	require.Eventually(t, func() bool { return f.idp.AuthenticateCalls() == 1 }, time.Second, time.Millisecond)
	close(f.idp.AuthenticateGate)
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		require.Equal(t, results[0].AccessToken, results[i].AccessToken)
	}
	require.Equal(t, 1, f.idp.AuthenticateCalls())
	require.Equal(t, 1, f.api.Decorators())
}

func TestController_InitializeWhenAuthenticatedReturnsLiveSession(t *testing.T) {
	f := newControllerFixture(t)
	first := f.login(t, time.Minute)

	again, err := f.ctrl.Initialize(context.Background())
	require.NoError(t, err)
	require.Equal(t, first.AccessToken, again.AccessToken)
	require.Equal(t, 1, f.idp.AuthenticateCalls())
}

func TestController_RefreshNotNeeded(t *testing.T) {
	f := newControllerFixture(t)
	f.login(t, 5*time.Minute)

	rotated, err := f.ctrl.Refresh(context.Background(), 30*time.Second)
	require.NoError(t, err)
	require.False(t, rotated)
	require.Equal(t, 0, f.idp.RefreshCalls())
}

func TestController_RefreshRotatesToken(t *testing.T) {
	f := newControllerFixture(t)
	before := f.login(t, 20*time.Second)

	next := identityfake.TokenFor(tokenfake.NewClaims("patient-kc-123", "john.doe", time.Hour, "client_user"), f.clock.Now().Add(5*time.Minute))
	next.RefreshToken = ""
	f.idp.QueueRefresh(next)

	rotated, err := f.ctrl.Refresh(context.Background(), 30*time.Second)
	require.NoError(t, err)
	require.True(t, rotated)

	after := f.ctrl.Session()
	require.True(t, after.Authenticated)
	require.Equal(t, next.AccessToken, after.AccessToken)
	require.Equal(t, next.AccessToken, f.ctrl.Store().AccessToken())
	require.Equal(t, before.RefreshToken, after.RefreshToken)
	require.Equal(t, 1, f.api.Decorators())
}

func TestController_RefreshRequiresSession(t *testing.T) {
	f := newControllerFixture(t)

	_, err := f.ctrl.Refresh(context.Background(), 30*time.Second)
	require.ErrorIs(t, err, session.ErrNotAuthenticated)
}

func TestController_RefreshFailureDeauthenticates(t *testing.T) {
	f := newControllerFixture(t)
	f.login(t, 10*time.Second)
	f.idp.QueueRefreshError(errProviderDown)

	_, err := f.ctrl.Refresh(context.Background(), 30*time.Second)
	require.ErrorIs(t, err, session.ErrSessionLost)
	require.ErrorIs(t, err, session.ErrRefreshFailed)
	require.ErrorIs(t, err, errProviderDown)

	require.False(t, f.ctrl.Authenticated())
	require.Nil(t, f.ctrl.Claims())
	require.False(t, f.ctrl.Store().Present())
	require.Equal(t, 0, f.api.Decorators())
}

func TestController_RefreshFailureAllowance(t *testing.T) {
	f := newControllerFixture(t, session.WithFailureLimit(3))
	f.login(t, 10*time.Second)

	f.idp.QueueRefreshError(errProviderDown)
	f.idp.QueueRefreshError(errProviderDown)
	for range 2 {
		_, err := f.ctrl.Refresh(context.Background(), 30*time.Second)
		require.ErrorIs(t, err, session.ErrRefreshFailed)
		require.NotErrorIs(t, err, session.ErrSessionLost)
		require.True(t, f.ctrl.Authenticated())
	}

	// A success resets the count.
	f.idp.QueueRefresh(identityfake.TokenFor(tokenfake.PatientClaims(), f.clock.Now().Add(10*time.Second)))
	rotated, err := f.ctrl.Refresh(context.Background(), 30*time.Second)
	require.NoError(t, err)
	require.True(t, rotated)

	for range 3 {
		f.idp.QueueRefreshError(errProviderDown)
	}
	for i := range 3 {
		_, err := f.ctrl.Refresh(context.Background(), 30*time.Second)
		if i < 2 {
			require.NotErrorIs(t, err, session.ErrSessionLost)
			continue
		}
		require.ErrorIs(t, err, session.ErrSessionLost)
	}
	require.False(t, f.ctrl.Authenticated())
}

func TestController_RefreshMalformedTokenFailsClosed(t *testing.T) {
	f := newControllerFixture(t, session.WithFailureLimit(3))
	f.login(t, 10*time.Second)

	bad := identityfake.TokenFor(tokenfake.PatientClaims(), f.clock.Now().Add(time.Minute))
	bad.AccessToken = "garbage"
	f.idp.QueueRefresh(bad)

	_, err := f.ctrl.Refresh(context.Background(), 30*time.Second)
	require.ErrorIs(t, err, session.ErrSessionLost)
	require.False(t, f.ctrl.Authenticated())
	require.False(t, f.ctrl.Store().Present())
}

func TestController_RevalidateForcesRotation(t *testing.T) {
	f := newControllerFixture(t)
	f.login(t, time.Hour)

	f.idp.QueueRefresh(identityfake.TokenFor(tokenfake.TherapistClaims(), f.clock.Now().Add(time.Hour)))
	require.NoError(t, f.ctrl.Revalidate(context.Background()))
	require.Equal(t, 1, f.idp.RefreshCalls())
	require.Equal(t, "therapist-kc-123", f.ctrl.Claims().Subject)
}

func TestController_LogoutIsIdempotent(t *testing.T) {
	f := newControllerFixture(t, session.WithLogoutLocation("/goodbye"))
	f.login(t, time.Minute)

	require.Equal(t, "/goodbye", f.ctrl.Logout(context.Background()))
	require.Equal(t, "/goodbye", f.ctrl.Logout(context.Background()))

	require.Equal(t, 1, f.idp.EndSessionCalls())
	require.False(t, f.ctrl.Authenticated())
	require.False(t, f.ctrl.Store().Present())
	require.Equal(t, 0, f.api.Decorators())
}

func TestController_LogoutSurvivesEndSessionError(t *testing.T) {
	f := newControllerFixture(t)
	f.login(t, time.Minute)
	f.idp.SetEndSessionError(errProviderDown)

	require.Equal(t, "/", f.ctrl.Logout(context.Background()))
	require.False(t, f.ctrl.Authenticated())
}

func TestController_LoginLogoutCyclesKeepOneDecorator(t *testing.T) {
	f := newControllerFixture(t)

	for range 3 {
		f.login(t, time.Minute)
		require.Equal(t, 1, f.api.Decorators())
		f.ctrl.Logout(context.Background())
		require.Equal(t, 0, f.api.Decorators())
	}
	require.Equal(t, 3, f.idp.EndSessionCalls())
}

func TestController_RefreshResultDiscardedAfterLogout(t *testing.T) {
	f := newControllerFixture(t)
	f.login(t, 10*time.Second)
	f.idp.RefreshGate = make(chan struct{})
	f.idp.QueueRefresh(identityfake.TokenFor(tokenfake.PatientClaims(), f.clock.Now().Add(time.Hour)))

	errCh := make(chan error, 1)
	go func() {
		_, err := f.ctrl.Refresh(context.Background(), 30*time.Second)
		errCh <- err
	}()
	require.Eventually(t, func() bool { return f.idp.RefreshCalls() == 1 }, time.Second, time.Millisecond)

	f.ctrl.Logout(context.Background())
	close(f.idp.RefreshGate)

	require.ErrorIs(t, <-errCh, session.ErrNotAuthenticated)
	require.False(t, f.ctrl.Authenticated())
	require.False(t, f.ctrl.Store().Present())
	require.Equal(t, 0, f.api.Decorators())
}

func TestController_ExpireSkipsIdentityProvider(t *testing.T) {
	f := newControllerFixture(t)
	f.login(t, 5*time.Minute)
	f.ctrl.Start(context.Background())

	f.ctrl.Expire()
	require.False(t, f.ctrl.Authenticated())
	require.False(t, f.ctrl.Running())
	require.False(t, f.ctrl.Store().Present())
	require.Equal(t, 0, f.api.Decorators())

	require.Equal(t, "/", f.ctrl.Logout(context.Background()))
	require.Equal(t, 0, f.idp.EndSessionCalls())
}
