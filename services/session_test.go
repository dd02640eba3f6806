package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hocvui-edu/hocvui_api/model"
	"github.com/hocvui-edu/hocvui_api/shared"
)

func seedAccount(t *testing.T, identitySvc *IdentityService, email, password string) *model.Identity {
	t.Helper()
	identity, err := identitySvc.Create(model.IdentityDraft{
		FirstName: "An",
		LastName:  "Nguyen",
		Email:     email,
		Secret:    password,
		Role:      model.RoleUser,
	})
	require.NoError(t, err)
	return identity
}

func TestSessionService_CurrentSessionDefaultsToAnonymous(t *testing.T) {
	svc := newTestSessionService(newTestIdentityService(newFakeIdentityRepo()))

	session := svc.CurrentSession(context.Background(), "device-1")
	require.NotNil(t, session)
	assert.Equal(t, model.SessionAnonymous, session.State)
	assert.Equal(t, "device-1", session.Slot)
}

func TestSessionService_StartGuestSession(t *testing.T) {
	svc := newTestSessionService(newTestIdentityService(newFakeIdentityRepo()))

	session, err := svc.StartGuestSession(context.Background(), "device-1", model.GuestHints{GradeLevel: "10"})
	require.NoError(t, err)

	assert.Equal(t, model.SessionGuest, session.State)
	assert.NotEmpty(t, session.Token)
	assert.NotEmpty(t, session.IdentityID)
	require.NotNil(t, session.GuestProgress)
	assert.Zero(t, session.GuestProgress.PointsEarned)
}

func TestSessionService_StartGuestSessionRejectsUnknownGrade(t *testing.T) {
	svc := newTestSessionService(newTestIdentityService(newFakeIdentityRepo()))

	_, err := svc.StartGuestSession(context.Background(), "device-1", model.GuestHints{GradeLevel: "13"})
	require.Error(t, err)
	assert.True(t, shared.IsKind(err, shared.KindValidation))
}

// Starting a guest session while one is already active is a deliberate
// reset: new token, empty progress.
func TestSessionService_RestartGuestSessionResetsProgress(t *testing.T) {
	svc := newTestSessionService(newTestIdentityService(newFakeIdentityRepo()))
	ctx := context.Background()

	first, err := svc.StartGuestSession(ctx, "device-1", model.GuestHints{})
	require.NoError(t, err)

	_, err = svc.RecordGuestActivity(ctx, "device-1", model.ProgressUpdate{PointsDelta: 50})
	require.NoError(t, err)

	second, err := svc.StartGuestSession(ctx, "device-1", model.GuestHints{})
	require.NoError(t, err)

	assert.NotEqual(t, first.Token, second.Token)
	assert.Zero(t, second.GuestProgress.PointsEarned)
}

func TestSessionService_StartGuestSessionOverAuthenticatedFails(t *testing.T) {
	identitySvc := newTestIdentityService(newFakeIdentityRepo())
	svc := newTestSessionService(identitySvc)
	ctx := context.Background()

	seedAccount(t, identitySvc, "an@example.com", "Passw0rd")
	_, err := svc.Login(ctx, "device-1", "an@example.com", "Passw0rd")
	require.NoError(t, err)

	_, err = svc.StartGuestSession(ctx, "device-1", model.GuestHints{})
	require.Error(t, err)
	assert.True(t, shared.IsKind(err, shared.KindIllegalState))
}

func TestSessionService_RecordGuestActivityAccumulates(t *testing.T) {
	svc := newTestSessionService(newTestIdentityService(newFakeIdentityRepo()))
	ctx := context.Background()

	_, err := svc.StartGuestSession(ctx, "device-1", model.GuestHints{})
	require.NoError(t, err)

	_, err = svc.RecordGuestActivity(ctx, "device-1", model.ProgressUpdate{
		LessonsViewed: []string{"math-101"},
	})
	require.NoError(t, err)

	session, err := svc.RecordGuestActivity(ctx, "device-1", model.ProgressUpdate{
		PointsDelta: 50,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"math-101"}, session.GuestProgress.LessonsViewed)
	assert.Equal(t, 50, session.GuestProgress.PointsEarned)
}

func TestSessionService_RecordGuestActivityRequiresGuest(t *testing.T) {
	svc := newTestSessionService(newTestIdentityService(newFakeIdentityRepo()))

	_, err := svc.RecordGuestActivity(context.Background(), "device-1", model.ProgressUpdate{PointsDelta: 1})
	require.Error(t, err)
	assert.True(t, shared.IsKind(err, shared.KindIllegalState))
}

func TestSessionService_RecordGuestActivityConcurrentUpdates(t *testing.T) {
	svc := newTestSessionService(newTestIdentityService(newFakeIdentityRepo()))
	ctx := context.Background()

	_, err := svc.StartGuestSession(ctx, "device-1", model.GuestHints{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordGuestActivity(ctx, "device-1", model.ProgressUpdate{PointsDelta: 5})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	session := svc.CurrentSession(ctx, "device-1")
	assert.Equal(t, 100, session.GuestProgress.PointsEarned)
}

// Unknown identifier and wrong password must be indistinguishable.
func TestSessionService_LoginFailureSecrecy(t *testing.T) {
	identitySvc := newTestIdentityService(newFakeIdentityRepo())
	svc := newTestSessionService(identitySvc)
	ctx := context.Background()

	seedAccount(t, identitySvc, "a@x.com", "Passw0rd")

	_, errUnknown := svc.Login(ctx, "device-1", "unknown@x.com", "anything")
	_, errWrongPass := svc.Login(ctx, "device-2", "a@x.com", "wrongpass")

	require.Error(t, errUnknown)
	require.Error(t, errWrongPass)

	appUnknown, ok := shared.GetAppError(errUnknown)
	require.True(t, ok)
	appWrong, ok := shared.GetAppError(errWrongPass)
	require.True(t, ok)

	assert.Equal(t, appUnknown.Kind, appWrong.Kind)
	assert.Equal(t, appUnknown.Message, appWrong.Message)
	assert.Equal(t, appUnknown.StatusCode, appWrong.StatusCode)
}

func TestSessionService_LoginInstallsAuthenticatedSession(t *testing.T) {
	identitySvc := newTestIdentityService(newFakeIdentityRepo())
	svc := newTestSessionService(identitySvc)
	ctx := context.Background()

	identity := seedAccount(t, identitySvc, "an@example.com", "Passw0rd")

	session, err := svc.Login(ctx, "device-1", "an@example.com", "Passw0rd")
	require.NoError(t, err)

	assert.Equal(t, model.SessionAuthenticated, session.State)
	assert.Equal(t, identity.ID, session.IdentityID)
	assert.Nil(t, session.GuestProgress)
	require.NotNil(t, session.ExpiresAt)

	stored, err := identitySvc.Get(identity.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLoginAt)
}

func TestSessionService_LoginIsCaseInsensitiveOnEmail(t *testing.T) {
	identitySvc := newTestIdentityService(newFakeIdentityRepo())
	svc := newTestSessionService(identitySvc)

	seedAccount(t, identitySvc, "An@Example.com", "Passw0rd")

	session, err := svc.Login(context.Background(), "device-1", "an@EXAMPLE.com", "Passw0rd")
	require.NoError(t, err)
	assert.Equal(t, model.SessionAuthenticated, session.State)
}

func TestSessionService_LoginOverGuestFails(t *testing.T) {
	identitySvc := newTestIdentityService(newFakeIdentityRepo())
	svc := newTestSessionService(identitySvc)
	ctx := context.Background()

	seedAccount(t, identitySvc, "an@example.com", "Passw0rd")
	_, err := svc.StartGuestSession(ctx, "device-1", model.GuestHints{})
	require.NoError(t, err)

	_, err = svc.Login(ctx, "device-1", "an@example.com", "Passw0rd")
	require.Error(t, err)
	assert.True(t, shared.IsKind(err, shared.KindIllegalState))
}

func TestSessionService_LogoutIsIdempotent(t *testing.T) {
	identitySvc := newTestIdentityService(newFakeIdentityRepo())
	svc := newTestSessionService(identitySvc)
	ctx := context.Background()

	seedAccount(t, identitySvc, "an@example.com", "Passw0rd")
	_, err := svc.Login(ctx, "device-1", "an@example.com", "Passw0rd")
	require.NoError(t, err)

	svc.Logout(ctx, "device-1")
	assert.Equal(t, model.SessionAnonymous, svc.CurrentSession(ctx, "device-1").State)

	// Nothing active, still fine.
	svc.Logout(ctx, "device-1")
	svc.Logout(ctx, "device-never-seen")
	assert.Equal(t, model.SessionAnonymous, svc.CurrentSession(ctx, "device-1").State)
}

func TestSessionService_AbandonGuestSession(t *testing.T) {
	identitySvc := newTestIdentityService(newFakeIdentityRepo())
	svc := newTestSessionService(identitySvc)
	ctx := context.Background()

	// No-op when anonymous.
	require.NoError(t, svc.AbandonGuestSession(ctx, "device-1"))

	_, err := svc.StartGuestSession(ctx, "device-1", model.GuestHints{})
	require.NoError(t, err)
	_, err = svc.RecordGuestActivity(ctx, "device-1", model.ProgressUpdate{PointsDelta: 10})
	require.NoError(t, err)

	require.NoError(t, svc.AbandonGuestSession(ctx, "device-1"))

	session := svc.CurrentSession(ctx, "device-1")
	assert.Equal(t, model.SessionAnonymous, session.State)
	assert.Nil(t, session.GuestProgress)

	// Abandoning an authenticated session is a programmer error.
	seedAccount(t, identitySvc, "an@example.com", "Passw0rd")
	_, err = svc.Login(ctx, "device-1", "an@example.com", "Passw0rd")
	require.NoError(t, err)

	err = svc.AbandonGuestSession(ctx, "device-1")
	require.Error(t, err)
	assert.True(t, shared.IsKind(err, shared.KindIllegalState))
}

func TestSessionService_RehydratesFromStore(t *testing.T) {
	identitySvc := newTestIdentityService(newFakeIdentityRepo())
	first := newTestSessionService(identitySvc)
	ctx := context.Background()

	_, err := first.StartGuestSession(ctx, "device-1", model.GuestHints{})
	require.NoError(t, err)
	_, err = first.RecordGuestActivity(ctx, "device-1", model.ProgressUpdate{PointsDelta: 30})
	require.NoError(t, err)

	// A second manager sharing the store picks the session up cold.
	second := newTestSessionService(identitySvc)
	second.store = first.store

	session := second.CurrentSession(ctx, "device-1")
	assert.Equal(t, model.SessionGuest, session.State)
	require.NotNil(t, session.GuestProgress)
	assert.Equal(t, 30, session.GuestProgress.PointsEarned)
}

func TestSessionService_RehydrationDegradesWhenIdentityVanished(t *testing.T) {
	repo := newFakeIdentityRepo()
	identitySvc := newTestIdentityService(repo)
	first := newTestSessionService(identitySvc)
	ctx := context.Background()

	identity := seedAccount(t, identitySvc, "an@example.com", "Passw0rd")
	_, err := first.Login(ctx, "device-1", "an@example.com", "Passw0rd")
	require.NoError(t, err)

	require.NoError(t, repo.Delete(identity.ID))

	second := newTestSessionService(identitySvc)
	second.store = first.store

	session := second.CurrentSession(ctx, "device-1")
	assert.Equal(t, model.SessionAnonymous, session.State)
}

func TestSessionService_ResolveBearer(t *testing.T) {
	identitySvc := newTestIdentityService(newFakeIdentityRepo())
	svc := newTestSessionService(identitySvc)
	ctx := context.Background()

	seedAccount(t, identitySvc, "an@example.com", "Passw0rd")
	session, err := svc.Login(ctx, "device-1", "an@example.com", "Passw0rd")
	require.NoError(t, err)

	resolved := svc.ResolveBearer(ctx, &SessionClaims{Slot: "device-1", SessionToken: session.Token})
	assert.Equal(t, model.SessionAuthenticated, resolved.State)

	// A stale token no longer matching the active session is anonymous.
	stale := svc.ResolveBearer(ctx, &SessionClaims{Slot: "device-1", SessionToken: "stale-token"})
	assert.Equal(t, model.SessionAnonymous, stale.State)
}

func TestSessionService_CancelledContextLeavesStateUntouched(t *testing.T) {
	svc := newTestSessionService(newTestIdentityService(newFakeIdentityRepo()))
	ctx := context.Background()

	_, err := svc.StartGuestSession(ctx, "device-1", model.GuestHints{})
	require.NoError(t, err)
	before, err := svc.RecordGuestActivity(ctx, "device-1", model.ProgressUpdate{PointsDelta: 10})
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()

	_, err = svc.RecordGuestActivity(cancelled, "device-1", model.ProgressUpdate{PointsDelta: 99})
	require.Error(t, err)

	after := svc.CurrentSession(ctx, "device-1")
	assert.Equal(t, before.GuestProgress.PointsEarned, after.GuestProgress.PointsEarned)
}
