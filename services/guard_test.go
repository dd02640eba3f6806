package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hocvui-edu/hocvui_api/middleware"
	"github.com/hocvui-edu/hocvui_api/model"
	"github.com/hocvui-edu/hocvui_api/shared"
)

func newTestGuardApp(t *testing.T, guard *GuardService) *fiber.App {
	t.Helper()
	app := fiber.New(fiber.Config{ErrorHandler: (&HttpService{}).handleError})
	requirement := middleware.RouteRequirement{
		AuthRequired: true,
		AllowedRoles: []string{model.RoleUser, model.RoleAdmin},
	}
	app.Get("/me", guard.Require(requirement), func(c *fiber.Ctx) error {
		return shared.ResponseOK(c, c.Locals(shared.IdentityKey))
	})
	return app
}

func TestGuardService_AllowsAuthenticatedSession(t *testing.T) {
	repo := newFakeIdentityRepo()
	identitySvc := newTestIdentityService(repo)
	sessionSvc := newTestSessionService(identitySvc)
	guard := &GuardService{jwtSvc: newTestJWTService(), sessionSvc: sessionSvc, identitySvc: identitySvc}

	seedAccount(t, identitySvc, "a@x.com", "Password1")
	_, err := sessionSvc.Login(context.Background(), "device-1", "a@x.com", "Password1")
	require.NoError(t, err)

	app := newTestGuardApp(t, guard)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(shared.DeviceIDHeader, "device-1")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGuardService_VanishedIdentityFallsBackToLogin(t *testing.T) {
	repo := newFakeIdentityRepo()
	identitySvc := newTestIdentityService(repo)
	sessionSvc := newTestSessionService(identitySvc)
	guard := &GuardService{jwtSvc: newTestJWTService(), sessionSvc: sessionSvc, identitySvc: identitySvc}

	identity := seedAccount(t, identitySvc, "a@x.com", "Password1")
	_, err := sessionSvc.Login(context.Background(), "device-1", "a@x.com", "Password1")
	require.NoError(t, err)

	// The account is removed while the session sits in the in-process cache.
	require.NoError(t, repo.Delete(identity.ID))

	app := newTestGuardApp(t, guard)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(shared.DeviceIDHeader, "device-1")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// The slot no longer carries the dangling authenticated session.
	session := sessionSvc.CurrentSession(context.Background(), "device-1")
	assert.Equal(t, model.SessionAnonymous, session.State)
}

func TestGuardService_MissingDeviceIDIsRejected(t *testing.T) {
	identitySvc := newTestIdentityService(newFakeIdentityRepo())
	sessionSvc := newTestSessionService(identitySvc)
	guard := &GuardService{jwtSvc: newTestJWTService(), sessionSvc: sessionSvc, identitySvc: identitySvc}

	app := newTestGuardApp(t, guard)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
