package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hocvui-edu/hocvui_api/model"
	"github.com/hocvui-edu/hocvui_api/shared"
)

func TestLoginLimiter_RejectsPastLimit(t *testing.T) {
	limiter := newTestLoginLimiter(newFakeAttemptCounter(), 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, retryAfter := limiter.Allow(ctx, "a@x.com")
		assert.True(t, allowed)
		assert.Zero(t, retryAfter)
	}

	allowed, retryAfter := limiter.Allow(ctx, "a@x.com")
	assert.False(t, allowed)
	assert.Equal(t, time.Minute, retryAfter)

	// Other identifiers keep their own window.
	allowed, _ = limiter.Allow(ctx, "b@x.com")
	assert.True(t, allowed)
}

func TestLoginLimiter_RetryAfterFallsBackToWindow(t *testing.T) {
	counter := newFakeAttemptCounter()
	counter.ttlErr = errors.New("ttl unavailable")
	limiter := newTestLoginLimiter(counter, 1)
	ctx := context.Background()

	allowed, _ := limiter.Allow(ctx, "a@x.com")
	require.True(t, allowed)

	allowed, retryAfter := limiter.Allow(ctx, "a@x.com")
	assert.False(t, allowed)
	assert.Equal(t, limiter.window, retryAfter)
}

func TestLoginLimiter_ResetReopensWindow(t *testing.T) {
	limiter := newTestLoginLimiter(newFakeAttemptCounter(), 1)
	ctx := context.Background()

	allowed, _ := limiter.Allow(ctx, "a@x.com")
	require.True(t, allowed)
	allowed, _ = limiter.Allow(ctx, "a@x.com")
	require.False(t, allowed)

	limiter.Reset(ctx, "a@x.com")

	allowed, _ = limiter.Allow(ctx, "a@x.com")
	assert.True(t, allowed)
}

func TestLoginLimiter_KeyIsCaseInsensitive(t *testing.T) {
	limiter := newTestLoginLimiter(newFakeAttemptCounter(), 2)
	ctx := context.Background()

	limiter.Allow(ctx, "A@X.com")
	limiter.Allow(ctx, "a@x.COM")

	allowed, _ := limiter.Allow(ctx, " a@x.com ")
	assert.False(t, allowed)
}

func TestSessionService_LoginRejectedWhenRateLimited(t *testing.T) {
	identitySvc := newTestIdentityService(newFakeIdentityRepo())
	seedAccount(t, identitySvc, "a@x.com", "Password1")

	svc := newTestSessionService(identitySvc)
	svc.limiterSvc = newTestLoginLimiter(newFakeAttemptCounter(), 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.Login(ctx, "device-1", "a@x.com", "wrongpass")
		require.Error(t, err)
		assert.True(t, shared.IsKind(err, shared.KindAuthentication))
	}

	// Correct credentials are rejected too: the limiter fires before the
	// secret is ever checked.
	_, err := svc.Login(ctx, "device-1", "a@x.com", "Password1")
	require.Error(t, err)
	appErr, ok := shared.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, shared.KindRateLimited, appErr.Kind)
	assert.Equal(t, 429, appErr.StatusCode)

	session := svc.CurrentSession(ctx, "device-1")
	assert.Equal(t, model.SessionAnonymous, session.State)
}
