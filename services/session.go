package services

import (
	gocontext "context"
	"os"
	"sync"
	"time"

	"github.com/alphabatem/common/context"
	"github.com/google/uuid"
	"github.com/hocvui-edu/hocvui_api/model"
	"github.com/hocvui-edu/hocvui_api/shared"
	log "github.com/sirupsen/logrus"
)

// SessionService owns the single active session per client slot. All state
// transitions are forward-only and each slot's read-modify-write runs under
// a per-slot lock, so a transition is never interleaved with another for the
// same slot. New state is always persisted before the in-memory value is
// swapped: a failed or cancelled call leaves the session exactly as it was.
type SessionService struct {
	context.DefaultService

	identitySvc *IdentityService
	redisSvc    *RedisService
	limiterSvc  *LoginLimiterService

	store SessionStore
	slots *keyedMutex

	mu       sync.RWMutex
	sessions map[string]*model.Session

	sessionTTL time.Duration
}

const SESSION_SVC = "session_svc"

func (svc SessionService) Id() string {
	return SESSION_SVC
}

func (svc *SessionService) Configure(ctx *context.Context) error {
	svc.identitySvc = ctx.Service(IDENTITY_SVC).(*IdentityService)
	svc.redisSvc = ctx.Service(REDIS_SVC).(*RedisService)
	svc.limiterSvc = ctx.Service(LOGIN_LIMITER_SVC).(*LoginLimiterService)

	svc.slots = newKeyedMutex()
	svc.sessions = map[string]*model.Session{}
	svc.sessionTTL = 30 * 24 * time.Hour

	return svc.DefaultService.Configure(ctx)
}

func (svc *SessionService) Start() error {
	if os.Getenv("SESSION_STORE") == "memory" {
		svc.store = newMemorySessionStore()
	} else {
		svc.store = newRedisSessionStore(svc.redisSvc, svc.sessionTTL)
	}
	return nil
}

// CurrentSession resolves the active session for a slot, rehydrating from
// the persistence port on first touch. It always resolves to a concrete
// state: a record that no longer maps to a live identity, or a store error,
// degrades to anonymous instead of erroring.
func (svc *SessionService) CurrentSession(ctx gocontext.Context, slot string) *model.Session {
	unlock := svc.slots.Lock(slot)
	defer unlock()
	return svc.resolveLocked(ctx, slot).Clone()
}

func (svc *SessionService) resolveLocked(ctx gocontext.Context, slot string) *model.Session {
	svc.mu.RLock()
	session, ok := svc.sessions[slot]
	svc.mu.RUnlock()
	if ok {
		return session
	}

	session = svc.rehydrate(ctx, slot)
	svc.mu.Lock()
	svc.sessions[slot] = session
	svc.mu.Unlock()
	return session
}

func (svc *SessionService) rehydrate(ctx gocontext.Context, slot string) *model.Session {
	record, err := svc.store.Load(ctx, slot)
	if err != nil {
		log.WithError(err).WithField("slot", slot).Warn("Session rehydration failed, degrading to anonymous")
		return anonymousSession(slot)
	}
	if record == nil {
		return anonymousSession(slot)
	}

	if record.ExpiresAt != nil && record.ExpiresAt.Before(time.Now()) {
		svc.clearStore(ctx, slot)
		return anonymousSession(slot)
	}

	session := &model.Session{
		Token:         record.Token,
		Slot:          slot,
		IdentityID:    record.IdentityID,
		State:         record.State,
		GuestProgress: record.GuestProgress,
		CreatedAt:     record.CreatedAt,
		ExpiresAt:     record.ExpiresAt,
	}

	if record.State == model.SessionAuthenticated {
		if _, err := svc.identitySvc.Get(record.IdentityID); err != nil {
			// The referenced identity vanished; silent downgrade, not a crash.
			svc.clearStore(ctx, slot)
			return anonymousSession(slot)
		}
	}

	if record.State == model.SessionGuest && session.GuestProgress == nil {
		session.GuestProgress = model.NewGuestProgress()
	}

	return session
}

// StartGuestSession installs a fresh guest session with empty progress.
// Starting again while already a guest replaces the previous guest session
// and its progress: a deliberate reset, not a merge.
func (svc *SessionService) StartGuestSession(ctx gocontext.Context, slot string, hints model.GuestHints) (*model.Session, error) {
	unlock := svc.slots.Lock(slot)
	defer unlock()

	current := svc.resolveLocked(ctx, slot)
	if current.State == model.SessionAuthenticated {
		return nil, shared.NewIllegalStateError("cannot start a guest session over an authenticated one")
	}

	if hints.GradeLevel != "" && !model.IsValidGradeLevel(hints.GradeLevel) {
		return nil, shared.NewFieldError("grade_level", "unknown grade level")
	}

	session := &model.Session{
		Token:         uuid.NewString(),
		Slot:          slot,
		IdentityID:    "guest_" + uuid.NewString(),
		State:         model.SessionGuest,
		GuestProgress: model.NewGuestProgress(),
		CreatedAt:     time.Now(),
	}

	if err := svc.install(ctx, slot, session); err != nil {
		return nil, err
	}

	guestSessionsStarted.Inc()
	log.WithField("slot", slot).Info("Guest session started")
	return session.Clone(), nil
}

// RecordGuestActivity folds an activity update into the active guest
// session's progress. The merged snapshot is persisted before the owned
// value is replaced, so a failure leaves the previous snapshot intact.
func (svc *SessionService) RecordGuestActivity(ctx gocontext.Context, slot string, update model.ProgressUpdate) (*model.Session, error) {
	unlock := svc.slots.Lock(slot)
	defer unlock()

	current := svc.resolveLocked(ctx, slot)
	if current.State != model.SessionGuest {
		return nil, shared.NewIllegalStateError("no active guest session to record activity for")
	}

	merged, err := ApplyProgress(current.GuestProgress, update)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	next.GuestProgress = merged

	if err := svc.install(ctx, slot, next); err != nil {
		return nil, err
	}

	return next.Clone(), nil
}

// Login authenticates against the identity store. The error is identical for
// an unknown identifier and a wrong secret. An active guest session must be
// upgraded or abandoned first; logging in over it would silently destroy its
// progress.
func (svc *SessionService) Login(ctx gocontext.Context, slot, identifier, secret string) (*model.Session, error) {
	unlock := svc.slots.Lock(slot)
	defer unlock()

	current := svc.resolveLocked(ctx, slot)
	if current.State == model.SessionGuest {
		return nil, shared.NewIllegalStateError("guest session active: upgrade or abandon it before logging in")
	}

	allowed, retryAfter := svc.limiterSvc.Allow(ctx, identifier)
	if !allowed {
		loginAttempts.WithLabelValues("rate_limited").Inc()
		return nil, shared.NewRateLimitedError("Too many login attempts, retry after " + retryAfter.String())
	}

	identity, err := svc.identitySvc.FindByEmailOrMobile(identifier)
	if err != nil {
		if shared.IsKind(err, shared.KindNotFound) {
			loginAttempts.WithLabelValues("failure").Inc()
			return nil, shared.NewAuthenticationError()
		}
		return nil, err
	}

	if !svc.identitySvc.VerifyCredential(identity, secret) {
		loginAttempts.WithLabelValues("failure").Inc()
		return nil, shared.NewAuthenticationError()
	}

	session, err := svc.installAuthenticatedLocked(ctx, slot, identity)
	if err != nil {
		return nil, err
	}

	svc.limiterSvc.Reset(ctx, identifier)
	loginAttempts.WithLabelValues("success").Inc()
	log.WithField("identity_id", identity.ID).Info("Login successful")
	return session.Clone(), nil
}

// InstallAuthenticatedSession replaces whatever the slot held with a new
// authenticated session for the given identity. The upgrade transaction uses
// this as its commit point: the guest session and its consumed progress are
// destroyed in the same swap.
func (svc *SessionService) InstallAuthenticatedSession(ctx gocontext.Context, slot string, identity *model.Identity) (*model.Session, error) {
	unlock := svc.slots.Lock(slot)
	defer unlock()

	svc.resolveLocked(ctx, slot)
	session, err := svc.installAuthenticatedLocked(ctx, slot, identity)
	if err != nil {
		return nil, err
	}
	return session.Clone(), nil
}

func (svc *SessionService) installAuthenticatedLocked(ctx gocontext.Context, slot string, identity *model.Identity) (*model.Session, error) {
	expires := time.Now().Add(svc.sessionTTL)
	session := &model.Session{
		Token:      uuid.NewString(),
		Slot:       slot,
		IdentityID: identity.ID,
		State:      model.SessionAuthenticated,
		CreatedAt:  time.Now(),
		ExpiresAt:  &expires,
	}

	if err := svc.install(ctx, slot, session); err != nil {
		return nil, err
	}

	now := time.Now()
	if _, err := svc.identitySvc.Update(identity.ID, model.IdentityPatch{LastLoginAt: &now}); err != nil {
		log.WithError(err).WithField("identity_id", identity.ID).Warn("Failed to update last login timestamp")
	}

	return session, nil
}

// Logout clears the slot back to anonymous. Idempotent: succeeds even when
// no session was active, and never surfaces an error to the caller.
func (svc *SessionService) Logout(ctx gocontext.Context, slot string) {
	unlock := svc.slots.Lock(slot)
	defer unlock()

	svc.clearStore(ctx, slot)
	svc.mu.Lock()
	svc.sessions[slot] = anonymousSession(slot)
	svc.mu.Unlock()
}

// AbandonGuestSession permanently discards the guest identity stub and its
// progress. No-op when the slot is already anonymous; abandoning an
// authenticated session is a programmer error, that path is Logout.
func (svc *SessionService) AbandonGuestSession(ctx gocontext.Context, slot string) error {
	unlock := svc.slots.Lock(slot)
	defer unlock()

	current := svc.resolveLocked(ctx, slot)
	if current.State == model.SessionAuthenticated {
		return shared.NewIllegalStateError("cannot abandon an authenticated session")
	}
	if current.State == model.SessionAnonymous {
		return nil
	}

	svc.clearStore(ctx, slot)
	svc.mu.Lock()
	svc.sessions[slot] = anonymousSession(slot)
	svc.mu.Unlock()

	log.WithField("slot", slot).Info("Guest session abandoned")
	return nil
}

// ResolveBearer maps verified JWT claims to the slot's session. A session
// token that no longer matches the active session resolves to anonymous.
func (svc *SessionService) ResolveBearer(ctx gocontext.Context, claims *SessionClaims) *model.Session {
	session := svc.CurrentSession(ctx, claims.Slot)
	if session.Token == "" || session.Token != claims.SessionToken {
		return anonymousSession(claims.Slot)
	}
	return session
}

// install persists the new session state and only then swaps the owned
// value. A cancelled context aborts before anything is visible.
func (svc *SessionService) install(ctx gocontext.Context, slot string, session *model.Session) error {
	if err := ctx.Err(); err != nil {
		return shared.NewInternalError(err, "Operation cancelled")
	}

	record := &SessionRecord{
		Token:         session.Token,
		IdentityID:    session.IdentityID,
		State:         session.State,
		GuestProgress: session.GuestProgress,
		CreatedAt:     session.CreatedAt,
		ExpiresAt:     session.ExpiresAt,
	}
	if err := svc.store.Save(ctx, slot, record); err != nil {
		return shared.NewInternalError(err, "Failed to persist session")
	}

	svc.mu.Lock()
	svc.sessions[slot] = session
	svc.mu.Unlock()
	return nil
}

func (svc *SessionService) clearStore(ctx gocontext.Context, slot string) {
	if err := svc.store.Clear(ctx, slot); err != nil {
		log.WithError(err).WithField("slot", slot).Warn("Failed to clear persisted session")
	}
}

func anonymousSession(slot string) *model.Session {
	return &model.Session{
		Slot:      slot,
		State:     model.SessionAnonymous,
		CreatedAt: time.Now(),
	}
}
