package services

import (
	gocontext "context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"
)

// attemptCounter is the slice of the redis surface the limiter needs.
type attemptCounter interface {
	Increment(ctx gocontext.Context, key string) (int64, error)
	Expire(ctx gocontext.Context, key string, expiration time.Duration) error
	TTL(ctx gocontext.Context, key string) (time.Duration, error)
	Delete(ctx gocontext.Context, keys ...string) error
}

// LoginLimiterService throttles credential guessing with a fixed window per
// identifier over redis. It fails open: a broken redis must not lock every
// user out.
type LoginLimiterService struct {
	context.DefaultService

	counter attemptCounter

	maxAttempts int64
	window      time.Duration
}

const LOGIN_LIMITER_SVC = "login_limiter_svc"

func (svc LoginLimiterService) Id() string {
	return LOGIN_LIMITER_SVC
}

func (svc *LoginLimiterService) Configure(ctx *context.Context) error {
	svc.counter = ctx.Service(REDIS_SVC).(*RedisService)

	svc.maxAttempts = 10
	if raw := os.Getenv("LOGIN_MAX_ATTEMPTS"); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil && v > 0 {
			svc.maxAttempts = v
		}
	}

	svc.window = 15 * time.Minute
	if raw := os.Getenv("LOGIN_ATTEMPT_WINDOW"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			svc.window = d
		}
	}

	return svc.DefaultService.Configure(ctx)
}

func (svc *LoginLimiterService) Start() error {
	return nil
}

// Allow counts an attempt and reports whether it may proceed, with the time
// until the window resets when it may not.
func (svc *LoginLimiterService) Allow(ctx gocontext.Context, identifier string) (bool, time.Duration) {
	key := svc.attemptKey(identifier)

	count, err := svc.counter.Increment(ctx, key)
	if err != nil {
		log.WithError(err).Warn("Login limiter unavailable, allowing attempt")
		return true, 0
	}

	if count == 1 {
		if err := svc.counter.Expire(ctx, key, svc.window); err != nil {
			log.WithError(err).Warn("Failed to set login limiter window")
		}
	}

	if count > svc.maxAttempts {
		ttl, err := svc.counter.TTL(ctx, key)
		if err != nil || ttl < 0 {
			ttl = svc.window
		}
		return false, ttl
	}

	return true, 0
}

// Reset clears the counter after a successful login.
func (svc *LoginLimiterService) Reset(ctx gocontext.Context, identifier string) {
	if err := svc.counter.Delete(ctx, svc.attemptKey(identifier)); err != nil {
		log.WithError(err).Warn("Failed to reset login limiter")
	}
}

func (svc *LoginLimiterService) attemptKey(identifier string) string {
	return "login_attempts:" + strings.ToLower(strings.TrimSpace(identifier))
}
