package services

import (
	"github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/hocvui-edu/hocvui_api/middleware"
	"github.com/hocvui-edu/hocvui_api/model"
	"github.com/hocvui-edu/hocvui_api/shared"
)

// GuardService resolves the caller's session from the request and enforces a
// route's access requirement. The decision itself lives in the middleware
// package; this service only adapts it to fiber.
type GuardService struct {
	context.DefaultService

	jwtSvc      *JWTService
	sessionSvc  *SessionService
	identitySvc *IdentityService
}

const GUARD_SVC = "guard_svc"

func (svc GuardService) Id() string {
	return GUARD_SVC
}

func (svc *GuardService) Configure(ctx *context.Context) error {
	svc.jwtSvc = ctx.Service(JWT_SVC).(*JWTService)
	svc.sessionSvc = ctx.Service(SESSION_SVC).(*SessionService)
	svc.identitySvc = ctx.Service(IDENTITY_SVC).(*IdentityService)
	return svc.DefaultService.Configure(ctx)
}

func (svc *GuardService) Start() error {
	return nil
}

// Require builds a fiber handler enforcing the given requirement. On success
// the resolved slot, session and identity id are stored in the request locals.
func (svc *GuardService) Require(requirement middleware.RouteRequirement) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session, err := svc.resolveSession(c)
		if err != nil {
			return err
		}

		role, session := svc.identityRole(c, session)

		switch decision := middleware.Decide(session, role, requirement); decision {
		case middleware.DecisionAllow:
			c.Locals(shared.SlotKey, session.Slot)
			c.Locals(shared.SessionKey, session)
			if session.IsAuthenticated() {
				c.Locals(shared.IdentityKey, session.IdentityID)
			}
			return c.Next()

		case middleware.DecisionRedirectToLogin:
			return shared.NewUnauthorizedError(nil, "Authentication required")

		case middleware.DecisionRedirectToGuestUpgrade:
			return shared.NewForbiddenError("An account is required, upgrade your guest session")

		case middleware.DecisionRedirectToUnauthorized:
			return shared.NewForbiddenError("You do not have access to this resource")

		default:
			log.WithField("decision", decision.String()).Error("Unresolvable access decision")
			return fiber.NewError(fiber.StatusServiceUnavailable, "Session could not be resolved")
		}
	}
}

// resolveSession finds the caller's session from the bearer token when one is
// presented, falling back to the device id header.
func (svc *GuardService) resolveSession(c *fiber.Ctx) (*model.Session, error) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader != "" {
		token, err := svc.jwtSvc.ExtractTokenFromHeader(authHeader)
		if err != nil {
			return nil, shared.NewUnauthorizedError(err, "Invalid authorization header")
		}

		claims, err := svc.jwtSvc.VerifyJWTToken(token)
		if err != nil {
			return nil, shared.NewUnauthorizedError(err, "Invalid JWT token")
		}

		return svc.sessionSvc.ResolveBearer(c.UserContext(), claims), nil
	}

	slot := c.Get(shared.DeviceIDHeader)
	if slot == "" {
		return nil, shared.NewBadRequestError(nil, "Missing device id")
	}

	return svc.sessionSvc.CurrentSession(c.UserContext(), slot), nil
}

// identityRole resolves the role behind an authenticated session. A session
// whose identity row has vanished is cleared: the slot falls back to
// anonymous rather than carrying a dangling authenticated state.
func (svc *GuardService) identityRole(c *fiber.Ctx, session *model.Session) (string, *model.Session) {
	if session == nil || !session.IsAuthenticated() {
		return "", session
	}

	identity, err := svc.identitySvc.Get(session.IdentityID)
	if err != nil {
		if shared.IsKind(err, shared.KindNotFound) {
			log.WithField("identity_id", session.IdentityID).Warn("Identity behind session no longer exists, clearing session")
			svc.sessionSvc.Logout(c.UserContext(), session.Slot)
			return "", svc.sessionSvc.CurrentSession(c.UserContext(), session.Slot)
		}
		log.WithError(err).WithField("identity_id", session.IdentityID).Warn("Failed to resolve identity for session")
		return "", session
	}
	return identity.Role, session
}
