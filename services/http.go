package services

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	log "github.com/sirupsen/logrus"

	"github.com/hocvui-edu/hocvui_api/middleware"
	"github.com/hocvui-edu/hocvui_api/model"
	"github.com/hocvui-edu/hocvui_api/services/handlers"
	"github.com/hocvui-edu/hocvui_api/shared"
)

type HttpService struct {
	context.DefaultService

	guardSvc      *GuardService
	jwtSvc        *JWTService
	sessionSvc    *SessionService
	identitySvc   *IdentityService
	upgradeSvc    *UpgradeService
	monitoringSvc *MonitoringService

	port   int
	server *fiber.App
}

const HTTP_SVC = "http_svc"

func (svc HttpService) Id() string {
	return HTTP_SVC
}

func (svc *HttpService) Configure(ctx *context.Context) error {
	if port := os.Getenv("HTTP_PORT"); port != "" {
		var err error
		if svc.port, err = strconv.Atoi(port); err != nil {
			return err
		}
	} else {
		svc.port = 8000
	}

	svc.guardSvc = ctx.Service(GUARD_SVC).(*GuardService)
	svc.jwtSvc = ctx.Service(JWT_SVC).(*JWTService)
	svc.sessionSvc = ctx.Service(SESSION_SVC).(*SessionService)
	svc.identitySvc = ctx.Service(IDENTITY_SVC).(*IdentityService)
	svc.upgradeSvc = ctx.Service(UPGRADE_SVC).(*UpgradeService)
	svc.monitoringSvc = ctx.Service(MONITORING_SVC).(*MonitoringService)

	return svc.DefaultService.Configure(ctx)
}

func (svc *HttpService) Start() error {
	app := fiber.New(fiber.Config{
		AppName:      SERVICE_NAME,
		JSONEncoder:  shared.JSONEncoder,
		JSONDecoder:  shared.JSONDecoder,
		ErrorHandler: svc.handleError,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + shared.DeviceIDHeader,
	}))
	app.Use(MonitoringMiddleware(svc.monitoringSvc))

	svc.registerRoutes(app)

	app.Use(func(c *fiber.Ctx) error {
		return shared.NewNotFoundError("Page not found")
	})

	svc.server = app

	log.WithField("port", svc.port).Info("HTTP server starting")
	return app.Listen(fmt.Sprintf(":%v", svc.port))
}

func (svc *HttpService) Shutdown() {
	if svc.server != nil {
		_ = svc.server.Shutdown()
	}
}

func (svc *HttpService) registerRoutes(app *fiber.App) {
	authHandler := handlers.NewAuthHandler(svc.sessionSvc, svc.identitySvc, svc.upgradeSvc, svc.jwtSvc)
	guestHandler := handlers.NewGuestHandler(svc.sessionSvc)

	// A resolved slot is all these need; state rules are enforced by the
	// session manager itself.
	open := svc.guardSvc.Require(middleware.RouteRequirement{})

	authenticated := svc.guardSvc.Require(middleware.RouteRequirement{
		AuthRequired: true,
		AllowedRoles: []string{model.RoleUser, model.RoleAdmin},
	})

	adminOnly := svc.guardSvc.Require(middleware.RouteRequirement{
		AuthRequired: true,
		AllowedRoles: []string{model.RoleAdmin},
	})

	app.Get("/ping", svc.ping)

	v1 := app.Group("/api/v1")
	v1.Get("/ping", svc.ping)

	guest := v1.Group("/guest")
	guest.Post("/session", open, guestHandler.StartSession)
	guest.Post("/activity", open, guestHandler.RecordActivity)
	guest.Delete("/session", open, guestHandler.AbandonSession)

	v1.Post("/register", open, authHandler.Register)
	v1.Post("/login", open, authHandler.Login)
	v1.Post("/logout", open, authHandler.Logout)
	v1.Get("/me", authenticated, authHandler.Me)

	v1.Post("/forgot-password", open, authHandler.ForgotPassword)
	v1.Post("/reset-password", open, authHandler.ResetPassword)

	admin := v1.Group("/admin")
	admin.Get("/identities", adminOnly, authHandler.ListIdentities)
}

// @Summary Ping
// @Description This endpoint checks the health of the service
// @Tags health
// @Accept  json
// @Produce json
// @Success 200 {object} shared.Response{data=string}
// @Router /ping [get]
func (svc *HttpService) ping(c *fiber.Ctx) error {
	c.Set(fiber.HeaderCacheControl, "max-age=10")

	return shared.ResponseOK(c, "pong")
}

func (svc *HttpService) handleError(c *fiber.Ctx, err error) error {
	if appErr, ok := shared.GetAppError(err); ok {
		return shared.ResponseJSON(c, appErr.StatusCode, appErr.Message, appErr.Data)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return shared.ResponseJSON(c, fiberErr.Code, fiberErr.Message, nil)
	}

	log.WithError(err).Error("Unhandled request error")
	return shared.ResponseInternalError(c, err)
}
