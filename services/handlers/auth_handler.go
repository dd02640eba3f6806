package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/hocvui-edu/hocvui_api/dto"
	"github.com/hocvui-edu/hocvui_api/shared"
)

type AuthHandler struct {
	sessionSvc  SessionServiceInterface
	identitySvc IdentityServiceInterface
	upgradeSvc  UpgradeServiceInterface
	jwtSvc      JWTServiceInterface
}

func NewAuthHandler(sessionSvc SessionServiceInterface, identitySvc IdentityServiceInterface, upgradeSvc UpgradeServiceInterface, jwtSvc JWTServiceInterface) *AuthHandler {
	return &AuthHandler{
		sessionSvc:  sessionSvc,
		identitySvc: identitySvc,
		upgradeSvc:  upgradeSvc,
		jwtSvc:      jwtSvc,
	}
}

// @Summary Upgrade guest session to account
// @Description Converts the device's active guest session into a full account, carrying accumulated progress over
// @Tags auth
// @Accept json
// @Produce json
// @Param upgradeRequest body dto.UpgradeRequest true "Account details"
// @Success 201 {object} shared.Response{data=dto.UpgradeResponse}
// @Router /api/v1/register [post]
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.UpgradeRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request")
	}

	slot := c.Locals(shared.SlotKey).(string)

	resp, err := h.upgradeSvc.Upgrade(c.UserContext(), slot, req)
	if err != nil {
		return err
	}

	return shared.ResponseCreated(c, resp)
}

// @Summary Login
// @Description Authenticate with email or mobile number and return an access token
// @Tags auth
// @Accept json
// @Produce json
// @Param loginRequest body dto.LoginRequest true "Login credentials"
// @Success 200 {object} shared.Response{data=dto.LoginResponse}
// @Router /api/v1/login [post]
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request")
	}

	if err := req.Validate(); err != nil {
		return shared.NewValidationError(dto.FormatValidationErrors(err))
	}

	slot := c.Locals(shared.SlotKey).(string)

	session, err := h.sessionSvc.Login(c.UserContext(), slot, req.Identifier, req.Password)
	if err != nil {
		return err
	}

	identity, err := h.identitySvc.Get(session.IdentityID)
	if err != nil {
		return err
	}

	pair, err := h.jwtSvc.GenerateTokenPair(slot, session.Token)
	if err != nil {
		return shared.NewInternalError(err, "Failed to issue access token")
	}

	return shared.ResponseJSON(c, http.StatusOK, "Login successful", dto.LoginResponse{
		AccessToken: pair.AccessToken,
		ExpiresIn:   pair.ExpiresIn,
		Session:     dto.NewSessionResponse(session, identity),
	})
}

// @Summary Logout
// @Description End the device's session, authenticated or guest
// @Tags auth
// @Produce json
// @Success 200 {object} shared.Response
// @Router /api/v1/logout [post]
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	slot := c.Locals(shared.SlotKey).(string)

	h.sessionSvc.Logout(c.UserContext(), slot)

	return shared.ResponseJSON(c, http.StatusOK, "Logged out", nil)
}

// @Summary Current identity
// @Description Return the authenticated identity and its accumulated progress
// @Tags auth
// @Produce json
// @Success 200 {object} shared.Response{data=dto.MeResponse}
// @Router /api/v1/me [get]
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	identityID := c.Locals(shared.IdentityKey).(string)

	identity, err := h.identitySvc.Get(identityID)
	if err != nil {
		return err
	}

	progress, err := h.identitySvc.GetProgress(identityID)
	if err != nil && !shared.IsKind(err, shared.KindNotFound) {
		return err
	}

	return shared.ResponseOK(c, dto.MeResponse{
		Identity: *dto.NewIdentityInfo(identity),
		Progress: dto.NewIdentityProgress(progress),
	})
}

// @Summary Request password reset
// @Description Issue a reset code for the given email. Always responds with success to avoid account enumeration
// @Tags auth
// @Accept json
// @Produce json
// @Param forgotPasswordRequest body dto.ForgotPasswordRequest true "Account email"
// @Success 200 {object} shared.Response
// @Router /api/v1/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var req dto.ForgotPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request")
	}

	if err := req.Validate(); err != nil {
		return shared.NewValidationError(dto.FormatValidationErrors(err))
	}

	if err := h.identitySvc.RequestPasswordReset(c.UserContext(), req.Email); err != nil {
		return err
	}

	return shared.ResponseJSON(c, http.StatusOK, "If the email exists, a reset code has been sent", nil)
}

// @Summary Reset password
// @Description Set a new password using the emailed reset code
// @Tags auth
// @Accept json
// @Produce json
// @Param resetPasswordRequest body dto.ResetPasswordRequest true "Reset code and new password"
// @Success 200 {object} shared.Response
// @Router /api/v1/reset-password [post]
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request")
	}

	if err := req.Validate(); err != nil {
		return shared.NewValidationError(dto.FormatValidationErrors(err))
	}

	if err := h.identitySvc.ResetPassword(c.UserContext(), req.Email, req.Code, req.NewPassword); err != nil {
		return err
	}

	return shared.ResponseJSON(c, http.StatusOK, "Password updated", nil)
}

// @Summary List identities
// @Description Admin-only listing of registered identities
// @Tags admin
// @Produce json
// @Param limit query int false "Max results" default(50)
// @Success 200 {object} shared.Response{data=[]dto.IdentityInfo}
// @Router /api/v1/admin/identities [get]
func (h *AuthHandler) ListIdentities(c *fiber.Ctx) error {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return shared.NewBadRequestError(err, "Invalid limit")
		}
		limit = v
	}

	identities, err := h.identitySvc.List(limit)
	if err != nil {
		return err
	}

	infos := make([]dto.IdentityInfo, 0, len(identities))
	for i := range identities {
		infos = append(infos, *dto.NewIdentityInfo(&identities[i]))
	}

	return shared.ResponseOK(c, infos)
}
