package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/hocvui-edu/hocvui_api/dto"
	"github.com/hocvui-edu/hocvui_api/model"
	"github.com/hocvui-edu/hocvui_api/shared"
)

type GuestHandler struct {
	sessionSvc SessionServiceInterface
}

func NewGuestHandler(sessionSvc SessionServiceInterface) *GuestHandler {
	return &GuestHandler{
		sessionSvc: sessionSvc,
	}
}

// @Summary Start guest session
// @Description Start a guest session for this device. Starting over an existing guest session resets its progress
// @Tags guest
// @Accept  json
// @Produce json
// @Param startSessionRequest body dto.StartGuestSessionRequest false "Optional profile hints"
// @Success 200 {object} shared.Response{data=dto.SessionResponse}
// @Router /api/v1/guest/session [post]
func (h *GuestHandler) StartSession(c *fiber.Ctx) error {
	var req dto.StartGuestSessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return shared.NewBadRequestError(err, "Invalid request")
		}
		if err := req.Validate(); err != nil {
			return shared.NewValidationError(dto.FormatValidationErrors(err))
		}
	}

	slot := c.Locals(shared.SlotKey).(string)

	session, err := h.sessionSvc.StartGuestSession(c.UserContext(), slot, model.GuestHints{
		GradeLevel: req.GradeLevel,
	})
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, http.StatusOK, "Guest session started", dto.NewSessionResponse(session, nil))
}

// @Summary Record guest activity
// @Description Fold an activity delta into the guest session's accumulated progress
// @Tags guest
// @Accept  json
// @Produce json
// @Param recordActivityRequest body dto.RecordActivityRequest true "Activity delta"
// @Success 200 {object} shared.Response{data=dto.SessionResponse}
// @Router /api/v1/guest/activity [post]
func (h *GuestHandler) RecordActivity(c *fiber.Ctx) error {
	var req dto.RecordActivityRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request")
	}

	if err := req.Validate(); err != nil {
		return shared.NewValidationError(dto.FormatValidationErrors(err))
	}

	slot := c.Locals(shared.SlotKey).(string)

	session, err := h.sessionSvc.RecordGuestActivity(c.UserContext(), slot, req.ToUpdate())
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, http.StatusOK, "Activity recorded", dto.NewSessionResponse(session, nil))
}

// @Summary Abandon guest session
// @Description Discard the device's guest session and its progress
// @Tags guest
// @Produce json
// @Success 200 {object} shared.Response
// @Router /api/v1/guest/session [delete]
func (h *GuestHandler) AbandonSession(c *fiber.Ctx) error {
	slot := c.Locals(shared.SlotKey).(string)

	if err := h.sessionSvc.AbandonGuestSession(c.UserContext(), slot); err != nil {
		return err
	}

	return shared.ResponseJSON(c, http.StatusOK, "Guest session abandoned", nil)
}
