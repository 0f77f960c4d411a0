package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/session-booking/internal/service"
)

type bookRequest struct {
	ParticipantID uint64 `json:"participant_id"`
	HoldOnly      bool   `json:"hold_only"`
}

// Book handles POST /v1/sessions/:id/signups.  With hold_only the signup
// is an unpaid hold that lapses after the tenant's hold TTL unless the
// payment layer marks it paid.
func (h *BookingHandler) Book(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	sessionID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid session id")
	}
	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	if req.ParticipantID == 0 {
		return badRequest(c, "participant_id is required")
	}
	ctx := c.Request().Context()
	signup, err := h.Engine.Book(ctx, actor, service.BookInput{
		SessionID:     sessionID,
		ParticipantID: req.ParticipantID,
		HoldOnly:      req.HoldOnly,
	})
	if err != nil {
		return writeError(c, err)
	}
	h.touched(ctx, actor, sessionID)
	return c.JSON(http.StatusCreated, signup)
}

// CancelSignup handles DELETE /v1/signups/:id.  The freed seat is offered
// to the waitlist before the response is written.
func (h *BookingHandler) CancelSignup(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid signup id")
	}
	if err := h.Engine.CancelSignup(c.Request().Context(), actor, id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// MarkPaid handles POST /v1/admin/signups/:id/paid, the payment layer's
// confirmation that a hold was paid.
func (h *BookingHandler) MarkPaid(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid signup id")
	}
	ctx := c.Request().Context()
	signup, err := h.Engine.MarkPaid(ctx, actor, id)
	if err != nil {
		return writeError(c, err)
	}
	h.touched(ctx, actor, signup.SessionID)
	return c.JSON(http.StatusOK, signup)
}
