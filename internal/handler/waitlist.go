package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type joinRequest struct {
	ParticipantID uint64 `json:"participant_id"`
}

// JoinWaitlist handles POST /v1/sessions/:id/waitlist.
func (h *BookingHandler) JoinWaitlist(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	sessionID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid session id")
	}
	var req joinRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	if req.ParticipantID == 0 {
		return badRequest(c, "participant_id is required")
	}
	ctx := c.Request().Context()
	pos, err := h.Engine.JoinWaitlist(ctx, actor, sessionID, req.ParticipantID)
	if err != nil {
		return writeError(c, err)
	}
	h.touched(ctx, actor, sessionID)
	return c.JSON(http.StatusCreated, pos)
}

// LeaveWaitlist handles DELETE /v1/sessions/:id/waitlist/:participant_id.
func (h *BookingHandler) LeaveWaitlist(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	sessionID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid session id")
	}
	participantID, ok := pathID(c, "participant_id")
	if !ok {
		return badRequest(c, "invalid participant id")
	}
	ctx := c.Request().Context()
	if err := h.Engine.LeaveWaitlist(ctx, actor, sessionID, participantID); err != nil {
		return writeError(c, err)
	}
	h.touched(ctx, actor, sessionID)
	return c.NoContent(http.StatusNoContent)
}

// Waitlist handles GET /v1/sessions/:id/waitlist and lists active entries
// in queue order; rank is the 1-based place in line.
func (h *BookingHandler) Waitlist(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	sessionID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid session id")
	}
	entries, err := h.Engine.Waitlist(c.Request().Context(), actor, sessionID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"session_id": sessionID, "entries": entries})
}
