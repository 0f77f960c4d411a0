package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// AcceptOffer handles POST /v1/offers/:id/accept, where id is the
// waitlist entry.  The result is a paid signup.
func (h *BookingHandler) AcceptOffer(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid offer id")
	}
	ctx := c.Request().Context()
	signup, err := h.Engine.AcceptOffer(ctx, actor, id)
	if err != nil {
		return writeError(c, err)
	}
	h.touched(ctx, actor, signup.SessionID)
	return c.JSON(http.StatusCreated, signup)
}

// CancelOffer handles POST /v1/offers/:id/cancel.  The seat moves on to
// the next entry in line.
func (h *BookingHandler) CancelOffer(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid offer id")
	}
	if err := h.Engine.CancelOffer(c.Request().Context(), actor, id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
