package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/session-booking/internal/service"
)

// GetSession handles GET /v1/sessions/:id and returns the session with
// its current availability.  The route is fronted by the response cache.
func (h *BookingHandler) GetSession(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid session id")
	}
	av, err := h.Engine.GetSession(c.Request().Context(), actor, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, av)
}

// CreateSession handles POST /v1/admin/sessions.
func (h *BookingHandler) CreateSession(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	var in service.SessionInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	sess, err := h.Engine.CreateSession(c.Request().Context(), actor, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, sess)
}

type promoteRequest struct {
	Count int `json:"count"`
}

// Promote handles POST /v1/admin/sessions/:id/promote.  Count defaults to
// one seat; fewer offers are made when fewer seats are free.
func (h *BookingHandler) Promote(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid session id")
	}
	req := promoteRequest{Count: 1}
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "invalid JSON body")
		}
	}
	if req.Count < 1 {
		return badRequest(c, "count must be positive")
	}
	ctx := c.Request().Context()
	offered, err := h.Engine.Promote(ctx, actor, id, req.Count)
	if err != nil {
		return writeError(c, err)
	}
	h.touched(ctx, actor, id)
	return c.JSON(http.StatusOK, echo.Map{"session_id": id, "offered": offered})
}
