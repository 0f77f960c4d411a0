package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/session-booking/internal/middleware"
	"github.com/iliyamo/session-booking/internal/service"
)

// actorFrom builds the engine actor from the identity JWTAuth stored.
func actorFrom(c echo.Context) (service.Actor, bool) {
	uid, ok := c.Get(middleware.CtxUserID).(uint64)
	if !ok || uid == 0 {
		return service.Actor{}, false
	}
	tenant, ok := c.Get(middleware.CtxTenantID).(uint64)
	if !ok || tenant == 0 {
		return service.Actor{}, false
	}
	role, _ := c.Get(middleware.CtxRole).(string)
	return service.Actor{UserID: uid, TenantID: tenant, Admin: role == middleware.RoleAdmin}, true
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	return n, err == nil && n > 0
}

func errorJSON(c echo.Context, status int, code, message string) error {
	return c.JSON(status, echo.Map{"error": code, "message": message})
}

func unauthorized(c echo.Context) error {
	return errorJSON(c, http.StatusUnauthorized, "unauthorized", "missing identity")
}

func badRequest(c echo.Context, message string) error {
	return errorJSON(c, http.StatusBadRequest, "bad_request", message)
}

// conflicts maps engine conflict errors to their wire codes.
var conflicts = []struct {
	err  error
	code string
}{
	{service.ErrNotBookable, "not_bookable"},
	{service.ErrCapacityExceeded, "capacity_exceeded"},
	{service.ErrDuplicate, "duplicate"},
	{service.ErrNotFull, "not_full"},
	{service.ErrWaitlistDisabled, "waitlist_disabled"},
	{service.ErrWaitlistFull, "waitlist_full"},
	{service.ErrOfferNotFound, "offer_not_found"},
	{service.ErrOfferExpired, "offer_expired"},
	{service.ErrHoldExpired, "hold_expired"},
}

// writeError renders an engine error: validation 400, not found 404,
// forbidden 403, conflicts 409 and anything else 500.
func writeError(c echo.Context, err error) error {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":   "validation_failed",
			"message": verr.Error(),
			"fields":  verr.FieldErrors,
		})
	case errors.Is(err, service.ErrNotFound):
		return errorJSON(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, service.ErrForbidden):
		return errorJSON(c, http.StatusForbidden, "forbidden", err.Error())
	}
	for _, cf := range conflicts {
		if errors.Is(err, cf.err) {
			return errorJSON(c, http.StatusConflict, cf.code, err.Error())
		}
	}
	log.Printf("handler: %s %s failed: %v", c.Request().Method, c.Path(), err)
	return errorJSON(c, http.StatusInternalServerError, "internal", "internal error")
}
