// Package handler implements the HTTP surface of the attendance
// engine: registration, cancellation, check-in, attendance and
// operational staff endpoints.  Handlers bind and validate input, call
// the service layer and map kind-tagged domain errors to status codes.
package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/confera/attendance/internal/service"
)

// writeDomainError maps a service error to an HTTP response.  Payment
// and circuit failures surface as 503 with a generic retry message so
// internal breaker state never leaks to clients.
func writeDomainError(c echo.Context, err error) error {
	var derr *service.Error
	if !errors.As(err, &derr) {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	switch derr.Kind {
	case service.KindNotFound:
		return c.JSON(http.StatusNotFound, errBody(derr))
	case service.KindRegistrationClosed, service.KindDuplicateRegistration:
		return c.JSON(http.StatusConflict, errBody(derr))
	case service.KindPenaltyActive:
		return c.JSON(http.StatusForbidden, errBody(derr))
	case service.KindCheckIn:
		return c.JSON(http.StatusBadRequest, errBody(derr))
	case service.KindPaymentProcessing:
		return c.JSON(http.StatusServiceUnavailable, echo.Map{
			"kind":  derr.Kind,
			"error": "payment could not be processed, please try again later",
		})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

func errBody(derr *service.Error) echo.Map {
	return echo.Map{"kind": derr.Kind, "error": derr.Message}
}
