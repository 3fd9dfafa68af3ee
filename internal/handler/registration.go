package handler

import (
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/confera/attendance/internal/service"
)

// RegistrationHandler exposes the orchestration engine over HTTP.
type RegistrationHandler struct {
	Service *service.RegistrationService
}

// NewRegistrationHandler constructs the handler.  The service must be
// non-nil.
func NewRegistrationHandler(svc *service.RegistrationService) *RegistrationHandler {
	if svc == nil {
		panic("nil service passed to NewRegistrationHandler")
	}
	return &RegistrationHandler{Service: svc}
}

// Register handles POST /events/:id/registrations.  It returns 201 for
// a confirmed registration and 202 for a waitlisted attendee.
func (h *RegistrationHandler) Register(c echo.Context) error {
	eventID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var body struct {
		Email    string         `json:"email"`
		Name     string         `json:"name"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	email := strings.TrimSpace(body.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "malformed email address"})
	}

	result, err := h.Service.Register(c.Request().Context(), eventID, email, body.Name, body.Metadata)
	if err != nil {
		return writeDomainError(c, err)
	}
	code := http.StatusCreated
	if result.Status == service.OutcomeWaitlisted {
		code = http.StatusAccepted
	}
	return c.JSON(code, result)
}

// Cancel handles DELETE /events/:id/registrations/:regId.  Cancelling
// twice is a no-op returning the current status.
func (h *RegistrationHandler) Cancel(c echo.Context) error {
	eventID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	regID, err := pathID(c, "regId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid registration id"})
	}
	result, err := h.Service.Cancel(c.Request().Context(), eventID, regID)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// ListRegistrations handles GET /events/:id/registrations.
func (h *RegistrationHandler) ListRegistrations(c echo.Context) error {
	eventID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	regs, err := h.Service.ListRegistrations(c.Request().Context(), eventID)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"registrations": regs, "total": len(regs)})
}

// ListWaitlist handles GET /events/:id/waitlist.
func (h *RegistrationHandler) ListWaitlist(c echo.Context) error {
	eventID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	entries, err := h.Service.ListWaitlist(c.Request().Context(), eventID)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"waitlist": entries, "total": len(entries)})
}

// TriggerPromotion handles POST /events/:id/waitlist, the on-demand
// waitlist promotion used by staff.
func (h *RegistrationHandler) TriggerPromotion(c echo.Context) error {
	eventID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	promoted, err := h.Service.PromoteWaitlist(c.Request().Context(), eventID)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"promoted": promoted})
}

// OpenWindow handles POST /events/:id/registrations/open.
func (h *RegistrationHandler) OpenWindow(c echo.Context) error {
	return h.setWindow(c, true)
}

// CloseWindow handles POST /events/:id/registrations/close.
func (h *RegistrationHandler) CloseWindow(c echo.Context) error {
	return h.setWindow(c, false)
}

func (h *RegistrationHandler) setWindow(c echo.Context, open bool) error {
	eventID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var (
		state *service.WindowState
	)
	if open {
		state, err = h.Service.OpenRegistrations(c.Request().Context(), eventID)
	} else {
		state, err = h.Service.CloseRegistrations(c.Request().Context(), eventID)
	}
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, state)
}

// ListAttendance handles GET /events/:id/attendance.
func (h *RegistrationHandler) ListAttendance(c echo.Context) error {
	eventID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	views, err := h.Service.ListAttendance(c.Request().Context(), eventID)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"attendance": views, "total": len(views)})
}

// RunNoShowSweep handles POST /events/:id/attendance, triggering the
// no-show detection sweep for a past event.
func (h *RegistrationHandler) RunNoShowSweep(c echo.Context) error {
	eventID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	penalized, err := h.Service.DetectNoShows(c.Request().Context(), eventID, time.Time{})
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"penalized": penalized})
}

// CheckIn handles POST /check-in/:token.
func (h *RegistrationHandler) CheckIn(c echo.Context) error {
	token := c.Param("token")
	if token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing check-in token"})
	}
	var body struct {
		Method   string         `json:"method"`
		Metadata map[string]any `json:"metadata"`
	}
	// The body is optional: a bare scan posts no payload at all.
	_ = c.Bind(&body)

	record, err := h.Service.CheckIn(c.Request().Context(), token, body.Method, body.Metadata)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"attendance": record})
}

// pathID parses a positive integer path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.ErrBadRequest
	}
	return id, nil
}
