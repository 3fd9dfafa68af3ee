// Package router wires the attendance API's routes onto an Echo
// instance.  Public routes carry the registration and check-in flow;
// operational routes (window toggles, manual sweeps) sit behind the
// staff JWT guard when a secret is configured.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/confera/attendance/internal/config"
	"github.com/confera/attendance/internal/handler"
	"github.com/confera/attendance/internal/middleware"
)

// RegisterRoutes mounts all routes.  When cfg.StaffJWTSecret is empty
// the operational routes are left open, which keeps single-tenant
// deployments working with no token issuer.
func RegisterRoutes(e *echo.Echo, h *handler.RegistrationHandler, cfg config.Config) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.POST("/events/:id/registrations", h.Register)
	e.GET("/events/:id/registrations", h.ListRegistrations)
	e.DELETE("/events/:id/registrations/:regId", h.Cancel)
	e.GET("/events/:id/waitlist", h.ListWaitlist)
	e.GET("/events/:id/attendance", h.ListAttendance)
	e.POST("/check-in/:token", h.CheckIn)

	staff := e.Group("")
	if cfg.StaffJWTSecret != "" {
		staff.Use(middleware.StaffAuth(cfg.StaffJWTSecret))
	}
	staff.POST("/events/:id/waitlist", h.TriggerPromotion)
	staff.POST("/events/:id/attendance", h.RunNoShowSweep)
	staff.POST("/events/:id/registrations/open", h.OpenWindow)
	staff.POST("/events/:id/registrations/close", h.CloseWindow)
}
