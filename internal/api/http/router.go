package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-desk/internal/api/http/handlers"
	"github.com/spec-kit/repair-desk/internal/auth"
	"github.com/spec-kit/repair-desk/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Stream         *handlers.StreamHandler
	Technicians    *handlers.TechniciansHandler
	AuthMiddleware *auth.AuthMiddleware
	FilesDir       string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	if cfg.FilesDir != "" {
		app.Static("/files", cfg.FilesDir, fiber.Static{ByteRange: true})
	}

	guard := []fiber.Handler{cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleAdmin, domain.RoleTechnician)}
	app.Get("/technicians", append(guard, cfg.Technicians.List)...)

	tickets := app.Group("/tickets", guard...)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/stream", cfg.Stream.Stream)
	tickets.Get("/summary", cfg.Tickets.Summary)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/:key", cfg.Tickets.GetTicket)
	tickets.Patch("/:key", cfg.Tickets.UpdateTicket)
	tickets.Post("/:key/photos", cfg.Tickets.UploadPhoto)
	tickets.Post("/:key/signature", cfg.Tickets.SetSignature)
}
