package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/warranty-portal/internal/api/http/handlers"
	"github.com/spec-kit/warranty-portal/internal/auth"
)

// APIPrefix roots every versioned route.
const APIPrefix = "/api/v1"

// DownloadPrefix is the attachment download route without the id.
const DownloadPrefix = APIPrefix + "/attachments/"

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Profiles       *handlers.ProfilesHandler
	Tickets        *handlers.TicketsHandler
	Messages       *handlers.MessagesHandler
	Attachments    *handlers.AttachmentsHandler
	Notifications  *handlers.NotificationsHandler
	Reports        *handlers.ReportsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Public routes are registered before the
// authenticated group so its middleware never runs for them.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	api := app.Group(APIPrefix)
	api.Post("/auth/register", cfg.Profiles.Register)
	api.Post("/auth/login", cfg.Profiles.Login)

	protected := api.Group("", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	protected.Get("/me", cfg.Profiles.Me)
	protected.Get("/profiles/:id", cfg.Profiles.Get)
	protected.Patch("/profiles/:id", cfg.Profiles.Update)

	protected.Post("/tickets", cfg.Tickets.Create)
	protected.Get("/tickets", cfg.Tickets.List)
	protected.Get("/tickets/:id", cfg.Tickets.Get)
	protected.Post("/tickets/:id/read", cfg.Tickets.MarkRead)
	protected.Get("/tickets/:id/history", cfg.Tickets.History)
	protected.Get("/tickets/:id/messages", cfg.Messages.List)
	protected.Post("/tickets/:id/messages", cfg.Messages.Post)
	protected.Get("/tickets/:id/attachments", cfg.Attachments.List)
	protected.Post("/tickets/:id/attachments", cfg.Attachments.Upload)
	protected.Post("/tickets/:id/attachments/ref", cfg.Attachments.AddReference)
	protected.Get("/attachments/:id", cfg.Attachments.Download)

	protected.Get("/notifications", cfg.Notifications.List)
	protected.Post("/notifications/read-all", cfg.Notifications.MarkAllRead)
	protected.Post("/notifications/:id/read", cfg.Notifications.MarkRead)

	protected.Get("/dashboard", cfg.Reports.Dashboard)

	staff := protected.Group("/admin", auth.RequireStaff())
	staff.Get("/customers", cfg.Profiles.Customers)
	staff.Put("/profiles/:id/role", cfg.Profiles.SetRole)
	staff.Get("/tickets/export.csv", cfg.Reports.Export)
	staff.Patch("/tickets/:id", cfg.Tickets.Update)
	staff.Post("/tickets/:id/status", cfg.Tickets.SetStatus)
	staff.Delete("/attachments/:id", cfg.Attachments.Remove)
}
