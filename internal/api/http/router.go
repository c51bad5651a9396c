package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	StaffTickets   *handlers.StaffTicketsHandler
	Notifications  *handlers.NotificationsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, cfg.Users.Me)

	users := app.Group("/users", cfg.AuthMiddleware.Handle)
	users.Post("", auth.RequireRole(domain.RoleAdmin), cfg.Users.CreateUser)
	users.Patch("/:id/active", auth.RequireRole(domain.RoleAdmin), cfg.Users.SetActive)
	users.Get("/technicians",
		auth.RequireRole(domain.RoleDSI, domain.RoleSecretaryDSI, domain.RoleAdjointDSI, domain.RoleAdmin),
		cfg.Users.ListTechnicians)
	users.Get("/adjoints",
		auth.RequireRole(domain.RoleDSI, domain.RoleAdmin),
		cfg.Users.ListAdjoints)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/validate", cfg.Tickets.ValidateTicket)
	tickets.Post("/:id/close", cfg.Tickets.CloseTicket)

	staff := app.Group("/staff/tickets", cfg.AuthMiddleware.Handle, auth.RequireStaff())
	staff.Get("", cfg.StaffTickets.ListTickets)
	staff.Post("/:id/assign", cfg.StaffTickets.AssignTicket)
	staff.Post("/:id/delegate", cfg.StaffTickets.DelegateTicket)
	staff.Post("/:id/start", cfg.StaffTickets.StartWork)
	staff.Post("/:id/resolve", cfg.StaffTickets.ResolveTicket)

	notifications := app.Group("/notifications", cfg.AuthMiddleware.Handle)
	notifications.Get("", cfg.Notifications.List)
	notifications.Get("/unread-count", cfg.Notifications.UnreadCount)
	notifications.Post("/read-all", cfg.Notifications.MarkAllRead)
	notifications.Post("/:id/read", cfg.Notifications.MarkRead)
}
