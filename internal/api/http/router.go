package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-orchestrator/internal/api/http/handlers"
	"github.com/spec-kit/support-orchestrator/internal/auth"
	"github.com/spec-kit/support-orchestrator/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Queue          *handlers.QueueHandler
	Sessions       *handlers.SessionsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/customers/register", cfg.Auth.RegisterCustomer)
	authGroup.Post("/customers/login", cfg.Auth.LoginCustomer)
	authGroup.Post("/reps/login", cfg.Auth.LoginRep)
	authGroup.Post("/reps/register",
		cfg.AuthMiddleware.Handle, auth.RequireRepRole(domain.RepRoleAdmin), cfg.Auth.RegisterRep)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Post("", auth.RequireCustomer(), cfg.Tickets.CreateTicket)
	tickets.Post("/intake", auth.RequireCustomer(), cfg.Tickets.Intake)
	tickets.Get("", auth.RequireAnyRole(), cfg.Tickets.ListTickets)
	tickets.Get("/:id", auth.RequireAnyRole(), cfg.Tickets.GetTicket)
	tickets.Post("/:id/status", auth.RequireAnyRole(), cfg.Tickets.UpdateStatus)
	tickets.Post("/:id/assign", auth.RequireRepRole(), cfg.Tickets.Assign)
	tickets.Post("/:id/reassign",
		auth.RequireRepRole(domain.RepRoleAdmin, domain.RepRoleL2, domain.RepRoleL3), cfg.Tickets.Reassign)
	tickets.Post("/:id/escalate", auth.RequireRepRole(), cfg.Tickets.Escalate)
	tickets.Post("/:id/messages", auth.RequireAnyRole(), cfg.Tickets.AddMessage)
	tickets.Get("/:id/transcript", auth.RequireAnyRole(), cfg.Tickets.Transcript)
	tickets.Get("/:id/history", auth.RequireRepRole(), cfg.Tickets.History)

	queue := app.Group("/queue", cfg.AuthMiddleware.Handle, auth.RequireRepRole())
	queue.Get("", cfg.Queue.ListEligible)
	queue.Get("/tickets", cfg.Queue.ListEligibleTickets)

	sessions := app.Group("/sessions", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	sessions.Post("", cfg.Sessions.Start)
	sessions.Get("/:id", cfg.Sessions.Get)
	sessions.Post("/:id/hangup", cfg.Sessions.HangUp)
	sessions.Post("/:id/redial", cfg.Sessions.Redial)
	sessions.Post("/:id/say", cfg.Sessions.Say)
	sessions.Get("/:id/suggestions", auth.RequireRepRole(), cfg.Sessions.Suggestions)
	sessions.Delete("/:id/suggestions/:suggestionId", auth.RequireRepRole(), cfg.Sessions.DismissSuggestion)
}
