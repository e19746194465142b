package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/crm-console/internal/api/http/handlers"
	"github.com/spec-kit/crm-console/internal/auth"
	"github.com/spec-kit/crm-console/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Settings       *handlers.SettingsHandler
	Team           *handlers.TeamHandler
	Roles          *handlers.RolesHandler
	Integrations   *handlers.IntegrationsHandler
	Drafts         *handlers.DraftsHandler
	Feeds          *handlers.FeedsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	settings := app.Group("/settings", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	settings.Get("/state", cfg.Settings.State)
	settings.Post("/tabs/:tab", cfg.Settings.ActivateTab)
	settings.Post("/modals/:name", cfg.Settings.OpenModal)
	settings.Delete("/modals/:name", cfg.Settings.CloseModal)

	settings.Get("/team/members", cfg.Team.List)
	settings.Post("/team/members", cfg.Team.Create)
	settings.Put("/team/members/:id", cfg.Team.Update)
	settings.Delete("/team/members/:id", cfg.Team.Delete)

	settings.Get("/roles", cfg.Roles.List)
	settings.Post("/roles", cfg.Roles.Create)
	settings.Delete("/roles/:name", cfg.Roles.Delete)

	integrations := settings.Group("/integrations/:name")
	integrations.Get("", cfg.Integrations.Get)
	integrations.Delete("", cfg.Integrations.Disconnect)
	integrations.Post("/connect", cfg.Integrations.OpenConnect)
	integrations.Delete("/connect", cfg.Integrations.CancelConnect)
	integrations.Put("/draft", cfg.Integrations.SaveDraft)
	integrations.Post("/credentials", cfg.Integrations.Submit)
	integrations.Post("/sync", cfg.Integrations.Sync)
	integrations.Get("/resources", cfg.Integrations.Resources)

	settings.Get("/drafts/company", cfg.Drafts.GetCompany)
	settings.Put("/drafts/company", cfg.Drafts.PutCompany)
	settings.Get("/drafts/billing", cfg.Drafts.GetBilling)
	settings.Put("/drafts/billing", cfg.Drafts.PutBilling)

	feeds := app.Group("/feeds", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	feeds.Get("/scheduled-messages", cfg.Feeds.ScheduledMessages)
	feeds.Get("/conversations", cfg.Feeds.Conversations)
}
