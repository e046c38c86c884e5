package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/arclightai/arclight-admin/app/controllers"
	"github.com/arclightai/arclight-admin/internal/pkg/constants"
	"github.com/arclightai/arclight-admin/internal/pkg/middleware"
)

func (h HttpRouter) registerAdminRoutes(app *fiber.App) {
	adminGroup := app.Group(constants.AdminGroupRoute, middleware.RequireAdminKey())

	// Subscription repair and hand-off
	adminGroup.Post("/recover", controllers.HandleAdminRecoverSubscription)
	adminGroup.Post("/handoff", controllers.HandleAdminHandoffLink)

	// Validation policy
	adminGroup.Get("/settings", controllers.HandleAdminGetSettings)
	adminGroup.Put("/settings", controllers.HandleAdminUpdateSettings)

	// Flow testing
	adminGroup.Get("/webhook-config", controllers.HandleAdminWebhookConfig)
	adminGroup.Post("/checkout-session", controllers.HandleAdminCreateCheckoutSession)

	// Audit log
	adminGroup.Get("/monitoring/events", controllers.HandleAdminMonitoringEvents)
	adminGroup.Get("/monitoring/stats", controllers.HandleAdminMonitoringStats)
}
