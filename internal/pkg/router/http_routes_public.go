package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/arclightai/arclight-admin/app/controllers"
	"github.com/arclightai/arclight-admin/internal/pkg/constants"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	// Provider webhooks (signature-verified in the controller, no auth)
	app.Post(constants.StripeWebhookRoute, controllers.HandleStripeWebhook)

	// Browser redirect targets of the checkout and account-linking flows
	app.Get(constants.StripeSuccessRoute, controllers.HandleStripeSuccess)
	app.Get(constants.AuthCallbackRoute, controllers.HandleAuthCallback)

	app.Get(constants.HealthRoute, controllers.HandleHealth)

	// Placeholder pages so the flow can be exercised end to end when
	// APP_URL points back at this service
	app.Get(constants.DashboardRoute, controllers.HandleDashboardPlaceholder)
	app.Get(constants.GiftConfirmationRoute, controllers.HandleGiftConfirmationPlaceholder)
	app.Get(constants.ErrorRoute, controllers.HandleErrorPlaceholder)
}
