package constants

// Static route constants
const (
	// Webhook deliveries from the payment provider
	StripeWebhookRoute = "/subscription/stripe/webhook"
	// Browser return target after a completed checkout
	StripeSuccessRoute = "/subscription/stripe/success"
	// Browser return target after identity-provider authentication
	AuthCallbackRoute = "/subscription/auth/callback"

	// Admin API group prefix; individual operations hang below it
	AdminGroupRoute = "/subscription/admin"

	HealthRoute = "/health"

	// Placeholder pages used when APP_URL points back at this service
	DashboardRoute        = "/dashboard"
	GiftConfirmationRoute = "/gift-confirmation"
	ErrorRoute            = "/error"
)
