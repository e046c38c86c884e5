package controllers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/arclightai/arclight-admin/app/repository"
	"github.com/arclightai/arclight-admin/internal/pkg/auth0"
	"github.com/arclightai/arclight-admin/internal/pkg/billing"
	"github.com/arclightai/arclight-admin/internal/pkg/cache"
	"github.com/arclightai/arclight-admin/internal/pkg/constants"
	"github.com/arclightai/arclight-admin/internal/pkg/database"
	"github.com/arclightai/arclight-admin/internal/pkg/env"
	"github.com/arclightai/arclight-admin/internal/pkg/middleware"
	"github.com/arclightai/arclight-admin/internal/pkg/monitoring"
)

// HandleStripeWebhook verifies and processes payment provider webhook
// deliveries. Signature and payload errors answer 400, configuration and
// processing errors 500; everything else is acknowledged with 200 so the
// provider stops redelivering.
func HandleStripeWebhook(c *fiber.Ctx) error {
	requestID := middleware.RequestID(c)
	if requestID == "" {
		requestID = fmt.Sprintf("req_%d", time.Now().UnixNano())
	}

	body, ok := middleware.CapturedBody(c)
	if !ok {
		body = append([]byte(nil), c.BodyRaw()...)
	}

	sigHeader := strings.TrimSpace(c.Get("stripe-signature"))
	if sigHeader == "" {
		log.Warn().Str("request_id", requestID).Msg("webhook request without stripe-signature header")
	}

	secret, origin := billing.SelectWebhookSecret(
		c.IP(),
		env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		env.GetEnv("STRIPE_WEBHOOK_SECRET_CLI", ""),
	)

	if err := billing.VerifyWebhookSignature(body, sigHeader, secret); err != nil {
		if errors.Is(err, billing.ErrMissingWebhookSecret) {
			log.Error().Str("request_id", requestID).Str("secret_origin", origin).Msg("webhook secret is not configured")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "webhook secret is not configured"})
		}

		log.Warn().
			Err(err).
			Str("request_id", requestID).
			Str("secret_origin", origin).
			Str("remote_ip", c.IP()).
			Int("signature_header_len", len(sigHeader)).
			Msg("webhook signature verification failed")

		if env.GetBool("SAVE_WEBHOOK_DIAGNOSTICS") {
			dir := env.GetEnv("DEBUG_DIR", "debug_logs")
			if path, diagErr := billing.WriteSignatureDiagnostics(dir, requestID, sigHeader, body, origin, secret, err); diagErr != nil {
				log.Warn().Err(diagErr).Str("request_id", requestID).Msg("could not write signature diagnostics")
			} else {
				log.Debug().Str("request_id", requestID).Str("path", path).Msg("signature diagnostics written")
			}
		}

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "signature verification failed"})
	}

	event, err := billing.ParseWebhookEvent(body)
	if err != nil {
		log.Warn().Err(err).Str("request_id", requestID).Msg("webhook payload did not parse as an event")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid event payload"})
	}

	log.Info().
		Str("request_id", requestID).
		Str("event_type", string(event.Type)).
		Str("secret_origin", origin).
		Msg("webhook verified")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	outcome, err := newBillingService().ProcessWebhookEvent(ctx, event)
	if err != nil {
		log.Error().Err(err).Str("request_id", requestID).Str("event_type", string(event.Type)).Msg("webhook event processing failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "event processing failed"})
	}

	log.Info().
		Str("request_id", requestID).
		Str("event_type", outcome.EventType).
		Bool("handled", outcome.Handled).
		Str("subscription_id", outcome.SubscriptionID).
		Bool("created", outcome.Created).
		Bool("invite_sent", outcome.InviteSent).
		Msg("webhook event processed")

	return c.JSON(fiber.Map{"success": true})
}

// HandleStripeSuccess handles the browser's return from a completed
// checkout. Gift purchases land on the confirmation page; direct purchases
// are sent to the identity provider to create their account.
func HandleStripeSuccess(c *fiber.Ctx) error {
	sessionID := strings.TrimSpace(c.Query("session_id"))
	if sessionID == "" {
		log.Warn().Msg("success redirect without session_id")
		return redirectError(c, "missing_session_id")
	}

	log.Info().Str("session_id", sessionID).Msg("processing checkout success redirect")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	result, err := newBillingService().ResolveCheckoutSuccess(ctx, sessionID)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("checkout success resolution failed")
		return redirectError(c, "stripe_error")
	}
	if result.FailureReason != "" {
		return redirectError(c, result.FailureReason)
	}

	if result.Gift {
		log.Info().Str("subscription_id", result.SubscriptionID).Msg("gift checkout, redirecting to confirmation")
		return c.Redirect(appURL()+constants.GiftConfirmationRoute, fiber.StatusSeeOther)
	}

	authorizeURL := auth0.NewClientFromEnv().AuthorizeURL(result.SubscriptionID)
	log.Info().Str("subscription_id", result.SubscriptionID).Msg("direct checkout, redirecting to identity provider")
	return c.Redirect(authorizeURL, fiber.StatusSeeOther)
}

// HandleAuthCallback completes account creation: it exchanges the
// authorization code, reads the subject from the ID token and links it to
// the subscriber record named by the state parameter.
func HandleAuthCallback(c *fiber.Ctx) error {
	code := strings.TrimSpace(c.Query("code"))
	state := strings.TrimSpace(c.Query("state"))
	if code == "" || state == "" {
		log.Warn().Msg("auth callback missing code or state")
		return redirectError(c, "callback_failed")
	}

	log.Info().Str("subscription_id", state).Msg("processing auth callback")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	tokens, err := auth0.NewClientFromEnv().ExchangeCode(ctx, code)
	if err != nil {
		log.Error().Err(err).Str("subscription_id", state).Msg("authorization code exchange failed")
		return redirectError(c, "callback_failed")
	}

	claims, err := auth0.DecodeIDTokenClaims(tokens.IDToken)
	if err != nil {
		log.Error().Err(err).Str("subscription_id", state).Msg("id token did not decode")
		return redirectError(c, "callback_failed")
	}

	result, err := newBillingService().LinkSubscriberAccount(ctx, state, claims.Subject, claims.Email)
	if err != nil {
		if errors.Is(err, billing.ErrSubscriberNotFound) {
			log.Error().Str("subscription_id", state).Msg("no subscriber record for auth callback")
			return redirectError(c, "user_not_found")
		}
		log.Error().Err(err).Str("subscription_id", state).Msg("account linking failed")
		return redirectError(c, "callback_failed")
	}

	if result.RedirectOverride != "" {
		newMonitoringService().RecordRedirect(claims.Subject, claims.Email, result.RedirectOverride)
		log.Info().Str("subscription_id", state).Str("redirect_url", result.RedirectOverride).Msg("validation policy redirecting to landing page")
		return c.Redirect(result.RedirectOverride, fiber.StatusSeeOther)
	}

	return c.Redirect(appURL()+constants.DashboardRoute, fiber.StatusSeeOther)
}

// HandleHealth reports process liveness plus database and cache
// reachability.
func HandleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dbStatus := "up"
	db := database.GetDB()
	if db == nil {
		dbStatus = "down"
	} else if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		dbStatus = "down"
	}

	cacheStatus := "up"
	if err := cache.Ping(ctx); err != nil {
		cacheStatus = "down"
	}

	status := fiber.StatusOK
	overall := "ok"
	if dbStatus != "up" || cacheStatus != "up" {
		status = fiber.StatusServiceUnavailable
		overall = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status":   overall,
		"database": dbStatus,
		"cache":    cacheStatus,
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
}

// Placeholder pages for exercising the checkout flow end to end when
// APP_URL points back at this service.

func HandleDashboardPlaceholder(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message":    "Subscription completed successfully!",
		"status":     "You are now subscribed.",
		"next_steps": "This is a placeholder dashboard page for testing.",
	})
}

func HandleGiftConfirmationPlaceholder(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message":    "Gift subscription sent!",
		"status":     "The recipient will receive an invitation email.",
		"next_steps": "This is a placeholder gift confirmation page for testing.",
	})
}

func HandleErrorPlaceholder(c *fiber.Ctx) error {
	reason := strings.TrimSpace(c.Query("reason"))
	if reason == "" {
		reason = "Unknown error"
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message":    "An error occurred during the subscription process.",
		"reason":     reason,
		"next_steps": "This is a placeholder error page for testing.",
	})
}

func newBillingService() *billing.Service {
	repos := repository.GetGlobalRepositories()
	return billing.NewServiceFromRepositories(
		repos,
		billing.NewStripeClientFromEnv(),
		auth0.NewClientFromEnv(),
		newMonitoringService(),
	)
}

func newMonitoringService() *monitoring.Service {
	return monitoring.NewService(repository.GetGlobalRepositories().SubscriptionEvent)
}

func appURL() string {
	return strings.TrimRight(env.GetEnv("APP_URL", "http://localhost:8000"), "/")
}

func redirectError(c *fiber.Ctx, reason string) error {
	return c.Redirect(appURL()+constants.ErrorRoute+"?reason="+reason, fiber.StatusSeeOther)
}
