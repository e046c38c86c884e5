package controllers

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/arclightai/arclight-admin/app/repository"
	"github.com/arclightai/arclight-admin/internal/pkg/billing"
	"github.com/arclightai/arclight-admin/internal/pkg/constants"
	"github.com/arclightai/arclight-admin/internal/pkg/env"
	"github.com/arclightai/arclight-admin/internal/pkg/magiclink"
)

type recoveryRequest struct {
	SubscriptionID string `json:"subscription_id" validate:"required"`
	Email          string `json:"email" validate:"required,email"`
}

// HandleAdminRecoverSubscription re-runs invitation issuance for a
// subscription that exists at the payment provider but never completed
// registration, typically after a lost webhook.
func HandleAdminRecoverSubscription(c *fiber.Ctx) error {
	var req recoveryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid request body"})
	}
	req.SubscriptionID = strings.TrimSpace(req.SubscriptionID)
	req.Email = strings.TrimSpace(req.Email)
	if err := validator.New().Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "subscription_id and a valid email are required"})
	}

	log.Info().Str("subscription_id", req.SubscriptionID).Msg("processing admin recovery request")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	outcome, err := newBillingService().RecoverSubscription(ctx, req.SubscriptionID, req.Email)
	if err != nil {
		if errors.Is(err, billing.ErrStripeNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "subscription not found at payment provider"})
		}
		log.Error().Err(err).Str("subscription_id", req.SubscriptionID).Msg("admin recovery failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "recovery failed"})
	}

	return c.JSON(fiber.Map{
		"success":         true,
		"subscription_id": outcome.SubscriptionID,
		"created":         outcome.Created,
		"invite_sent":     outcome.InviteSent,
		"status":          outcome.Status,
	})
}

type handoffRequest struct {
	SubscriptionID string `json:"subscription_id" validate:"required"`
}

// HandleAdminHandoffLink mints a magic link for a subscriber who already
// linked an identity-provider account, so support can hand them a sign-in
// URL for the client application.
func HandleAdminHandoffLink(c *fiber.Ctx) error {
	var req handoffRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid request body"})
	}
	req.SubscriptionID = strings.TrimSpace(req.SubscriptionID)
	if err := validator.New().Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "subscription_id is required"})
	}

	record, err := repository.GetGlobalRepositories().SubscriptionUser.GetBySubscriptionID(req.SubscriptionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "no subscriber record for that subscription"})
		}
		log.Error().Err(err).Str("subscription_id", req.SubscriptionID).Msg("handoff lookup failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "lookup failed"})
	}
	if record.Auth0ID == "" {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"success": false, "error": "subscriber has not linked an account yet"})
	}

	links := magiclink.NewServiceFromEnv()
	token, err := links.CreateToken(record.Auth0ID)
	if err != nil {
		log.Error().Err(err).Str("subscription_id", req.SubscriptionID).Msg("could not issue hand-off token")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "could not issue hand-off token"})
	}
	link, err := links.BuildLink(token.Value)
	if err != nil {
		log.Error().Err(err).Str("subscription_id", req.SubscriptionID).Msg("could not build hand-off link")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "could not build hand-off link"})
	}

	log.Info().Str("subscription_id", req.SubscriptionID).Int64("expires_at", token.ExpiresAt).Msg("hand-off link issued")

	return c.JSON(fiber.Map{
		"success":         true,
		"subscription_id": record.SubscriptionID,
		"email":           record.Email,
		"link":            link,
		"token":           token.Value,
		"expires_at":      token.ExpiresAt,
	})
}

// HandleAdminGetSettings returns the validation policy row.
func HandleAdminGetSettings(c *fiber.Ctx) error {
	setting, err := repository.GetGlobalRepositories().AppSetting.Get()
	if err != nil {
		log.Error().Err(err).Msg("could not load settings")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "could not load settings"})
	}
	return c.JSON(fiber.Map{
		"subscription_validation_enabled": setting.SubscriptionValidationEnabled,
		"subscription_landing_page_url":   setting.SubscriptionLandingPageURL,
	})
}

type settingsUpdateRequest struct {
	ValidationEnabled *bool   `json:"subscription_validation_enabled"`
	LandingPageURL    *string `json:"subscription_landing_page_url"`
}

// HandleAdminUpdateSettings updates the validation policy. Fields absent
// from the payload keep their stored value; an empty landing URL clears it.
func HandleAdminUpdateSettings(c *fiber.Ctx) error {
	var req settingsUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid request body"})
	}

	if req.LandingPageURL != nil && !isValidLandingURL(*req.LandingPageURL) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid URL format, must start with http:// or https://"})
	}

	repo := repository.GetGlobalRepositories().AppSetting
	setting, err := repo.Get()
	if err != nil {
		log.Error().Err(err).Msg("could not load settings")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "could not load settings"})
	}

	if req.ValidationEnabled != nil {
		setting.SubscriptionValidationEnabled = *req.ValidationEnabled
	}
	if req.LandingPageURL != nil {
		setting.SubscriptionLandingPageURL = strings.TrimSpace(*req.LandingPageURL)
	}

	if err := repo.Save(setting); err != nil {
		log.Error().Err(err).Msg("could not save settings")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "could not save settings"})
	}

	log.Info().
		Bool("validation_enabled", setting.SubscriptionValidationEnabled).
		Str("landing_page_url", setting.SubscriptionLandingPageURL).
		Msg("validation settings updated")

	return c.JSON(fiber.Map{
		"success":                         true,
		"subscription_validation_enabled": setting.SubscriptionValidationEnabled,
		"subscription_landing_page_url":   setting.SubscriptionLandingPageURL,
	})
}

// HandleAdminWebhookConfig reports which webhook-related settings are
// present. Values themselves never leave the process.
func HandleAdminWebhookConfig(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"webhook_endpoint":          appURL() + constants.StripeWebhookRoute,
		"stripe_api_configured":     env.GetEnv("STRIPE_API_KEY", "") != "",
		"webhook_secret_configured": env.GetEnv("STRIPE_WEBHOOK_SECRET", "") != "",
		"cli_secret_configured":     env.GetEnv("STRIPE_WEBHOOK_SECRET_CLI", "") != "",
		"save_webhook_bodies":       env.GetBool("SAVE_WEBHOOK_BODIES"),
		"save_diagnostics":          env.GetBool("SAVE_WEBHOOK_DIAGNOSTICS"),
		"debug_dir":                 env.GetEnv("DEBUG_DIR", "debug_logs"),
		"log_level":                 env.GetEnv("LOG_LEVEL", "info"),
	})
}

type checkoutSessionRequest struct {
	PriceID string `json:"price_id" validate:"required"`
}

// HandleAdminCreateCheckoutSession creates a subscription-mode checkout
// session for flow testing. The returned URL is the provider-hosted
// checkout page.
func HandleAdminCreateCheckoutSession(c *fiber.Ctx) error {
	var req checkoutSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid request body"})
	}
	req.PriceID = strings.TrimSpace(req.PriceID)
	if err := validator.New().Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "price_id is required"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	session, err := billing.NewStripeClientFromEnv().CreateCheckoutSession(ctx, billing.CreateCheckoutSessionInput{
		PriceID:    req.PriceID,
		SuccessURL: appURL() + constants.StripeSuccessRoute + "?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  appURL() + constants.ErrorRoute + "?reason=checkout_cancelled",
	})
	if err != nil {
		log.Error().Err(err).Str("price_id", req.PriceID).Msg("could not create checkout session")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "could not create checkout session"})
	}

	log.Info().Str("session_id", session.ID).Msg("test checkout session created")

	return c.JSON(fiber.Map{"id": session.ID, "url": session.URL})
}

// isValidLandingURL accepts empty (clears the setting) or an absolute
// http(s) URL with a host.
func isValidLandingURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return true
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}
