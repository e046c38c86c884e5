package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arclightai/arclight-admin/internal/pkg/constants"
)

func TestRawBodyMiddlewareCapturesWebhookBody(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)

	app := fiber.New()
	app.Use(RawBodyMiddleware())
	app.Post(constants.StripeWebhookRoute, func(c *fiber.Ctx) error {
		first, ok := CapturedBody(c)
		require.True(t, ok)
		assert.Equal(t, payload, first)

		// Reading twice must observe the identical byte sequence.
		second, ok := CapturedBody(c)
		require.True(t, ok)
		assert.Equal(t, first, second)

		assert.NotEmpty(t, RequestID(c))
		return c.SendStatus(fiber.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, constants.StripeWebhookRoute, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestRawBodyMiddlewareIgnoresOtherRoutes(t *testing.T) {
	app := fiber.New()
	app.Use(RawBodyMiddleware())
	app.Post("/other", func(c *fiber.Ctx) error {
		_, ok := CapturedBody(c)
		assert.False(t, ok)
		assert.Empty(t, RequestID(c))
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Get(constants.StripeWebhookRoute, func(c *fiber.Ctx) error {
		_, ok := CapturedBody(c)
		assert.False(t, ok)
		return c.SendStatus(fiber.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/other", strings.NewReader(`{}`))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, constants.StripeWebhookRoute, nil)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestRawBodyMiddlewareSavesCapture(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SAVE_WEBHOOK_BODIES", "true")
	t.Setenv("DEBUG_DIR", dir)

	payload := []byte(`{"id":"evt_2","type":"checkout.session.completed"}`)

	app := fiber.New()
	app.Use(RawBodyMiddleware())
	app.Post(constants.StripeWebhookRoute, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, constants.StripeWebhookRoute, bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", "t=1700000000,v1=deadbeef")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	bodies, err := filepath.Glob(filepath.Join(dir, "webhook_body_*.bin"))
	require.NoError(t, err)
	require.Len(t, bodies, 1)

	saved, err := os.ReadFile(bodies[0])
	require.NoError(t, err)
	assert.Equal(t, payload, saved)

	headers, err := filepath.Glob(filepath.Join(dir, "webhook_headers_*.txt"))
	require.NoError(t, err)
	require.Len(t, headers, 1)

	headerData, err := os.ReadFile(headers[0])
	require.NoError(t, err)
	assert.Contains(t, string(headerData), "t=1700000000,v1=deadbeef")
}
