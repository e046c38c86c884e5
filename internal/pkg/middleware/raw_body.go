package middleware

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/arclightai/arclight-admin/internal/pkg/constants"
	"github.com/arclightai/arclight-admin/internal/pkg/env"
)

const (
	localsKeyRawBody   = "webhook_raw_body"
	localsKeyRequestID = "webhook_request_id"
)

// RawBodyMiddleware pins the exact wire bytes of webhook deliveries in
// request-scoped storage. The transport reuses body buffers between
// requests and JSON parsing does not round-trip byte-identically, so
// signature verification must run on a copy taken before anything else
// touches the request. All other paths pass through untouched.
func RawBodyMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost || c.Path() != constants.StripeWebhookRoute {
			return c.Next()
		}

		requestID := newRequestID()
		body := append([]byte(nil), c.BodyRaw()...)
		c.Locals(localsKeyRawBody, body)
		c.Locals(localsKeyRequestID, requestID)

		log.Debug().
			Str("request_id", requestID).
			Str("remote_ip", c.IP()).
			Int("bytes", len(body)).
			Msg("captured webhook body")

		if env.GetBool("SAVE_WEBHOOK_BODIES") {
			saveWebhookCapture(c, requestID, body)
		}
		return c.Next()
	}
}

// CapturedBody returns the pinned bytes for the current request. Every call
// within one request sees the same byte sequence.
func CapturedBody(c *fiber.Ctx) ([]byte, bool) {
	body, ok := c.Locals(localsKeyRawBody).([]byte)
	return body, ok
}

// RequestID returns the capture identifier assigned to the current request,
// or empty when the request was not intercepted.
func RequestID(c *fiber.Ctx) string {
	id, _ := c.Locals(localsKeyRequestID).(string)
	return id
}

func newRequestID() string {
	return fmt.Sprintf("req_%d_%s", time.Now().UnixNano(), uuid.NewString()[:8])
}

// saveWebhookCapture writes the payload and headers to the debug directory.
// Payment payloads end up on disk here, which is why the flag must stay off
// outside of debugging sessions.
func saveWebhookCapture(c *fiber.Ctx, requestID string, body []byte) {
	dir := env.GetEnv("DEBUG_DIR", "debug_logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("could not create debug directory")
		return
	}

	bodyPath := filepath.Join(dir, "webhook_body_"+requestID+".bin")
	if err := os.WriteFile(bodyPath, body, 0o600); err != nil {
		log.Warn().Err(err).Str("path", bodyPath).Msg("could not save webhook body")
		return
	}

	var headers bytes.Buffer
	c.Request().Header.VisitAll(func(key, value []byte) {
		headers.Write(key)
		headers.WriteString(": ")
		headers.Write(value)
		headers.WriteByte('\n')
	})
	headerPath := filepath.Join(dir, "webhook_headers_"+requestID+".txt")
	if err := os.WriteFile(headerPath, headers.Bytes(), 0o600); err != nil {
		log.Warn().Err(err).Str("path", headerPath).Msg("could not save webhook headers")
		return
	}

	log.Debug().Str("request_id", requestID).Msg("saved webhook capture")
}
