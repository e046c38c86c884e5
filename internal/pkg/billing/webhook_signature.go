package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	stripe "github.com/stripe/stripe-go/v82"
)

// Verification failures are distinguishable so the webhook handler can map
// a missing header or missing secret to a different response than a genuine
// mismatch.
var (
	ErrMissingSignatureHeader   = errors.New("missing signature header")
	ErrMissingWebhookSecret     = errors.New("webhook secret is not configured")
	ErrMalformedSignatureHeader = errors.New("malformed signature header")
	ErrSignatureMismatch        = errors.New("signature mismatch")
)

// Remote-origin classes used when selecting the signing secret.
const (
	SecretOriginProduction = "production"
	SecretOriginCLI        = "cli"
)

// SignatureHeader is the parsed stripe-signature header: a unix timestamp
// and one or more v1 signature candidates.
type SignatureHeader struct {
	Timestamp  int64
	Signatures [][]byte
}

// ParseSignatureHeader splits a stripe-signature header into its timestamp
// and decoded v1 values. Pairs with unknown keys are ignored; v1 values that
// do not decode as hex are skipped. A header without a timestamp or without
// any usable v1 value is malformed.
func ParseSignatureHeader(header string) (*SignatureHeader, error) {
	parsed := &SignatureHeader{Timestamp: -1}
	for _, pair := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad timestamp %q", ErrMalformedSignatureHeader, value)
			}
			parsed.Timestamp = ts
		case "v1":
			sig, err := hex.DecodeString(value)
			if err != nil {
				continue
			}
			parsed.Signatures = append(parsed.Signatures, sig)
		}
	}
	if parsed.Timestamp < 0 {
		return nil, fmt.Errorf("%w: no timestamp", ErrMalformedSignatureHeader)
	}
	if len(parsed.Signatures) == 0 {
		return nil, fmt.Errorf("%w: no v1 signature", ErrMalformedSignatureHeader)
	}
	return parsed, nil
}

// ComputeSignature returns the HMAC-SHA256 of "{timestamp}.{payload}" under
// the given secret. The payload must be the exact bytes as received on the
// wire; any re-serialization breaks the digest.
func ComputeSignature(timestamp int64, payload []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}

// VerifyWebhookSignature checks the payload against the signature header
// using exactly one secret. Any v1 candidate matching the recomputed digest
// accepts the delivery.
func VerifyWebhookSignature(payload []byte, signatureHeader, webhookSecret string) error {
	if strings.TrimSpace(webhookSecret) == "" {
		return ErrMissingWebhookSecret
	}
	if strings.TrimSpace(signatureHeader) == "" {
		return ErrMissingSignatureHeader
	}

	parsed, err := ParseSignatureHeader(signatureHeader)
	if err != nil {
		return err
	}

	expected := ComputeSignature(parsed.Timestamp, payload, webhookSecret)
	for _, candidate := range parsed.Signatures {
		if hmac.Equal(expected, candidate) {
			return nil
		}
	}
	return ErrSignatureMismatch
}

// SelectWebhookSecret picks which signing secret a delivery is checked
// against: loopback callers get the CLI secret when one is configured,
// everything else gets the production secret. Exactly one secret is tried
// per request so a CLI-signed payload is never accepted as production.
func SelectWebhookSecret(remoteIP, productionSecret, cliSecret string) (secret string, origin string) {
	if remoteIP == "127.0.0.1" && strings.TrimSpace(cliSecret) != "" {
		return cliSecret, SecretOriginCLI
	}
	return productionSecret, SecretOriginProduction
}

// ParseWebhookEvent decodes verified wire bytes into the provider's event
// envelope. The nested object stays raw; handlers decode it per event type.
func ParseWebhookEvent(payload []byte) (*stripe.Event, error) {
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("parse webhook payload: %w", err)
	}
	if event.Type == "" {
		return nil, errors.New("webhook payload missing event type")
	}
	return &event, nil
}

// SecretPreview returns a loggable prefix of a secret. Full secrets must
// never reach the logs.
func SecretPreview(secret string) string {
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:4] + "..."
}

// SignaturePreview returns a short hex prefix of a computed signature for
// diagnostics.
func SignaturePreview(sig []byte) string {
	encoded := hex.EncodeToString(sig)
	if len(encoded) <= 16 {
		return encoded
	}
	return encoded[:16] + "..."
}
