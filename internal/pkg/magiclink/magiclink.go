package magiclink

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/arclightai/arclight-admin/internal/pkg/env"
)

// Token parameters. The random component is 32 bytes, hex encoded, and a
// token stays valid for five minutes from issuance.
const (
	tokenRandomBytes = 32
	tokenHexLen      = tokenRandomBytes * 2

	TokenTTL = 5 * time.Minute
)

var (
	// ErrMissingSecret is a configuration failure, not attributable to the
	// caller.
	ErrMissingSecret = errors.New("magic link secret is not configured")

	ErrMalformedToken    = errors.New("malformed magic link token")
	ErrSignatureMismatch = errors.New("magic link signature mismatch")
	ErrTokenExpired      = errors.New("magic link token expired")
)

// Service issues and verifies hand-off tokens. Tokens are never stored;
// validity is recomputed from the secret on every check.
type Service struct {
	Secret       string
	ClientAppURL string
}

var warnWeakConfig sync.Once

// NewServiceFromEnv builds the service from process configuration and warns
// once per process about weak settings. Missing values surface as errors at
// call time.
func NewServiceFromEnv() *Service {
	s := &Service{
		Secret:       env.GetEnv("MAGIC_LINK_SECRET", ""),
		ClientAppURL: strings.TrimSpace(env.GetEnv("CLIENT_APP_URL", "")),
	}
	warnWeakConfig.Do(func() {
		if s.Secret != "" && len(s.Secret) < 32 {
			log.Warn().Msg("MAGIC_LINK_SECRET is shorter than the recommended 32 characters")
		}
		if s.ClientAppURL != "" && !strings.HasPrefix(s.ClientAppURL, "http://") && !strings.HasPrefix(s.ClientAppURL, "https://") {
			log.Warn().Str("url", s.ClientAppURL).Msg("CLIENT_APP_URL does not start with http:// or https://")
		}
	})
	return s
}

// Token is an issued hand-off token. The identity claim and expiry are not
// recoverable from Value; the issuer must pass them alongside.
type Token struct {
	Value     string
	ExpiresAt int64
}

// CreateToken issues a token binding the identity claim for the next five
// minutes. The emitted string is "{random_hex}.{signature_hex}".
func (s *Service) CreateToken(identity string) (*Token, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, errors.New("identity claim is required")
	}
	if s.Secret == "" {
		return nil, ErrMissingSecret
	}

	buf := make([]byte, tokenRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	random := hex.EncodeToString(buf)
	expiry := time.Now().Add(TokenTTL).Unix()

	signature := s.sign(fmt.Sprintf("%s.%s.%d", random, identity, expiry))
	return &Token{
		Value:     random + "." + hex.EncodeToString(signature),
		ExpiresAt: expiry,
	}, nil
}

// BuildLink wraps a token into the client application's magic link URL.
func (s *Service) BuildLink(token string) (string, error) {
	if s.ClientAppURL == "" {
		return "", errors.New("CLIENT_APP_URL is not configured")
	}
	return strings.TrimRight(s.ClientAppURL, "/") + "/auth/magic?token=" + token, nil
}

// Verify recomputes the signature for the claimed identity and expiry and
// checks both. An expired token with a correct signature gets the expiry
// error so the caller can decide to re-issue.
func (s *Service) Verify(token, identity string, expiry int64) error {
	if s.Secret == "" {
		return ErrMissingSecret
	}
	if !ValidateFormat(token) {
		return ErrMalformedToken
	}

	random, signature, _ := strings.Cut(token, ".")
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return ErrMalformedToken
	}
	expected := s.sign(fmt.Sprintf("%s.%s.%d", random, identity, expiry))
	if !hmac.Equal(provided, expected) {
		return ErrSignatureMismatch
	}
	if time.Now().Unix() > expiry {
		return ErrTokenExpired
	}
	return nil
}

func (s *Service) sign(message string) []byte {
	mac := hmac.New(sha256.New, []byte(s.Secret))
	mac.Write([]byte(message))
	return mac.Sum(nil)
}

// ValidateFormat reports whether a token is structurally a hand-off token:
// two 64-character lowercase hex parts joined by a single dot. Cheap check
// before any cryptographic work.
func ValidateFormat(token string) bool {
	random, signature, found := strings.Cut(token, ".")
	if !found {
		return false
	}
	if strings.Contains(signature, ".") {
		return false
	}
	return isLowerHex(random) && isLowerHex(signature)
}

// TokenInfo splits a token for logging and diagnostics. It does not check
// the signature.
func TokenInfo(token string) (random, signature string, ok bool) {
	if !ValidateFormat(token) {
		return "", "", false
	}
	random, signature, _ = strings.Cut(token, ".")
	return random, signature, true
}

func isLowerHex(s string) bool {
	if len(s) != tokenHexLen {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
