package main

import (
	"crypto/hmac"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/arclightai/arclight-admin/internal/pkg/billing"
	"github.com/arclightai/arclight-admin/internal/pkg/env"
	"github.com/arclightai/arclight-admin/internal/pkg/magiclink"
)

// Offline HMAC diagnostics. The default mode replays webhook captures
// written by the raw-body middleware against the configured secrets and
// reports which secret reproduces each delivered v1 signature; the usual
// finding is a CLI delivery checked against the production secret or vice
// versa. The token mode mints and verifies hand-off tokens the same way,
// outside the admin endpoint.
func main() {
	dir := flag.String("dir", "", "capture directory (default: DEBUG_DIR or debug_logs)")
	extraSecret := flag.String("secret", "", "additional secret to test, e.g. one copied from the provider dashboard")
	only := flag.String("id", "", "analyze a single capture by request id")
	token := flag.String("token", "", "verify a hand-off token instead of replaying captures (needs -identity and -expiry)")
	identity := flag.String("identity", "", "identity claim the hand-off token was minted for")
	expiry := flag.Int64("expiry", 0, "unix expiry the hand-off token was minted with")
	mint := flag.Bool("mint", false, "mint a fresh hand-off token for -identity and print the link")
	flag.Parse()

	env.SetupEnvFile()

	if *mint || *token != "" {
		if err := runTokenMode(*mint, *token, *identity, *expiry); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	captureDir := *dir
	if captureDir == "" {
		captureDir = env.GetEnv("DEBUG_DIR", "debug_logs")
	}

	secrets := candidateSecrets(*extraSecret)
	if len(secrets) == 0 {
		fmt.Fprintln(os.Stderr, "no secrets to test: configure STRIPE_WEBHOOK_SECRET / STRIPE_WEBHOOK_SECRET_CLI or pass -secret")
		os.Exit(1)
	}

	bodies, err := filepath.Glob(filepath.Join(captureDir, "webhook_body_*.bin"))
	if err != nil || len(bodies) == 0 {
		fmt.Printf("no webhook captures found in %s\n", captureDir)
		return
	}
	sort.Strings(bodies)

	fmt.Printf("found %d captures in %s, testing %d secrets\n", len(bodies), captureDir, len(secrets))

	analyzed := 0
	for _, bodyPath := range bodies {
		requestID := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(bodyPath), "webhook_body_"), ".bin")
		if *only != "" && requestID != *only {
			continue
		}
		analyzeCapture(captureDir, requestID, bodyPath, secrets)
		analyzed++
	}

	if analyzed == 0 {
		fmt.Printf("no capture matches request id %s\n", *only)
	}
}

// runTokenMode mints or verifies hand-off tokens outside the admin
// endpoint. Verification needs the identity and expiry the token was minted
// with; the token itself does not carry them.
func runTokenMode(mint bool, token, identity string, expiry int64) error {
	links := magiclink.NewServiceFromEnv()

	if mint {
		if identity == "" {
			return errors.New("minting needs -identity")
		}
		minted, err := links.CreateToken(identity)
		if err != nil {
			return fmt.Errorf("could not mint token: %w", err)
		}
		link, err := links.BuildLink(minted.Value)
		if err != nil {
			return fmt.Errorf("could not build link: %w", err)
		}
		fmt.Printf("token:      %s\n", minted.Value)
		fmt.Printf("link:       %s\n", link)
		fmt.Printf("expires_at: %d (%s)\n", minted.ExpiresAt, time.Unix(minted.ExpiresAt, 0).Format(time.RFC3339))
		fmt.Println("verify later with: -token <token> -identity", identity, "-expiry", minted.ExpiresAt)
		return nil
	}

	random, signature, ok := magiclink.TokenInfo(token)
	if !ok {
		return errors.New("token is malformed: expected {64 hex}.{64 hex}")
	}
	fmt.Printf("format ok: random=%s... signature=%s...\n", random[:8], signature[:8])

	if identity == "" || expiry == 0 {
		return errors.New("verification needs -identity and -expiry")
	}
	switch err := links.Verify(token, identity, expiry); {
	case err == nil:
		fmt.Printf("VALID: token binds %q until %s\n", identity, time.Unix(expiry, 0).Format(time.RFC3339))
	case errors.Is(err, magiclink.ErrTokenExpired):
		fmt.Printf("EXPIRED: signature is genuine but the token lapsed at %s\n", time.Unix(expiry, 0).Format(time.RFC3339))
	case errors.Is(err, magiclink.ErrSignatureMismatch):
		fmt.Println("NO MATCH: signature does not verify for that identity and expiry under the configured secret")
	default:
		return err
	}
	return nil
}

type namedSecret struct {
	label  string
	secret string
}

func candidateSecrets(extra string) []namedSecret {
	var secrets []namedSecret
	if s := env.GetEnv("STRIPE_WEBHOOK_SECRET", ""); s != "" {
		secrets = append(secrets, namedSecret{label: billing.SecretOriginProduction, secret: s})
	}
	if s := env.GetEnv("STRIPE_WEBHOOK_SECRET_CLI", ""); s != "" {
		secrets = append(secrets, namedSecret{label: billing.SecretOriginCLI, secret: s})
	}
	if extra != "" {
		secrets = append(secrets, namedSecret{label: "flag", secret: extra})
	}
	return secrets
}

func analyzeCapture(dir, requestID, bodyPath string, secrets []namedSecret) {
	fmt.Printf("\n== %s\n", requestID)

	body, err := os.ReadFile(bodyPath)
	if err != nil {
		fmt.Printf("  could not read body: %v\n", err)
		return
	}
	fmt.Printf("  body: %d bytes\n", len(body))

	var event struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		fmt.Println("  body is not valid JSON")
	} else {
		fmt.Printf("  event: id=%s type=%s\n", event.ID, event.Type)
	}

	sigHeader, err := capturedSignatureHeader(filepath.Join(dir, "webhook_headers_"+requestID+".txt"))
	if err != nil {
		fmt.Printf("  %v\n", err)
		return
	}

	parsed, err := billing.ParseSignatureHeader(sigHeader)
	if err != nil {
		fmt.Printf("  signature header did not parse: %v\n", err)
		return
	}
	fmt.Printf("  timestamp: %d, %d v1 signature(s)\n", parsed.Timestamp, len(parsed.Signatures))

	matched := false
	for _, candidate := range secrets {
		expected := billing.ComputeSignature(parsed.Timestamp, body, candidate.secret)
		for i, provided := range parsed.Signatures {
			if hmac.Equal(expected, provided) {
				fmt.Printf("  MATCH: v1[%d] was signed with the %s secret (%s)\n", i, candidate.label, billing.SecretPreview(candidate.secret))
				matched = true
			}
		}
	}
	if !matched {
		fmt.Println("  NO MATCH: none of the tested secrets reproduce any delivered v1 signature")
		for _, candidate := range secrets {
			expected := billing.ComputeSignature(parsed.Timestamp, body, candidate.secret)
			fmt.Printf("    expected with %s secret: %s\n", candidate.label, hex.EncodeToString(expected))
		}
	}
}

func capturedSignatureHeader(headerPath string) (string, error) {
	data, err := os.ReadFile(headerPath)
	if err != nil {
		return "", fmt.Errorf("could not read headers file %s: %w", headerPath, err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(name), "stripe-signature") {
			return strings.TrimSpace(value), nil
		}
	}
	return "", fmt.Errorf("no stripe-signature header in %s", headerPath)
}
