package billing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// WriteSignatureDiagnostics dumps everything verification saw for one
// delivery into {dir}/webhook_diag_{requestID}.txt so a signature mismatch
// can be analyzed offline. The secret itself is reduced to a preview; the
// payload is referenced by length and digest only.
func WriteSignatureDiagnostics(dir, requestID, header string, payload []byte, secretOrigin, secret string, verifyErr error) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create diagnostics dir %s: %w", dir, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "request_id: %s\n", requestID)
	fmt.Fprintf(&b, "captured_at: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "secret_origin: %s\n", secretOrigin)
	fmt.Fprintf(&b, "secret_preview: %s\n", SecretPreview(secret))
	sum := sha256.Sum256(payload)
	fmt.Fprintf(&b, "payload_bytes: %d\n", len(payload))
	fmt.Fprintf(&b, "payload_sha256: %s\n", hex.EncodeToString(sum[:]))
	fmt.Fprintf(&b, "signature_header: %s\n", header)
	if verifyErr != nil {
		fmt.Fprintf(&b, "verify_error: %v\n", verifyErr)
	}

	parsed, parseErr := ParseSignatureHeader(header)
	if parseErr != nil {
		fmt.Fprintf(&b, "header_parse_error: %v\n", parseErr)
	} else {
		fmt.Fprintf(&b, "timestamp: %d\n", parsed.Timestamp)
		expected := ComputeSignature(parsed.Timestamp, payload, secret)
		fmt.Fprintf(&b, "expected_v1: %s\n", hex.EncodeToString(expected))
		for i, sig := range parsed.Signatures {
			fmt.Fprintf(&b, "provided_v1[%d]: %s\n", i, hex.EncodeToString(sig))
		}
	}

	path := filepath.Join(dir, fmt.Sprintf("webhook_diag_%s.txt", requestID))
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		return "", fmt.Errorf("write diagnostics file: %w", err)
	}
	return path, nil
}
