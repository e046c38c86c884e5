package billing

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteSignatureDiagnostics(t *testing.T) {
	dir := t.TempDir()
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	secret := "whsec_diag_secret"
	header := signedHeader(payload, "whsec_other", 1700000000)

	path, err := WriteSignatureDiagnostics(dir, "req_1", header, payload, SecretOriginProduction, secret, ErrSignatureMismatch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(path) != "webhook_diag_req_1.txt" {
		t.Fatalf("unexpected file name %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read diagnostics: %v", err)
	}
	content := string(data)

	expected := hex.EncodeToString(ComputeSignature(1700000000, payload, secret))
	for _, want := range []string{
		"request_id: req_1",
		"secret_origin: production",
		"verify_error: signature mismatch",
		"timestamp: 1700000000",
		"expected_v1: " + expected,
		"provided_v1[0]: ",
	} {
		if !strings.Contains(content, want) {
			t.Fatalf("diagnostics missing %q:\n%s", want, content)
		}
	}
	if strings.Contains(content, secret) {
		t.Fatalf("diagnostics leak the full secret:\n%s", content)
	}
}

func TestWriteSignatureDiagnostics_UnparsableHeader(t *testing.T) {
	dir := t.TempDir()

	path, err := WriteSignatureDiagnostics(dir, "req_2", "garbage", []byte(`{}`), SecretOriginCLI, "whsec_x", ErrMalformedSignatureHeader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read diagnostics: %v", err)
	}
	if !strings.Contains(string(data), "header_parse_error:") {
		t.Fatalf("expected a header_parse_error line:\n%s", data)
	}
}
