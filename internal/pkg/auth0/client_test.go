package auth0

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

// newTestClient points a client at a stub identity provider. Token responses
// use a short expires_in so nothing sticks in the shared cache between tests.
func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	client := &Client{
		BaseURL:        srv.URL,
		ClientID:       "client_unit",
		ClientSecret:   "secret_unit",
		DBConnectionID: "con_unit",
		RedirectURI:    "https://admin.example.com/subscription/auth/callback",
		HTTPClient:     srv.Client(),
	}
	return client, srv
}

func writeManagementToken(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"access_token": "tok_mgmt",
		"expires_in":   60,
	})
}

func TestAuthorizeURL(t *testing.T) {
	c := &Client{
		BaseURL:     "https://tenant.auth0.example/",
		ClientID:    "client_unit",
		RedirectURI: "https://admin.example.com/subscription/auth/callback",
	}

	raw := c.AuthorizeURL("sub_123")
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("authorize URL does not parse: %v", err)
	}
	if parsed.Path != "/authorize" {
		t.Fatalf("path = %q, want /authorize", parsed.Path)
	}
	q := parsed.Query()
	if q.Get("response_type") != "code" {
		t.Errorf("response_type = %q", q.Get("response_type"))
	}
	if q.Get("client_id") != "client_unit" {
		t.Errorf("client_id = %q", q.Get("client_id"))
	}
	if q.Get("redirect_uri") != "https://admin.example.com/subscription/auth/callback" {
		t.Errorf("redirect_uri = %q", q.Get("redirect_uri"))
	}
	if q.Get("state") != "sub_123" {
		t.Errorf("state = %q, want the subscription id", q.Get("state"))
	}
}

func TestDecodeIDTokenClaims(t *testing.T) {
	idToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "auth0|user_1",
		"email": "user@example.com",
	}).SignedString([]byte("unit-test-key"))
	if err != nil {
		t.Fatalf("sign test token: %v", err)
	}

	claims, err := DecodeIDTokenClaims(idToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.Subject != "auth0|user_1" || claims.Email != "user@example.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": "user@example.com",
	}).SignedString([]byte("unit-test-key"))
	if err != nil {
		t.Fatalf("sign test token: %v", err)
	}
	if _, err := DecodeIDTokenClaims(noSub); err == nil {
		t.Fatalf("expected token without subject to be rejected")
	}
	if _, err := DecodeIDTokenClaims("not.a.jwt"); err == nil {
		t.Fatalf("expected garbage token to be rejected")
	}
}

func TestExchangeCode(t *testing.T) {
	idToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "auth0|user_1",
	}).SignedString([]byte("unit-test-key"))
	if err != nil {
		t.Fatalf("sign test token: %v", err)
	}

	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/token" {
			t.Errorf("path = %q, want /oauth/token", r.URL.Path)
		}
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		if body["grant_type"] != "authorization_code" {
			t.Errorf("grant_type = %v", body["grant_type"])
		}
		if body["code"] != "code_123" {
			t.Errorf("code = %v", body["code"])
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "tok_access",
			"id_token":     idToken,
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	defer srv.Close()

	ts, err := client.ExchangeCode(context.Background(), "code_123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.IDToken != idToken {
		t.Fatalf("id_token not carried through")
	}

	if _, err := client.ExchangeCode(context.Background(), "  "); err == nil {
		t.Fatalf("expected empty code to be rejected before any request")
	}
}

func TestExchangeCode_MissingIDToken(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "tok_access"})
	})
	defer srv.Close()

	if _, err := client.ExchangeCode(context.Background(), "code_123"); err == nil {
		t.Fatalf("expected missing id_token to be rejected")
	}
}

func TestSendInvitation(t *testing.T) {
	var invitation map[string]interface{}

	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			writeManagementToken(w)
		case "/api/v2/tickets/email":
			if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
				t.Errorf("management call without bearer token")
			}
			if err := json.NewDecoder(r.Body).Decode(&invitation); err != nil {
				t.Errorf("decode invitation: %v", err)
			}
			w.WriteHeader(http.StatusCreated)
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
	defer srv.Close()

	if err := client.SendInvitation(context.Background(), "recipient@example.com", "sub_123"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if invitation["email"] != "recipient@example.com" {
		t.Fatalf("invitation email = %v", invitation["email"])
	}
	meta, _ := invitation["user_metadata"].(map[string]interface{})
	if meta["subscription_id"] != "sub_123" {
		t.Fatalf("invitation metadata = %v", invitation["user_metadata"])
	}

	if err := client.SendInvitation(context.Background(), "", "sub_123"); err == nil {
		t.Fatalf("expected empty email to be rejected")
	}
}

func TestFindUserIDByEmail(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			writeManagementToken(w)
		case "/api/v2/users-by-email":
			email := r.URL.Query().Get("email")
			w.Header().Set("Content-Type", "application/json")
			if email == "known@example.com" {
				json.NewEncoder(w).Encode([]map[string]string{{"user_id": "auth0|known"}})
				return
			}
			w.Write([]byte(`[]`))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
	defer srv.Close()

	userID, err := client.FindUserIDByEmail(context.Background(), "known@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if userID != "auth0|known" {
		t.Fatalf("user id = %q", userID)
	}

	userID, err = client.FindUserIDByEmail(context.Background(), "ghost@example.com")
	if err != nil {
		t.Fatalf("missing account must not error: %v", err)
	}
	if userID != "" {
		t.Fatalf("expected empty user id for an unknown email, got %q", userID)
	}
}

func TestDeleteUser(t *testing.T) {
	deleted := ""

	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/oauth/token":
			writeManagementToken(w)
		case strings.HasPrefix(r.URL.Path, "/api/v2/users/"):
			if r.Method != http.MethodDelete {
				t.Errorf("method = %s, want DELETE", r.Method)
			}
			deleted = strings.TrimPrefix(r.URL.Path, "/api/v2/users/")
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
	defer srv.Close()

	if err := client.DeleteUser(context.Background(), "auth0|gone"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != "auth0|gone" {
		t.Fatalf("deleted id = %q", deleted)
	}
}

func TestClientRequiresBaseURL(t *testing.T) {
	c := &Client{HTTPClient: http.DefaultClient}
	if _, err := c.ExchangeCode(context.Background(), "code_123"); err == nil {
		t.Fatalf("expected missing AUTH0_DOMAIN to fail before any request")
	}
}
