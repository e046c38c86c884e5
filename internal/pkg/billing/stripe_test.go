package billing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestStripeClient(handler http.HandlerFunc) (*StripeClient, *httptest.Server) {
	srv := httptest.NewServer(handler)
	client := &StripeClient{
		APIKey:     "sk_test_unit",
		APIBaseURL: srv.URL,
		HTTPClient: srv.Client(),
	}
	return client, srv
}

func TestGetCheckoutSession(t *testing.T) {
	client, srv := newTestStripeClient(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/v1/checkout/sessions/cs_test_1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("expand[]"); got != "subscription" {
			t.Errorf("expand[] = %q, want subscription", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test_unit" {
			t.Errorf("authorization = %q", got)
		}
		w.Write([]byte(`{"id":"cs_test_1","mode":"subscription","subscription":{"id":"sub_1","status":"active"}}`))
	})
	defer srv.Close()

	session, err := client.GetCheckoutSession(context.Background(), "cs_test_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.ID != "cs_test_1" || session.SubscriptionID() != "sub_1" {
		t.Fatalf("unexpected session: %+v", session)
	}
}

func TestGetSubscription_NotFound(t *testing.T) {
	client, srv := newTestStripeClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such subscription"}}`))
	})
	defer srv.Close()

	_, err := client.GetSubscription(context.Background(), "sub_missing")
	if !errors.Is(err, ErrStripeNotFound) {
		t.Fatalf("expected ErrStripeNotFound, got %v", err)
	}
}

func TestCreateCheckoutSession_FormEncoding(t *testing.T) {
	client, srv := newTestStripeClient(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Content-Type"); got != "application/x-www-form-urlencoded" {
			t.Errorf("content-type = %q", got)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostForm.Get("mode"); got != "subscription" {
			t.Errorf("mode = %q", got)
		}
		if got := r.PostForm.Get("line_items[0][price]"); got != "price_123" {
			t.Errorf("price = %q", got)
		}
		if got := r.PostForm.Get("line_items[0][quantity]"); got != "1" {
			t.Errorf("quantity = %q", got)
		}
		if got := r.PostForm.Get("success_url"); got != "https://example.com/success" {
			t.Errorf("success_url = %q", got)
		}
		w.Write([]byte(`{"id":"cs_new","url":"https://checkout.example.com/pay/cs_new"}`))
	})
	defer srv.Close()

	session, err := client.CreateCheckoutSession(context.Background(), CreateCheckoutSessionInput{
		PriceID:    "price_123",
		SuccessURL: "https://example.com/success",
		CancelURL:  "https://example.com/cancel",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.ID != "cs_new" || session.URL == "" {
		t.Fatalf("unexpected session: %+v", session)
	}
}

func TestListOpenCheckoutSessions_Pagination(t *testing.T) {
	client, srv := newTestStripeClient(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q.Get("status"); got != "open" {
			t.Errorf("status = %q, want open", got)
		}
		if got := q.Get("limit"); got != "100" {
			t.Errorf("limit = %q, want 100", got)
		}
		if q.Get("starting_after") == "" {
			w.Write([]byte(`{"data":[{"id":"cs_1"},{"id":"cs_2"}],"has_more":true}`))
			return
		}
		if got := q.Get("starting_after"); got != "cs_2" {
			t.Errorf("starting_after = %q, want cs_2", got)
		}
		w.Write([]byte(`{"data":[{"id":"cs_3"}],"has_more":false}`))
	})
	defer srv.Close()

	page, err := client.ListOpenCheckoutSessions(context.Background(), "")
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(page.Sessions) != 2 || !page.HasMore {
		t.Fatalf("unexpected first page: %+v", page)
	}

	page, err = client.ListOpenCheckoutSessions(context.Background(), "cs_2")
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(page.Sessions) != 1 || page.HasMore {
		t.Fatalf("unexpected second page: %+v", page)
	}
}

func TestStripeClient_APIError(t *testing.T) {
	client, srv := newTestStripeClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`))
	})
	defer srv.Close()

	_, err := client.GetSubscription(context.Background(), "sub_1")
	var apiErr *StripeAPIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected StripeAPIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusPaymentRequired || apiErr.Code != "card_declined" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestStripeClient_MissingAPIKey(t *testing.T) {
	client := &StripeClient{APIBaseURL: "https://api.example.com", HTTPClient: http.DefaultClient}

	if _, err := client.GetSubscription(context.Background(), "sub_1"); err == nil {
		t.Fatalf("expected missing API key to fail before any request")
	}
}
