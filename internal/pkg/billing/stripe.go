package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/arclightai/arclight-admin/internal/pkg/env"
)

const defaultStripeAPIBaseURL = "https://api.stripe.com"

// ErrStripeNotFound marks a 404 from the provider API.
var ErrStripeNotFound = errors.New("stripe resource not found")

// StripeAPIError carries the provider's structured error response.
type StripeAPIError struct {
	StatusCode int
	Type       string
	Code       string
	Message    string
}

func (e *StripeAPIError) Error() string {
	return fmt.Sprintf("stripe api error: status=%d type=%s code=%s message=%s",
		e.StatusCode, e.Type, e.Code, e.Message)
}

// StripeClient calls the payment provider's REST API. Credentials are
// carried by the client, never read from package state.
type StripeClient struct {
	APIKey     string
	APIBaseURL string

	HTTPClient *http.Client
}

// NewStripeClientFromEnv builds a client from process configuration.
func NewStripeClientFromEnv() *StripeClient {
	return &StripeClient{
		APIKey:     strings.TrimSpace(env.GetEnv("STRIPE_API_KEY", "")),
		APIBaseURL: strings.TrimSpace(env.GetEnv("STRIPE_API_BASE_URL", defaultStripeAPIBaseURL)),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// GetCheckoutSession retrieves the full session with its subscription
// expanded. Webhook payloads may carry a partial session object, so
// processing always re-reads the source of truth.
func (c *StripeClient) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, errors.New("checkout session id is required")
	}
	query := url.Values{}
	query.Add("expand[]", "subscription")

	var session CheckoutSession
	if err := c.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(sessionID), query, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetSubscription retrieves a subscription by ID.
func (c *StripeClient) GetSubscription(ctx context.Context, subscriptionID string) (*StripeSubscription, error) {
	if strings.TrimSpace(subscriptionID) == "" {
		return nil, errors.New("subscription id is required")
	}
	var sub StripeSubscription
	if err := c.do(ctx, http.MethodGet, "/v1/subscriptions/"+url.PathEscape(subscriptionID), nil, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// CreateCheckoutSessionInput configures a test checkout session.
type CreateCheckoutSessionInput struct {
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// CreateCheckoutSession creates a subscription-mode checkout session. Used
// by the admin test endpoint, never by the webhook path.
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, in CreateCheckoutSessionInput) (*CheckoutSession, error) {
	if strings.TrimSpace(in.PriceID) == "" {
		return nil, errors.New("price id is required")
	}
	form := url.Values{}
	form.Set("mode", CheckoutModeSubscription)
	form.Set("line_items[0][price]", in.PriceID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", in.SuccessURL)
	form.Set("cancel_url", in.CancelURL)

	var session CheckoutSession
	if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", form, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// SessionPage is one page of checkout sessions.
type SessionPage struct {
	Sessions []CheckoutSession
	HasMore  bool
}

// ListOpenCheckoutSessions pages through sessions still in the open state.
func (c *StripeClient) ListOpenCheckoutSessions(ctx context.Context, startingAfter string) (*SessionPage, error) {
	query := url.Values{}
	query.Set("status", "open")
	query.Set("limit", strconv.Itoa(listPageSize))
	if startingAfter != "" {
		query.Set("starting_after", startingAfter)
	}

	var envelope struct {
		Data    []CheckoutSession `json:"data"`
		HasMore bool              `json:"has_more"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/checkout/sessions", query, &envelope); err != nil {
		return nil, err
	}
	return &SessionPage{Sessions: envelope.Data, HasMore: envelope.HasMore}, nil
}

// ExpireCheckoutSession expires an open session so it can no longer be paid.
func (c *StripeClient) ExpireCheckoutSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodPost, "/v1/checkout/sessions/"+url.PathEscape(sessionID)+"/expire", url.Values{}, nil)
}

// CustomerPage is one page of customers.
type CustomerPage struct {
	Customers []StripeCustomer
	HasMore   bool
}

const listPageSize = 100

// ListCustomers pages through customers oldest-cursor first.
func (c *StripeClient) ListCustomers(ctx context.Context, startingAfter string) (*CustomerPage, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(listPageSize))
	if startingAfter != "" {
		query.Set("starting_after", startingAfter)
	}

	var envelope struct {
		Data    []StripeCustomer `json:"data"`
		HasMore bool             `json:"has_more"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/customers", query, &envelope); err != nil {
		return nil, err
	}
	return &CustomerPage{Customers: envelope.Data, HasMore: envelope.HasMore}, nil
}

// DeleteCustomer permanently deletes a customer.
func (c *StripeClient) DeleteCustomer(ctx context.Context, customerID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/customers/"+url.PathEscape(customerID), nil, nil)
}

func (c *StripeClient) do(ctx context.Context, method, path string, params url.Values, out interface{}) error {
	if strings.TrimSpace(c.APIKey) == "" {
		return errors.New("STRIPE_API_KEY is not configured")
	}

	endpoint := strings.TrimRight(c.APIBaseURL, "/") + path
	var body io.Reader
	switch method {
	case http.MethodPost:
		if params != nil {
			body = strings.NewReader(params.Encode())
		}
	default:
		if len(params) > 0 {
			endpoint += "?" + params.Encode()
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Accept", "application/json")
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s %s", ErrStripeNotFound, method, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &StripeAPIError{StatusCode: resp.StatusCode}
		var wrapper struct {
			Error struct {
				Type    string `json:"type"`
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(data, &wrapper) == nil {
			apiErr.Type = wrapper.Error.Type
			apiErr.Code = wrapper.Error.Code
			apiErr.Message = wrapper.Error.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
