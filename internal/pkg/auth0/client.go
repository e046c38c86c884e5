package auth0

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/arclightai/arclight-admin/internal/pkg/cache"
	"github.com/arclightai/arclight-admin/internal/pkg/env"
)

const managementTokenCacheKey = "auth0:management_token"

// tokenCacheSlack keeps a cached management token from expiring mid-request.
const tokenCacheSlack = 60 * time.Second

// Client talks to the identity provider's OAuth and Management APIs.
type Client struct {
	BaseURL        string
	ClientID       string
	ClientSecret   string
	DBConnectionID string
	RedirectURI    string

	HTTPClient *http.Client
}

// NewClientFromEnv builds a client from process configuration. AUTH0_DOMAIN
// may be given with or without a scheme.
func NewClientFromEnv() *Client {
	base := strings.TrimSpace(env.GetEnv("AUTH0_DOMAIN", ""))
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return &Client{
		BaseURL:        base,
		ClientID:       strings.TrimSpace(env.GetEnv("AUTH0_CLIENT_ID", "")),
		ClientSecret:   strings.TrimSpace(env.GetEnv("AUTH0_CLIENT_SECRET", "")),
		DBConnectionID: strings.TrimSpace(env.GetEnv("AUTH0_DB_CONNECTION_ID", "")),
		RedirectURI:    strings.TrimSpace(env.GetEnv("REDIRECT_URI", "")),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// ManagementToken returns a Management API token, from cache when one is
// still fresh. Cache failures fall back to fetching a new token.
func (c *Client) ManagementToken(ctx context.Context) (string, error) {
	if cached, err := cache.Get(managementTokenCacheKey); err == nil && cached != "" {
		return cached, nil
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	err := c.postJSON(ctx, "/oauth/token", "", map[string]interface{}{
		"client_id":     c.ClientID,
		"client_secret": c.ClientSecret,
		"audience":      strings.TrimRight(c.BaseURL, "/") + "/api/v2/",
		"grant_type":    "client_credentials",
	}, &out)
	if err != nil {
		return "", fmt.Errorf("management token: %w", err)
	}
	if out.AccessToken == "" {
		return "", errors.New("token response carries no access_token")
	}

	ttl := time.Duration(out.ExpiresIn)*time.Second - tokenCacheSlack
	if ttl > 0 {
		if err := cache.Set(managementTokenCacheKey, out.AccessToken, ttl); err != nil {
			log.Warn().Err(err).Msg("could not cache management token")
		}
	}
	return out.AccessToken, nil
}

// SendInvitation dispatches an email invitation carrying the subscription
// ID in the invited account's metadata.
func (c *Client) SendInvitation(ctx context.Context, email, subscriptionID string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.New("invitation email is required")
	}

	token, err := c.ManagementToken(ctx)
	if err != nil {
		return err
	}
	payload := map[string]interface{}{
		"email":                 email,
		"connection_id":         c.DBConnectionID,
		"client_id":             c.ClientID,
		"invitation":            true,
		"send_invitation_email": true,
		"user_metadata": map[string]string{
			"subscription_id": subscriptionID,
		},
	}
	if err := c.postJSON(ctx, "/api/v2/tickets/email", token, payload, nil); err != nil {
		return fmt.Errorf("send invitation: %w", err)
	}
	log.Info().Str("subscription_id", subscriptionID).Msg("sent account invitation")
	return nil
}

// AuthorizeURL builds the browser redirect for the authorization-code flow.
// The state parameter carries the subscription ID through the round trip.
func (c *Client) AuthorizeURL(subscriptionID string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", c.ClientID)
	q.Set("redirect_uri", c.RedirectURI)
	q.Set("state", subscriptionID)
	return strings.TrimRight(c.BaseURL, "/") + "/authorize?" + q.Encode()
}

// TokenSet is the token endpoint's response to a code exchange.
type TokenSet struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// ExchangeCode trades an authorization code for tokens.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*TokenSet, error) {
	if strings.TrimSpace(code) == "" {
		return nil, errors.New("authorization code is required")
	}

	var ts TokenSet
	err := c.postJSON(ctx, "/oauth/token", "", map[string]interface{}{
		"grant_type":    "authorization_code",
		"client_id":     c.ClientID,
		"client_secret": c.ClientSecret,
		"code":          code,
		"redirect_uri":  c.RedirectURI,
	}, &ts)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	if ts.IDToken == "" {
		return nil, errors.New("token response carries no id_token")
	}
	return &ts, nil
}

// IdentityClaims are the ID token fields the callback flow reads.
type IdentityClaims struct {
	Subject string
	Email   string
}

// DecodeIDTokenClaims extracts claims without signature verification. The
// token comes straight from the provider's token endpoint over TLS.
func DecodeIDTokenClaims(idToken string) (*IdentityClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return nil, fmt.Errorf("decode id token: %w", err)
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, errors.New("id token carries no subject")
	}
	email, _ := claims["email"].(string)
	return &IdentityClaims{Subject: sub, Email: email}, nil
}

// FindUserIDByEmail looks up the provider-side account for an email via the
// Management API. Returns empty without error when no account exists.
func (c *Client) FindUserIDByEmail(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", errors.New("email is required")
	}

	token, err := c.ManagementToken(ctx)
	if err != nil {
		return "", err
	}

	var users []struct {
		UserID string `json:"user_id"`
	}
	q := url.Values{}
	q.Set("email", email)
	if err := c.do(ctx, http.MethodGet, "/api/v2/users-by-email", q, token, nil, &users); err != nil {
		return "", fmt.Errorf("find user by email: %w", err)
	}
	if len(users) == 0 {
		return "", nil
	}
	return users[0].UserID, nil
}

// DeleteUser removes a provider-side account. Only the cleanup tooling
// calls this.
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("user id is required")
	}

	token, err := c.ManagementToken(ctx)
	if err != nil {
		return err
	}
	if err := c.do(ctx, http.MethodDelete, "/api/v2/users/"+url.PathEscape(userID), nil, token, nil, nil); err != nil {
		return fmt.Errorf("delete user %s: %w", userID, err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path, bearer string, payload interface{}, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, nil, bearer, payload, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, bearer string, payload interface{}, out interface{}) error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("AUTH0_DOMAIN is not configured")
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	endpoint := strings.TrimRight(c.BaseURL, "/") + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("auth0 %s returned status %d: %s", path, resp.StatusCode, truncateBody(data))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func truncateBody(data []byte) string {
	const max = 200
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}
