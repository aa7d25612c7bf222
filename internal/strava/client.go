// Package strava talks to the Strava v3 API and normalizes its payloads.
package strava

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"example.com/runsync/internal/domain"
)

const (
	defaultAPIBase  = "https://www.strava.com/api/v3"
	defaultTokenURL = "https://www.strava.com/oauth/token"

	// Strava flags revoked activity-read scope with this string in the
	// error body while still answering other endpoints normally.
	readPermissionMarker = "activity:read_permission"
)

// Client is an authenticated Strava API client. App credentials are fixed
// per deployment; per-user access tokens are provided per call.
type Client struct {
	httpClient   *http.Client
	apiBase      string
	tokenURL     string
	clientID     string
	clientSecret string
}

// Option configures optional Client behaviour.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client, primarily for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURLs points the client at alternative API and token endpoints.
func WithBaseURLs(apiBase, tokenURL string) Option {
	return func(c *Client) {
		c.apiBase = strings.TrimSuffix(apiBase, "/")
		c.tokenURL = tokenURL
	}
}

// NewClient constructs a Client with the application credentials.
func NewClient(clientID, clientSecret string, opts ...Option) *Client {
	c := &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		apiBase:      defaultAPIBase,
		tokenURL:     defaultTokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RefreshToken performs a refresh-token grant. The provider rotates the
// refresh token, so callers must persist the full response.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	body, err := json.Marshal(map[string]string{
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, responseError(resp)
	}

	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	return &token, nil
}

// ListActivities fetches the most recent perPage activities for the athlete
// owning accessToken. One page only; this is the poller's deliberate bound.
func (c *Client) ListActivities(ctx context.Context, accessToken string, perPage int) ([]RawActivity, error) {
	endpoint := fmt.Sprintf("%s/athlete/activities?per_page=%d", c.apiBase, perPage)

	var activities []RawActivity
	if err := c.getJSON(ctx, endpoint, accessToken, &activities); err != nil {
		return nil, err
	}
	return activities, nil
}

// GetActivity fetches one activity by its provider-assigned id.
func (c *Client) GetActivity(ctx context.Context, accessToken string, activityID int64) (*RawActivity, error) {
	endpoint := fmt.Sprintf("%s/activities/%d", c.apiBase, activityID)

	var activity RawActivity
	if err := c.getJSON(ctx, endpoint, accessToken, &activity); err != nil {
		return nil, err
	}
	return &activity, nil
}

// CreateSubscription registers the webhook callback with the provider and
// returns the provider-assigned subscription id.
func (c *Client) CreateSubscription(ctx context.Context, callbackURL, verifyToken string) (int64, error) {
	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"callback_url":  {callbackURL},
		"verify_token":  {verifyToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/push_subscriptions", strings.NewReader(form.Encode()))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, responseError(resp)
	}

	var created struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return 0, fmt.Errorf("decode subscription response: %w", err)
	}
	return created.ID, nil
}

// ListSubscriptions returns the provider-side view of this app's subscriptions.
func (c *Client) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	endpoint := fmt.Sprintf("%s/push_subscriptions?%s", c.apiBase, c.appCredentials().Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, responseError(resp)
	}

	var subs []Subscription
	if err := json.NewDecoder(resp.Body).Decode(&subs); err != nil {
		return nil, fmt.Errorf("decode subscriptions: %w", err)
	}
	return subs, nil
}

// DeleteSubscription removes a provider-side subscription.
func (c *Client) DeleteSubscription(ctx context.Context, subscriptionID int64) error {
	endpoint := fmt.Sprintf("%s/push_subscriptions/%d?%s", c.apiBase, subscriptionID, c.appCredentials().Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return responseError(resp)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, accessToken string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return responseError(resp)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) appCredentials() url.Values {
	return url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
	}
}

func responseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if strings.Contains(string(body), readPermissionMarker) {
		return fmt.Errorf("%w: status %d", domain.ErrPermissionScope, resp.StatusCode)
	}
	return &domain.ProviderError{Status: resp.StatusCode, Body: string(body)}
}
