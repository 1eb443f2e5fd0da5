// Package creditgate is the client-side decision point in front of playback.
//
// Client is a typed HTTP client for the entitlement endpoints; Gate is the
// state machine that decides, per play request, whether playback proceeds,
// the user must choose between spending a credit and upgrading, or the user
// is blocked behind the upgrade offer.
package creditgate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Balance is the server's answer to a balance check.
// Credits is nil for premium users.
type Balance struct {
	IsPremium bool `json:"isPremium"`
	Credits   *int `json:"credits"`
	CanWatch  bool `json:"canWatch"`
}

// ConsumeResult is the server's answer to a credit consumption.
type ConsumeResult struct {
	Success          bool   `json:"success"`
	IsPremium        bool   `json:"isPremium"`
	CreditsRemaining *int   `json:"creditsRemaining"`
	Error            string `json:"error,omitempty"`
}

// Checkout is a created premium checkout session.
type Checkout struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
}

// VerifyResult is the server's answer to a payment verification.
type VerifyResult struct {
	Success   bool `json:"success"`
	IsPremium bool `json:"isPremium"`
}

// Client calls the entitlement endpoints with a bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a Client for the given server base URL and bearer token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// CheckBalance fetches the caller's entitlement state.
func (c *Client) CheckBalance(ctx context.Context) (*Balance, error) {
	var out Balance
	if err := c.do(ctx, http.MethodGet, "/entitlements/balance", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConsumeCredit spends one credit. A response with Success=false and a
// populated Error field is not a transport error — the caller inspects it.
func (c *Client) ConsumeCredit(ctx context.Context) (*ConsumeResult, error) {
	var out ConsumeResult
	if err := c.do(ctx, http.MethodPost, "/entitlements/consume", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartCheckout opens a premium checkout session.
func (c *Client) StartCheckout(ctx context.Context) (*Checkout, error) {
	var out Checkout
	if err := c.do(ctx, http.MethodPost, "/entitlements/checkout", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyPayment confirms a checkout session after the user returns from the
// processor's hosted page.
func (c *Client) VerifyPayment(ctx context.Context, sessionID string) (*VerifyResult, error) {
	body := map[string]string{"sessionId": sessionID}
	var out VerifyResult
	if err := c.do(ctx, http.MethodPost, "/entitlements/verify", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do performs a JSON request against the entitlement API.
// Non-2xx responses other than 400 are returned as errors; 400 bodies decode
// into out so business denials (e.g. no credits) reach the caller intact.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("creditgate: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("creditgate: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("creditgate: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 || resp.StatusCode == http.StatusBadRequest {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("creditgate: decode response: %w", err)
		}
		return nil
	}

	raw, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("creditgate: %s %s: HTTP %d: %s", method, path, resp.StatusCode, string(raw))
}
