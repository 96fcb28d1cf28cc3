package proof

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"persona-gateway/pkg/platform/sentinel"
)

// ClientConfig configures the verification-bridge client.
type ClientConfig struct {
	// BridgeURL is the hosted verification bridge that drives the
	// attestation flow with the user.
	BridgeURL string
	// AppID and AppSecret authenticate this application to the bridge.
	AppID     string
	AppSecret string
	// PollInterval is how often session status is re-checked. Defaults to 2s.
	PollInterval time.Duration
	// HTTPClient overrides the default retrying client (tests).
	HTTPClient *http.Client
}

// Client drives a hosted verification session: create it, then poll until
// the user completes, cancels, or the session fails.
type Client struct {
	bridgeURL    string
	appID        string
	appSecret    string
	pollInterval time.Duration
	client       *http.Client
}

func NewClient(cfg ClientConfig) *Client {
	client := cfg.HTTPClient
	if client == nil {
		rc := retryablehttp.NewClient()
		rc.RetryMax = 3
		rc.RetryWaitMin = 250 * time.Millisecond
		rc.RetryWaitMax = 3 * time.Second
		rc.HTTPClient.Timeout = 15 * time.Second
		rc.Logger = nil
		client = rc.StandardClient()
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Client{
		bridgeURL:    strings.TrimRight(cfg.BridgeURL, "/"),
		appID:        cfg.AppID,
		appSecret:    cfg.AppSecret,
		pollInterval: interval,
		client:       client,
	}
}

// StartVerification creates a session and blocks until it reaches a terminal
// state. Context cancellation aborts the poll loop (the session keeps living
// on the bridge; it just stops being observed).
func (c *Client) StartVerification(ctx context.Context, providerID string) ([]Proof, error) {
	sessionID, err := c.createSession(ctx, providerID)
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		status, proofs, err := c.sessionStatus(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		switch status {
		case "pending", "in_progress":
			continue
		case "cancelled":
			return nil, fmt.Errorf("verification session %s: %w", sessionID, sentinel.ErrCancelled)
		case "completed":
			if len(proofs) == 0 {
				return nil, fmt.Errorf("verification session %s completed without proofs", sessionID)
			}
			return proofs, nil
		default:
			return nil, fmt.Errorf("verification session %s failed with status %q", sessionID, status)
		}
	}
}

func (c *Client) createSession(ctx context.Context, providerID string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"app_id":      c.appID,
		"provider_id": providerID,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.bridgeURL+"/v1/sessions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.appSecret)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: create verification session: %v", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read session response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("create verification session failed with HTTP %d", resp.StatusCode)
	}
	sessionID := gjson.GetBytes(body, "session_id").String()
	if sessionID == "" {
		return "", fmt.Errorf("verification bridge returned no session id")
	}
	return sessionID, nil
}

func (c *Client) sessionStatus(ctx context.Context, sessionID string) (string, []Proof, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.bridgeURL+"/v1/sessions/"+sessionID, nil)
	if err != nil {
		return "", nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.appSecret)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("%w: poll verification session: %v", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("read session status: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", nil, fmt.Errorf("poll verification session failed with HTTP %d", resp.StatusCode)
	}

	status := gjson.GetBytes(body, "status").String()
	var proofs []Proof
	for _, p := range gjson.GetBytes(body, "proofs").Array() {
		proofs = append(proofs, Proof(p.Raw))
	}
	return status, proofs, nil
}
