// Package remote is the HTTP client for the central field-data service
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tildaslashalef/fieldsync/internal/config"
	"github.com/tildaslashalef/fieldsync/internal/loggy"
)

// Endpoint paths on the remote service
const (
	pathFarmTypes  = "/api/v1/farm-types/"
	pathCrops      = "/api/v1/crops/"
	pathFarmerData = "/api/v1/farmer-data/"
	pathHealth     = "/api/v1/health/"
	pathTokenAuth  = "/auth/jwt/create/"
	pathUserMe     = "/auth/users/me/"
)

// Client handles HTTP communication with the field-data server
type Client struct {
	baseURL    string
	timeout    time.Duration
	maxRetries int
	httpClient *http.Client
	logger     *loggy.Logger

	tokenMu sync.RWMutex
	token   string
}

// NewClient creates a new HTTP client for server communication
func NewClient(cfg config.ServerConfig, logger *loggy.Logger) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{Timeout: cfg.Timeout, Transport: transport},
		logger:     logger,
	}
}

// SetToken updates the authentication token used on subsequent requests
func (c *Client) SetToken(token string) {
	c.tokenMu.Lock()
	c.token = token
	c.tokenMu.Unlock()
}

// Token returns the current authentication token
func (c *Client) Token() string {
	c.tokenMu.RLock()
	defer c.tokenMu.RUnlock()
	return c.token
}

// BaseURL returns the server base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HealthURL returns the absolute URL of the service health endpoint,
// consumed by the connectivity monitor
func (c *Client) HealthURL() string {
	return c.baseURL + pathHealth
}

// Authenticate exchanges credentials for a JWT token and fetches the
// user's profile
func (c *Client) Authenticate(ctx context.Context, username, password string) (string, *Profile, error) {
	var auth AuthResponse
	if err := c.sendRequest(ctx, http.MethodPost, pathTokenAuth, AuthRequest{Username: username, Password: password}, &auth); err != nil {
		return "", nil, fmt.Errorf("authenticating: %w", err)
	}

	// Fetch the profile with the fresh token before committing it
	previous := c.Token()
	c.SetToken(auth.Access)

	var profile Profile
	if err := c.sendRequest(ctx, http.MethodGet, pathUserMe, nil, &profile); err != nil {
		c.SetToken(previous)
		return "", nil, fmt.Errorf("fetching profile: %w", err)
	}

	return auth.Access, &profile, nil
}

// CreateFarmType creates a farm type on the server and returns its canonical record
func (c *Client) CreateFarmType(ctx context.Context, payload ReferencePayload) (*ReferenceResponse, error) {
	var resp ReferenceResponse
	if err := c.sendWithRetry(ctx, http.MethodPost, pathFarmTypes, payload, &resp); err != nil {
		return nil, fmt.Errorf("creating farm type: %w", err)
	}
	return &resp, nil
}

// CreateCrop creates a crop on the server and returns its canonical record
func (c *Client) CreateCrop(ctx context.Context, payload ReferencePayload) (*ReferenceResponse, error) {
	var resp ReferenceResponse
	if err := c.sendWithRetry(ctx, http.MethodPost, pathCrops, payload, &resp); err != nil {
		return nil, fmt.Errorf("creating crop: %w", err)
	}
	return &resp, nil
}

// ListFarmTypes fetches the server's authoritative farm type collection
func (c *Client) ListFarmTypes(ctx context.Context) ([]ReferenceResponse, error) {
	var resp []ReferenceResponse
	if err := c.sendWithRetry(ctx, http.MethodGet, pathFarmTypes, nil, &resp); err != nil {
		return nil, fmt.Errorf("listing farm types: %w", err)
	}
	return resp, nil
}

// ListCrops fetches the server's authoritative crop collection
func (c *Client) ListCrops(ctx context.Context) ([]ReferenceResponse, error) {
	var resp []ReferenceResponse
	if err := c.sendWithRetry(ctx, http.MethodGet, pathCrops, nil, &resp); err != nil {
		return nil, fmt.Errorf("listing crops: %w", err)
	}
	return resp, nil
}

// CreateFarmerRecord submits a farmer record with canonical reference ids
func (c *Client) CreateFarmerRecord(ctx context.Context, payload FarmerPayload) (*FarmerResponse, error) {
	var resp FarmerResponse
	if err := c.sendWithRetry(ctx, http.MethodPost, pathFarmerData, payload, &resp); err != nil {
		return nil, fmt.Errorf("creating farmer record: %w", err)
	}
	return &resp, nil
}

// HealthCheck probes the service health endpoint
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.sendRequest(ctx, http.MethodHead, pathHealth, nil, nil)
}

// sendWithRetry wraps sendRequest with exponential backoff for transient
// failures. Client-side rejections are permanent and returned immediately.
func (c *Client) sendWithRetry(ctx context.Context, method, path string, body, out interface{}) error {
	operation := func() error {
		err := c.sendRequest(ctx, method, path, body, out)
		if err == nil {
			return nil
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Transient() {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}

		c.logger.Debug("Retrying remote call", "method", method, "path", path, "error", err)
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.maxRetries)), ctx))
}

// sendRequest is a helper function to send requests to the API
func (c *Client) sendRequest(ctx context.Context, method, path string, body, out interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "JWT "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("server returned %s for %s %s", resp.Status, method, path),
			Payload:    json.RawMessage(payload),
		}
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}
