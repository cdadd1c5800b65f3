// Package proxy calls feedhub's own HTTP endpoints from a remote process.
package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"feedhub/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultTimeout = 10 * time.Second
	maxErrorBody   = 64 << 10
)

type Config struct {
	BaseURL string
	// Retries is the number of extra attempts after a transport failure.
	// HTTP error responses are never retried.
	Retries    int
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Client struct {
	baseURL    string
	retries    int
	httpClient *http.Client
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		retries:    max(cfg.Retries, 0),
		httpClient: httpClient,
	}
}

// GetJSON requests path with query and decodes a 200 response into dst.
// Any other status becomes an UpstreamError carrying the response body.
func (c *Client) GetJSON(ctx context.Context, op, path string, query url.Values, dst any) error {
	if c.baseURL == "" {
		return &models.ConfigurationError{Setting: "proxy base URL"}
	}
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}
	requestID := uuid.NewString()

	var resp *http.Response
	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-Id", requestID)

		resp, err = c.httpClient.Do(req)
		if err != nil {
			log.WithFields(log.Fields{
				"op":        op,
				"requestId": requestID,
				"error":     err,
			}).Warn("Proxy request failed")
			return err
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = 2 * time.Second
	retrier := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.retries)), ctx)

	if err := backoff.Retry(attempt, retrier); err != nil {
		return &models.UpstreamError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &models.UpstreamError{Op: op, StatusCode: resp.StatusCode, Body: body}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	return nil
}
