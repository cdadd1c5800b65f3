package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"feedhub/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultAPIBase        = "https://www.googleapis.com/youtube/v3"
	DefaultRequestTimeout = 8 * time.Second

	// Upstream error bodies are passed through to callers, keep them bounded
	maxErrorBody = 64 << 10
)

var (
	youtubeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedhub_youtube_requests_total",
		Help: "Requests made to the YouTube Data API by operation and status code",
	}, []string{"op", "code"})

	youtubeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "feedhub_youtube_request_duration_seconds",
		Help:    "Latency of YouTube Data API requests",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms .. ~25s
	}, []string{"op"})
)

// Client talks to the YouTube Data API v3 over plain REST
type Client struct {
	apiKey     string
	apiBase    string
	httpClient *http.Client
}

type ClientConfig struct {
	APIKey  string
	APIBase string
	// Timeout bounds every single upstream request
	Timeout    time.Duration
	HTTPClient *http.Client
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRequestTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		apiKey:     cfg.APIKey,
		apiBase:    strings.TrimSuffix(cfg.APIBase, "/"),
		httpClient: httpClient,
	}
}

// HasKey reports whether an API key was configured
func (c *Client) HasKey() bool {
	return c.apiKey != ""
}

func (c *Client) get(ctx context.Context, op, resource string, params url.Values, dst any) error {
	if c.apiKey == "" {
		return &models.ConfigurationError{Setting: "YOUTUBE_API_KEY"}
	}

	params.Set("key", c.apiKey)
	reqURL := fmt.Sprintf("%s/%s?%s", c.apiBase, resource, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	youtubeLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		youtubeRequests.WithLabelValues(op, "error").Inc()
		return &models.UpstreamError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	youtubeRequests.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		log.WithFields(log.Fields{
			"op":     op,
			"status": resp.StatusCode,
		}).Warn("YouTube request failed")
		return &models.UpstreamError{Op: op, StatusCode: resp.StatusCode, Body: body}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	return nil
}

// optional turns an empty upstream string into an absent value
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
