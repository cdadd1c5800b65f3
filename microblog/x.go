package microblog

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
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultXAPIBase       = "https://api.x.com/2"
	DefaultRequestTimeout = 8 * time.Second

	// The tweets timeline rejects max_results below this
	xMinPageSize = 5
	maxErrorBody = 64 << 10
)

var xRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "feedhub_x_requests_total",
	Help: "Requests made to the X API by operation and status code",
}, []string{"op", "code"})

type XConfig struct {
	BearerToken string
	APIBase     string
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// XSource reads public timelines from the X API v2
type XSource struct {
	token      string
	apiBase    string
	httpClient *http.Client
}

func NewXSource(cfg XConfig) *XSource {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultXAPIBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRequestTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &XSource{
		token:      cfg.BearerToken,
		apiBase:    strings.TrimSuffix(cfg.APIBase, "/"),
		httpClient: httpClient,
	}
}

type xUserResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

type xTweet struct {
	ID          string          `json:"id"`
	Text        string          `json:"text"`
	CreatedAt   string          `json:"created_at"`
	Attachments json.RawMessage `json:"attachments"`
}

type xTweetsResponse struct {
	Data []xTweet `json:"data"`
}

func (s *XSource) ResolveAccount(ctx context.Context, username string) (string, error) {
	var resp xUserResponse
	if err := s.get(ctx, OpFetchUser, "/users/by/username/"+url.PathEscape(username), nil, &resp); err != nil {
		return "", err
	}
	if resp.Data.ID == "" {
		return "", &models.NotFoundError{What: "User"}
	}
	return resp.Data.ID, nil
}

func (s *XSource) RecentPosts(ctx context.Context, accountID string, limit int) ([]Post, error) {
	params := url.Values{}
	params.Set("max_results", strconv.Itoa(max(limit, xMinPageSize)))
	params.Set("tweet.fields", "created_at,attachments")

	var resp xTweetsResponse
	if err := s.get(ctx, OpFetchPosts, "/users/"+url.PathEscape(accountID)+"/tweets", params, &resp); err != nil {
		return nil, err
	}

	return lo.Map(resp.Data, func(t xTweet, _ int) Post {
		return Post{
			ID:        t.ID,
			Text:      t.Text,
			CreatedAt: lo.EmptyableToPtr(t.CreatedAt),
			HasMedia:  len(t.Attachments) > 0 && string(t.Attachments) != "null",
		}
	}), nil
}

func (s *XSource) get(ctx context.Context, op, path string, params url.Values, dst any) error {
	if s.token == "" {
		return &models.ConfigurationError{Setting: "X_BEARER_TOKEN"}
	}

	reqURL := s.apiBase + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		xRequests.WithLabelValues(op, "error").Inc()
		return &models.UpstreamError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	xRequests.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		log.WithFields(log.Fields{
			"op":     op,
			"status": resp.StatusCode,
		}).Warn("X request failed")
		return &models.UpstreamError{Op: op, StatusCode: resp.StatusCode, Body: body}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	return nil
}
