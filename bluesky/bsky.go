// Package bluesky reads public author feeds from a Bluesky AppView as a
// microblog source.
package bluesky

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"feedhub/microblog"
	"feedhub/models"

	"github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/atproto/syntax"
	"github.com/bluesky-social/indigo/xrpc"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// DefaultAppViewHost serves public reads without a session
const DefaultAppViewHost = "https://public.api.bsky.app"

// Replies are left out, they rarely stand on their own
const authorFeedFilter = "posts_no_replies"

type Config struct {
	Host       string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Source struct {
	xrpc *xrpc.Client
}

func NewSource(cfg Config) *Source {
	if cfg.Host == "" {
		cfg.Host = DefaultAppViewHost
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = microblog.DefaultRequestTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Source{xrpc: &xrpc.Client{
		Host:   strings.TrimSuffix(cfg.Host, "/"),
		Client: httpClient,
	}}
}

// ResolveAccount resolves a handle to its DID
func (s *Source) ResolveAccount(ctx context.Context, handle string) (string, error) {
	resp, err := atproto.IdentityResolveHandle(ctx, s.xrpc, handle)
	if err != nil {
		var xerr *xrpc.Error
		if errors.As(err, &xerr) && (xerr.StatusCode == http.StatusBadRequest || xerr.StatusCode == http.StatusNotFound) {
			return "", &models.NotFoundError{What: "User"}
		}
		return "", upstreamError(microblog.OpFetchUser, err)
	}
	if resp.Did == "" {
		return "", &models.NotFoundError{What: "User"}
	}
	return resp.Did, nil
}

// RecentPosts returns the author's own latest posts. Reposts are skipped.
func (s *Source) RecentPosts(ctx context.Context, did string, limit int) ([]microblog.Post, error) {
	resp, err := bsky.FeedGetAuthorFeed(ctx, s.xrpc, did, "", authorFeedFilter, false, int64(limit))
	if err != nil {
		return nil, upstreamError(microblog.OpFetchPosts, err)
	}

	own := lo.Filter(resp.Feed, func(item *bsky.FeedDefs_FeedViewPost, _ int) bool {
		return item.Post != nil && item.Reason == nil
	})

	return lo.FilterMap(own, func(item *bsky.FeedDefs_FeedViewPost, _ int) (microblog.Post, bool) {
		post, err := toPost(item.Post)
		if err != nil {
			log.WithFields(log.Fields{
				"uri":   item.Post.Uri,
				"error": err,
			}).Debug("Skipping unreadable post")
			return microblog.Post{}, false
		}
		return post, true
	}), nil
}

func toPost(view *bsky.FeedDefs_PostView) (microblog.Post, error) {
	if view.Record == nil {
		return microblog.Post{}, fmt.Errorf("post has no record")
	}
	record, ok := view.Record.Val.(*bsky.FeedPost)
	if !ok {
		return microblog.Post{}, fmt.Errorf("unexpected record type %T", view.Record.Val)
	}

	uri, err := syntax.ParseATURI(view.Uri)
	if err != nil {
		return microblog.Post{}, fmt.Errorf("failed to parse at uri: %w", err)
	}

	createdAt := validDatetime(record.CreatedAt)
	if createdAt == nil {
		createdAt = validDatetime(view.IndexedAt)
	}

	return microblog.Post{
		ID:        uri.RecordKey().String(),
		Text:      record.Text,
		CreatedAt: createdAt,
		HasMedia:  view.Embed != nil || record.Embed != nil,
	}, nil
}

func upstreamError(op string, err error) error {
	var xerr *xrpc.Error
	if errors.As(err, &xerr) {
		return &models.UpstreamError{Op: op, StatusCode: xerr.StatusCode, Body: []byte(xerr.Error())}
	}
	return &models.UpstreamError{Op: op, Err: err}
}

// validDatetime returns s untouched if it parses as an atproto datetime
func validDatetime(s string) *string {
	if _, err := syntax.ParseDatetimeLenient(s); err != nil {
		return nil
	}
	return &s
}

var _ microblog.Source = (*Source)(nil)
