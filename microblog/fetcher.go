package microblog

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"feedhub/cache"
	"feedhub/models"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// TweetFetcher is implemented by both the in-process fetcher and the remote
// endpoint client
type TweetFetcher interface {
	Fetch(ctx context.Context, limit int, username string) ([]models.Tweet, error)
}

type FetcherConfig struct {
	Source Source
	// Username is used when a caller does not name an account
	Username string
	Cache    *cache.Cache[[]models.Tweet]
	// TTL of cached timelines. Zero disables caching.
	TTL time.Duration
}

type Fetcher struct {
	source   Source
	username string
	cache    *cache.Cache[[]models.Tweet]
	ttl      time.Duration
}

func NewFetcher(cfg FetcherConfig) *Fetcher {
	f := &Fetcher{
		source:   cfg.Source,
		username: cfg.Username,
		cache:    cfg.Cache,
		ttl:      cfg.TTL,
	}
	if f.username == "" {
		f.username = DefaultUsername
	}
	if f.ttl > 0 && f.cache == nil {
		f.cache = cache.New[[]models.Tweet]("tweets")
	}
	return f
}

// Fetch returns up to limit of the account's latest posts that carry no
// media. Resolving the account is terminal on failure.
func (f *Fetcher) Fetch(ctx context.Context, limit int, username string) ([]models.Tweet, error) {
	if username == "" {
		username = f.username
	}
	limit = NormalizeLimit(limit)

	key := username + ":" + strconv.Itoa(limit)
	if f.ttl > 0 {
		if cached, ok := f.cache.Get(key); ok {
			return cloneTweets(cached), nil
		}
	}

	accountID, err := f.source.ResolveAccount(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", username, err)
	}

	posts, err := f.source.RecentPosts(ctx, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch posts of %s: %w", username, err)
	}

	textOnly := lo.Filter(posts, func(p Post, _ int) bool {
		return !p.HasMedia
	})
	if len(textOnly) > limit {
		textOnly = textOnly[:limit]
	}
	tweets := lo.Map(textOnly, func(p Post, _ int) models.Tweet {
		return models.Tweet{Id: p.ID, Text: p.Text, CreatedAt: p.CreatedAt}
	})

	log.WithFields(log.Fields{
		"username": username,
		"posts":    len(posts),
		"kept":     len(tweets),
	}).Debug("Fetched recent posts")

	if f.ttl > 0 {
		f.cache.Put(key, cloneTweets(tweets), f.ttl)
	}
	return tweets, nil
}

// cloneTweets copies tweets so callers never hold memory owned by the cache
func cloneTweets(tweets []models.Tweet) []models.Tweet {
	return lo.Map(tweets, func(t models.Tweet, _ int) models.Tweet {
		if t.CreatedAt != nil {
			t.CreatedAt = lo.ToPtr(*t.CreatedAt)
		}
		return t
	})
}
