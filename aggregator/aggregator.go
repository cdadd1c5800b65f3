// Package aggregator merges channel metadata with each channel's recent
// uploads and memoizes the merged bundles.
package aggregator

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"feedhub/cache"
	"feedhub/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultTTL            = 10 * time.Minute
	DefaultFetchTimeout   = 8 * time.Second
	DefaultMaxResults     = 10
	MaxMaxResults         = 20
	channelNotFoundReason = "channel not found"
	missingChannelTitle   = "Channel"
)

var (
	bundleRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedhub_bundle_requests_total",
		Help: "Bundle aggregations by outcome",
	}, []string{"outcome"})

	channelFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedhub_bundle_channel_failures_total",
		Help: "Per-channel feed fetches that failed inside an otherwise successful bundle",
	})
)

// Resolver turns channel ids into directory metadata with one upstream call
type Resolver interface {
	Resolve(ctx context.Context, ids []models.ChannelID) ([]models.ChannelMetadata, error)
}

// FeedFetcher reads the recent items behind a feed reference
type FeedFetcher interface {
	Fetch(ctx context.Context, feedRef *string, maxResults int) ([]models.ContentItem, error)
}

type StatsFetcher interface {
	Stats(ctx context.Context, id models.ChannelID) (models.ChannelStats, error)
}

// BundleFetcher is implemented by both the in-process aggregator and the
// remote endpoint client
type BundleFetcher interface {
	Fetch(ctx context.Context, ids []models.ChannelID, maxResults int) (models.AggregateResult, error)
}

type Config struct {
	Resolver Resolver
	Feeds    FeedFetcher
	Stats    StatsFetcher

	// Bundles is the process-scoped result cache. It is created once at
	// startup and lives as long as the process.
	Bundles *cache.Cache[models.AggregateResult]
	Uploads *cache.Cache[[]models.ContentItem]
	Counts  *cache.Cache[models.ChannelStats]

	TTL          time.Duration
	FetchTimeout time.Duration
}

// Aggregator is the direct entry point: it talks to the upstream APIs itself
type Aggregator struct {
	resolver     Resolver
	feeds        FeedFetcher
	stats        StatsFetcher
	bundles      *cache.Cache[models.AggregateResult]
	uploads      *cache.Cache[[]models.ContentItem]
	counts       *cache.Cache[models.ChannelStats]
	ttl          time.Duration
	fetchTimeout time.Duration
}

func New(cfg Config) *Aggregator {
	a := &Aggregator{
		resolver:     cfg.Resolver,
		feeds:        cfg.Feeds,
		stats:        cfg.Stats,
		bundles:      cfg.Bundles,
		uploads:      cfg.Uploads,
		counts:       cfg.Counts,
		ttl:          cfg.TTL,
		fetchTimeout: cfg.FetchTimeout,
	}
	if a.bundles == nil {
		a.bundles = cache.New[models.AggregateResult]("bundles")
	}
	if a.uploads == nil {
		a.uploads = cache.New[[]models.ContentItem]("uploads")
	}
	if a.counts == nil {
		a.counts = cache.New[models.ChannelStats]("stats")
	}
	if a.ttl <= 0 {
		a.ttl = DefaultTTL
	}
	if a.fetchTimeout <= 0 {
		a.fetchTimeout = DefaultFetchTimeout
	}
	return a
}

// NormalizeMaxResults maps a requested per-channel item count into
// [1, MaxMaxResults]. Values below 1 fall back to DefaultMaxResults.
func NormalizeMaxResults(n int) int {
	if n < 1 {
		return DefaultMaxResults
	}
	return min(n, MaxMaxResults)
}

// BundleKey is the cache key of a bundle request. It depends on the order of
// ids, so the same set in a different order is a different key.
func BundleKey(ids []models.ChannelID, maxResults int) string {
	return strings.Join(ids, ",") + ":" + strconv.Itoa(maxResults)
}

// Fetch returns one entry per id in ids, in the same order. A failing
// directory lookup fails the whole call; a failing feed fetch only marks the
// affected entry.
func (a *Aggregator) Fetch(ctx context.Context, ids []models.ChannelID, maxResults int) (models.AggregateResult, error) {
	if len(ids) == 0 {
		bundleRequests.WithLabelValues("invalid").Inc()
		return models.AggregateResult{}, &models.ValidationError{Message: "at least one channel id is required"}
	}
	maxResults = NormalizeMaxResults(maxResults)

	key := BundleKey(ids, maxResults)
	if cached, ok := a.bundles.Get(key); ok {
		log.WithFields(log.Fields{"key": key}).Debug("Bundle cache hit")
		bundleRequests.WithLabelValues("cached").Inc()
		return cloneResult(cached), nil
	}

	channels, err := a.resolver.Resolve(ctx, ids)
	if err != nil {
		bundleRequests.WithLabelValues("failed").Inc()
		return models.AggregateResult{}, fmt.Errorf("failed to resolve channels: %w", err)
	}

	byID := make(map[models.ChannelID]models.ChannelMetadata, len(channels))
	for _, ch := range channels {
		byID[ch.ID] = ch
	}

	bundles := a.fetchAll(ctx, ids, byID, maxResults)

	result := models.AggregateResult{Channels: make([]models.ChannelEntry, len(ids))}
	for i, id := range ids {
		entry := models.ChannelEntry{
			ChannelID: id,
			Title:     missingChannelTitle,
			Videos:    bundles[i].Items,
			Error:     bundles[i].Err,
		}
		if meta, ok := byID[id]; ok {
			entry.Title = meta.Title
			entry.Subscribers = meta.SubscriberCount
		}
		result.Channels[i] = entry
	}

	a.bundles.Put(key, cloneResult(result), a.ttl)
	bundleRequests.WithLabelValues("fetched").Inc()

	return result, nil
}

// fetchAll runs one feed fetch per requested position and waits for all of
// them. Results are indexed by position, not by completion order.
func (a *Aggregator) fetchAll(ctx context.Context, ids []models.ChannelID, byID map[models.ChannelID]models.ChannelMetadata, maxResults int) []models.ChannelBundle {
	bundles := make([]models.ChannelBundle, len(ids))

	// Fetches keep running if the caller goes away, bounded by fetchTimeout
	detached := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i, id := range ids {
		meta, ok := byID[id]
		if !ok {
			bundles[i] = models.ChannelBundle{ChannelID: id, Items: []models.ContentItem{}, Err: channelNotFoundReason}
			continue
		}

		wg.Add(1)
		go func(i int, meta models.ChannelMetadata) {
			defer wg.Done()
			bundles[i] = a.fetchOne(detached, meta, maxResults)
		}(i, meta)
	}
	wg.Wait()

	return bundles
}

func (a *Aggregator) fetchOne(ctx context.Context, meta models.ChannelMetadata, maxResults int) models.ChannelBundle {
	ctx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
	defer cancel()

	items, err := a.feeds.Fetch(ctx, meta.FeedRef, maxResults)
	if err != nil {
		channelFailures.Inc()
		log.WithFields(log.Fields{
			"channel": meta.ID,
			"error":   err,
		}).Warn("Feed fetch failed, returning channel without items")
		return models.ChannelBundle{ChannelID: meta.ID, Items: []models.ContentItem{}, Err: err.Error()}
	}
	if items == nil {
		items = []models.ContentItem{}
	}
	return models.ChannelBundle{ChannelID: meta.ID, Items: items}
}

// cloneResult copies r so that callers and the cache never share memory
func cloneResult(r models.AggregateResult) models.AggregateResult {
	return models.AggregateResult{Channels: lo.Map(r.Channels, func(e models.ChannelEntry, _ int) models.ChannelEntry {
		e.Subscribers = clonePtr(e.Subscribers)
		e.Videos = slices.Clone(e.Videos)
		return e
	})}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	return lo.ToPtr(*p)
}
