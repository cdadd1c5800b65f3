package aggregator

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"feedhub/models"

	log "github.com/sirupsen/logrus"
)

// Uploads returns the recent uploads of a single channel. Unlike Fetch, a
// failing feed fetch is returned as an error since there is nothing else to
// show.
func (a *Aggregator) Uploads(ctx context.Context, id models.ChannelID, maxResults int) ([]models.ContentItem, error) {
	if id == "" {
		return nil, &models.ValidationError{Message: "channel id is required"}
	}
	maxResults = NormalizeMaxResults(maxResults)

	key := "uploads:" + id + ":" + strconv.Itoa(maxResults)
	if cached, ok := a.uploads.Get(key); ok {
		return slices.Clone(cached), nil
	}

	channels, err := a.resolver.Resolve(ctx, []models.ChannelID{id})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve channel: %w", err)
	}

	var feedRef *string
	for _, ch := range channels {
		if ch.ID == id {
			feedRef = ch.FeedRef
			break
		}
	}

	ctx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
	defer cancel()

	items, err := a.feeds.Fetch(ctx, feedRef, maxResults)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch uploads: %w", err)
	}
	if items == nil {
		items = []models.ContentItem{}
	}

	log.WithFields(log.Fields{
		"channel": id,
		"items":   len(items),
	}).Debug("Fetched uploads")

	a.uploads.Put(key, slices.Clone(items), a.ttl)
	return items, nil
}

// Stats returns a channel's public counters, cached for the freshness window
func (a *Aggregator) Stats(ctx context.Context, id models.ChannelID) (models.ChannelStats, error) {
	if id == "" {
		return models.ChannelStats{}, &models.ValidationError{Message: "channel id is required"}
	}
	if a.stats == nil {
		return models.ChannelStats{}, fmt.Errorf("channel statistics are not configured")
	}

	key := "stats:" + id
	if cached, ok := a.counts.Get(key); ok {
		return cloneStats(cached), nil
	}

	stats, err := a.stats.Stats(ctx, id)
	if err != nil {
		return models.ChannelStats{}, err
	}

	a.counts.Put(key, cloneStats(stats), a.ttl)
	return stats, nil
}

func cloneStats(s models.ChannelStats) models.ChannelStats {
	s.SubscriberCount = clonePtr(s.SubscriberCount)
	s.ViewCount = clonePtr(s.ViewCount)
	s.VideoCount = clonePtr(s.VideoCount)
	return s
}
