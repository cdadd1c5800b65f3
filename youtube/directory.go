package youtube

import (
	"context"
	"net/url"
	"strings"

	"feedhub/models"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

const defaultChannelTitle = "Channel"

type channelsResponse struct {
	Items []channelItem `json:"items"`
}

type channelItem struct {
	Id      string `json:"id"`
	Snippet struct {
		Title string `json:"title"`
	} `json:"snippet"`
	ContentDetails struct {
		RelatedPlaylists struct {
			Uploads string `json:"uploads"`
		} `json:"relatedPlaylists"`
	} `json:"contentDetails"`
	Statistics struct {
		SubscriberCount string `json:"subscriberCount"`
		ViewCount       string `json:"viewCount"`
		VideoCount      string `json:"videoCount"`
	} `json:"statistics"`
}

// Directory resolves channel metadata and uploads feed references
type Directory struct {
	client *Client
}

func NewDirectory(client *Client) *Directory {
	return &Directory{client: client}
}

// Resolve looks up all ids in a single channels call. The result follows the
// upstream order and may omit ids the directory does not know.
func (d *Directory) Resolve(ctx context.Context, ids []models.ChannelID) ([]models.ChannelMetadata, error) {
	params := url.Values{}
	params.Set("part", "contentDetails,statistics,snippet")
	params.Set("id", strings.Join(ids, ","))

	var resp channelsResponse
	if err := d.client.get(ctx, "resolve channels", "channels", params, &resp); err != nil {
		return nil, err
	}

	channels := lo.Map(resp.Items, func(item channelItem, _ int) models.ChannelMetadata {
		title := item.Snippet.Title
		if title == "" {
			title = defaultChannelTitle
		}
		return models.ChannelMetadata{
			ID:              item.Id,
			Title:           title,
			FeedRef:         optional(item.ContentDetails.RelatedPlaylists.Uploads),
			SubscriberCount: optional(item.Statistics.SubscriberCount),
		}
	})

	log.WithFields(log.Fields{
		"requested": len(ids),
		"resolved":  len(channels),
	}).Debug("Resolved channels")

	return channels, nil
}

// Stats fetches the public statistics of a single channel
func (d *Directory) Stats(ctx context.Context, id models.ChannelID) (models.ChannelStats, error) {
	params := url.Values{}
	params.Set("part", "statistics")
	params.Set("id", id)

	var resp channelsResponse
	if err := d.client.get(ctx, "channel stats", "channels", params, &resp); err != nil {
		return models.ChannelStats{}, err
	}
	if len(resp.Items) == 0 {
		return models.ChannelStats{}, &models.NotFoundError{What: "channel " + id}
	}

	stats := resp.Items[0].Statistics
	return models.ChannelStats{
		ChannelID:       id,
		SubscriberCount: optional(stats.SubscriberCount),
		ViewCount:       optional(stats.ViewCount),
		VideoCount:      optional(stats.VideoCount),
	}, nil
}
