package youtube

import (
	"context"
	"net/url"
	"strconv"

	"feedhub/models"

	"github.com/samber/lo"
)

type SearchQuery struct {
	ChannelID  models.ChannelID
	Query      string
	PageToken  string
	MaxResults int
}

type searchResponse struct {
	NextPageToken string       `json:"nextPageToken"`
	PrevPageToken string       `json:"prevPageToken"`
	Items         []searchItem `json:"items"`
}

type searchItem struct {
	Id struct {
		Kind    string `json:"kind"`
		VideoId string `json:"videoId"`
	} `json:"id"`
	Snippet struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"snippet"`
}

// Search lists a channel's videos newest first. Only video results are kept;
// playlists and channels returned by the search endpoint are dropped.
func (c *Client) Search(ctx context.Context, q SearchQuery) (models.SearchPage, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("channelId", q.ChannelID)
	params.Set("maxResults", strconv.Itoa(q.MaxResults))
	params.Set("order", "date")
	if q.PageToken != "" {
		params.Set("pageToken", q.PageToken)
	}
	if q.Query != "" {
		params.Set("q", q.Query)
	}

	var resp searchResponse
	if err := c.get(ctx, "search videos", "search", params, &resp); err != nil {
		return models.SearchPage{}, err
	}

	videos := lo.Filter(resp.Items, func(item searchItem, _ int) bool {
		return item.Id.Kind == "youtube#video"
	})

	return models.SearchPage{
		Items: lo.Map(videos, func(item searchItem, _ int) models.ContentItem {
			return newContentItem(item.Id.VideoId, item.Snippet.Title, item.Snippet.Description)
		}),
		NextPageToken: optional(resp.NextPageToken),
		PrevPageToken: optional(resp.PrevPageToken),
	}, nil
}
