package youtube

import (
	"context"
	"net/url"
	"strconv"

	"feedhub/models"

	"github.com/samber/lo"
)

const defaultItemTitle = "Recent video"

type playlistItemsResponse struct {
	Items []playlistItem `json:"items"`
}

type playlistItem struct {
	Snippet struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		ResourceId  struct {
			VideoId string `json:"videoId"`
		} `json:"resourceId"`
	} `json:"snippet"`
}

// PlaylistFetcher reads a channel's uploads through the playlistItems API
type PlaylistFetcher struct {
	client *Client
}

func NewPlaylistFetcher(client *Client) *PlaylistFetcher {
	return &PlaylistFetcher{client: client}
}

// Fetch returns up to maxResults recent items of the uploads playlist. A nil
// feedRef yields no items and makes no upstream call.
func (f *PlaylistFetcher) Fetch(ctx context.Context, feedRef *string, maxResults int) ([]models.ContentItem, error) {
	if feedRef == nil {
		return []models.ContentItem{}, nil
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("playlistId", *feedRef)
	params.Set("maxResults", strconv.Itoa(maxResults))

	var resp playlistItemsResponse
	if err := f.client.get(ctx, "fetch playlist", "playlistItems", params, &resp); err != nil {
		return []models.ContentItem{}, err
	}

	return lo.Map(resp.Items, func(item playlistItem, _ int) models.ContentItem {
		return newContentItem(item.Snippet.ResourceId.VideoId, item.Snippet.Title, item.Snippet.Description)
	}), nil
}

func newContentItem(id, title, description string) models.ContentItem {
	if title == "" {
		title = defaultItemTitle
	}
	return models.ContentItem{
		Id:          id,
		Title:       title,
		Description: description,
	}
}
