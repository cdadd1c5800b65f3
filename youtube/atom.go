package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"feedhub/models"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

const DefaultAtomBase = "https://www.youtube.com/feeds/videos.xml"

// AtomFetcher reads a channel's uploads from the public Atom feed. It needs no
// API key but the feed only ever carries the latest 15 uploads.
type AtomFetcher struct {
	base   string
	parser *gofeed.Parser
}

func NewAtomFetcher(base string, timeout time.Duration) *AtomFetcher {
	if base == "" {
		base = DefaultAtomBase
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: timeout}
	return &AtomFetcher{base: base, parser: parser}
}

// Fetch returns up to maxResults items of the uploads playlist feed
func (f *AtomFetcher) Fetch(ctx context.Context, feedRef *string, maxResults int) ([]models.ContentItem, error) {
	if feedRef == nil {
		return []models.ContentItem{}, nil
	}

	feedURL := f.base + "?" + url.Values{"playlist_id": {*feedRef}}.Encode()

	start := time.Now()
	feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	youtubeLatency.WithLabelValues("fetch atom").Observe(time.Since(start).Seconds())
	if err != nil {
		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) {
			youtubeRequests.WithLabelValues("fetch atom", fmt.Sprint(httpErr.StatusCode)).Inc()
			return []models.ContentItem{}, &models.UpstreamError{
				Op:         "fetch atom",
				StatusCode: httpErr.StatusCode,
				Body:       []byte(httpErr.Status),
			}
		}
		youtubeRequests.WithLabelValues("fetch atom", "error").Inc()
		return []models.ContentItem{}, &models.UpstreamError{Op: "fetch atom", Err: err}
	}
	youtubeRequests.WithLabelValues("fetch atom", "200").Inc()

	items := make([]models.ContentItem, 0, min(len(feed.Items), maxResults))
	for _, item := range feed.Items {
		if len(items) == maxResults {
			break
		}
		items = append(items, newContentItem(videoID(item), item.Title, mediaDescription(item)))
	}
	return items, nil
}

// videoID prefers <yt:videoId> and falls back to the "yt:video:<id>" entry id
func videoID(item *gofeed.Item) string {
	if id := extensionValue(item.Extensions, "yt", "videoId"); id != "" {
		return id
	}
	return strings.TrimPrefix(item.GUID, "yt:video:")
}

func mediaDescription(item *gofeed.Item) string {
	groups := item.Extensions["media"]["group"]
	if len(groups) > 0 {
		if desc := groups[0].Children["description"]; len(desc) > 0 {
			return desc[0].Value
		}
	}
	return item.Description
}

func extensionValue(exts ext.Extensions, prefix, name string) string {
	values := exts[prefix][name]
	if len(values) == 0 {
		return ""
	}
	return values[0].Value
}
