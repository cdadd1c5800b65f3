package microblog

import (
	"context"
	"net/url"
	"strconv"

	"feedhub/models"
	"feedhub/proxy"
)

const TweetsPath = "/api/latest-tweets"

// Remote asks a feedhub server for the posts instead of calling the
// provider directly
type Remote struct {
	client *proxy.Client
}

func NewRemote(client *proxy.Client) *Remote {
	return &Remote{client: client}
}

func (r *Remote) Fetch(ctx context.Context, limit int, username string) ([]models.Tweet, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(NormalizeLimit(limit)))
	if username != "" {
		query.Set("username", username)
	}

	var resp models.TweetsResponse
	if err := r.client.GetJSON(ctx, "fetch remote tweets", TweetsPath, query, &resp); err != nil {
		return nil, err
	}
	if resp.Tweets == nil {
		resp.Tweets = []models.Tweet{}
	}
	return resp.Tweets, nil
}

var (
	_ TweetFetcher = (*Fetcher)(nil)
	_ TweetFetcher = (*Remote)(nil)
)
