package aggregator

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"feedhub/models"
	"feedhub/proxy"
)

// BundlePath is where the server exposes the aggregation endpoint
const BundlePath = "/api/youtube"

// Remote delegates the whole aggregation to a feedhub server
type Remote struct {
	client *proxy.Client
}

func NewRemote(client *proxy.Client) *Remote {
	return &Remote{client: client}
}

func (r *Remote) Fetch(ctx context.Context, ids []models.ChannelID, maxResults int) (models.AggregateResult, error) {
	if len(ids) == 0 {
		return models.AggregateResult{}, &models.ValidationError{Message: "at least one channel id is required"}
	}

	query := url.Values{}
	query.Set("channels", strings.Join(ids, ","))
	query.Set("maxResults", strconv.Itoa(NormalizeMaxResults(maxResults)))

	var result models.AggregateResult
	if err := r.client.GetJSON(ctx, "fetch remote bundle", BundlePath, query, &result); err != nil {
		return models.AggregateResult{}, err
	}
	for i := range result.Channels {
		if result.Channels[i].Videos == nil {
			result.Channels[i].Videos = []models.ContentItem{}
		}
	}
	return result, nil
}

var (
	_ BundleFetcher = (*Aggregator)(nil)
	_ BundleFetcher = (*Remote)(nil)
)
