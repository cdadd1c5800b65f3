package aggregator_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"feedhub/aggregator"
	"feedhub/cache"
	"feedhub/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

type fakeResolver struct {
	calls    atomic.Int32
	channels []models.ChannelMetadata
	err      error
}

func (f *fakeResolver) Resolve(_ context.Context, ids []models.ChannelID) ([]models.ChannelMetadata, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.channels, nil
}

type fakeFeeds struct {
	calls  atomic.Int32
	mu     sync.Mutex
	seen   []string
	maxes  []int
	items  map[string][]models.ContentItem
	fail   map[string]error
	delays map[string]time.Duration
}

func (f *fakeFeeds) Fetch(ctx context.Context, feedRef *string, maxResults int) ([]models.ContentItem, error) {
	if feedRef == nil {
		return []models.ContentItem{}, nil
	}
	f.calls.Add(1)
	f.mu.Lock()
	f.seen = append(f.seen, *feedRef)
	f.maxes = append(f.maxes, maxResults)
	f.mu.Unlock()

	if d := f.delays[*feedRef]; d > 0 {
		time.Sleep(d)
	}
	if err := f.fail[*feedRef]; err != nil {
		return []models.ContentItem{}, err
	}
	items := f.items[*feedRef]
	if len(items) > maxResults {
		items = items[:maxResults]
	}
	return items, nil
}

func items(n int) []models.ContentItem {
	out := make([]models.ContentItem, n)
	for i := range out {
		out[i] = models.ContentItem{Id: string(rune('a' + i)), Title: "video"}
	}
	return out
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newAggregator(resolver aggregator.Resolver, feeds aggregator.FeedFetcher, clk *clock) *aggregator.Aggregator {
	return aggregator.New(aggregator.Config{
		Resolver: resolver,
		Feeds:    feeds,
		Bundles:  cache.New("bundles", cache.WithClock[models.AggregateResult](clk.Now)),
		Uploads:  cache.New("uploads", cache.WithClock[[]models.ContentItem](clk.Now)),
		TTL:      10 * time.Minute,
	})
}

func TestFetchScenario(t *testing.T) {
	resolver := &fakeResolver{channels: []models.ChannelMetadata{
		{ID: "UCabc", Title: "Alpha", FeedRef: ptr("UUabc"), SubscriberCount: ptr("100")},
		{ID: "UCdef", Title: "Delta", FeedRef: ptr("UUdef")},
	}}
	feeds := &fakeFeeds{items: map[string][]models.ContentItem{"UUabc": items(3)}}
	agg := newAggregator(resolver, feeds, &clock{now: time.Now()})

	result, err := agg.Fetch(context.Background(), []string{"UCabc", "UCdef"}, 5)
	require.NoError(t, err)
	require.Len(t, result.Channels, 2)

	assert.Equal(t, "UCabc", result.Channels[0].ChannelID)
	assert.Equal(t, "Alpha", result.Channels[0].Title)
	assert.Equal(t, "100", *result.Channels[0].Subscribers)
	assert.Len(t, result.Channels[0].Videos, 3)
	assert.Empty(t, result.Channels[0].Error)

	assert.Equal(t, "UCdef", result.Channels[1].ChannelID)
	assert.Nil(t, result.Channels[1].Subscribers)
	assert.Len(t, result.Channels[1].Videos, 0)
	assert.NotNil(t, result.Channels[1].Videos)
	assert.Empty(t, result.Channels[1].Error)

	assert.Equal(t, int32(1), resolver.calls.Load())
	assert.Equal(t, int32(2), feeds.calls.Load())
}

func TestFetchEmptyIDs(t *testing.T) {
	resolver := &fakeResolver{}
	feeds := &fakeFeeds{}
	agg := newAggregator(resolver, feeds, &clock{now: time.Now()})

	_, err := agg.Fetch(context.Background(), nil, 10)

	assert.True(t, models.IsValidation(err))
	assert.Equal(t, int32(0), resolver.calls.Load())
	assert.Equal(t, int32(0), feeds.calls.Load())
}

func TestFetchIsCachedWithinWindow(t *testing.T) {
	resolver := &fakeResolver{channels: []models.ChannelMetadata{
		{ID: "A", Title: "A", FeedRef: ptr("UA")},
	}}
	feeds := &fakeFeeds{items: map[string][]models.ContentItem{"UA": items(2)}}
	clk := &clock{now: time.Now()}
	agg := newAggregator(resolver, feeds, clk)

	first, err := agg.Fetch(context.Background(), []string{"A"}, 10)
	require.NoError(t, err)

	clk.Advance(9 * time.Minute)
	second, err := agg.Fetch(context.Background(), []string{"A"}, 10)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), resolver.calls.Load())
	assert.Equal(t, int32(1), feeds.calls.Load())

	clk.Advance(2 * time.Minute)
	_, err = agg.Fetch(context.Background(), []string{"A"}, 10)
	require.NoError(t, err)

	assert.Equal(t, int32(2), resolver.calls.Load())
	assert.Equal(t, int32(2), feeds.calls.Load())
}

func TestCacheKeyDependsOnOrderAndMaxResults(t *testing.T) {
	resolver := &fakeResolver{channels: []models.ChannelMetadata{
		{ID: "A", Title: "A", FeedRef: ptr("UA")},
		{ID: "B", Title: "B", FeedRef: ptr("UB")},
	}}
	agg := newAggregator(resolver, &fakeFeeds{}, &clock{now: time.Now()})
	ctx := context.Background()

	_, err := agg.Fetch(ctx, []string{"A", "B"}, 10)
	require.NoError(t, err)
	_, err = agg.Fetch(ctx, []string{"B", "A"}, 10)
	require.NoError(t, err)
	_, err = agg.Fetch(ctx, []string{"A", "B"}, 5)
	require.NoError(t, err)
	_, err = agg.Fetch(ctx, []string{"A", "B"}, 10)
	require.NoError(t, err)

	assert.Equal(t, int32(3), resolver.calls.Load())
	assert.Equal(t, "A,B:10", aggregator.BundleKey([]string{"A", "B"}, 10))
}

func TestFetchNormalizesMaxResults(t *testing.T) {
	tests := []struct {
		name string
		max  int
		want int
	}{
		{"above maximum", 50, 20},
		{"zero", 0, 10},
		{"negative", -3, 10},
		{"in range", 7, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := &fakeResolver{channels: []models.ChannelMetadata{{ID: "A", FeedRef: ptr("UA")}}}
			feeds := &fakeFeeds{items: map[string][]models.ContentItem{"UA": items(25)}}
			agg := newAggregator(resolver, feeds, &clock{now: time.Now()})

			result, err := agg.Fetch(context.Background(), []string{"A"}, tt.max)
			require.NoError(t, err)

			assert.Equal(t, []int{tt.want}, feeds.maxes)
			assert.Len(t, result.Channels[0].Videos, tt.want)
		})
	}
}

func TestFetchClampedValuesShareCacheEntry(t *testing.T) {
	resolver := &fakeResolver{channels: []models.ChannelMetadata{{ID: "A", FeedRef: ptr("UA")}}}
	agg := newAggregator(resolver, &fakeFeeds{}, &clock{now: time.Now()})

	_, err := agg.Fetch(context.Background(), []string{"A"}, 50)
	require.NoError(t, err)
	_, err = agg.Fetch(context.Background(), []string{"A"}, 20)
	require.NoError(t, err)

	assert.Equal(t, int32(1), resolver.calls.Load())
}

func TestCachedResultIsNotShared(t *testing.T) {
	resolver := &fakeResolver{channels: []models.ChannelMetadata{
		{ID: "A", Title: "Alpha", FeedRef: ptr("UA"), SubscriberCount: ptr("100")},
	}}
	feeds := &fakeFeeds{items: map[string][]models.ContentItem{"UA": items(2)}}
	agg := newAggregator(resolver, feeds, &clock{now: time.Now()})

	first, err := agg.Fetch(context.Background(), []string{"A"}, 10)
	require.NoError(t, err)
	first.Channels[0].Title = "changed"
	first.Channels[0].Videos[0].Title = "changed"
	*first.Channels[0].Subscribers = "0"

	second, err := agg.Fetch(context.Background(), []string{"A"}, 10)
	require.NoError(t, err)
	second.Channels[0].Videos[1].Title = "changed"

	third, err := agg.Fetch(context.Background(), []string{"A"}, 10)
	require.NoError(t, err)

	assert.Equal(t, "Alpha", third.Channels[0].Title)
	assert.Equal(t, "100", *third.Channels[0].Subscribers)
	assert.Equal(t, "video", third.Channels[0].Videos[0].Title)
	assert.Equal(t, "video", third.Channels[0].Videos[1].Title)
	assert.Equal(t, int32(1), resolver.calls.Load())
}

func TestPartialFailureKeepsOrder(t *testing.T) {
	resolver := &fakeResolver{channels: []models.ChannelMetadata{
		// Upstream order differs from request order on purpose
		{ID: "C", Title: "C", FeedRef: ptr("UC")},
		{ID: "A", Title: "A", FeedRef: ptr("UA")},
		{ID: "B", Title: "B", FeedRef: ptr("UB")},
	}}
	feeds := &fakeFeeds{
		items: map[string][]models.ContentItem{"UA": items(2), "UC": items(1)},
		fail:  map[string]error{"UB": errors.New("playlist fetch failed")},
		// A finishes last so completion order differs from request order
		delays: map[string]time.Duration{"UA": 20 * time.Millisecond},
	}
	agg := newAggregator(resolver, feeds, &clock{now: time.Now()})

	result, err := agg.Fetch(context.Background(), []string{"A", "B", "C"}, 10)
	require.NoError(t, err)
	require.Len(t, result.Channels, 3)

	assert.Equal(t, "A", result.Channels[0].ChannelID)
	assert.Len(t, result.Channels[0].Videos, 2)
	assert.Empty(t, result.Channels[0].Error)

	assert.Equal(t, "B", result.Channels[1].ChannelID)
	assert.Empty(t, result.Channels[1].Videos)
	assert.Equal(t, "playlist fetch failed", result.Channels[1].Error)

	assert.Equal(t, "C", result.Channels[2].ChannelID)
	assert.Len(t, result.Channels[2].Videos, 1)
	assert.Empty(t, result.Channels[2].Error)
}

func TestResolverFailureAbortsBeforeFeeds(t *testing.T) {
	upstream := &models.UpstreamError{Op: "resolve channels", StatusCode: http.StatusForbidden, Body: []byte(`{"error":"quota"}`)}
	resolver := &fakeResolver{err: upstream}
	feeds := &fakeFeeds{}
	agg := newAggregator(resolver, feeds, &clock{now: time.Now()})

	_, err := agg.Fetch(context.Background(), []string{"A", "B"}, 10)

	var got *models.UpstreamError
	require.True(t, errors.As(err, &got))
	assert.Equal(t, http.StatusForbidden, got.StatusCode)
	assert.Equal(t, int32(0), feeds.calls.Load())

	// Failures are not cached
	_, _ = agg.Fetch(context.Background(), []string{"A", "B"}, 10)
	assert.Equal(t, int32(2), resolver.calls.Load())
}

func TestChannelMissingFromDirectory(t *testing.T) {
	resolver := &fakeResolver{channels: []models.ChannelMetadata{
		{ID: "A", Title: "A", FeedRef: ptr("UA")},
	}}
	feeds := &fakeFeeds{items: map[string][]models.ContentItem{"UA": items(1)}}
	agg := newAggregator(resolver, feeds, &clock{now: time.Now()})

	result, err := agg.Fetch(context.Background(), []string{"A", "ghost", "A"}, 10)
	require.NoError(t, err)
	require.Len(t, result.Channels, 3)

	assert.Equal(t, "ghost", result.Channels[1].ChannelID)
	assert.Equal(t, "Channel", result.Channels[1].Title)
	assert.Equal(t, "channel not found", result.Channels[1].Error)
	assert.Equal(t, result.Channels[0], result.Channels[2])
}

func TestFetchesRunConcurrently(t *testing.T) {
	resolver := &fakeResolver{channels: []models.ChannelMetadata{
		{ID: "A", FeedRef: ptr("UA")},
		{ID: "B", FeedRef: ptr("UB")},
		{ID: "C", FeedRef: ptr("UC")},
	}}
	delay := 100 * time.Millisecond
	feeds := &fakeFeeds{delays: map[string]time.Duration{"UA": delay, "UB": delay, "UC": delay}}
	agg := newAggregator(resolver, feeds, &clock{now: time.Now()})

	start := time.Now()
	_, err := agg.Fetch(context.Background(), []string{"A", "B", "C"}, 10)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 3*delay)
}

func TestFetchesSurviveCallerCancellation(t *testing.T) {
	resolver := &fakeResolver{channels: []models.ChannelMetadata{{ID: "A", FeedRef: ptr("UA")}}}
	feeds := &ctxFeeds{}
	agg := newAggregator(resolver, feeds, &clock{now: time.Now()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := agg.Fetch(ctx, []string{"A"}, 10)
	require.NoError(t, err)

	assert.Empty(t, result.Channels[0].Error)
}

// ctxFeeds fails when its context is already done
type ctxFeeds struct{}

func (ctxFeeds) Fetch(ctx context.Context, _ *string, _ int) ([]models.ContentItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []models.ContentItem{}, nil
}

func TestUploadsCached(t *testing.T) {
	resolver := &fakeResolver{channels: []models.ChannelMetadata{{ID: "A", FeedRef: ptr("UA")}}}
	feeds := &fakeFeeds{items: map[string][]models.ContentItem{"UA": items(4)}}
	agg := newAggregator(resolver, feeds, &clock{now: time.Now()})

	first, err := agg.Uploads(context.Background(), "A", 3)
	require.NoError(t, err)
	second, err := agg.Uploads(context.Background(), "A", 3)
	require.NoError(t, err)

	assert.Len(t, first, 3)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), resolver.calls.Load())
	assert.Equal(t, int32(1), feeds.calls.Load())
}

func TestUploadsNormalizesAndCopies(t *testing.T) {
	resolver := &fakeResolver{channels: []models.ChannelMetadata{{ID: "A", FeedRef: ptr("UA")}}}
	feeds := &fakeFeeds{items: map[string][]models.ContentItem{"UA": items(25)}}
	agg := newAggregator(resolver, feeds, &clock{now: time.Now()})

	first, err := agg.Uploads(context.Background(), "A", 50)
	require.NoError(t, err)
	require.Len(t, first, 20)
	first[0].Title = "changed"

	second, err := agg.Uploads(context.Background(), "A", 20)
	require.NoError(t, err)

	assert.Equal(t, "video", second[0].Title)
	assert.Equal(t, []int{20}, feeds.maxes)
}

func TestUploadsUnknownChannelIsEmpty(t *testing.T) {
	resolver := &fakeResolver{}
	feeds := &fakeFeeds{}
	agg := newAggregator(resolver, feeds, &clock{now: time.Now()})

	got, err := agg.Uploads(context.Background(), "ghost", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, int32(0), feeds.calls.Load())
}

type fakeStats struct{ calls atomic.Int32 }

func (f *fakeStats) Stats(_ context.Context, id models.ChannelID) (models.ChannelStats, error) {
	f.calls.Add(1)
	return models.ChannelStats{ChannelID: id, SubscriberCount: ptr("7")}, nil
}

func TestStatsCached(t *testing.T) {
	stats := &fakeStats{}
	agg := aggregator.New(aggregator.Config{Resolver: &fakeResolver{}, Feeds: &fakeFeeds{}, Stats: stats})

	_, err := agg.Stats(context.Background(), "A")
	require.NoError(t, err)
	got, err := agg.Stats(context.Background(), "A")
	require.NoError(t, err)

	assert.Equal(t, "7", *got.SubscriberCount)
	assert.Equal(t, int32(1), stats.calls.Load())

	_, err = agg.Stats(context.Background(), "")
	assert.True(t, models.IsValidation(err))
}
