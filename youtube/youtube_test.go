package youtube_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"feedhub/models"
	"feedhub/youtube"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeAPI(t *testing.T, calls *atomic.Int32, routes map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for path, h := range routes {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			assert.Equal(t, "test-key", r.URL.Query().Get("key"))
			h(w, r)
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(url string) *youtube.Client {
	return youtube.NewClient(youtube.ClientConfig{APIKey: "test-key", APIBase: url})
}

func TestResolveMapsChannels(t *testing.T) {
	var calls atomic.Int32
	srv := fakeAPI(t, &calls, map[string]http.HandlerFunc{
		"/channels": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "UCabc,UCdef", r.URL.Query().Get("id"))
			assert.Equal(t, "contentDetails,statistics,snippet", r.URL.Query().Get("part"))
			w.Write([]byte(`{"items":[
				{"id":"UCabc","snippet":{"title":"Alpha"},"contentDetails":{"relatedPlaylists":{"uploads":"UUabc"}},"statistics":{"subscriberCount":"1200"}},
				{"id":"UCdef","snippet":{},"contentDetails":{"relatedPlaylists":{}},"statistics":{}}
			]}`))
		},
	})

	channels, err := youtube.NewDirectory(newClient(srv.URL)).Resolve(context.Background(), []string{"UCabc", "UCdef"})
	require.NoError(t, err)
	require.Len(t, channels, 2)
	assert.Equal(t, int32(1), calls.Load())

	assert.Equal(t, "Alpha", channels[0].Title)
	require.NotNil(t, channels[0].FeedRef)
	assert.Equal(t, "UUabc", *channels[0].FeedRef)
	require.NotNil(t, channels[0].SubscriberCount)
	assert.Equal(t, "1200", *channels[0].SubscriberCount)

	assert.Equal(t, "Channel", channels[1].Title)
	assert.Nil(t, channels[1].FeedRef)
	assert.Nil(t, channels[1].SubscriberCount)
}

func TestResolvePassesUpstreamFailureThrough(t *testing.T) {
	var calls atomic.Int32
	srv := fakeAPI(t, &calls, map[string]http.HandlerFunc{
		"/channels": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error":{"code":403,"message":"quota exceeded"}}`))
		},
	})

	_, err := youtube.NewDirectory(newClient(srv.URL)).Resolve(context.Background(), []string{"UCabc"})

	var upstream *models.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, http.StatusForbidden, upstream.StatusCode)
	assert.JSONEq(t, `{"error":{"code":403,"message":"quota exceeded"}}`, string(upstream.Body))
}

func TestMissingKeyFailsBeforeNetwork(t *testing.T) {
	var calls atomic.Int32
	srv := fakeAPI(t, &calls, map[string]http.HandlerFunc{
		"/channels": func(w http.ResponseWriter, r *http.Request) {},
	})
	client := youtube.NewClient(youtube.ClientConfig{APIBase: srv.URL})

	_, err := youtube.NewDirectory(client).Resolve(context.Background(), []string{"UCabc"})

	var cfgErr *models.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "Missing YOUTUBE_API_KEY", err.Error())
	assert.Equal(t, int32(0), calls.Load())
}

func TestStats(t *testing.T) {
	var calls atomic.Int32
	srv := fakeAPI(t, &calls, map[string]http.HandlerFunc{
		"/channels": func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("id") == "UCnone" {
				w.Write([]byte(`{"items":[]}`))
				return
			}
			w.Write([]byte(`{"items":[{"id":"UCabc","statistics":{"subscriberCount":"5","viewCount":"100","videoCount":"3"}}]}`))
		},
	})
	dir := youtube.NewDirectory(newClient(srv.URL))

	stats, err := dir.Stats(context.Background(), "UCabc")
	require.NoError(t, err)
	assert.Equal(t, "100", *stats.ViewCount)
	assert.Equal(t, "3", *stats.VideoCount)

	_, err = dir.Stats(context.Background(), "UCnone")
	var notFound *models.NotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestPlaylistFetch(t *testing.T) {
	var calls atomic.Int32
	srv := fakeAPI(t, &calls, map[string]http.HandlerFunc{
		"/playlistItems": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "UUabc", r.URL.Query().Get("playlistId"))
			assert.Equal(t, "5", r.URL.Query().Get("maxResults"))
			w.Write([]byte(`{"items":[
				{"snippet":{"title":"First","description":"desc","resourceId":{"videoId":"v1"}}},
				{"snippet":{"resourceId":{"videoId":"v2"}}},
				{"snippet":{"title":"No id"}}
			]}`))
		},
	})
	ref := "UUabc"

	items, err := youtube.NewPlaylistFetcher(newClient(srv.URL)).Fetch(context.Background(), &ref, 5)
	require.NoError(t, err)

	assert.Equal(t, []models.ContentItem{
		{Id: "v1", Title: "First", Description: "desc"},
		{Id: "v2", Title: "Recent video", Description: ""},
		{Id: "", Title: "No id", Description: ""},
	}, items)
}

func TestPlaylistFetchWithoutFeedRef(t *testing.T) {
	var calls atomic.Int32
	srv := fakeAPI(t, &calls, map[string]http.HandlerFunc{})

	items, err := youtube.NewPlaylistFetcher(newClient(srv.URL)).Fetch(context.Background(), nil, 5)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NotNil(t, items)
	assert.Equal(t, int32(0), calls.Load())
}

func TestPlaylistFetchFailureReturnsEmptyItems(t *testing.T) {
	var calls atomic.Int32
	srv := fakeAPI(t, &calls, map[string]http.HandlerFunc{
		"/playlistItems": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"playlistNotFound"}`))
		},
	})
	ref := "UUgone"

	items, err := youtube.NewPlaylistFetcher(newClient(srv.URL)).Fetch(context.Background(), &ref, 5)
	require.Error(t, err)
	assert.Empty(t, items)
}

func TestSearchKeepsVideosAndTokens(t *testing.T) {
	var calls atomic.Int32
	srv := fakeAPI(t, &calls, map[string]http.HandlerFunc{
		"/search": func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			assert.Equal(t, "UCabc", q.Get("channelId"))
			assert.Equal(t, "date", q.Get("order"))
			assert.Equal(t, "CAUQAA", q.Get("pageToken"))
			assert.Equal(t, "go", q.Get("q"))
			w.Write([]byte(`{"nextPageToken":"CAoQAA","items":[
				{"id":{"kind":"youtube#video","videoId":"v1"},"snippet":{"title":"Video","description":"d"}},
				{"id":{"kind":"youtube#playlist"},"snippet":{"title":"Playlist"}}
			]}`))
		},
	})

	page, err := newClient(srv.URL).Search(context.Background(), youtube.SearchQuery{
		ChannelID:  "UCabc",
		Query:      "go",
		PageToken:  "CAUQAA",
		MaxResults: 12,
	})
	require.NoError(t, err)

	assert.Equal(t, []models.ContentItem{{Id: "v1", Title: "Video", Description: "d"}}, page.Items)
	require.NotNil(t, page.NextPageToken)
	assert.Equal(t, "CAoQAA", *page.NextPageToken)
	assert.Nil(t, page.PrevPageToken)
}

const atomFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns:media="http://search.yahoo.com/mrss/" xmlns="http://www.w3.org/2005/Atom">
 <title>Alpha uploads</title>
 <entry>
  <id>yt:video:v1</id>
  <yt:videoId>v1</yt:videoId>
  <title>First</title>
  <media:group>
   <media:title>First</media:title>
   <media:description>first description</media:description>
  </media:group>
 </entry>
 <entry>
  <id>yt:video:v2</id>
  <title></title>
 </entry>
 <entry>
  <id>yt:video:v3</id>
  <yt:videoId>v3</yt:videoId>
  <title>Third</title>
 </entry>
</feed>`

func TestAtomFetch(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "UUabc", r.URL.Query().Get("playlist_id"))
		w.Header().Set("Content-Type", "application/atom+xml")
		w.Write([]byte(atomFeed))
	}))
	defer srv.Close()
	ref := "UUabc"

	items, err := youtube.NewAtomFetcher(srv.URL, 0).Fetch(context.Background(), &ref, 2)
	require.NoError(t, err)

	assert.Equal(t, []models.ContentItem{
		{Id: "v1", Title: "First", Description: "first description"},
		{Id: "v2", Title: "Recent video", Description: ""},
	}, items)
	assert.Equal(t, int32(1), hits.Load())
}

func TestAtomFetchUpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	ref := "UUgone"

	items, err := youtube.NewAtomFetcher(srv.URL, 0).Fetch(context.Background(), &ref, 5)

	var upstream *models.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, http.StatusNotFound, upstream.StatusCode)
	assert.Empty(t, items)
}
