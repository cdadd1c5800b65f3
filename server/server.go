package server

import (
	"context"
	"net/http"
	"time"

	"feedhub/aggregator"
	"feedhub/microblog"
	"feedhub/models"
	"feedhub/youtube"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const (
	bundleCacheControl = "public, max-age=300"
	tweetsCacheControl = "public, max-age=60"

	missingChannelsMessage = "channels query param required (comma-separated channel IDs)."
	missingChannelMessage  = "channel query param required."
)

// ChannelLookup serves single-channel reads
type ChannelLookup interface {
	Uploads(ctx context.Context, id models.ChannelID, maxResults int) ([]models.ContentItem, error)
	Stats(ctx context.Context, id models.ChannelID) (models.ChannelStats, error)
}

type VideoSearcher interface {
	Search(ctx context.Context, q youtube.SearchQuery) (models.SearchPage, error)
}

type ServerConfig struct {
	// Bundles serves the aggregation endpoint
	Bundles  aggregator.BundleFetcher
	Channels ChannelLookup
	Search   VideoSearcher
	Tweets   microblog.TweetFetcher

	// YouTubeConfigured is false when no YouTube API key is set. The video
	// endpoints then fail before reading any parameters.
	YouTubeConfigured bool

	// DefaultChannel is used by the search endpoint when no channel is given
	DefaultChannel string

	// Origins allowed to call the API from a browser
	AllowOrigins string
}

type handlers struct {
	config *ServerConfig
}

// Returns a fiber.App serving the feedhub HTTP API
func Server(config *ServerConfig) *fiber.App {
	h := &handlers{config: config}

	app := fiber.New(fiber.Config{
		// Query values end up in long-lived cache entries
		Immutable:             true,
		DisableStartupMessage: true,
	})

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		log.WithFields(log.Fields{
			"method":    c.Method(),
			"route":     c.Route().Path,
			"status":    c.Response().StatusCode(),
			"latency":   time.Since(start),
			"requestId": c.GetRespHeader(fiber.HeaderXRequestID),
		}).Info("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(compress.New())

	allowOrigins := config.AllowOrigins
	if allowOrigins == "" {
		allowOrigins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowOrigins,
		AllowMethods: "GET,OPTIONS",
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	for _, path := range []string{aggregator.BundlePath, "/.netlify/functions/youtube"} {
		app.Get(path, h.bundle)
	}
	for _, path := range []string{microblog.TweetsPath, "/.netlify/functions/latest-tweets"} {
		app.Get(path, h.tweets)
	}

	app.Get("/api/videos", h.videos)
	app.Get("/api/uploads", h.uploads)
	app.Get("/api/stats", h.stats)

	return app
}

func sendMissingYouTubeKey(c *fiber.Ctx) error {
	return sendVideoError(c, &models.ConfigurationError{Setting: "YOUTUBE_API_KEY"})
}

func (h *handlers) bundle(c *fiber.Ctx) error {
	if !h.config.YouTubeConfigured {
		return sendMissingYouTubeKey(c)
	}

	ids := ParseChannels(c.Query("channels"))
	if len(ids) == 0 {
		return c.Status(http.StatusBadRequest).JSON(models.ErrorResponse{Error: missingChannelsMessage})
	}
	maxResults := ParseMaxResults(c.Query("maxResults"))

	result, err := h.config.Bundles.Fetch(c.UserContext(), ids, maxResults)
	if err != nil {
		return sendVideoError(c, err)
	}

	c.Set(fiber.HeaderCacheControl, bundleCacheControl)
	return c.Status(http.StatusOK).JSON(result)
}

func (h *handlers) tweets(c *fiber.Ctx) error {
	limit := microblog.ParseLimit(c.Query("limit"))

	tweets, err := h.config.Tweets.Fetch(c.UserContext(), limit, c.Query("username"))
	if err != nil {
		return sendTweetsError(c, err)
	}

	c.Set(fiber.HeaderCacheControl, tweetsCacheControl)
	return c.Status(http.StatusOK).JSON(models.TweetsResponse{Tweets: tweets})
}

func (h *handlers) videos(c *fiber.Ctx) error {
	if !h.config.YouTubeConfigured {
		return sendMissingYouTubeKey(c)
	}

	channel := c.Query("channel", h.config.DefaultChannel)
	if channel == "" {
		return c.Status(http.StatusBadRequest).JSON(models.ErrorResponse{Error: missingChannelMessage})
	}

	page, err := h.config.Search.Search(c.UserContext(), youtube.SearchQuery{
		ChannelID:  channel,
		Query:      c.Query("q"),
		PageToken:  c.Query("pageToken"),
		MaxResults: ParseSearchResults(c.Query("maxResults")),
	})
	if err != nil {
		return sendVideoError(c, err)
	}

	c.Set(fiber.HeaderCacheControl, bundleCacheControl)
	return c.Status(http.StatusOK).JSON(page)
}

func (h *handlers) uploads(c *fiber.Ctx) error {
	if !h.config.YouTubeConfigured {
		return sendMissingYouTubeKey(c)
	}

	channel := c.Query("channel")
	if channel == "" {
		return c.Status(http.StatusBadRequest).JSON(models.ErrorResponse{Error: missingChannelMessage})
	}

	items, err := h.config.Channels.Uploads(c.UserContext(), channel, ParseMaxResults(c.Query("maxResults")))
	if err != nil {
		return sendVideoError(c, err)
	}

	c.Set(fiber.HeaderCacheControl, bundleCacheControl)
	return c.Status(http.StatusOK).JSON(fiber.Map{"items": items})
}

func (h *handlers) stats(c *fiber.Ctx) error {
	if !h.config.YouTubeConfigured {
		return sendMissingYouTubeKey(c)
	}

	channel := c.Query("channel")
	if channel == "" {
		return c.Status(http.StatusBadRequest).JSON(models.ErrorResponse{Error: missingChannelMessage})
	}

	stats, err := h.config.Channels.Stats(c.UserContext(), channel)
	if err != nil {
		return sendVideoError(c, err)
	}

	c.Set(fiber.HeaderCacheControl, bundleCacheControl)
	return c.Status(http.StatusOK).JSON(stats)
}
