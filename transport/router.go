// Package transport decides whether callers talk to the upstream providers
// directly or through a feedhub server.
package transport

import (
	"context"
	"strings"

	"feedhub/aggregator"
	"feedhub/microblog"
	"feedhub/models"

	log "github.com/sirupsen/logrus"
)

type Route int

const (
	Proxy Route = iota
	Direct
)

func (r Route) String() string {
	if r == Direct {
		return "direct"
	}
	return "proxy"
}

// Environment describes where the caller runs. Host is empty when there is
// no addressable runtime host.
type Environment struct {
	Production bool
	Host       string
}

// Policy picks a route for an environment
type Policy func(Environment) Route

// DefaultPolicy uses the direct path only for non-production loopback hosts
func DefaultPolicy(env Environment) Route {
	if env.Production {
		return Proxy
	}
	if isLoopback(env.Host) {
		return Direct
	}
	return Proxy
}

func isLoopback(host string) bool {
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	switch strings.ToLower(host) {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// Router exposes the bundle and tweet operations through whichever
// implementation the policy selects
type Router struct {
	env    Environment
	policy Policy

	directBundles aggregator.BundleFetcher
	remoteBundles aggregator.BundleFetcher
	directTweets  microblog.TweetFetcher
	remoteTweets  microblog.TweetFetcher
}

type RouterConfig struct {
	Environment Environment
	// Policy defaults to DefaultPolicy
	Policy Policy

	DirectBundles aggregator.BundleFetcher
	RemoteBundles aggregator.BundleFetcher
	DirectTweets  microblog.TweetFetcher
	RemoteTweets  microblog.TweetFetcher
}

func NewRouter(cfg RouterConfig) *Router {
	policy := cfg.Policy
	if policy == nil {
		policy = DefaultPolicy
	}
	return &Router{
		env:           cfg.Environment,
		policy:        policy,
		directBundles: cfg.DirectBundles,
		remoteBundles: cfg.RemoteBundles,
		directTweets:  cfg.DirectTweets,
		remoteTweets:  cfg.RemoteTweets,
	}
}

func (r *Router) Route() Route {
	return r.policy(r.env)
}

func (r *Router) Bundle(ctx context.Context, ids []models.ChannelID, maxResults int) (models.AggregateResult, error) {
	route := r.Route()
	fetcher := r.remoteBundles
	if route == Direct {
		fetcher = r.directBundles
	}
	if fetcher == nil {
		return models.AggregateResult{}, &models.ConfigurationError{Setting: route.String() + " bundle fetcher"}
	}

	log.WithFields(log.Fields{"route": route, "channels": len(ids)}).Debug("Fetching bundle")
	return fetcher.Fetch(ctx, ids, maxResults)
}

func (r *Router) Tweets(ctx context.Context, limit int, username string) ([]models.Tweet, error) {
	route := r.Route()
	fetcher := r.remoteTweets
	if route == Direct {
		fetcher = r.directTweets
	}
	if fetcher == nil {
		return nil, &models.ConfigurationError{Setting: route.String() + " tweet fetcher"}
	}

	log.WithFields(log.Fields{"route": route, "limit": limit}).Debug("Fetching tweets")
	return fetcher.Fetch(ctx, limit, username)
}
