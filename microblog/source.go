// Package microblog fetches an account's recent text-only posts from a
// microblogging provider.
package microblog

import (
	"context"
	"strconv"

	"github.com/samber/lo"
)

const (
	DefaultLimit    = 6
	MaxLimit        = 10
	DefaultUsername = "harshktweets"

	// Operation names carried by upstream errors, the server maps them to
	// response bodies
	OpFetchUser  = "fetch user"
	OpFetchPosts = "fetch tweets"
)

// Post is a provider post before filtering
type Post struct {
	ID        string
	Text      string
	CreatedAt *string
	// HasMedia is set for posts carrying attachments or embeds
	HasMedia bool
}

// Source is a microblogging provider
type Source interface {
	// ResolveAccount maps a public username to the provider's account id
	ResolveAccount(ctx context.Context, username string) (string, error)
	// RecentPosts returns up to limit of the account's latest posts, newest first
	RecentPosts(ctx context.Context, accountID string, limit int) ([]Post, error)
}

// ParseLimit turns a raw query value into a post limit. Anything that is not
// a number is treated like zero.
func ParseLimit(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		n = 0
	}
	return NormalizeLimit(n)
}

// NormalizeLimit maps zero to DefaultLimit and clamps the rest to [1, MaxLimit]
func NormalizeLimit(n int) int {
	if n == 0 {
		n = DefaultLimit
	}
	return lo.Clamp(n, 1, MaxLimit)
}
