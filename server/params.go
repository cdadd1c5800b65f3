package server

import (
	"strconv"
	"strings"

	"feedhub/aggregator"

	"github.com/samber/lo"
)

const (
	DefaultSearchResults = 12
	MaxSearchResults     = 50
)

// ParseChannels splits a comma-separated list, dropping blank entries
func ParseChannels(raw string) []string {
	return lo.Compact(lo.Map(strings.Split(raw, ","), func(id string, _ int) string {
		return strings.TrimSpace(id)
	}))
}

// ParseMaxResults reads the per-channel item count. Values above the maximum
// are capped; anything else unusable falls back to the default.
func ParseMaxResults(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		n = 0
	}
	return aggregator.NormalizeMaxResults(n)
}

// ParseSearchResults reads the search page size
func ParseSearchResults(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return DefaultSearchResults
	}
	return lo.Clamp(n, 1, MaxSearchResults)
}
