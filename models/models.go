package models

// ChannelID identifies a content channel on the video platform
type ChannelID = string

// ChannelMetadata is what the channel directory knows about one channel
type ChannelMetadata struct {
	ID    ChannelID
	Title string
	// FeedRef points at the channel's uploads feed. Nil when the directory
	// did not return one.
	FeedRef         *string
	SubscriberCount *string
}

// ContentItem is a single recent upload
type ContentItem struct {
	Id          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ChannelBundle is the per-channel outcome of a feed fetch
type ChannelBundle struct {
	ChannelID ChannelID
	Items     []ContentItem
	Err       string
}

// ChannelEntry is one channel in an aggregation response
type ChannelEntry struct {
	ChannelID   ChannelID     `json:"channelId"`
	Title       string        `json:"title"`
	Subscribers *string       `json:"subscribers"`
	Videos      []ContentItem `json:"videos"`
	Error       string        `json:"error,omitempty"`
}

// AggregateResult holds one entry per requested channel, in request order
type AggregateResult struct {
	Channels []ChannelEntry `json:"channels"`
}

// Tweet is a text-only microblog post. CreatedAt is the provider's timestamp
// as sent, nil when the provider gave none.
type Tweet struct {
	Id        string  `json:"id"`
	Text      string  `json:"text"`
	CreatedAt *string `json:"created_at"`
}

type TweetsResponse struct {
	Tweets []Tweet `json:"tweets"`
}

// SearchPage is one page of channel search results. Tokens are passed
// through from upstream untouched.
type SearchPage struct {
	Items         []ContentItem `json:"items"`
	NextPageToken *string       `json:"nextPageToken"`
	PrevPageToken *string       `json:"prevPageToken"`
}

type ChannelStats struct {
	ChannelID       ChannelID `json:"channelId"`
	SubscriberCount *string   `json:"subscriberCount"`
	ViewCount       *string   `json:"viewCount"`
	VideoCount      *string   `json:"videoCount"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Detail  string `json:"detail,omitempty"`
	Details string `json:"details,omitempty"`
}
