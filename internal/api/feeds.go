package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/abelbrown/watchfloor/internal/model"
)

// FeedInput is a new feed subscription.
type FeedInput struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Category string `json:"category,omitempty"`
}

// Validate checks the input before it is sent. The backend validates again
// and may reject with its own reason.
func (in FeedInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return &ValidationError{Reason: "feed name is required"}
	}
	raw := strings.TrimSpace(in.URL)
	if raw == "" {
		return &ValidationError{Reason: "feed URL is required"}
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		if !strings.Contains(raw, "://") {
			return &ValidationError{Reason: "feed URL has no scheme", Suggestion: "https://" + raw}
		}
		return &ValidationError{Reason: "feed URL is malformed"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ValidationError{
			Reason:     fmt.Sprintf("unsupported URL scheme %q", u.Scheme),
			Suggestion: "https://" + u.Host + u.RequestURI(),
		}
	}
	return nil
}

// ListFeeds returns the user's feed subscriptions.
func (c *Client) ListFeeds(ctx context.Context) ([]model.UserFeed, error) {
	body, err := c.getJSON(ctx, "/api/feeds", nil)
	if err != nil {
		return nil, err
	}
	return decodeEach(coerceList(body, "feeds", "data", "items", "results"), "feed", wireFeed.toModel), nil
}

// AddFeed creates a feed subscription. Rejected input is reported as a
// *ValidationError carrying the reason and, when offered, a suggestion.
func (c *Client) AddFeed(ctx context.Context, in FeedInput) (model.UserFeed, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.URL = strings.TrimSpace(in.URL)
	if err := in.Validate(); err != nil {
		return model.UserFeed{}, err
	}

	body, err := c.do(ctx, http.MethodPost, "/api/feeds", nil, in)
	if err != nil {
		return model.UserFeed{}, asValidation(err)
	}

	var w wireFeed
	if err := json.Unmarshal(unwrapObject(body, "feed"), &w); err != nil {
		return model.UserFeed{}, fmt.Errorf("decode feed: %w", err)
	}
	feed := w.toModel()
	if feed.URL == "" {
		feed.URL = in.URL
	}
	if feed.Name == "" {
		feed.Name = in.Name
	}
	return feed, nil
}
