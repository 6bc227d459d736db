package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelbrown/watchfloor/internal/model"
)

func TestFeedInputValidate(t *testing.T) {
	tests := []struct {
		name       string
		in         FeedInput
		wantErr    bool
		suggestion string
	}{
		{"ok", FeedInput{Name: "CISA", URL: "https://www.cisa.gov/feeds/alerts.xml"}, false, ""},
		{"no name", FeedInput{URL: "https://x.example/feed"}, true, ""},
		{"no url", FeedInput{Name: "x"}, true, ""},
		{"no scheme", FeedInput{Name: "x", URL: "x.example/feed"}, true, "https://x.example/feed"},
		{"ftp", FeedInput{Name: "x", URL: "ftp://x.example/feed"}, true, "https://x.example/feed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.NotEmpty(t, ve.Reason)
			assert.Equal(t, tt.suggestion, ve.Suggestion)
		})
	}
}

func TestAddFeed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var in FeedInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "Krebs", in.Name)
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"feed": {"id": 9, "name": "Krebs", "url": "https://krebsonsecurity.com/feed/", "category": "blogs"}}`)
	})
	feed, err := c.AddFeed(context.Background(), FeedInput{Name: " Krebs ", URL: "https://krebsonsecurity.com/feed/", Category: "blogs"})
	require.NoError(t, err)
	assert.Equal(t, model.UserFeed{ID: "9", Name: "Krebs", URL: "https://krebsonsecurity.com/feed/", Category: "blogs", Active: true}, feed)
}

func TestAddFeedServerValidation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `{"error": {"code": "invalid_feed", "reason": "URL did not return a feed", "suggestion": "https://example.com/rss.xml"}}`)
	})
	_, err := c.AddFeed(context.Background(), FeedInput{Name: "x", URL: "https://example.com/"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "URL did not return a feed", ve.Reason)
	assert.Equal(t, "https://example.com/rss.xml", ve.Suggestion)
}

func TestListFeeds(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data": {"feeds": [{"id": "1", "name": "a", "url": "https://a.example", "active": false, "article_count": 12}]}}`)
	})
	feeds, err := c.ListFeeds(context.Background())
	require.NoError(t, err)
	require.Len(t, feeds, 1)
	assert.False(t, feeds[0].Active)
	assert.Equal(t, 12, feeds[0].ArticleCount)
}
