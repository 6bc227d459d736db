package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/watchfloor/internal/filter"
	"github.com/abelbrown/watchfloor/internal/logging"
	"github.com/abelbrown/watchfloor/internal/model"
	"github.com/abelbrown/watchfloor/internal/otel"
)

// maxConcurrentFetches limits parallel feed downloads.
const maxConcurrentFetches = 5

// Feed is a directly-read feed.
type Feed struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Category string `yaml:"category"`
}

// sourceID returns the feed's id, deriving one from the URL if unset.
func (f Feed) sourceID() string {
	if f.ID != "" {
		return f.ID
	}
	return hashString(f.URL)
}

// LocalState is state kept on this machine for articles that have no
// server: when each was first seen, and its triage status.
type LocalState interface {
	FirstSeen(ids []string, now time.Time) (map[string]time.Time, error)
	Statuses(ids []string) (map[string]model.Status, error)
}

// RSSFetcher reads a fixed list of feeds.
type RSSFetcher struct {
	feeds      []Feed // IMMUTABLE: set at construction, never modified
	client     *http.Client
	state      LocalState
	maxPerFeed int
	events     *otel.Logger
	policy     *bluemonday.Policy
	now        func() time.Time
}

// NewRSSFetcher creates an RSSFetcher. state and events may be nil.
// maxPerFeed <= 0 keeps every item.
func NewRSSFetcher(feeds []Feed, state LocalState, maxPerFeed int, events *otel.Logger) *RSSFetcher {
	feedsCopy := make([]Feed, len(feeds))
	copy(feedsCopy, feeds)
	return &RSSFetcher{
		feeds:      feedsCopy,
		client:     &http.Client{Timeout: fetchTimeout},
		state:      state,
		maxPerFeed: maxPerFeed,
		events:     events,
		policy:     bluemonday.StrictPolicy(),
		now:        time.Now,
	}
}

// Fetch downloads every feed in parallel. Feeds that fail are skipped;
// ArticlesErr is set only when all of them fail.
func (f *RSSFetcher) Fetch(ctx context.Context) Result {
	start := time.Now()
	fetchTime := f.now()

	res := Result{
		Sources:  make([]model.Source, 0, len(f.feeds)),
		Articles: []model.Article{},
	}
	for _, feed := range f.feeds {
		res.Sources = append(res.Sources, model.Source{
			ID:     feed.sourceID(),
			Name:   feed.Name,
			URL:    feed.URL,
			Active: true,
		})
	}

	var (
		mu       sync.Mutex
		articles []model.Article
		errs     []error
	)
	var g errgroup.Group
	g.SetLimit(maxConcurrentFetches)
	for _, feed := range f.feeds {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			items, err := f.fetchFeed(ctx, feed, fetchTime)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", feed.Name, err))
				f.events.Emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindFetchError, Comp: "fetch", Source: feed.Name, Err: err.Error()})
				return nil
			}
			articles = append(articles, items...)
			return nil
		})
	}
	_ = g.Wait()

	if len(f.feeds) > 0 && len(errs) == len(f.feeds) {
		res.ArticlesErr = fmt.Errorf("all %d feeds failed: %w", len(errs), errors.Join(errs...))
		emitResult(f.events, "rss", res, time.Since(start))
		return res
	}

	articles = filter.Dedup(filter.LimitPerSource(articles, f.maxPerFeed))
	res.Articles = f.annotate(articles, fetchTime)
	emitResult(f.events, "rss", res, time.Since(start))
	return res
}

// fetchFeed retrieves and converts one feed.
func (f *RSSFetcher) fetchFeed(ctx context.Context, feed Feed, fetchTime time.Time) ([]model.Article, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "watchfloor/1.0 (+https://github.com/abelbrown/watchfloor)")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	parsed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	out := make([]model.Article, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		out = append(out, f.convertItem(item, feed, fetchTime))
	}
	logging.Debug("fetched feed", "feed", feed.Name, "items", len(out))
	return out, nil
}

// convertItem converts a gofeed.Item to an Article.
func (f *RSSFetcher) convertItem(item *gofeed.Item, feed Feed, fetchTime time.Time) model.Article {
	a := model.Article{
		ID:         generateID(item),
		Title:      f.plainText(item.Title),
		URL:        item.Link,
		SourceID:   feed.sourceID(),
		SourceName: feed.Name,
		Status:     model.StatusNew,
	}

	body := item.Content
	if body == "" {
		body = item.Description
	}
	a.Content = f.plainText(body)
	if item.Description != "" {
		a.Summary = truncate(f.plainText(item.Description), 500)
	}
	if item.Image != nil {
		a.ImageURL = item.Image.URL
	}

	if item.PublishedParsed != nil {
		a.PublishedAt = *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		a.UpdatedAt = *item.UpdatedParsed
	}
	if a.PublishedAt.IsZero() && a.UpdatedAt.IsZero() {
		a.PublishedAt = fetchTime
	}
	return a
}

// annotate applies first-seen times and local statuses.
func (f *RSSFetcher) annotate(articles []model.Article, now time.Time) []model.Article {
	if f.state == nil || len(articles) == 0 {
		return articles
	}
	ids := make([]string, len(articles))
	for i, a := range articles {
		ids[i] = a.ID
	}

	seen, err := f.state.FirstSeen(ids, now)
	if err != nil {
		logging.Warn("failed to record first-seen times", "error", err)
	}
	statuses, err := f.state.Statuses(ids)
	if err != nil {
		logging.Warn("failed to load local statuses", "error", err)
	}

	for i := range articles {
		if t, ok := seen[articles[i].ID]; ok {
			articles[i].IngestedAt = t
		}
		if s, ok := statuses[articles[i].ID]; ok {
			articles[i].Status = s
		}
	}
	return articles
}

// plainText strips markup and collapses whitespace.
func (f *RSSFetcher) plainText(s string) string {
	if s == "" {
		return ""
	}
	text := html.UnescapeString(f.policy.Sanitize(s))
	return strings.Join(strings.Fields(text), " ")
}

// generateID creates a deterministic ID for a feed item.
// Uses the GUID if available, otherwise hashes the URL.
func generateID(item *gofeed.Item) string {
	if item.GUID != "" {
		return hashString(item.GUID)
	}
	if item.Link != "" {
		return hashString(item.Link)
	}
	key := item.Title
	if item.PublishedParsed != nil {
		key += item.PublishedParsed.String()
	}
	return hashString(key)
}

// hashString creates a short hash of a string for use as an ID.
func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:8])
}

// truncate shortens a string to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
