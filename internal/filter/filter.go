// Package filter computes the visible feed.
// All functions are pure: []Article in, []Article out. No side effects.
package filter

import (
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/abelbrown/watchfloor/internal/model"
)

// Criteria is the composite filter the user controls.
type Criteria struct {
	TimeRange        TimeRange `json:"time_range" yaml:"time_range"`
	Scope            Scope     `json:"scope" yaml:"scope"`
	HighPriorityOnly bool      `json:"high_priority_only" yaml:"high_priority_only"`
	Search           string    `json:"search,omitempty" yaml:"search,omitempty"`
	UnreadOnly       bool      `json:"unread_only" yaml:"unread_only"`
}

// Query is everything Apply needs besides the articles.
type Query struct {
	Criteria
	Sort     SortMode
	Selected string          // selected article id, "" for none
	Saved    map[string]bool // saved-article ids
	Now      time.Time       // reference for the time range; zero means time.Now()
}

// Apply filters and orders articles for display. Filters run in a fixed
// order: time range, scope, high-priority toggle, search, unread-only.
// Output is deterministic for a given input set regardless of input order.
func Apply(articles []model.Article, q Query) []model.Article {
	now := q.Now
	if now.IsZero() {
		now = time.Now()
	}

	out := ByTimeRange(articles, q.TimeRange, now)
	out = ByScope(out, q.Scope, q.Saved)
	if q.HighPriorityOnly {
		out = ByHighPriority(out)
	}
	out = BySearch(out, q.Search)
	if q.UnreadOnly {
		out = ByUnread(out, q.Selected)
	}
	Sort(out, q.Sort)
	return out
}

// ByTimeRange keeps articles whose filter time (ingested, else published)
// is within r of now. RangeAll keeps everything.
func ByTimeRange(articles []model.Article, r TimeRange, now time.Time) []model.Article {
	window, bounded := r.Duration()
	if !bounded {
		return keep(articles, func(model.Article) bool { return true })
	}
	cutoff := now.Add(-window)
	return keep(articles, func(a model.Article) bool {
		return !a.FilterTime().Before(cutoff)
	})
}

// ByScope keeps articles in the given scope. saved may be nil.
func ByScope(articles []model.Article, s Scope, saved map[string]bool) []model.Article {
	switch s.Kind {
	case ScopeSource:
		return keep(articles, func(a model.Article) bool { return a.SourceID == s.SourceID })
	case ScopeSaved:
		return keep(articles, func(a model.Article) bool { return saved[a.ID] })
	case ScopeHighPriority:
		return ByHighPriority(articles)
	}
	return keep(articles, func(model.Article) bool { return true })
}

// ByHighPriority keeps high-priority articles.
func ByHighPriority(articles []model.Article) []model.Article {
	return keep(articles, func(a model.Article) bool { return a.HighPriority })
}

// BySearch keeps articles whose title or body contains query, ignoring
// case. An empty query keeps everything.
func BySearch(articles []model.Article, query string) []model.Article {
	query = strings.TrimSpace(query)
	if query == "" {
		return keep(articles, func(model.Article) bool { return true })
	}
	// Casers are not safe for concurrent use.
	fold := cases.Fold()
	needle := fold.String(query)
	return keep(articles, func(a model.Article) bool {
		return strings.Contains(fold.String(a.Title), needle) ||
			strings.Contains(fold.String(a.Content), needle)
	})
}

// ByUnread keeps unread articles. The selected article always passes so it
// does not vanish the moment it is marked read.
func ByUnread(articles []model.Article, selected string) []model.Article {
	return keep(articles, func(a model.Article) bool {
		return a.Unread() || (selected != "" && a.ID == selected)
	})
}

func keep(articles []model.Article, pred func(model.Article) bool) []model.Article {
	if len(articles) == 0 {
		return []model.Article{}
	}
	result := make([]model.Article, 0, len(articles))
	for _, a := range articles {
		if pred(a) {
			result = append(result, a)
		}
	}
	return result
}
