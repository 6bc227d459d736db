package filter

import (
	"slices"
	"strings"

	"github.com/abelbrown/watchfloor/internal/model"
)

// commonPrefixes are prefixes commonly used in news titles that should be
// ignored when comparing titles for deduplication.
var commonPrefixes = []string{
	"breaking:",
	"update:",
	"updated:",
	"exclusive:",
	"alert:",
	"advisory:",
	"patch now:",
	"analysis:",
}

// normalizeTitle lowercases a title and removes one common news prefix.
func normalizeTitle(title string) string {
	normalized := strings.ToLower(strings.TrimSpace(title))
	for _, prefix := range commonPrefixes {
		if strings.HasPrefix(normalized, prefix) {
			normalized = strings.TrimSpace(strings.TrimPrefix(normalized, prefix))
			break
		}
	}
	return normalized
}

// Dedup removes articles with duplicate URLs or near-identical titles
// (case-insensitive, ignoring prefixes like "Breaking:"). First occurrence
// wins. Used when the same story arrives through several feeds.
func Dedup(articles []model.Article) []model.Article {
	if len(articles) == 0 {
		return []model.Article{}
	}

	seenURLs := make(map[string]bool)
	seenTitles := make(map[string]bool)
	result := make([]model.Article, 0, len(articles))

	for _, a := range articles {
		if a.URL != "" && seenURLs[a.URL] {
			continue
		}
		title := normalizeTitle(a.Title)
		if title != "" && seenTitles[title] {
			continue
		}

		if a.URL != "" {
			seenURLs[a.URL] = true
		}
		if title != "" {
			seenTitles[title] = true
		}
		result = append(result, a)
	}
	return result
}

// LimitPerSource keeps the newest maxPerSource articles of each source.
// The result is ordered newest first. maxPerSource <= 0 means no limit.
func LimitPerSource(articles []model.Article, maxPerSource int) []model.Article {
	if len(articles) == 0 {
		return []model.Article{}
	}
	sorted := slices.Clone(articles)
	slices.SortStableFunc(sorted, func(a, b model.Article) int {
		if c := b.DisplayTime().Compare(a.DisplayTime()); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if maxPerSource <= 0 {
		return sorted
	}

	counts := make(map[string]int)
	result := make([]model.Article, 0, len(sorted))
	for _, a := range sorted {
		if counts[a.SourceID] >= maxPerSource {
			continue
		}
		counts[a.SourceID]++
		result = append(result, a)
	}
	return result
}
