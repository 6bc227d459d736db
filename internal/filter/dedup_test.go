package filter

import (
	"slices"
	"testing"
	"time"

	"github.com/abelbrown/watchfloor/internal/model"
)

func TestDedup(t *testing.T) {
	articles := []model.Article{
		{ID: "1", Title: "Chrome zero-day exploited", URL: "https://a.example/1"},
		{ID: "2", Title: "Other story", URL: "https://a.example/1"},
		{ID: "3", Title: "BREAKING: Chrome zero-day exploited", URL: "https://b.example/3"},
		{ID: "4", Title: "Fresh story", URL: "https://b.example/4"},
	}

	got := ids(Dedup(articles))
	if !slices.Equal(got, []string{"1", "4"}) {
		t.Errorf("Dedup = %v, want [1 4]", got)
	}
}

func TestDedupEmpty(t *testing.T) {
	if result := Dedup(nil); result == nil || len(result) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", result)
	}
}

func TestLimitPerSource(t *testing.T) {
	articles := []model.Article{
		{ID: "a1", SourceID: "a", PublishedAt: now.Add(-3 * time.Hour)},
		{ID: "a2", SourceID: "a", PublishedAt: now.Add(-1 * time.Hour)},
		{ID: "a3", SourceID: "a", PublishedAt: now.Add(-2 * time.Hour)},
		{ID: "b1", SourceID: "b", PublishedAt: now.Add(-4 * time.Hour)},
	}

	got := ids(LimitPerSource(articles, 2))
	want := []string{"a2", "a3", "b1"}
	if !slices.Equal(got, want) {
		t.Errorf("LimitPerSource = %v, want %v", got, want)
	}

	if got := LimitPerSource(articles, 0); len(got) != 4 {
		t.Errorf("no limit kept %d, want 4", len(got))
	}
}
