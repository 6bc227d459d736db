package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/abelbrown/watchfloor/internal/model"
)

// makeArticles creates n articles published a minute apart, all in the
// same band.
func makeArticles(n int) []model.Article {
	now := time.Now()
	articles := make([]model.Article, n)
	for i := range articles {
		articles[i] = model.Article{
			ID:          string(rune('a' + i%26)),
			Title:       strings.Repeat("x", 20),
			SourceName:  "src",
			PublishedAt: now.Add(-time.Duration(i) * time.Minute),
		}
	}
	return articles
}

// makeArticlesWithBands: the first 5 are in "Past Hour", the next 10 in
// "Today", the rest in "Yesterday".
func makeArticlesWithBands(n int) []model.Article {
	now := time.Now()
	articles := make([]model.Article, n)
	for i := range articles {
		var pub time.Time
		switch {
		case i < 5:
			pub = now.Add(-time.Duration(i) * time.Minute)
		case i < 15:
			pub = now.Add(-2*time.Hour - time.Duration(i)*time.Minute)
		default:
			pub = now.Add(-30*time.Hour - time.Duration(i)*time.Minute)
		}
		articles[i] = model.Article{
			ID:          string(rune('A' + i%26)),
			Title:       strings.Repeat("y", 20),
			SourceName:  "src",
			PublishedAt: pub,
		}
	}
	return articles
}

func TestCalcScrollOffset_NoBands(t *testing.T) {
	articles := makeArticles(100)

	tests := []struct {
		name       string
		cursor     int
		height     int
		wantOffset int
	}{
		{"cursor at top", 0, 20, 0},
		{"cursor within first page", 10, 20, 0},
		{"cursor at last visible row", 19, 20, 0},
		{"cursor one past page", 20, 20, 1},
		{"cursor deep", 50, 20, 31},
		{"cursor at end", 99, 20, 80},
		{"height of one", 5, 1, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calcScrollOffset(articles, tt.cursor, tt.height, false)
			if got != tt.wantOffset {
				t.Errorf("calcScrollOffset(cursor=%d, height=%d) = %d, want %d",
					tt.cursor, tt.height, got, tt.wantOffset)
			}
		})
	}
}

func TestCalcScrollOffset_Empty(t *testing.T) {
	if got := calcScrollOffset(nil, 3, 10, true); got != 0 {
		t.Errorf("empty list offset = %d, want 0", got)
	}
	if got := calcScrollOffset(makeArticles(3), -1, 10, true); got != 0 {
		t.Errorf("negative cursor offset = %d, want 0", got)
	}
}

func TestCalcScrollOffset_WithBandsKeepsCursorVisible(t *testing.T) {
	articles := makeArticlesWithBands(30)

	for cursor := 0; cursor < len(articles); cursor++ {
		for _, height := range []int{3, 5, 10, 20} {
			offset := calcScrollOffset(articles, cursor, height, true)
			if offset > cursor {
				t.Fatalf("cursor=%d height=%d: offset %d past cursor", cursor, height, offset)
			}
			lines := visibleLineCount(articles, offset, cursor, true)
			if lines > height && offset != cursor {
				t.Errorf("cursor=%d height=%d: %d lines from offset %d overflow",
					cursor, height, lines, offset)
			}
		}
	}
}

func TestVisibleLineCount(t *testing.T) {
	articles := makeArticlesWithBands(20)

	tests := []struct {
		name      string
		from, to  int
		showBands bool
		want      int
	}{
		{"no bands", 0, 9, false, 10},
		{"first band only", 0, 4, true, 6},
		{"crosses one boundary", 0, 5, true, 8},
		{"all three bands", 0, 19, true, 23},
		{"mid-band start has no header", 2, 4, true, 3},
		{"starting on a boundary adds header", 5, 6, true, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := visibleLineCount(articles, tt.from, tt.to, tt.showBands)
			if got != tt.want {
				t.Errorf("visibleLineCount(%d, %d) = %d, want %d", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestTimeBand(t *testing.T) {
	now := time.Now()
	tests := []struct {
		age  time.Duration
		want string
	}{
		{5 * time.Minute, "Past Hour"},
		{3 * time.Hour, "Today"},
		{30 * time.Hour, "Yesterday"},
		{4 * 24 * time.Hour, "This Week"},
		{30 * 24 * time.Hour, "Older"},
	}
	for _, tt := range tests {
		if got := TimeBand(now.Add(-tt.age)); got != tt.want {
			t.Errorf("TimeBand(-%v) = %q, want %q", tt.age, got, tt.want)
		}
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world", 6, "hello…"},
		{"héllo wörld", 4, "hél…"},
		{"abc", 1, "…"},
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		if got := truncateRunes(tt.in, tt.n); got != tt.want {
			t.Errorf("truncateRunes(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestRenderStreamEmpty(t *testing.T) {
	out := RenderStream(nil, nil, 0, 80, 10, true)
	if !strings.Contains(out, "No articles match") {
		t.Errorf("empty stream should explain itself, got %q", out)
	}
}

func TestRenderStreamRespectsHeight(t *testing.T) {
	articles := makeArticlesWithBands(40)
	out := RenderStream(articles, nil, 25, 80, 8, true)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) > 8 {
		t.Errorf("rendered %d lines, want at most 8", len(lines))
	}
}

func TestRenderStreamHidesBandsDuringSearch(t *testing.T) {
	articles := makeArticlesWithBands(20)

	with := RenderStream(articles, nil, 0, 80, 30, true)
	without := RenderStream(articles, nil, 0, 80, 30, false)

	if !strings.Contains(with, "Past Hour") {
		t.Error("band header missing with bands on")
	}
	if strings.Contains(without, "Past Hour") {
		t.Error("band header shown with bands off")
	}
}
