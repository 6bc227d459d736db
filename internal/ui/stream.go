package ui

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/watchfloor/internal/filter"
	"github.com/abelbrown/watchfloor/internal/model"
)

// TimeBand returns a display string for grouping articles by age.
func TimeBand(t time.Time) string {
	age := time.Since(t)
	switch {
	case age < time.Hour:
		return "Past Hour"
	case age < 24*time.Hour:
		return "Today"
	case age < 48*time.Hour:
		return "Yesterday"
	case age < 7*24*time.Hour:
		return "This Week"
	default:
		return "Older"
	}
}

// RenderStream renders the article list with time bands.
// When showBands is false (e.g. during a search), band headers are suppressed.
func RenderStream(articles []model.Article, saved map[string]bool, cursor int, width, height int, showBands bool) string {
	if len(articles) == 0 {
		return HelpStyle.Render("No articles match. Press 'r' to refresh or change the filter.")
	}

	var b strings.Builder
	currentBand := ""
	renderedLines := 0

	availableHeight := height
	if availableHeight < 1 {
		availableHeight = 1
	}

	scrollOffset := calcScrollOffset(articles, cursor, availableHeight, showBands)

	for i, a := range articles {
		if renderedLines >= availableHeight {
			break
		}

		// Track band state for skipped rows too so headers render correctly
		// once the visible region is reached.
		if showBands {
			band := TimeBand(a.DisplayTime())
			if band != currentBand {
				currentBand = band
				if i >= scrollOffset {
					b.WriteString(TimeBandHeader.Render(band))
					b.WriteString("\n")
					renderedLines++
				}
			}
		}

		if i < scrollOffset {
			continue
		}
		if renderedLines >= availableHeight {
			break
		}

		b.WriteString(renderArticleLine(a, saved[a.ID], i == cursor, width))
		b.WriteString("\n")
		renderedLines++
	}

	return b.String()
}

// calcScrollOffset finds the smallest index such that every line from that
// index through the cursor, band headers included, fits in availableHeight.
func calcScrollOffset(articles []model.Article, cursor, availableHeight int, showBands bool) int {
	if len(articles) == 0 || cursor < 0 {
		return 0
	}
	if cursor >= len(articles) {
		cursor = len(articles) - 1
	}

	offset := 0
	if cursor >= availableHeight {
		offset = cursor - availableHeight + 1
	}
	if !showBands {
		return offset
	}

	for offset <= cursor {
		if visibleLineCount(articles, offset, cursor, showBands) <= availableHeight {
			return offset
		}
		offset++
	}
	return cursor
}

// visibleLineCount counts the lines articles[from..to] render to, including
// band headers.
func visibleLineCount(articles []model.Article, from, to int, showBands bool) int {
	lines := 0
	currentBand := ""
	if from > 0 {
		currentBand = TimeBand(articles[from-1].DisplayTime())
	}
	for i := from; i <= to && i < len(articles); i++ {
		if showBands {
			band := TimeBand(articles[i].DisplayTime())
			if band != currentBand {
				currentBand = band
				lines++
			}
		}
		lines++
	}
	return lines
}

// markers is the fixed-width prefix: priority, saved, status.
func markers(a model.Article, saved bool) string {
	p, s := " ", " "
	if a.HighPriority {
		p = "!"
	}
	if saved {
		s = "★"
	}
	return p + s + statusGlyph(a.Status)
}

func statusGlyph(s model.Status) string {
	switch s {
	case model.StatusInAnalysis:
		return "◐"
	case model.StatusResolved:
		return "✓"
	}
	return "•"
}

// renderArticleLine renders one row.
func renderArticleLine(a model.Article, saved, selected bool, width int) string {
	badge := SourceBadge.Render(truncateRunes(sourceLabel(a), 18))
	badgeWidth := lipgloss.Width(badge)

	age := formatAgeShort(a.DisplayTime())
	mark := markers(a, saved)

	titleWidth := width - badgeWidth - utf8.RuneCountInString(mark) - len(age) - 6
	if titleWidth < 20 {
		titleWidth = 20
	}
	title := truncateRunes(a.Title, titleWidth)

	if selected {
		plain := fmt.Sprintf("%s %s %s", mark, title, age)
		return SelectedItem.Width(width).Render(truncateRunes(sourceLabel(a), 18) + " " + plain)
	}

	titleStyle := NormalItem
	if !a.Unread() {
		titleStyle = ReadItem
	}

	var markOut string
	if a.HighPriority {
		markOut = PriorityMarker.Render("!")
	} else {
		markOut = " "
	}
	if saved {
		markOut += SavedMarker.Render("★")
	} else {
		markOut += " "
	}
	markOut += StatusStyle(a.Status).Render(statusGlyph(a.Status))

	return badge + markOut + titleStyle.Render(title) + MetaItem.Render(age)
}

func sourceLabel(a model.Article) string {
	if a.SourceName != "" {
		return a.SourceName
	}
	if a.SourceID != "" {
		return a.SourceID
	}
	return "unknown"
}

func formatAgeShort(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	age := time.Since(t)
	switch {
	case age < time.Minute:
		return "now"
	case age < time.Hour:
		return fmt.Sprintf("%dm", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd", int(age.Hours()/24))
	}
}

// truncateRunes shortens s to at most n runes, marking the cut with "…".
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	if n == 1 {
		return "…"
	}
	return string(runes[:n-1]) + "…"
}

// criteriaSummary is the compact filter description in the status bar.
func criteriaSummary(c filter.Criteria, sort filter.SortMode, sources []model.Source) string {
	parts := []string{string(c.TimeRange), scopeLabel(c.Scope, sources), "sort:" + string(sort)}
	if c.HighPriorityOnly {
		parts = append(parts, "priority")
	}
	if c.UnreadOnly {
		parts = append(parts, "unread")
	}
	return strings.Join(parts, " · ")
}

func scopeLabel(s filter.Scope, sources []model.Source) string {
	if s.Kind != filter.ScopeSource {
		return s.String()
	}
	for _, src := range sources {
		if src.ID == s.SourceID && src.Name != "" {
			return src.Name
		}
	}
	return s.SourceID
}

// RenderStatusBar renders the bottom status bar with position, filter and
// refresh state, and key hints.
func RenderStatusBar(cursor, total int, snap Snapshot, width int, loading bool, spin string) string {
	var left string
	switch {
	case loading:
		left = fmt.Sprintf(" %s refreshing ", spin)
	case total == 0:
		left = " 0/0 "
	default:
		left = fmt.Sprintf(" %d/%d ", cursor+1, total)
	}
	left += StatusBarText.Render(criteriaSummary(snap.Criteria, snap.Sort, snap.Sources))

	auto := "auto:off"
	if snap.AutoRefresh {
		auto = "auto:" + snap.Interval.String()
	}
	left += StatusBarText.Render(" · " + auto)

	keys := []string{
		StatusBarKey.Render("j/k") + StatusBarText.Render(":nav"),
		StatusBarKey.Render("enter") + StatusBarText.Render(":open"),
		StatusBarKey.Render("/") + StatusBarText.Render(":search"),
		StatusBarKey.Render("r") + StatusBarText.Render(":refresh"),
		StatusBarKey.Render("?") + StatusBarText.Render(":keys"),
		StatusBarKey.Render("q") + StatusBarText.Render(":quit"),
	}
	keyHints := strings.Join(keys, " ")

	padding := width - lipgloss.Width(left) - lipgloss.Width(keyHints) - 2
	if padding < 0 {
		padding = 0
	}
	return StatusBar.Width(width).Render(left + strings.Repeat(" ", padding) + keyHints)
}

// RenderFilterBar renders the search input bar.
func RenderFilterBar(input string, filtered int, width int) string {
	count := FilterBarCount.Render(fmt.Sprintf(" %d match", filtered))
	padding := width - lipgloss.Width(input) - lipgloss.Width(count) - 2
	if padding < 0 {
		padding = 0
	}
	return FilterBar.Width(width).Render(input + count + strings.Repeat(" ", padding))
}
