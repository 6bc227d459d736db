package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/abelbrown/watchfloor/internal/otel"
)

// debugPanelChrome is the height DebugPanel adds: two border lines and two
// padding lines.
const debugPanelChrome = 4

const (
	overlayRecent   = 20
	overlayMaxWidth = 88
)

// eventTally aggregates an event slice for the overlay header.
type eventTally struct {
	count    map[otel.EventKind]int
	enrichMs float64 // summed duration of completed enrichments
	fetchMs  float64
}

func tallyEvents(events []otel.Event) eventTally {
	t := eventTally{count: make(map[otel.EventKind]int)}
	for _, e := range events {
		t.count[e.Kind]++
		switch e.Kind {
		case otel.KindEnrichComplete:
			t.enrichMs += float64(e.Dur) / float64(time.Millisecond)
		case otel.KindFetchComplete, otel.KindFetchPartial:
			t.fetchMs += float64(e.Dur) / float64(time.Millisecond)
		}
	}
	return t
}

func (t eventTally) avg(sum float64, kinds ...otel.EventKind) string {
	n := 0
	for _, k := range kinds {
		n += t.count[k]
	}
	if n == 0 || sum == 0 {
		return ""
	}
	return fmt.Sprintf(", avg %s", formatAge(time.Duration(sum/float64(n)*float64(time.Millisecond))))
}

// debugOverlay renders event counts and the tail of the event log.
func debugOverlay(events []otel.Event, width, height int) string {
	t := tallyEvents(events)
	c := t.count

	lines := []string{
		DebugHeaderStyle.Render("Pipeline Stats"),
		fmt.Sprintf("  Fetches:    %d complete, %d partial, %d errors%s",
			c[otel.KindFetchComplete], c[otel.KindFetchPartial], c[otel.KindFetchError],
			t.avg(t.fetchMs, otel.KindFetchComplete, otel.KindFetchPartial)),
		fmt.Sprintf("  Enrich:     %d started, %d complete, %d cached, %d errors%s",
			c[otel.KindEnrichStart], c[otel.KindEnrichComplete], c[otel.KindEnrichCached], c[otel.KindEnrichError],
			t.avg(t.enrichMs, otel.KindEnrichComplete)),
		fmt.Sprintf("  Refresh:    %d ticks, %d errors", c[otel.KindRefreshTick], c[otel.KindRefreshError]),
		fmt.Sprintf("  Status:     %d updates, %d errors", c[otel.KindStatusUpdate], c[otel.KindStatusError]),
		"",
		DebugHeaderStyle.Render("Recent Events"),
	}

	tail := events
	if len(tail) > overlayRecent {
		tail = tail[len(tail)-overlayRecent:]
	}
	if len(tail) == 0 {
		lines = append(lines, "  (no events yet)")
	}
	for _, e := range tail {
		lines = append(lines, eventLine(e))
	}

	if limit := max(height-debugPanelChrome, 1); len(lines) > limit {
		lines = lines[:limit]
	}
	panelWidth := min(overlayMaxWidth, width-4)
	panelWidth = max(panelWidth, 20)

	return DebugPanel.Width(panelWidth).Render(strings.Join(lines, "\n"))
}

func eventLine(e otel.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  %6s  %-18s", formatAge(time.Since(e.Time)), e.Kind)
	if e.ArticleID != "" {
		b.WriteString("  " + truncateRunes(e.ArticleID, 12))
	}
	if e.Msg != "" {
		b.WriteString("  " + truncateRunes(e.Msg, 40))
	}
	if e.Err != "" {
		b.WriteString("  ERR:" + truncateRunes(e.Err, 30))
	}
	return b.String()
}

// formatAge renders d compactly. Negative durations (clock skew) show as
// "0ms".
func formatAge(d time.Duration) string {
	switch {
	case d < 0:
		return "0ms"
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
	return fmt.Sprintf("%.0fh", d.Hours())
}

// debugStatusBar is the footer shown under the overlay.
func debugStatusBar(width int) string {
	return StatusBar.Width(width).Render("  [EVENTS]  " + StatusBarKey.Render("D") + StatusBarText.Render(":close"))
}
