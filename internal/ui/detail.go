package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/watchfloor/internal/enrich"
	"github.com/abelbrown/watchfloor/internal/model"
)

// maxIntelRows caps how many indicators and techniques are listed.
const maxIntelRows = 8

// RenderDetail renders the selected article and its enrichment state.
// spin is the current spinner frame shown while a request is pending.
func RenderDetail(a model.Article, summary, intel enrich.Entry, saved bool, width, height int, spin string) string {
	inner := width - 4 // border + padding
	if inner < 20 {
		inner = 20
	}
	wrap := lipgloss.NewStyle().Width(inner)

	var lines []string
	lines = append(lines, DetailTitle.Render(wrap.Render(a.Title)))

	meta := []string{sourceLabel(a), string(statusOrNew(a.Status))}
	if t := a.DisplayTime(); !t.IsZero() {
		meta = append(meta, t.Local().Format("2006-01-02 15:04"))
	}
	if a.HighPriority {
		meta = append(meta, "HIGH PRIORITY")
	}
	if saved {
		meta = append(meta, "saved")
	}
	lines = append(lines, MetaItem.Render(strings.Join(meta, " · ")))
	if a.URL != "" {
		lines = append(lines, MetaItem.Render(truncateRunes(a.URL, inner)))
	}
	lines = append(lines, "")

	lines = append(lines, DetailHeader.Render("Summary")+" "+entryBadge(summary, spin))
	switch {
	case a.ExecutiveSummary != "" || a.TechnicalSummary != "":
		if a.ExecutiveSummary != "" {
			lines = append(lines, DetailText.Render(wrap.Render(a.ExecutiveSummary)))
		}
		if a.TechnicalSummary != "" {
			lines = append(lines, "", MetaItem.Render("Technical"), DetailText.Render(wrap.Render(a.TechnicalSummary)))
		}
	case a.Summary != "":
		lines = append(lines, DetailText.Render(wrap.Render(a.Summary)))
	}
	lines = append(lines, "")

	lines = append(lines, DetailHeader.Render("Intelligence")+" "+entryBadge(intel, spin))
	if a.Intelligence != nil {
		lines = append(lines, renderIntel(*a.Intelligence, inner)...)
	}
	if a.EnrichmentModel != "" {
		lines = append(lines, "", MetaItem.Render("model: "+a.EnrichmentModel))
	}

	if height > 2 && len(lines) > height-2 {
		lines = lines[:height-2]
	}
	return DetailPanel.Width(width - 2).Render(strings.Join(lines, "\n"))
}

func statusOrNew(s model.Status) model.Status {
	if s == "" {
		return model.StatusNew
	}
	return s
}

// entryBadge describes an enrichment state in a few characters.
func entryBadge(e enrich.Entry, spin string) string {
	switch e.State {
	case enrich.StatePending:
		return MetaItem.Render(spin + " working")
	case enrich.StateFailed:
		if e.Err != nil {
			return ErrorStyle.Render(truncateRunes(e.Err.Error(), 60))
		}
		return ErrorStyle.Render("failed")
	case enrich.StateDone:
		if !e.CompletedAt.IsZero() {
			return MetaItem.Render("✓ " + e.CompletedAt.Local().Format("15:04"))
		}
		return MetaItem.Render("✓")
	}
	return MetaItem.Render("(R to generate)")
}

func renderIntel(in model.Intelligence, width int) []string {
	if in.Total == 0 {
		return []string{MetaItem.Render("nothing extracted")}
	}
	var lines []string
	section := func(label string, items []model.IntelItem) {
		if len(items) == 0 {
			return
		}
		lines = append(lines, MetaItem.Render(fmt.Sprintf("%s (%d)", label, len(items))))
		for i, it := range items {
			if i == maxIntelRows {
				lines = append(lines, MetaItem.Render(fmt.Sprintf("  … %d more", len(items)-maxIntelRows)))
				break
			}
			row := fmt.Sprintf("  %-10s %s", it.Type, it.Value)
			if it.Confidence != nil {
				row += fmt.Sprintf(" (%.0f%%)", *it.Confidence*100)
			}
			lines = append(lines, DetailText.Render(truncateRunes(row, width)))
		}
	}
	section("Indicators", in.Indicators)
	section("Techniques", in.Techniques)
	return lines
}
