package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/watchfloor/internal/model"
)

// Palette. ANSI 256 codes so the UI degrades sanely on basic terminals.
var (
	inkBright = lipgloss.Color("255")
	inkBody   = lipgloss.Color("252")
	inkDim    = lipgloss.Color("244")
	inkFaint  = lipgloss.Color("240")
	paneBg    = lipgloss.Color("235")
	barBg     = lipgloss.Color("237")

	accent  = lipgloss.Color("39")  // cyan
	alert   = lipgloss.Color("203") // red
	caution = lipgloss.Color("221") // amber
	calm    = lipgloss.Color("114") // green
	triage  = lipgloss.Color("141") // violet
)

func fg(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

// Feed rows.
var (
	SelectedItem   = fg(inkBright).Background(lipgloss.Color("24")).Bold(true).Padding(0, 1)
	NormalItem     = fg(inkBright).Bold(true).Padding(0, 1)
	ReadItem       = fg(inkDim).Padding(0, 1)
	TimeBandHeader = fg(accent).Bold(true).Underline(true).Padding(0, 1)
	SourceBadge    = fg(accent).Background(paneBg).Padding(0, 1).MarginRight(1)
	PriorityMarker = fg(alert).Bold(true)
	SavedMarker    = fg(caution)
	MetaItem       = fg(inkFaint)
)

// Footer bars and notices.
var (
	StatusBar      = fg(inkBright).Background(barBg).Padding(0, 1)
	StatusBarKey   = fg(accent).Bold(true)
	StatusBarText  = fg(inkDim)
	ErrorStyle     = fg(alert).Bold(true).Padding(0, 1)
	WarnStyle      = fg(caution).Padding(0, 1)
	InfoStyle      = fg(calm).Padding(0, 1)
	HelpStyle      = fg(inkFaint).Padding(1, 2)
	FilterBar      = fg(inkBright).Background(barBg).Padding(0, 1)
	FilterBarCount = fg(inkDim)
)

// Detail pane.
var (
	DetailPanel  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(inkFaint).Padding(0, 1)
	DetailTitle  = fg(inkBright).Bold(true)
	DetailHeader = fg(accent).Bold(true)
	DetailText   = fg(inkBody)
)

// Event overlay. DebugPanel's border and vertical padding take
// debugPanelChrome lines.
var (
	DebugPanel       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(accent).Padding(1, 2)
	DebugHeaderStyle = fg(accent).Bold(true)
)

// StatusStyle colors a triage status glyph.
func StatusStyle(s model.Status) lipgloss.Style {
	switch s {
	case model.StatusInAnalysis:
		return fg(triage)
	case model.StatusResolved:
		return fg(calm)
	}
	return fg(caution)
}
