package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds every binding. It implements help.KeyMap.
type keyMap struct {
	Up, Down, Top, Bottom key.Binding
	Open, Back            key.Binding
	Regenerate            key.Binding
	Search                key.Binding
	Save                  key.Binding
	PriorityOnly          key.Binding
	UnreadOnly            key.Binding
	TimeRange             key.Binding
	SortMode              key.Binding
	Scope                 key.Binding
	StatusNew             key.Binding
	StatusAnalysis        key.Binding
	StatusResolved        key.Binding
	AutoRefresh           key.Binding
	Refresh               key.Binding
	Events                key.Binding
	Help                  key.Binding
	Quit                  key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Up:             key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		Down:           key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		Top:            key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
		Bottom:         key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "bottom")),
		Open:           key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open + enrich")),
		Back:           key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close detail")),
		Regenerate:     key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "regenerate enrichment")),
		Search:         key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Save:           key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save")),
		PriorityOnly:   key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "priority only")),
		UnreadOnly:     key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "unread only")),
		TimeRange:      key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "time range")),
		SortMode:       key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "sort mode")),
		Scope:          key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "scope")),
		StatusNew:      key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "mark new")),
		StatusAnalysis: key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "in analysis")),
		StatusResolved: key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "resolved")),
		AutoRefresh:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "auto-refresh")),
		Refresh:        key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Events:         key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "event log")),
		Help:           key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "keys")),
		Quit:           key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Open, k.Search, k.Refresh, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Top, k.Bottom, k.Open, k.Back},
		{k.Search, k.TimeRange, k.Scope, k.SortMode, k.PriorityOnly, k.UnreadOnly},
		{k.Regenerate, k.Save, k.StatusNew, k.StatusAnalysis, k.StatusResolved},
		{k.Refresh, k.AutoRefresh, k.Events, k.Help, k.Quit},
	}
}
