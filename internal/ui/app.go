package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/watchfloor/internal/filter"
	"github.com/abelbrown/watchfloor/internal/model"
	"github.com/abelbrown/watchfloor/internal/otel"
	"github.com/abelbrown/watchfloor/internal/session"
)

// AppConfig holds the command functions the App drives. Any of them may be
// nil, in which case the corresponding key does nothing.
type AppConfig struct {
	LoadFeed       func() tea.Cmd
	Refresh        func() tea.Cmd
	Select         func(id string) tea.Cmd
	ClearSelection func() tea.Cmd
	Regenerate     func(id string) tea.Cmd
	ToggleSaved    func(id string) tea.Cmd
	SetStatus      func(id string, status model.Status) tea.Cmd
	SetCriteria    func(c filter.Criteria) tea.Cmd
	SetSort        func(m filter.SortMode) tea.Cmd
	SetAutoRefresh func(on bool) tea.Cmd
	LoadEvents     func() tea.Cmd
}

// App is the root Bubble Tea model.
// IMPORTANT: App does NOT hold the session. It receives snapshots via
// messages and acts through AppConfig commands.
type App struct {
	cfg  AppConfig
	keys keyMap

	snap   Snapshot
	cursor int

	err    error
	notice *session.Notice

	width  int
	height int
	ready  bool

	loading     bool // manual refresh in flight
	loadingFeed bool // a LoadFeed command is outstanding
	feedDirty   bool // FeedChanged arrived while loading

	searching bool
	search    textinput.Model
	spinner   spinner.Model
	help      help.Model
	showHelp  bool

	showEvents bool
	events     []otel.Event
}

// NewApp creates an App with the given command functions.
func NewApp(cfg AppConfig) App {
	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "search title and body"
	ti.CharLimit = 200

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return App{
		cfg:     cfg,
		keys:    defaultKeys(),
		search:  ti,
		spinner: sp,
		help:    help.New(),
	}
}

// Init loads the feed, starts the first refresh and the spinner.
func (a App) Init() tea.Cmd {
	cmds := []tea.Cmd{a.spinner.Tick}
	if a.cfg.LoadFeed != nil {
		cmds = append(cmds, a.cfg.LoadFeed())
	}
	if a.cfg.Refresh != nil {
		cmds = append(cmds, a.cfg.Refresh())
	}
	return tea.Batch(cmds...)
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if a.searching {
			return a.handleSearchKey(msg)
		}
		return a.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		a.ready = true
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case FeedChanged:
		return a, a.reload()

	case FeedLoaded:
		a.loadingFeed = false
		a.applySnapshot(msg.Snapshot)
		if a.feedDirty {
			a.feedDirty = false
			return a, a.reload()
		}
		return a, nil

	case RefreshDone:
		// Failures arrive as notices.
		a.loading = false
		return a, nil

	case ActionDone:
		if msg.Err != nil {
			a.err = msg.Err
		}
		return a, a.reload()

	case NoticeMsg:
		n := msg.Notice
		a.notice = &n
		return a, nil

	case EventsLoaded:
		if msg.Err != nil {
			a.err = msg.Err
			return a, nil
		}
		a.events = msg.Events
		return a, nil
	}

	return a, nil
}

// reload issues LoadFeed unless one is already outstanding, in which case
// another load follows it.
func (a *App) reload() tea.Cmd {
	if a.cfg.LoadFeed == nil {
		return nil
	}
	if a.loadingFeed {
		a.feedDirty = true
		return nil
	}
	a.loadingFeed = true
	return a.cfg.LoadFeed()
}

// applySnapshot swaps in a new snapshot, keeping the cursor on the same
// article when it is still visible.
func (a *App) applySnapshot(s Snapshot) {
	prev := a.currentID()
	a.snap = s
	if prev != "" {
		for i, art := range s.Articles {
			if art.ID == prev {
				a.cursor = i
				return
			}
		}
	}
	if a.cursor >= len(s.Articles) {
		a.cursor = len(s.Articles) - 1
	}
	if a.cursor < 0 {
		a.cursor = 0
	}
}

func (a App) currentID() string {
	if a.cursor >= 0 && a.cursor < len(a.snap.Articles) {
		return a.snap.Articles[a.cursor].ID
	}
	return ""
}

// targetID is the article actions apply to: the selected one if the
// detail pane is open, else the one under the cursor.
func (a App) targetID() string {
	if a.snap.Detail != nil {
		return a.snap.Detail.ID
	}
	return a.currentID()
}

func (a App) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		a.searching = false
		a.search.Blur()
		crit := a.snap.Criteria
		crit.Search = strings.TrimSpace(a.search.Value())
		return a, a.setCriteria(crit)
	case tea.KeyEsc:
		a.searching = false
		a.search.Blur()
		a.search.SetValue("")
		crit := a.snap.Criteria
		crit.Search = ""
		return a, a.setCriteria(crit)
	}
	var cmd tea.Cmd
	a.search, cmd = a.search.Update(msg)
	return a, cmd
}

// handleKeyMsg processes keyboard input.
func (a App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Any key dismisses the error and notice bars.
	a.err = nil
	a.notice = nil

	if a.showEvents {
		if key.Matches(msg, a.keys.Events, a.keys.Back, a.keys.Quit) {
			a.showEvents = false
		}
		return a, nil
	}

	k := a.keys
	switch {
	case key.Matches(msg, k.Quit):
		return a, tea.Quit

	case key.Matches(msg, k.Down):
		if a.cursor < len(a.snap.Articles)-1 {
			a.cursor++
		}
	case key.Matches(msg, k.Up):
		if a.cursor > 0 {
			a.cursor--
		}
	case key.Matches(msg, k.Top):
		a.cursor = 0
	case key.Matches(msg, k.Bottom):
		if len(a.snap.Articles) > 0 {
			a.cursor = len(a.snap.Articles) - 1
		}

	case key.Matches(msg, k.Open):
		if id := a.currentID(); id != "" && a.cfg.Select != nil {
			return a, a.cfg.Select(id)
		}
	case key.Matches(msg, k.Back):
		if a.snap.Selected != "" && a.cfg.ClearSelection != nil {
			return a, a.cfg.ClearSelection()
		}
	case key.Matches(msg, k.Regenerate):
		if id := a.targetID(); id != "" && a.cfg.Regenerate != nil {
			return a, a.cfg.Regenerate(id)
		}

	case key.Matches(msg, k.Search):
		a.searching = true
		a.search.SetValue(a.snap.Criteria.Search)
		a.search.CursorEnd()
		return a, a.search.Focus()

	case key.Matches(msg, k.Save):
		if id := a.targetID(); id != "" && a.cfg.ToggleSaved != nil {
			return a, a.cfg.ToggleSaved(id)
		}

	case key.Matches(msg, k.PriorityOnly):
		crit := a.snap.Criteria
		crit.HighPriorityOnly = !crit.HighPriorityOnly
		return a, a.setCriteria(crit)
	case key.Matches(msg, k.UnreadOnly):
		crit := a.snap.Criteria
		crit.UnreadOnly = !crit.UnreadOnly
		return a, a.setCriteria(crit)
	case key.Matches(msg, k.TimeRange):
		crit := a.snap.Criteria
		crit.TimeRange = crit.TimeRange.Next()
		return a, a.setCriteria(crit)
	case key.Matches(msg, k.Scope):
		crit := a.snap.Criteria
		crit.Scope = nextScope(crit.Scope, a.snap.Sources)
		return a, a.setCriteria(crit)
	case key.Matches(msg, k.SortMode):
		if a.cfg.SetSort != nil {
			return a, a.cfg.SetSort(a.snap.Sort.Next())
		}

	case key.Matches(msg, k.StatusNew):
		return a, a.setStatus(model.StatusNew)
	case key.Matches(msg, k.StatusAnalysis):
		return a, a.setStatus(model.StatusInAnalysis)
	case key.Matches(msg, k.StatusResolved):
		return a, a.setStatus(model.StatusResolved)

	case key.Matches(msg, k.AutoRefresh):
		if a.cfg.SetAutoRefresh != nil {
			return a, a.cfg.SetAutoRefresh(!a.snap.AutoRefresh)
		}
	case key.Matches(msg, k.Refresh):
		if a.cfg.Refresh != nil && !a.loading {
			a.loading = true
			return a, a.cfg.Refresh()
		}

	case key.Matches(msg, k.Events):
		if a.cfg.LoadEvents != nil {
			a.showEvents = true
			return a, a.cfg.LoadEvents()
		}
	case key.Matches(msg, k.Help):
		a.showHelp = !a.showHelp
	}

	return a, nil
}

func (a App) setCriteria(c filter.Criteria) tea.Cmd {
	if a.cfg.SetCriteria == nil {
		return nil
	}
	return a.cfg.SetCriteria(c)
}

func (a App) setStatus(s model.Status) tea.Cmd {
	id := a.targetID()
	if id == "" || a.cfg.SetStatus == nil {
		return nil
	}
	return a.cfg.SetStatus(id, s)
}

// nextScope cycles all → high priority → saved → each source → all.
func nextScope(cur filter.Scope, sources []model.Source) filter.Scope {
	switch cur.Kind {
	case filter.ScopeAll:
		return filter.Scope{Kind: filter.ScopeHighPriority}
	case filter.ScopeHighPriority:
		return filter.Scope{Kind: filter.ScopeSaved}
	case filter.ScopeSaved:
		if len(sources) > 0 {
			return filter.SourceScope(sources[0].ID)
		}
	case filter.ScopeSource:
		for i, src := range sources {
			if src.ID == cur.SourceID && i+1 < len(sources) {
				return filter.SourceScope(sources[i+1].ID)
			}
		}
	}
	return filter.Scope{Kind: filter.ScopeAll}
}

// View renders the UI.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}

	if a.showEvents {
		return lipgloss.JoinVertical(lipgloss.Left,
			debugOverlay(a.events, a.width, a.height-1),
			debugStatusBar(a.width),
		)
	}

	var bars []string
	if a.err != nil {
		bars = append(bars, ErrorStyle.Width(a.width).Render("Error: "+a.err.Error()))
	}
	if a.notice != nil {
		bars = append(bars, renderNotice(*a.notice, a.width))
	}
	if a.searching {
		bars = append(bars, RenderFilterBar(a.search.View(), len(a.snap.Articles), a.width))
	}
	if a.showHelp {
		bars = append(bars, a.help.FullHelpView(a.keys.FullHelp()))
	}
	bars = append(bars, RenderStatusBar(a.cursor, len(a.snap.Articles), a.snap, a.width, a.loading, a.spinner.View()))
	footer := strings.Join(bars, "\n")

	contentHeight := a.height - lipgloss.Height(footer)
	if contentHeight < 1 {
		contentHeight = 1
	}

	showBands := a.snap.Criteria.Search == "" && a.snap.Sort == filter.SortDate

	if a.snap.Detail == nil {
		list := RenderStream(a.snap.Articles, a.snap.Saved, a.cursor, a.width, contentHeight, showBands)
		return lipgloss.NewStyle().Height(contentHeight).Render(list) + "\n" + footer
	}

	listHeight := contentHeight / 3
	if listHeight < 3 {
		listHeight = 3
	}
	detailHeight := contentHeight - listHeight
	list := RenderStream(a.snap.Articles, a.snap.Saved, a.cursor, a.width, listHeight, showBands)
	detail := RenderDetail(*a.snap.Detail, a.snap.Summary, a.snap.Intel,
		a.snap.Saved[a.snap.Detail.ID], a.width, detailHeight-2, a.spinner.View())

	return lipgloss.NewStyle().Height(listHeight).Render(list) + "\n" +
		lipgloss.NewStyle().Height(detailHeight).Render(detail) + "\n" + footer
}

func renderNotice(n session.Notice, width int) string {
	switch n.Level {
	case session.NoticeError:
		return ErrorStyle.Width(width).Render(n.Message)
	case session.NoticeWarn:
		return WarnStyle.Width(width).Render(n.Message)
	}
	return InfoStyle.Width(width).Render(n.Message)
}

// Cursor returns the current cursor position (for testing).
func (a App) Cursor() int {
	return a.cursor
}

// Articles returns the visible articles (for testing).
func (a App) Articles() []model.Article {
	return a.snap.Articles
}
