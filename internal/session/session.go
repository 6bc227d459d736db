// Package session wires the core together for one user session.
//
// A Session owns the article store, the enrichment cache and the refresh
// scheduler. It is constructed explicitly by New and torn down by Close;
// nothing here is a package-level global. Presentation code reads the
// visible feed through Visible and reacts to OnChange and OnNotice.
package session

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/watchfloor/internal/articles"
	"github.com/abelbrown/watchfloor/internal/config"
	"github.com/abelbrown/watchfloor/internal/enrich"
	"github.com/abelbrown/watchfloor/internal/fetch"
	"github.com/abelbrown/watchfloor/internal/filter"
	"github.com/abelbrown/watchfloor/internal/logging"
	"github.com/abelbrown/watchfloor/internal/metrics"
	"github.com/abelbrown/watchfloor/internal/model"
	"github.com/abelbrown/watchfloor/internal/otel"
	"github.com/abelbrown/watchfloor/internal/refresh"
)

// Preference keys.
const (
	prefCriteria    = "filter.criteria"
	prefSort        = "filter.sort"
	prefAutoRefresh = "refresh.auto"
	prefInterval    = "refresh.interval"
)

// StatusUpdater persists a triage transition. The api client does it on the
// server; the sqlite store does it locally in direct RSS mode.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, articleID string, status model.Status) error
}

// Prefs is the local persistence collaborator (see store.Store).
type Prefs interface {
	ToggleSaved(articleID string) (bool, error)
	SavedIDs() (map[string]bool, error)
	GetJSON(key string, v any) (bool, error)
	SetJSON(key string, v any) error
	GetBool(key string, def bool) bool
	SetBool(key string, v bool) error
	GetDuration(key string, def time.Duration) time.Duration
	SetDuration(key string, d time.Duration) error
}

// Options configures a Session.
type Options struct {
	Fetcher  fetch.Fetcher
	Enricher enrich.Service // nil means enrichment is unconfigured
	Status   StatusUpdater
	Prefs    Prefs
	Events   *otel.Logger

	// Defaults used until the user changes them in-app; persisted
	// preferences take precedence.
	RefreshInterval time.Duration
	AutoRefresh     bool

	// AutoTriage moves a NEW article to IN_ANALYSIS when it is selected.
	AutoTriage bool

	// Extract overrides the extraction flags. Nil keeps the cache default.
	Extract *enrich.ExtractOptions

	// Now is the clock used for time-range filtering. Defaults to time.Now.
	Now func() time.Time
}

// Session is the explicitly constructed context for one user session.
// Thread-safety: All methods are safe for concurrent use.
type Session struct {
	fetcher    fetch.Fetcher
	status     StatusUpdater
	prefs      Prefs
	events     *otel.Logger
	autoTriage bool
	now        func() time.Time

	store *articles.Store
	cache *enrich.Cache
	sched *refresh.Scheduler

	mu                 sync.Mutex
	criteria           filter.Criteria
	sortMode           filter.SortMode
	selected           string
	saved              map[string]bool
	sources            []model.Source
	lastRefresh        time.Time
	warnedUnconfigured bool
	changeFns          []func()
	noticeFns          []func(Notice)
}

// DefaultCriteria is the filter of a fresh install.
func DefaultCriteria() filter.Criteria {
	return filter.Criteria{
		TimeRange: filter.Range7d,
		Scope:     filter.Scope{Kind: filter.ScopeAll},
	}
}

// New builds a Session and restores persisted preferences. Nothing is
// fetched and no timer runs until Start and Refresh are called.
func New(opts Options) (*Session, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("session: fetcher is required")
	}
	if opts.Status == nil {
		return nil, errors.New("session: status updater is required")
	}
	if opts.Prefs == nil {
		return nil, errors.New("session: preferences store is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Session{
		fetcher:    opts.Fetcher,
		status:     opts.Status,
		prefs:      opts.Prefs,
		events:     opts.Events,
		autoTriage: opts.AutoTriage,
		now:        now,
		store:      articles.NewStore(),
		criteria:   DefaultCriteria(),
		sortMode:   filter.SortDate,
		saved:      make(map[string]bool),
	}

	s.cache = enrich.NewCache(opts.Enricher, s.store)
	s.cache.SetEvents(opts.Events)
	if opts.Extract != nil {
		s.cache.SetExtractOptions(*opts.Extract)
	}
	s.store.SetOverlay(s.cache)
	s.store.OnChange(s.changed)
	s.cache.OnChange(func(string, model.EnrichKind, enrich.Entry) { s.changed() })

	s.restorePrefs()

	interval := s.prefs.GetDuration(prefInterval, opts.RefreshInterval)
	if config.ValidateInterval(interval) != nil {
		interval = opts.RefreshInterval
	}
	initial := refresh.Paused
	if s.prefs.GetBool(prefAutoRefresh, opts.AutoRefresh) {
		initial = refresh.Running
	}
	s.sched = refresh.New(s.backgroundRefresh, interval, initial)
	s.sched.SetEvents(opts.Events)

	return s, nil
}

func (s *Session) restorePrefs() {
	var crit filter.Criteria
	if ok, err := s.prefs.GetJSON(prefCriteria, &crit); err != nil {
		logging.Warn("ignoring stored filter", "error", err)
	} else if ok && validCriteria(crit) == nil {
		s.criteria = crit
	}

	var mode filter.SortMode
	if ok, err := s.prefs.GetJSON(prefSort, &mode); err != nil {
		logging.Warn("ignoring stored sort mode", "error", err)
	} else if ok {
		if m, err := filter.ParseSortMode(string(mode)); err == nil {
			s.sortMode = m
		}
	}

	saved, err := s.prefs.SavedIDs()
	if err != nil {
		logging.Warn("could not load saved articles", "error", err)
		return
	}
	s.saved = saved
}

// Start begins auto-refresh (if enabled). It does not fetch; call Refresh
// for the initial load.
func (s *Session) Start(ctx context.Context) error {
	return s.sched.Start(ctx)
}

// Close stops the refresh timer. No scheduled refresh runs after Close
// returns.
func (s *Session) Close() {
	s.sched.Close()
}

// OnChange registers a callback fired after the store, an enrichment state,
// or the filter changes. Callbacks run on the mutating goroutine.
func (s *Session) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changeFns = append(s.changeFns, fn)
}

// OnNotice registers a callback for user-facing notices.
func (s *Session) OnNotice(fn func(Notice)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noticeFns = append(s.noticeFns, fn)
}

func (s *Session) changed() {
	s.mu.Lock()
	fns := s.changeFns
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (s *Session) notify(n Notice) {
	s.mu.Lock()
	fns := s.noticeFns
	s.mu.Unlock()
	for _, fn := range fns {
		fn(n)
	}
}

// Refresh fetches sources and articles now. With visibleErrors, an empty
// result is reported as an informational notice; otherwise failures are
// only logged and counted.
func (s *Session) Refresh(ctx context.Context, visibleErrors bool) error {
	return s.refresh(ctx, "manual", visibleErrors)
}

func (s *Session) backgroundRefresh(ctx context.Context) error {
	return s.refresh(ctx, "auto", false)
}

func (s *Session) refresh(ctx context.Context, trigger string, visibleErrors bool) error {
	start := time.Now()
	res := s.fetcher.Fetch(ctx)

	outcome := "ok"
	switch {
	case res.SourcesErr != nil && res.ArticlesErr != nil:
		outcome = "error"
	case res.Partial():
		outcome = "partial"
	}
	metrics.RecordRefresh(trigger, outcome, time.Since(start).Seconds())

	if visibleErrors && res.Empty() {
		msg := "No sources or articles available yet."
		if err := res.Err(); err != nil {
			msg = "No sources or articles available: " + err.Error()
		}
		s.notify(Notice{Level: NoticeInfo, Message: msg})
	}

	// A total failure keeps the previous collection; a partial one
	// substitutes an empty list for the failed half.
	if outcome == "error" {
		return fmt.Errorf("%s refresh: %w", trigger, res.Err())
	}
	if outcome == "partial" {
		logging.Warn("partial refresh", "trigger", trigger, "error", res.Err())
	}

	s.mu.Lock()
	s.sources = res.Sources
	s.lastRefresh = s.now()
	s.mu.Unlock()

	s.store.ReplaceAll(res.Articles)
	logging.Debug("refresh complete", "trigger", trigger, "articles", len(res.Articles), "sources", len(res.Sources))
	return nil
}

// Visible returns the filtered, ordered feed.
func (s *Session) Visible() []model.Article {
	s.mu.Lock()
	q := filter.Query{
		Criteria: s.criteria,
		Sort:     s.sortMode,
		Selected: s.selected,
		Saved:    maps.Clone(s.saved),
		Now:      s.now(),
	}
	s.mu.Unlock()

	out := filter.Apply(s.store.Snapshot(), q)
	metrics.ArticlesVisible.Set(float64(len(out)))
	return out
}

// Article returns the stored copy of an article.
func (s *Session) Article(id string) (model.Article, bool) {
	return s.store.Get(id)
}

// Sources returns the sources reported by the last successful refresh.
func (s *Session) Sources() []model.Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Source, len(s.sources))
	copy(out, s.sources)
	return out
}

// LastRefresh is the time of the last successful refresh, zero before.
func (s *Session) LastRefresh() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRefresh
}

// Criteria returns the current filter.
func (s *Session) Criteria() filter.Criteria {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.criteria
}

// SetCriteria replaces the filter and persists it.
func (s *Session) SetCriteria(c filter.Criteria) error {
	if err := validCriteria(c); err != nil {
		return err
	}
	s.mu.Lock()
	s.criteria = c
	s.mu.Unlock()

	s.changed()
	if err := s.prefs.SetJSON(prefCriteria, c); err != nil {
		return fmt.Errorf("save filter: %w", err)
	}
	return nil
}

func validCriteria(c filter.Criteria) error {
	if _, err := filter.ParseTimeRange(string(c.TimeRange)); err != nil {
		return err
	}
	if c.Scope.Kind == filter.ScopeSource && c.Scope.SourceID == "" {
		return errors.New("source scope without a source id")
	}
	return nil
}

// SortMode returns the current sort mode.
func (s *Session) SortMode() filter.SortMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortMode
}

// SetSort changes the sort mode and persists it.
func (s *Session) SetSort(m filter.SortMode) error {
	if _, err := filter.ParseSortMode(string(m)); err != nil {
		return err
	}
	s.mu.Lock()
	s.sortMode = m
	s.mu.Unlock()

	s.changed()
	if err := s.prefs.SetJSON(prefSort, m); err != nil {
		return fmt.Errorf("save sort mode: %w", err)
	}
	return nil
}

// Selected returns the selected article id, "" for none.
func (s *Session) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Select makes id the selected article, then requests both enrichment
// kinds concurrently and, with auto-triage, moves a NEW article to
// IN_ANALYSIS. It returns when all of that has settled. Enrichment and
// triage failures are reported as notices, not returned.
func (s *Session) Select(ctx context.Context, id string) error {
	a, ok := s.store.Get(id)
	if !ok {
		return fmt.Errorf("select %s: %w", id, articles.ErrNotFound)
	}
	s.mu.Lock()
	s.selected = id
	s.mu.Unlock()
	s.changed()

	var g errgroup.Group
	for _, kind := range model.EnrichKinds {
		g.Go(func() error {
			if _, err := s.cache.Request(ctx, a, kind, false); err != nil {
				s.reportEnrichError(a.ID, kind, err, true)
			}
			return nil
		})
	}
	if s.autoTriage && a.Status == model.StatusNew {
		g.Go(func() error {
			if err := s.SetStatus(ctx, a.ID, model.StatusInAnalysis); err != nil {
				s.notify(Notice{Level: NoticeError, Message: err.Error()})
			}
			return nil
		})
	}
	return g.Wait()
}

// ClearSelection deselects the current article.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	s.selected = ""
	s.mu.Unlock()
	s.changed()
}

// Enrich requests one enrichment for id. force regenerates a completed
// result; it never interrupts a request already in flight.
func (s *Session) Enrich(ctx context.Context, id string, kind model.EnrichKind, force bool) (enrich.Entry, error) {
	a, ok := s.store.Get(id)
	if !ok {
		return enrich.Entry{}, fmt.Errorf("enrich %s: %w", id, articles.ErrNotFound)
	}
	e, err := s.cache.Request(ctx, a, kind, force)
	if err != nil {
		s.reportEnrichError(id, kind, err, false)
	}
	return e, err
}

// EnrichState reports the enrichment state for (id, kind).
func (s *Session) EnrichState(id string, kind model.EnrichKind) enrich.Entry {
	return s.cache.State(id, kind)
}

// reportEnrichError turns an enrichment failure into a notice. The
// unconfigured warning is shown once per session for automatic requests
// and every time for explicit ones.
func (s *Session) reportEnrichError(id string, kind model.EnrichKind, err error, auto bool) {
	if errors.Is(err, context.Canceled) {
		return
	}
	if errors.Is(err, enrich.ErrUnconfigured) {
		s.mu.Lock()
		warned := s.warnedUnconfigured
		s.warnedUnconfigured = true
		s.mu.Unlock()
		if auto && warned {
			return
		}
		s.notify(Notice{Level: NoticeWarn, Message: "AI enrichment is not configured on the server."})
		return
	}
	logging.Warn("enrichment failed", "article", id, "kind", kind, "error", err)
	s.notify(Notice{Level: NoticeError, Message: fmt.Sprintf("%s failed: %v", kindLabel(kind), err)})
}

func kindLabel(kind model.EnrichKind) string {
	if kind == model.KindIntelligence {
		return "Intelligence extraction"
	}
	return "Summary"
}

// SetStatus persists a triage transition through the status collaborator
// and updates the local copy only when that succeeds.
func (s *Session) SetStatus(ctx context.Context, id string, status model.Status) error {
	if !status.Valid() {
		return fmt.Errorf("set status: invalid status %q", status)
	}
	if _, ok := s.store.Get(id); !ok {
		return fmt.Errorf("set status %s: %w", id, articles.ErrNotFound)
	}

	if err := s.status.UpdateStatus(ctx, id, status); err != nil {
		s.events.Emit(otel.Event{Level: otel.LevelError, Kind: otel.KindStatusError, Comp: "session", ArticleID: id, Err: err.Error()})
		return fmt.Errorf("set status %s: %w", id, err)
	}

	s.store.UpdateOne(id, model.Patch{
		Status: &status,
		Read:   model.Ptr(status != model.StatusNew),
	})
	s.events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindStatusUpdate, Comp: "session", ArticleID: id, Msg: string(status)})
	return nil
}

// IsSaved reports whether id is in the saved set.
func (s *Session) IsSaved(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved[id]
}

// ToggleSaved flips id's membership in the saved set and returns the new
// state.
func (s *Session) ToggleSaved(id string) (bool, error) {
	saved, err := s.prefs.ToggleSaved(id)
	if err != nil {
		return false, fmt.Errorf("toggle saved: %w", err)
	}
	s.mu.Lock()
	if saved {
		s.saved[id] = true
	} else {
		delete(s.saved, id)
	}
	s.mu.Unlock()

	s.changed()
	return saved, nil
}

// AutoRefresh reports whether the refresh timer is running.
func (s *Session) AutoRefresh() bool {
	return s.sched.State() == refresh.Running
}

// SetAutoRefresh pauses or resumes the refresh timer and persists the
// choice.
func (s *Session) SetAutoRefresh(on bool) error {
	if on {
		s.sched.Resume()
	} else {
		s.sched.Pause()
	}
	s.changed()
	return s.prefs.SetBool(prefAutoRefresh, on)
}

// RefreshInterval returns the auto-refresh period.
func (s *Session) RefreshInterval() time.Duration {
	return s.sched.Interval()
}

// SetRefreshInterval changes the auto-refresh period and persists it.
func (s *Session) SetRefreshInterval(d time.Duration) error {
	if err := config.ValidateInterval(d); err != nil {
		return err
	}
	if err := s.sched.SetInterval(d); err != nil {
		return err
	}
	s.changed()
	return s.prefs.SetDuration(prefInterval, d)
}
