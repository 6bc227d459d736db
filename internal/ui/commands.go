package ui

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/watchfloor/internal/filter"
	"github.com/abelbrown/watchfloor/internal/model"
	"github.com/abelbrown/watchfloor/internal/otel"
	"github.com/abelbrown/watchfloor/internal/session"
)

// eventOverlayLimit is how many trailing events the overlay reads.
const eventOverlayLimit = 200

// SessionCommands builds the AppConfig that drives s. Every command runs on
// a Bubble Tea goroutine, so blocking session calls are fine here.
// eventsPath is the JSONL event log shown by the overlay; empty disables it.
func SessionCommands(ctx context.Context, s *session.Session, eventsPath string) AppConfig {
	cfg := AppConfig{
		LoadFeed: func() tea.Cmd {
			return func() tea.Msg {
				return FeedLoaded{Snapshot: TakeSnapshot(s)}
			}
		},
		Refresh: func() tea.Cmd {
			return func() tea.Msg {
				return RefreshDone{Err: s.Refresh(ctx, true)}
			}
		},
		Select: func(id string) tea.Cmd {
			return func() tea.Msg {
				return ActionDone{Err: s.Select(ctx, id)}
			}
		},
		ClearSelection: func() tea.Cmd {
			return func() tea.Msg {
				s.ClearSelection()
				return ActionDone{}
			}
		},
		Regenerate: func(id string) tea.Cmd {
			return func() tea.Msg {
				// Failures are reported as notices by the session.
				var g errgroup.Group
				for _, kind := range model.EnrichKinds {
					g.Go(func() error {
						_, _ = s.Enrich(ctx, id, kind, true)
						return nil
					})
				}
				_ = g.Wait()
				return ActionDone{}
			}
		},
		ToggleSaved: func(id string) tea.Cmd {
			return func() tea.Msg {
				_, err := s.ToggleSaved(id)
				return ActionDone{Err: err}
			}
		},
		SetStatus: func(id string, status model.Status) tea.Cmd {
			return func() tea.Msg {
				return ActionDone{Err: s.SetStatus(ctx, id, status)}
			}
		},
		SetCriteria: func(c filter.Criteria) tea.Cmd {
			return func() tea.Msg {
				return ActionDone{Err: s.SetCriteria(c)}
			}
		},
		SetSort: func(m filter.SortMode) tea.Cmd {
			return func() tea.Msg {
				return ActionDone{Err: s.SetSort(m)}
			}
		},
		SetAutoRefresh: func(on bool) tea.Cmd {
			return func() tea.Msg {
				return ActionDone{Err: s.SetAutoRefresh(on)}
			}
		},
	}

	if eventsPath != "" {
		cfg.LoadEvents = func() tea.Cmd {
			return func() tea.Msg {
				f, err := os.Open(eventsPath)
				if err != nil {
					return EventsLoaded{Err: err}
				}
				defer f.Close()
				events, err := otel.ReadEvents(f, eventOverlayLimit)
				return EventsLoaded{Events: events, Err: err}
			}
		}
	}
	return cfg
}

// TakeSnapshot reads everything the view needs from s.
func TakeSnapshot(s *session.Session) Snapshot {
	visible := s.Visible()
	saved := make(map[string]bool)
	for _, a := range visible {
		if s.IsSaved(a.ID) {
			saved[a.ID] = true
		}
	}

	snap := Snapshot{
		Articles:    visible,
		Saved:       saved,
		Sources:     s.Sources(),
		Criteria:    s.Criteria(),
		Sort:        s.SortMode(),
		Selected:    s.Selected(),
		AutoRefresh: s.AutoRefresh(),
		Interval:    s.RefreshInterval(),
		LastRefresh: s.LastRefresh(),
	}
	if snap.Selected != "" {
		if a, ok := s.Article(snap.Selected); ok {
			snap.Detail = &a
			if s.IsSaved(a.ID) {
				snap.Saved[a.ID] = true
			}
			snap.Summary = s.EnrichState(a.ID, model.KindSummary)
			snap.Intel = s.EnrichState(a.ID, model.KindIntelligence)
		}
	}
	return snap
}
