// Package ui provides the Bubble Tea TUI for watchfloor.
package ui

import (
	"time"

	"github.com/abelbrown/watchfloor/internal/enrich"
	"github.com/abelbrown/watchfloor/internal/filter"
	"github.com/abelbrown/watchfloor/internal/model"
	"github.com/abelbrown/watchfloor/internal/otel"
	"github.com/abelbrown/watchfloor/internal/session"
)

// Snapshot is everything the view renders, read from the session in one go.
type Snapshot struct {
	Articles    []model.Article // filtered and ordered
	Saved       map[string]bool // saved ids among Articles
	Sources     []model.Source
	Criteria    filter.Criteria
	Sort        filter.SortMode
	Selected    string
	Detail      *model.Article // stored copy of Selected, nil when none
	Summary     enrich.Entry   // enrichment state of Selected
	Intel       enrich.Entry
	AutoRefresh bool
	Interval    time.Duration
	LastRefresh time.Time
}

// FeedLoaded is sent when a Snapshot has been read.
type FeedLoaded struct {
	Snapshot Snapshot
}

// FeedChanged is sent by the session whenever its state changes.
type FeedChanged struct{}

// RefreshDone is sent when a manual refresh finishes.
type RefreshDone struct {
	Err error
}

// ActionDone is sent when a user action (select, save, status...) settles.
// Err is shown in the error bar.
type ActionDone struct {
	Err error
}

// NoticeMsg carries a session notice.
type NoticeMsg struct {
	Notice session.Notice
}

// EventsLoaded is sent when the event overlay has read the event log.
type EventsLoaded struct {
	Events []otel.Event
	Err    error
}
