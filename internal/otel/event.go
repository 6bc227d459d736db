// Package otel is the structured event log: one JSON object per line in
// <data dir>/events.jsonl, written off the caller's goroutine. The TUI event
// overlay and `watchfloor events` read it back with ReadEvents.
package otel

import (
	"encoding/json"
	"time"
)

// Level is an event severity.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// EventKind is "<subsystem>.<action>".
type EventKind string

const (
	KindFetchStart    EventKind = "fetch.start"
	KindFetchComplete EventKind = "fetch.complete"
	KindFetchPartial  EventKind = "fetch.partial"
	KindFetchError    EventKind = "fetch.error"

	KindEnrichStart    EventKind = "enrich.start"
	KindEnrichComplete EventKind = "enrich.complete"
	KindEnrichCached   EventKind = "enrich.cached"
	KindEnrichInFlight EventKind = "enrich.inflight"
	KindEnrichError    EventKind = "enrich.error"

	KindRefreshTick   EventKind = "refresh.tick"
	KindRefreshPause  EventKind = "refresh.pause"
	KindRefreshResume EventKind = "refresh.resume"
	KindRefreshError  EventKind = "refresh.error"

	KindStatusUpdate EventKind = "status.update"
	KindStatusError  EventKind = "status.error"

	KindStartup  EventKind = "sys.startup"
	KindShutdown EventKind = "sys.shutdown"
)

// Event is one log record. Only Kind is required; Time and SessionID are
// filled in by Emit.
type Event struct {
	Time      time.Time      `json:"t"`
	Level     Level          `json:"level,omitempty"`
	Kind      EventKind      `json:"kind"`
	Comp      string         `json:"comp,omitempty"` // fetch, enrich, refresh, session, main
	SessionID string         `json:"session_id,omitempty"`
	ArticleID string         `json:"article_id,omitempty"`
	Enrich    string         `json:"enrich,omitempty"` // model.EnrichKind
	Dur       time.Duration  `json:"-"`
	DurMs     float64        `json:"dur_ms,omitempty"` // written from Dur
	Count     int            `json:"count,omitempty"`
	Source    string         `json:"source,omitempty"`
	Err       string         `json:"err,omitempty"`
	Msg       string         `json:"msg,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// wireEvent drops Event's methods so encoding does not recurse.
type wireEvent Event

// MarshalJSON writes Dur as fractional milliseconds.
func (e Event) MarshalJSON() ([]byte, error) {
	w := wireEvent(e)
	if e.Dur > 0 {
		w.DurMs = float64(e.Dur) / float64(time.Millisecond)
	}
	return json.Marshal(w)
}

// UnmarshalJSON restores Dur from dur_ms.
func (e *Event) UnmarshalJSON(b []byte) error {
	var w wireEvent
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*e = Event(w)
	if e.DurMs > 0 {
		e.Dur = time.Duration(e.DurMs * float64(time.Millisecond))
	}
	return nil
}
