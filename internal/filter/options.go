package filter

import (
	"fmt"
	"strings"
	"time"
)

// TimeRange bounds how far back the feed reaches.
type TimeRange string

const (
	Range24h TimeRange = "24h"
	Range7d  TimeRange = "7d"
	Range30d TimeRange = "30d"
	Range90d TimeRange = "90d"
	RangeAll TimeRange = "all"
)

var timeRanges = []TimeRange{Range24h, Range7d, Range30d, Range90d, RangeAll}

// Duration returns the window length. bounded is false for RangeAll and
// for unknown values.
func (r TimeRange) Duration() (d time.Duration, bounded bool) {
	switch r {
	case Range24h:
		return 24 * time.Hour, true
	case Range7d:
		return 7 * 24 * time.Hour, true
	case Range30d:
		return 30 * 24 * time.Hour, true
	case Range90d:
		return 90 * 24 * time.Hour, true
	}
	return 0, false
}

// Next cycles to the following range.
func (r TimeRange) Next() TimeRange {
	for i, tr := range timeRanges {
		if tr == r {
			return timeRanges[(i+1)%len(timeRanges)]
		}
	}
	return Range24h
}

// ParseTimeRange validates s.
func ParseTimeRange(s string) (TimeRange, error) {
	for _, tr := range timeRanges {
		if string(tr) == s {
			return tr, nil
		}
	}
	return "", fmt.Errorf("unknown time range %q", s)
}

// SortMode picks the secondary keys of the sort.
type SortMode string

const (
	SortDate     SortMode = "date"
	SortPriority SortMode = "priority"
	SortSource   SortMode = "source"
)

var sortModes = []SortMode{SortDate, SortPriority, SortSource}

// Next cycles to the following mode.
func (m SortMode) Next() SortMode {
	for i, sm := range sortModes {
		if sm == m {
			return sortModes[(i+1)%len(sortModes)]
		}
	}
	return SortDate
}

// ParseSortMode validates s.
func ParseSortMode(s string) (SortMode, error) {
	for _, sm := range sortModes {
		if string(sm) == s {
			return sm, nil
		}
	}
	return "", fmt.Errorf("unknown sort mode %q", s)
}

// ScopeKind is the top-level selection dimension.
type ScopeKind int

const (
	ScopeAll ScopeKind = iota
	ScopeSource
	ScopeSaved
	ScopeHighPriority
)

// Scope selects all articles, one source, the saved set, or high-priority
// articles.
type Scope struct {
	Kind     ScopeKind
	SourceID string // for ScopeSource
}

// SourceScope returns the scope of a single source.
func SourceScope(id string) Scope {
	return Scope{Kind: ScopeSource, SourceID: id}
}

// ParseScope reads the form produced by String: "all", "saved",
// "high_priority" or "source:<id>". Anything else is treated as a source id.
func ParseScope(s string) Scope {
	switch s {
	case "", "all":
		return Scope{Kind: ScopeAll}
	case "saved":
		return Scope{Kind: ScopeSaved}
	case "high_priority", "priority":
		return Scope{Kind: ScopeHighPriority}
	}
	return SourceScope(strings.TrimPrefix(s, "source:"))
}

func (s Scope) String() string {
	switch s.Kind {
	case ScopeSource:
		return "source:" + s.SourceID
	case ScopeSaved:
		return "saved"
	case ScopeHighPriority:
		return "high_priority"
	}
	return "all"
}

// MarshalText lets Scope round-trip through YAML and JSON preferences.
func (s Scope) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses the String form.
func (s *Scope) UnmarshalText(b []byte) error {
	*s = ParseScope(string(b))
	return nil
}
