// Package model defines the data types shared by the watchfloor core.
//
// Article is the unit that flows through the system: fetched by
// internal/fetch, owned by internal/articles, enriched by internal/enrich and
// ordered for display by internal/filter.
package model

import "time"

// Status is the triage lifecycle of an article.
type Status string

const (
	StatusNew        Status = "NEW"         // unread
	StatusInAnalysis Status = "IN_ANALYSIS" // being triaged
	StatusResolved   Status = "RESOLVED"    // done
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusInAnalysis, StatusResolved:
		return true
	}
	return false
}

// Article is a single ingested news/intelligence item.
//
// Zero time values mean "not reported". Read is a pointer because servers
// that track read state separately from Status report it explicitly, and
// the unread predicate needs to tell "false" from "absent".
type Article struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Content    string `json:"content,omitempty"`
	Summary    string `json:"summary,omitempty"`
	ImageURL   string `json:"image_url,omitempty"`
	URL        string `json:"url,omitempty"`
	SourceID   string `json:"source_id,omitempty"`
	SourceName string `json:"source_name,omitempty"`

	PublishedAt time.Time `json:"published_at,omitempty"`
	Date        time.Time `json:"date,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
	IngestedAt  time.Time `json:"ingested_at,omitempty"`

	Status       Status `json:"status,omitempty"`
	Read         *bool  `json:"is_read,omitempty"`
	HighPriority bool   `json:"high_priority,omitempty"`

	ExecutiveSummary string        `json:"executive_summary,omitempty"`
	TechnicalSummary string        `json:"technical_summary,omitempty"`
	Intelligence     *Intelligence `json:"intelligence,omitempty"`
	EnrichmentModel  string        `json:"enrichment_model,omitempty"`
	EnrichedAt       time.Time     `json:"enriched_at,omitempty"`
}

// Unread reports whether the article counts as unread: still in the
// initial status, or explicitly flagged as not read.
func (a Article) Unread() bool {
	if a.Status == StatusNew || a.Status == "" {
		return true
	}
	return a.Read != nil && !*a.Read
}

// HasSummary reports whether the article already carries a summary
// enrichment.
func (a Article) HasSummary() bool {
	return a.ExecutiveSummary != "" || a.TechnicalSummary != ""
}

// HasIntelligence reports whether the article already carries extracted
// intelligence.
func (a Article) HasIntelligence() bool {
	return a.Intelligence != nil
}

// Has reports whether the article carries enrichment of the given kind.
func (a Article) Has(kind EnrichKind) bool {
	switch kind {
	case KindSummary:
		return a.HasSummary()
	case KindIntelligence:
		return a.HasIntelligence()
	}
	return false
}

// FilterTime is the timestamp used for time-range filtering: ingestion
// time when present, publication time otherwise.
func (a Article) FilterTime() time.Time {
	if !a.IngestedAt.IsZero() {
		return a.IngestedAt
	}
	return a.PublishedAt
}

// DisplayTime is the timestamp used for ordering. Preference order:
// published, date, updated, ingested.
func (a Article) DisplayTime() time.Time {
	for _, t := range []time.Time{a.PublishedAt, a.Date, a.UpdatedAt} {
		if !t.IsZero() {
			return t
		}
	}
	return a.IngestedAt
}

// Clone returns a deep copy so snapshots never alias store-owned memory.
func (a Article) Clone() Article {
	if a.Read != nil {
		r := *a.Read
		a.Read = &r
	}
	if a.Intelligence != nil {
		intel := a.Intelligence.Clone()
		a.Intelligence = &intel
	}
	return a
}

// Patch is a partial update merged by the article store. Nil fields are
// left untouched.
type Patch struct {
	Status       *Status
	Read         *bool
	HighPriority *bool

	ExecutiveSummary *string
	TechnicalSummary *string
	Intelligence     *Intelligence
	EnrichmentModel  *string
	EnrichedAt       *time.Time
}

// Apply merges p into a and returns the result.
func (p Patch) Apply(a Article) Article {
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.Read != nil {
		r := *p.Read
		a.Read = &r
	}
	if p.HighPriority != nil {
		a.HighPriority = *p.HighPriority
	}
	if p.ExecutiveSummary != nil {
		a.ExecutiveSummary = *p.ExecutiveSummary
	}
	if p.TechnicalSummary != nil {
		a.TechnicalSummary = *p.TechnicalSummary
	}
	if p.Intelligence != nil {
		intel := p.Intelligence.Clone()
		a.Intelligence = &intel
	}
	if p.EnrichmentModel != nil {
		a.EnrichmentModel = *p.EnrichmentModel
	}
	if p.EnrichedAt != nil {
		a.EnrichedAt = *p.EnrichedAt
	}
	return a
}

// Ptr returns a pointer to v. Handy for building patches.
func Ptr[T any](v T) *T {
	return &v
}
