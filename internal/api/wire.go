package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abelbrown/watchfloor/internal/enrich"
	"github.com/abelbrown/watchfloor/internal/logging"
	"github.com/abelbrown/watchfloor/internal/model"
)

// flexString accepts a JSON string, number or null.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	switch b[0] {
	case '[', '{':
		return fmt.Errorf("expected string or number, got %s", b)
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(string(b))
	return nil
}

// flexBool accepts true/false, 0/1 and their string spellings. Anything
// else, null included, leaves it unset.
type flexBool struct {
	val, set bool
}

func (f *flexBool) UnmarshalJSON(b []byte) error {
	*f = flexBool{}
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		*f = flexBool{val: n != 0, set: true}
		return nil
	}
	switch strings.ToLower(s) {
	case "true", "yes", "y", "t":
		*f = flexBool{val: true, set: true}
	case "false", "no", "n", "f":
		*f = flexBool{set: true}
	}
	return nil
}

// ptr returns nil when the field was absent or unrecognized.
func (f flexBool) ptr() *bool {
	if !f.set {
		return nil
	}
	v := f.val
	return &v
}

// or returns the value, or def when unset.
func (f flexBool) or(def bool) bool {
	if !f.set {
		return def
	}
	return f.val
}

// flexTime accepts the timestamp spellings seen in the wild. Anything
// unparseable decodes to the zero time rather than failing the record.
type flexTime time.Time

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02",
}

func (f *flexTime) UnmarshalJSON(b []byte) error {
	*f = flexTime(parseTime(b))
	return nil
}

func parseTime(b []byte) time.Time {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return time.Time{}
	}
	if b[0] != '"' {
		// Unix seconds, or milliseconds if implausibly large.
		n, err := strconv.ParseFloat(string(b), 64)
		if err != nil || n <= 0 {
			return time.Time{}
		}
		if n > 1e12 {
			return time.UnixMilli(int64(n)).UTC()
		}
		return time.Unix(int64(n), 0).UTC()
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return time.Time{}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// wireArticle is the backend's article record. Several fields have
// alternate spellings depending on the endpoint version.
type wireArticle struct {
	ID         flexString `json:"id"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	Body       string     `json:"body"`
	Summary    string     `json:"summary"`
	ImageURL   string     `json:"image_url"`
	Image      string     `json:"image"`
	URL        string     `json:"url"`
	Link       string     `json:"link"`
	SourceID   flexString `json:"source_id"`
	SourceName string     `json:"source_name"`
	Source     string     `json:"source"`

	PublishedAt flexTime `json:"published_at"`
	Date        flexTime `json:"date"`
	UpdatedAt   flexTime `json:"updated_at"`
	IngestedAt  flexTime `json:"ingested_at"`
	CreatedAt   flexTime `json:"created_at"`

	Status         string   `json:"status"`
	IsRead         flexBool `json:"is_read"`
	HighPriority   flexBool `json:"high_priority"`
	IsHighPriority flexBool `json:"is_high_priority"`

	ExecutiveSummary string          `json:"executive_summary"`
	TechnicalSummary string          `json:"technical_summary"`
	Intelligence     json.RawMessage `json:"intelligence"`
	EnrichmentModel  string          `json:"enrichment_model"`
	EnrichedAt       flexTime        `json:"enriched_at"`
}

func (w wireArticle) toModel() model.Article {
	a := model.Article{
		ID:               string(w.ID),
		Title:            w.Title,
		Content:          firstNonEmpty(w.Content, w.Body),
		Summary:          w.Summary,
		ImageURL:         firstNonEmpty(w.ImageURL, w.Image),
		URL:              firstNonEmpty(w.URL, w.Link),
		SourceID:         string(w.SourceID),
		SourceName:       firstNonEmpty(w.SourceName, w.Source),
		PublishedAt:      time.Time(w.PublishedAt),
		Date:             time.Time(w.Date),
		UpdatedAt:        time.Time(w.UpdatedAt),
		IngestedAt:       time.Time(w.IngestedAt),
		Status:           model.Status(strings.ToUpper(w.Status)),
		Read:             w.IsRead.ptr(),
		HighPriority:     w.HighPriority.val || w.IsHighPriority.val,
		ExecutiveSummary: w.ExecutiveSummary,
		TechnicalSummary: w.TechnicalSummary,
		EnrichmentModel:  w.EnrichmentModel,
		EnrichedAt:       time.Time(w.EnrichedAt),
	}
	if a.IngestedAt.IsZero() {
		a.IngestedAt = time.Time(w.CreatedAt)
	}
	if len(w.Intelligence) > 0 && string(w.Intelligence) != "null" {
		intel, shape, err := enrich.DecodeExtraction(w.Intelligence)
		if err == nil && shape != enrich.ShapeNone {
			a.Intelligence = &intel
		}
	}
	return a
}

type wireSource struct {
	ID       flexString `json:"id"`
	Name     string     `json:"name"`
	URL      string     `json:"url"`
	Active   flexBool   `json:"active"`
	IsActive flexBool   `json:"is_active"`
}

func (w wireSource) toModel() model.Source {
	return model.Source{ID: string(w.ID), Name: w.Name, URL: w.URL, Active: w.Active.or(w.IsActive.or(true))}
}

type wireFeed struct {
	ID           flexString `json:"id"`
	Name         string     `json:"name"`
	URL          string     `json:"url"`
	Category     string     `json:"category"`
	Active       flexBool   `json:"active"`
	IsActive     flexBool   `json:"is_active"`
	ArticleCount flexString `json:"article_count"`
}

func (w wireFeed) toModel() model.UserFeed {
	count, _ := strconv.Atoi(string(w.ArticleCount))
	return model.UserFeed{
		ID:           string(w.ID),
		Name:         w.Name,
		URL:          w.URL,
		Category:     w.Category,
		Active:       w.Active.or(w.IsActive.or(true)),
		ArticleCount: count,
	}
}

// coerceList extracts a list of records from a response that may be a bare
// array or an object holding the array under one of keys, or under
// "data" followed by one of keys. Anything else yields nil.
func coerceList(body []byte, keys ...string) []json.RawMessage {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}

	var list []json.RawMessage
	if body[0] == '[' {
		if err := json.Unmarshal(body, &list); err != nil {
			return nil
		}
		return list
	}
	if body[0] != '{' {
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil
	}
	for _, k := range keys {
		if raw, ok := obj[k]; ok {
			if err := json.Unmarshal(raw, &list); err == nil {
				return list
			}
		}
	}
	if raw, ok := obj["data"]; ok {
		if len(bytes.TrimSpace(raw)) > 0 && bytes.TrimSpace(raw)[0] == '{' {
			return coerceList(raw, keys...)
		}
	}
	return nil
}

// decodeEach decodes every element it can, skipping malformed ones.
func decodeEach[W any, T any](items []json.RawMessage, what string, conv func(W) T) []T {
	out := make([]T, 0, len(items))
	for _, raw := range items {
		var w W
		if err := json.Unmarshal(raw, &w); err != nil {
			logging.Debug("skipping malformed record", "kind", what, "error", err)
			continue
		}
		out = append(out, conv(w))
	}
	return out
}

// unwrapObject returns the value under "data" or key when the body is an
// envelope, otherwise the body itself.
func unwrapObject(body []byte, key string) []byte {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return body
	}
	for _, k := range []string{key, "data"} {
		if raw, ok := obj[k]; ok {
			trimmed := bytes.TrimSpace(raw)
			if len(trimmed) > 0 && trimmed[0] == '{' {
				return trimmed
			}
		}
	}
	return body
}
