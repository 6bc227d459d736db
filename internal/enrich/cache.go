// Package enrich owns on-demand AI enrichment of articles.
//
// Cache tracks one entry per (article, kind). At most one service call is in
// flight per key; duplicate requests observe the pending entry instead of
// queueing. Completed results are merged into the article store and
// re-applied after every wholesale refresh through Overlay.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/abelbrown/watchfloor/internal/logging"
	"github.com/abelbrown/watchfloor/internal/metrics"
	"github.com/abelbrown/watchfloor/internal/model"
	"github.com/abelbrown/watchfloor/internal/otel"
)

// State is the lifecycle of one cache entry.
type State int

const (
	StateAbsent State = iota
	StatePending
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "absent"
}

// Entry is the cache state for one (article, kind). A failed or pending
// entry keeps the previous result, if there was one.
type Entry struct {
	State        State
	Summary      *model.Summary      // set for KindSummary results
	Intelligence *model.Intelligence // set for KindIntelligence results
	Err          error               // reason for StateFailed
	CompletedAt  time.Time           // when the held result was produced
}

// HasResult reports whether the entry holds a usable result.
func (e Entry) HasResult() bool {
	return e.Summary != nil || e.Intelligence != nil
}

func (e Entry) clone() Entry {
	if e.Summary != nil {
		s := *e.Summary
		e.Summary = &s
	}
	if e.Intelligence != nil {
		in := e.Intelligence.Clone()
		e.Intelligence = &in
	}
	return e
}

// ArticleStore is the subset of articles.Store the cache writes through.
type ArticleStore interface {
	Get(id string) (model.Article, bool)
	UpdateOne(id string, patch model.Patch) bool
}

type key struct {
	id   string
	kind model.EnrichKind
}

// Cache deduplicates enrichment calls and remembers their results for the
// lifetime of the session.
// Thread-safety: All methods are safe for concurrent use. No service or
// store call is made while mu is held.
type Cache struct {
	svc     Service
	store   ArticleStore
	events  *otel.Logger
	extract ExtractOptions

	mu        sync.Mutex
	entries   map[key]Entry
	callbacks []func(articleID string, kind model.EnrichKind, e Entry)
}

// NewCache creates a Cache calling svc and merging results into store.
// store may be nil, in which case results are only held in the cache.
func NewCache(svc Service, store ArticleStore) *Cache {
	if svc == nil {
		svc = Unconfigured{}
	}
	return &Cache{
		svc:     svc,
		store:   store,
		extract: ExtractOptions{UseAI: true, Save: true},
		entries: make(map[key]Entry),
	}
}

// SetEvents sets the event log. Nil disables events.
func (c *Cache) SetEvents(l *otel.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = l
}

// SetExtractOptions overrides the flags passed to extraction calls.
func (c *Cache) SetExtractOptions(opts ExtractOptions) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.extract = opts
}

// OnChange registers a callback fired whenever an entry changes state.
// Callbacks run with no lock held.
func (c *Cache) OnChange(fn func(articleID string, kind model.EnrichKind, e Entry)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks = append(c.callbacks, fn)
}

// State returns the current entry for (articleID, kind).
func (c *Cache) State(articleID string, kind model.EnrichKind) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[key{articleID, kind}].clone()
}

// Request returns the enrichment of the given kind for article, computing it
// if needed.
//
// Without force, a held result or enrichment already carried by the article
// is returned without a service call. A pending entry is returned as is,
// with or without force. Otherwise the service is called on the caller's
// goroutine and the result merged into the store. On failure the previous
// result stays readable and the error is returned.
func (c *Cache) Request(ctx context.Context, article model.Article, kind model.EnrichKind, force bool) (Entry, error) {
	if article.ID == "" {
		return Entry{}, fmt.Errorf("enrich %s: empty article id", kind)
	}
	if kind != model.KindSummary && kind != model.KindIntelligence {
		return Entry{}, fmt.Errorf("enrich: unknown kind %q", kind)
	}
	// The store copy may carry enrichment merged since the caller's snapshot.
	if c.store != nil {
		if cur, ok := c.store.Get(article.ID); ok {
			article = cur
		}
	}

	k := key{article.ID, kind}

	c.mu.Lock()
	events := c.events
	opts := c.extract
	prev := c.entries[k]

	if prev.State == StatePending {
		c.mu.Unlock()
		c.record(events, otel.KindEnrichInFlight, k, "inflight", nil)
		return prev.clone(), nil
	}
	if !force {
		if prev.HasResult() {
			c.mu.Unlock()
			c.record(events, otel.KindEnrichCached, k, "cached", nil)
			return prev.clone(), nil
		}
		if article.Has(kind) {
			adopted := adopt(article, kind)
			c.entries[k] = adopted
			callbacks := c.callbacks
			c.mu.Unlock()
			c.record(events, otel.KindEnrichCached, k, "cached", nil)
			c.fire(callbacks, k, adopted)
			return adopted.clone(), nil
		}
	}

	pending := prev
	pending.State = StatePending
	pending.Err = nil
	c.entries[k] = pending
	callbacks := c.callbacks
	c.mu.Unlock()

	c.record(events, otel.KindEnrichStart, k, "started", nil)
	c.fire(callbacks, k, pending)

	start := time.Now()
	next, err := c.call(ctx, article.ID, kind, opts)

	c.mu.Lock()
	if err != nil {
		next = prev
		next.State = StateFailed
		next.Err = err
	}
	c.entries[k] = next
	callbacks = c.callbacks
	c.mu.Unlock()

	if err != nil {
		outcome := "failed"
		if errors.Is(err, ErrUnconfigured) {
			outcome = "unconfigured"
		}
		c.record(events, otel.KindEnrichError, k, outcome, err)
		c.fire(callbacks, k, next)
		return next.clone(), err
	}

	if c.store != nil {
		c.store.UpdateOne(article.ID, patchFor(kind, next))
	}
	events.Emit(otel.Event{
		Level:     otel.LevelInfo,
		Kind:      otel.KindEnrichComplete,
		Comp:      "enrich",
		ArticleID: article.ID,
		Enrich:    string(kind),
		Dur:       time.Since(start),
	})
	metrics.RecordEnrich(string(kind), "done")
	c.fire(callbacks, k, next)
	return next.clone(), nil
}

func (c *Cache) call(ctx context.Context, articleID string, kind model.EnrichKind, opts ExtractOptions) (Entry, error) {
	switch kind {
	case model.KindSummary:
		sum, err := c.svc.Summarize(ctx, articleID)
		if err != nil {
			return Entry{}, err
		}
		return Entry{State: StateDone, Summary: &sum, CompletedAt: time.Now()}, nil

	case model.KindIntelligence:
		intel, err := c.extractIntelligence(ctx, articleID, opts)
		if err != nil {
			return Entry{}, err
		}
		return Entry{State: StateDone, Intelligence: &intel, CompletedAt: time.Now()}, nil
	}
	return Entry{}, fmt.Errorf("enrich: unknown kind %q", kind)
}

// extractIntelligence runs extraction and, when the response carries no
// items, reads back the persisted result.
func (c *Cache) extractIntelligence(ctx context.Context, articleID string, opts ExtractOptions) (model.Intelligence, error) {
	raw, err := c.svc.ExtractIntelligence(ctx, articleID, opts)
	if err != nil {
		return model.Intelligence{}, err
	}
	intel, shape, err := DecodeExtraction(raw)
	if err != nil {
		return model.Intelligence{}, err
	}
	if shape != ShapeNone {
		return intel, nil
	}

	logging.Debug("extraction response carried no items, reading back", "article", articleID)
	raw, err = c.svc.Intelligence(ctx, articleID)
	if err != nil {
		return model.Intelligence{}, fmt.Errorf("read intelligence: %w", err)
	}
	intel, _, err = DecodeExtraction(raw)
	if err != nil {
		return model.Intelligence{}, err
	}
	return intel, nil
}

// Overlay re-applies held results onto a freshly fetched article. When
// only one side has a result it wins. When both do, the more recently
// completed one wins and the server wins ties; a winning server result is
// adopted into the cache.
//
// Overlay is called by the article store with its lock held, so it must not
// call back into the store.
func (c *Cache) Overlay(a model.Article) model.Article {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, kind := range model.EnrichKinds {
		k := key{a.ID, kind}
		e, ok := c.entries[k]
		if !ok || !e.HasResult() {
			if a.Has(kind) && e.State != StatePending {
				c.entries[k] = adopt(a, kind)
			}
			continue
		}
		if a.Has(kind) && !e.CompletedAt.After(a.EnrichedAt) {
			adopted := adopt(a, kind)
			adopted.State = e.State
			if e.State == StateFailed {
				adopted.Err = e.Err
			}
			c.entries[k] = adopted
			continue
		}
		a = patchFor(kind, e).Apply(a)
	}
	return a
}

// adopt builds a done entry from enrichment the article already carries.
func adopt(a model.Article, kind model.EnrichKind) Entry {
	e := Entry{State: StateDone, CompletedAt: a.EnrichedAt}
	switch kind {
	case model.KindSummary:
		e.Summary = &model.Summary{
			Executive: a.ExecutiveSummary,
			Technical: a.TechnicalSummary,
			Model:     a.EnrichmentModel,
		}
	case model.KindIntelligence:
		intel := a.Intelligence.Clone()
		e.Intelligence = &intel
	}
	return e
}

// patchFor converts an entry's result into a store patch.
func patchFor(kind model.EnrichKind, e Entry) model.Patch {
	var p model.Patch
	switch kind {
	case model.KindSummary:
		if e.Summary == nil {
			return p
		}
		p.ExecutiveSummary = model.Ptr(e.Summary.Executive)
		p.TechnicalSummary = model.Ptr(e.Summary.Technical)
		if e.Summary.Model != "" {
			p.EnrichmentModel = model.Ptr(e.Summary.Model)
		}
	case model.KindIntelligence:
		if e.Intelligence == nil {
			return p
		}
		intel := e.Intelligence.Clone()
		p.Intelligence = &intel
	}
	if !e.CompletedAt.IsZero() {
		p.EnrichedAt = model.Ptr(e.CompletedAt)
	}
	return p
}

func (c *Cache) record(events *otel.Logger, kind otel.EventKind, k key, outcome string, err error) {
	metrics.RecordEnrich(string(k.kind), outcome)
	ev := otel.Event{
		Level:     otel.LevelDebug,
		Kind:      kind,
		Comp:      "enrich",
		ArticleID: k.id,
		Enrich:    string(k.kind),
	}
	if err != nil {
		ev.Level = otel.LevelWarn
		ev.Err = err.Error()
		logging.Warn("enrichment failed", "article", k.id, "kind", k.kind, "error", err)
	}
	events.Emit(ev)
}

func (c *Cache) fire(callbacks []func(string, model.EnrichKind, Entry), k key, e Entry) {
	for _, cb := range callbacks {
		cb(k.id, k.kind, e.clone())
	}
}
