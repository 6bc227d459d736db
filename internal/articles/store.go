// Package articles holds the canonical, in-memory article collection.
//
// Store is the single writer of the collection. Everything else reads
// through Snapshot or Get, which hand out deep copies.
package articles

import (
	"errors"
	"sync"

	"github.com/abelbrown/watchfloor/internal/metrics"
	"github.com/abelbrown/watchfloor/internal/model"
)

// ErrNotFound is returned by callers that require an article to exist.
var ErrNotFound = errors.New("article not found")

// Overlay re-applies locally held state onto freshly fetched records.
// The enrichment cache implements it so a wholesale replace never loses a
// richer local result.
type Overlay interface {
	Overlay(a model.Article) model.Article
}

// Store maps article id to article.
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Store struct {
	mu        sync.RWMutex
	articles  map[string]model.Article
	overlay   Overlay
	listeners []func()
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{articles: make(map[string]model.Article)}
}

// SetOverlay registers the overlay applied by ReplaceAll.
func (s *Store) SetOverlay(o Overlay) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlay = o
}

// OnChange registers a callback fired after every write. Callbacks run on
// the writer's goroutine with no lock held.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// ReplaceAll swaps the collection for a freshly fetched set. Records with an
// empty id are dropped; on duplicate ids the last record wins. Each record
// passes through the overlay, if any.
func (s *Store) ReplaceAll(articles []model.Article) {
	next := make(map[string]model.Article, len(articles))

	s.mu.Lock()
	overlay := s.overlay
	for _, a := range articles {
		if a.ID == "" {
			continue
		}
		a = a.Clone()
		if overlay != nil {
			a = overlay.Overlay(a)
		}
		next[a.ID] = a
	}
	s.articles = next
	listeners := s.listeners
	n := len(next)
	s.mu.Unlock()

	metrics.ArticlesStored.Set(float64(n))
	notify(listeners)
}

// UpdateOne merges patch into the record with the given id. Returns false,
// without notifying, when the id is absent.
func (s *Store) UpdateOne(id string, patch model.Patch) bool {
	s.mu.Lock()
	a, ok := s.articles[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.articles[id] = patch.Apply(a)
	listeners := s.listeners
	s.mu.Unlock()

	notify(listeners)
	return true
}

// Get returns a copy of the article with the given id.
func (s *Store) Get(id string) (model.Article, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.articles[id]
	if !ok {
		return model.Article{}, false
	}
	return a.Clone(), true
}

// Snapshot returns a copy of the whole collection in no particular order.
func (s *Store) Snapshot() []model.Article {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Article, 0, len(s.articles))
	for _, a := range s.articles {
		out = append(out, a.Clone())
	}
	return out
}

// Len returns the number of stored articles.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.articles)
}

func notify(listeners []func()) {
	for _, fn := range listeners {
		fn()
	}
}
