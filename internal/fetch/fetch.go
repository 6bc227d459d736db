// Package fetch retrieves sources and articles for a refresh cycle.
//
// Two implementations exist: APIFetcher reads the watchfloor backend and
// RSSFetcher reads feeds directly when no backend is configured. Both
// tolerate partial failure: a failed half of the result is replaced by an
// empty list and reported in Result.
package fetch

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/watchfloor/internal/api"
	"github.com/abelbrown/watchfloor/internal/model"
	"github.com/abelbrown/watchfloor/internal/otel"
)

// fetchTimeout is the timeout for each individual fetch.
const fetchTimeout = 30 * time.Second

// Result is the outcome of one fetch cycle.
type Result struct {
	Sources     []model.Source
	Articles    []model.Article
	SourcesErr  error // non-nil if sources could not be read; Sources is empty
	ArticlesErr error // non-nil if articles could not be read; Articles is empty
}

// Partial reports whether either half failed.
func (r Result) Partial() bool {
	return r.SourcesErr != nil || r.ArticlesErr != nil
}

// Empty reports whether both lists are empty.
func (r Result) Empty() bool {
	return len(r.Sources) == 0 && len(r.Articles) == 0
}

// Err joins the per-half errors.
func (r Result) Err() error {
	return errors.Join(r.SourcesErr, r.ArticlesErr)
}

// Fetcher produces a Result. Implementations never return nil slices.
type Fetcher interface {
	Fetch(ctx context.Context) Result
}

// backend is the subset of api.Client used by APIFetcher.
type backend interface {
	ListSources(ctx context.Context) ([]model.Source, error)
	QueryArticles(ctx context.Context, q api.ArticleQuery) ([]model.Article, error)
}

// APIFetcher reads sources and articles from the backend concurrently.
type APIFetcher struct {
	client backend
	limit  int
	events *otel.Logger
}

// NewAPIFetcher creates an APIFetcher requesting up to limit articles.
// events may be nil.
func NewAPIFetcher(client backend, limit int, events *otel.Logger) *APIFetcher {
	return &APIFetcher{client: client, limit: limit, events: events}
}

// Fetch reads both lists. Each half is independent: a failure in one does
// not affect the other.
func (f *APIFetcher) Fetch(ctx context.Context) Result {
	start := time.Now()
	f.events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindFetchStart, Comp: "fetch", Source: "api"})

	var res Result
	var g errgroup.Group
	g.Go(func() error {
		fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
		defer cancel()
		res.Sources, res.SourcesErr = f.client.ListSources(fetchCtx)
		return nil
	})
	g.Go(func() error {
		fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
		defer cancel()
		res.Articles, res.ArticlesErr = f.client.QueryArticles(fetchCtx, api.ArticleQuery{Limit: f.limit})
		return nil
	})
	_ = g.Wait() // never fails; errors are reported per half

	if res.SourcesErr != nil || res.Sources == nil {
		res.Sources = []model.Source{}
	}
	if res.ArticlesErr != nil || res.Articles == nil {
		res.Articles = []model.Article{}
	}

	emitResult(f.events, "api", res, time.Since(start))
	return res
}

func emitResult(events *otel.Logger, source string, res Result, dur time.Duration) {
	ev := otel.Event{
		Level:  otel.LevelInfo,
		Kind:   otel.KindFetchComplete,
		Comp:   "fetch",
		Source: source,
		Count:  len(res.Articles),
		Dur:    dur,
	}
	switch {
	case res.SourcesErr != nil && res.ArticlesErr != nil:
		ev.Level = otel.LevelError
		ev.Kind = otel.KindFetchError
		ev.Err = res.Err().Error()
	case res.Partial():
		ev.Level = otel.LevelWarn
		ev.Kind = otel.KindFetchPartial
		ev.Err = res.Err().Error()
	}
	events.Emit(ev)
}
