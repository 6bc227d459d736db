package fetch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelbrown/watchfloor/internal/api"
	"github.com/abelbrown/watchfloor/internal/model"
)

// mockBackend implements the backend interface for testing.
type mockBackend struct {
	sources    []model.Source
	sourcesErr error
	articles   []model.Article
	articleErr error
	gotQuery   api.ArticleQuery
}

func (m *mockBackend) ListSources(ctx context.Context) ([]model.Source, error) {
	return m.sources, m.sourcesErr
}

func (m *mockBackend) QueryArticles(ctx context.Context, q api.ArticleQuery) ([]model.Article, error) {
	m.gotQuery = q
	return m.articles, m.articleErr
}

func TestAPIFetcherBothSucceed(t *testing.T) {
	m := &mockBackend{
		sources:  []model.Source{{ID: "s1", Name: "CISA"}},
		articles: []model.Article{{ID: "a1"}, {ID: "a2"}},
	}
	res := NewAPIFetcher(m, 200, nil).Fetch(context.Background())

	assert.False(t, res.Partial())
	assert.NoError(t, res.Err())
	assert.Len(t, res.Sources, 1)
	assert.Len(t, res.Articles, 2)
	assert.Equal(t, 200, m.gotQuery.Limit)
}

func TestAPIFetcherPartialFailure(t *testing.T) {
	m := &mockBackend{
		sourcesErr: errors.New("sources down"),
		articles:   []model.Article{{ID: "a1"}},
	}
	res := NewAPIFetcher(m, 0, nil).Fetch(context.Background())

	assert.True(t, res.Partial())
	assert.NotNil(t, res.Sources)
	assert.Empty(t, res.Sources)
	assert.Len(t, res.Articles, 1)
	assert.ErrorContains(t, res.Err(), "sources down")
	assert.False(t, res.Empty())
}

func TestAPIFetcherBothFail(t *testing.T) {
	m := &mockBackend{
		sourcesErr: errors.New("a"),
		articleErr: errors.New("b"),
		articles:   []model.Article{{ID: "stale"}},
	}
	res := NewAPIFetcher(m, 0, nil).Fetch(context.Background())

	assert.True(t, res.Empty())
	require.Error(t, res.Err())
	assert.NotNil(t, res.Articles)
}

func TestAPIFetcherNilListsBecomeEmpty(t *testing.T) {
	res := NewAPIFetcher(&mockBackend{}, 0, nil).Fetch(context.Background())
	assert.NotNil(t, res.Sources)
	assert.NotNil(t, res.Articles)
	assert.True(t, res.Empty())
	assert.False(t, res.Partial())
}
