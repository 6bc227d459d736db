package articles

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelbrown/watchfloor/internal/model"
)

// summaryOverlay fills in a fixed executive summary when the record lacks one.
type summaryOverlay struct {
	text  string
	calls atomic.Int32
}

func (o *summaryOverlay) Overlay(a model.Article) model.Article {
	o.calls.Add(1)
	if a.ExecutiveSummary == "" {
		a.ExecutiveSummary = o.text
	}
	return a
}

func TestReplaceAllSwapsCollection(t *testing.T) {
	s := NewStore()
	s.ReplaceAll([]model.Article{{ID: "a"}, {ID: "b"}})
	s.ReplaceAll([]model.Article{{ID: "b", Title: "new b"}, {ID: "c"}})

	require.Equal(t, 2, s.Len())
	_, ok := s.Get("a")
	assert.False(t, ok, "a should be gone after wholesale replace")

	b, ok := s.Get("b")
	require.True(t, ok)
	assert.Equal(t, "new b", b.Title)
}

func TestReplaceAllDropsEmptyIDsAndLastDuplicateWins(t *testing.T) {
	s := NewStore()
	s.ReplaceAll([]model.Article{
		{ID: "", Title: "orphan"},
		{ID: "x", Title: "first"},
		{ID: "x", Title: "second"},
	})

	require.Equal(t, 1, s.Len())
	x, _ := s.Get("x")
	assert.Equal(t, "second", x.Title)
}

func TestReplaceAllAppliesOverlay(t *testing.T) {
	s := NewStore()
	o := &summaryOverlay{text: "cached"}
	s.SetOverlay(o)

	s.ReplaceAll([]model.Article{
		{ID: "a"},
		{ID: "b", ExecutiveSummary: "from server"},
	})

	a, _ := s.Get("a")
	b, _ := s.Get("b")
	assert.Equal(t, "cached", a.ExecutiveSummary)
	assert.Equal(t, "from server", b.ExecutiveSummary)
	assert.Equal(t, int32(2), o.calls.Load())
}

func TestUpdateOneMergesPatch(t *testing.T) {
	s := NewStore()
	s.ReplaceAll([]model.Article{{ID: "a", Title: "t", Status: model.StatusNew}})

	ok := s.UpdateOne("a", model.Patch{
		Status:           model.Ptr(model.StatusInAnalysis),
		ExecutiveSummary: model.Ptr("exec"),
	})
	require.True(t, ok)

	a, _ := s.Get("a")
	assert.Equal(t, model.StatusInAnalysis, a.Status)
	assert.Equal(t, "exec", a.ExecutiveSummary)
	assert.Equal(t, "t", a.Title, "untouched fields survive")
}

func TestUpdateOneMissingIsNoop(t *testing.T) {
	s := NewStore()
	var fired atomic.Int32
	s.OnChange(func() { fired.Add(1) })

	assert.False(t, s.UpdateOne("missing", model.Patch{Read: model.Ptr(true)}))
	assert.Zero(t, fired.Load())
	assert.Zero(t, s.Len())
}

func TestSnapshotIsIsolated(t *testing.T) {
	s := NewStore()
	s.ReplaceAll([]model.Article{{
		ID:           "a",
		Read:         model.Ptr(false),
		Intelligence: &model.Intelligence{Indicators: []model.IntelItem{{Kind: model.IntelIndicator, Type: "ip", Value: "10.0.0.1"}}, Total: 1},
	}})

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	*snap[0].Read = true
	snap[0].Intelligence.Indicators[0].Value = "mutated"
	snap[0].Title = "mutated"

	a, _ := s.Get("a")
	assert.False(t, *a.Read)
	assert.Equal(t, "10.0.0.1", a.Intelligence.Indicators[0].Value)
	assert.Empty(t, a.Title)
}

func TestOnChangeFiresAfterWrites(t *testing.T) {
	s := NewStore()
	var fired atomic.Int32
	s.OnChange(func() {
		// Reading from a listener must not deadlock.
		_ = s.Len()
		fired.Add(1)
	})

	s.ReplaceAll([]model.Article{{ID: "a"}})
	s.UpdateOne("a", model.Patch{HighPriority: model.Ptr(true)})

	assert.Equal(t, int32(2), fired.Load())
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	s := NewStore()
	s.ReplaceAll([]model.Article{{ID: "a"}})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.UpdateOne("a", model.Patch{EnrichedAt: model.Ptr(time.Now())})
		}()
		go func() {
			defer wg.Done()
			_ = s.Snapshot()
		}()
	}
	wg.Wait()

	a, ok := s.Get("a")
	require.True(t, ok)
	assert.False(t, a.EnrichedAt.IsZero())
}
