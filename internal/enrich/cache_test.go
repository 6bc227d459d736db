package enrich

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelbrown/watchfloor/internal/articles"
	"github.com/abelbrown/watchfloor/internal/model"
)

// mockService counts calls and can hold them open until released.
type mockService struct {
	summarizeCalls atomic.Int32
	extractCalls   atomic.Int32
	readCalls      atomic.Int32

	gate    chan struct{} // if non-nil, calls block until closed
	entered chan struct{} // receives once per call after it starts

	lastOpts atomic.Pointer[ExtractOptions]

	summary    model.Summary
	extractRaw string
	readRaw    string
	err        error
}

func (m *mockService) wait(ctx context.Context) error {
	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.gate != nil {
		select {
		case <-m.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (m *mockService) Summarize(ctx context.Context, id string) (model.Summary, error) {
	m.summarizeCalls.Add(1)
	if err := m.wait(ctx); err != nil {
		return model.Summary{}, err
	}
	if m.err != nil {
		return model.Summary{}, m.err
	}
	return m.summary, nil
}

func (m *mockService) ExtractIntelligence(ctx context.Context, id string, opts ExtractOptions) ([]byte, error) {
	m.extractCalls.Add(1)
	m.lastOpts.Store(&opts)
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if m.err != nil {
		return nil, m.err
	}
	return []byte(m.extractRaw), nil
}

func (m *mockService) Intelligence(ctx context.Context, id string) ([]byte, error) {
	m.readCalls.Add(1)
	return []byte(m.readRaw), nil
}

func newStoreWith(as ...model.Article) *articles.Store {
	s := articles.NewStore()
	s.ReplaceAll(as)
	return s
}

func TestRequestComputesAndMerges(t *testing.T) {
	svc := &mockService{summary: model.Summary{Executive: "exec", Technical: "tech", Model: "m1"}}
	st := newStoreWith(model.Article{ID: "a1", Title: "t"})
	c := NewCache(svc, st)

	e, err := c.Request(context.Background(), model.Article{ID: "a1"}, model.KindSummary, false)
	require.NoError(t, err)
	assert.Equal(t, StateDone, e.State)
	require.NotNil(t, e.Summary)
	assert.Equal(t, "exec", e.Summary.Executive)

	a, ok := st.Get("a1")
	require.True(t, ok)
	assert.Equal(t, "exec", a.ExecutiveSummary)
	assert.Equal(t, "tech", a.TechnicalSummary)
	assert.Equal(t, "m1", a.EnrichmentModel)
	assert.False(t, a.EnrichedAt.IsZero())
}

func TestRequestIsIdempotent(t *testing.T) {
	svc := &mockService{summary: model.Summary{Executive: "exec"}}
	c := NewCache(svc, newStoreWith(model.Article{ID: "a1"}))

	for i := 0; i < 3; i++ {
		_, err := c.Request(context.Background(), model.Article{ID: "a1"}, model.KindSummary, false)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), svc.summarizeCalls.Load())
}

func TestRequestDeduplicatesConcurrentCalls(t *testing.T) {
	svc := &mockService{
		summary: model.Summary{Executive: "exec"},
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 10),
	}
	c := NewCache(svc, newStoreWith(model.Article{ID: "a1"}))

	leaderDone := make(chan Entry, 1)
	go func() {
		e, _ := c.Request(context.Background(), model.Article{ID: "a1"}, model.KindSummary, false)
		leaderDone <- e
	}()
	<-svc.entered

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(force bool) {
			defer wg.Done()
			e, err := c.Request(context.Background(), model.Article{ID: "a1"}, model.KindSummary, force)
			assert.NoError(t, err)
			assert.Equal(t, StatePending, e.State)
		}(i%2 == 0)
	}
	wg.Wait()

	close(svc.gate)
	e := <-leaderDone
	assert.Equal(t, StateDone, e.State)
	assert.Equal(t, int32(1), svc.summarizeCalls.Load())
	assert.Equal(t, StateDone, c.State("a1", model.KindSummary).State)
}

func TestKindsAndArticlesAreIndependent(t *testing.T) {
	svc := &mockService{
		summary:    model.Summary{Executive: "exec"},
		extractRaw: `{"indicators":[{"type":"ip","value":"1.2.3.4"}],"techniques":[]}`,
		gate:       make(chan struct{}),
		entered:    make(chan struct{}, 4),
	}
	c := NewCache(svc, newStoreWith(model.Article{ID: "a1"}, model.Article{ID: "a2"}))

	var wg sync.WaitGroup
	for _, id := range []string{"a1", "a2"} {
		for _, kind := range model.EnrichKinds {
			wg.Add(1)
			go func(id string, kind model.EnrichKind) {
				defer wg.Done()
				_, err := c.Request(context.Background(), model.Article{ID: id}, kind, false)
				assert.NoError(t, err)
			}(id, kind)
		}
	}
	for i := 0; i < 4; i++ {
		select {
		case <-svc.entered:
		case <-time.After(2 * time.Second):
			t.Fatal("requests did not run concurrently")
		}
	}
	close(svc.gate)
	wg.Wait()

	assert.Equal(t, int32(2), svc.summarizeCalls.Load())
	assert.Equal(t, int32(2), svc.extractCalls.Load())
}

func TestServerEnrichmentIsAdopted(t *testing.T) {
	svc := &mockService{}
	enrichedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	st := newStoreWith(model.Article{
		ID:               "a1",
		ExecutiveSummary: "server exec",
		EnrichmentModel:  "srv",
		EnrichedAt:       enrichedAt,
	})
	c := NewCache(svc, st)

	e, err := c.Request(context.Background(), model.Article{ID: "a1"}, model.KindSummary, false)
	require.NoError(t, err)
	assert.Equal(t, StateDone, e.State)
	assert.Equal(t, "server exec", e.Summary.Executive)
	assert.Equal(t, "srv", e.Summary.Model)
	assert.Equal(t, enrichedAt, e.CompletedAt)
	assert.Zero(t, svc.summarizeCalls.Load())
}

func TestForceRegenerates(t *testing.T) {
	svc := &mockService{summary: model.Summary{Executive: "fresh"}}
	st := newStoreWith(model.Article{ID: "a1", ExecutiveSummary: "old"})
	c := NewCache(svc, st)

	e, err := c.Request(context.Background(), model.Article{ID: "a1"}, model.KindSummary, true)
	require.NoError(t, err)
	assert.Equal(t, "fresh", e.Summary.Executive)
	assert.Equal(t, int32(1), svc.summarizeCalls.Load())

	a, _ := st.Get("a1")
	assert.Equal(t, "fresh", a.ExecutiveSummary)
}

func TestFailureKeepsPreviousResult(t *testing.T) {
	svc := &mockService{summary: model.Summary{Executive: "first"}}
	st := newStoreWith(model.Article{ID: "a1"})
	c := NewCache(svc, st)

	_, err := c.Request(context.Background(), model.Article{ID: "a1"}, model.KindSummary, false)
	require.NoError(t, err)

	boom := errors.New("boom")
	svc.err = boom
	e, err := c.Request(context.Background(), model.Article{ID: "a1"}, model.KindSummary, true)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, StateFailed, e.State)
	require.NotNil(t, e.Summary)
	assert.Equal(t, "first", e.Summary.Executive)

	a, _ := st.Get("a1")
	assert.Equal(t, "first", a.ExecutiveSummary)

	// A plain request still serves the kept result.
	e, err = c.Request(context.Background(), model.Article{ID: "a1"}, model.KindSummary, false)
	require.NoError(t, err)
	assert.Equal(t, "first", e.Summary.Executive)
	assert.Equal(t, int32(2), svc.summarizeCalls.Load())
}

func TestUnconfiguredIsNotCached(t *testing.T) {
	c := NewCache(Unconfigured{}, newStoreWith(model.Article{ID: "a1"}))

	e, err := c.Request(context.Background(), model.Article{ID: "a1"}, model.KindIntelligence, false)
	require.ErrorIs(t, err, ErrUnconfigured)
	assert.Equal(t, StateFailed, e.State)
	assert.False(t, e.HasResult())

	_, err = c.Request(context.Background(), model.Article{ID: "a1"}, model.KindIntelligence, false)
	require.ErrorIs(t, err, ErrUnconfigured)
}

func TestCancelledContextClearsPending(t *testing.T) {
	svc := &mockService{gate: make(chan struct{})}
	c := NewCache(svc, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Request(ctx, model.Article{ID: "a1"}, model.KindSummary, false)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateFailed, c.State("a1", model.KindSummary).State)
}

func TestRequestValidatesInput(t *testing.T) {
	c := NewCache(&mockService{}, nil)

	_, err := c.Request(context.Background(), model.Article{}, model.KindSummary, false)
	assert.Error(t, err)

	_, err = c.Request(context.Background(), model.Article{ID: "a1"}, "bogus", false)
	assert.Error(t, err)
}

func TestRoundTripThroughReplaceAll(t *testing.T) {
	svc := &mockService{summary: model.Summary{Executive: "exec"}}
	st := articles.NewStore()
	c := NewCache(svc, st)
	st.SetOverlay(c)
	st.ReplaceAll([]model.Article{{ID: "a1"}})

	_, err := c.Request(context.Background(), model.Article{ID: "a1"}, model.KindSummary, false)
	require.NoError(t, err)

	// A refresh delivers the record without enrichment; the overlay puts it back.
	st.ReplaceAll([]model.Article{{ID: "a1", Title: "updated"}})
	a, ok := st.Get("a1")
	require.True(t, ok)
	assert.Equal(t, "updated", a.Title)
	assert.Equal(t, "exec", a.ExecutiveSummary)

	_, err = c.Request(context.Background(), a, model.KindSummary, false)
	require.NoError(t, err)
	assert.Equal(t, int32(1), svc.summarizeCalls.Load())
}

func TestOverlayPrefersNewerResult(t *testing.T) {
	svc := &mockService{summary: model.Summary{Executive: "local"}}
	c := NewCache(svc, nil)
	_, err := c.Request(context.Background(), model.Article{ID: "a1"}, model.KindSummary, false)
	require.NoError(t, err)
	localAt := c.State("a1", model.KindSummary).CompletedAt

	older := c.Overlay(model.Article{ID: "a1", ExecutiveSummary: "server", EnrichedAt: localAt.Add(-time.Hour)})
	assert.Equal(t, "local", older.ExecutiveSummary)

	tie := c.Overlay(model.Article{ID: "a1", ExecutiveSummary: "server", EnrichedAt: localAt})
	assert.Equal(t, "server", tie.ExecutiveSummary)
	assert.Equal(t, "server", c.State("a1", model.KindSummary).Summary.Executive)
}

func TestOnChangeSeesPendingThenDone(t *testing.T) {
	svc := &mockService{summary: model.Summary{Executive: "exec"}}
	c := NewCache(svc, nil)

	var mu sync.Mutex
	var states []State
	c.OnChange(func(id string, kind model.EnrichKind, e Entry) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, e.State)
	})

	_, err := c.Request(context.Background(), model.Article{ID: "a1"}, model.KindSummary, false)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StatePending, StateDone}, states)
}

func TestIntelligenceFollowUpRead(t *testing.T) {
	svc := &mockService{
		extractRaw: `{"success": true, "message": "queued"}`,
		readRaw:    `{"indicators":[{"type":"domain","value":"evil.example"}],"techniques":[{"technique_id":"T1566","name":"Phishing"}]}`,
	}
	c := NewCache(svc, nil)

	e, err := c.Request(context.Background(), model.Article{ID: "a1"}, model.KindIntelligence, false)
	require.NoError(t, err)
	require.NotNil(t, e.Intelligence)
	assert.Equal(t, 2, e.Intelligence.Total)
	assert.Equal(t, int32(1), svc.readCalls.Load())
}

func TestExtractOptionsArePassedThrough(t *testing.T) {
	svc := &mockService{extractRaw: `{"indicators":[],"techniques":[]}`}
	c := NewCache(svc, nil)

	_, err := c.Request(context.Background(), model.Article{ID: "a1"}, model.KindIntelligence, false)
	require.NoError(t, err)
	assert.Equal(t, ExtractOptions{UseAI: true, Save: true}, *svc.lastOpts.Load())

	c.SetExtractOptions(ExtractOptions{UseAI: false, Save: true})
	_, err = c.Request(context.Background(), model.Article{ID: "a1"}, model.KindIntelligence, true)
	require.NoError(t, err)
	assert.Equal(t, ExtractOptions{UseAI: false, Save: true}, *svc.lastOpts.Load())
}
