package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelbrown/watchfloor/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenFileCreatesTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watchfloor.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.ToggleSaved("a")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	saved, err := s.SavedIDs()
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"a": true}, saved)
}

func TestToggleSaved(t *testing.T) {
	s := openTestStore(t)

	saved, err := s.ToggleSaved("a1")
	require.NoError(t, err)
	assert.True(t, saved)

	_, err = s.ToggleSaved("a2")
	require.NoError(t, err)

	ids, err := s.SavedIDs()
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"a1": true, "a2": true}, ids)

	saved, err = s.ToggleSaved("a1")
	require.NoError(t, err)
	assert.False(t, saved)

	ids, err = s.SavedIDs()
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"a2": true}, ids)

	_, err = s.ToggleSaved("")
	assert.Error(t, err)
}

func TestPreferences(t *testing.T) {
	s := openTestStore(t)

	_, ok, err := s.GetPref("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetPref("theme", "dark"))
	require.NoError(t, s.SetPref("theme", "light"))
	v, ok, err := s.GetPref("theme")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "light", v)

	assert.True(t, s.GetBool("auto", true))
	require.NoError(t, s.SetBool("auto", false))
	assert.False(t, s.GetBool("auto", true))

	assert.Equal(t, time.Minute, s.GetDuration("interval", time.Minute))
	require.NoError(t, s.SetDuration("interval", 90*time.Second))
	assert.Equal(t, 90*time.Second, s.GetDuration("interval", time.Minute))

	require.NoError(t, s.SetPref("interval", "soon"))
	assert.Equal(t, time.Minute, s.GetDuration("interval", time.Minute))
}

func TestJSONPreferences(t *testing.T) {
	s := openTestStore(t)

	type criteria struct {
		Scope  string `json:"scope"`
		Unread bool   `json:"unread"`
	}
	var got criteria
	ok, err := s.GetJSON("criteria", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetJSON("criteria", criteria{Scope: "saved", Unread: true}))
	ok, err = s.GetJSON("criteria", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, criteria{Scope: "saved", Unread: true}, got)

	require.NoError(t, s.SetPref("criteria", "{broken"))
	_, err = s.GetJSON("criteria", &got)
	assert.Error(t, err)
}

func TestStatuses(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SetStatus("a", model.StatusInAnalysis))
	require.NoError(t, s.SetStatus("a", model.StatusResolved))
	assert.Error(t, s.SetStatus("b", "BOGUS"))

	got, err := s.Statuses([]string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, map[string]model.Status{"a": model.StatusResolved}, got)
}

func TestUpdateStatusHonoursContext(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.UpdateStatus(context.Background(), "a", model.StatusInAnalysis))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.UpdateStatus(ctx, "a", model.StatusResolved), context.Canceled)

	got, err := s.Statuses([]string{"a"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusInAnalysis, got["a"])
}

func TestFirstSeenKeepsEarliest(t *testing.T) {
	s := openTestStore(t)
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	got, err := s.FirstSeen([]string{"a"}, t1)
	require.NoError(t, err)
	assert.True(t, got["a"].Equal(t1))

	got, err = s.FirstSeen([]string{"a", "b"}, t2)
	require.NoError(t, err)
	assert.True(t, got["a"].Equal(t1))
	assert.True(t, got["b"].Equal(t2))
}

func TestFirstSeenDoesNotClearStatus(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SetStatus("a", model.StatusResolved))

	_, err := s.FirstSeen([]string{"a"}, time.Now())
	require.NoError(t, err)

	got, err := s.Statuses([]string{"a"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusResolved, got["a"])
}

func TestManyIDsAreChunked(t *testing.T) {
	s := openTestStore(t)

	ids := make([]string, maxParams*2+7)
	for i := range ids {
		ids[i] = fmt.Sprintf("id-%d", i)
	}
	got, err := s.FirstSeen(ids, time.Now())
	require.NoError(t, err)
	assert.Len(t, got, len(ids))
}
