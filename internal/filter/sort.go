package filter

import (
	"slices"
	"strings"
	"time"

	"github.com/abelbrown/watchfloor/internal/model"
)

// sameDay is the window inside which secondary keys may override recency.
const sameDay = 24 * time.Hour

// rankKey holds everything the comparator looks at, extracted once per
// article.
type rankKey struct {
	at       time.Time
	priority bool
	source   string
	unread   bool
	id       string
}

func rankKeys(a model.Article) rankKey {
	return rankKey{
		at:       a.DisplayTime(),
		priority: a.HighPriority,
		source:   strings.ToLower(a.SourceName),
		unread:   a.Unread(),
		id:       a.ID,
	}
}

// compare orders two articles for display. Negative means a goes first.
//
// More than 24h apart: newest first, nothing else considered.
// Exactly equal: priority (priority mode), source ascending (source mode),
// unread first, then id.
// Otherwise: priority (priority mode), unread first, then newest first.
func compare(a, b rankKey, mode SortMode) int {
	d := a.at.Sub(b.at)
	switch {
	case d == 0:
		return compareExact(a, b, mode)
	case d > sameDay || d < -sameDay:
		return b.at.Compare(a.at)
	}
	if mode == SortPriority {
		if c := preferTrue(a.priority, b.priority); c != 0 {
			return c
		}
	}
	if c := preferTrue(a.unread, b.unread); c != 0 {
		return c
	}
	return b.at.Compare(a.at)
}

func compareExact(a, b rankKey, mode SortMode) int {
	if mode == SortPriority {
		if c := preferTrue(a.priority, b.priority); c != 0 {
			return c
		}
	}
	if mode == SortSource {
		if c := strings.Compare(a.source, b.source); c != 0 {
			return c
		}
	}
	if c := preferTrue(a.unread, b.unread); c != 0 {
		return c
	}
	return strings.Compare(a.id, b.id)
}

func preferTrue(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return -1
	}
	return 1
}

// Sort orders articles in place.
//
// compare is not transitive across chains of same-day neighbours, so it is
// not handed to a general sort. Articles are first ordered newest first
// (exact ties broken by compareExact), then an insertion pass lets each
// article move ahead of newer neighbours only while it is within 24h of
// each of them and compare ranks it first. An article never passes one that
// is more than 24h newer.
func Sort(articles []model.Article, mode SortMode) {
	if len(articles) < 2 {
		return
	}
	type ranked struct {
		key rankKey
		a   model.Article
	}
	rs := make([]ranked, len(articles))
	for i, a := range articles {
		rs[i] = ranked{key: rankKeys(a), a: a}
	}

	slices.SortFunc(rs, func(x, y ranked) int {
		if c := y.key.at.Compare(x.key.at); c != 0 {
			return c
		}
		return compareExact(x.key, y.key, mode)
	})

	for i := 1; i < len(rs); i++ {
		for j := i; j > 0; j-- {
			prev, cur := rs[j-1].key, rs[j].key
			d := prev.at.Sub(cur.at)
			if d == 0 || d > sameDay || d < -sameDay {
				break
			}
			if compare(cur, prev, mode) >= 0 {
				break
			}
			rs[j-1], rs[j] = rs[j], rs[j-1]
		}
	}

	for i, r := range rs {
		articles[i] = r.a
	}
}
