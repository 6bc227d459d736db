// Package store provides SQLite persistence for state that outlives a
// session: the saved-article set, user preferences, and the triage status
// and first-seen time of articles read directly from feeds.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/abelbrown/watchfloor/internal/model"
)

// maxParams bounds the number of ids bound into one IN (...) query.
const maxParams = 500

// Store handles SQLite persistence. NOT an interface - concrete type.
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Store struct {
	db *sql.DB
	mu sync.RWMutex // Protects all database operations
}

// Open creates a new Store with the given database path.
// Creates tables if they don't exist.
// Uses WAL mode for better concurrent read performance (file-based DBs only).
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// For in-memory databases, use shared cache mode so all connections
		// in the pool see the same database
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// For in-memory databases, limit to 1 connection to avoid issues
	// with multiple connections getting different databases
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db}

	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return s, nil
}

// createTables creates the required tables and indexes if they don't exist.
func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS saved_articles (
		article_id TEXT PRIMARY KEY,
		saved_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS preferences (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS article_state (
		article_id TEXT PRIMARY KEY,
		first_seen INTEGER NOT NULL,
		status TEXT
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
// Thread-safe: acquires write lock to prevent closing during in-flight operations.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// ToggleSaved flips the saved flag of an article and returns the new value.
func (s *Store) ToggleSaved(articleID string) (bool, error) {
	if articleID == "" {
		return false, errors.New("toggle saved: empty article id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM saved_articles WHERE article_id = ?`, articleID)
	if err != nil {
		return false, fmt.Errorf("unsave %s: %w", articleID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return false, nil
	}
	if _, err := s.db.Exec(`INSERT INTO saved_articles (article_id, saved_at) VALUES (?, ?)`,
		articleID, time.Now().UnixNano()); err != nil {
		return false, fmt.Errorf("save %s: %w", articleID, err)
	}
	return true, nil
}

// SavedIDs returns the saved-article set.
func (s *Store) SavedIDs() (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT article_id FROM saved_articles`)
	if err != nil {
		return nil, fmt.Errorf("query saved: %w", err)
	}
	defer rows.Close()

	saved := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan saved: %w", err)
		}
		saved[id] = true
	}
	return saved, rows.Err()
}

// GetPref returns a preference value. ok is false if it was never set.
func (s *Store) GetPref(key string) (value string, ok bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	err = s.db.QueryRow(`SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get pref %s: %w", key, err)
	}
	return value, true, nil
}

// SetPref stores a preference value.
func (s *Store) SetPref(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("set pref %s: %w", key, err)
	}
	return nil
}

// GetJSON decodes a JSON preference into v. ok is false if unset.
func (s *Store) GetJSON(key string, v any) (ok bool, err error) {
	raw, ok, err := s.GetPref(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("decode pref %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores v as a JSON preference.
func (s *Store) SetJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode pref %s: %w", key, err)
	}
	return s.SetPref(key, string(data))
}

// GetBool returns a boolean preference, or def if unset or unparseable.
func (s *Store) GetBool(key string, def bool) bool {
	raw, ok, err := s.GetPref(key)
	if err != nil || !ok {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return b
}

// SetBool stores a boolean preference.
func (s *Store) SetBool(key string, v bool) error {
	return s.SetPref(key, strconv.FormatBool(v))
}

// GetDuration returns a duration preference, or def if unset or
// unparseable.
func (s *Store) GetDuration(key string, def time.Duration) time.Duration {
	raw, ok, err := s.GetPref(key)
	if err != nil || !ok {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

// SetDuration stores a duration preference.
func (s *Store) SetDuration(key string, d time.Duration) error {
	return s.SetPref(key, d.String())
}

// SetStatus records a local triage status for an article.
func (s *Store) SetStatus(articleID string, status model.Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO article_state (article_id, first_seen, status) VALUES (?, ?, ?)
		ON CONFLICT(article_id) DO UPDATE SET status = excluded.status
	`, articleID, time.Now().UnixNano(), string(status))
	if err != nil {
		return fmt.Errorf("set status %s: %w", articleID, err)
	}
	return nil
}

// UpdateStatus is SetStatus behind the status collaborator signature used
// in direct RSS mode, where there is no server to confirm the transition.
func (s *Store) UpdateStatus(ctx context.Context, articleID string, status model.Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.SetStatus(articleID, status)
}

// Statuses returns the local status of each id that has one.
func (s *Store) Statuses(ids []string) (map[string]model.Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]model.Status)
	err := inChunks(ids, func(chunk []string) error {
		rows, err := s.db.Query(
			`SELECT article_id, status FROM article_state WHERE status IS NOT NULL AND article_id IN (`+placeholders(len(chunk))+`)`,
			toArgs(chunk)...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id, status string
			if err := rows.Scan(&id, &status); err != nil {
				return err
			}
			out[id] = model.Status(status)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("query statuses: %w", err)
	}
	return out, nil
}

// FirstSeen records now as the first-seen time of ids not seen before and
// returns the first-seen time of every id.
func (s *Store) FirstSeen(ids []string, now time.Time) (map[string]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO article_state (article_id, first_seen) VALUES (?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()
	for _, id := range ids {
		if _, err := stmt.Exec(id, now.UnixNano()); err != nil {
			return nil, fmt.Errorf("record first seen %s: %w", id, err)
		}
	}

	out := make(map[string]time.Time, len(ids))
	err = inChunks(ids, func(chunk []string) error {
		rows, err := tx.Query(
			`SELECT article_id, first_seen FROM article_state WHERE article_id IN (`+placeholders(len(chunk))+`)`,
			toArgs(chunk)...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			var ns int64
			if err := rows.Scan(&id, &ns); err != nil {
				return err
			}
			out[id] = time.Unix(0, ns)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("query first seen: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

func inChunks(ids []string, fn func([]string) error) error {
	for start := 0; start < len(ids); start += maxParams {
		end := min(start+maxParams, len(ids))
		if err := fn(ids[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
