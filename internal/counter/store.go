// Package counter keeps the global generation counters. Unlike session
// state these survive session resets and process restarts.
package counter

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	KeyChats    = "chat_messages"
	KeyImages   = "images_generated"
	KeyVideos   = "videos_generated"
	KeyEnhanced = "enhanced_prompts"
)

// Store is a SQLite-backed counter store.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Stats is a snapshot of all global counters.
type Stats struct {
	TotalChats           int64         `json:"total_chats"`
	TotalImages          int64         `json:"total_images"`
	TotalVideos          int64         `json:"total_videos"`
	TotalEnhancedPrompts int64         `json:"total_enhanced_prompts"`
	TotalVideoDuration   int64         `json:"total_video_duration_seconds"`
	AverageVideoDuration float64       `json:"average_video_duration_seconds"`
	VideosByDuration     map[int]int64 `json:"video_count_by_duration"`
	FirstUsed            time.Time     `json:"first_used"`
	LastUpdated          time.Time     `json:"last_updated"`
}

// Open opens (or creates) the counter database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	createCounters := `
	CREATE TABLE IF NOT EXISTS counters (
		name TEXT PRIMARY KEY,
		value INTEGER NOT NULL DEFAULT 0
	);`

	createVideoDurations := `
	CREATE TABLE IF NOT EXISTS video_durations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		duration_seconds INTEGER NOT NULL,
		generated_at DATETIME DEFAULT (datetime('now'))
	);`

	createMeta := `
	CREATE TABLE IF NOT EXISTS meta (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`

	for _, stmt := range []string{createCounters, createVideoDurations, createMeta} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	// Record first use once.
	if _, err := db.Exec(
		`INSERT OR IGNORE INTO meta (name, value) VALUES ('first_used', ?)`,
		time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to record first use: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) increment(name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO counters (name, value) VALUES (?, 1)
		 ON CONFLICT(name) DO UPDATE SET value = value + 1`,
		name,
	); err != nil {
		return 0, fmt.Errorf("failed to increment %s: %w", name, err)
	}

	var value int64
	if err := tx.QueryRow(`SELECT value FROM counters WHERE name = ?`, name).Scan(&value); err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", name, err)
	}

	if _, err := tx.Exec(
		`INSERT INTO meta (name, value) VALUES ('last_updated', ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value`,
		time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return 0, fmt.Errorf("failed to touch last_updated: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return value, nil
}

// IncrementChats bumps the global chat message counter.
func (s *Store) IncrementChats() (int64, error) { return s.increment(KeyChats) }

// IncrementImages bumps the global image counter.
func (s *Store) IncrementImages() (int64, error) { return s.increment(KeyImages) }

// IncrementEnhanced bumps the global enhanced prompt counter.
func (s *Store) IncrementEnhanced() (int64, error) { return s.increment(KeyEnhanced) }

// IncrementVideos bumps the global video counter and records the duration.
func (s *Store) IncrementVideos(durationSeconds int) (int64, error) {
	count, err := s.increment(KeyVideos)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(
		`INSERT INTO video_durations (duration_seconds) VALUES (?)`,
		durationSeconds,
	); err != nil {
		return 0, fmt.Errorf("failed to record video duration: %w", err)
	}
	return count, nil
}

// Get returns the current value of a counter.
func (s *Store) Get(name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var value int64
	err := s.db.QueryRow(`SELECT value FROM counters WHERE name = ?`, name).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return value, nil
}

// Statistics returns a snapshot of every counter plus the per-duration video
// breakdown.
func (s *Store) Statistics() (Stats, error) {
	var stats Stats
	var err error

	if stats.TotalChats, err = s.Get(KeyChats); err != nil {
		return stats, err
	}
	if stats.TotalImages, err = s.Get(KeyImages); err != nil {
		return stats, err
	}
	if stats.TotalVideos, err = s.Get(KeyVideos); err != nil {
		return stats, err
	}
	if stats.TotalEnhancedPrompts, err = s.Get(KeyEnhanced); err != nil {
		return stats, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stats.VideosByDuration = make(map[int]int64)
	rows, err := s.db.Query(
		`SELECT duration_seconds, COUNT(*) FROM video_durations GROUP BY duration_seconds`,
	)
	if err != nil {
		return stats, fmt.Errorf("failed to read video durations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var duration int
		var count int64
		if err := rows.Scan(&duration, &count); err != nil {
			return stats, fmt.Errorf("failed to scan video durations: %w", err)
		}
		stats.VideosByDuration[duration] = count
		stats.TotalVideoDuration += int64(duration) * count
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("failed to read video durations: %w", err)
	}
	if stats.TotalVideos > 0 {
		stats.AverageVideoDuration = float64(stats.TotalVideoDuration) / float64(stats.TotalVideos)
	}

	for name, dst := range map[string]*time.Time{
		"first_used":   &stats.FirstUsed,
		"last_updated": &stats.LastUpdated,
	} {
		var raw string
		err := s.db.QueryRow(`SELECT value FROM meta WHERE name = ?`, name).Scan(&raw)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return stats, fmt.Errorf("failed to read %s: %w", name, err)
		}
		if t, perr := time.Parse(time.RFC3339, raw); perr == nil {
			*dst = t
		}
	}

	return stats, nil
}
