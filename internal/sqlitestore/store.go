// Package sqlitestore is the embedded story store backed by modernc.org/sqlite.
// A single connection serializes writers, so no row locking is needed.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"horse.fit/storyline/internal/globaltime"
	"horse.fit/storyline/internal/ingest"
	"horse.fit/storyline/internal/news"
)

// Timestamps are stored as fixed-width UTC text so string order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var _ ingest.Store = (*Store)(nil)

type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path. ":memory:" gives a private in-memory store.
func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	if path == ":memory:" {
		dsn = "file::memory:?_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite schema: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS stories (
			id TEXT PRIMARY KEY,
			content_hash TEXT NOT NULL,
			headline TEXT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			country_scope INTEGER NOT NULL DEFAULT 0,
			image_url TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'active',
			first_published_at TEXT NOT NULL,
			last_updated_at TEXT NOT NULL,
			source_count INTEGER NOT NULL DEFAULT 0,
			archived_at TEXT,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS story_sources (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			story_id TEXT NOT NULL,
			source_name TEXT NOT NULL,
			source_url TEXT NOT NULL,
			published_at TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			UNIQUE (story_id, source_url),
			FOREIGN KEY (story_id) REFERENCES stories(id) ON DELETE CASCADE
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_stories_active_hash ON stories(content_hash) WHERE status = 'active';`,
		`CREATE INDEX IF NOT EXISTS idx_stories_status_updated ON stories(status, last_updated_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_stories_first_published ON stories(first_published_at);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlite store is not initialized")
	}
	return s.db.PingContext(ctx)
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx ingest.StoryTx) error) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlite store is not initialized")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin story tx: %w", err)
	}
	if err := fn(&storyTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("commit story tx: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored timestamp %q: %w", value, err)
	}
	return t.UTC(), nil
}

const storyColumns = `id, content_hash, headline, summary, category, country_scope, image_url, status,
	first_published_at, last_updated_at, source_count`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStory(row rowScanner) (news.Story, error) {
	var (
		story          news.Story
		countryScope   int
		status         string
		firstPublished string
		lastUpdated    string
	)
	if err := row.Scan(
		&story.ID,
		&story.ContentHash,
		&story.Headline,
		&story.Summary,
		&story.Category,
		&countryScope,
		&story.ImageURL,
		&status,
		&firstPublished,
		&lastUpdated,
		&story.SourceCount,
	); err != nil {
		return news.Story{}, err
	}

	var err error
	if story.FirstPublishedAt, err = parseTime(firstPublished); err != nil {
		return news.Story{}, err
	}
	if story.LastUpdatedAt, err = parseTime(lastUpdated); err != nil {
		return news.Story{}, err
	}
	story.CountryScope = countryScope != 0
	story.Status = news.StoryStatus(status)
	return story, nil
}

type storyTx struct {
	tx *sql.Tx
}

func (t *storyTx) FindActiveStoryByHash(ctx context.Context, hash string) (news.Story, bool, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+storyColumns+` FROM stories WHERE content_hash = ? AND status = 'active' LIMIT 1`, hash)
	story, err := scanStory(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return news.Story{}, false, nil
		}
		return news.Story{}, false, fmt.Errorf("query active story by hash: %w", err)
	}
	return story, true, nil
}

func (t *storyTx) CreateStory(ctx context.Context, story news.Story, first news.SourceRecord) (news.Story, bool, error) {
	story.ID = uuid.NewString()
	published := formatTime(story.FirstPublishedAt)
	scope := 0
	if story.CountryScope {
		scope = 1
	}

	var id string
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO stories (
			id, content_hash, headline, summary, category, country_scope, image_url, status,
			first_published_at, last_updated_at, source_count, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, 'active', ?, ?, 1, ?)
		ON CONFLICT (content_hash) WHERE status = 'active' DO NOTHING
		RETURNING id`,
		story.ID, story.ContentHash, story.Headline, story.Summary, story.Category, scope,
		strings.TrimSpace(story.ImageURL), published, published, formatTime(globaltime.UTC()),
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return news.Story{}, false, nil
		}
		return news.Story{}, false, fmt.Errorf("insert story: %w", err)
	}

	if _, err := t.UpsertSource(ctx, id, first); err != nil {
		return news.Story{}, false, err
	}

	story.Status = news.StoryStatusActive
	story.FirstPublishedAt = story.FirstPublishedAt.UTC()
	story.LastUpdatedAt = story.FirstPublishedAt
	story.SourceCount = 1
	return story, true, nil
}

func (t *storyTx) UpsertSource(ctx context.Context, storyID string, rec news.SourceRecord) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO story_sources (story_id, source_name, source_url, published_at, description)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (story_id, source_url) DO NOTHING`,
		storyID, rec.SourceName, rec.SourceURL, formatTime(rec.PublishedAt), rec.Description,
	)
	if err != nil {
		return false, fmt.Errorf("upsert story source: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("upsert story source rows affected: %w", err)
	}
	return n == 1, nil
}

func (t *storyTx) IncrementAndTouch(ctx context.Context, storyID string, at time.Time, imageURL string) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE stories
		SET source_count = source_count + 1,
			last_updated_at = MAX(last_updated_at, ?),
			image_url = CASE WHEN image_url = '' THEN ? ELSE image_url END
		WHERE id = ?`,
		formatTime(at), strings.TrimSpace(imageURL), storyID,
	)
	if err != nil {
		return fmt.Errorf("update story aggregate: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update story aggregate rows affected: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("update story aggregate: story %s not found", storyID)
	}
	return nil
}

func (t *storyTx) ArchiveStory(ctx context.Context, storyID string, at time.Time) error {
	if _, err := t.tx.ExecContext(ctx,
		`UPDATE stories SET status = 'archived', archived_at = ? WHERE id = ? AND status = 'active'`,
		formatTime(at), storyID,
	); err != nil {
		return fmt.Errorf("archive story: %w", err)
	}
	return nil
}

// DeleteStoriesOlderThan removes stories first published before cutoff. Sources go with them.
func (s *Store) DeleteStoriesOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM stories WHERE first_published_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete expired stories: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired stories rows affected: %w", err)
	}
	return n, nil
}

// ListActiveStories returns active stories first published at or after since,
// most recently updated first, each with its sources oldest first.
func (s *Store) ListActiveStories(ctx context.Context, since time.Time, limit int) ([]news.Story, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+storyColumns+`
		FROM stories
		WHERE status = 'active' AND first_published_at >= ?
		ORDER BY last_updated_at DESC, id DESC
		LIMIT ?`,
		formatTime(since), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query active stories: %w", err)
	}
	stories := make([]news.Story, 0, limit)
	index := make(map[string]int, limit)
	for rows.Next() {
		story, err := scanStory(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan active story: %w", err)
		}
		index[story.ID] = len(stories)
		stories = append(stories, story)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate active stories: %w", err)
	}
	_ = rows.Close()
	if len(stories) == 0 {
		return stories, nil
	}

	sourceRows, err := s.db.QueryContext(ctx, `
		SELECT ss.story_id, ss.source_name, ss.source_url, ss.published_at, ss.description
		FROM story_sources ss
		JOIN stories s ON s.id = ss.story_id
		WHERE s.status = 'active' AND s.first_published_at >= ?
		ORDER BY ss.story_id, ss.published_at ASC, ss.id ASC`,
		formatTime(since),
	)
	if err != nil {
		return nil, fmt.Errorf("query active story sources: %w", err)
	}
	defer sourceRows.Close()

	for sourceRows.Next() {
		var storyID string
		rec, err := scanSource(sourceRows, &storyID)
		if err != nil {
			return nil, err
		}
		if i, ok := index[storyID]; ok {
			stories[i].Sources = append(stories[i].Sources, rec)
		}
	}
	if err := sourceRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active story sources: %w", err)
	}
	return stories, nil
}

// GetStory returns one story with its sources, or sql.ErrNoRows.
func (s *Store) GetStory(ctx context.Context, storyID string) (news.Story, error) {
	trimmed := strings.TrimSpace(storyID)
	if trimmed == "" {
		return news.Story{}, fmt.Errorf("story id is required")
	}

	story, err := scanStory(s.db.QueryRowContext(ctx, `SELECT `+storyColumns+` FROM stories WHERE id = ?`, trimmed))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return news.Story{}, sql.ErrNoRows
		}
		return news.Story{}, fmt.Errorf("query story: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT story_id, source_name, source_url, published_at, description
		FROM story_sources
		WHERE story_id = ?
		ORDER BY published_at ASC, id ASC`,
		trimmed,
	)
	if err != nil {
		return news.Story{}, fmt.Errorf("query story sources: %w", err)
	}
	defer rows.Close()

	story.Sources = make([]news.SourceRecord, 0, story.SourceCount)
	for rows.Next() {
		var ignored string
		rec, err := scanSource(rows, &ignored)
		if err != nil {
			return news.Story{}, err
		}
		story.Sources = append(story.Sources, rec)
	}
	if err := rows.Err(); err != nil {
		return news.Story{}, fmt.Errorf("iterate story sources: %w", err)
	}
	return story, nil
}

func scanSource(row rowScanner, storyID *string) (news.SourceRecord, error) {
	var (
		rec       news.SourceRecord
		published string
	)
	if err := row.Scan(storyID, &rec.SourceName, &rec.SourceURL, &published, &rec.Description); err != nil {
		return news.SourceRecord{}, fmt.Errorf("scan story source: %w", err)
	}
	t, err := parseTime(published)
	if err != nil {
		return news.SourceRecord{}, err
	}
	rec.PublishedAt = t
	return rec, nil
}
