package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"horse.fit/storyline/internal/ingest"
	"horse.fit/storyline/internal/news"
)

const storyColumns = `
	s.story_id,
	s.story_uuid::text,
	s.content_hash,
	s.headline,
	s.summary,
	s.category,
	s.country_scope,
	s.image_url,
	s.status::text,
	s.first_published_at,
	s.last_updated_at,
	s.source_count`

var _ ingest.Store = (*Pool)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStory(row rowScanner) (int64, news.Story, error) {
	var (
		storyID  int64
		story    news.Story
		imageURL *string
		status   string
	)
	if err := row.Scan(
		&storyID,
		&story.ID,
		&story.ContentHash,
		&story.Headline,
		&story.Summary,
		&story.Category,
		&story.CountryScope,
		&imageURL,
		&status,
		&story.FirstPublishedAt,
		&story.LastUpdatedAt,
		&story.SourceCount,
	); err != nil {
		return 0, news.Story{}, err
	}
	if imageURL != nil {
		story.ImageURL = *imageURL
	}
	story.Status = news.StoryStatus(status)
	story.FirstPublishedAt = story.FirstPublishedAt.UTC()
	story.LastUpdatedAt = story.LastUpdatedAt.UTC()
	return storyID, story, nil
}

// WithinTx runs fn in one transaction. Any error from fn rolls everything back.
func (p *Pool) WithinTx(ctx context.Context, fn func(tx ingest.StoryTx) error) error {
	tx, err := p.BeginTx(ctx, TxOptions{})
	if err != nil {
		return fmt.Errorf("begin story tx: %w", err)
	}
	if err := fn(&storyTx{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("commit story tx: %w", err)
	}
	return nil
}

type storyTx struct {
	tx Tx
}

func (t *storyTx) FindActiveStoryByHash(ctx context.Context, hash string) (news.Story, bool, error) {
	q := `
SELECT` + storyColumns + `
FROM storyline.stories s
WHERE s.content_hash = $1
  AND s.status = 'active'
LIMIT 1
FOR UPDATE
`
	_, story, err := scanStory(t.tx.QueryRow(ctx, q, hash))
	if err != nil {
		if IsNoRows(err) {
			return news.Story{}, false, nil
		}
		return news.Story{}, false, fmt.Errorf("query active story by hash: %w", err)
	}
	return story, true, nil
}

func (t *storyTx) CreateStory(ctx context.Context, story news.Story, first news.SourceRecord) (news.Story, bool, error) {
	const q = `
INSERT INTO storyline.stories (
	content_hash,
	headline,
	summary,
	category,
	country_scope,
	image_url,
	status,
	first_published_at,
	last_updated_at,
	source_count
)
VALUES ($1, $2, $3, $4, $5, $6, 'active', $7, $7, 1)
ON CONFLICT (content_hash) WHERE status = 'active' DO NOTHING
RETURNING story_id, story_uuid::text
`
	published := story.FirstPublishedAt.UTC()
	var storyID int64
	if err := t.tx.QueryRow(
		ctx,
		q,
		story.ContentHash,
		story.Headline,
		story.Summary,
		story.Category,
		story.CountryScope,
		nullableString(story.ImageURL),
		published,
	).Scan(&storyID, &story.ID); err != nil {
		if IsNoRows(err) {
			return news.Story{}, false, nil
		}
		return news.Story{}, false, fmt.Errorf("insert story: %w", err)
	}

	if _, err := insertSourceTx(ctx, t.tx, storyID, first); err != nil {
		return news.Story{}, false, err
	}

	story.Status = news.StoryStatusActive
	story.FirstPublishedAt = published
	story.LastUpdatedAt = published
	story.SourceCount = 1
	return story, true, nil
}

func (t *storyTx) UpsertSource(ctx context.Context, storyID string, rec news.SourceRecord) (bool, error) {
	const q = `
INSERT INTO storyline.story_sources (
	story_id,
	source_name,
	source_url,
	published_at,
	description
)
SELECT s.story_id, $2, $3, $4, $5
FROM storyline.stories s
WHERE s.story_uuid = $1::uuid
ON CONFLICT (story_id, source_url) DO NOTHING
`
	tag, err := t.tx.Exec(ctx, q, storyID, rec.SourceName, rec.SourceURL, rec.PublishedAt.UTC(), rec.Description)
	if err != nil {
		return false, fmt.Errorf("upsert story source: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (t *storyTx) IncrementAndTouch(ctx context.Context, storyID string, at time.Time, imageURL string) error {
	const q = `
UPDATE storyline.stories
SET
	source_count = source_count + 1,
	last_updated_at = GREATEST(last_updated_at, $2),
	image_url = COALESCE(NULLIF(image_url, ''), $3),
	updated_at = now()
WHERE story_uuid = $1::uuid
`
	tag, err := t.tx.Exec(ctx, q, storyID, at.UTC(), nullableString(imageURL))
	if err != nil {
		return fmt.Errorf("update story aggregate: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("update story aggregate: story %s not found", storyID)
	}
	return nil
}

func (t *storyTx) ArchiveStory(ctx context.Context, storyID string, at time.Time) error {
	const q = `
UPDATE storyline.stories
SET
	status = 'archived',
	archived_at = $2,
	updated_at = now()
WHERE story_uuid = $1::uuid
  AND status = 'active'
`
	if _, err := t.tx.Exec(ctx, q, storyID, at.UTC()); err != nil {
		return fmt.Errorf("archive story: %w", err)
	}
	return nil
}

func insertSourceTx(ctx context.Context, tx Tx, storyID int64, rec news.SourceRecord) (bool, error) {
	const q = `
INSERT INTO storyline.story_sources (
	story_id,
	source_name,
	source_url,
	published_at,
	description
)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (story_id, source_url) DO NOTHING
`
	tag, err := tx.Exec(ctx, q, storyID, rec.SourceName, rec.SourceURL, rec.PublishedAt.UTC(), rec.Description)
	if err != nil {
		return false, fmt.Errorf("insert story source: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteStoriesOlderThan removes stories first published before cutoff together with their sources.
func (p *Pool) DeleteStoriesOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := p.BeginTx(ctx, TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin sweep tx: %w", err)
	}

	const deleteSources = `
DELETE FROM storyline.story_sources ss
USING storyline.stories s
WHERE ss.story_id = s.story_id
  AND s.first_published_at < $1
`
	if _, err := tx.Exec(ctx, deleteSources, cutoff.UTC()); err != nil {
		_ = tx.Rollback(ctx)
		return 0, fmt.Errorf("delete expired story sources: %w", err)
	}

	const deleteStories = `
DELETE FROM storyline.stories
WHERE first_published_at < $1
`
	tag, err := tx.Exec(ctx, deleteStories, cutoff.UTC())
	if err != nil {
		_ = tx.Rollback(ctx)
		return 0, fmt.Errorf("delete expired stories: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return 0, fmt.Errorf("commit sweep tx: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListActiveStories returns active stories first published at or after since,
// most recently updated first, each with its sources oldest first.
func (p *Pool) ListActiveStories(ctx context.Context, since time.Time, limit int) ([]news.Story, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	q := `
SELECT` + storyColumns + `
FROM storyline.stories s
WHERE s.status = 'active'
  AND s.first_published_at >= $1
ORDER BY s.last_updated_at DESC, s.story_id DESC
LIMIT $2
`
	rows, err := p.Query(ctx, q, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("query active stories: %w", err)
	}
	defer rows.Close()

	stories := make([]news.Story, 0, limit)
	index := make(map[int64]int, limit)
	for rows.Next() {
		storyID, story, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan active story: %w", err)
		}
		index[storyID] = len(stories)
		stories = append(stories, story)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active stories: %w", err)
	}
	if len(stories) == 0 {
		return stories, nil
	}

	const sourcesQuery = `
SELECT
	ss.story_id,
	ss.source_name,
	ss.source_url,
	ss.published_at,
	ss.description
FROM storyline.story_sources ss
JOIN storyline.stories s
	ON s.story_id = ss.story_id
WHERE s.status = 'active'
  AND s.first_published_at >= $1
ORDER BY ss.story_id, ss.published_at ASC, ss.story_source_id ASC
`
	sourceRows, err := p.Query(ctx, sourcesQuery, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query active story sources: %w", err)
	}
	defer sourceRows.Close()

	for sourceRows.Next() {
		var (
			storyID int64
			rec     news.SourceRecord
		)
		if err := sourceRows.Scan(&storyID, &rec.SourceName, &rec.SourceURL, &rec.PublishedAt, &rec.Description); err != nil {
			return nil, fmt.Errorf("scan active story source: %w", err)
		}
		i, ok := index[storyID]
		if !ok {
			continue
		}
		rec.PublishedAt = rec.PublishedAt.UTC()
		stories[i].Sources = append(stories[i].Sources, rec)
	}
	if err := sourceRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active story sources: %w", err)
	}
	return stories, nil
}

// GetStory returns one story by id with its sources. Missing stories return ErrNoRows.
func (p *Pool) GetStory(ctx context.Context, storyID string) (news.Story, error) {
	trimmed := strings.TrimSpace(storyID)
	if trimmed == "" {
		return news.Story{}, fmt.Errorf("story id is required")
	}
	if _, err := uuid.Parse(trimmed); err != nil {
		return news.Story{}, ErrNoRows
	}

	q := `
SELECT` + storyColumns + `
FROM storyline.stories s
WHERE s.story_uuid = $1::uuid
`
	internalID, story, err := scanStory(p.QueryRow(ctx, q, trimmed))
	if err != nil {
		if errors.Is(err, ErrNoRows) {
			return news.Story{}, ErrNoRows
		}
		return news.Story{}, fmt.Errorf("query story: %w", err)
	}

	const sourcesQuery = `
SELECT
	source_name,
	source_url,
	published_at,
	description
FROM storyline.story_sources
WHERE story_id = $1
ORDER BY published_at ASC, story_source_id ASC
`
	rows, err := p.Query(ctx, sourcesQuery, internalID)
	if err != nil {
		return news.Story{}, fmt.Errorf("query story sources: %w", err)
	}
	defer rows.Close()

	story.Sources = make([]news.SourceRecord, 0, story.SourceCount)
	for rows.Next() {
		var rec news.SourceRecord
		if err := rows.Scan(&rec.SourceName, &rec.SourceURL, &rec.PublishedAt, &rec.Description); err != nil {
			return news.Story{}, fmt.Errorf("scan story source: %w", err)
		}
		rec.PublishedAt = rec.PublishedAt.UTC()
		story.Sources = append(story.Sources, rec)
	}
	if err := rows.Err(); err != nil {
		return news.Story{}, fmt.Errorf("iterate story sources: %w", err)
	}
	return story, nil
}

func nullableString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
