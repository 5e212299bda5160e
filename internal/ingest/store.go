package ingest

import (
	"context"
	"errors"
	"time"

	"horse.fit/storyline/internal/news"
)

// ErrStoreUnavailable wraps every storage failure surfaced by IngestOne and Sweep.
var ErrStoreUnavailable = errors.New("story store unavailable")

// Store is the durable side of the hash deduplicator. WithinTx runs fn in one
// transaction, committing when fn returns nil and rolling back otherwise.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx StoryTx) error) error
	DeleteStoriesOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// StoryTx holds the per-item operations. Implementations must make CreateStory
// and UpsertSource insert-on-conflict so concurrent writers converge.
type StoryTx interface {
	// FindActiveStoryByHash returns the active story for hash, without sources.
	FindActiveStoryByHash(ctx context.Context, hash string) (news.Story, bool, error)
	// CreateStory inserts story with source_count 1 and attaches first. created
	// is false when another writer already holds an active story for the hash.
	CreateStory(ctx context.Context, story news.Story, first news.SourceRecord) (news.Story, bool, error)
	// UpsertSource attaches rec unless (storyID, source_url) already exists.
	UpsertSource(ctx context.Context, storyID string, rec news.SourceRecord) (bool, error)
	// IncrementAndTouch bumps source_count, moves last_updated_at forward to at
	// and fills image_url when the story has none.
	IncrementAndTouch(ctx context.Context, storyID string, at time.Time, imageURL string) error
	ArchiveStory(ctx context.Context, storyID string, at time.Time) error
}
