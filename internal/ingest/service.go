// Package ingest merges incoming items into durable stories by exact headline hash.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"horse.fit/storyline/internal/globaltime"
	"horse.fit/storyline/internal/news"
	"horse.fit/storyline/internal/textnorm"
)

const DefaultRetention = 48 * time.Hour

type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeMerged  Outcome = "merged"
	OutcomeSkipped Outcome = "skipped"
)

const (
	ReasonStale     = "stale"
	ReasonMalformed = "malformed"
)

type Result struct {
	Outcome     Outcome `json:"outcome"`
	StoryID     string  `json:"story_id,omitempty"`
	ContentHash string  `json:"content_hash,omitempty"`
	Reason      string  `json:"reason,omitempty"`
	Duplicate   bool    `json:"duplicate,omitempty"`
}

type Options struct {
	Retention time.Duration
	Now       func() time.Time
}

type Service struct {
	store      Store
	normalizer *textnorm.Normalizer
	logger     zerolog.Logger
	retention  time.Duration
	now        func() time.Time
}

func NewService(store Store, normalizer *textnorm.Normalizer, logger zerolog.Logger, opts Options) *Service {
	if normalizer == nil {
		normalizer = textnorm.New(nil)
	}
	retention := opts.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}
	now := opts.Now
	if now == nil {
		now = globaltime.UTC
	}
	return &Service{
		store:      store,
		normalizer: normalizer,
		logger:     logger,
		retention:  retention,
		now:        now,
	}
}

func (s *Service) Retention() time.Duration {
	return s.retention
}

// IngestOne merges item into the story sharing its headline hash, or creates one.
func (s *Service) IngestOne(ctx context.Context, item news.RawItem, feed news.FeedMeta) (Result, error) {
	if s == nil || s.store == nil {
		return Result{}, fmt.Errorf("ingest service is not initialized")
	}

	headline := strings.TrimSpace(item.Headline)
	key := s.normalizer.HashKey(headline)
	if headline == "" || key == "" {
		s.logger.Warn().
			Str("item_id", item.ID).
			Str("source", item.SourceName).
			Str("headline", headline).
			Msg("skipping item without a usable headline")
		return Result{Outcome: OutcomeSkipped, Reason: ReasonMalformed}, nil
	}
	hash := textnorm.ContentHash(key)

	now := s.now().UTC()
	cutoff := now.Add(-s.retention)
	published := item.PublishedAt.UTC()
	if item.PublishedAt.IsZero() || published.After(now) {
		published = now
	}
	if published.Before(cutoff) {
		s.logger.Debug().
			Str("item_id", item.ID).
			Str("content_hash", hash).
			Time("published_at", published).
			Msg("skipping stale item")
		return Result{Outcome: OutcomeSkipped, ContentHash: hash, Reason: ReasonStale}, nil
	}

	if strings.TrimSpace(item.ID) == "" {
		item.ID = uuid.NewString()
	}
	rec := item.OwnSource()
	rec.PublishedAt = published
	if rec.SourceURL == "" {
		rec.SourceURL = "item:" + item.ID
	}

	category := strings.TrimSpace(item.Category)
	if category == "" {
		category = strings.TrimSpace(feed.Category)
	}
	candidate := news.Story{
		ContentHash:      hash,
		Headline:         headline,
		Summary:          strings.TrimSpace(item.Summary),
		Category:         category,
		CountryScope:     feed.CountryScope,
		ImageURL:         strings.TrimSpace(item.ImageURL),
		Status:           news.StoryStatusActive,
		FirstPublishedAt: published,
		LastUpdatedAt:    published,
		SourceCount:      1,
	}

	var result Result
	err := s.store.WithinTx(ctx, func(tx StoryTx) error {
		var err error
		result, err = s.mergeTx(ctx, tx, candidate, rec, now, cutoff)
		return err
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	s.logger.Info().
		Str("item_id", item.ID).
		Str("story_id", result.StoryID).
		Str("content_hash", hash).
		Str("outcome", string(result.Outcome)).
		Bool("duplicate", result.Duplicate).
		Msg("ingest completed")
	return result, nil
}

func (s *Service) mergeTx(
	ctx context.Context,
	tx StoryTx,
	candidate news.Story,
	rec news.SourceRecord,
	now time.Time,
	cutoff time.Time,
) (Result, error) {
	story, found, err := tx.FindActiveStoryByHash(ctx, candidate.ContentHash)
	if err != nil {
		return Result{}, fmt.Errorf("find story by hash: %w", err)
	}
	if found && story.FirstPublishedAt.Before(cutoff) {
		if err := tx.ArchiveStory(ctx, story.ID, now); err != nil {
			return Result{}, fmt.Errorf("archive story %s: %w", story.ID, err)
		}
		s.logger.Debug().Str("story_id", story.ID).Msg("archived story past retention")
		found = false
	}

	if !found {
		created, ok, err := tx.CreateStory(ctx, candidate, rec)
		if err != nil {
			return Result{}, fmt.Errorf("create story: %w", err)
		}
		if ok {
			return Result{Outcome: OutcomeCreated, StoryID: created.ID, ContentHash: candidate.ContentHash}, nil
		}

		// Another writer created the story first.
		story, found, err = tx.FindActiveStoryByHash(ctx, candidate.ContentHash)
		if err != nil {
			return Result{}, fmt.Errorf("find story after create conflict: %w", err)
		}
		if !found {
			return Result{}, fmt.Errorf("story for hash %s vanished after create conflict", candidate.ContentHash)
		}
	}

	inserted, err := tx.UpsertSource(ctx, story.ID, rec)
	if err != nil {
		return Result{}, fmt.Errorf("upsert source: %w", err)
	}
	if !inserted {
		return Result{Outcome: OutcomeMerged, StoryID: story.ID, ContentHash: candidate.ContentHash, Duplicate: true}, nil
	}
	if err := tx.IncrementAndTouch(ctx, story.ID, now, candidate.ImageURL); err != nil {
		return Result{}, fmt.Errorf("update story aggregate: %w", err)
	}
	return Result{Outcome: OutcomeMerged, StoryID: story.ID, ContentHash: candidate.ContentHash}, nil
}

// Sweep removes stories first published before the retention horizon.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	if s == nil || s.store == nil {
		return 0, fmt.Errorf("ingest service is not initialized")
	}
	cutoff := s.now().UTC().Add(-s.retention)
	deleted, err := s.store.DeleteStoriesOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: delete stories older than %s: %w", ErrStoreUnavailable, cutoff.Format(time.RFC3339), err)
	}
	if deleted > 0 {
		s.logger.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("retention sweep removed stories")
	}
	return deleted, nil
}
