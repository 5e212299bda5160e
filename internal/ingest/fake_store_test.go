package ingest

import (
	"context"
	"fmt"
	"time"

	"horse.fit/storyline/internal/news"
)

type fakeStory struct {
	story   news.Story
	sources map[string]news.SourceRecord
}

// fakeStore keeps stories in memory. WithinTx snapshots state and restores it
// when fn fails, so partial merges are visible to tests as rollbacks.
type fakeStore struct {
	stories map[string]*fakeStory
	nextID  int

	failOn      string
	failErr     error
	raceOnce    bool
	txCount     int
	rollbacks   int
	deleteCalls []time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{stories: map[string]*fakeStory{}}
}

func (s *fakeStore) WithinTx(ctx context.Context, fn func(tx StoryTx) error) error {
	s.txCount++
	snapshot := s.clone()
	if err := fn(&fakeTx{store: s}); err != nil {
		s.stories = snapshot
		s.rollbacks++
		return err
	}
	return nil
}

func (s *fakeStore) DeleteStoriesOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.deleteCalls = append(s.deleteCalls, cutoff)
	if s.failOn == "delete" {
		return 0, s.failErr
	}
	var deleted int64
	for id, entry := range s.stories {
		if entry.story.FirstPublishedAt.Before(cutoff) {
			delete(s.stories, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *fakeStore) clone() map[string]*fakeStory {
	out := make(map[string]*fakeStory, len(s.stories))
	for id, entry := range s.stories {
		sources := make(map[string]news.SourceRecord, len(entry.sources))
		for key, rec := range entry.sources {
			sources[key] = rec
		}
		out[id] = &fakeStory{story: entry.story, sources: sources}
	}
	return out
}

func (s *fakeStore) activeByHash(hash string) (*fakeStory, bool) {
	for _, entry := range s.stories {
		if entry.story.ContentHash == hash && entry.story.Status == news.StoryStatusActive {
			return entry, true
		}
	}
	return nil, false
}

func (s *fakeStore) insert(story news.Story, first news.SourceRecord) news.Story {
	s.nextID++
	story.ID = fmt.Sprintf("story-%d", s.nextID)
	story.Status = news.StoryStatusActive
	story.SourceCount = 1
	s.stories[story.ID] = &fakeStory{
		story:   story,
		sources: map[string]news.SourceRecord{first.SourceURL: first},
	}
	return story
}

func (s *fakeStore) activeCount() int {
	count := 0
	for _, entry := range s.stories {
		if entry.story.Status == news.StoryStatusActive {
			count++
		}
	}
	return count
}

type fakeTx struct {
	store *fakeStore
}

func (t *fakeTx) fail(op string) error {
	if t.store.failOn == op {
		return t.store.failErr
	}
	return nil
}

func (t *fakeTx) FindActiveStoryByHash(_ context.Context, hash string) (news.Story, bool, error) {
	if err := t.fail("find"); err != nil {
		return news.Story{}, false, err
	}
	entry, ok := t.store.activeByHash(hash)
	if !ok {
		return news.Story{}, false, nil
	}
	return entry.story, true, nil
}

func (t *fakeTx) CreateStory(_ context.Context, story news.Story, first news.SourceRecord) (news.Story, bool, error) {
	if err := t.fail("create"); err != nil {
		return news.Story{}, false, err
	}
	if t.store.raceOnce {
		// Simulate a concurrent writer winning the insert.
		t.store.raceOnce = false
		t.store.insert(story, news.SourceRecord{SourceName: "Rival", SourceURL: "https://rival.example/story"})
		return news.Story{}, false, nil
	}
	if _, exists := t.store.activeByHash(story.ContentHash); exists {
		return news.Story{}, false, nil
	}
	return t.store.insert(story, first), true, nil
}

func (t *fakeTx) UpsertSource(_ context.Context, storyID string, rec news.SourceRecord) (bool, error) {
	if err := t.fail("upsert"); err != nil {
		return false, err
	}
	entry, ok := t.store.stories[storyID]
	if !ok {
		return false, fmt.Errorf("story %s not found", storyID)
	}
	if _, exists := entry.sources[rec.SourceURL]; exists {
		return false, nil
	}
	entry.sources[rec.SourceURL] = rec
	return true, nil
}

func (t *fakeTx) IncrementAndTouch(_ context.Context, storyID string, at time.Time, imageURL string) error {
	if err := t.fail("touch"); err != nil {
		return err
	}
	entry := t.store.stories[storyID]
	entry.story.SourceCount++
	if at.After(entry.story.LastUpdatedAt) {
		entry.story.LastUpdatedAt = at
	}
	if entry.story.ImageURL == "" {
		entry.story.ImageURL = imageURL
	}
	return nil
}

func (t *fakeTx) ArchiveStory(_ context.Context, storyID string, _ time.Time) error {
	if err := t.fail("archive"); err != nil {
		return err
	}
	t.store.stories[storyID].story.Status = news.StoryStatusArchived
	return nil
}
