package clustering

import (
	"time"

	"horse.fit/storyline/internal/news"
)

// FilterRecent keeps items published within window of now. Items without a
// timestamp are kept; they cannot be proven stale.
func FilterRecent(items []news.RawItem, now time.Time, window time.Duration) []news.RawItem {
	if window <= 0 {
		return items
	}
	cutoff := now.Add(-window)
	out := make([]news.RawItem, 0, len(items))
	for _, item := range items {
		if !item.PublishedAt.IsZero() && item.PublishedAt.Before(cutoff) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// ItemsFromStories turns durable stories into a working set for the read-time view.
// Each story becomes one item dated by its first publication and carrying its
// stored sources as pre-attached records.
func ItemsFromStories(stories []news.Story) []news.RawItem {
	items := make([]news.RawItem, 0, len(stories))
	for _, story := range stories {
		item := news.RawItem{
			ID:          story.ID,
			Headline:    story.Headline,
			Summary:     story.Summary,
			Category:    story.Category,
			PublishedAt: story.FirstPublishedAt,
			ImageURL:    story.ImageURL,
			Sources:     append([]news.SourceRecord(nil), story.Sources...),
		}
		items = append(items, item)
	}
	return items
}
