// Package news holds the value types shared by the ingestion and clustering paths.
package news

import (
	"strings"
	"time"
)

type StoryStatus string

const (
	StoryStatusActive   StoryStatus = "active"
	StoryStatusArchived StoryStatus = "archived"
)

// RawItem is one report from one source. A zero PublishedAt means the time is unknown.
type RawItem struct {
	ID          string         `json:"id"`
	Headline    string         `json:"headline"`
	Summary     string         `json:"summary,omitempty"`
	Content     string         `json:"content,omitempty"`
	Category    string         `json:"category,omitempty"`
	SourceName  string         `json:"source_name"`
	SourceURL   string         `json:"source_url,omitempty"`
	PublishedAt time.Time      `json:"published_at"`
	ImageURL    string         `json:"image_url,omitempty"`
	Sources     []SourceRecord `json:"sources,omitempty"`
}

// ComparableText is the text both similarity and entity extraction look at.
func (r RawItem) ComparableText() string {
	headline := strings.TrimSpace(r.Headline)
	summary := strings.TrimSpace(r.Summary)
	if summary == "" {
		return headline
	}
	return headline + " " + summary
}

// OwnSource is the SourceRecord for the item's own outlet.
func (r RawItem) OwnSource() SourceRecord {
	return SourceRecord{
		SourceName:  strings.TrimSpace(r.SourceName),
		SourceURL:   strings.TrimSpace(r.SourceURL),
		PublishedAt: r.PublishedAt,
		Description: ShortDescription(r.Summary),
	}
}

type FeedMeta struct {
	Name         string `json:"name"`
	Category     string `json:"category"`
	CountryScope bool   `json:"country_scope"`
}

type SourceRecord struct {
	SourceName  string    `json:"source_name"`
	SourceURL   string    `json:"source_url"`
	PublishedAt time.Time `json:"published_at"`
	Description string    `json:"description,omitempty"`
}

// Story is the durable hash-keyed aggregate maintained at ingestion time.
type Story struct {
	ID               string         `json:"id"`
	ContentHash      string         `json:"content_hash"`
	Headline         string         `json:"headline"`
	Summary          string         `json:"summary,omitempty"`
	Category         string         `json:"category"`
	CountryScope     bool           `json:"country_scope"`
	ImageURL         string         `json:"image_url,omitempty"`
	Status           StoryStatus    `json:"status"`
	FirstPublishedAt time.Time      `json:"first_published_at"`
	LastUpdatedAt    time.Time      `json:"last_updated_at"`
	SourceCount      int            `json:"source_count"`
	Sources          []SourceRecord `json:"sources,omitempty"`
}

const maxDescriptionRunes = 280

// ShortDescription trims text to the length kept on a SourceRecord.
func ShortDescription(text string) string {
	trimmed := strings.Join(strings.Fields(text), " ")
	runes := []rune(trimmed)
	if len(runes) <= maxDescriptionRunes {
		return trimmed
	}
	return strings.TrimSpace(string(runes[:maxDescriptionRunes-3])) + "..."
}
