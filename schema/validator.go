// Package payloadschema validates raw news item payloads before ingestion.
package payloadschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"horse.fit/storyline/internal/news"
	"horse.fit/storyline/internal/reader"
)

//go:embed news_item.schema.json
var newsItemSchemaJSON string

type NewsItem struct {
	PayloadVersion string          `json:"payload_version"`
	ID             string          `json:"id,omitempty"`
	Headline       string          `json:"headline"`
	Summary        string          `json:"summary,omitempty"`
	Content        string          `json:"content,omitempty"`
	Category       string          `json:"category,omitempty"`
	SourceName     string          `json:"source_name"`
	SourceURL      string          `json:"source_url,omitempty"`
	PublishedAt    *string         `json:"published_at,omitempty"`
	ImageURL       *string         `json:"image_url,omitempty"`
	Feed           *FeedPayload    `json:"feed,omitempty"`
	Sources        []SourcePayload `json:"sources,omitempty"`
}

type FeedPayload struct {
	Name         string `json:"name,omitempty"`
	Category     string `json:"category,omitempty"`
	CountryScope bool   `json:"country_scope,omitempty"`
}

type SourcePayload struct {
	SourceName  string  `json:"source_name"`
	SourceURL   string  `json:"source_url,omitempty"`
	PublishedAt *string `json:"published_at,omitempty"`
	Description string  `json:"description,omitempty"`
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// publishedLayouts are tried in order. Feeds disagree on date formats.
var publishedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func ValidateNewsItemPayload(payload json.RawMessage) (*NewsItem, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize payload JSON: %w", err)
	}

	var item NewsItem
	if err := json.Unmarshal(normalized, &item); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	if err := validateSemantics(&item); err != nil {
		return nil, err
	}

	return &item, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("news_item.schema.json", strings.NewReader(newsItemSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("news_item.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}

// validateSemantics checks what the schema cannot. An empty headline is not
// an error here; ingestion skips it as malformed so it is counted, not rejected.
func validateSemantics(item *NewsItem) error {
	if item == nil {
		return fmt.Errorf("payload is nil")
	}

	if strings.TrimSpace(item.PayloadVersion) != "v1" {
		return fmt.Errorf("payload_version must be v1")
	}
	if strings.TrimSpace(item.SourceName) == "" {
		return fmt.Errorf("source_name must not be empty")
	}
	if strings.TrimSpace(item.SourceURL) != "" {
		if err := validateURI("source_url", item.SourceURL); err != nil {
			return err
		}
	}
	if item.ImageURL != nil && strings.TrimSpace(*item.ImageURL) != "" {
		if err := validateURI("image_url", *item.ImageURL); err != nil {
			return err
		}
	}

	for i, src := range item.Sources {
		if strings.TrimSpace(src.SourceName) == "" {
			return fmt.Errorf("sources[%d].source_name must not be empty", i)
		}
		if strings.TrimSpace(src.SourceURL) != "" {
			if err := validateURI(fmt.Sprintf("sources[%d].source_url", i), src.SourceURL); err != nil {
				return err
			}
		}
	}

	return nil
}

func validateURI(fieldName, value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fmt.Errorf("%s must not be empty", fieldName)
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return fmt.Errorf("%s is not a valid URI: %w", fieldName, err)
	}
	return nil
}

// ParsePublishedAt reads a feed timestamp. Unparseable or missing values give
// the zero time, which downstream code treats as unknown.
func ParsePublishedAt(value *string) time.Time {
	if value == nil {
		return time.Time{}
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return time.Time{}
	}
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// ToRawItem converts a validated payload into the ingestion input.
func (n *NewsItem) ToRawItem() news.RawItem {
	item := news.RawItem{
		ID:          strings.TrimSpace(n.ID),
		Headline:    strings.TrimSpace(n.Headline),
		Summary:     strings.TrimSpace(n.Summary),
		Content:     strings.TrimSpace(n.Content),
		Category:    strings.TrimSpace(n.Category),
		SourceName:  strings.TrimSpace(n.SourceName),
		SourceURL:   strings.TrimSpace(n.SourceURL),
		PublishedAt: ParsePublishedAt(n.PublishedAt),
	}
	if item.Summary == "" && item.Content != "" {
		item.Summary = reader.Summarize(item.Content, item.SourceURL, reader.DefaultSummaryChars)
	}
	if n.ImageURL != nil {
		item.ImageURL = strings.TrimSpace(*n.ImageURL)
	}
	for _, src := range n.Sources {
		item.Sources = append(item.Sources, news.SourceRecord{
			SourceName:  strings.TrimSpace(src.SourceName),
			SourceURL:   strings.TrimSpace(src.SourceURL),
			PublishedAt: ParsePublishedAt(src.PublishedAt),
			Description: news.ShortDescription(src.Description),
		})
	}
	return item
}

// FeedMeta returns the feed metadata, falling back to the item's own category.
func (n *NewsItem) FeedMeta() news.FeedMeta {
	meta := news.FeedMeta{Category: strings.TrimSpace(n.Category)}
	if n.Feed != nil {
		meta.Name = strings.TrimSpace(n.Feed.Name)
		meta.CountryScope = n.Feed.CountryScope
		if category := strings.TrimSpace(n.Feed.Category); category != "" {
			meta.Category = category
		}
	}
	if meta.Name == "" {
		meta.Name = strings.TrimSpace(n.SourceName)
	}
	return meta
}
