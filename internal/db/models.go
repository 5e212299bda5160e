package db

import "time"

// Story maps storyline.stories.
type Story struct {
	StoryID          int64      `gorm:"column:story_id;primaryKey;autoIncrement"`
	StoryUUID        string     `gorm:"column:story_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	ContentHash      string     `gorm:"column:content_hash;type:text;not null"`
	Headline         string     `gorm:"column:headline;type:text;not null"`
	Summary          string     `gorm:"column:summary;type:text;not null;default:''"`
	Category         string     `gorm:"column:category;type:text;not null;default:''"`
	CountryScope     bool       `gorm:"column:country_scope;type:boolean;not null;default:false"`
	ImageURL         *string    `gorm:"column:image_url;type:text"`
	Status           string     `gorm:"column:status;type:storyline.story_status;not null;default:active"`
	FirstPublishedAt time.Time  `gorm:"column:first_published_at;type:timestamptz;not null"`
	LastUpdatedAt    time.Time  `gorm:"column:last_updated_at;type:timestamptz;not null"`
	SourceCount      int        `gorm:"column:source_count;type:integer;not null;default:0"`
	ArchivedAt       *time.Time `gorm:"column:archived_at;type:timestamptz"`
	CreatedAt        time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Story) TableName() string { return "storyline.stories" }

// StorySource maps storyline.story_sources.
type StorySource struct {
	StorySourceID int64     `gorm:"column:story_source_id;primaryKey;autoIncrement"`
	StoryID       int64     `gorm:"column:story_id;type:bigint;not null;uniqueIndex:story_sources_story_url_uniq,priority:1"`
	SourceName    string    `gorm:"column:source_name;type:text;not null"`
	SourceURL     string    `gorm:"column:source_url;type:text;not null;uniqueIndex:story_sources_story_url_uniq,priority:2"`
	PublishedAt   time.Time `gorm:"column:published_at;type:timestamptz;not null"`
	Description   string    `gorm:"column:description;type:text;not null;default:''"`
	CreatedAt     time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (StorySource) TableName() string { return "storyline.story_sources" }

func autoMigrateModels() []any {
	return []any{
		&Story{},
		&StorySource{},
	}
}
