package db

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
)

//go:embed sql/pre_automigrate.sql
var preAutoMigrateSQL string

//go:embed sql/post_automigrate.sql
var postAutoMigrateSQL string

// activeHashIndex backs the one-active-story-per-hash rule that the
// ON CONFLICT inserts in story_queries.go rely on.
const activeHashIndex = "stories_active_content_hash_uniq"

// migrationStep is one stage of the storyline schema setup.
type migrationStep struct {
	label string
	run   func(ctx context.Context, p *Pool) error
}

func storylineMigrations() []migrationStep {
	return []migrationStep{
		{label: "create schema and enum", run: execSQL(preAutoMigrateSQL)},
		{label: "sync story models", run: func(ctx context.Context, p *Pool) error {
			return p.gdb.WithContext(ctx).AutoMigrate(autoMigrateModels()...)
		}},
		{label: "add indexes and cascade", run: execSQL(postAutoMigrateSQL)},
		{label: "verify active hash index", run: verifyActiveHashIndex},
	}
}

// autoMigrate creates the storyline schema, lets gorm sync the tables, adds
// what gorm tags cannot express, then checks the dedup index is in place.
func (p *Pool) autoMigrate(ctx context.Context) error {
	if p == nil || !p.open() {
		return errPoolClosed
	}
	for _, step := range storylineMigrations() {
		if err := step.run(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", step.label, err)
		}
	}
	return nil
}

func execSQL(sqlText string) func(ctx context.Context, p *Pool) error {
	trimmed := strings.TrimSpace(sqlText)
	return func(ctx context.Context, p *Pool) error {
		if trimmed == "" {
			return nil
		}
		return p.gdb.WithContext(ctx).Exec(trimmed).Error
	}
}

func verifyActiveHashIndex(ctx context.Context, p *Pool) error {
	var indexDef string
	err := p.QueryRow(ctx, `
		SELECT indexdef FROM pg_indexes
		WHERE schemaname = 'storyline' AND indexname = $1
	`, activeHashIndex).Scan(&indexDef)
	if IsNoRows(err) {
		return fmt.Errorf("index %s is missing", activeHashIndex)
	}
	if err != nil {
		return err
	}
	if !strings.Contains(indexDef, "UNIQUE") || !strings.Contains(indexDef, "active") {
		return fmt.Errorf("index %s is not a partial unique index on active stories: %s", activeHashIndex, indexDef)
	}
	return nil
}
