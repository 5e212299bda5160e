package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/gorm/logger"
)

func TestResolveGormLogLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		level string
		env   string
		want  logger.LogLevel
	}{
		{level: "debug", env: "production", want: logger.Info},
		{level: "trace", env: "production", want: logger.Info},
		{level: "", env: "production", want: logger.Warn},
		{level: "info", env: "production", want: logger.Warn},
		{level: "error", env: "production", want: logger.Error},
		{level: "silent", env: "production", want: logger.Silent},
		{level: "disabled", env: "local", want: logger.Silent},
		{level: "verbose", env: "local", want: logger.Warn},
		{level: "verbose", env: "production", want: logger.Error},
	}

	for _, tc := range cases {
		if got := resolveGormLogLevel(tc.level, tc.env); got != tc.want {
			t.Fatalf("resolveGormLogLevel(%q, %q): got %v want %v", tc.level, tc.env, got, tc.want)
		}
	}
}

func TestConnLimits(t *testing.T) {
	t.Parallel()

	cases := []struct {
		minConns, maxConns int32
		wantOpen, wantIdle int
	}{
		{minConns: 1, maxConns: 8, wantOpen: 8, wantIdle: 1},
		{minConns: 0, maxConns: 4, wantOpen: 4, wantIdle: 1},
		{minConns: 12, maxConns: 4, wantOpen: 4, wantIdle: 4},
		{minConns: 2, maxConns: 0, wantOpen: defaultMaxConns, wantIdle: 2},
	}
	for _, tc := range cases {
		open, idle := connLimits(tc.minConns, tc.maxConns)
		if open != tc.wantOpen || idle != tc.wantIdle {
			t.Fatalf("connLimits(%d, %d): got (%d, %d) want (%d, %d)",
				tc.minConns, tc.maxConns, open, idle, tc.wantOpen, tc.wantIdle)
		}
	}
}

func TestGormLogWriterUsesZerolog(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	writer := gormLogWriter{log: zerolog.New(&buf)}
	writer.Printf("slow query %s", "SELECT 1")

	out := buf.String()
	if !strings.Contains(out, `"component":"gorm"`) || !strings.Contains(out, "slow query SELECT 1") {
		t.Fatalf("unexpected log line: %s", out)
	}
}

func TestIsNoRows(t *testing.T) {
	t.Parallel()

	if !IsNoRows(fmt.Errorf("lookup: %w", ErrNoRows)) {
		t.Fatalf("expected wrapped ErrNoRows to match")
	}
	if IsNoRows(errors.New("other")) {
		t.Fatalf("unexpected match")
	}
}

func TestNilPoolIsSafe(t *testing.T) {
	t.Parallel()

	var pool *Pool
	ctx := context.Background()
	if err := pool.Close(); err != nil {
		t.Fatalf("close on nil pool: %v", err)
	}
	if err := pool.Ping(ctx); err == nil {
		t.Fatalf("expected ping error on nil pool")
	}
	if _, err := pool.BeginTx(ctx, TxOptions{}); err == nil {
		t.Fatalf("expected begin error on nil pool")
	}
	if err := pool.QueryRow(ctx, "SELECT 1").Scan(new(int)); !IsNoRows(err) {
		t.Fatalf("expected ErrNoRows from nil pool row, got %v", err)
	}
	if _, err := pool.Exec(ctx, "SELECT 1"); !errors.Is(err, errPoolClosed) {
		t.Fatalf("expected closed pool error from exec, got %v", err)
	}
	if _, err := (&Pool{}).Query(ctx, "SELECT 1"); !errors.Is(err, errPoolClosed) {
		t.Fatalf("expected closed pool error from unopened pool, got %v", err)
	}
}

func TestGetStoryRejectsMalformedID(t *testing.T) {
	t.Parallel()

	var pool *Pool
	if _, err := pool.GetStory(context.Background(), "not-a-uuid"); !IsNoRows(err) {
		t.Fatalf("expected ErrNoRows for malformed id, got %v", err)
	}
	if _, err := pool.GetStory(context.Background(), "  "); err == nil || IsNoRows(err) {
		t.Fatalf("expected a validation error for empty id, got %v", err)
	}
}

func TestMigrationSQLIsEmbedded(t *testing.T) {
	t.Parallel()

	if !strings.Contains(preAutoMigrateSQL, "CREATE SCHEMA IF NOT EXISTS storyline") {
		t.Fatalf("pre-migration SQL missing schema creation")
	}
	if !strings.Contains(postAutoMigrateSQL, "WHERE status = 'active'") {
		t.Fatalf("post-migration SQL missing the active-hash partial index")
	}
}

func TestModelTableNames(t *testing.T) {
	t.Parallel()

	if got := (Story{}).TableName(); got != "storyline.stories" {
		t.Fatalf("unexpected story table: %q", got)
	}
	if got := (StorySource{}).TableName(); got != "storyline.story_sources" {
		t.Fatalf("unexpected story source table: %q", got)
	}
	if got := len(autoMigrateModels()); got != 2 {
		t.Fatalf("unexpected model count: %d", got)
	}
}

func TestNullableString(t *testing.T) {
	t.Parallel()

	if nullableString("  ") != nil {
		t.Fatalf("expected nil for blank value")
	}
	if got := nullableString(" https://img.example/a.jpg "); got == nil || *got != "https://img.example/a.jpg" {
		t.Fatalf("unexpected value: %v", got)
	}
}

func TestStorylineMigrationOrder(t *testing.T) {
	t.Parallel()

	var labels []string
	for _, step := range storylineMigrations() {
		labels = append(labels, step.label)
	}
	want := []string{"create schema and enum", "sync story models", "add indexes and cascade", "verify active hash index"}
	if strings.Join(labels, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected migration order: %v", labels)
	}
	if !strings.Contains(postAutoMigrateSQL, activeHashIndex) {
		t.Fatalf("post-migration SQL does not create %s", activeHashIndex)
	}
	if err := (&Pool{}).autoMigrate(context.Background()); !errors.Is(err, errPoolClosed) {
		t.Fatalf("expected closed pool error, got %v", err)
	}
}
