package timeline

import (
	"testing"
	"time"

	"horse.fit/storyline/internal/news"
)

func blockNames[T any](blocks []Block[T]) []string {
	names := make([]string, 0, len(blocks))
	for _, b := range blocks {
		names = append(names, b.Name)
	}
	return names
}

func TestPartitionItems_Windows(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+2", 2*60*60)
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, loc)

	items := []news.RawItem{
		{ID: "fresh", PublishedAt: now.Add(-10 * time.Minute)},
		{ID: "edge-2h", PublishedAt: now.Add(-2 * time.Hour)},
		{ID: "morning", PublishedAt: time.Date(2026, 3, 10, 8, 0, 0, 0, loc)},
		{ID: "midnight", PublishedAt: time.Date(2026, 3, 10, 0, 0, 0, 0, loc)},
		{ID: "yesterday", PublishedAt: time.Date(2026, 3, 9, 23, 59, 0, 0, loc)},
		{ID: "two-days", PublishedAt: time.Date(2026, 3, 8, 12, 0, 0, 0, loc)},
		{ID: "unknown"},
	}

	blocks := PartitionItems(items, now, loc)
	want := map[string][]string{
		LastTwoHours: {"fresh", "edge-2h"},
		EarlierToday: {"morning", "midnight"},
		Yesterday:    {"yesterday"},
		ThisWeek:     {"two-days", "unknown"},
	}

	if len(blocks) != 4 {
		t.Fatalf("unexpected block count: got %v", blockNames(blocks))
	}
	total := 0
	for _, block := range blocks {
		ids := make([]string, 0, len(block.Entries))
		for _, item := range block.Entries {
			ids = append(ids, item.ID)
		}
		expected := want[block.Name]
		if len(ids) != len(expected) {
			t.Fatalf("block %q: got %v want %v", block.Name, ids, expected)
		}
		for i := range ids {
			if ids[i] != expected[i] {
				t.Fatalf("block %q: got %v want %v", block.Name, ids, expected)
			}
		}
		total += len(ids)
	}
	if total != len(items) {
		t.Fatalf("partition lost entries: got %d want %d", total, len(items))
	}
}

func TestPartitionItems_DropsEmptyBlocksAndKeepsOrder(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	items := []news.RawItem{
		{ID: "old", PublishedAt: now.Add(-72 * time.Hour)},
		{ID: "new", PublishedAt: now.Add(-time.Minute)},
	}

	blocks := PartitionItems(items, now, time.UTC)
	names := blockNames(blocks)
	if len(names) != 2 || names[0] != LastTwoHours || names[1] != ThisWeek {
		t.Fatalf("unexpected blocks: %v", names)
	}
}

func TestPartition_EarlyMorningHasNoEarlierToday(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC)
	items := []news.RawItem{
		{ID: "just-after-midnight", PublishedAt: time.Date(2026, 3, 10, 0, 5, 0, 0, time.UTC)},
		{ID: "late-yesterday", PublishedAt: time.Date(2026, 3, 9, 23, 30, 0, 0, time.UTC)},
		{ID: "earlier-yesterday", PublishedAt: time.Date(2026, 3, 9, 20, 0, 0, 0, time.UTC)},
	}

	blocks := PartitionItems(items, now, time.UTC)
	names := blockNames(blocks)
	if len(names) != 2 || names[0] != LastTwoHours || names[1] != Yesterday {
		t.Fatalf("unexpected blocks: %v", names)
	}
	if len(blocks[0].Entries) != 2 {
		t.Fatalf("expected both items inside the 2h window, got %d", len(blocks[0].Entries))
	}
}

func TestPartition_Empty(t *testing.T) {
	t.Parallel()

	if blocks := PartitionItems(nil, time.Now(), nil); len(blocks) != 0 {
		t.Fatalf("expected no blocks, got %v", blockNames(blocks))
	}
}
