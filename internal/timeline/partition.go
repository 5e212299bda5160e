package timeline

import (
	"time"

	"horse.fit/storyline/internal/news"
)

const (
	LastTwoHours = "last 2 hours"
	EarlierToday = "earlier today"
	Yesterday    = "yesterday"
	ThisWeek     = "this week"
)

// Block is one named recency window and the entries that fell into it.
type Block[T any] struct {
	Name    string `json:"name"`
	Entries []T    `json:"entries"`
}

type window struct {
	name  string
	lower time.Time
}

// windows returns lower bounds in evaluation order. "this week" has no lower bound.
func windows(now time.Time, loc *time.Location) []window {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return []window{
		{name: LastTwoHours, lower: now.Add(-2 * time.Hour)},
		{name: EarlierToday, lower: midnight},
		{name: Yesterday, lower: midnight.AddDate(0, 0, -1)},
	}
}

// Partition places each entry into the first window whose lower bound its
// timestamp satisfies. Input order is kept inside a block and empty blocks are omitted.
func Partition[T any](entries []T, at func(T) time.Time, now time.Time, loc *time.Location) []Block[T] {
	bounds := windows(now, loc)
	buckets := make([][]T, len(bounds)+1)

	for _, entry := range entries {
		ts := at(entry)
		slot := len(bounds)
		for i, w := range bounds {
			if !ts.Before(w.lower) {
				slot = i
				break
			}
		}
		buckets[slot] = append(buckets[slot], entry)
	}

	names := make([]string, 0, len(bounds)+1)
	for _, w := range bounds {
		names = append(names, w.name)
	}
	names = append(names, ThisWeek)

	var blocks []Block[T]
	for i, bucket := range buckets {
		if len(bucket) == 0 {
			continue
		}
		blocks = append(blocks, Block[T]{Name: names[i], Entries: bucket})
	}
	return blocks
}

// PartitionItems buckets raw items by publication time.
func PartitionItems(items []news.RawItem, now time.Time, loc *time.Location) []Block[news.RawItem] {
	return Partition(items, func(item news.RawItem) time.Time { return item.PublishedAt }, now, loc)
}
