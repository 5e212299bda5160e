package clustering

import (
	"sort"
	"strings"
	"time"

	"horse.fit/storyline/internal/globaltime"
	"horse.fit/storyline/internal/news"
	"horse.fit/storyline/internal/signal"
)

const DefaultThreshold = 0.45

// scoreTolerance absorbs float error in weighted sums so a nominal score
// equal to the threshold still joins.
const scoreTolerance = 1e-9

// Scorer compares two items. It must be symmetric and return values in [0,1].
type Scorer interface {
	Score(a, b news.RawItem) float64
}

// Cluster is an ephemeral grouping rebuilt from scratch on every run.
// ID is the representative item's id and is not stable across runs.
type Cluster struct {
	ID                  string              `json:"id"`
	Headline            string              `json:"headline"`
	Summary             string              `json:"summary,omitempty"`
	Category            string              `json:"category,omitempty"`
	ImageURL            string              `json:"image_url,omitempty"`
	Sources             []news.SourceRecord `json:"sources"`
	SourceCount         int                 `json:"source_count"`
	VerifiedSourceCount int                 `json:"verified_source_count"`
	Confidence          signal.Confidence   `json:"confidence"`
	Signal              signal.Signal       `json:"signal"`
	FirstPublished      time.Time           `json:"first_published"`
	LastUpdated         time.Time           `json:"last_updated"`
	IsContradicted      bool                `json:"is_contradicted"`
	Items               []news.RawItem      `json:"items"`
}

type Options struct {
	Threshold float64
	Now       func() time.Time
}

type Builder struct {
	scorer    Scorer
	verifier  *signal.Verifier
	threshold float64
	now       func() time.Time
}

func NewBuilder(scorer Scorer, verifier *signal.Verifier, opts Options) *Builder {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	now := opts.Now
	if now == nil {
		now = globaltime.UTC
	}
	if verifier == nil {
		verifier = signal.NewVerifier(nil)
	}
	return &Builder{
		scorer:    scorer,
		verifier:  verifier,
		threshold: threshold,
		now:       now,
	}
}

func (b *Builder) Threshold() float64 {
	return b.threshold
}

// Build partitions items into clusters by single-link agglomeration.
//
// Items are visited most recent first. Each unassigned item seeds a cluster,
// then the remaining unassigned items are scanned in the same order and join
// when their best score against any current member reaches the threshold.
// Growth order matters: a late member can pull in items the seed alone would
// not have matched. A threshold <= 0 uses the builder default.
func (b *Builder) Build(items []news.RawItem, threshold float64) []Cluster {
	if len(items) == 0 {
		return nil
	}
	if threshold <= 0 {
		threshold = b.threshold
	}

	ordered := make([]news.RawItem, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool {
		return newerFirst(ordered[i].PublishedAt, ordered[j].PublishedAt)
	})

	now := b.now()
	assigned := make([]bool, len(ordered))
	var clusters []Cluster

	for seed := range ordered {
		if assigned[seed] {
			continue
		}
		assigned[seed] = true
		members := []news.RawItem{ordered[seed]}

		for candidate := range ordered {
			if assigned[candidate] {
				continue
			}
			if meetsThreshold(b.bestScore(ordered[candidate], members), threshold) {
				assigned[candidate] = true
				members = append(members, ordered[candidate])
			}
		}

		clusters = append(clusters, b.finish(members, now))
	}

	sortClusters(clusters)
	return clusters
}

func meetsThreshold(score, threshold float64) bool {
	return score+scoreTolerance >= threshold
}

func (b *Builder) bestScore(candidate news.RawItem, members []news.RawItem) float64 {
	best := 0.0
	for _, member := range members {
		if score := b.scorer.Score(member, candidate); score > best {
			best = score
		}
	}
	return best
}

func (b *Builder) finish(members []news.RawItem, now time.Time) Cluster {
	rep := members[0]
	sources := mergeSources(members)
	first, last := span(members, now)
	labels := b.verifier.Label(first, now, sources)

	imageURL := ""
	for _, member := range members {
		if strings.TrimSpace(member.ImageURL) != "" {
			imageURL = strings.TrimSpace(member.ImageURL)
			break
		}
	}

	return Cluster{
		ID:                  rep.ID,
		Headline:            strings.TrimSpace(rep.Headline),
		Summary:             strings.TrimSpace(rep.Summary),
		Category:            strings.TrimSpace(rep.Category),
		ImageURL:            imageURL,
		Sources:             sources,
		SourceCount:         len(sources),
		VerifiedSourceCount: labels.VerifiedSourceCount,
		Confidence:          labels.Confidence,
		Signal:              labels.Signal,
		FirstPublished:      first,
		LastUpdated:         last,
		IsContradicted:      false,
		Items:               members,
	}
}

// mergeSources unions each member's own source and its pre-attached sources,
// deduplicated by URL and sorted oldest first. The first record seen for a URL wins.
func mergeSources(members []news.RawItem) []news.SourceRecord {
	seen := make(map[string]struct{})
	var merged []news.SourceRecord

	add := func(rec news.SourceRecord, itemID string) {
		key := sourceKey(rec, itemID)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		merged = append(merged, rec)
	}

	for _, member := range members {
		own := member.OwnSource()
		if own.SourceName != "" || own.SourceURL != "" {
			add(own, member.ID)
		}
		for _, rec := range member.Sources {
			add(rec, member.ID)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return olderFirst(merged[i].PublishedAt, merged[j].PublishedAt)
	})
	return merged
}

// sourceKey is the source URL. Records without one fall back to outlet name plus item id.
func sourceKey(rec news.SourceRecord, itemID string) string {
	if url := strings.TrimSpace(rec.SourceURL); url != "" {
		return "url:" + url
	}
	return "item:" + strings.ToLower(strings.TrimSpace(rec.SourceName)) + "|" + itemID
}

// span returns min and max of known member publish times, or now for both
// when none is known. Pre-attached source times do not move the span.
func span(members []news.RawItem, now time.Time) (time.Time, time.Time) {
	var first, last time.Time
	for _, member := range members {
		ts := member.PublishedAt
		if ts.IsZero() {
			continue
		}
		if first.IsZero() || ts.Before(first) {
			first = ts
		}
		if last.IsZero() || ts.After(last) {
			last = ts
		}
	}
	if first.IsZero() {
		return now, now
	}
	return first, last
}

func sortClusters(clusters []Cluster) {
	sort.SliceStable(clusters, func(i, j int) bool {
		a, b := clusters[i], clusters[j]
		if av, bv := a.VerifiedSourceCount >= 3, b.VerifiedSourceCount >= 3; av != bv {
			return av
		}
		if am, bm := a.SourceCount >= 2, b.SourceCount >= 2; am != bm {
			return am
		}
		if a.SourceCount != b.SourceCount {
			return a.SourceCount > b.SourceCount
		}
		return a.LastUpdated.After(b.LastUpdated)
	})
}

// newerFirst orders known timestamps descending with unknown ones last.
func newerFirst(a, b time.Time) bool {
	if a.IsZero() != b.IsZero() {
		return b.IsZero()
	}
	return a.After(b)
}

// olderFirst orders known timestamps ascending with unknown ones last.
func olderFirst(a, b time.Time) bool {
	if a.IsZero() != b.IsZero() {
		return b.IsZero()
	}
	return a.Before(b)
}
