package clustering

import (
	"fmt"
	"math"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"horse.fit/storyline/internal/entity"
	"horse.fit/storyline/internal/news"
	"horse.fit/storyline/internal/signal"
	"horse.fit/storyline/internal/similarity"
	"horse.fit/storyline/internal/textnorm"
	"horse.fit/storyline/internal/vocab"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// pairScorer returns fixed scores for unordered id pairs and 0 otherwise.
type pairScorer struct {
	scores map[[2]string]float64
	calls  int
}

func (p *pairScorer) set(a, b string, score float64) {
	if p.scores == nil {
		p.scores = map[[2]string]float64{}
	}
	p.scores[[2]string{a, b}] = score
	p.scores[[2]string{b, a}] = score
}

func (p *pairScorer) Score(a, b news.RawItem) float64 {
	p.calls++
	return p.scores[[2]string{a.ID, b.ID}]
}

func newRealBuilder() *Builder {
	tables := vocab.Default()
	scorer := similarity.NewScorer(textnorm.New(tables), entity.NewExtractor(tables))
	return NewBuilder(scorer, signal.NewVerifier(tables), Options{Now: func() time.Time { return testNow }})
}

func newStubBuilder(scorer Scorer) *Builder {
	return NewBuilder(scorer, signal.NewVerifier(vocab.Default()), Options{Now: func() time.Time { return testNow }})
}

func clusterIDs(clusters []Cluster) [][]string {
	out := make([][]string, 0, len(clusters))
	for _, c := range clusters {
		ids := make([]string, 0, len(c.Items))
		for _, item := range c.Items {
			ids = append(ids, item.ID)
		}
		out = append(out, ids)
	}
	return out
}

func TestBuild_BoilerplateHeadlinesMerge(t *testing.T) {
	t.Parallel()

	items := []news.RawItem{
		{
			ID: "a", Headline: "Govt announces new policy", Category: "politics",
			SourceName: "Springfield Gazette", SourceURL: "https://gazette.example/policy",
			PublishedAt: testNow.Add(-50 * time.Minute),
		},
		{
			ID: "b", Headline: "BREAKING: Govt announces new policy today", Category: "politics",
			SourceName: "Capital Times", SourceURL: "https://capital.example/policy",
			PublishedAt: testNow.Add(-40 * time.Minute),
		},
	}

	clusters := newRealBuilder().Build(items, 0)
	if len(clusters) != 1 {
		t.Fatalf("expected one cluster, got %v", clusterIDs(clusters))
	}
	c := clusters[0]
	if c.SourceCount != 2 {
		t.Fatalf("unexpected source count: got %d want 2", c.SourceCount)
	}
	if c.ID != "b" || c.Headline != "BREAKING: Govt announces new policy today" {
		t.Fatalf("representative should be the most recent item, got %q", c.ID)
	}
	if !c.FirstPublished.Equal(items[0].PublishedAt) || !c.LastUpdated.Equal(items[1].PublishedAt) {
		t.Fatalf("unexpected span: %s .. %s", c.FirstPublished, c.LastUpdated)
	}
	if c.Signal != signal.Developing || c.Confidence != signal.Low {
		t.Fatalf("unexpected labels: signal=%s confidence=%s", c.Signal, c.Confidence)
	}
	if c.Sources[0].SourceURL != "https://gazette.example/policy" {
		t.Fatalf("sources should be sorted oldest first, got %+v", c.Sources)
	}
}

func TestBuild_ThresholdIsInclusive(t *testing.T) {
	t.Parallel()

	scorer := &pairScorer{}
	scorer.set("a", "b", 0.45)
	scorer.set("a", "c", 0.4499999)
	scorer.set("b", "c", 0.4499999)

	items := []news.RawItem{
		{ID: "a", SourceName: "One", PublishedAt: testNow.Add(-1 * time.Minute)},
		{ID: "b", SourceName: "Two", PublishedAt: testNow.Add(-2 * time.Minute)},
		{ID: "c", SourceName: "Three", PublishedAt: testNow.Add(-3 * time.Minute)},
	}

	got := clusterIDs(newStubBuilder(scorer).Build(items, DefaultThreshold))
	want := [][]string{{"a", "b"}, {"c"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected clusters: got %v want %v", got, want)
	}
}

func TestBuild_RealScorerBoundaryPairJoins(t *testing.T) {
	t.Parallel()

	// Jaccard 1/3, no entities on either side, same category:
	// 0.6/3 + 0.3*0.5 + 0.1 sums to just under 0.45 in float64.
	a := news.RawItem{ID: "a", Headline: "alpha bravo", Category: "misc", SourceName: "One", SourceURL: "https://one.example/1", PublishedAt: testNow.Add(-time.Hour)}
	b := news.RawItem{ID: "b", Headline: "alpha charlie", Category: "misc", SourceName: "Two", SourceURL: "https://two.example/1", PublishedAt: testNow.Add(-2 * time.Hour)}

	tables := vocab.Default()
	scorer := similarity.NewScorer(textnorm.New(tables), entity.NewExtractor(tables))
	if score := scorer.Score(a, b); math.Abs(score-DefaultThreshold) > 1e-9 {
		t.Fatalf("fixture should score at the threshold, got %.20f", score)
	}

	clusters := newRealBuilder().Build([]news.RawItem{a, b}, DefaultThreshold)
	if got := clusterIDs(clusters); !reflect.DeepEqual(got, [][]string{{"a", "b"}}) {
		t.Fatalf("boundary pair should cluster, got %v", got)
	}
}

func TestMeetsThreshold(t *testing.T) {
	t.Parallel()

	if !meetsThreshold(0.44999999999999995559, 0.45) {
		t.Fatalf("float error below the threshold should still join")
	}
	if meetsThreshold(0.4499999, 0.45) {
		t.Fatalf("a real shortfall should not join")
	}
}

func TestBuild_SingleLinkChainsThroughLaterMembers(t *testing.T) {
	t.Parallel()

	scorer := &pairScorer{}
	scorer.set("seed", "mid", 0.6)
	scorer.set("mid", "tail", 0.6)
	scorer.set("seed", "tail", 0.1)

	items := []news.RawItem{
		{ID: "tail", SourceName: "C", PublishedAt: testNow.Add(-3 * time.Hour)},
		{ID: "seed", SourceName: "A", PublishedAt: testNow.Add(-1 * time.Hour)},
		{ID: "mid", SourceName: "B", PublishedAt: testNow.Add(-2 * time.Hour)},
	}

	got := clusterIDs(newStubBuilder(scorer).Build(items, 0))
	want := [][]string{{"seed", "mid", "tail"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected clusters: got %v want %v", got, want)
	}
}

func TestBuild_ScanOrderIsRecencyNotScore(t *testing.T) {
	t.Parallel()

	// tail only matches mid, but it is scanned before mid joins.
	scorer := &pairScorer{}
	scorer.set("seed", "mid", 0.6)
	scorer.set("mid", "tail", 0.6)

	items := []news.RawItem{
		{ID: "seed", SourceName: "A", PublishedAt: testNow.Add(-1 * time.Hour)},
		{ID: "tail", SourceName: "C", PublishedAt: testNow.Add(-2 * time.Hour)},
		{ID: "mid", SourceName: "B", PublishedAt: testNow.Add(-3 * time.Hour)},
	}

	got := clusterIDs(newStubBuilder(scorer).Build(items, 0))
	want := [][]string{{"seed", "mid"}, {"tail"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected clusters: got %v want %v", got, want)
	}
}

func TestBuild_PartitionProperty(t *testing.T) {
	t.Parallel()

	builder := newRealBuilder()
	headlines := []string{
		"Govt announces new policy", "BREAKING: Govt announces new policy today",
		"Storm floods coastal towns in Japan", "Japan storm floods towns",
		"NATO ministers meet over Ukraine", "Ukraine talks with NATO resume",
		"Apple earnings beat forecasts", "Local bakery wins award",
		"Federal Reserve holds rates", "Fed holds rates steady",
	}
	categories := []string{"world", "politics", "business", ""}
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 25; round++ {
		n := rng.Intn(20)
		items := make([]news.RawItem, 0, n)
		for i := 0; i < n; i++ {
			var published time.Time
			if rng.Intn(5) != 0 {
				published = testNow.Add(-time.Duration(rng.Intn(48*60)) * time.Minute)
			}
			items = append(items, news.RawItem{
				ID:          fmt.Sprintf("r%d-i%d", round, i),
				Headline:    headlines[rng.Intn(len(headlines))],
				Category:    categories[rng.Intn(len(categories))],
				SourceName:  fmt.Sprintf("outlet-%d", rng.Intn(6)),
				SourceURL:   fmt.Sprintf("https://outlet.example/%d", rng.Intn(30)),
				PublishedAt: published,
			})
		}

		clusters := builder.Build(items, 0)
		seen := map[string]int{}
		for _, c := range clusters {
			if len(c.Items) == 0 {
				t.Fatalf("round %d: empty cluster", round)
			}
			for _, item := range c.Items {
				seen[item.ID]++
			}
		}
		if len(seen) != len(items) {
			t.Fatalf("round %d: union has %d items, input has %d", round, len(seen), len(items))
		}
		for id, count := range seen {
			if count != 1 {
				t.Fatalf("round %d: item %s appears in %d clusters", round, id, count)
			}
		}

		again := builder.Build(items, 0)
		if !reflect.DeepEqual(clusterIDs(clusters), clusterIDs(again)) {
			t.Fatalf("round %d: rebuilding the same snapshot changed the partition", round)
		}
	}
}

func TestBuild_SourcesDedupByURLAndIncludePreAttached(t *testing.T) {
	t.Parallel()

	scorer := &pairScorer{}
	scorer.set("a", "b", 1)

	items := []news.RawItem{
		{
			ID: "a", SourceName: "Reuters", SourceURL: "https://reuters.com/x",
			PublishedAt: testNow.Add(-2 * time.Hour),
			Sources: []news.SourceRecord{
				{SourceName: "BBC", SourceURL: "https://bbc.co.uk/x", PublishedAt: testNow.Add(-3 * time.Hour)},
			},
		},
		{
			ID: "b", SourceName: "Reuters", SourceURL: "https://reuters.com/x",
			PublishedAt: testNow.Add(-4 * time.Hour),
			Sources: []news.SourceRecord{
				{SourceName: "AP News", SourceURL: "https://apnews.com/x"},
			},
		},
	}

	clusters := newStubBuilder(scorer).Build(items, 0)
	if len(clusters) != 1 {
		t.Fatalf("expected one cluster, got %v", clusterIDs(clusters))
	}
	c := clusters[0]
	urls := make([]string, 0, len(c.Sources))
	for _, src := range c.Sources {
		urls = append(urls, src.SourceURL)
	}
	want := []string{"https://bbc.co.uk/x", "https://reuters.com/x", "https://apnews.com/x"}
	if !reflect.DeepEqual(urls, want) {
		t.Fatalf("unexpected sources: got %v want %v", urls, want)
	}
	if c.SourceCount != 3 || c.VerifiedSourceCount != 3 || c.Confidence != signal.High {
		t.Fatalf("unexpected counts: sources=%d verified=%d confidence=%s", c.SourceCount, c.VerifiedSourceCount, c.Confidence)
	}
}

func TestBuild_SpanIgnoresPreAttachedSourceTimes(t *testing.T) {
	t.Parallel()

	item := news.RawItem{
		ID: "fresh", Headline: "Bridge reopens", SourceName: "Wire", SourceURL: "https://wire.example/bridge",
		PublishedAt: testNow.Add(-10 * time.Minute),
		Sources: []news.SourceRecord{
			{SourceName: "Gazette", SourceURL: "https://gazette.example/bridge", PublishedAt: testNow.Add(-20 * time.Hour)},
		},
	}

	clusters := newStubBuilder(&pairScorer{}).Build([]news.RawItem{item}, 0)
	if len(clusters) != 1 {
		t.Fatalf("expected one cluster, got %v", clusterIDs(clusters))
	}
	c := clusters[0]
	if !c.FirstPublished.Equal(item.PublishedAt) || !c.LastUpdated.Equal(item.PublishedAt) {
		t.Fatalf("span should come from members only, got %s .. %s", c.FirstPublished, c.LastUpdated)
	}
	if c.SourceCount != 2 || c.Signal != signal.Breaking {
		t.Fatalf("unexpected labels: sources=%d signal=%s", c.SourceCount, c.Signal)
	}
}

func TestBuild_UnknownTimestampsDefaultSpanToNow(t *testing.T) {
	t.Parallel()

	clusters := newStubBuilder(&pairScorer{}).Build([]news.RawItem{{ID: "x", SourceName: "Somewhere"}}, 0)
	if len(clusters) != 1 {
		t.Fatalf("expected one cluster")
	}
	if !clusters[0].FirstPublished.Equal(testNow) || !clusters[0].LastUpdated.Equal(testNow) {
		t.Fatalf("expected span to default to now, got %s .. %s", clusters[0].FirstPublished, clusters[0].LastUpdated)
	}
	if clusters[0].Signal != signal.Breaking {
		t.Fatalf("unexpected signal for unknown age: %s", clusters[0].Signal)
	}
}

func TestBuild_OutputOrdering(t *testing.T) {
	t.Parallel()

	scorer := &pairScorer{}
	// verified trio
	scorer.set("v1", "v2", 1)
	scorer.set("v1", "v3", 1)
	// big unverified group of four
	scorer.set("u1", "u2", 1)
	scorer.set("u1", "u3", 1)
	scorer.set("u1", "u4", 1)
	// pair
	scorer.set("p1", "p2", 1)

	at := func(minutes int) time.Time { return testNow.Add(-time.Duration(minutes) * time.Minute) }
	items := []news.RawItem{
		{ID: "solo-new", SourceName: "Blog", SourceURL: "https://blog.example/1", PublishedAt: at(1)},
		{ID: "solo-old", SourceName: "Blog", SourceURL: "https://blog.example/2", PublishedAt: at(90)},
		{ID: "p1", SourceName: "Paper", SourceURL: "https://paper.example/1", PublishedAt: at(2)},
		{ID: "p2", SourceName: "Other", SourceURL: "https://other.example/1", PublishedAt: at(3)},
		{ID: "u1", SourceName: "A", SourceURL: "https://a.example/1", PublishedAt: at(60)},
		{ID: "u2", SourceName: "B", SourceURL: "https://b.example/1", PublishedAt: at(61)},
		{ID: "u3", SourceName: "C", SourceURL: "https://c.example/1", PublishedAt: at(62)},
		{ID: "u4", SourceName: "D", SourceURL: "https://d.example/1", PublishedAt: at(63)},
		{ID: "v1", SourceName: "Reuters", SourceURL: "https://reuters.com/1", PublishedAt: at(300)},
		{ID: "v2", SourceName: "BBC", SourceURL: "https://bbc.co.uk/1", PublishedAt: at(301)},
		{ID: "v3", SourceName: "NPR", SourceURL: "https://npr.org/1", PublishedAt: at(302)},
	}

	clusters := newStubBuilder(scorer).Build(items, 0)
	order := make([]string, 0, len(clusters))
	for _, c := range clusters {
		order = append(order, c.ID)
	}
	want := []string{"v1", "u1", "p1", "solo-new", "solo-old"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("unexpected cluster order: got %v want %v", order, want)
	}
}

func TestBuild_EmptyInput(t *testing.T) {
	t.Parallel()

	scorer := &pairScorer{}
	if clusters := newStubBuilder(scorer).Build(nil, 0); len(clusters) != 0 {
		t.Fatalf("expected no clusters, got %d", len(clusters))
	}
	if scorer.calls != 0 {
		t.Fatalf("expected no scoring calls, got %d", scorer.calls)
	}
}

func TestBuilderThresholdDefault(t *testing.T) {
	t.Parallel()

	if got := newStubBuilder(&pairScorer{}).Threshold(); got != DefaultThreshold {
		t.Fatalf("unexpected default threshold: got %v want %v", got, DefaultThreshold)
	}
}
