package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/storyline/internal/cli"
	"horse.fit/storyline/internal/clustering"
	"horse.fit/storyline/internal/globaltime"
	"horse.fit/storyline/internal/news"
	"horse.fit/storyline/internal/timeline"
	"horse.fit/storyline/internal/vocab"
)

func runStories(args []string) int {
	fs := flag.NewFlagSet("stories", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	since := fs.String("since", "", "Only stories first published at or after this RFC3339 time or YYYY-MM-DD date (default: retention horizon)")
	limit := fs.Int("limit", 50, "Maximum stories to return")
	clustered := fs.Bool("clustered", false, "Cluster the stories into the read-time view")
	showTimeline := fs.Bool("timeline", false, "Group clustered stories into recency blocks (implies --clustered)")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "stories does not accept positional arguments")
		return 2
	}
	if *limit <= 0 {
		fmt.Fprintln(os.Stderr, "--limit must be > 0")
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}
	sinceTime, err := parseSince(*since)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid --since: %v\n", err)
		return 2
	}

	cfg, logger, err := loadRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	loc, err := cfg.Location()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("story store connection failed")
		fmt.Fprintf(os.Stderr, "Failed to open story store: %v\n", err)
		return 1
	}
	defer store.Close()

	now := globaltime.UTC()
	if sinceTime.IsZero() {
		sinceTime = now.Add(-cfg.Retention())
	}
	stories, err := store.ListActiveStories(ctx, sinceTime, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query stories: %v\n", err)
		return 1
	}

	if !*clustered && !*showTimeline {
		if outputFormat == outputFormatJSON {
			if stories == nil {
				stories = []news.Story{}
			}
			return printOrFail(stories)
		}
		if err := writeStoryTable(stories, loc); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
			return 1
		}
		return 0
	}

	tables, err := vocab.Load(cfg.VocabularyFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load vocabulary: %v\n", err)
		return 1
	}
	builder := newBuilder(tables, cfg.ClusterThreshold)
	clusters := builder.Build(clustering.ItemsFromStories(stories), 0)

	if *showTimeline {
		blocks := timeline.PartitionClusters(clusters, now, loc)
		if outputFormat == outputFormatJSON {
			return printOrFail(blocks)
		}
		for i, block := range blocks {
			if i > 0 {
				fmt.Println()
			}
			fmt.Printf("== %s (%d) ==\n", block.Name, len(block.Entries))
			if err := writeClusterTable(block.Entries, loc); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
				return 1
			}
		}
		return 0
	}

	if outputFormat == outputFormatJSON {
		if clusters == nil {
			clusters = []clustering.Cluster{}
		}
		return printOrFail(clusters)
	}
	if err := writeClusterTable(clusters, loc); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}
	return 0
}

func writeStoryTable(stories []news.Story, loc *time.Location) error {
	rows := make([][]string, 0, len(stories))
	for _, story := range stories {
		rows = append(rows, []string{
			story.ID,
			fmt.Sprintf("%d", story.SourceCount),
			formatTimestamp(story.FirstPublishedAt, loc),
			formatTimestamp(story.LastUpdatedAt, loc),
			truncateForTable(story.Category, 16),
			truncateForTable(story.Headline, 72),
		})
	}
	return writeTable(
		[]string{"story_id", "sources", "first_published", "last_updated", "category", "headline"},
		rows,
	)
}
