package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"horse.fit/storyline/internal/cli"
	"horse.fit/storyline/internal/clustering"
	"horse.fit/storyline/internal/config"
	"horse.fit/storyline/internal/globaltime"
	"horse.fit/storyline/internal/news"
	"horse.fit/storyline/internal/timeline"
	"horse.fit/storyline/internal/vocab"
	payloadschema "horse.fit/storyline/schema"
)

func runCluster(args []string) int {
	fs := flag.NewFlagSet("cluster", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	dir := fs.String("dir", "testdata/news_items", "Directory containing .json news item files")
	recursive := fs.Bool("recursive", true, "Recursively scan subdirectories")
	threshold := fs.Float64("threshold", 0, "Similarity threshold in (0, 1]; 0 uses CLUSTER_THRESHOLD or the default")
	windowHours := fs.Int("window-hours", 48, "Drop items published more than this many hours ago (0 keeps all)")
	showTimeline := fs.Bool("timeline", false, "Group clusters into recency blocks")
	vocabularyFile := fs.String("vocabulary", "", "Vocabulary YAML file (defaults to VOCABULARY_FILE)")
	timezone := fs.String("timezone", "", "IANA zone for recency blocks (defaults to TIMEZONE)")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *threshold < 0 || *threshold > 1 {
		fmt.Fprintln(os.Stderr, "--threshold must be in [0, 1]")
		return 2
	}
	if *windowHours < 0 {
		fmt.Fprintln(os.Stderr, "--window-hours must be >= 0")
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	loadEnv(envLoader)

	tables, err := vocab.Load(firstNonEmpty(*vocabularyFile, os.Getenv("VOCABULARY_FILE")))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load vocabulary: %v\n", err)
		return 1
	}
	zoneCfg := config.Config{Timezone: firstNonEmpty(*timezone, os.Getenv("TIMEZONE"))}
	loc, err := zoneCfg.Location()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid timezone: %v\n", err)
		return 2
	}

	files, err := collectJSONFiles(strings.TrimSpace(*dir), *recursive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cluster setup failed: %v\n", err)
		return 1
	}
	items, rejected := loadClusterItems(files)
	for _, msg := range rejected {
		fmt.Fprintf(os.Stderr, "INVALID %s\n", msg)
	}

	builder := newBuilder(tables, envThreshold())
	now := globaltime.UTC()
	clusters := clusterItems(builder, items, now, time.Duration(*windowHours)*time.Hour, *threshold)

	if *showTimeline {
		blocks := timeline.PartitionClusters(clusters, now, loc)
		if outputFormat == outputFormatJSON {
			return printOrFail(map[string]any{
				"blocks":    blocks,
				"rejected":  len(rejected),
				"threshold": effectiveThreshold(builder, *threshold),
				"timezone":  loc.String(),
			})
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
		return printOrFail(map[string]any{
			"clusters":  clusters,
			"rejected":  len(rejected),
			"threshold": effectiveThreshold(builder, *threshold),
			"count":     len(clusters),
		})
	}
	if err := writeClusterTable(clusters, loc); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}
	return 0
}

// loadClusterItems decodes every valid item. Invalid files and items are
// reported and left out; they never stop the run.
func loadClusterItems(files []string) ([]news.RawItem, []string) {
	var (
		items    []news.RawItem
		rejected []string
	)
	for _, path := range files {
		payloads, err := readItemFile(path)
		if err != nil {
			rejected = append(rejected, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		for i, raw := range payloads {
			label := itemLabel(path, i, len(payloads))
			payload, err := payloadschema.ValidateNewsItemPayload(raw)
			if err != nil {
				rejected = append(rejected, fmt.Sprintf("%s: %v", label, err))
				continue
			}
			item := payload.ToRawItem()
			if item.ID == "" {
				item.ID = label
			}
			items = append(items, item)
		}
	}
	return items, rejected
}

func clusterItems(
	builder *clustering.Builder,
	items []news.RawItem,
	now time.Time,
	window time.Duration,
	threshold float64,
) []clustering.Cluster {
	if window > 0 {
		items = clustering.FilterRecent(items, now, window)
	}
	return builder.Build(items, threshold)
}

func writeClusterTable(clusters []clustering.Cluster, loc *time.Location) error {
	rows := make([][]string, 0, len(clusters))
	for _, c := range clusters {
		rows = append(rows, []string{
			string(c.Signal),
			string(c.Confidence),
			fmt.Sprintf("%d", c.SourceCount),
			fmt.Sprintf("%d", c.VerifiedSourceCount),
			formatTimestamp(c.LastUpdated, loc),
			truncateForTable(c.Headline, 80),
		})
	}
	return writeTable(
		[]string{"signal", "confidence", "sources", "verified", "last_updated", "headline"},
		rows,
	)
}

func effectiveThreshold(builder *clustering.Builder, override float64) float64 {
	if override > 0 {
		return override
	}
	return builder.Threshold()
}

// envThreshold reads CLUSTER_THRESHOLD without requiring the full store config.
func envThreshold() float64 {
	value, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv("CLUSTER_THRESHOLD")), 64)
	if err != nil {
		return 0
	}
	if value <= 0 || value > 1 {
		return 0
	}
	return value
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func printOrFail(value any) int {
	if err := printJSON(value); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
		return 1
	}
	return 0
}
