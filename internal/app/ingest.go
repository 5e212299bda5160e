package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"horse.fit/storyline/internal/cli"
	"horse.fit/storyline/internal/ingest"
	"horse.fit/storyline/internal/news"
	"horse.fit/storyline/internal/vocab"
	payloadschema "horse.fit/storyline/schema"
)

type itemIngester interface {
	IngestOne(ctx context.Context, item news.RawItem, feed news.FeedMeta) (ingest.Result, error)
}

func runIngest(args []string) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 20*time.Second, "Command timeout")
	payload := fs.String("payload", "", "News item payload JSON")
	payloadFile := fs.String("payload-file", "", "Path to payload JSON file (overrides --payload)")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	payloadJSON, err := loadJSONInput(*payload, *payloadFile, "payload")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid payload: %v\n", err)
		return 2
	}
	item, err := payloadschema.ValidateNewsItemPayload(payloadJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid payload: %v\n", err)
		return 2
	}

	cfg, logger, err := loadRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	tables, err := vocab.Load(cfg.VocabularyFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load vocabulary: %v\n", err)
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

	svc := newIngestService(store, tables, cfg, logger)
	result, err := svc.IngestOne(ctx, item.ToRawItem(), item.FeedMeta())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(result); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}
	fmt.Printf(
		"outcome=%s story_id=%s duplicate=%t content_hash=%s reason=%s\n",
		result.Outcome,
		result.StoryID,
		result.Duplicate,
		result.ContentHash,
		result.Reason,
	)
	return 0
}

func runIngestDir(args []string) int {
	fs := flag.NewFlagSet("ingest-dir", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Minute, "Command timeout")
	dir := fs.String("dir", "testdata/news_items", "Directory containing .json news item files")
	recursive := fs.Bool("recursive", true, "Recursively scan subdirectories")
	workers := fs.Int("workers", 4, "Concurrent ingest workers")
	perSecond := fs.Float64("rate", 0, "Maximum items per second (0 = unlimited)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *workers <= 0 {
		fmt.Fprintln(os.Stderr, "--workers must be > 0")
		return 2
	}
	if *perSecond < 0 {
		fmt.Fprintln(os.Stderr, "--rate must be >= 0")
		return 2
	}

	files, err := collectJSONFiles(strings.TrimSpace(*dir), *recursive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest setup failed: %v\n", err)
		return 1
	}

	cfg, logger, err := loadRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	tables, err := vocab.Load(cfg.VocabularyFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load vocabulary: %v\n", err)
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

	svc := newIngestService(store, tables, cfg, logger)
	summary, err := ingestFiles(ctx, svc, files, ingestDirOptions{Workers: *workers, PerSecond: *perSecond}, logger)
	fmt.Printf(
		"ingest-dir files=%d items=%d created=%d merged=%d duplicates=%d skipped=%d invalid=%d failed=%d\n",
		summary.Files,
		summary.Items,
		summary.Created,
		summary.Merged,
		summary.Duplicates,
		summary.Skipped,
		summary.Invalid,
		summary.Failed,
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest aborted: %v\n", err)
		return 1
	}
	if summary.Invalid > 0 || summary.Failed > 0 {
		return 1
	}
	return 0
}

type ingestDirOptions struct {
	Workers   int
	PerSecond float64
}

type ingestDirSummary struct {
	Files      int `json:"files"`
	Items      int `json:"items"`
	Created    int `json:"created"`
	Merged     int `json:"merged"`
	Duplicates int `json:"duplicates"`
	Skipped    int `json:"skipped"`
	Invalid    int `json:"invalid"`
	Failed     int `json:"failed"`
}

// ingestFiles merges every item under files. Bad items are counted and skipped;
// only context cancellation stops the batch early.
func ingestFiles(
	ctx context.Context,
	ingester itemIngester,
	files []string,
	opts ingestDirOptions,
	logger zerolog.Logger,
) (ingestDirSummary, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	var limiter *rate.Limiter
	if opts.PerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.PerSecond), 1)
	}

	var (
		mu      sync.Mutex
		summary = ingestDirSummary{Files: len(files)}
	)
	record := func(apply func(s *ingestDirSummary)) {
		mu.Lock()
		apply(&summary)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, path := range files {
		payloads, err := readItemFile(path)
		if err != nil {
			record(func(s *ingestDirSummary) { s.Items++; s.Invalid++ })
			logger.Warn().Err(err).Str("path", path).Msg("news item file rejected")
			continue
		}

		for i, raw := range payloads {
			label := itemLabel(path, i, len(payloads))
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if limiter != nil {
					if err := limiter.Wait(gctx); err != nil {
						return err
					}
				}
				return ingestPayload(gctx, ingester, label, raw, record, logger)
			})
		}
	}

	if err := g.Wait(); err != nil {
		return summary, err
	}
	return summary, ctx.Err()
}

func ingestPayload(
	ctx context.Context,
	ingester itemIngester,
	label string,
	payload json.RawMessage,
	record func(func(s *ingestDirSummary)),
	logger zerolog.Logger,
) error {
	item, err := payloadschema.ValidateNewsItemPayload(payload)
	if err != nil {
		record(func(s *ingestDirSummary) { s.Items++; s.Invalid++ })
		logger.Warn().Err(err).Str("item", label).Msg("news item rejected")
		return nil
	}

	result, err := ingester.IngestOne(ctx, item.ToRawItem(), item.FeedMeta())
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		record(func(s *ingestDirSummary) { s.Items++; s.Failed++ })
		logger.Error().Err(err).Str("item", label).Msg("news item ingest failed")
		return nil
	}

	record(func(s *ingestDirSummary) {
		s.Items++
		switch {
		case result.Outcome == ingest.OutcomeCreated:
			s.Created++
		case result.Outcome == ingest.OutcomeMerged && result.Duplicate:
			s.Duplicates++
		case result.Outcome == ingest.OutcomeMerged:
			s.Merged++
		default:
			s.Skipped++
		}
	})
	return nil
}

func loadJSONInput(inlineValue, filePath, label string) (json.RawMessage, error) {
	if path := strings.TrimSpace(filePath); path != "" {
		payload, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s file %q: %w", label, path, err)
		}
		trimmed := strings.TrimSpace(string(payload))
		if trimmed == "" {
			return nil, fmt.Errorf("%s file %q is empty", label, path)
		}
		return json.RawMessage(trimmed), nil
	}

	trimmed := strings.TrimSpace(inlineValue)
	if trimmed == "" {
		return nil, fmt.Errorf("%s JSON is empty", label)
	}
	return json.RawMessage(trimmed), nil
}
