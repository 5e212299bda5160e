package app

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"horse.fit/storyline/internal/cli"
	"horse.fit/storyline/internal/clustering"
	"horse.fit/storyline/internal/config"
	"horse.fit/storyline/internal/db"
	"horse.fit/storyline/internal/entity"
	"horse.fit/storyline/internal/httpapi"
	"horse.fit/storyline/internal/ingest"
	"horse.fit/storyline/internal/logging"
	"horse.fit/storyline/internal/signal"
	"horse.fit/storyline/internal/similarity"
	"horse.fit/storyline/internal/sqlitestore"
	"horse.fit/storyline/internal/textnorm"
	"horse.fit/storyline/internal/vocab"
)

// storyStore is what every store driver provides to the commands.
type storyStore interface {
	ingest.Store
	httpapi.StoryReader
	Close() error
}

var (
	_ storyStore = (*db.Pool)(nil)
	_ storyStore = (*sqlitestore.Store)(nil)
)

func loadEnv(envLoader *cli.EnvLoader) {
	if envLoader == nil {
		return
	}
	if _, err := envLoader.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

// loadRuntime applies the env file, then loads config and the logger.
func loadRuntime(envLoader *cli.EnvLoader) (*config.Config, zerolog.Logger, error) {
	loadEnv(envLoader)

	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (storyStore, error) {
	switch cfg.Driver() {
	case config.StoreDriverSQLite:
		store, err := sqlitestore.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StoreDriverPostgres:
		pool, err := db.NewPool(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return pool, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

func newIngestService(store ingest.Store, tables *vocab.Tables, cfg *config.Config, logger zerolog.Logger) *ingest.Service {
	return ingest.NewService(store, textnorm.New(tables), logger, ingest.Options{
		Retention: cfg.Retention(),
	})
}

func newBuilder(tables *vocab.Tables, threshold float64) *clustering.Builder {
	return clustering.NewBuilder(
		similarity.NewScorer(textnorm.New(tables), entity.NewExtractor(tables)),
		signal.NewVerifier(tables),
		clustering.Options{Threshold: threshold},
	)
}
