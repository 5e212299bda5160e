package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/storyline/internal/cli"
	"horse.fit/storyline/internal/globaltime"
	"horse.fit/storyline/internal/ingest"
	"horse.fit/storyline/internal/textnorm"
)

func runSweep(args []string) int {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, logger, err := loadRuntime(envLoader)
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

	svc := ingest.NewService(store, textnorm.New(nil), logger, ingest.Options{Retention: cfg.Retention()})
	deleted, err := svc.Sweep(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("retention sweep failed")
		fmt.Fprintf(os.Stderr, "Sweep failed: %v\n", err)
		return 1
	}

	cutoff := globaltime.UTC().Add(-svc.Retention())
	fmt.Printf("sweep deleted=%d retention=%s cutoff=%s\n", deleted, svc.Retention(), cutoff.Format(time.RFC3339))
	return 0
}
