package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/storyline/internal/globaltime"
)

var ErrSweepAlreadyRunning = errors.New("retention sweep already running")

// SweepState describes the most recent sweep.
type SweepState struct {
	Running         bool      `json:"running"`
	LastCompletedAt time.Time `json:"last_completed_at"`
	LastDeleted     int64     `json:"last_deleted"`
	LastError       string    `json:"last_error,omitempty"`
}

type sweepRunner interface {
	Sweep(ctx context.Context) (int64, error)
}

// Sweeper runs the retention sweep on a fixed interval until its context ends.
type Sweeper struct {
	runner   sweepRunner
	interval time.Duration
	logger   zerolog.Logger

	mu    sync.Mutex
	state SweepState
}

func NewSweeper(runner sweepRunner, interval time.Duration, logger zerolog.Logger) *Sweeper {
	return &Sweeper{runner: runner, interval: interval, logger: logger}
}

// Start launches the sweep loop. The first sweep runs immediately.
// Non-positive intervals disable the loop.
func (s *Sweeper) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info().Msg("retention sweeper disabled")
		return
	}
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			if _, err := s.RunNow(ctx); err != nil && !errors.Is(err, ErrSweepAlreadyRunning) {
				s.logger.Error().Err(err).Msg("retention sweep failed")
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (s *Sweeper) RunNow(ctx context.Context) (int64, error) {
	s.mu.Lock()
	if s.state.Running {
		s.mu.Unlock()
		return 0, ErrSweepAlreadyRunning
	}
	s.state.Running = true
	s.mu.Unlock()

	deleted, err := s.runner.Sweep(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Running = false
	s.state.LastCompletedAt = globaltime.UTC()
	s.state.LastDeleted = deleted
	s.state.LastError = ""
	if err != nil {
		s.state.LastError = err.Error()
	}
	return deleted, err
}

func (s *Sweeper) State() SweepState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
