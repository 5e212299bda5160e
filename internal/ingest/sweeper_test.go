package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type countingRunner struct {
	mu      sync.Mutex
	calls   int
	deleted int64
	err     error
	block   chan struct{}
}

func (r *countingRunner) Sweep(_ context.Context) (int64, error) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.deleted, r.err
}

func (r *countingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestSweeperRunNowRecordsState(t *testing.T) {
	t.Parallel()

	runner := &countingRunner{deleted: 3}
	sweeper := NewSweeper(runner, time.Hour, zerolog.Nop())

	deleted, err := sweeper.RunNow(context.Background())
	if err != nil || deleted != 3 {
		t.Fatalf("unexpected sweep result: deleted=%d err=%v", deleted, err)
	}
	state := sweeper.State()
	if state.Running || state.LastDeleted != 3 || state.LastError != "" || state.LastCompletedAt.IsZero() {
		t.Fatalf("unexpected state: %+v", state)
	}

	runner.err = errors.New("boom")
	if _, err := sweeper.RunNow(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if sweeper.State().LastError != "boom" {
		t.Fatalf("unexpected last error: %q", sweeper.State().LastError)
	}
}

func TestSweeperRejectsOverlappingRuns(t *testing.T) {
	t.Parallel()

	runner := &countingRunner{block: make(chan struct{})}
	sweeper := NewSweeper(runner, time.Hour, zerolog.Nop())

	done := make(chan error, 1)
	go func() {
		_, err := sweeper.RunNow(context.Background())
		done <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !sweeper.State().Running {
		if time.Now().After(deadline) {
			t.Fatalf("first sweep never started")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := sweeper.RunNow(context.Background()); !errors.Is(err, ErrSweepAlreadyRunning) {
		t.Fatalf("expected ErrSweepAlreadyRunning, got %v", err)
	}
	close(runner.block)
	if err := <-done; err != nil {
		t.Fatalf("first sweep failed: %v", err)
	}
}

func TestSweeperStartRunsImmediately(t *testing.T) {
	t.Parallel()

	runner := &countingRunner{}
	sweeper := NewSweeper(runner, time.Hour, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper.Start(ctx)
	deadline := time.Now().Add(2 * time.Second)
	for runner.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("sweeper did not run on start")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSweeperDisabledInterval(t *testing.T) {
	t.Parallel()

	runner := &countingRunner{}
	sweeper := NewSweeper(runner, 0, zerolog.Nop())
	sweeper.Start(context.Background())
	time.Sleep(10 * time.Millisecond)
	if runner.count() != 0 {
		t.Fatalf("disabled sweeper should not run")
	}
}
