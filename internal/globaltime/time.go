// Package globaltime is the process clock. Tests freeze or advance it; production reads wall time.
package globaltime

import (
	"sync"
	"time"
)

var (
	mu      sync.RWMutex
	nowFunc = time.Now
	frozen  *time.Time
)

func Now() time.Time {
	mu.RLock()
	defer mu.RUnlock()
	return nowFunc()
}

func UTC() time.Time {
	return Now().UTC()
}

// Since is time.Since against the process clock.
func Since(t time.Time) time.Duration {
	return Now().Sub(t)
}

// SetMockTime freezes the clock at t until ResetTime is called.
func SetMockTime(t time.Time) {
	mu.Lock()
	defer mu.Unlock()
	pinned := t
	frozen = &pinned
	nowFunc = func() time.Time { return pinned }
}

// Advance moves a frozen clock forward. It is a no-op on the wall clock.
func Advance(d time.Duration) {
	mu.Lock()
	defer mu.Unlock()
	if frozen == nil {
		return
	}
	next := frozen.Add(d)
	frozen = &next
	nowFunc = func() time.Time { return next }
}

func ResetTime() {
	mu.Lock()
	defer mu.Unlock()
	frozen = nil
	nowFunc = time.Now
}
