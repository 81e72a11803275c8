package core

// exec_limiter.go bounds how many runs may send batches at the same time.
// Every run holds one slot from Begin until its last batch returns, so the
// execution service never sees more than the configured number of callers
// from this process. WaitForDrain lets shutdown wait for running batches.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrTooManyExecutions is returned when no execution slot frees up in time.
var ErrTooManyExecutions = errors.New("too many concurrent executions, please try again later")

const (
	// DefaultMaxConcurrentExecutions is the default number of runs executing at once.
	DefaultMaxConcurrentExecutions = 4

	// DefaultExecSlotWait is how long Begin waits for a slot.
	DefaultExecSlotWait = 10 * time.Second
)

// ExecLimiter is a counting semaphore over execution slots.
type ExecLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int32
}

// NewExecLimiter allows maxConcurrent executions; callers wait at most maxWait.
func NewExecLimiter(maxConcurrent int, maxWait time.Duration) *ExecLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentExecutions
	}
	if maxWait <= 0 {
		maxWait = DefaultExecSlotWait
	}
	return &ExecLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot. Every successful Acquire must be paired with Release.
func (l *ExecLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManyExecutions
	}
}

// Release returns a slot.
func (l *ExecLimiter) Release() {
	l.active.Add(-1)
	<-l.slots
}

// Active returns the number of held slots.
func (l *ExecLimiter) Active() int {
	return int(l.active.Load())
}

// ExecLimiterStatus is a snapshot for health output.
type ExecLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"maxConcurrent"`
}

// Status returns the current slot usage.
func (l *ExecLimiter) Status() ExecLimiterStatus {
	return ExecLimiterStatus{
		Active:        l.Active(),
		Available:     cap(l.slots) - len(l.slots),
		MaxConcurrent: cap(l.slots),
	}
}

// WaitForDrain blocks until no slot is held or ctx is done.
func (l *ExecLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for l.Active() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
