package core

// executor.go sends eligible rows to the execution service in fixed-size
// batches, strictly one after another in source order.
//
// Each batch gets at most two attempts. A batch that fails both is recorded
// and the run moves on. Calls are detached from the caller's context and
// bounded by their own timeout, so abandoning a run lets the in-flight call
// finish and be recorded; batches that had not started are marked skipped.
//
// Retries carry no idempotency token. When the service is not declared
// idempotent a batch that succeeded on its second attempt may have been
// applied twice; it is flagged PossibleDuplicate.

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	// DefaultBatchSize is the maximum number of rows per execution call.
	DefaultBatchSize = 100

	// DefaultExecTimeout bounds a single execution call.
	DefaultExecTimeout = 120 * time.Second

	maxAttempts = 2
)

// BatchStatus is the final state of one batch.
type BatchStatus string

const (
	BatchApplied           BatchStatus = "applied"
	BatchAppliedAfterRetry BatchStatus = "applied_after_retry"
	BatchFailed            BatchStatus = "failed"
	BatchSkipped           BatchStatus = "skipped"
)

// BatchOutcome is what happened to one batch. Only the final attempt is kept.
type BatchOutcome struct {
	Index             int             `json:"index"`
	FirstLine         int             `json:"firstLine"`
	LastLine          int             `json:"lastLine"`
	Size              int             `json:"size"`
	Attempts          int             `json:"attempts"`
	Status            BatchStatus     `json:"status"`
	Success           bool            `json:"success"`
	PossibleDuplicate bool            `json:"possibleDuplicate,omitempty"`
	Result            ExecutionResult `json:"result,omitempty"`
	Error             string          `json:"error,omitempty"`
	Identifiers       []string        `json:"identifiers"`
}

// ExecProgress is reported after every batch.
type ExecProgress struct {
	Batch     int `json:"batch"`
	Batches   int `json:"batches"`
	RowsDone  int `json:"rowsDone"`
	RowsTotal int `json:"rowsTotal"`
	Failed    int `json:"failed"`
}

// Partition cuts rows into batches of at most size, keeping order.
// targetIDs, when present, runs parallel to rows.
func Partition(rows []ProjectedRow, targetIDs []string, size int) []Batch {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var batches []Batch
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		b := Batch{Index: len(batches), Rows: rows[start:end]}
		if len(targetIDs) == len(rows) {
			b.TargetIDs = targetIDs[start:end]
		}
		batches = append(batches, b)
	}
	return batches
}

// BatchExecutor runs batches against an ExecutionService.
type BatchExecutor struct {
	Service       ExecutionService
	Timeout       time.Duration
	Idempotent    bool
	IdentifierKey string
	Progress      func(ExecProgress)
	Logger        *slog.Logger
}

// Run executes batches in order. It returns a *RunAbortedError when nothing
// could be attempted or the loop panicked; per-batch failures are reported
// in the outcomes, never as an error. When ctx is done between batches the
// remaining ones are returned as skipped.
func (e *BatchExecutor) Run(ctx context.Context, batches []Batch) (outcomes []BatchOutcome, err error) {
	if e.Service == nil {
		return nil, &RunAbortedError{Reason: "no execution service configured"}
	}
	if err := ctx.Err(); err != nil {
		return nil, &RunAbortedError{Reason: "run cancelled before start", Err: err}
	}

	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("batch executor panicked", "panic", r, "batches_done", len(outcomes))
			err = &RunAbortedError{
				Reason:  "executor panicked",
				Err:     fmt.Errorf("%v", r),
				Partial: outcomes,
			}
			outcomes = nil
		}
	}()

	progress := ExecProgress{Batches: len(batches)}
	for _, b := range batches {
		progress.RowsTotal += len(b.Rows)
	}

	outcomes = make([]BatchOutcome, 0, len(batches))
	for i, b := range batches {
		if ctx.Err() != nil {
			for _, rest := range batches[i:] {
				out := e.newOutcome(rest)
				out.Status = BatchSkipped
				out.Error = "run abandoned before this batch started"
				outcomes = append(outcomes, out)
			}
			logger.Warn("run abandoned, skipping remaining batches", "skipped", len(batches)-i)
			break
		}

		out := e.runBatch(ctx, b, logger)
		outcomes = append(outcomes, out)

		progress.Batch = i + 1
		progress.RowsDone += len(b.Rows)
		if !out.Success {
			progress.Failed++
		}
		if e.Progress != nil {
			e.Progress(progress)
		}
	}
	return outcomes, nil
}

func (e *BatchExecutor) runBatch(ctx context.Context, b Batch, logger *slog.Logger) BatchOutcome {
	out := e.newOutcome(b)
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out.Attempts = attempt
		start := time.Now()
		result, err := e.call(ctx, b)
		if err == nil {
			out.Success = true
			out.Result = result
			out.Error = ""
			out.Status = BatchApplied
			if attempt > 1 {
				out.Status = BatchAppliedAfterRetry
				out.PossibleDuplicate = !e.Idempotent
			}
			logger.Info("batch applied",
				"batch", b.Index,
				"rows", len(b.Rows),
				"attempt", attempt,
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return out
		}
		lastErr = err
		out.Error = err.Error()
		logger.Warn("batch attempt failed",
			"batch", b.Index,
			"rows", len(b.Rows),
			"attempt", attempt,
			"error", err,
		)
	}

	out.Status = BatchFailed
	out.Error = (&BatchExecutionError{Batch: b.Index, Attempts: out.Attempts, Err: lastErr}).Error()
	return out
}

// call detaches from ctx so abandoning the run never cuts an in-flight call.
func (e *BatchExecutor) call(ctx context.Context, b Batch) (ExecutionResult, error) {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultExecTimeout
	}
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	return e.Service.Execute(callCtx, b)
}

func (e *BatchExecutor) newOutcome(b Batch) BatchOutcome {
	out := BatchOutcome{Index: b.Index, Size: len(b.Rows)}
	if len(b.Rows) > 0 {
		out.FirstLine = b.Rows[0].Line
		out.LastLine = b.Rows[len(b.Rows)-1].Line
	}
	out.Identifiers = make([]string, 0, len(b.Rows))
	for _, row := range b.Rows {
		out.Identifiers = append(out.Identifiers, row.Get(e.IdentifierKey))
	}
	return out
}
