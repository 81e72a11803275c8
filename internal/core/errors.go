package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyFile is returned when a file tokenizes to fewer than two rows.
	ErrEmptyFile = errors.New("empty file: need a header row and at least one data row")

	// ErrUnsupportedFile is returned for extensions the tokenizer cannot read.
	ErrUnsupportedFile = errors.New("unsupported file type")

	// ErrInvalidTransition is returned when an action is not legal in the current step.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrNotValidated is returned when execution is requested before reconciliation.
	ErrNotValidated = errors.New("run has not been validated")

	// ErrStaleReconciliation is returned when the grid, header row or mapping
	// changed after the reconciliation was taken.
	ErrStaleReconciliation = errors.New("reconciliation is stale")

	// ErrRunNotFound is returned for unknown or expired run ids.
	ErrRunNotFound = errors.New("run not found")

	// ErrReportNotFound is returned when no report was saved for a run.
	ErrReportNotFound = errors.New("report not found")

	// ErrMissingContext is returned when a pipeline's execution context value is absent.
	ErrMissingContext = errors.New("missing execution context")

	// ErrInvalidHeaderRow is returned when the chosen header row is outside the grid.
	ErrInvalidHeaderRow = errors.New("invalid header row")

	// ErrInvalidMapping is returned when a binding names an unknown field or column.
	ErrInvalidMapping = errors.New("invalid mapping")

	// ErrUnknownPipeline is returned for pipeline keys that were never registered.
	ErrUnknownPipeline = errors.New("unknown pipeline")
)

// MappingIncompleteError lists required fields that have no column bound.
type MappingIncompleteError struct {
	Missing []string
}

func (e *MappingIncompleteError) Error() string {
	return "mapping incomplete: missing required fields " + strings.Join(e.Missing, ", ")
}

// ReconciliationCallError wraps a failed catalog matcher call.
type ReconciliationCallError struct {
	Err error
}

func (e *ReconciliationCallError) Error() string {
	return "reconciliation call failed: " + e.Err.Error()
}

func (e *ReconciliationCallError) Unwrap() error {
	return e.Err
}

// UnmatchedIdentifiersError blocks execution for pipelines that require every
// identifier to match.
type UnmatchedIdentifiersError struct {
	Identifiers []string
}

func (e *UnmatchedIdentifiersError) Error() string {
	return fmt.Sprintf("%d unmatched identifiers block execution: %s",
		len(e.Identifiers), strings.Join(e.Identifiers, ", "))
}

// BatchExecutionError records a batch whose final attempt failed.
type BatchExecutionError struct {
	Batch    int
	Attempts int
	Err      error
}

func (e *BatchExecutionError) Error() string {
	return fmt.Sprintf("batch %d failed after %d attempts: %v", e.Batch, e.Attempts, e.Err)
}

func (e *BatchExecutionError) Unwrap() error {
	return e.Err
}

// RunAbortedError is returned when the executor could not run to completion.
// Partial holds the outcomes of batches that were attempted before the abort.
type RunAbortedError struct {
	Reason  string
	Err     error
	Partial []BatchOutcome
}

func (e *RunAbortedError) Error() string {
	if e.Err != nil {
		return "run aborted: " + e.Reason + ": " + e.Err.Error()
	}
	return "run aborted: " + e.Reason
}

func (e *RunAbortedError) Unwrap() error {
	return e.Err
}
