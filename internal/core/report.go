package core

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// ReportCounts summarises rows and identifiers for a run.
type ReportCounts struct {
	Rows              int `json:"rows"`
	Eligible          int `json:"eligible"`
	Matched           int `json:"matched"`
	Unmatched         int `json:"unmatched"`
	AlreadyDone       int `json:"alreadyDone"`
	BlankIdentifiers  int `json:"blankIdentifiers"`
	Batches           int `json:"batches"`
	Applied           int `json:"applied"`
	AppliedAfterRetry int `json:"appliedAfterRetry"`
	Failed            int `json:"failed"`
	Skipped           int `json:"skipped"`
	RowsApplied       int `json:"rowsApplied"`
}

// BatchError is an unresolved failure the operator has to follow up.
type BatchError struct {
	Batch       int      `json:"batch"`
	FirstLine   int      `json:"firstLine"`
	LastLine    int      `json:"lastLine"`
	Message     string   `json:"message"`
	Identifiers []string `json:"identifiers"`
}

// FollowUp is one row of the flat follow-up list.
type FollowUp struct {
	Identifier string `json:"identifier"`
	Line       int    `json:"line,omitempty"`
	Reason     string `json:"reason"`
	Batch      *int   `json:"batch,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

const (
	ReasonUnmatched         = "unmatched"
	ReasonAlreadyDone       = "already_done"
	ReasonBlankIdentifier   = "blank_identifier"
	ReasonBatchFailed       = "batch_failed"
	ReasonBatchSkipped      = "batch_skipped"
	ReasonPossibleDuplicate = "possible_duplicate"
)

// RunReport is the final account of one run.
type RunReport struct {
	RunID         string            `json:"runId"`
	Pipeline      string            `json:"pipeline"`
	FileName      string            `json:"fileName"`
	Context       map[string]string `json:"context,omitempty"`
	StartedAt     time.Time         `json:"startedAt"`
	FinishedAt    time.Time         `json:"finishedAt"`
	DurationMs    int64             `json:"durationMs"`
	Counts        ReportCounts      `json:"counts"`
	TotalValue    string            `json:"totalValue,omitempty"`
	AppliedValue  string            `json:"appliedValue,omitempty"`
	Batches       []BatchOutcome    `json:"batches"`
	Errors        []BatchError      `json:"errors"`
	Unmatched     []string          `json:"unmatched"`
	AlreadyDone   []string          `json:"alreadyDone"`
	BlankLines    []int             `json:"blankLines,omitempty"`
	Idempotent    bool              `json:"idempotent"`
	Abandoned     bool              `json:"abandoned"`
	RetryWarnings int               `json:"retryWarnings"`
}

// ReportInput carries everything BuildReport needs.
type ReportInput struct {
	RunID          string
	Definition     *PipelineDefinition
	FileName       string
	Rows           []ProjectedRow
	Eligible       []ProjectedRow
	Reconciliation *ReconciliationResult
	Outcomes       []BatchOutcome
	StartedAt      time.Time
	FinishedAt     time.Time
	Idempotent     bool
	Abandoned      bool
}

// BuildReport assembles a RunReport from a finished execution.
func BuildReport(in ReportInput) *RunReport {
	def := in.Definition
	r := &RunReport{
		RunID:       in.RunID,
		Pipeline:    def.Key,
		FileName:    in.FileName,
		StartedAt:   in.StartedAt,
		FinishedAt:  in.FinishedAt,
		DurationMs:  in.FinishedAt.Sub(in.StartedAt).Milliseconds(),
		Batches:     in.Outcomes,
		Errors:      []BatchError{},
		Unmatched:   []string{},
		AlreadyDone: []string{},
		Idempotent:  in.Idempotent,
		Abandoned:   in.Abandoned,
	}
	if r.Batches == nil {
		r.Batches = []BatchOutcome{}
	}

	r.Counts.Rows = len(in.Rows)
	r.Counts.Eligible = len(in.Eligible)
	for _, row := range in.Rows {
		if isBlank(row.Get(def.IdentifierKey)) {
			r.BlankLines = append(r.BlankLines, row.Line)
		}
	}
	r.Counts.BlankIdentifiers = len(r.BlankLines)

	if rec := in.Reconciliation; rec != nil {
		r.Counts.Matched = len(rec.Matched)
		r.Counts.Unmatched = len(rec.Unmatched)
		r.Counts.AlreadyDone = len(rec.AlreadyDone)
		r.Unmatched = append(r.Unmatched, rec.Unmatched...)
		r.AlreadyDone = append(r.AlreadyDone, rec.AlreadyDone...)
	}

	applied := make(map[int]bool)
	r.Counts.Batches = len(in.Outcomes)
	for _, out := range in.Outcomes {
		switch out.Status {
		case BatchApplied:
			r.Counts.Applied++
		case BatchAppliedAfterRetry:
			r.Counts.AppliedAfterRetry++
		case BatchFailed:
			r.Counts.Failed++
			r.Errors = append(r.Errors, BatchError{
				Batch:       out.Index,
				FirstLine:   out.FirstLine,
				LastLine:    out.LastLine,
				Message:     out.Error,
				Identifiers: out.Identifiers,
			})
		case BatchSkipped:
			r.Counts.Skipped++
		}
		if out.Success {
			r.Counts.RowsApplied += out.Size
			for line := out.FirstLine; line <= out.LastLine; line++ {
				applied[line] = true
			}
		}
		if out.PossibleDuplicate {
			r.RetryWarnings++
		}
	}

	if def.ValueField != "" {
		total, appliedTotal := decimal.Zero, decimal.Zero
		for _, row := range in.Eligible {
			v := ParseNumber(row.Get(def.ValueField))
			total = total.Add(v)
			if applied[row.Line] {
				appliedTotal = appliedTotal.Add(v)
			}
		}
		r.TotalValue = RoundMoney(total).String()
		r.AppliedValue = RoundMoney(appliedTotal).String()
	}
	return r
}

// HasFailures reports whether any batch failed or was skipped.
func (r *RunReport) HasFailures() bool {
	return r.Counts.Failed > 0 || r.Counts.Skipped > 0
}

// FollowUps flattens everything the operator still has to act on.
func (r *RunReport) FollowUps() []FollowUp {
	var out []FollowUp
	for _, code := range r.Unmatched {
		out = append(out, FollowUp{Identifier: code, Reason: ReasonUnmatched})
	}
	for _, code := range r.AlreadyDone {
		out = append(out, FollowUp{Identifier: code, Reason: ReasonAlreadyDone})
	}
	for _, line := range r.BlankLines {
		out = append(out, FollowUp{Line: line, Reason: ReasonBlankIdentifier})
	}
	for _, b := range r.Batches {
		var reason string
		switch {
		case b.Status == BatchFailed:
			reason = ReasonBatchFailed
		case b.Status == BatchSkipped:
			reason = ReasonBatchSkipped
		case b.PossibleDuplicate:
			reason = ReasonPossibleDuplicate
		default:
			continue
		}
		idx := b.Index
		for _, code := range b.Identifiers {
			out = append(out, FollowUp{Identifier: code, Reason: reason, Batch: &idx, Detail: b.Error})
		}
	}
	return out
}

// WriteCSV writes the follow-up list as CSV.
func (r *RunReport) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"identifier", "line", "reason", "batch", "detail"}); err != nil {
		return err
	}
	for _, f := range r.FollowUps() {
		line, batch := "", ""
		if f.Line > 0 {
			line = strconv.Itoa(f.Line)
		}
		if f.Batch != nil {
			batch = strconv.Itoa(*f.Batch)
		}
		if err := cw.Write([]string{f.Identifier, line, f.Reason, batch, f.Detail}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
