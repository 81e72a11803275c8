package core

import "github.com/shopspring/decimal"

// PreviewSummary contains the counts shown before execution.
type PreviewSummary struct {
	TotalRows        int    `json:"totalRows"`
	Pending          int    `json:"pending"`
	Matched          int    `json:"matched"`
	Unmatched        int    `json:"unmatched"`
	AlreadyDone      int    `json:"alreadyDone"`
	BlankIdentifiers int    `json:"blankIdentifiers"`
	DuplicateInFile  int    `json:"duplicateInFile"`
	Eligible         int    `json:"eligible"`
	Batches          int    `json:"batches"`
	TotalValue       string `json:"totalValue,omitempty"`
	Validated        bool   `json:"validated"`
	Blocked          bool   `json:"blocked"`
}

// DuplicatePreview lists an identifier that appears on more than one line.
type DuplicatePreview struct {
	Identifier string `json:"identifier"`
	Lines      []int  `json:"lines"`
}

// PreviewResponse is the preview of one run.
type PreviewResponse struct {
	Summary    PreviewSummary     `json:"summary"`
	Rows       []PreviewRow       `json:"rows"`
	Duplicates []DuplicatePreview `json:"duplicates"`
}

const maxDuplicateSamples = 20

// BuildPreview annotates rows and counts what execution would do. Rows
// are counted per line; Matched and Unmatched count rows, not identifiers.
// limit caps the returned rows (0 returns all).
func BuildPreview(def *PipelineDefinition, rows []ProjectedRow, rec *ReconciliationResult, limit int) *PreviewResponse {
	annotated := Annotate(rows, def.IdentifierKey, rec)

	sum := PreviewSummary{TotalRows: len(rows), Validated: rec != nil}
	total := decimal.Zero
	lines := make(map[string][]int)
	var order []string
	for _, r := range annotated {
		switch r.Status {
		case StatusPending:
			sum.Pending++
		case StatusMatched:
			sum.Matched++
			if def.ValueField != "" {
				total = total.Add(ParseNumber(r.Get(def.ValueField)))
			}
		case StatusUnmatched:
			sum.Unmatched++
		case StatusAlreadyDone:
			sum.AlreadyDone++
		case StatusBlank:
			sum.BlankIdentifiers++
		}
		if r.Status != StatusBlank {
			code := r.Get(def.IdentifierKey)
			if _, seen := lines[code]; !seen {
				order = append(order, code)
			}
			lines[code] = append(lines[code], r.Line)
		}
	}

	dups := []DuplicatePreview{}
	for _, code := range order {
		if len(lines[code]) < 2 {
			continue
		}
		sum.DuplicateInFile++
		if len(dups) < maxDuplicateSamples {
			dups = append(dups, DuplicatePreview{Identifier: code, Lines: lines[code]})
		}
	}

	if rec != nil {
		sum.Eligible = sum.Matched
		sum.Blocked = def.RequireFullMatch && len(rec.Unmatched) > 0
		size := def.BatchSize
		if size <= 0 {
			size = DefaultBatchSize
		}
		sum.Batches = (sum.Eligible + size - 1) / size
		if def.ValueField != "" {
			sum.TotalValue = RoundMoney(total).String()
		}
	}

	if limit > 0 && len(annotated) > limit {
		annotated = annotated[:limit]
	}
	return &PreviewResponse{Summary: sum, Rows: annotated, Duplicates: dups}
}
