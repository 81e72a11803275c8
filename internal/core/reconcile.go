package core

import (
	"context"
	"time"
)

// ReconciliationResult partitions a run's distinct identifiers by how the
// catalog recognised them. It is bound to the Fingerprint it was taken for.
type ReconciliationResult struct {
	Matched     []string          `json:"matched"`
	Unmatched   []string          `json:"unmatched"`
	AlreadyDone []string          `json:"alreadyDone"`
	TargetIDs   map[string]string `json:"targetIds"`
	Fingerprint uint64            `json:"fingerprint,string"`
	CheckedAt   time.Time         `json:"checkedAt"`

	index map[string]MatchStatus
}

// Status classifies one identifier.
func (r *ReconciliationResult) Status(code string) MatchStatus {
	if r == nil {
		return StatusPending
	}
	if isBlank(code) {
		return StatusBlank
	}
	if r.index != nil {
		if st, ok := r.index[code]; ok {
			return st
		}
		return StatusUnmatched
	}
	for _, c := range r.AlreadyDone {
		if c == code {
			return StatusAlreadyDone
		}
	}
	for _, c := range r.Matched {
		if c == code {
			return StatusMatched
		}
	}
	return StatusUnmatched
}

// DistinctIdentifiers returns the non-blank values of key in first-seen order.
// Identifiers are compared exactly; no case folding is applied.
func DistinctIdentifiers(rows []ProjectedRow, key string) []string {
	seen := make(map[string]bool, len(rows))
	var out []string
	for _, row := range rows {
		code := row.Get(key)
		if isBlank(code) || seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, code)
	}
	return out
}

// Reconcile asks the matcher about every distinct identifier in one call.
// Identifiers the response does not mention are reported as unmatched.
func Reconcile(ctx context.Context, matcher CatalogMatcher, pipeline string, rows []ProjectedRow, key string, fingerprint uint64) (*ReconciliationResult, error) {
	codes := DistinctIdentifiers(rows, key)

	result := &ReconciliationResult{
		Matched:     []string{},
		Unmatched:   []string{},
		AlreadyDone: []string{},
		TargetIDs:   make(map[string]string),
		Fingerprint: fingerprint,
		CheckedAt:   time.Now().UTC(),
	}
	if len(codes) == 0 {
		return result, nil
	}

	resp, err := matcher.Match(ctx, pipeline, codes)
	if err != nil {
		return nil, &ReconciliationCallError{Err: err}
	}
	if resp == nil {
		resp = &MatchResponse{}
	}

	done := make(map[string]bool, len(resp.AlreadyDone))
	for _, item := range resp.AlreadyDone {
		done[item.Code] = true
		if item.TargetID != "" {
			result.TargetIDs[item.Code] = item.TargetID
		}
	}
	matched := make(map[string]bool, len(resp.Matched))
	for _, item := range resp.Matched {
		matched[item.Code] = true
		if item.TargetID != "" {
			result.TargetIDs[item.Code] = item.TargetID
		}
	}

	for _, code := range codes {
		switch {
		case done[code]:
			result.AlreadyDone = append(result.AlreadyDone, code)
		case matched[code]:
			result.Matched = append(result.Matched, code)
		default:
			result.Unmatched = append(result.Unmatched, code)
		}
	}
	result.buildIndex()
	return result, nil
}

func (r *ReconciliationResult) buildIndex() {
	r.index = make(map[string]MatchStatus, len(r.Matched)+len(r.AlreadyDone))
	for _, c := range r.Matched {
		r.index[c] = StatusMatched
	}
	for _, c := range r.AlreadyDone {
		r.index[c] = StatusAlreadyDone
	}
}

// Annotate marks every row with its match status. A nil reconciliation
// leaves non-blank rows pending.
func Annotate(rows []ProjectedRow, key string, rec *ReconciliationResult) []PreviewRow {
	out := make([]PreviewRow, len(rows))
	for i, row := range rows {
		code := row.Get(key)
		pr := PreviewRow{ProjectedRow: row, Status: rec.Status(code)}
		if isBlank(code) {
			pr.Status = StatusBlank
		} else if rec != nil {
			pr.TargetID = rec.TargetIDs[code]
		}
		out[i] = pr
	}
	return out
}

// EligibleRows selects the rows that may be executed: those whose identifier
// matched. With requireFullMatch any unmatched identifier blocks the run.
func EligibleRows(rows []ProjectedRow, key string, rec *ReconciliationResult, requireFullMatch bool) ([]ProjectedRow, []string, error) {
	if rec == nil {
		return nil, nil, ErrNotValidated
	}
	if requireFullMatch && len(rec.Unmatched) > 0 {
		return nil, nil, &UnmatchedIdentifiersError{Identifiers: append([]string(nil), rec.Unmatched...)}
	}

	var eligible []ProjectedRow
	var targets []string
	for _, row := range rows {
		code := row.Get(key)
		if rec.Status(code) != StatusMatched {
			continue
		}
		eligible = append(eligible, row)
		targets = append(targets, rec.TargetIDs[code])
	}
	return eligible, targets, nil
}

// BlankIdentifierCount counts rows with no identifier.
func BlankIdentifierCount(rows []ProjectedRow, key string) int {
	n := 0
	for _, row := range rows {
		if isBlank(row.Get(key)) {
			n++
		}
	}
	return n
}
