package core

import (
	"context"
	"strings"
)

// Grid is a tokenized file. Rows may be ragged; missing trailing cells read
// as the empty string. A Grid is never mutated after tokenizing.
type Grid [][]string

// Rows returns the number of rows in the grid.
func (g Grid) Rows() int {
	return len(g)
}

// Width returns the length of the widest row.
func (g Grid) Width() int {
	w := 0
	for _, row := range g {
		if len(row) > w {
			w = len(row)
		}
	}
	return w
}

// Cell returns the cell at (row, col), or "" when it is out of range.
func (g Grid) Cell(row, col int) string {
	if row < 0 || row >= len(g) || col < 0 || col >= len(g[row]) {
		return ""
	}
	return g[row][col]
}

// FieldSpec describes one canonical field a pipeline needs from the file.
type FieldSpec struct {
	Key      string   `json:"key" yaml:"key"`
	Label    string   `json:"label" yaml:"label"`
	Required bool     `json:"required" yaml:"required"`
	Aliases  []string `json:"aliases,omitempty" yaml:"aliases"`
}

// ProjectedRow is one non-blank data row keyed by canonical field.
// Line is the 1-based source line.
type ProjectedRow struct {
	Line   int               `json:"line"`
	Values map[string]string `json:"values"`
}

// Get returns the value for key, or "".
func (r ProjectedRow) Get(key string) string {
	return r.Values[key]
}

// MatchStatus annotates a preview row with its reconciliation outcome.
type MatchStatus string

const (
	StatusPending     MatchStatus = "pending"
	StatusMatched     MatchStatus = "matched"
	StatusUnmatched   MatchStatus = "unmatched"
	StatusAlreadyDone MatchStatus = "already_done"
	StatusBlank       MatchStatus = "blank"
)

// PreviewRow is a projected row with its match status.
type PreviewRow struct {
	ProjectedRow
	Status   MatchStatus `json:"status"`
	TargetID string      `json:"targetId,omitempty"`
}

// PayloadKind selects how a batch is sent to the execution service.
type PayloadKind string

const (
	PayloadItems     PayloadKind = "items"
	PayloadTargetIDs PayloadKind = "target_ids"
)

// DeriveFunc computes derived fields in place. It must be deterministic.
type DeriveFunc func(values map[string]string)

// PipelineDefinition parametrises the generic controller for one kind of import.
type PipelineDefinition struct {
	Key               string      `json:"key"`
	Label             string      `json:"label"`
	Fields            []FieldSpec `json:"fields"`
	IdentifierKey     string      `json:"identifierKey"`
	MinHeaderCells    int         `json:"minHeaderCells"`
	RequireFullMatch  bool        `json:"requireFullMatch"`
	ValidateOnConfirm bool        `json:"validateOnConfirm"`
	BatchSize         int         `json:"batchSize"`
	Payload           PayloadKind `json:"payload"`
	ContextKeys       []string    `json:"contextKeys,omitempty"`
	ValueField        string      `json:"valueField,omitempty"`
	Derive            DeriveFunc  `json:"-"`
}

// Field returns the field spec for key.
func (d *PipelineDefinition) Field(key string) (FieldSpec, bool) {
	for _, f := range d.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// MatchedItem is one identifier the catalog recognised.
type MatchedItem struct {
	Code       string         `json:"code"`
	TargetID   string         `json:"targetId"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// MatchResponse is the catalog matcher's answer for a set of identifiers.
type MatchResponse struct {
	Matched     []MatchedItem
	Unmatched   []string
	AlreadyDone []MatchedItem
}

// CatalogMatcher resolves identifiers against the system of record. It is
// read-only and safe to repeat.
type CatalogMatcher interface {
	Match(ctx context.Context, pipeline string, codes []string) (*MatchResponse, error)
}

// Batch is one slice of eligible rows sent to the execution service.
type Batch struct {
	Pipeline  string            `json:"pipeline"`
	RunID     string            `json:"runId"`
	Index     int               `json:"index"`
	Payload   PayloadKind       `json:"payload"`
	Rows      []ProjectedRow    `json:"rows"`
	TargetIDs []string          `json:"targetIds"`
	Context   map[string]string `json:"context,omitempty"`
}

// ExecutionResult is the service's response body for one batch.
type ExecutionResult map[string]any

// ExecutionService applies a batch of changes. It is not assumed idempotent.
type ExecutionService interface {
	Execute(ctx context.Context, batch Batch) (ExecutionResult, error)
}

// isBlank reports whether s has no visible content.
func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
