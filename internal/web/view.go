package web

import (
	"time"

	"github.com/JonMunkholm/bulkimport/internal/core"
)

// runView is the JSON shape of a run. Only the fields of the current step
// are filled.
type runView struct {
	RunID    string    `json:"runId"`
	Pipeline string    `json:"pipeline"`
	Step     core.Step `json:"step"`
	Error    string    `json:"error,omitempty"`
	FileName string    `json:"fileName,omitempty"`

	HeaderCandidates []core.HeaderCandidate `json:"headerCandidates,omitempty"`
	SuggestedHeader  *int                   `json:"suggestedHeader,omitempty"`

	HeaderRow *int               `json:"headerRow,omitempty"`
	Headers   []string           `json:"headers,omitempty"`
	Mapping   map[string]*string `json:"mapping,omitempty"`
	Missing   []string           `json:"missing,omitempty"`

	Preview *core.PreviewResponse `json:"preview,omitempty"`
	Abort   *abortView            `json:"abort,omitempty"`

	Progress  *core.ExecProgress `json:"progress,omitempty"`
	StartedAt *time.Time         `json:"startedAt,omitempty"`

	Report *core.RunReport `json:"report,omitempty"`
}

type abortView struct {
	Reason  string `json:"reason"`
	Error   string `json:"error,omitempty"`
	Batches int    `json:"partialBatches"`
}

// newRunView renders the controller's current state. previewRows caps the
// rows included in a preview.
func newRunView(c *core.Controller, previewRows int) runView {
	def := c.Pipeline()
	v := runView{RunID: c.ID(), Pipeline: def.Key}

	st := c.State()
	v.Step = st.Step()

	switch s := st.(type) {
	case *core.UploadState:
		v.Error = s.Err
	case *core.PickHeaderState:
		v.FileName = s.FileName
		v.HeaderCandidates = core.HeaderCandidates(s.Grid, core.MaxHeaderCandidates)
		v.SuggestedHeader = intPtr(s.Suggested)
	case *core.MappingState:
		v.setSheet(s.Sheet)
		v.setMapping(def, s.Mapping)
	case *core.ValidationState:
		v.setSheet(s.Sheet)
		v.setMapping(def, s.Mapping)
		v.Error = s.Err
		v.Preview = core.BuildPreview(def, s.Rows, nil, previewRows)
	case *core.PreviewState:
		v.setSheet(s.Sheet)
		v.setMapping(def, s.Mapping)
		v.Error = s.Err
		rec := s.Reconciliation
		if !s.Validated() {
			rec = nil
		}
		v.Preview = core.BuildPreview(def, s.Rows, rec, previewRows)
		if s.Abort != nil {
			v.Abort = &abortView{Reason: s.Abort.Reason, Batches: len(s.Abort.Partial)}
			if s.Abort.Err != nil {
				v.Abort.Error = s.Abort.Err.Error()
			}
		}
	case *core.ExecutingState:
		v.setSheet(s.Preview.Sheet)
		p := s.Progress
		v.Progress = &p
		started := s.StartedAt
		v.StartedAt = &started
	case *core.ResultState:
		v.FileName = s.Report.FileName
		v.Report = s.Report
	}
	return v
}

func (v *runView) setSheet(sh core.Sheet) {
	v.FileName = sh.FileName
	v.HeaderRow = intPtr(sh.HeaderRow)
	v.Headers = sh.Headers
}

// setMapping lists every field the operator has considered. A bound field
// shows its label; an explicitly unset field shows null.
func (v *runView) setMapping(def *core.PipelineDefinition, m core.ColumnMapping) {
	v.Mapping = make(map[string]*string, len(m))
	for field, b := range m {
		if b.Bound() {
			label := b.Label
			v.Mapping[field] = &label
		} else {
			v.Mapping[field] = nil
		}
	}
	v.Missing = m.Missing(def.Fields)
}

func intPtr(i int) *int { return &i }
