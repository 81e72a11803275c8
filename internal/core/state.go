package core

// state.go holds the run lifecycle as a tagged union and the pure Reduce
// function that moves between steps. Reduce never performs I/O: the
// Controller runs the matcher and the executor and feeds their results
// back in as actions.
//
//	upload -> pick_header -> mapping -> [validation] -> preview -> executing -> result

import (
	"fmt"
	"time"
)

// Step names a point in the run lifecycle.
type Step string

const (
	StepUpload     Step = "upload"
	StepPickHeader Step = "pick_header"
	StepMapping    Step = "mapping"
	StepValidation Step = "validation"
	StepPreview    Step = "preview"
	StepExecuting  Step = "executing"
	StepResult     Step = "result"
)

// State is one of the step structs below.
type State interface {
	Step() Step
	isState()
}

// Sheet is the tokenized file with its confirmed header row.
type Sheet struct {
	FileName  string
	Grid      Grid
	HeaderRow int
	Headers   []string
}

// UploadState waits for a file. Err holds the last rejected upload.
type UploadState struct {
	Err string
}

// PickHeaderState waits for the operator to confirm the header row.
type PickHeaderState struct {
	FileName  string
	Grid      Grid
	Suggested int
}

// MappingState lets the operator adjust the column mapping.
type MappingState struct {
	Sheet
	Mapping ColumnMapping
}

// ValidationState holds a frozen mapping waiting for reconciliation.
type ValidationState struct {
	Sheet
	Mapping ColumnMapping
	Rows    []ProjectedRow
	Err     string
}

// PreviewState shows projected rows, optionally reconciled.
type PreviewState struct {
	Sheet
	Mapping        ColumnMapping
	Rows           []ProjectedRow
	Reconciliation *ReconciliationResult
	Err            string
	Abort          *RunAbortedError
}

// Validated reports whether a current reconciliation is attached.
func (s *PreviewState) Validated() bool {
	return s.Reconciliation != nil && s.Reconciliation.Fingerprint == Fingerprint(s.Grid, s.HeaderRow, s.Mapping)
}

// ExecutingState is a run whose batches are being sent.
type ExecutingState struct {
	Preview   *PreviewState
	Progress  ExecProgress
	StartedAt time.Time
}

// ResultState is terminal; only Reset leaves it.
type ResultState struct {
	Report *RunReport
}

func (*UploadState) Step() Step     { return StepUpload }
func (*PickHeaderState) Step() Step { return StepPickHeader }
func (*MappingState) Step() Step    { return StepMapping }
func (*ValidationState) Step() Step { return StepValidation }
func (*PreviewState) Step() Step    { return StepPreview }
func (*ExecutingState) Step() Step  { return StepExecuting }
func (*ResultState) Step() Step     { return StepResult }

func (*UploadState) isState()     {}
func (*PickHeaderState) isState() {}
func (*MappingState) isState()    {}
func (*ValidationState) isState() {}
func (*PreviewState) isState()    {}
func (*ExecutingState) isState()  {}
func (*ResultState) isState()     {}

// Action is an input to Reduce.
type Action interface {
	isAction()
}

type (
	// Upload replaces the file.
	Upload struct {
		FileName string
		Data     []byte
	}
	// ConfirmHeader fixes the header row.
	ConfirmHeader struct {
		Row int
	}
	// SetMapping binds Field to Label, or unbinds it when Unset is true.
	SetMapping struct {
		Field string
		Label string
		Unset bool
	}
	// ConfirmMapping freezes the mapping.
	ConfirmMapping struct{}
	// Back returns to an earlier step.
	Back struct {
		To Step
	}
	// Reset discards the run and starts over.
	Reset struct{}

	ReconciliationDone struct {
		Result *ReconciliationResult
	}
	ReconciliationFailed struct {
		Err error
	}
	ExecutionStarted struct {
		At time.Time
	}
	ExecutionProgressed struct {
		Progress ExecProgress
	}
	ExecutionFinished struct {
		Report *RunReport
	}
	ExecutionAborted struct {
		Err *RunAbortedError
	}
)

func (Upload) isAction()               {}
func (ConfirmHeader) isAction()        {}
func (SetMapping) isAction()           {}
func (ConfirmMapping) isAction()       {}
func (Back) isAction()                 {}
func (Reset) isAction()                {}
func (ReconciliationDone) isAction()   {}
func (ReconciliationFailed) isAction() {}
func (ExecutionStarted) isAction()     {}
func (ExecutionProgressed) isAction()  {}
func (ExecutionFinished) isAction()    {}
func (ExecutionAborted) isAction()     {}

// Initial returns the state a new run starts in.
func Initial() State {
	return &UploadState{}
}

// Reduce applies action to state. On error the returned state is the one
// the run should hold afterwards, which is usually s unchanged.
func Reduce(def *PipelineDefinition, s State, action Action) (State, error) {
	switch a := action.(type) {
	case Upload:
		return reduceUpload(def, s, a)
	case ConfirmHeader:
		return reduceConfirmHeader(def, s, a)
	case SetMapping:
		return reduceSetMapping(def, s, a)
	case ConfirmMapping:
		return reduceConfirmMapping(def, s)
	case Back:
		return reduceBack(def, s, a)
	case Reset:
		if _, ok := s.(*ExecutingState); ok {
			return s, invalid(s, "reset")
		}
		return &UploadState{}, nil
	case ReconciliationDone:
		return reduceReconciliationDone(s, a)
	case ReconciliationFailed:
		return reduceReconciliationFailed(s, a)
	case ExecutionStarted:
		return reduceExecutionStarted(def, s, a)
	case ExecutionProgressed:
		ex, ok := s.(*ExecutingState)
		if !ok {
			return s, invalid(s, "progress")
		}
		next := *ex
		next.Progress = a.Progress
		return &next, nil
	case ExecutionFinished:
		if _, ok := s.(*ExecutingState); !ok {
			return s, invalid(s, "finish")
		}
		return &ResultState{Report: a.Report}, nil
	case ExecutionAborted:
		ex, ok := s.(*ExecutingState)
		if !ok {
			return s, invalid(s, "abort")
		}
		p := *ex.Preview
		p.Abort = a.Err
		if a.Err != nil {
			p.Err = a.Err.Error()
		}
		return &p, nil
	default:
		return s, fmt.Errorf("%w: unknown action %T", ErrInvalidTransition, action)
	}
}

func invalid(s State, action string) error {
	return fmt.Errorf("%w: %s not allowed in %s", ErrInvalidTransition, action, s.Step())
}

func reduceUpload(def *PipelineDefinition, s State, a Upload) (State, error) {
	if _, ok := s.(*UploadState); !ok {
		return s, invalid(s, "upload")
	}
	grid, err := Tokenize(a.FileName, a.Data)
	if err != nil {
		return &UploadState{Err: err.Error()}, err
	}
	return &PickHeaderState{
		FileName:  a.FileName,
		Grid:      grid,
		Suggested: SuggestHeaderRow(grid, def.MinHeaderCells),
	}, nil
}

func reduceConfirmHeader(def *PipelineDefinition, s State, a ConfirmHeader) (State, error) {
	ph, ok := s.(*PickHeaderState)
	if !ok {
		return s, invalid(s, "confirm header")
	}
	headers, err := HeaderLabels(ph.Grid, a.Row)
	if err != nil {
		return s, err
	}
	return &MappingState{
		Sheet: Sheet{
			FileName:  ph.FileName,
			Grid:      ph.Grid,
			HeaderRow: a.Row,
			Headers:   headers,
		},
		Mapping: AutoMap(headers, def.Fields),
	}, nil
}

func reduceSetMapping(def *PipelineDefinition, s State, a SetMapping) (State, error) {
	var sheet Sheet
	var mapping ColumnMapping
	switch st := s.(type) {
	case *MappingState:
		sheet, mapping = st.Sheet, st.Mapping
	case *ValidationState:
		sheet, mapping = st.Sheet, st.Mapping
	case *PreviewState:
		sheet, mapping = st.Sheet, st.Mapping
	default:
		return s, invalid(s, "set mapping")
	}

	next := mapping.Clone()
	var err error
	if a.Unset {
		err = next.Unset(def.Fields, a.Field)
	} else {
		err = next.Set(def.Fields, sheet.Headers, a.Field, a.Label)
	}
	if err != nil {
		return s, err
	}
	return &MappingState{Sheet: sheet, Mapping: next}, nil
}

func reduceConfirmMapping(def *PipelineDefinition, s State) (State, error) {
	m, ok := s.(*MappingState)
	if !ok {
		return s, invalid(s, "confirm mapping")
	}
	if err := m.Mapping.Validate(def.Fields); err != nil {
		return s, err
	}

	mapping := m.Mapping.Clone()
	rows := Project(m.Grid, m.HeaderRow, m.Headers, mapping, def)
	if def.ValidateOnConfirm {
		return &ValidationState{Sheet: m.Sheet, Mapping: mapping, Rows: rows}, nil
	}
	return &PreviewState{Sheet: m.Sheet, Mapping: mapping, Rows: rows}, nil
}

func reduceBack(def *PipelineDefinition, s State, a Back) (State, error) {
	var sheet *Sheet
	var mapping ColumnMapping
	var fileName string
	var grid Grid
	switch st := s.(type) {
	case *PickHeaderState:
		fileName, grid = st.FileName, st.Grid
	case *MappingState:
		sheet, mapping = &st.Sheet, st.Mapping
	case *ValidationState:
		sheet, mapping = &st.Sheet, st.Mapping
	case *PreviewState:
		sheet, mapping = &st.Sheet, st.Mapping
	default:
		return s, invalid(s, "back")
	}
	if sheet != nil {
		fileName, grid = sheet.FileName, sheet.Grid
	}

	switch a.To {
	case StepUpload:
		return &UploadState{}, nil
	case StepPickHeader:
		if s.Step() == StepPickHeader {
			return s, invalid(s, "back to pick_header")
		}
		return &PickHeaderState{
			FileName:  fileName,
			Grid:      grid,
			Suggested: sheet.HeaderRow,
		}, nil
	case StepMapping:
		if s.Step() != StepValidation && s.Step() != StepPreview {
			return s, invalid(s, "back to mapping")
		}
		return &MappingState{Sheet: *sheet, Mapping: mapping.Clone()}, nil
	default:
		return s, fmt.Errorf("%w: cannot go back to %q", ErrInvalidTransition, a.To)
	}
}

func reduceReconciliationDone(s State, a ReconciliationDone) (State, error) {
	var sheet Sheet
	var mapping ColumnMapping
	var rows []ProjectedRow
	switch st := s.(type) {
	case *ValidationState:
		sheet, mapping, rows = st.Sheet, st.Mapping, st.Rows
	case *PreviewState:
		sheet, mapping, rows = st.Sheet, st.Mapping, st.Rows
	case *UploadState, *PickHeaderState, *MappingState:
		// The operator moved back while the catalog call was in flight.
		return s, ErrStaleReconciliation
	default:
		return s, invalid(s, "reconciliation result")
	}
	if a.Result == nil || a.Result.Fingerprint != Fingerprint(sheet.Grid, sheet.HeaderRow, mapping) {
		return s, ErrStaleReconciliation
	}
	return &PreviewState{Sheet: sheet, Mapping: mapping, Rows: rows, Reconciliation: a.Result}, nil
}

func reduceReconciliationFailed(s State, a ReconciliationFailed) (State, error) {
	msg := ""
	if a.Err != nil {
		msg = a.Err.Error()
	}
	switch st := s.(type) {
	case *ValidationState:
		next := *st
		next.Err = msg
		return &next, nil
	case *PreviewState:
		next := *st
		next.Err = msg
		return &next, nil
	default:
		return s, invalid(s, "reconciliation failure")
	}
}

func reduceExecutionStarted(def *PipelineDefinition, s State, a ExecutionStarted) (State, error) {
	p, ok := s.(*PreviewState)
	if !ok {
		return s, invalid(s, "execute")
	}
	if p.Reconciliation == nil {
		return s, ErrNotValidated
	}
	if !p.Validated() {
		return s, ErrStaleReconciliation
	}
	if def.RequireFullMatch && len(p.Reconciliation.Unmatched) > 0 {
		return s, &UnmatchedIdentifiersError{Identifiers: append([]string(nil), p.Reconciliation.Unmatched...)}
	}

	frozen := *p
	frozen.Err = ""
	frozen.Abort = nil
	return &ExecutingState{Preview: &frozen, StartedAt: a.At}, nil
}
