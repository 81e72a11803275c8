package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ControllerOptions wires a Controller to its collaborators.
type ControllerOptions struct {
	Matcher     CatalogMatcher
	Executor    ExecutionService
	Limiter     *ExecLimiter
	ExecTimeout time.Duration
	Idempotent  bool
	OnReport    func(context.Context, *RunReport)
	Logger      *slog.Logger
}

// Controller owns one run. Actions are serialised by its mutex; the matcher
// and executor calls run outside the lock and report back through Reduce.
type Controller struct {
	id     string
	def    *PipelineDefinition
	opts   ControllerOptions
	logger *slog.Logger

	mu        sync.Mutex
	state     State
	touchedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}
	subs      map[chan ExecProgress]struct{}
}

// NewController creates a run in the upload step.
func NewController(id string, def *PipelineDefinition, opts ControllerOptions) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		id:        id,
		def:       def,
		opts:      opts,
		logger:    logger.With("run_id", id, "pipeline", def.Key),
		state:     Initial(),
		touchedAt: time.Now(),
	}
}

// ID returns the run id.
func (c *Controller) ID() string { return c.id }

// Pipeline returns the definition the run was created for.
func (c *Controller) Pipeline() *PipelineDefinition { return c.def }

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IdleSince returns the last time an action touched the run.
func (c *Controller) IdleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.touchedAt
}

// Executing reports whether batches are being sent.
func (c *Controller) Executing() bool {
	return c.State().Step() == StepExecuting
}

// Dispatch applies an operator action. Effect results are produced by
// Validate and Execute and cannot be dispatched directly.
func (c *Controller) Dispatch(action Action) (State, error) {
	switch action.(type) {
	case Upload, ConfirmHeader, SetMapping, ConfirmMapping, Back, Reset:
	default:
		return c.State(), fmt.Errorf("%w: %T cannot be dispatched", ErrInvalidTransition, action)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.apply(action)
}

// apply runs Reduce under c.mu and logs the transition.
func (c *Controller) apply(action Action) (State, error) {
	from := c.state.Step()
	next, err := Reduce(c.def, c.state, action)
	c.state = next
	c.touchedAt = time.Now()
	if err != nil {
		c.logger.Debug("action rejected", "action", fmt.Sprintf("%T", action), "step", from, "error", err)
		return next, err
	}
	if to := next.Step(); to != from {
		c.logger.Info("run transition", "from", from, "to", to)
	}
	return next, nil
}

// Upload tokenizes a file into the run.
func (c *Controller) Upload(fileName string, data []byte) (State, error) {
	return c.Dispatch(Upload{FileName: fileName, Data: data})
}

// ConfirmHeader fixes the header row.
func (c *Controller) ConfirmHeader(row int) (State, error) {
	return c.Dispatch(ConfirmHeader{Row: row})
}

// SetMapping binds field to label.
func (c *Controller) SetMapping(field, label string) (State, error) {
	return c.Dispatch(SetMapping{Field: field, Label: label})
}

// UnsetMapping marks field as having no column.
func (c *Controller) UnsetMapping(field string) (State, error) {
	return c.Dispatch(SetMapping{Field: field, Unset: true})
}

// ConfirmMapping freezes the mapping and projects the rows.
func (c *Controller) ConfirmMapping() (State, error) {
	return c.Dispatch(ConfirmMapping{})
}

// Back returns to an earlier step.
func (c *Controller) Back(to Step) (State, error) {
	return c.Dispatch(Back{To: to})
}

// Reset discards the run's data.
func (c *Controller) Reset() (State, error) {
	return c.Dispatch(Reset{})
}

// Validate reconciles the projected rows with the catalog. The lock is not
// held during the call; a mapping change made meanwhile makes the result
// stale and it is rejected.
func (c *Controller) Validate(ctx context.Context) (State, error) {
	c.mu.Lock()
	var sheet Sheet
	var mapping ColumnMapping
	var rows []ProjectedRow
	switch st := c.state.(type) {
	case *ValidationState:
		sheet, mapping, rows = st.Sheet, st.Mapping, st.Rows
	case *PreviewState:
		sheet, mapping, rows = st.Sheet, st.Mapping, st.Rows
	default:
		s := c.state
		c.mu.Unlock()
		return s, invalid(s, "validate")
	}
	fp := Fingerprint(sheet.Grid, sheet.HeaderRow, mapping)
	c.mu.Unlock()

	var rec *ReconciliationResult
	var err error
	if c.opts.Matcher == nil {
		err = &ReconciliationCallError{Err: errors.New("no catalog matcher configured")}
	} else {
		start := time.Now()
		rec, err = Reconcile(ContextWithRunID(ctx, c.id), c.opts.Matcher, c.def.Key, rows, c.def.IdentifierKey, fp)
		if err == nil {
			c.logger.Info("reconciliation complete",
				"matched", len(rec.Matched),
				"unmatched", len(rec.Unmatched),
				"already_done", len(rec.AlreadyDone),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.logger.Warn("reconciliation failed", "error", err)
		s, _ := c.apply(ReconciliationFailed{Err: err})
		return s, err
	}
	return c.apply(ReconciliationDone{Result: rec})
}

// Execution is a run that passed every gate and holds an execution slot.
type Execution struct {
	c         *Controller
	ctx       context.Context
	cancel    context.CancelFunc
	preview   *PreviewState
	eligible  []ProjectedRow
	batches   []Batch
	params    map[string]string
	startedAt time.Time
}

// Batches returns the number of batches the execution will send.
func (x *Execution) Batches() int { return len(x.batches) }

// Begin checks every gate, takes an execution slot and moves the run to the
// executing step. The returned Execution must be Run exactly once.
func (c *Controller) Begin(ctx context.Context, params map[string]string) (*Execution, error) {
	for _, key := range c.def.ContextKeys {
		if isBlank(params[key]) {
			return nil, fmt.Errorf("%w: %s", ErrMissingContext, key)
		}
	}

	// Dry run so a doomed request does not wait for a slot.
	if _, err := Reduce(c.def, c.State(), ExecutionStarted{}); err != nil {
		return nil, err
	}

	if c.opts.Limiter != nil {
		if err := c.opts.Limiter.Acquire(ctx); err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	next, err := c.apply(ExecutionStarted{At: now})
	if err != nil {
		if c.opts.Limiter != nil {
			c.opts.Limiter.Release()
		}
		return nil, err
	}
	preview := next.(*ExecutingState).Preview

	eligible, targets, err := EligibleRows(preview.Rows, c.def.IdentifierKey, preview.Reconciliation, c.def.RequireFullMatch)
	if err != nil {
		c.state = preview
		if c.opts.Limiter != nil {
			c.opts.Limiter.Release()
		}
		return nil, err
	}

	batches := Partition(eligible, targets, c.def.BatchSize)
	for i := range batches {
		batches[i].Pipeline = c.def.Key
		batches[i].RunID = c.id
		batches[i].Payload = c.def.Payload
		batches[i].Context = params
	}

	runCtx, cancel := context.WithCancel(ContextWithRunID(context.WithoutCancel(ctx), c.id))
	c.cancel = cancel
	c.done = make(chan struct{})

	c.logger.Info("execution started",
		"eligible_rows", len(eligible),
		"batches", len(batches),
		"idempotent", c.opts.Idempotent,
	)

	return &Execution{
		c:         c,
		ctx:       runCtx,
		cancel:    cancel,
		preview:   preview,
		eligible:  eligible,
		batches:   batches,
		params:    params,
		startedAt: now,
	}, nil
}

// Run sends the batches and moves the run to the result step, or back to
// preview when the executor aborts.
func (x *Execution) Run() (*RunReport, error) {
	c := x.c
	defer func() {
		x.cancel()
		if c.opts.Limiter != nil {
			c.opts.Limiter.Release()
		}
		c.mu.Lock()
		c.cancel = nil
		close(c.done)
		for ch := range c.subs {
			close(ch)
		}
		c.subs = nil
		c.mu.Unlock()
	}()

	executor := &BatchExecutor{
		Service:       c.opts.Executor,
		Timeout:       c.opts.ExecTimeout,
		Idempotent:    c.opts.Idempotent,
		IdentifierKey: c.def.IdentifierKey,
		Logger:        c.logger,
		Progress: func(p ExecProgress) {
			c.mu.Lock()
			c.state, _ = Reduce(c.def, c.state, ExecutionProgressed{Progress: p})
			c.touchedAt = time.Now()
			for ch := range c.subs {
				select {
				case ch <- p:
				default:
				}
			}
			c.mu.Unlock()
		},
	}

	outcomes, err := executor.Run(x.ctx, x.batches)
	abandoned := x.ctx.Err() != nil

	if err != nil {
		var abort *RunAbortedError
		if !errors.As(err, &abort) {
			abort = &RunAbortedError{Reason: "execution failed", Err: err}
		}
		c.logger.Error("execution aborted", "error", err, "partial_batches", len(abort.Partial))
		if len(abort.Partial) > 0 {
			c.publish(x.report(abort.Partial, true))
		}
		c.mu.Lock()
		c.apply(ExecutionAborted{Err: abort})
		c.mu.Unlock()
		return nil, abort
	}

	report := x.report(outcomes, abandoned)
	c.logger.Info("execution finished",
		"batches", report.Counts.Batches,
		"failed", report.Counts.Failed,
		"skipped", report.Counts.Skipped,
		"rows_applied", report.Counts.RowsApplied,
		"duration_ms", report.DurationMs,
	)

	c.mu.Lock()
	c.apply(ExecutionFinished{Report: report})
	c.mu.Unlock()

	c.publish(report)
	return report, nil
}

func (x *Execution) report(outcomes []BatchOutcome, abandoned bool) *RunReport {
	r := BuildReport(ReportInput{
		RunID:          x.c.id,
		Definition:     x.c.def,
		FileName:       x.preview.FileName,
		Rows:           x.preview.Rows,
		Eligible:       x.eligible,
		Reconciliation: x.preview.Reconciliation,
		Outcomes:       outcomes,
		StartedAt:      x.startedAt,
		FinishedAt:     time.Now(),
		Idempotent:     x.c.opts.Idempotent,
		Abandoned:      abandoned,
	})
	r.Context = x.params
	return r
}

func (c *Controller) publish(r *RunReport) {
	if c.opts.OnReport != nil {
		c.opts.OnReport(context.Background(), r)
	}
}

// Execute runs Begin and Run synchronously.
func (c *Controller) Execute(ctx context.Context, params map[string]string) (*RunReport, error) {
	x, err := c.Begin(ctx, params)
	if err != nil {
		return nil, err
	}
	return x.Run()
}

// Abandon stops the run. An executing run finishes its in-flight batch and
// skips the rest; any other run is reset.
func (c *Controller) Abandon() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.logger.Warn("abandoning run during execution")
		c.cancel()
		return
	}
	if c.state.Step() != StepExecuting {
		c.apply(Reset{})
	}
}

// Subscribe returns a channel that receives progress after every batch of
// the running execution. The channel is closed when the execution ends, or
// at once when nothing is executing. Slow readers miss updates. stop must
// be called when the caller is done reading.
func (c *Controller) Subscribe() (updates <-chan ExecProgress, stop func()) {
	ch := make(chan ExecProgress, 8)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		close(ch)
		return ch, func() {}
	}
	if c.subs == nil {
		c.subs = make(map[chan ExecProgress]struct{})
	}
	c.subs[ch] = struct{}{}

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subs[ch]; ok {
			delete(c.subs, ch)
			close(ch)
		}
	}
}

// Wait blocks until a running execution has finished or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
