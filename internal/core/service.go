package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultRunTTL is how long an idle run is kept.
const DefaultRunTTL = 2 * time.Hour

// ServiceConfig holds run and execution settings.
type ServiceConfig struct {
	RunTTL                  time.Duration
	ExecTimeout             time.Duration
	Idempotent              bool
	MaxConcurrentExecutions int
	ExecSlotWait            time.Duration
}

// Service holds every active run. Runs are isolated from each other; only
// the execution limiter and the report store are shared.
type Service struct {
	cfg      ServiceConfig
	matcher  CatalogMatcher
	executor ExecutionService
	store    ReportStore
	limiter  *ExecLimiter
	logger   *slog.Logger

	mu   sync.RWMutex
	runs map[string]*Controller
}

// NewService creates a Service. A nil store keeps reports in memory.
func NewService(matcher CatalogMatcher, executor ExecutionService, store ReportStore, cfg ServiceConfig) *Service {
	if store == nil {
		store = NewMemoryReportStore(0)
	}
	if cfg.RunTTL <= 0 {
		cfg.RunTTL = DefaultRunTTL
	}
	if cfg.ExecTimeout <= 0 {
		cfg.ExecTimeout = DefaultExecTimeout
	}
	return &Service{
		cfg:      cfg,
		matcher:  matcher,
		executor: executor,
		store:    store,
		limiter:  NewExecLimiter(cfg.MaxConcurrentExecutions, cfg.ExecSlotWait),
		logger:   slog.Default(),
		runs:     make(map[string]*Controller),
	}
}

// Pipelines returns every registered pipeline.
func (s *Service) Pipelines() []*PipelineDefinition {
	return All()
}

// StartRun creates a new run for pipelineKey.
func (s *Service) StartRun(ctx context.Context, pipelineKey string) (*Controller, error) {
	def, ok := Get(pipelineKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPipeline, pipelineKey)
	}

	id := uuid.New().String()
	c := NewController(id, def, ControllerOptions{
		Matcher:     s.matcher,
		Executor:    s.executor,
		Limiter:     s.limiter,
		ExecTimeout: s.cfg.ExecTimeout,
		Idempotent:  s.cfg.Idempotent,
		OnReport:    s.saveReport,
		Logger:      s.logger,
	})

	s.mu.Lock()
	s.runs[id] = c
	s.mu.Unlock()

	s.logger.Info("run created", "run_id", id, "pipeline", pipelineKey)
	return c, nil
}

// Run returns the run with id.
func (s *Service) Run(id string) (*Controller, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return c, nil
}

// DeleteRun abandons and forgets a run. An executing run finishes its
// current batch in the background and its report is still saved.
func (s *Service) DeleteRun(id string) error {
	s.mu.Lock()
	c, ok := s.runs[id]
	delete(s.runs, id)
	s.mu.Unlock()

	if !ok {
		return ErrRunNotFound
	}
	c.Abandon()
	s.logger.Info("run deleted", "run_id", id)
	return nil
}

// RunCount returns the number of tracked runs.
func (s *Service) RunCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}

// Report returns the report for a finished run, from the run itself while
// it is tracked and from the store afterwards.
func (s *Service) Report(ctx context.Context, runID string) (*RunReport, error) {
	if c, err := s.Run(runID); err == nil {
		if rs, ok := c.State().(*ResultState); ok {
			return rs.Report, nil
		}
	}
	r, err := s.store.GetReport(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("get report %s: %w", runID, err)
	}
	return r, nil
}

// History lists saved reports, newest first.
func (s *Service) History(ctx context.Context, pipeline string, limit int) ([]HistoryEntry, error) {
	return s.store.ListReports(ctx, pipeline, limit)
}

func (s *Service) saveReport(ctx context.Context, r *RunReport) {
	if err := s.store.SaveReport(ctx, r); err != nil {
		s.logger.Error("failed to save run report", "run_id", r.RunID, "error", err)
	}
}

// ExpireIdle drops runs idle for longer than the TTL. Executing runs are kept.
func (s *Service) ExpireIdle(now time.Time) int {
	s.mu.Lock()
	var expired []*Controller
	for id, c := range s.runs {
		if c.Executing() {
			continue
		}
		if now.Sub(c.IdleSince()) > s.cfg.RunTTL {
			expired = append(expired, c)
			delete(s.runs, id)
		}
	}
	s.mu.Unlock()

	for _, c := range expired {
		c.Abandon()
		s.logger.Debug("run expired", "run_id", c.ID())
	}
	return len(expired)
}

// StartJanitor expires idle runs every interval until ctx is done.
func (s *Service) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.ExpireIdle(now); n > 0 {
				s.logger.Info("expired idle runs", "count", n)
			}
		}
	}
}

// ExecLimiterStatus returns the current execution slot usage.
func (s *Service) ExecLimiterStatus() ExecLimiterStatus {
	return s.limiter.Status()
}

// WaitForExecutions blocks until every running execution has finished.
func (s *Service) WaitForExecutions(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// AbandonExecutions asks every executing run to stop after its current batch.
func (s *Service) AbandonExecutions() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.runs {
		if c.Executing() {
			c.Abandon()
		}
	}
}

// IsNotFound reports whether err means a run or report does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound) || errors.Is(err, ErrReportNotFound) || errors.Is(err, ErrUnknownPipeline)
}
