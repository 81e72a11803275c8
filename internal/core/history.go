package core

import (
	"context"
	"sort"
	"sync"
	"time"
)

// HistoryEntry is the summary row shown in the report history.
type HistoryEntry struct {
	RunID      string       `json:"runId"`
	Pipeline   string       `json:"pipeline"`
	FileName   string       `json:"fileName"`
	FinishedAt time.Time    `json:"finishedAt"`
	Counts     ReportCounts `json:"counts"`
	TotalValue string       `json:"totalValue,omitempty"`
	Abandoned  bool         `json:"abandoned"`
}

// Entry summarises the report for history listings.
func (r *RunReport) Entry() HistoryEntry {
	return HistoryEntry{
		RunID:      r.RunID,
		Pipeline:   r.Pipeline,
		FileName:   r.FileName,
		FinishedAt: r.FinishedAt,
		Counts:     r.Counts,
		TotalValue: r.TotalValue,
		Abandoned:  r.Abandoned,
	}
}

// ReportStore keeps finished run reports after the run itself expires.
type ReportStore interface {
	SaveReport(ctx context.Context, r *RunReport) error
	GetReport(ctx context.Context, runID string) (*RunReport, error)
	ListReports(ctx context.Context, pipeline string, limit int) ([]HistoryEntry, error)
}

// DefaultHistoryLimit caps history listings when no limit is given.
const DefaultHistoryLimit = 50

// MemoryReportStore is a ReportStore for single-process deployments and tests.
// It keeps at most max reports, dropping the oldest.
type MemoryReportStore struct {
	mu      sync.RWMutex
	max     int
	reports map[string]*RunReport
	order   []string
}

// NewMemoryReportStore creates a store holding up to max reports.
func NewMemoryReportStore(max int) *MemoryReportStore {
	if max <= 0 {
		max = 1000
	}
	return &MemoryReportStore{max: max, reports: make(map[string]*RunReport)}
}

func (m *MemoryReportStore) SaveReport(_ context.Context, r *RunReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.reports[r.RunID]; !exists {
		m.order = append(m.order, r.RunID)
	}
	m.reports[r.RunID] = r
	for len(m.order) > m.max {
		delete(m.reports, m.order[0])
		m.order = m.order[1:]
	}
	return nil
}

func (m *MemoryReportStore) GetReport(_ context.Context, runID string) (*RunReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.reports[runID]
	if !ok {
		return nil, ErrReportNotFound
	}
	return r, nil
}

// ListReports returns newest first, optionally filtered by pipeline.
func (m *MemoryReportStore) ListReports(_ context.Context, pipeline string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	m.mu.RLock()
	entries := make([]HistoryEntry, 0, len(m.reports))
	for _, r := range m.reports {
		if pipeline != "" && r.Pipeline != pipeline {
			continue
		}
		entries = append(entries, r.Entry())
	}
	m.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].FinishedAt.After(entries[j].FinishedAt)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
