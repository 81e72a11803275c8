package core

import (
	"context"
	"errors"
	"sync"
)

// fakeMatcher answers from a fixed table of known codes.
type fakeMatcher struct {
	mu      sync.Mutex
	known   map[string]string
	done    map[string]string
	omit    map[string]bool
	err     error
	calls   int
	lastReq []string
	hook    func()
}

func newFakeMatcher(codes ...string) *fakeMatcher {
	m := &fakeMatcher{known: make(map[string]string), done: make(map[string]string), omit: make(map[string]bool)}
	for _, c := range codes {
		m.known[c] = "id-" + c
	}
	return m
}

func (m *fakeMatcher) Match(_ context.Context, _ string, codes []string) (*MatchResponse, error) {
	m.mu.Lock()
	m.calls++
	m.lastReq = append([]string(nil), codes...)
	hook := m.hook
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	if m.err != nil {
		return nil, m.err
	}

	resp := &MatchResponse{}
	for _, c := range codes {
		switch {
		case m.omit[c]:
		case m.done[c] != "":
			resp.AlreadyDone = append(resp.AlreadyDone, MatchedItem{Code: c, TargetID: m.done[c]})
		case m.known[c] != "":
			resp.Matched = append(resp.Matched, MatchedItem{Code: c, TargetID: m.known[c]})
		default:
			resp.Unmatched = append(resp.Unmatched, c)
		}
	}
	return resp, nil
}

// fakeExecutor records batches and fails according to failFor.
type fakeExecutor struct {
	mu      sync.Mutex
	calls   []Batch
	failFor func(b Batch, attempt int) error
	attempt map[int]int
	panicOn int
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{attempt: make(map[int]int), panicOn: -1}
}

func (e *fakeExecutor) Execute(_ context.Context, b Batch) (ExecutionResult, error) {
	e.mu.Lock()
	e.calls = append(e.calls, b)
	e.attempt[b.Index]++
	n := e.attempt[b.Index]
	fail := e.failFor
	e.mu.Unlock()

	if b.Index == e.panicOn {
		panic("executor exploded")
	}
	if fail != nil {
		if err := fail(b, n); err != nil {
			return nil, err
		}
	}
	return ExecutionResult{"processed": len(b.Rows)}, nil
}

func (e *fakeExecutor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

var errServiceDown = errors.New("service unavailable")

// stockDefinition mirrors the opening stock pipeline without registering it.
func stockDefinition() *PipelineDefinition {
	return &PipelineDefinition{
		Key:           "stock_test",
		Label:         "Stock",
		IdentifierKey: "code",
		Fields: []FieldSpec{
			{Key: "code", Label: "Code", Required: true, Aliases: []string{"sku"}},
			{Key: "qty", Label: "Quantity", Required: true, Aliases: []string{"quantity"}},
			{Key: "price", Label: "Price", Required: true},
		},
		MinHeaderCells:   3,
		RequireFullMatch: true,
		BatchSize:        DefaultBatchSize,
		Payload:          PayloadItems,
		ValueField:       "total",
		Derive: func(v map[string]string) {
			v["total"] = RoundMoney(ParseNumber(v["qty"]).Mul(ParseNumber(v["price"]))).String()
		},
	}
}

// deactivationDefinition allows partial execution and validates on confirm.
func deactivationDefinition() *PipelineDefinition {
	return &PipelineDefinition{
		Key:               "deactivate_test",
		IdentifierKey:     "code",
		Fields:            []FieldSpec{{Key: "code", Label: "Code", Required: true}},
		MinHeaderCells:    1,
		ValidateOnConfirm: true,
		BatchSize:         DefaultBatchSize,
		Payload:           PayloadTargetIDs,
	}
}
