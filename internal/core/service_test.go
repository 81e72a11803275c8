package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func registerTestPipeline(t *testing.T) {
	t.Helper()
	Clear()
	t.Cleanup(Clear)

	def := stockDefinition()
	def.BatchSize = 0
	def.Payload = ""
	Register(*def)
}

func TestRegistry(t *testing.T) {
	registerTestPipeline(t)

	def, ok := Get("stock_test")
	if !ok {
		t.Fatal("pipeline not registered")
	}
	if def.BatchSize != DefaultBatchSize || def.Payload != PayloadItems {
		t.Errorf("defaults not applied: batch %d payload %q", def.BatchSize, def.Payload)
	}
	if PipelineCount() != 1 || len(All()) != 1 {
		t.Errorf("count = %d, want 1", PipelineCount())
	}

	defer func() {
		if recover() == nil {
			t.Error("duplicate Register should panic")
		}
	}()
	Register(*stockDefinition())
}

func TestApplyOverlay(t *testing.T) {
	registerTestPipeline(t)

	err := ApplyOverlay("stock_test", Overlay{
		Label:     "Stock take",
		BatchSize: 25,
		Aliases:   map[string][]string{"qty": {"on hand"}},
	})
	if err != nil {
		t.Fatalf("ApplyOverlay() error = %v", err)
	}

	def, _ := Get("stock_test")
	if def.Label != "Stock take" || def.BatchSize != 25 {
		t.Errorf("overlay not applied: %+v", def)
	}
	if got := AutoMap([]string{"Code", "On Hand", "Price"}, def.Fields); got["qty"].Label != "On Hand" {
		t.Errorf("qty bound to %q, want On Hand", got["qty"].Label)
	}

	if err := ApplyOverlay("missing", Overlay{}); !errors.Is(err, ErrUnknownPipeline) {
		t.Errorf("unknown pipeline error = %v", err)
	}
	if err := ApplyOverlay("stock_test", Overlay{Aliases: map[string][]string{"nope": {"x"}}}); err == nil {
		t.Error("unknown field should be rejected")
	}
}

func TestService_StartRun(t *testing.T) {
	registerTestPipeline(t)
	svc := NewService(newFakeMatcher(), newFakeExecutor(), nil, ServiceConfig{})

	if _, err := svc.StartRun(context.Background(), "missing"); !errors.Is(err, ErrUnknownPipeline) {
		t.Errorf("StartRun(missing) error = %v, want ErrUnknownPipeline", err)
	}

	c, err := svc.StartRun(context.Background(), "stock_test")
	if err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}
	got, err := svc.Run(c.ID())
	if err != nil || got != c {
		t.Fatalf("Run() = %v, %v", got, err)
	}
	if svc.RunCount() != 1 {
		t.Errorf("RunCount() = %d, want 1", svc.RunCount())
	}

	if err := svc.DeleteRun(c.ID()); err != nil {
		t.Fatalf("DeleteRun() error = %v", err)
	}
	if _, err := svc.Run(c.ID()); !IsNotFound(err) {
		t.Errorf("Run() after delete error = %v", err)
	}
	if err := svc.DeleteRun(c.ID()); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("second DeleteRun() error = %v", err)
	}
}

func TestService_ExpireIdle(t *testing.T) {
	registerTestPipeline(t)
	svc := NewService(newFakeMatcher(), newFakeExecutor(), nil, ServiceConfig{RunTTL: time.Minute})

	old, _ := svc.StartRun(context.Background(), "stock_test")
	fresh, _ := svc.StartRun(context.Background(), "stock_test")

	if n := svc.ExpireIdle(time.Now()); n != 0 {
		t.Errorf("expired = %d, want 0", n)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := fresh.Upload("stock.csv", []byte("code,qty,price\nA1,2,10\n")); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	// Only old has been idle for longer than the TTL at this point.
	later := old.IdleSince().Add(time.Minute + 2*time.Millisecond)
	if n := svc.ExpireIdle(later); n != 1 {
		t.Errorf("expired = %d, want 1", n)
	}
	if _, err := svc.Run(old.ID()); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("old run still tracked: %v", err)
	}
	if _, err := svc.Run(fresh.ID()); err != nil {
		t.Errorf("fresh run expired: %v", err)
	}
}

func TestService_ReportOutlivesRun(t *testing.T) {
	registerTestPipeline(t)
	store := NewMemoryReportStore(10)
	svc := NewService(newFakeMatcher("A1"), newFakeExecutor(), store, ServiceConfig{})

	c, _ := svc.StartRun(context.Background(), "stock_test")
	prepare(t, c, "stock.csv", "code,qty,price\nA1,2,10\n")
	if _, err := c.Validate(context.Background()); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if _, err := c.Execute(context.Background(), nil); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	live, err := svc.Report(context.Background(), c.ID())
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	_ = svc.DeleteRun(c.ID())

	saved, err := svc.Report(context.Background(), c.ID())
	if err != nil {
		t.Fatalf("Report() after delete error = %v", err)
	}
	if saved.RunID != live.RunID || saved.Counts != live.Counts {
		t.Errorf("saved report differs: %+v vs %+v", saved.Counts, live.Counts)
	}

	history, err := svc.History(context.Background(), "stock_test", 0)
	if err != nil || len(history) != 1 {
		t.Fatalf("History() = %v, %v", history, err)
	}

	if _, err := svc.Report(context.Background(), "nope"); !IsNotFound(err) {
		t.Errorf("Report(nope) error = %v, want not found", err)
	}
}

func TestMemoryReportStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryReportStore(2)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"r1", "r2", "r3"} {
		pipeline := "a"
		if id == "r3" {
			pipeline = "b"
		}
		_ = store.SaveReport(ctx, &RunReport{RunID: id, Pipeline: pipeline, FinishedAt: base.Add(time.Duration(i) * time.Hour)})
	}

	if _, err := store.GetReport(ctx, "r1"); !errors.Is(err, ErrReportNotFound) {
		t.Errorf("oldest report should be evicted, got %v", err)
	}

	all, _ := store.ListReports(ctx, "", 0)
	if len(all) != 2 || all[0].RunID != "r3" || all[1].RunID != "r2" {
		t.Errorf("list = %+v, want r3, r2", all)
	}
	onlyA, _ := store.ListReports(ctx, "a", 0)
	if len(onlyA) != 1 || onlyA[0].RunID != "r2" {
		t.Errorf("filtered list = %+v, want r2", onlyA)
	}
}
