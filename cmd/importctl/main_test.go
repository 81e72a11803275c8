package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/bulkimport/internal/core"
	"github.com/JonMunkholm/bulkimport/internal/core/pipelines"
)

const stockCSV = "Product code,Description,Qty,Price\nA1,Widget,2,10\nA2,Gadget,3,5\n"

type catalog map[string]bool

func (c catalog) Match(_ context.Context, _ string, codes []string) (*core.MatchResponse, error) {
	resp := &core.MatchResponse{}
	for _, code := range codes {
		if c[code] {
			resp.Matched = append(resp.Matched, core.MatchedItem{Code: code, TargetID: "id-" + code})
		} else {
			resp.Unmatched = append(resp.Unmatched, code)
		}
	}
	return resp, nil
}

type recorder struct {
	mu      sync.Mutex
	batches []core.Batch
}

func (r *recorder) Execute(_ context.Context, b core.Batch) (core.ExecutionResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, b)
	return core.ExecutionResult{"processed": len(b.Rows)}, nil
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	return out.String(), err
}

func stockRunOptions() *runOptions {
	return &runOptions{
		sheetOptions: sheetOptions{pipeline: pipelines.OpeningStock, header: -1, output: "json"},
		context:      map[string]string{"branch_id": "12", "date": "2026-01-01"},
		yes:          true,
	}
}

func TestInspect(t *testing.T) {
	path := writeFile(t, "stock.csv", stockCSV)

	out, err := execute(t, "inspect", path, "--pipeline", pipelines.OpeningStock)
	require.NoError(t, err)
	assert.Contains(t, out, "Header row: 0")
	assert.Contains(t, out, "Qty")
	assert.Regexp(t, `Rows\s+2`, out)
}

func TestInspect_JSONWithOverride(t *testing.T) {
	path := writeFile(t, "stock.csv", stockCSV)

	out, err := execute(t, "inspect", path, "-p", pipelines.OpeningStock, "-o", "json", "--map", "product_name=")
	require.NoError(t, err)

	var res inspectResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, []string{"Product code", "Description", "Qty", "Price"}, res.Headers)
	assert.True(t, res.Mapping["product_name"].Unset)
	assert.Equal(t, "Qty", res.Mapping["quantity"].Label)
	require.NotNil(t, res.Preview)
	assert.Equal(t, 2, res.Preview.Summary.TotalRows)
}

func TestInspect_IncompleteMapping(t *testing.T) {
	path := writeFile(t, "stock.csv", stockCSV)

	out, err := execute(t, "inspect", path, "-p", pipelines.OpeningStock, "--map", "price=")
	require.Error(t, err)
	assert.Equal(t, exitFollowUp, exitCode(err))
	assert.Contains(t, out, "price")
}

func TestInspect_UsageErrors(t *testing.T) {
	path := writeFile(t, "stock.csv", stockCSV)

	_, err := execute(t, "inspect", path, "-p", "nope")
	require.Error(t, err)
	assert.Equal(t, exitUsage, exitCode(err))
	assert.Contains(t, err.Error(), pipelines.OpeningStock)

	_, err = execute(t, "inspect", path, "-p", pipelines.OpeningStock, "--map", "price")
	assert.Equal(t, exitUsage, exitCode(err))

	_, err = execute(t, "inspect", path, "-p", pipelines.OpeningStock, "-o", "xml")
	assert.Equal(t, exitUsage, exitCode(err))
}

func TestPipelinesCmd(t *testing.T) {
	out, err := execute(t, "pipelines")
	require.NoError(t, err)
	assert.Contains(t, out, pipelines.OpeningStock)
	assert.Contains(t, out, pipelines.Deactivation)
}

func TestRunImport(t *testing.T) {
	exec := &recorder{}
	svc := core.NewService(catalog{"A1": true, "A2": true}, exec, nil, core.ServiceConfig{})
	path := writeFile(t, "stock.csv", stockCSV)

	var out, errOut bytes.Buffer
	err := runImport(context.Background(), svc, path, stockRunOptions(), strings.NewReader(""), &out, &errOut)
	require.NoError(t, err)

	var report core.RunReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, 2, report.Counts.RowsApplied)
	assert.Equal(t, "35", report.AppliedValue)
	assert.Equal(t, "12", report.Context["branch_id"])
	require.Len(t, exec.batches, 1)
	assert.Contains(t, errOut.String(), "Matched")
	assert.Equal(t, 0, svc.RunCount())
}

func TestRunImport_Blocked(t *testing.T) {
	exec := &recorder{}
	svc := core.NewService(catalog{"A1": true}, exec, nil, core.ServiceConfig{})
	path := writeFile(t, "stock.csv", stockCSV)

	var out, errOut bytes.Buffer
	err := runImport(context.Background(), svc, path, stockRunOptions(), strings.NewReader(""), &out, &errOut)
	require.Error(t, err)
	assert.Equal(t, exitFollowUp, exitCode(err))
	assert.Contains(t, err.Error(), "A2")
	assert.Empty(t, exec.batches)
}

func TestRunImport_MissingContext(t *testing.T) {
	svc := core.NewService(catalog{}, &recorder{}, nil, core.ServiceConfig{})
	opts := stockRunOptions()
	delete(opts.context, "date")

	err := runImport(context.Background(), svc, "unused.csv", opts, strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Equal(t, exitUsage, exitCode(err))
	assert.ErrorIs(t, err, core.ErrMissingContext)
}

func TestRunImport_Declined(t *testing.T) {
	exec := &recorder{}
	svc := core.NewService(catalog{"A1": true, "A2": true}, exec, nil, core.ServiceConfig{})
	path := writeFile(t, "stock.csv", stockCSV)
	opts := stockRunOptions()
	opts.yes = false

	var errOut bytes.Buffer
	err := runImport(context.Background(), svc, path, opts, strings.NewReader("n\n"), &bytes.Buffer{}, &errOut)
	require.NoError(t, err)
	assert.Contains(t, errOut.String(), "Aborted.")
	assert.Empty(t, exec.batches)
}
