package core

import (
	"reflect"
	"testing"
)

func projectFixture(t *testing.T) (Grid, []string, ColumnMapping, *PipelineDefinition) {
	t.Helper()
	def := stockDefinition()
	grid := Grid{
		{"code", "qty", "price", "note"},
		{"A1", "2", "10", "x"},
		{"", "", "", "only a note"},
		{"A2", "3", "5"},
		{"A3", "n/a", "4"},
	}
	headers, err := HeaderLabels(grid, 0)
	if err != nil {
		t.Fatalf("HeaderLabels() error = %v", err)
	}
	return grid, headers, AutoMap(headers, def.Fields), def
}

func TestProject(t *testing.T) {
	grid, headers, mapping, def := projectFixture(t)

	rows := Project(grid, 0, headers, mapping, def)

	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}

	tests := []struct {
		line  int
		code  string
		total string
	}{
		{2, "A1", "20"},
		{4, "A2", "15"},
		{5, "A3", "0"},
	}
	for i, tt := range tests {
		if rows[i].Line != tt.line {
			t.Errorf("row %d Line = %d, want %d", i, rows[i].Line, tt.line)
		}
		if got := rows[i].Get("code"); got != tt.code {
			t.Errorf("row %d code = %q, want %q", i, got, tt.code)
		}
		if got := rows[i].Get("total"); got != tt.total {
			t.Errorf("row %d total = %q, want %q", i, got, tt.total)
		}
	}
}

func TestProject_Idempotent(t *testing.T) {
	grid, headers, mapping, def := projectFixture(t)

	first := Project(grid, 0, headers, mapping, def)
	second := Project(grid, 0, headers, mapping, def)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("projection differs between calls:\n%v\n%v", first, second)
	}
}

func TestProject_UnboundFieldsAreEmpty(t *testing.T) {
	grid, headers, mapping, def := projectFixture(t)
	if err := mapping.Unset(def.Fields, "price"); err != nil {
		t.Fatalf("Unset() error = %v", err)
	}

	rows := Project(grid, 0, headers, mapping, def)
	for _, r := range rows {
		if v, ok := r.Values["price"]; !ok || v != "" {
			t.Errorf("line %d price = %q, %v; want empty", r.Line, v, ok)
		}
	}
}
