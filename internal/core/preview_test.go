package core

import "testing"

func TestBuildPreview(t *testing.T) {
	def := stockDefinition()
	rows := []ProjectedRow{
		{Line: 2, Values: map[string]string{"code": "A1", "total": "20"}},
		{Line: 3, Values: map[string]string{"code": "A1", "total": "5"}},
		{Line: 4, Values: map[string]string{"code": "ZZ", "total": "1"}},
		{Line: 5, Values: map[string]string{"code": " ", "total": "1"}},
	}

	t.Run("before validation", func(t *testing.T) {
		p := BuildPreview(def, rows, nil, 0)
		if p.Summary.Pending != 3 || p.Summary.BlankIdentifiers != 1 {
			t.Errorf("summary = %+v", p.Summary)
		}
		if p.Summary.Validated || p.Summary.Eligible != 0 || p.Summary.TotalValue != "" {
			t.Errorf("unvalidated summary = %+v", p.Summary)
		}
		if len(p.Duplicates) != 1 || p.Duplicates[0].Identifier != "A1" || len(p.Duplicates[0].Lines) != 2 {
			t.Errorf("duplicates = %+v", p.Duplicates)
		}
	})

	t.Run("after validation", func(t *testing.T) {
		rec := &ReconciliationResult{Matched: []string{"A1"}, Unmatched: []string{"ZZ"}}
		p := BuildPreview(def, rows, rec, 2)
		s := p.Summary
		if s.Matched != 2 || s.Unmatched != 1 || s.Eligible != 2 || s.Batches != 1 {
			t.Errorf("summary = %+v", s)
		}
		if s.TotalValue != "25" {
			t.Errorf("total = %s, want 25", s.TotalValue)
		}
		if !s.Blocked {
			t.Error("full-match pipeline with unmatched codes should be blocked")
		}
		if len(p.Rows) != 2 {
			t.Errorf("rows = %d, want limit 2", len(p.Rows))
		}
	})
}
