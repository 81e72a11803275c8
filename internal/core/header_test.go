package core

import "testing"

func TestSuggestHeaderRow(t *testing.T) {
	tests := []struct {
		name    string
		grid    Grid
		min     int
		want    int
	}{
		{
			name: "title row above header",
			grid: Grid{{"Report", "", ""}, {"code", "qty", "price"}, {"A1", "2", "10"}},
			min:  3,
			want: 1,
		},
		{
			name: "first row qualifies",
			grid: Grid{{"code"}, {"A1"}},
			min:  1,
			want: 0,
		},
		{
			name: "nothing qualifies",
			grid: Grid{{"a", ""}, {"b", ""}},
			min:  3,
			want: 0,
		},
		{
			name: "whitespace is blank",
			grid: Grid{{" ", "x", "\t"}, {"a", "b", "c"}},
			min:  2,
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SuggestHeaderRow(tt.grid, tt.min); got != tt.want {
				t.Errorf("SuggestHeaderRow() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestHeaderLabels(t *testing.T) {
	grid := Grid{
		{" Code ", "", "Code", "column_2"},
		{"A1", "x", "y", "z", "extra"},
	}

	got, err := HeaderLabels(grid, 0)
	if err != nil {
		t.Fatalf("HeaderLabels() error = %v", err)
	}

	want := []string{"Code", "column_2", "Code (column_3)", "column_2 (column_4)", "column_5"}
	if len(got) != len(want) {
		t.Fatalf("labels = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("label[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestHeaderLabels_OutOfRange(t *testing.T) {
	if _, err := HeaderLabels(Grid{{"a"}}, 3); err == nil {
		t.Error("HeaderLabels() expected error for row out of range")
	}
}

func TestHeaderCandidates(t *testing.T) {
	grid := make(Grid, 30)
	for i := range grid {
		grid[i] = []string{"x"}
	}
	if got := len(HeaderCandidates(grid, MaxHeaderCandidates)); got != MaxHeaderCandidates {
		t.Errorf("candidates = %d, want %d", got, MaxHeaderCandidates)
	}
	if got := len(HeaderCandidates(grid[:3], MaxHeaderCandidates)); got != 3 {
		t.Errorf("candidates = %d, want 3", got)
	}
}
