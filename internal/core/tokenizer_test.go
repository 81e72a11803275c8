package core

import (
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestSniffDelimiter(t *testing.T) {
	tests := []struct {
		line string
		want rune
	}{
		{"a,b;c,d;e", ','},
		{"a\tb\tc,d", '\t'},
		{"a;b;c", ';'},
		{"a;b,c", ','},
		{"single", ','},
		{"a\tb,c", ','},
	}

	for _, tt := range tests {
		if got := SniffDelimiter(tt.line); got != tt.want {
			t.Errorf("SniffDelimiter(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}

func TestTokenizeDelimited(t *testing.T) {
	data := []byte("\xef\xbb\xbfcode;qty\r\n\r\n \"A1\" ; 2 \r\n\nA2;3\n")

	grid, err := TokenizeDelimited(data)
	if err != nil {
		t.Fatalf("TokenizeDelimited() error = %v", err)
	}

	want := Grid{{"code", "qty"}, {"A1", "2"}, {"A2", "3"}}
	if len(grid) != len(want) {
		t.Fatalf("rows = %d, want %d: %q", len(grid), len(want), grid)
	}
	for r := range want {
		for c := range want[r] {
			if got := grid.Cell(r, c); got != want[r][c] {
				t.Errorf("cell(%d,%d) = %q, want %q", r, c, got, want[r][c])
			}
		}
	}
}

func TestTokenizeDelimited_InvalidUTF8(t *testing.T) {
	grid, err := TokenizeDelimited([]byte("name,qty\nbad\xffname,1\n"))
	if err != nil {
		t.Fatalf("TokenizeDelimited() error = %v", err)
	}
	if got := grid.Cell(1, 0); got != "bad\uFFFDname" {
		t.Errorf("cell = %q, want replacement character", got)
	}
}

func TestTokenizeDelimited_QuotedDelimiterSplits(t *testing.T) {
	grid, err := TokenizeDelimited([]byte("a,b\n\"x,y\",z\n"))
	if err != nil {
		t.Fatalf("TokenizeDelimited() error = %v", err)
	}
	if n := len(grid[1]); n != 3 {
		t.Errorf("quoted row has %d cells, want 3", n)
	}
}

func TestTokenize_EmptyFile(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"no content", ""},
		{"header only", "code,qty\n"},
		{"header and blank lines", "code,qty\n\n  \n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Tokenize("stock.csv", []byte(tt.data))
			if !errors.Is(err, ErrEmptyFile) {
				t.Errorf("Tokenize() error = %v, want ErrEmptyFile", err)
			}
		})
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name    string
		want    Format
		wantErr bool
	}{
		{"stock.csv", FormatDelimited, false},
		{"STOCK.CSV", FormatDelimited, false},
		{"export.tsv", FormatDelimited, false},
		{"stock.xlsx", FormatWorkbook, false},
		{"legacy.xls", FormatWorkbook, false},
		{"notes.pdf", "", true},
		{"noext", "", true},
	}

	for _, tt := range tests {
		got, err := DetectFormat(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("DetectFormat(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrUnsupportedFile) {
			t.Errorf("DetectFormat(%q) error = %v, want ErrUnsupportedFile", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("DetectFormat(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestTokenizeWorkbook(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	f.SetCellValue(sheet, "A1", "Opening stock")
	f.SetCellValue(sheet, "A2", "code")
	f.SetCellValue(sheet, "B2", "qty")
	f.SetCellValue(sheet, "C2", "price")
	f.SetCellValue(sheet, "A3", "A1")
	f.SetCellValue(sheet, "C3", 10)
	f.NewSheet("Ignored")
	f.SetCellValue("Ignored", "A1", "other")

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer() error = %v", err)
	}

	grid, err := Tokenize("stock.xlsx", buf.Bytes())
	if err != nil {
		t.Fatalf("Tokenize() error = %v", err)
	}
	if grid.Rows() != 3 {
		t.Fatalf("rows = %d, want 3", grid.Rows())
	}
	for r, row := range grid {
		if len(row) != 3 {
			t.Errorf("row %d width = %d, want 3", r, len(row))
		}
	}
	if got := grid.Cell(2, 1); got != "" {
		t.Errorf("missing cell = %q, want empty", got)
	}
	if got := grid.Cell(2, 2); got != "10" {
		t.Errorf("price cell = %q, want %q", got, "10")
	}
}

func TestTokenizeWorkbook_Corrupt(t *testing.T) {
	_, err := Tokenize("legacy.xls", []byte("not a workbook"))
	if !errors.Is(err, ErrUnsupportedFile) {
		t.Errorf("Tokenize() error = %v, want ErrUnsupportedFile", err)
	}
}
