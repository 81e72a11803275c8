package core

// tokenizer.go turns an uploaded file into a Grid.
//
// Delimited text is decoded to UTF-8 (BOMs honoured, ill-formed bytes
// replaced), split into non-blank lines and cut on a delimiter sniffed from
// the first line. Workbooks are read from their first sheet only.
//
// Quoted fields are not unescaped: a delimiter inside quotes still splits
// the cell. Operators see the result on the header step and in the preview.

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// Format identifies how a file's bytes are tokenized.
type Format string

const (
	FormatDelimited Format = "delimited"
	FormatWorkbook  Format = "workbook"
)

var lineBreak = regexp.MustCompile(`\r?\n`)

// DetectFormat picks a format from the file extension.
func DetectFormat(fileName string) (Format, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv", ".txt", ".tsv":
		return FormatDelimited, nil
	case ".xlsx", ".xlsm", ".xls":
		return FormatWorkbook, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFile, filepath.Ext(fileName))
	}
}

// Tokenize reads data according to the extension of fileName.
func Tokenize(fileName string, data []byte) (Grid, error) {
	format, err := DetectFormat(fileName)
	if err != nil {
		return nil, err
	}
	if format == FormatWorkbook {
		return TokenizeWorkbook(data)
	}
	return TokenizeDelimited(data)
}

// TokenizeDelimited splits delimited text into a grid.
func TokenizeDelimited(data []byte) (Grid, error) {
	decoder := transform.Chain(
		unicode.BOMOverride(unicode.UTF8.NewDecoder()),
		runes.ReplaceIllFormed(),
	)
	decoded, _, err := transform.Bytes(decoder, data)
	if err != nil {
		return nil, fmt.Errorf("decode text: %w", err)
	}

	var lines []string
	for _, line := range lineBreak.Split(string(decoded), -1) {
		if isBlank(line) {
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) < 2 {
		return nil, ErrEmptyFile
	}

	delim := SniffDelimiter(lines[0])
	grid := make(Grid, len(lines))
	for i, line := range lines {
		parts := strings.Split(line, string(delim))
		for j, p := range parts {
			parts[j] = stripQuotes(strings.TrimSpace(p))
		}
		grid[i] = parts
	}
	return grid, nil
}

// SniffDelimiter picks the delimiter for a file from its first line: tab when
// tabs outnumber commas, else semicolon when semicolons outnumber commas,
// else comma.
func SniffDelimiter(firstLine string) rune {
	commas := strings.Count(firstLine, ",")
	if strings.Count(firstLine, "\t") > commas {
		return '\t'
	}
	if strings.Count(firstLine, ";") > commas {
		return ';'
	}
	return ','
}

// stripQuotes removes one wrapping pair of double quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// TokenizeWorkbook reads the first sheet of a spreadsheet into a rectangular grid.
func TokenizeWorkbook(data []byte) (Grid, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %v", ErrUnsupportedFile, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, ErrEmptyFile
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	// Trailing blank rows are formatting residue.
	for len(rows) > 0 && rowBlank(rows[len(rows)-1]) {
		rows = rows[:len(rows)-1]
	}
	if len(rows) < 2 {
		return nil, ErrEmptyFile
	}

	grid := Grid(rows)
	width := grid.Width()
	for i, row := range grid {
		if len(row) < width {
			padded := make([]string, width)
			copy(padded, row)
			grid[i] = padded
		}
	}
	return grid, nil
}

func rowBlank(row []string) bool {
	for _, cell := range row {
		if !isBlank(cell) {
			return false
		}
	}
	return true
}
