package core

import (
	"fmt"
	"strings"
	"testing"
)

// ============================================================================
// Fixtures
// ============================================================================

// stockFile builds a delimited file with n data rows.
func stockFile(n int) []byte {
	var sb strings.Builder
	sb.WriteString("Stock export\ncode,qty,price\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "P%05d,%d,%d.%02d\n", i, i%50, i%900, i%100)
	}
	return []byte(sb.String())
}

func benchSheet(b *testing.B, n int) (Grid, []string, ColumnMapping, *PipelineDefinition) {
	b.Helper()
	grid, err := TokenizeDelimited(stockFile(n))
	if err != nil {
		b.Fatal(err)
	}
	headers, err := HeaderLabels(grid, 1)
	if err != nil {
		b.Fatal(err)
	}
	def := stockDefinition()
	return grid, headers, AutoMap(headers, def.Fields), def
}

// ============================================================================
// Tokenizer Benchmarks
// ============================================================================

// BenchmarkTokenizeDelimited measures decoding and splitting a 10k row file.
func BenchmarkTokenizeDelimited(b *testing.B) {
	data := stockFile(10000)
	b.SetBytes(int64(len(data)))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := TokenizeDelimited(data); err != nil {
			b.Fatal(err)
		}
	}
}

// ============================================================================
// Projection Benchmarks
// ============================================================================

// BenchmarkProject measures projection including the derived total.
func BenchmarkProject(b *testing.B) {
	grid, headers, mapping, def := benchSheet(b, 10000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Project(grid, 1, headers, mapping, def)
	}
}

// BenchmarkFingerprint runs on every execute request; it hashes the whole grid.
func BenchmarkFingerprint(b *testing.B) {
	grid, _, mapping, _ := benchSheet(b, 10000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Fingerprint(grid, 1, mapping)
	}
}

// ============================================================================
// Preview Benchmarks
// ============================================================================

// BenchmarkBuildPreview measures annotating rows against a reconciliation.
func BenchmarkBuildPreview(b *testing.B) {
	grid, headers, mapping, def := benchSheet(b, 10000)
	rows := Project(grid, 1, headers, mapping, def)

	rec := &ReconciliationResult{
		TargetIDs:   make(map[string]string, len(rows)),
		Fingerprint: Fingerprint(grid, 1, mapping),
	}
	for i, r := range rows {
		code := r.Get("code")
		if i%10 == 0 {
			rec.Unmatched = append(rec.Unmatched, code)
			continue
		}
		rec.Matched = append(rec.Matched, code)
		rec.TargetIDs[code] = "id-" + code
	}
	rec.buildIndex()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		BuildPreview(def, rows, rec, 200)
	}
}

// BenchmarkParseNumber is a hot path for derived value fields.
func BenchmarkParseNumber(b *testing.B) {
	testCases := []string{"123", "-456.78", "$1,234.56", "(123.45)", "  999.99  ", "abc"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			ParseNumber(tc)
		}
	}
}
