package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/JonMunkholm/bulkimport/internal/core"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printMapping lists each field with its bound label, "-" for an explicit
// no-column and "?" for a field nothing was found for.
func printMapping(w io.Writer, def *core.PipelineDefinition, m core.ColumnMapping) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FIELD\tREQUIRED\tCOLUMN")
	for _, f := range def.Fields {
		col := "?"
		if b, ok := m[f.Key]; ok {
			col = "-"
			if b.Bound() {
				col = b.Label
			}
		}
		req := ""
		if f.Required {
			req = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Key, req, col)
	}
	tw.Flush()
}

func printSummary(w io.Writer, s core.PreviewSummary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Rows\t%d\n", s.TotalRows)
	if s.Validated {
		fmt.Fprintf(tw, "Matched\t%d\n", s.Matched)
		fmt.Fprintf(tw, "Unmatched\t%d\n", s.Unmatched)
		fmt.Fprintf(tw, "Already done\t%d\n", s.AlreadyDone)
		fmt.Fprintf(tw, "Batches\t%d\n", s.Batches)
		if s.TotalValue != "" {
			fmt.Fprintf(tw, "Total value\t%s\n", s.TotalValue)
		}
	}
	fmt.Fprintf(tw, "Blank identifiers\t%d\n", s.BlankIdentifiers)
	fmt.Fprintf(tw, "Duplicated identifiers\t%d\n", s.DuplicateInFile)
	tw.Flush()
}

func printReport(w io.Writer, r *core.RunReport) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Run\t%s\n", r.RunID)
	fmt.Fprintf(tw, "Pipeline\t%s\n", r.Pipeline)
	fmt.Fprintf(tw, "File\t%s\n", r.FileName)
	if len(r.Context) > 0 {
		keys := make([]string, 0, len(r.Context))
		for k := range r.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + "=" + r.Context[k]
		}
		fmt.Fprintf(tw, "Context\t%s\n", strings.Join(parts, " "))
	}
	fmt.Fprintf(tw, "Duration\t%dms\n", r.DurationMs)
	fmt.Fprintf(tw, "Batches\t%d (applied %d, after retry %d, failed %d, skipped %d)\n",
		r.Counts.Batches, r.Counts.Applied, r.Counts.AppliedAfterRetry, r.Counts.Failed, r.Counts.Skipped)
	fmt.Fprintf(tw, "Rows applied\t%d of %d eligible\n", r.Counts.RowsApplied, r.Counts.Eligible)
	if r.AppliedValue != "" {
		fmt.Fprintf(tw, "Value applied\t%s of %s\n", r.AppliedValue, r.TotalValue)
	}
	if r.Abandoned {
		fmt.Fprintf(tw, "Abandoned\tyes\n")
	}
	if r.RetryWarnings > 0 {
		fmt.Fprintf(tw, "Possible duplicates\t%d batch(es) succeeded only on retry\n", r.RetryWarnings)
	}
	tw.Flush()

	if follow := r.FollowUps(); len(follow) > 0 {
		fmt.Fprintf(w, "\n%d identifier(s) need follow-up:\n", len(follow))
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "IDENTIFIER\tLINE\tREASON\tDETAIL")
		for _, f := range follow {
			line := ""
			if f.Line > 0 {
				line = fmt.Sprint(f.Line)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.Identifier, line, f.Reason, f.Detail)
		}
		tw.Flush()
	}
}
