package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/bulkimport/internal/core"
)

type inspectOptions struct {
	sheetOptions
	rows int
}

// inspectResult is the JSON output of inspect.
type inspectResult struct {
	File      string                `json:"file"`
	Pipeline  string                `json:"pipeline"`
	HeaderRow int                   `json:"headerRow"`
	Headers   []string              `json:"headers"`
	Mapping   core.ColumnMapping    `json:"mapping"`
	Missing   []string              `json:"missing,omitempty"`
	Preview   *core.PreviewResponse `json:"preview,omitempty"`
}

func newInspectCmd() *cobra.Command {
	opts := inspectOptions{}

	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Show how a file would be read, mapped and projected",
		Long: `inspect tokenizes FILE, picks the header row, proposes a column mapping
and projects the rows. It makes no remote calls, so identifiers are shown
as pending.`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, args[0], &opts)
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().IntVar(&opts.rows, "rows", 10, "Number of preview rows to show (0 for all)")
	return cmd
}

func runInspect(cmd *cobra.Command, path string, opts *inspectOptions) error {
	def, err := lookupPipeline(opts.pipeline)
	if err != nil {
		return err
	}

	c := core.NewController("inspect", def, core.ControllerOptions{})
	if err := loadSheet(c, path, &opts.sheetOptions); err != nil {
		return err
	}
	mapped := c.State().(*core.MappingState)

	res := inspectResult{
		File:      mapped.FileName,
		Pipeline:  def.Key,
		HeaderRow: mapped.HeaderRow,
		Headers:   mapped.Headers,
		Mapping:   mapped.Mapping,
		Missing:   mapped.Mapping.Missing(def.Fields),
	}

	var incomplete *core.MappingIncompleteError
	st, err := c.ConfirmMapping()
	switch {
	case errors.As(err, &incomplete):
	case err != nil:
		return err
	default:
		res.Preview = core.BuildPreview(def, projectedRows(st), nil, opts.rows)
	}

	out := cmd.OutOrStdout()
	if opts.output == "json" {
		if err := printJSON(out, res); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "File: %s\nHeader row: %d\n\n", res.File, res.HeaderRow)
		printMapping(out, def, res.Mapping)
		if res.Preview != nil {
			fmt.Fprintln(out)
			printSummary(out, res.Preview.Summary)
			for _, d := range res.Preview.Duplicates {
				fmt.Fprintf(out, "duplicate %s on lines %v\n", d.Identifier, d.Lines)
			}
		}
	}

	if incomplete != nil {
		return withCode(exitFollowUp, incomplete)
	}
	return nil
}
