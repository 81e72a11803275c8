package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/bulkimport/internal/core"
)

// sheetOptions are the flags that take a file to a confirmed mapping.
type sheetOptions struct {
	pipeline string
	header   int
	mappings []string
	output   string
}

func (o *sheetOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.pipeline, "pipeline", "p", "", "Pipeline key (required)")
	cmd.Flags().IntVar(&o.header, "header", -1, "Header row index, 0-based (default: suggested row)")
	cmd.Flags().StringArrayVar(&o.mappings, "map", nil, "Bind a field to a column as field=label; field= leaves it unmapped (repeatable)")
	cmd.Flags().StringVarP(&o.output, "output", "o", "text", "Output format: text or json")
	_ = cmd.MarkFlagRequired("pipeline")
}

func (o *sheetOptions) validate() error {
	if o.output != "text" && o.output != "json" {
		return withCode(exitUsage, fmt.Errorf("invalid --output %q: want text or json", o.output))
	}
	for _, m := range o.mappings {
		if _, _, ok := strings.Cut(m, "="); !ok {
			return withCode(exitUsage, fmt.Errorf("invalid --map %q: want field=label", m))
		}
	}
	return nil
}

// loadSheet uploads path into c, confirms the header row and applies the
// --map overrides on top of the automatic mapping.
func loadSheet(c *core.Controller, path string, o *sheetOptions) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	st, err := c.Upload(filepath.Base(path), data)
	if err != nil {
		return err
	}

	row := st.(*core.PickHeaderState).Suggested
	if o.header >= 0 {
		row = o.header
	}
	if _, err := c.ConfirmHeader(row); err != nil {
		return err
	}

	for _, m := range o.mappings {
		field, label, _ := strings.Cut(m, "=")
		field, label = strings.TrimSpace(field), strings.TrimSpace(label)
		if label == "" {
			_, err = c.UnsetMapping(field)
		} else {
			_, err = c.SetMapping(field, label)
		}
		if err != nil {
			return withCode(exitUsage, fmt.Errorf("--map %s: %w", m, err))
		}
	}
	return nil
}

// projectedRows returns the rows of a run past the mapping step.
func projectedRows(st core.State) []core.ProjectedRow {
	switch s := st.(type) {
	case *core.ValidationState:
		return s.Rows
	case *core.PreviewState:
		return s.Rows
	}
	return nil
}
