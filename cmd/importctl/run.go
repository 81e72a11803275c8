package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/bulkimport/internal/application"
	"github.com/JonMunkholm/bulkimport/internal/config"
	"github.com/JonMunkholm/bulkimport/internal/core"
)

type runOptions struct {
	sheetOptions
	context  map[string]string
	yes      bool
	followUp string
}

func newRunCmd() *cobra.Command {
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Validate and execute a file against the configured services",
		Long: `run takes FILE through the whole pipeline: header, mapping, catalog
validation, then batch execution once confirmed. The exit code is 3 when the
report lists identifiers that need follow-up.`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Environment variables win over .env in the CLI.
			_ = godotenv.Load()

			cfg, err := config.Load()
			if err != nil {
				return withCode(exitUsage, err)
			}

			app, err := application.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			return runImport(cmd.Context(), app.Service, args[0], &opts, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().StringToStringVar(&opts.context, "context", nil, "Execution context value as key=value (repeatable)")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Execute without asking for confirmation")
	cmd.Flags().StringVar(&opts.followUp, "follow-up", "", "Write the follow-up list as CSV to this path")
	return cmd
}

func runImport(ctx context.Context, svc *core.Service, path string, opts *runOptions, in io.Reader, out, errOut io.Writer) error {
	def, err := lookupPipeline(opts.pipeline)
	if err != nil {
		return err
	}
	for _, key := range def.ContextKeys {
		if strings.TrimSpace(opts.context[key]) == "" {
			return withCode(exitUsage, fmt.Errorf("%w: pass --context %s=...", core.ErrMissingContext, key))
		}
	}

	c, err := svc.StartRun(ctx, def.Key)
	if err != nil {
		return err
	}
	defer svc.DeleteRun(c.ID())

	if err := loadSheet(c, path, &opts.sheetOptions); err != nil {
		return err
	}
	if _, err := c.ConfirmMapping(); err != nil {
		return withCode(exitUsage, err)
	}

	st, err := c.Validate(ctx)
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	preview := st.(*core.PreviewState)
	summary := core.BuildPreview(def, preview.Rows, preview.Reconciliation, 0).Summary

	fmt.Fprintf(errOut, "%s: %s\n\n", def.Label, preview.FileName)
	printSummary(errOut, summary)
	fmt.Fprintln(errOut)

	if summary.Blocked {
		return withCode(exitFollowUp, &core.UnmatchedIdentifiersError{Identifiers: preview.Reconciliation.Unmatched})
	}
	if summary.Eligible == 0 {
		fmt.Fprintln(errOut, "Nothing to execute.")
		return nil
	}

	if !opts.yes {
		ok, err := confirm(in, errOut, fmt.Sprintf("Execute %d row(s) in %d batch(es)?", summary.Eligible, summary.Batches))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(errOut, "Aborted.")
			return nil
		}
	}

	// An interrupt stops after the in-flight batch; the rest are skipped.
	stop := context.AfterFunc(ctx, c.Abandon)
	defer stop()

	report, err := c.Execute(ctx, opts.context)
	if err != nil {
		return err
	}

	if opts.output == "json" {
		if err := printJSON(out, report); err != nil {
			return err
		}
	} else {
		printReport(out, report)
	}

	if opts.followUp != "" {
		if err := writeFollowUp(opts.followUp, report); err != nil {
			return err
		}
	}

	if len(report.FollowUps()) > 0 {
		return withCode(exitFollowUp, fmt.Errorf("%d identifier(s) need follow-up", len(report.FollowUps())))
	}
	return nil
}

func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func writeFollowUp(path string, r *core.RunReport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create follow-up file: %w", err)
	}
	if err := r.WriteCSV(f); err != nil {
		f.Close()
		return fmt.Errorf("write follow-up file: %w", err)
	}
	return f.Close()
}
