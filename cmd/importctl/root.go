package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/bulkimport/internal/core"
	_ "github.com/JonMunkholm/bulkimport/internal/core/pipelines" // Register all pipelines
	"github.com/JonMunkholm/bulkimport/internal/logging"
)

const (
	exitFailure  = 1
	exitUsage    = 2
	exitFollowUp = 3
)

// codedError carries the process exit code for an error.
type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	return &codedError{code: code, err: err}
}

func exitCode(err error) int {
	var ce *codedError
	if errors.As(err, &ce) {
		return ce.code
	}
	return exitFailure
}

type rootOptions struct {
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	var opts rootOptions

	cmd := &cobra.Command{
		Use:   "importctl",
		Short: "Inspect and run bulk spreadsheet imports",
		Long: `importctl drives the same import pipelines as the web server.

  importctl inspect stock.xlsx --pipeline opening_stock
  importctl run stock.xlsx --pipeline opening_stock --context branch_id=12 --context date=2026-01-01

Remote services and the report store are configured through the same
environment variables (or .env file) as the server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Logs go to stderr so stdout carries only results.
			logging.SetupWriter(os.Stderr, opts.logLevel, opts.logFormat)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "Log format: text or json")

	cmd.AddCommand(newPipelinesCmd(), newInspectCmd(), newRunCmd())
	return cmd
}

// lookupPipeline resolves --pipeline, listing the valid keys on failure.
func lookupPipeline(key string) (*core.PipelineDefinition, error) {
	def, ok := core.Get(key)
	if !ok {
		keys := make([]string, 0, core.PipelineCount())
		for _, d := range core.All() {
			keys = append(keys, d.Key)
		}
		return nil, withCode(exitUsage, &unknownPipelineError{key: key, valid: keys})
	}
	return def, nil
}

type unknownPipelineError struct {
	key   string
	valid []string
}

func (e *unknownPipelineError) Error() string {
	msg := fmt.Sprintf("unknown pipeline %q", e.key)
	if len(e.valid) > 0 {
		msg += " (valid: " + strings.Join(e.valid, ", ") + ")"
	}
	return msg
}

func (e *unknownPipelineError) Unwrap() error { return core.ErrUnknownPipeline }
