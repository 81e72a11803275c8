package core

// error_messages.go maps technical errors to messages an operator can act on.
//
// Typed errors from this package are matched first with errors.Is/As; other
// errors fall back to substring patterns. Every message carries a code for
// support reference:
//
//   - FILE001-FILE004: file errors (size, type, emptiness)
//   - MAP001-MAP003: header and mapping errors
//   - REC001-REC004: reconciliation errors
//   - EXE001-EXE005: execution errors
//   - RUN001-RUN004: run lifecycle errors
//   - UPL001-UPL002: upload request errors
//   - NET001-NET002: remote service errors

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage contains user-friendly error information.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type errorMatch struct {
	target error
	msg    UserMessage
}

var sentinelMessages = []errorMatch{
	{ErrEmptyFile, UserMessage{"The file has no data rows", "Upload a file with a header row and at least one data row", "FILE003"}},
	{ErrUnsupportedFile, UserMessage{"This file type is not supported", "Upload a .csv, .xlsx or .xls file", "FILE002"}},
	{ErrStaleReconciliation, UserMessage{"The file or mapping changed after validation", "Validate again before executing", "REC002"}},
	{ErrNotValidated, UserMessage{"The run has not been validated", "Validate the rows against the catalog first", "REC003"}},
	{ErrTooManyExecutions, UserMessage{"Too many imports are running", "Wait a moment and try again", "EXE003"}},
	{ErrMissingContext, UserMessage{"Execution details are missing", "Fill in every required execution field", "EXE004"}},
	{ErrRunNotFound, UserMessage{"Run not found", "The run may have expired; start a new one", "RUN001"}},
	{ErrInvalidTransition, UserMessage{"That action is not available at this step", "Refresh the run and continue from its current step", "RUN002"}},
	{ErrUnknownPipeline, UserMessage{"Unknown import type", "Choose one of the listed pipelines", "RUN003"}},
	{ErrReportNotFound, UserMessage{"Report not found", "Reports exist only for runs that were executed", "RUN004"}},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{"file too large", UserMessage{"File exceeds the maximum upload size", "Split the file into smaller files", "FILE001"}},
	{"request body too large", UserMessage{"File exceeds the maximum upload size", "Split the file into smaller files", "FILE001"}},
	{"header row", UserMessage{"Invalid header row", "Pick one of the rows shown in the file", "MAP003"}},
	{"unknown field", UserMessage{"Unknown field", "Choose one of the pipeline's fields", "MAP002"}},
	{"unknown column", UserMessage{"Unknown column", "Choose one of the file's columns", "MAP002"}},
	{"no file", UserMessage{"No file was uploaded", "Attach a file in the 'file' form field", "UPL001"}},
	{"invalid request body", UserMessage{"The request could not be read", "Check the request format", "UPL002"}},
	{"connection refused", UserMessage{"A remote service is unavailable", "Try again shortly or contact support", "NET001"}},
	{"no such host", UserMessage{"A remote service is unavailable", "Check the service URLs in the configuration", "NET001"}},
	{"deadline exceeded", UserMessage{"A remote service timed out", "Try again; large batches may take longer", "NET002"}},
	{"timeout", UserMessage{"A remote service timed out", "Try again; large batches may take longer", "NET002"}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Returns an empty message for nil errors.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var mapping *MappingIncompleteError
	if errors.As(err, &mapping) {
		return UserMessage{
			Message: "Required fields are not mapped: " + strings.Join(mapping.Missing, ", "),
			Action:  "Map a column to every required field",
			Code:    "MAP001",
		}
	}
	var unmatched *UnmatchedIdentifiersError
	if errors.As(err, &unmatched) {
		return UserMessage{
			Message: fmt.Sprintf("%d identifiers were not found in the catalog", len(unmatched.Identifiers)),
			Action:  "Fix or remove the unmatched rows and upload again",
			Code:    "REC004",
		}
	}
	var rec *ReconciliationCallError
	if errors.As(err, &rec) {
		return UserMessage{
			Message: "Catalog lookup failed: " + rec.Err.Error(),
			Action:  "Validate again; the file and mapping are kept",
			Code:    "REC001",
		}
	}
	var aborted *RunAbortedError
	if errors.As(err, &aborted) {
		return UserMessage{
			Message: "Execution stopped: " + aborted.Reason,
			Action:  "Check the report for batches already applied before retrying",
			Code:    "EXE002",
		}
	}
	var batch *BatchExecutionError
	if errors.As(err, &batch) {
		return UserMessage{
			Message: fmt.Sprintf("Batch %d failed", batch.Batch),
			Action:  "Download the follow-up list and resubmit the failed rows",
			Code:    "EXE001",
		}
	}

	for _, m := range sentinelMessages {
		if errors.Is(err, m.target) {
			return m.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError returns a formatted error string for display.
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
