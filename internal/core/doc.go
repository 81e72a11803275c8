// Package core provides the business logic for bulk tabular imports.
//
// This package is the heart of the importer, containing all domain logic
// independent of any UI or transport layer. It can be used by web handlers,
// CLI tools, or tests without modification.
//
// # Architecture
//
// A run moves a spreadsheet through a fixed sequence of steps:
//
//  1. Tokenize: the file becomes a [Grid] ([Tokenize]).
//  2. Pick header: the operator confirms the header row ([SuggestHeaderRow]).
//  3. Mapping: file columns are bound to canonical fields ([AutoMap]).
//  4. Validation: distinct identifiers are checked against the catalog in
//     one call ([Reconcile]).
//  5. Preview: every row shows its match status ([Annotate]).
//  6. Executing: eligible rows are sent in sequential batches with one
//     retry each ([BatchExecutor]).
//  7. Result: a [RunReport] accounts for every row.
//
// The steps form a tagged union of [State] values; [Reduce] is the pure
// transition function and [Controller] performs the remote calls around it.
//
// # Pipeline Registry
//
// Pipelines are registered at init time using [Register]. Each
// [PipelineDefinition] describes the fields it needs and how its batches
// are sent:
//
//	core.Register(core.PipelineDefinition{
//	    Key:           "deactivation",
//	    Label:         "Product deactivation",
//	    IdentifierKey: "product_code",
//	    Fields: []core.FieldSpec{
//	        {Key: "product_code", Label: "Product code", Required: true, Aliases: []string{"code", "sku"}},
//	    },
//	    Payload: core.PayloadTargetIDs,
//	})
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - FILE: unreadable, empty or oversized files
//   - MAP: header and mapping problems
//   - REC: catalog reconciliation failures and gates
//   - EXE: execution failures and aborts
//   - RUN: unknown runs and invalid actions
package core
