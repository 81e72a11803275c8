// Package pipelines registers all pipeline definitions with the core registry.
// Import this package to ensure all pipelines are registered.
package pipelines

// This file exists to provide a single import point.
// Each pipeline file uses init() to register its pipeline.
