// Package analysis provides the advisory first phase of an edit: a language
// model looks at the command (and, when available, the asset's container
// metadata) and suggests an operation.
//
// Results never decide what runs. The orchestrator resolves commands from
// their text alone and only records the analysis alongside the outcome.
package analysis
