// Package workflow implements the execution core: graph validation,
// deterministic ordering, and the engine that runs components sequentially.
package workflow

import (
	"fmt"
)

// Code identifies a validation rule violation.
type Code string

const (
	CodeMissingOrAmbiguousEntry Code = "missing_or_ambiguous_entry"
	CodeMissingOrAmbiguousExit  Code = "missing_or_ambiguous_exit"
	CodeCycleDetected           Code = "cycle_detected"
	CodeBranchingNotSupported   Code = "branching_not_supported"
	CodeUnreachableNode         Code = "unreachable_node"
	CodeInvalidConfig           Code = "invalid_config"
)

// ValidationError is one violated rule. NodeID and Field are set when the
// violation points at a specific node or config key.
type ValidationError struct {
	Code    Code   `json:"code"`
	NodeID  string `json:"node_id,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("%s (node %s): %s", e.Code, e.NodeID, e.Message)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ValidationResult is either valid or a non-empty ordered list of errors.
// All violated rules are reported at once so a graph editor can highlight
// every problem node in one round trip.
type ValidationResult struct {
	Errors []ValidationError `json:"errors"`
}

// Valid reports whether the graph passed every rule.
func (r ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// ValidationFailedError is returned by the engine when a graph fails
// validation; execution does not start.
type ValidationFailedError struct {
	Errors []ValidationError
}

func (e *ValidationFailedError) Error() string {
	if len(e.Errors) == 1 {
		return "workflow validation failed: " + e.Errors[0].Error()
	}

	return fmt.Sprintf("workflow validation failed with %d errors", len(e.Errors))
}
