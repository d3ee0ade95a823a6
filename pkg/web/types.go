// Package web provides HTTP request and response types for the workflow API.
package web

import (
	"encoding/json"

	"github.com/genstack/genstack/pkg/workflow"
)

// CreateWorkflowRequest represents the request body for creating a new workflow.
type CreateWorkflowRequest struct {
	Name        string          `json:"name"        validate:"required,min=3"`
	Description string          `json:"description"`
	Definition  json.RawMessage `json:"definition"  validate:"required"`
}

// UpdateWorkflowRequest represents the request body for updating an existing
// workflow. All fields are optional to support partial updates.
type UpdateWorkflowRequest struct {
	Name        *string         `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description *string         `json:"description,omitempty"`
	Definition  json.RawMessage `json:"definition,omitempty"`
}

// ChatRequest represents the request body for one chat turn against a
// workflow. An empty SessionID starts a new session.
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Query     string `json:"query"                validate:"required"`
}

// ValidateWorkflowResponse reports the outcome of validating a stored
// workflow's graph. Errors is never null; a valid graph yields an empty list.
type ValidateWorkflowResponse struct {
	Valid  bool                       `json:"valid"`
	Errors []workflow.ValidationError `json:"errors"`
}

// ComponentResponse describes one node kind available to workflow builders,
// including the JSON schema its config is checked against.
type ComponentResponse struct {
	Kind         string          `json:"kind"`
	ConfigSchema json.RawMessage `json:"config_schema"`
}
