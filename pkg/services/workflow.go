// Package services implements the business operations behind the HTTP API:
// workflow management, graph validation and chat execution.
package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/genstack/genstack/pkg/models"
	"github.com/genstack/genstack/pkg/persistence"
	"github.com/genstack/genstack/pkg/workflow"
)

// Workflow handles workflow management operations.
type Workflow struct {
	persistence persistence.Persistence
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(persistence persistence.Persistence) *Workflow {
	return &Workflow{
		persistence: persistence,
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// CreateWorkflowRequest carries the fields for a new workflow.
type CreateWorkflowRequest struct {
	Name        string          `validate:"required,min=3"`
	Description string
	Definition  json.RawMessage `validate:"required"`
}

// Create persists a new workflow after checking its definition parses. The
// graph does not have to pass validation rules to be saved; drafts with
// structural problems are allowed, execution is what requires validity.
func (w *Workflow) Create(ctx context.Context, req CreateWorkflowRequest) (*models.Workflow, error) {
	if req.Name == "" {
		return nil, NewValidationError("CreateWorkflow", "name_required", "workflow name is required", ErrWorkflowNameRequired)
	}

	if len(req.Definition) == 0 {
		return nil, NewValidationError("CreateWorkflow", "definition_required", "workflow definition is required", ErrDefinitionRequired)
	}

	if _, err := models.ParseDefinition(req.Definition); err != nil {
		return nil, NewValidationError("CreateWorkflow", "invalid_definition", err.Error(), ErrInvalidRequest)
	}

	record := &models.Workflow{
		Name:        req.Name,
		Description: req.Description,
		Definition:  req.Definition,
	}

	if err := w.persistence.SaveWorkflow(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	return record, nil
}

// UpdateWorkflowRequest carries the updatable workflow fields. Nil fields are
// left unchanged.
type UpdateWorkflowRequest struct {
	Name        *string
	Description *string
	Definition  json.RawMessage
}

// Update applies changes to an existing workflow.
func (w *Workflow) Update(ctx context.Context, id string, req UpdateWorkflowRequest) (*models.Workflow, error) {
	record, err := w.persistence.WorkflowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if *req.Name == "" {
			return nil, NewValidationError("UpdateWorkflow", "name_required", "workflow name is required", ErrWorkflowNameRequired)
		}

		record.Name = *req.Name
	}

	if req.Description != nil {
		record.Description = *req.Description
	}

	if req.Definition != nil {
		if _, err := models.ParseDefinition(req.Definition); err != nil {
			return nil, NewValidationError("UpdateWorkflow", "invalid_definition", err.Error(), ErrInvalidRequest)
		}

		record.Definition = req.Definition
	}

	if err := w.persistence.SaveWorkflow(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	return record, nil
}

// Get returns one workflow by ID.
func (w *Workflow) Get(ctx context.Context, id string) (*models.Workflow, error) {
	return w.persistence.WorkflowByID(ctx, id)
}

// List returns all workflows.
func (w *Workflow) List(ctx context.Context) ([]*models.Workflow, error) {
	workflows, err := w.persistence.Workflows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return workflows, nil
}

// Delete removes a workflow.
func (w *Workflow) Delete(ctx context.Context, id string) error {
	return w.persistence.DeleteWorkflow(ctx, id)
}

// Validate runs the full rule set against a stored workflow's graph and
// returns every violation.
func (w *Workflow) Validate(ctx context.Context, id string) (*workflow.ValidationResult, error) {
	record, err := w.persistence.WorkflowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	graph, err := models.ParseDefinition(record.Definition)
	if err != nil {
		// A stored definition that no longer parses is reported as a single
		// validation error rather than a server failure.
		return &workflow.ValidationResult{Errors: []workflow.ValidationError{{
			Code:    workflow.CodeInvalidConfig,
			Message: err.Error(),
		}}}, nil
	}

	result := workflow.Validate(graph)

	return &result, nil
}
