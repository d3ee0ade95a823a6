package models

import (
	"encoding/json"
	"time"
)

// Workflow is the persisted record of a graph definition. Definition holds
// the node/edge JSON parsed by ParseDefinition at execution-request time.
type Workflow struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"        validate:"required,min=3"`
	Description string          `json:"description"`
	Definition  json.RawMessage `json:"definition"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ChatSession groups the chat turns executed against one workflow.
type ChatSession struct {
	ID         string    `json:"id"`
	WorkflowID string    `json:"workflow_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// ChatMessage roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one persisted chat turn. Metadata carries sources and the
// per-node trace for assistant messages.
type ChatMessage struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Document is an uploaded file whose chunks have been embedded and stored.
// WorkflowID is optional; when set, scoped retrieval can restrict search to
// this document's chunks.
type Document struct {
	ID         string     `json:"id"`
	Filename   string     `json:"filename"`
	WorkflowID *string    `json:"workflow_id,omitempty"`
	ChunkCount int        `json:"chunk_count"`
	Processed  bool       `json:"processed"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}
