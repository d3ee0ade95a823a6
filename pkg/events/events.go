// Package events defines event types for execution lifecycle notifications.
package events

import (
	"time"

	"github.com/genstack/genstack/pkg/models"
)

type EventType string

// Topic is the event bus topic execution events are published on.
const Topic = "genstack.executions"

const (
	EventMetadataKey     = "key"
	EventTypeMetadataKey = "event_type"
)

const (
	ExecutionStartedEvent  EventType = "execution.started"
	NodeFinishedEvent      EventType = "execution.node.finished"
	ExecutionFinishedEvent EventType = "execution.finished"
	ExecutionFailedEvent   EventType = "execution.failed"
)

type BaseEvent struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	WorkflowID  string    `json:"workflow_id,omitempty"`
	ExecutionID string    `json:"execution_id"`
}

type ExecutionStarted struct {
	BaseEvent

	Query     string `json:"query"`
	NodeCount int    `json:"node_count"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type NodeFinished struct {
	BaseEvent

	NodeID    string          `json:"node_id"`
	Kind      models.NodeKind `json:"kind"`
	Succeeded bool            `json:"succeeded"`
	Duration  time.Duration   `json:"duration"`
}

func (e NodeFinished) GetType() EventType {
	return NodeFinishedEvent
}

type ExecutionFinished struct {
	BaseEvent

	Duration    time.Duration `json:"duration"`
	SourceCount int           `json:"source_count"`
}

func (e ExecutionFinished) GetType() EventType {
	return ExecutionFinishedEvent
}

type ExecutionFailed struct {
	BaseEvent

	NodeID   string        `json:"node_id,omitempty"`
	Error    string        `json:"error"`
	Duration time.Duration `json:"duration"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}
