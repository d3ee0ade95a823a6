package models

import "time"

// ExecutionStatus is the lifecycle state of one execution request. Running
// advances monotonically node by node; Succeeded and Failed are terminal.
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionSucceeded ExecutionStatus = "succeeded"
	ExecutionFailed    ExecutionStatus = "failed"
)

// Passage is one retrieved text chunk with its provenance.
type Passage struct {
	Text     string  `json:"text"`
	SourceID string  `json:"source_id"`
	Score    float64 `json:"score"`
}

// ExecutionContext is the payload threaded between components along the
// execution path. Fields accumulate: a component may read any earlier field
// but must never erase one it did not itself produce. WorkflowID and Query
// are set once before the first component runs (Query may also be set by the
// user_query component when the caller supplied none); an empty GeneratedText
// means generation never ran.
type ExecutionContext struct {
	WorkflowID       string    `json:"workflow_id,omitempty"`
	Query            string    `json:"query"`
	RetrievedContext []Passage `json:"retrieved_context,omitempty"`
	Sources          []string  `json:"sources,omitempty"`
	GeneratedText    string    `json:"generated_text,omitempty"`
	FinalText        string    `json:"final_text,omitempty"`
	FinalSources     []string  `json:"final_sources,omitempty"`
}

// NodeTrace records timing and outcome for one node of an execution.
type NodeTrace struct {
	NodeID    string        `json:"node_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Succeeded bool          `json:"succeeded"`
}

// ExecutionResult is produced once per execution request. The engine holds no
// reference to it after returning; the caller owns it.
type ExecutionResult struct {
	FinalText string        `json:"final_text"`
	Sources   []string      `json:"sources"`
	Elapsed   time.Duration `json:"elapsed"`
	Trace     []NodeTrace   `json:"trace"`
}
