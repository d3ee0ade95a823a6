// Package models defines the core domain models for graph-based query workflows.
package models

import (
	"fmt"
)

// NodeKind identifies the processing component a node represents. The set is
// closed: execution dispatch switches over these values and unknown kinds are
// rejected when a definition is parsed.
type NodeKind string

const (
	KindUserQuery     NodeKind = "user_query"
	KindKnowledgeBase NodeKind = "knowledge_base"
	KindLLMEngine     NodeKind = "llm_engine"
	KindOutput        NodeKind = "output"
)

// Valid reports whether k is one of the supported node kinds.
func (k NodeKind) Valid() bool {
	switch k {
	case KindUserQuery, KindKnowledgeBase, KindLLMEngine, KindOutput:
		return true
	}

	return false
}

// Node is one typed processing step in a workflow graph. Kind is immutable
// after construction; Config holds the kind-specific options as persisted and
// is decoded into a typed config by the matching *ConfigFrom function.
type Node struct {
	ID     string         `json:"id"     validate:"required"`
	Kind   NodeKind       `json:"kind"   validate:"required"`
	Config map[string]any `json:"config,omitempty"`
}

// Edge is a directed connection between two nodes.
type Edge struct {
	SourceID string `json:"source_id" validate:"required"`
	TargetID string `json:"target_id" validate:"required"`
}

// Defaults applied when a config key is absent.
const (
	DefaultTopK        = 3
	DefaultModelName   = "models/gemini-2.5-flash"
	DefaultTemperature = 0.7
)

// UserQueryConfig configures a user_query node.
type UserQueryConfig struct {
	Query string `json:"query,omitempty"`
}

// KnowledgeBaseConfig configures a knowledge_base node.
type KnowledgeBaseConfig struct {
	TopK            int  `json:"top_k"`
	ScopeToWorkflow bool `json:"scope_to_workflow"`
}

// LLMEngineConfig configures an llm_engine node.
type LLMEngineConfig struct {
	ModelName    string  `json:"model_name"`
	Temperature  float64 `json:"temperature"`
	CustomPrompt string  `json:"custom_prompt,omitempty"`
}

// OutputConfig configures an output node.
type OutputConfig struct {
	ShowSources bool `json:"show_sources"`
}

// UserQueryConfigFrom decodes a user_query node's config, applying defaults.
func UserQueryConfigFrom(n *Node) (UserQueryConfig, error) {
	cfg := UserQueryConfig{}

	query, err := stringField(n, "query", "")
	if err != nil {
		return cfg, err
	}

	cfg.Query = query

	return cfg, nil
}

// KnowledgeBaseConfigFrom decodes a knowledge_base node's config, applying defaults.
func KnowledgeBaseConfigFrom(n *Node) (KnowledgeBaseConfig, error) {
	cfg := KnowledgeBaseConfig{TopK: DefaultTopK}

	topK, err := intField(n, "top_k", DefaultTopK)
	if err != nil {
		return cfg, err
	}

	scope, err := boolField(n, "scope_to_workflow", false)
	if err != nil {
		return cfg, err
	}

	cfg.TopK = topK
	cfg.ScopeToWorkflow = scope

	return cfg, nil
}

// LLMEngineConfigFrom decodes an llm_engine node's config, applying defaults.
func LLMEngineConfigFrom(n *Node) (LLMEngineConfig, error) {
	cfg := LLMEngineConfig{ModelName: DefaultModelName, Temperature: DefaultTemperature}

	modelName, err := stringField(n, "model_name", DefaultModelName)
	if err != nil {
		return cfg, err
	}

	temperature, err := floatField(n, "temperature", DefaultTemperature)
	if err != nil {
		return cfg, err
	}

	customPrompt, err := stringField(n, "custom_prompt", "")
	if err != nil {
		return cfg, err
	}

	cfg.ModelName = modelName
	cfg.Temperature = temperature
	cfg.CustomPrompt = customPrompt

	return cfg, nil
}

// OutputConfigFrom decodes an output node's config, applying defaults.
func OutputConfigFrom(n *Node) (OutputConfig, error) {
	cfg := OutputConfig{ShowSources: true}

	showSources, err := boolField(n, "show_sources", true)
	if err != nil {
		return cfg, err
	}

	cfg.ShowSources = showSources

	return cfg, nil
}

func stringField(n *Node, key, fallback string) (string, error) {
	raw, ok := n.Config[key]
	if !ok || raw == nil {
		return fallback, nil
	}

	value, ok := raw.(string)
	if !ok {
		return fallback, fmt.Errorf("node %s: field %q must be a string", n.ID, key)
	}

	return value, nil
}

func intField(n *Node, key string, fallback int) (int, error) {
	raw, ok := n.Config[key]
	if !ok || raw == nil {
		return fallback, nil
	}

	switch value := raw.(type) {
	case int:
		return value, nil
	case float64:
		// JSON numbers decode as float64; only whole values are acceptable here.
		if value != float64(int(value)) {
			return fallback, fmt.Errorf("node %s: field %q must be an integer", n.ID, key)
		}

		return int(value), nil
	default:
		return fallback, fmt.Errorf("node %s: field %q must be an integer", n.ID, key)
	}
}

func floatField(n *Node, key string, fallback float64) (float64, error) {
	raw, ok := n.Config[key]
	if !ok || raw == nil {
		return fallback, nil
	}

	switch value := raw.(type) {
	case float64:
		return value, nil
	case int:
		return float64(value), nil
	default:
		return fallback, fmt.Errorf("node %s: field %q must be a number", n.ID, key)
	}
}

func boolField(n *Node, key string, fallback bool) (bool, error) {
	raw, ok := n.Config[key]
	if !ok || raw == nil {
		return fallback, nil
	}

	value, ok := raw.(bool)
	if !ok {
		return fallback, fmt.Errorf("node %s: field %q must be a boolean", n.ID, key)
	}

	return value, nil
}
