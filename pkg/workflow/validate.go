package workflow

import (
	"fmt"
	"strings"

	"github.com/genstack/genstack/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// Per-kind config schemas. No key is required (defaults apply when a value is
// absent) but a present key must have the right type.
var configSchemaSources = map[models.NodeKind]string{
	models.KindUserQuery: `{
		"type": "object",
		"properties": {
			"query": {"type": "string"}
		}
	}`,
	models.KindKnowledgeBase: `{
		"type": "object",
		"properties": {
			"top_k": {"type": "integer", "minimum": 1},
			"scope_to_workflow": {"type": "boolean"}
		}
	}`,
	models.KindLLMEngine: `{
		"type": "object",
		"properties": {
			"model_name": {"type": "string"},
			"temperature": {"type": "number"},
			"custom_prompt": {"type": "string"}
		}
	}`,
	models.KindOutput: `{
		"type": "object",
		"properties": {
			"show_sources": {"type": "boolean"}
		}
	}`,
}

var configSchemas = compileConfigSchemas()

func compileConfigSchemas() map[models.NodeKind]*gojsonschema.Schema {
	compiled := make(map[models.NodeKind]*gojsonschema.Schema, len(configSchemaSources))

	for kind, source := range configSchemaSources {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(source))
		if err != nil {
			panic(fmt.Sprintf("invalid config schema for kind %s: %v", kind, err))
		}

		compiled[kind] = schema
	}

	return compiled
}

// ConfigSchema returns the JSON schema source for a node kind, for component
// discovery endpoints.
func ConfigSchema(kind models.NodeKind) (string, bool) {
	source, ok := configSchemaSources[kind]

	return source, ok
}

// Validate checks a graph against the structural and semantic rules. Rules
// run in a fixed order and every violation is reported; nothing
// short-circuits. Callers must not execute a graph unless the result is
// valid.
func Validate(g *models.Graph) ValidationResult {
	var result ValidationResult

	entries, exits := terminals(g)

	// Rule 1: exactly one entry node, and it must accept the user query.
	switch {
	case len(entries) != 1:
		result.Errors = append(result.Errors, ValidationError{
			Code:    CodeMissingOrAmbiguousEntry,
			Message: fmt.Sprintf("expected exactly one entry node, found %d%s", len(entries), idList(entries)),
		})
	case entries[0].Kind != models.KindUserQuery:
		result.Errors = append(result.Errors, ValidationError{
			Code:    CodeMissingOrAmbiguousEntry,
			NodeID:  entries[0].ID,
			Message: fmt.Sprintf("entry node must be kind %s, got %s", models.KindUserQuery, entries[0].Kind),
		})
	}

	// Rule 2: exactly one exit node, and it must be the output.
	switch {
	case len(exits) != 1:
		result.Errors = append(result.Errors, ValidationError{
			Code:    CodeMissingOrAmbiguousExit,
			Message: fmt.Sprintf("expected exactly one exit node, found %d%s", len(exits), idList(exits)),
		})
	case exits[0].Kind != models.KindOutput:
		result.Errors = append(result.Errors, ValidationError{
			Code:    CodeMissingOrAmbiguousExit,
			NodeID:  exits[0].ID,
			Message: fmt.Sprintf("exit node must be kind %s, got %s", models.KindOutput, exits[0].Kind),
		})
	}

	// Rule 3: no directed cycle.
	if nodeID, found := findCycle(g, entries); found {
		result.Errors = append(result.Errors, ValidationError{
			Code:    CodeCycleDetected,
			NodeID:  nodeID,
			Message: fmt.Sprintf("cycle detected at node %s", nodeID),
		})
	}

	// Rule 4: linear chain only, no fan-out or fan-in.
	for _, node := range g.Nodes() {
		if out := len(g.EdgesFrom(node.ID)); out > 1 {
			result.Errors = append(result.Errors, ValidationError{
				Code:    CodeBranchingNotSupported,
				NodeID:  node.ID,
				Message: fmt.Sprintf("node %s has %d outgoing edges, at most one is supported", node.ID, out),
			})
		}

		if in := len(g.EdgesTo(node.ID)); in > 1 {
			result.Errors = append(result.Errors, ValidationError{
				Code:    CodeBranchingNotSupported,
				NodeID:  node.ID,
				Message: fmt.Sprintf("node %s has %d incoming edges, at most one is supported", node.ID, in),
			})
		}
	}

	// Rule 5: every node lies on the path from the entry. Skipped when the
	// entry itself is ambiguous, rule 1 already covers that.
	if len(entries) == 1 {
		reachable := reachableFrom(g, entries[0].ID)
		for _, node := range g.Nodes() {
			if !reachable[node.ID] {
				result.Errors = append(result.Errors, ValidationError{
					Code:    CodeUnreachableNode,
					NodeID:  node.ID,
					Message: fmt.Sprintf("node %s is not reachable from the entry node", node.ID),
				})
			}
		}
	}

	// Rule 6: config keys must have the type their kind requires.
	for _, node := range g.Nodes() {
		result.Errors = append(result.Errors, validateConfig(node)...)
	}

	return result
}

func terminals(g *models.Graph) (entries, exits []*models.Node) {
	for _, node := range g.Nodes() {
		if len(g.EdgesTo(node.ID)) == 0 {
			entries = append(entries, node)
		}

		if len(g.EdgesFrom(node.ID)) == 0 {
			exits = append(exits, node)
		}
	}

	return entries, exits
}

// findCycle runs a depth-first walk and reports the first node observed twice
// on the active path.
func findCycle(g *models.Graph, entries []*models.Node) (string, bool) {
	const (
		white = iota
		gray
		black
	)

	state := make(map[string]int, len(g.Nodes()))

	var cycleNode string

	var visit func(id string) bool

	visit = func(id string) bool {
		state[id] = gray

		for _, edge := range g.EdgesFrom(id) {
			switch state[edge.TargetID] {
			case gray:
				cycleNode = edge.TargetID

				return true
			case white:
				if visit(edge.TargetID) {
					return true
				}
			}
		}

		state[id] = black

		return false
	}

	// Walk from the entry first so the reported node is stable for valid-shaped
	// graphs, then sweep the rest to catch cycles in detached components.
	roots := g.Nodes()
	if len(entries) == 1 {
		roots = append([]*models.Node{entries[0]}, roots...)
	}

	for _, root := range roots {
		if state[root.ID] != white {
			continue
		}

		if visit(root.ID) {
			return cycleNode, true
		}
	}

	return "", false
}

func reachableFrom(g *models.Graph, start string) map[string]bool {
	reachable := make(map[string]bool, len(g.Nodes()))
	stack := []string{start}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if reachable[id] {
			continue
		}

		reachable[id] = true

		for _, edge := range g.EdgesFrom(id) {
			stack = append(stack, edge.TargetID)
		}
	}

	return reachable
}

func validateConfig(node *models.Node) []ValidationError {
	schema, ok := configSchemas[node.Kind]
	if !ok {
		// Unknown kinds are rejected at parse time; nothing to check here.
		return nil
	}

	config := node.Config
	if config == nil {
		config = map[string]any{}
	}

	outcome, err := schema.Validate(gojsonschema.NewGoLoader(config))
	if err != nil {
		return []ValidationError{{
			Code:    CodeInvalidConfig,
			NodeID:  node.ID,
			Message: fmt.Sprintf("config could not be checked: %v", err),
		}}
	}

	var errs []ValidationError

	for _, desc := range outcome.Errors() {
		field := desc.Field()
		if field == "(root)" {
			field = ""
		}

		errs = append(errs, ValidationError{
			Code:    CodeInvalidConfig,
			NodeID:  node.ID,
			Field:   field,
			Message: desc.Description(),
		})
	}

	return errs
}

func idList(nodes []*models.Node) string {
	if len(nodes) == 0 {
		return ""
	}

	ids := make([]string, 0, len(nodes))
	for _, node := range nodes {
		ids = append(ids, node.ID)
	}

	return " (" + strings.Join(ids, ", ") + ")"
}
