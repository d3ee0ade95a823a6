package workflow

import (
	"testing"

	"github.com/genstack/genstack/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustGraph(t *testing.T, nodes []*models.Node, edges []models.Edge) *models.Graph {
	t.Helper()

	g, err := models.NewGraph(nodes, edges)
	require.NoError(t, err)

	return g
}

func fullChain(t *testing.T) *models.Graph {
	t.Helper()

	return mustGraph(t,
		[]*models.Node{
			{ID: "query-1", Kind: models.KindUserQuery},
			{ID: "kb-1", Kind: models.KindKnowledgeBase, Config: map[string]any{"top_k": 5}},
			{ID: "llm-1", Kind: models.KindLLMEngine, Config: map[string]any{"temperature": 0.2}},
			{ID: "out-1", Kind: models.KindOutput},
		},
		[]models.Edge{
			{SourceID: "query-1", TargetID: "kb-1"},
			{SourceID: "kb-1", TargetID: "llm-1"},
			{SourceID: "llm-1", TargetID: "out-1"},
		},
	)
}

func TestValidate_FullChain(t *testing.T) {
	result := Validate(fullChain(t))

	assert.True(t, result.Valid())
	assert.Empty(t, result.Errors)
}

func TestValidate_MinimalChain(t *testing.T) {
	g := mustGraph(t,
		[]*models.Node{
			{ID: "query-1", Kind: models.KindUserQuery},
			{ID: "out-1", Kind: models.KindOutput},
		},
		[]models.Edge{{SourceID: "query-1", TargetID: "out-1"}},
	)

	assert.True(t, Validate(g).Valid())
}

func TestValidate_WrongEntryKind(t *testing.T) {
	g := mustGraph(t,
		[]*models.Node{
			{ID: "kb-1", Kind: models.KindKnowledgeBase},
			{ID: "out-1", Kind: models.KindOutput},
		},
		[]models.Edge{{SourceID: "kb-1", TargetID: "out-1"}},
	)

	result := Validate(g)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, CodeMissingOrAmbiguousEntry, result.Errors[0].Code)
	assert.Equal(t, "kb-1", result.Errors[0].NodeID)
}

func TestValidate_TwoEntries(t *testing.T) {
	g := mustGraph(t,
		[]*models.Node{
			{ID: "query-1", Kind: models.KindUserQuery},
			{ID: "query-2", Kind: models.KindUserQuery},
			{ID: "out-1", Kind: models.KindOutput},
		},
		[]models.Edge{
			{SourceID: "query-1", TargetID: "out-1"},
			{SourceID: "query-2", TargetID: "out-1"},
		},
	)

	result := Validate(g)
	assert.False(t, result.Valid())

	codes := errorCodes(result)
	assert.Contains(t, codes, CodeMissingOrAmbiguousEntry)
	// Fan-in at the output is reported as its own violation.
	assert.Contains(t, codes, CodeBranchingNotSupported)
}

func TestValidate_WrongExitKind(t *testing.T) {
	g := mustGraph(t,
		[]*models.Node{
			{ID: "query-1", Kind: models.KindUserQuery},
			{ID: "llm-1", Kind: models.KindLLMEngine},
		},
		[]models.Edge{{SourceID: "query-1", TargetID: "llm-1"}},
	)

	result := Validate(g)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, CodeMissingOrAmbiguousExit, result.Errors[0].Code)
	assert.Equal(t, "llm-1", result.Errors[0].NodeID)
}

func TestValidate_Cycle(t *testing.T) {
	g := mustGraph(t,
		[]*models.Node{
			{ID: "query-1", Kind: models.KindUserQuery},
			{ID: "kb-1", Kind: models.KindKnowledgeBase},
			{ID: "llm-1", Kind: models.KindLLMEngine},
			{ID: "out-1", Kind: models.KindOutput},
		},
		[]models.Edge{
			{SourceID: "query-1", TargetID: "kb-1"},
			{SourceID: "kb-1", TargetID: "llm-1"},
			{SourceID: "llm-1", TargetID: "kb-1"},
			{SourceID: "llm-1", TargetID: "out-1"},
		},
	)

	result := Validate(g)

	codes := errorCodes(result)
	assert.Contains(t, codes, CodeCycleDetected)
	assert.Contains(t, codes, CodeBranchingNotSupported)
}

func TestValidate_FanOut(t *testing.T) {
	g := mustGraph(t,
		[]*models.Node{
			{ID: "query-1", Kind: models.KindUserQuery},
			{ID: "kb-1", Kind: models.KindKnowledgeBase},
			{ID: "llm-1", Kind: models.KindLLMEngine},
			{ID: "out-1", Kind: models.KindOutput},
		},
		[]models.Edge{
			{SourceID: "query-1", TargetID: "kb-1"},
			{SourceID: "query-1", TargetID: "llm-1"},
			{SourceID: "kb-1", TargetID: "out-1"},
			{SourceID: "llm-1", TargetID: "out-1"},
		},
	)

	result := Validate(g)

	var branching []ValidationError

	for _, e := range result.Errors {
		if e.Code == CodeBranchingNotSupported {
			branching = append(branching, e)
		}
	}

	// One violation for the fan-out at the entry, one for the fan-in at the
	// output.
	require.Len(t, branching, 2)
	assert.Equal(t, "query-1", branching[0].NodeID)
	assert.Equal(t, "out-1", branching[1].NodeID)
}

func TestValidate_UnreachableNode(t *testing.T) {
	g := mustGraph(t,
		[]*models.Node{
			{ID: "query-1", Kind: models.KindUserQuery},
			{ID: "out-1", Kind: models.KindOutput},
			{ID: "kb-1", Kind: models.KindKnowledgeBase},
			{ID: "out-2", Kind: models.KindOutput},
		},
		[]models.Edge{
			{SourceID: "query-1", TargetID: "out-1"},
			{SourceID: "kb-1", TargetID: "out-2"},
		},
	)

	result := Validate(g)

	codes := errorCodes(result)
	assert.Contains(t, codes, CodeMissingOrAmbiguousEntry)
	assert.Contains(t, codes, CodeMissingOrAmbiguousExit)
	// The entry is ambiguous, so reachability is not reported on top.
	assert.NotContains(t, codes, CodeUnreachableNode)
}

func TestValidate_IsolatedNode(t *testing.T) {
	g := mustGraph(t,
		[]*models.Node{
			{ID: "query-1", Kind: models.KindUserQuery},
			{ID: "out-1", Kind: models.KindOutput},
			{ID: "kb-1", Kind: models.KindKnowledgeBase},
			{ID: "llm-1", Kind: models.KindLLMEngine},
		},
		[]models.Edge{
			{SourceID: "query-1", TargetID: "out-1"},
			{SourceID: "kb-1", TargetID: "llm-1"},
			{SourceID: "llm-1", TargetID: "kb-1"},
		},
	)

	result := Validate(g)

	codes := errorCodes(result)
	assert.Contains(t, codes, CodeCycleDetected)
	assert.Contains(t, codes, CodeUnreachableNode)
}

func TestValidate_ConfigTypeErrors(t *testing.T) {
	g := mustGraph(t,
		[]*models.Node{
			{ID: "query-1", Kind: models.KindUserQuery},
			{ID: "kb-1", Kind: models.KindKnowledgeBase, Config: map[string]any{"top_k": "five"}},
			{ID: "llm-1", Kind: models.KindLLMEngine, Config: map[string]any{"temperature": "hot"}},
			{ID: "out-1", Kind: models.KindOutput},
		},
		[]models.Edge{
			{SourceID: "query-1", TargetID: "kb-1"},
			{SourceID: "kb-1", TargetID: "llm-1"},
			{SourceID: "llm-1", TargetID: "out-1"},
		},
	)

	result := Validate(g)

	require.Len(t, result.Errors, 2)

	assert.Equal(t, CodeInvalidConfig, result.Errors[0].Code)
	assert.Equal(t, "kb-1", result.Errors[0].NodeID)
	assert.Equal(t, "top_k", result.Errors[0].Field)

	assert.Equal(t, CodeInvalidConfig, result.Errors[1].Code)
	assert.Equal(t, "llm-1", result.Errors[1].NodeID)
	assert.Equal(t, "temperature", result.Errors[1].Field)
}

func TestValidate_TopKBelowMinimum(t *testing.T) {
	g := mustGraph(t,
		[]*models.Node{
			{ID: "query-1", Kind: models.KindUserQuery},
			{ID: "kb-1", Kind: models.KindKnowledgeBase, Config: map[string]any{"top_k": 0}},
			{ID: "out-1", Kind: models.KindOutput},
		},
		[]models.Edge{
			{SourceID: "query-1", TargetID: "kb-1"},
			{SourceID: "kb-1", TargetID: "out-1"},
		},
	)

	result := Validate(g)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, CodeInvalidConfig, result.Errors[0].Code)
	assert.Equal(t, "top_k", result.Errors[0].Field)
}

func TestValidate_UnknownConfigKeysIgnored(t *testing.T) {
	g := mustGraph(t,
		[]*models.Node{
			{ID: "query-1", Kind: models.KindUserQuery, Config: map[string]any{"placement": map[string]any{"x": 10}}},
			{ID: "out-1", Kind: models.KindOutput},
		},
		[]models.Edge{{SourceID: "query-1", TargetID: "out-1"}},
	)

	assert.True(t, Validate(g).Valid())
}

func TestValidate_Deterministic(t *testing.T) {
	g := mustGraph(t,
		[]*models.Node{
			{ID: "query-1", Kind: models.KindUserQuery},
			{ID: "query-2", Kind: models.KindUserQuery},
			{ID: "kb-1", Kind: models.KindKnowledgeBase, Config: map[string]any{"top_k": "five"}},
			{ID: "out-1", Kind: models.KindOutput},
		},
		[]models.Edge{
			{SourceID: "query-1", TargetID: "kb-1"},
			{SourceID: "query-2", TargetID: "kb-1"},
			{SourceID: "kb-1", TargetID: "out-1"},
		},
	)

	first := Validate(g)
	second := Validate(g)

	assert.False(t, first.Valid())
	assert.Equal(t, first, second)
}

func TestConfigSchema(t *testing.T) {
	for _, kind := range []models.NodeKind{
		models.KindUserQuery,
		models.KindKnowledgeBase,
		models.KindLLMEngine,
		models.KindOutput,
	} {
		source, ok := ConfigSchema(kind)
		assert.True(t, ok)
		assert.NotEmpty(t, source)
	}

	_, ok := ConfigSchema(models.NodeKind("bogus"))
	assert.False(t, ok)
}

func errorCodes(result ValidationResult) []Code {
	codes := make([]Code, 0, len(result.Errors))
	for _, e := range result.Errors {
		codes = append(codes, e.Code)
	}

	return codes
}
